package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

const (
	// Version tracks the wire-protocol revision expected by followers.
	Version = 1

	// Type identifiers for websocket payloads.
	TypeSnapshot  = "snapshot"
	TypeHeartbeat = "heartbeat"
)

// ErrUnknownType is returned by Decode for unrecognised message types.
var ErrUnknownType = errors.New("unknown message type")

// SnapshotMessage carries one snapshot from the feed server.
type SnapshotMessage struct {
	Ver      int               `json:"ver"`
	Type     string            `json:"type"`
	Snapshot snapshot.Snapshot `json:"snapshot"`
}

// EncodeSnapshot renders a snapshot frame.
func EncodeSnapshot(s snapshot.Snapshot) ([]byte, error) {
	return json.Marshal(SnapshotMessage{Ver: Version, Type: TypeSnapshot, Snapshot: s})
}

// HeartbeatMessage measures round trips between follower and server. The
// follower sends ClientTime; the server echoes it with ServerTime and RTT
// filled from its own clock.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime,omitempty"`
	ClientTime int64  `json:"clientTime"`
	RTT        int64  `json:"rtt,omitempty"`
}

// EncodeHeartbeat renders a heartbeat frame.
func EncodeHeartbeat(msg HeartbeatMessage) ([]byte, error) {
	msg.Ver = Version
	msg.Type = TypeHeartbeat
	return json.Marshal(msg)
}

// Message is a decoded inbound frame. Exactly one of Snapshot or Heartbeat is
// set, matching Type.
type Message struct {
	Ver       int
	Type      string
	Snapshot  *snapshot.Snapshot
	Heartbeat *HeartbeatMessage
}

// Decode converts a raw websocket payload into a structured message.
func Decode(payload []byte) (Message, error) {
	var header struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &header); err != nil {
		return Message{}, err
	}
	if header.Ver == 0 {
		header.Ver = Version
	}
	if header.Ver != Version {
		return Message{}, fmt.Errorf("unsupported protocol version %d", header.Ver)
	}

	msg := Message{Ver: header.Ver, Type: header.Type}
	switch header.Type {
	case TypeSnapshot:
		var frame SnapshotMessage
		if err := json.Unmarshal(payload, &frame); err != nil {
			return Message{}, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		msg.Snapshot = &frame.Snapshot
	case TypeHeartbeat:
		var frame HeartbeatMessage
		if err := json.Unmarshal(payload, &frame); err != nil {
			return Message{}, fmt.Errorf("failed to decode heartbeat: %w", err)
		}
		frame.Ver = header.Ver
		msg.Heartbeat = &frame
	default:
		return Message{}, fmt.Errorf("%w %q", ErrUnknownType, header.Type)
	}
	return msg, nil
}
