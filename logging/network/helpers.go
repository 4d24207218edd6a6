package network

import (
	"context"

	"github.com/jarvis394/snapshot-interpolation/logging"
)

const (
	// EventFeedConnected is emitted when a snapshot feed session opens.
	EventFeedConnected logging.EventType = "network.feed_connected"
	// EventFeedDisconnected is emitted when a snapshot feed session ends.
	EventFeedDisconnected logging.EventType = "network.feed_disconnected"
	// EventDecodeFailed is emitted when an inbound message cannot be decoded.
	EventDecodeFailed logging.EventType = "network.decode_failed"
)

// SessionPayload describes a feed session.
type SessionPayload struct {
	Remote string `json:"remote,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// FeedConnected publishes an info event for a new feed session.
func FeedConnected(ctx context.Context, pub logging.Publisher, session string, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFeedConnected,
		Subject:  logging.SubjectRef{Kind: logging.SubjectFeed, ID: session},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// FeedDisconnected publishes an info event when a feed session closes.
func FeedDisconnected(ctx context.Context, pub logging.Publisher, session string, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFeedDisconnected,
		Subject:  logging.SubjectRef{Kind: logging.SubjectFeed, ID: session},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// DecodePayload captures a rejected inbound message.
type DecodePayload struct {
	Error string `json:"error"`
	Bytes int    `json:"bytes"`
}

// DecodeFailed publishes a warning for an undecodable message.
func DecodeFailed(ctx context.Context, pub logging.Publisher, session string, payload DecodePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDecodeFailed,
		Subject:  logging.SubjectRef{Kind: logging.SubjectFeed, ID: session},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
