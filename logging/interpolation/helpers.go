package interpolation

import (
	"context"

	"github.com/jarvis394/snapshot-interpolation/logging"
)

const (
	// EventSnapshotEvicted is emitted when a full vault drops its oldest snapshot.
	EventSnapshotEvicted logging.EventType = "interpolation.snapshot_evicted"
	// EventClockOffsetShift is emitted when the estimated clock offset jumps by more than the lag buffer.
	EventClockOffsetShift logging.EventType = "interpolation.clock_offset_shift"
	// EventStarved is emitted when a render tick finds no snapshots bracketing the render time.
	EventStarved logging.EventType = "interpolation.starved"
)

// SnapshotEvictedPayload identifies the dropped snapshot.
type SnapshotEvictedPayload struct {
	Timestamp int64 `json:"timestamp"`
	VaultSize int   `json:"vaultSize"`
}

// SnapshotEvicted publishes a debug event for a snapshot pushed out of the vault.
func SnapshotEvicted(ctx context.Context, pub logging.Publisher, frame uint64, payload SnapshotEvictedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotEvicted,
		Frame:    frame,
		Subject:  logging.SubjectRef{Kind: logging.SubjectVault},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryInterpolation,
		Payload:  payload,
	})
}

// ClockOffsetPayload captures the previous and new offset in milliseconds.
type ClockOffsetPayload struct {
	Previous int64 `json:"previous"`
	Offset   int64 `json:"offset"`
	LagMs    int64 `json:"lagMs"`
}

// ClockOffsetShift publishes a warning when the local/source clock offset jumps.
func ClockOffsetShift(ctx context.Context, pub logging.Publisher, frame uint64, payload ClockOffsetPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClockOffsetShift,
		Frame:    frame,
		Subject:  logging.SubjectRef{Kind: logging.SubjectEngine},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryInterpolation,
		Payload:  payload,
	})
}

// StarvedPayload describes the render time that could not be bracketed.
type StarvedPayload struct {
	RenderTime int64  `json:"renderTime"`
	Buffered   int    `json:"buffered"`
	Collection string `json:"collection"`
}

// Starved publishes a debug event when interpolation lacks history.
func Starved(ctx context.Context, pub logging.Publisher, payload StarvedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStarved,
		Subject:  logging.SubjectRef{Kind: logging.SubjectEngine, ID: payload.Collection},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryInterpolation,
		Payload:  payload,
	})
}
