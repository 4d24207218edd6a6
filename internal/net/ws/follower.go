package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jarvis394/snapshot-interpolation/internal/net/proto"
	"github.com/jarvis394/snapshot-interpolation/internal/telemetry"
	"github.com/jarvis394/snapshot-interpolation/interp"
	"github.com/jarvis394/snapshot-interpolation/logging"
	"github.com/jarvis394/snapshot-interpolation/logging/network"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

const defaultHeartbeatInterval = 2 * time.Second

type FollowerConfig struct {
	Logger            telemetry.Logger
	Publisher         logging.Publisher
	Metrics           telemetry.Metrics
	Dialer            *websocket.Dialer
	HeartbeatInterval time.Duration
	Now               func() time.Time
}

// Follower consumes a snapshot feed into an interpolation engine. The reader
// goroutine and render callers share the engine through a mutex.
type Follower struct {
	engine    *interp.Engine
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	dialer    *websocket.Dialer
	heartbeat time.Duration
	now       func() time.Time

	mu  sync.Mutex
	rtt atomic.Int64
}

func NewFollower(engine *interp.Engine, cfg FollowerConfig) *Follower {
	if engine == nil {
		engine = interp.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Follower{
		engine:    engine,
		logger:    logger,
		publisher: publisher,
		metrics:   metrics,
		dialer:    dialer,
		heartbeat: heartbeat,
		now:       now,
	}
}

// Run dials url and feeds received snapshots into the engine until ctx is
// cancelled or the connection fails. Cancellation returns nil.
func (f *Follower) Run(ctx context.Context, url string) error {
	conn, _, err := f.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial feed %s: %w", url, err)
	}
	session := uuid.NewString()
	network.FeedConnected(ctx, f.publisher, session, network.SessionPayload{Remote: url})

	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			writeMu.Lock()
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
			writeMu.Unlock()
			conn.Close()
		case <-done:
		}
	}()

	go func() {
		ticker := time.NewTicker(f.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				data, err := proto.EncodeHeartbeat(proto.HeartbeatMessage{ClientTime: f.now().UnixMilli()})
				if err != nil {
					continue
				}
				writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
				err = conn.WriteMessage(websocket.TextMessage, data)
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			reason := err.Error()
			if ctx.Err() != nil {
				reason = "cancelled"
			}
			network.FeedDisconnected(context.Background(), f.publisher, session, network.SessionPayload{Remote: url, Reason: reason})
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("feed read failed: %w", err)
		}

		msg, err := proto.Decode(payload)
		if err != nil {
			f.metrics.Add(telemetry.MetricFeedDecodeErrors, 1)
			network.DecodeFailed(ctx, f.publisher, session, network.DecodePayload{Error: err.Error(), Bytes: len(payload)})
			if !errors.Is(err, proto.ErrUnknownType) {
				f.logger.Printf("discarding malformed feed message: %v", err)
			}
			continue
		}
		f.metrics.Add(telemetry.MetricFeedMessages, 1)

		switch msg.Type {
		case proto.TypeSnapshot:
			f.Add(*msg.Snapshot)
		case proto.TypeHeartbeat:
			if sent := msg.Heartbeat.ClientTime; sent > 0 {
				if rtt := f.now().UnixMilli() - sent; rtt >= 0 {
					f.rtt.Store(rtt)
				}
			}
		}
	}
}

// Add hands s to the engine.
func (f *Follower) Add(s snapshot.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engine.Add(s)
}

// Compute interpolates collection at the current render time.
func (f *Follower) Compute(methods interp.Methods, collection string) (interp.Result, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine.Compute(methods, collection)
}

// Buffered reports how many snapshots the engine holds.
func (f *Follower) Buffered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.engine.Vault().Len()
}

// RTT is the last measured heartbeat round trip.
func (f *Follower) RTT() time.Duration {
	return time.Duration(f.rtt.Load()) * time.Millisecond
}
