package ws

import (
	"context"
	"log"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jarvis394/snapshot-interpolation/internal/net/proto"
	"github.com/jarvis394/snapshot-interpolation/internal/telemetry"
	"github.com/jarvis394/snapshot-interpolation/logging"
	"github.com/jarvis394/snapshot-interpolation/logging/network"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
	"github.com/jarvis394/snapshot-interpolation/vault"
)

const defaultWriteWait = 10 * time.Second

type BroadcasterConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	// Replay is how many recent snapshots a new subscriber receives before
	// live traffic.
	Replay       int
	WriteTimeout time.Duration
	Now          func() time.Time
}

// Broadcaster serves the snapshot feed. Each websocket connection becomes a
// subscriber that receives every snapshot passed to Broadcast.
type Broadcaster struct {
	history   *vault.Synchronized
	upgrader  websocket.Upgrader
	logger    telemetry.Logger
	publisher logging.Publisher
	metrics   telemetry.Metrics
	replay    int
	writeWait time.Duration
	now       func() time.Time

	// mu orders history updates against subscriber registration so a new
	// subscriber sees each snapshot exactly once.
	mu          sync.Mutex
	subscribers map[string]*subscriber
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte, wait time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(wait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func NewBroadcaster(cfg BroadcasterConfig) *Broadcaster {
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
	writeWait := cfg.WriteTimeout
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	replay := max(cfg.Replay, 0)

	return &Broadcaster{
		history: vault.NewSynchronized(max(replay, 1)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
		logger:      logger,
		publisher:   publisher,
		metrics:     metrics,
		replay:      replay,
		writeWait:   writeWait,
		now:         now,
		subscribers: make(map[string]*subscriber),
	}
}

// Handle upgrades the request and streams snapshots until the peer leaves.
func (b *Broadcaster) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Printf("feed upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sub := &subscriber{id: uuid.NewString(), conn: conn}
	ctx := r.Context()
	network.FeedConnected(ctx, b.publisher, sub.id, network.SessionPayload{Remote: r.RemoteAddr})

	if !b.subscribe(sub) {
		b.drop(ctx, sub, "replay failed")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			b.drop(ctx, sub, err.Error())
			return
		}

		msg, err := proto.Decode(payload)
		if err != nil {
			b.metrics.Add(telemetry.MetricFeedDecodeErrors, 1)
			network.DecodeFailed(ctx, b.publisher, sub.id, network.DecodePayload{Error: err.Error(), Bytes: len(payload)})
			continue
		}

		switch msg.Type {
		case proto.TypeHeartbeat:
			now := b.now().UnixMilli()
			ack := proto.HeartbeatMessage{
				ServerTime: now,
				ClientTime: msg.Heartbeat.ClientTime,
			}
			if msg.Heartbeat.ClientTime > 0 && now >= msg.Heartbeat.ClientTime {
				ack.RTT = now - msg.Heartbeat.ClientTime
			}
			data, err := proto.EncodeHeartbeat(ack)
			if err != nil {
				b.logger.Printf("failed to marshal heartbeat ack for %s: %v", sub.id, err)
				continue
			}
			if err := sub.write(data, b.writeWait); err != nil {
				b.drop(ctx, sub, err.Error())
				return
			}
		default:
			b.logger.Printf("ignoring %q message from feed subscriber %s", msg.Type, sub.id)
		}
	}
}

// subscribe registers sub and replays recent history to it. Live broadcasts
// to sub wait until the replay has been written.
func (b *Broadcaster) subscribe(sub *subscriber) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	b.mu.Lock()
	b.subscribers[sub.id] = sub
	count := len(b.subscribers)
	var recent []snapshot.Snapshot
	if b.replay > 0 {
		recent = b.history.Recent(b.replay)
	}
	b.mu.Unlock()
	b.metrics.Store(telemetry.MetricFeedSubscribers, uint64(count))

	for _, snap := range recent {
		data, err := proto.EncodeSnapshot(snap)
		if err != nil {
			b.logger.Printf("failed to marshal replay frame %d: %v", snap.Sequence, err)
			continue
		}
		sub.conn.SetWriteDeadline(time.Now().Add(b.writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return false
		}
		b.metrics.Add(telemetry.MetricFeedMessages, 1)
	}
	return true
}

func (b *Broadcaster) drop(ctx context.Context, sub *subscriber, reason string) {
	b.mu.Lock()
	_, ok := b.subscribers[sub.id]
	delete(b.subscribers, sub.id)
	count := len(b.subscribers)
	b.mu.Unlock()

	sub.conn.Close()
	if !ok {
		return
	}
	b.metrics.Store(telemetry.MetricFeedSubscribers, uint64(count))
	network.FeedDisconnected(ctx, b.publisher, sub.id, network.SessionPayload{Remote: sub.conn.RemoteAddr().String(), Reason: reason})
}

// Broadcast records s in the replay history and sends it to every
// subscriber. Subscribers whose write fails are disconnected.
func (b *Broadcaster) Broadcast(s snapshot.Snapshot) error {
	data, err := proto.EncodeSnapshot(s)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.history.Add(s)
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		if err := sub.write(data, b.writeWait); err != nil {
			b.logger.Printf("failed to send frame %d to %s: %v", s.Sequence, sub.id, err)
			b.drop(context.Background(), sub, err.Error())
			continue
		}
		b.metrics.Add(telemetry.MetricFeedMessages, 1)
	}
	return nil
}

// Subscribers reports the number of connected subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Last returns the most recent broadcast snapshot.
func (b *Broadcaster) Last() (snapshot.Snapshot, bool) {
	return b.history.Last()
}

// Close disconnects every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.mu.Lock()
		message := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
		sub.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		sub.mu.Unlock()
		b.drop(context.Background(), sub, "server shutdown")
	}
}
