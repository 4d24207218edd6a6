package logging

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink persists events. Write is only ever called from the sink's own worker.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// NamedSink registers a sink with the router. MinimumSeverity raises the
// router-wide threshold for this sink only.
type NamedSink struct {
	Name            string
	Sink            Sink
	MinimumSeverity Severity
}

type SinkStats struct {
	Written uint64
	Failed  uint64
	Dropped uint64
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	Sinks        map[string]SinkStats
}

// Router fans published events out to sinks on background workers. Publish
// never blocks: events are dropped and counted when the queue is full.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	workers  []*sinkWorker
	done     chan struct{}

	// mu guards closed and every send on queue.
	mu     sync.RWMutex
	closed bool
	queue  chan Event

	published atomic.Uint64
	dropped   atomic.Uint64

	dropLogMu   sync.Mutex
	nextDropLog time.Time
}

func NewRouter(cfg Config, clock Clock, namedSinks []NamedSink) *Router {
	cfg = cfg.normalized()
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		done:     make(chan struct{}),
		queue:    make(chan Event, cfg.QueueSize),
	}
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, newSinkWorker(named, cfg.sinkBacklog(), r.fallback))
	}
	go r.run()
	return r
}

func (r *Router) run() {
	var wg sync.WaitGroup
	for _, worker := range r.workers {
		wg.Add(1)
		go func(w *sinkWorker) {
			defer wg.Done()
			w.run()
		}(worker)
	}

	for event := range r.queue {
		if event.Time.IsZero() {
			event.Time = r.clock.Now()
		}
		event = mergeFields(event, r.cfg.Fields)
		for _, worker := range r.workers {
			worker.offer(event)
		}
	}

	for _, worker := range r.workers {
		close(worker.events)
	}
	wg.Wait()
	close(r.done)
}

// Publish implements Publisher. Events without a type, below the minimum
// severity or published after Close are discarded.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || event.Severity < r.cfg.MinimumSeverity {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- event:
		r.published.Add(1)
	default:
		r.drop(event)
	}
}

func (r *Router) drop(event Event) {
	r.dropped.Add(1)
	now := time.Now()
	r.dropLogMu.Lock()
	defer r.dropLogMu.Unlock()
	if now.Before(r.nextDropLog) {
		return
	}
	r.nextDropLog = now.Add(r.cfg.DropWarnInterval)
	r.fallback.Printf("queue full, dropping event type=%s frame=%d (dropped so far: %d)", event.Type, event.Frame, r.dropped.Load())
}

// Close stops accepting events, waits for queued events to reach the sinks
// and closes them. Closing twice is a no-op.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for _, worker := range r.workers {
		if err := worker.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.published.Load(),
		DroppedTotal: r.dropped.Load(),
		Sinks:        make(map[string]SinkStats, len(r.workers)),
	}
	for _, worker := range r.workers {
		stats.Sinks[worker.name] = SinkStats{
			Written: worker.written.Load(),
			Failed:  worker.failed.Load(),
			Dropped: worker.dropped.Load(),
		}
	}
	return stats
}

// Sink returns the sink registered under name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, worker := range r.workers {
		if worker.name == name {
			return worker.sink
		}
	}
	return nil
}

type sinkWorker struct {
	name        string
	sink        Sink
	minSeverity Severity
	events      chan Event
	fallback    *log.Logger

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64

	// Touched only by run.
	consecutive int
	retryAt     time.Time
}

func newSinkWorker(named NamedSink, backlog int, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:        named.Name,
		sink:        named.Sink,
		minSeverity: named.MinimumSeverity,
		events:      make(chan Event, backlog),
		fallback:    fallback,
	}
}

func (w *sinkWorker) offer(event Event) {
	if event.Severity < w.minSeverity {
		return
	}
	select {
	case w.events <- cloneEvent(event):
	default:
		w.dropped.Add(1)
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		if w.consecutive > 0 {
			time.Sleep(time.Until(w.retryAt))
		}
		if err := w.sink.Write(event); err != nil {
			w.failed.Add(1)
			w.consecutive++
			backoff := time.Duration(1<<min(w.consecutive, 5)) * time.Second
			w.retryAt = time.Now().Add(backoff)
			w.fallback.Printf("sink %s write failed: %v (backing off %s)", w.name, err, backoff)
			continue
		}
		w.written.Add(1)
		w.consecutive = 0
	}
}
