package interp

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/jarvis394/snapshot-interpolation/lerp"
	"github.com/jarvis394/snapshot-interpolation/logging"
	interpolationlog "github.com/jarvis394/snapshot-interpolation/logging/interpolation"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
	"github.com/jarvis394/snapshot-interpolation/vault"
)

const (
	// DefaultServerFPS is the assumed snapshot rate when none is configured.
	DefaultServerFPS = 60
	// lagFrames is how many server frames of history the render time trails by.
	lagFrames = 3
)

// Clock reports the local time in milliseconds.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() int64

// Now implements Clock.
func (f ClockFunc) Now() int64 { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().UnixMilli() })

// Result is one interpolated view of a collection.
type Result struct {
	Entities   []snapshot.Entity
	Fraction   float64
	Newer      snapshot.Sequence
	Older      snapshot.Sequence
	ServerTime float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithCapacity sets the vault capacity.
func WithCapacity(n int) Option {
	return func(e *Engine) { e.capacity = n }
}

// WithServerFPS sets the expected snapshot rate used to derive the lag buffer.
func WithServerFPS(fps float64) Option {
	return func(e *Engine) {
		if fps > 0 {
			e.serverFPS = fps
		}
	}
}

// WithLagBuffer overrides the lag derived from the server FPS.
func WithLagBuffer(d time.Duration) Option {
	return func(e *Engine) {
		e.lagOverride = true
		e.lag = d
	}
}

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithPublisher routes engine events to pub.
func WithPublisher(pub logging.Publisher) Option {
	return func(e *Engine) {
		if pub != nil {
			e.publisher = pub
		}
	}
}

// WithMetrics reports engine counters to m.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// Engine buffers snapshots from a remote source and blends them at a render
// time that trails the source clock by the lag buffer. It is not safe for
// concurrent use.
type Engine struct {
	vault *vault.Vault

	capacity    int
	serverFPS   float64
	lag         time.Duration
	lagOverride bool

	clock      Clock
	offset     int64
	serverTime float64

	publisher logging.Publisher
	metrics   Metrics
}

// New constructs an engine. Without options it holds 100 snapshots and lags
// three frames of a 60 FPS source.
func New(opts ...Option) *Engine {
	e := &Engine{
		capacity:   vault.DefaultCapacity,
		serverFPS:  DefaultServerFPS,
		clock:      SystemClock,
		offset:     -1,
		serverTime: -1,
		publisher:  logging.NopPublisher(),
		metrics:    nopMetrics{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if !e.lagOverride {
		e.lag = LagForFPS(e.serverFPS)
	}
	e.vault = vault.New(e.capacity)
	return e
}

// LagForFPS returns the duration of three frames at fps.
func LagForFPS(fps float64) time.Duration {
	if fps <= 0 {
		fps = DefaultServerFPS
	}
	return time.Duration(math.Round(float64(time.Second) * lagFrames / fps))
}

// Vault exposes the snapshot history.
func (e *Engine) Vault() *vault.Vault { return e.vault }

// TimeOffset is the local clock minus the source clock observed on the last
// Add, or -1 before any snapshot arrived.
func (e *Engine) TimeOffset() int64 { return e.offset }

// LagBuffer reports how far the render time trails the estimated source time.
func (e *Engine) LagBuffer() time.Duration { return e.lag }

// SetLagBuffer replaces the lag buffer.
func (e *Engine) SetLagBuffer(d time.Duration) {
	e.lag = d
	e.lagOverride = true
}

// ServerTime is the source time of the last interpolation, or -1.
func (e *Engine) ServerTime() float64 { return e.serverTime }

func (e *Engine) lagMillis() float64 {
	return float64(e.lag) / float64(time.Millisecond)
}

// Add records s and refreshes the clock offset.
func (e *Engine) Add(s snapshot.Snapshot) {
	ctx := context.Background()

	offset := e.clock.Now() - s.Timestamp
	if e.offset != -1 {
		if shift := offset - e.offset; math.Abs(float64(shift)) > e.lagMillis() {
			interpolationlog.ClockOffsetShift(ctx, e.publisher, s.Sequence, interpolationlog.ClockOffsetPayload{
				Previous: e.offset,
				Offset:   offset,
				LagMs:    e.lag.Milliseconds(),
			})
		}
	}
	e.offset = offset

	evicted, ok := e.vault.Add(s)
	e.metrics.Add(MetricSnapshotsAdded, 1)
	if ok {
		e.metrics.Add(MetricSnapshotsEvicted, 1)
		interpolationlog.SnapshotEvicted(ctx, e.publisher, evicted.Sequence, interpolationlog.SnapshotEvictedPayload{
			Timestamp: evicted.Timestamp,
			VaultSize: e.vault.Len(),
		})
	}
	e.metrics.Store(MetricVaultSize, uint64(e.vault.Len()))
}

// RenderTime is the source time the engine would interpolate at now.
func (e *Engine) RenderTime() float64 {
	return float64(e.clock.Now()-e.offset) - e.lagMillis()
}

// Compute interpolates collection at the current render time. It reports
// false when the vault holds no snapshot on one side of the render time.
func (e *Engine) Compute(methods Methods, collection string) (Result, bool, error) {
	target := e.RenderTime()
	bracket := e.vault.Around(snapshot.Timestamp(math.Floor(target)))
	if !bracket.Complete() {
		e.metrics.Add(MetricInterpolationStarved, 1)
		interpolationlog.Starved(context.Background(), e.publisher, interpolationlog.StarvedPayload{
			RenderTime: int64(target),
			Buffered:   e.vault.Len(),
			Collection: collection,
		})
		return Result{}, false, nil
	}

	newer, older := *bracket.Newer, *bracket.Older
	result, err := e.blend(newer, older, fractionAt(newer, older, target), methods, collection)
	if err != nil {
		return Result{}, false, err
	}
	return result, true, nil
}

// Interpolate blends a and b in either order. A timeOrFraction of at most 1
// is used as the fraction directly; anything larger is a source timestamp in
// milliseconds converted to a fraction without clamping.
func (e *Engine) Interpolate(a, b snapshot.Snapshot, timeOrFraction float64, methods Methods, collection string) (Result, error) {
	newer, older := a, b
	if b.Timestamp > a.Timestamp {
		newer, older = b, a
	}

	fraction := timeOrFraction
	if timeOrFraction > 1 {
		fraction = fractionAt(newer, older, timeOrFraction)
	}
	return e.blend(newer, older, fraction, methods, collection)
}

// fractionAt maps t onto [older, newer]. Snapshots sharing a timestamp
// resolve to the newer one.
func fractionAt(newer, older snapshot.Snapshot, t float64) float64 {
	span := float64(newer.Timestamp - older.Timestamp)
	if span == 0 {
		return 1
	}
	return (t - float64(older.Timestamp)) / span
}

func (e *Engine) blend(newer, older snapshot.Snapshot, fraction float64, methods Methods, collection string) (Result, error) {
	fields := make([]string, 0, len(methods))
	for field, method := range methods {
		if method == "" {
			return Result{}, &FieldError{Field: field, Err: ErrMissingMethod}
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	e.serverTime = lerp.Linear(float64(older.Timestamp), float64(newer.Timestamp), fraction)

	newerEntities := newer.Collection(collection)
	olderEntities := older.Collection(collection)

	entities := make([]snapshot.Entity, len(newerEntities))
	for i, entity := range newerEntities {
		out := entity.Clone()
		entities[i] = out
		// Entities are matched by position; an index the older snapshot
		// lacks is passed through from the newer one.
		if i >= len(olderEntities) {
			continue
		}
		previous := olderEntities[i]
		for _, field := range fields {
			method := methods[field]
			value, err := LerpValue(method, previous.Field(field), entity.Field(field), fraction)
			if err != nil {
				return Result{}, &FieldError{Field: field, Method: method, Err: err}
			}
			if value.IsAbsent() {
				continue
			}
			if out.Fields == nil {
				out.Fields = make(map[string]snapshot.Value, len(fields))
				entities[i] = out
			}
			out.Fields[field] = value
		}
	}

	e.metrics.Add(MetricInterpolations, 1)
	return Result{
		Entities:   entities,
		Fraction:   fraction,
		Newer:      newer.Sequence,
		Older:      older.Sequence,
		ServerTime: e.serverTime,
	}, nil
}
