package interp

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jarvis394/snapshot-interpolation/lerp"
	"github.com/jarvis394/snapshot-interpolation/logging/interpolation"
	"github.com/jarvis394/snapshot-interpolation/logging/sinks"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64 { return c.now }

type countingMetrics struct {
	added  map[string]uint64
	stored map[string]uint64
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{added: map[string]uint64{}, stored: map[string]uint64{}}
}

func (m *countingMetrics) Add(key string, delta uint64)   { m.added[key] += delta }
func (m *countingMetrics) Store(key string, value uint64) { m.stored[key] = value }

func heroSnapshot(seq uint64, ts int64, fields map[string]snapshot.Value) snapshot.Snapshot {
	return snapshot.Snapshot{
		Sequence:  seq,
		Timestamp: ts,
		State: snapshot.State{
			"players": {{ID: snapshot.StringID("hero"), Fields: fields}},
		},
	}
}

func TestDefaultLagBuffer(t *testing.T) {
	cases := []struct {
		name string
		opts []Option
		want time.Duration
	}{
		{name: "default", want: 50 * time.Millisecond},
		{name: "twenty fps", opts: []Option{WithServerFPS(20)}, want: 150 * time.Millisecond},
		{name: "override", opts: []Option{WithServerFPS(20), WithLagBuffer(80 * time.Millisecond)}, want: 80 * time.Millisecond},
		{name: "invalid fps ignored", opts: []Option{WithServerFPS(-5)}, want: 50 * time.Millisecond},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := New(tc.opts...)
			if got := engine.LagBuffer(); got != tc.want {
				t.Fatalf("expected lag %v, got %v", tc.want, got)
			}
		})
	}
}

func TestNewEngineDefaults(t *testing.T) {
	engine := New()
	if engine.Vault().Cap() != 100 {
		t.Fatalf("expected default capacity 100, got %d", engine.Vault().Cap())
	}
	if engine.TimeOffset() != -1 {
		t.Fatalf("expected offset -1 before any snapshot, got %d", engine.TimeOffset())
	}
	if engine.ServerTime() != -1 {
		t.Fatalf("expected server time -1 before interpolation, got %v", engine.ServerTime())
	}
}

func TestComputeEndToEnd(t *testing.T) {
	clock := &fakeClock{now: 1_000_000}
	memory := sinks.NewMemorySink()
	metrics := newCountingMetrics()
	engine := New(WithCapacity(30), WithClock(clock), WithPublisher(memory), WithMetrics(metrics))

	engine.Add(heroSnapshot(1, clock.now, map[string]snapshot.Value{"x": snapshot.Number(0)}))
	engine.Add(heroSnapshot(2, clock.now+5000, map[string]snapshot.Value{"x": snapshot.Number(10)}))

	if engine.Vault().Cap() != 30 {
		t.Fatalf("expected capacity 30, got %d", engine.Vault().Cap())
	}
	if engine.TimeOffset() != -5000 {
		t.Fatalf("expected offset -5000, got %d", engine.TimeOffset())
	}

	result, ok, err := engine.Compute(Methods{"x": MethodLinear}, "players")
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected a bracketed interpolation")
	}
	if result.Newer+result.Older != 3 {
		t.Fatalf("expected sequences 1 and 2, got %d and %d", result.Newer, result.Older)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("expected one entity, got %d", len(result.Entities))
	}
	x, ok := result.Entities[0].Field("x").Number()
	if !ok || x <= 0 || x >= 10 {
		t.Fatalf("expected 0 < x < 10, got %v (ok=%v)", x, ok)
	}
	if math.Abs(result.Fraction-0.99) > 1e-9 {
		t.Fatalf("expected fraction 0.99, got %v", result.Fraction)
	}
	if engine.ServerTime() != result.ServerTime {
		t.Fatalf("expected server time %v to be retained, got %v", result.ServerTime, engine.ServerTime())
	}

	if got := len(memory.OfType(interpolation.EventClockOffsetShift)); got != 1 {
		t.Fatalf("expected one offset shift event, got %d", got)
	}
	if metrics.added["snapshots_added_total"] != 2 || metrics.added["interpolations_total"] != 1 {
		t.Fatalf("unexpected counters %+v", metrics.added)
	}
	if metrics.stored["vault_size"] != 2 {
		t.Fatalf("expected vault size gauge 2, got %d", metrics.stored["vault_size"])
	}
}

func TestComputeAtMidpoint(t *testing.T) {
	clock := &fakeClock{now: 1_000_000}
	engine := New(WithCapacity(30), WithClock(clock))
	engine.Add(heroSnapshot(1, clock.now, map[string]snapshot.Value{"x": snapshot.Number(0)}))
	engine.Add(heroSnapshot(2, clock.now+5000, map[string]snapshot.Value{"x": snapshot.Number(10)}))

	// Render time is now - offset - lag = now + 2500, halfway between the two.
	engine.SetLagBuffer(2500 * time.Millisecond)
	if got := engine.RenderTime(); got != float64(clock.now+2500) {
		t.Fatalf("expected render time %d, got %v", clock.now+2500, got)
	}

	result, ok, err := engine.Compute(Methods{"x": MethodLinear}, "players")
	if err != nil || !ok {
		t.Fatalf("expected a bracketed interpolation, got ok=%v err=%v", ok, err)
	}
	if result.Fraction != 0.5 {
		t.Fatalf("expected fraction 0.5, got %v", result.Fraction)
	}
	if x, _ := result.Entities[0].Field("x").Number(); x != 5 {
		t.Fatalf("expected x = 5, got %v", x)
	}
	if result.ServerTime != float64(clock.now+2500) {
		t.Fatalf("expected server time %d, got %v", clock.now+2500, result.ServerTime)
	}
}

func TestComputeStarvedWithoutBracket(t *testing.T) {
	clock := &fakeClock{now: 10_000}
	memory := sinks.NewMemorySink()
	engine := New(WithClock(clock), WithPublisher(memory))

	result, ok, err := engine.Compute(Methods{"x": MethodLinear}, "players")
	if err != nil || ok || result.Entities != nil {
		t.Fatalf("expected empty engine to report no result, got %+v ok=%v err=%v", result, ok, err)
	}

	engine.Add(heroSnapshot(1, clock.now, map[string]snapshot.Value{"x": snapshot.Number(0)}))
	if _, ok, _ := engine.Compute(Methods{"x": MethodLinear}, "players"); ok {
		t.Fatalf("expected a single snapshot to leave the render time unbracketed")
	}
	if got := len(memory.OfType(interpolation.EventStarved)); got != 2 {
		t.Fatalf("expected two starved events, got %d", got)
	}
}

func TestEvictionPublishesEvent(t *testing.T) {
	clock := &fakeClock{now: 0}
	memory := sinks.NewMemorySink()
	engine := New(WithCapacity(2), WithClock(clock), WithPublisher(memory))

	for i := 1; i <= 3; i++ {
		clock.now = int64(i) * 50
		engine.Add(heroSnapshot(uint64(i), clock.now, nil))
	}

	events := memory.OfType(interpolation.EventSnapshotEvicted)
	if len(events) != 1 {
		t.Fatalf("expected one eviction event, got %d", len(events))
	}
	if events[0].Frame != 1 {
		t.Fatalf("expected frame 1 evicted, got %d", events[0].Frame)
	}
	if engine.Vault().Len() != 2 {
		t.Fatalf("expected vault to stay at capacity, got %d", engine.Vault().Len())
	}
}

func TestInterpolateIdentityAtEndpoints(t *testing.T) {
	engine := New()
	orientation := lerp.Quat{X: 0, Y: math.Sin(math.Pi / 4), Z: 0, W: math.Cos(math.Pi / 4)}
	older := heroSnapshot(1, 1000, map[string]snapshot.Value{
		"x":     snapshot.Number(2.3),
		"angle": snapshot.Number(350.3),
		"spin":  snapshot.Number(0.5),
		"rot":   snapshot.Quaternion(lerp.Identity),
	})
	newer := heroSnapshot(2, 1100, map[string]snapshot.Value{
		"x":     snapshot.Number(8.1),
		"angle": snapshot.Number(10.1),
		"spin":  snapshot.Number(6.2),
		"rot":   snapshot.Quaternion(orientation),
	})
	methods := Methods{"x": MethodLinear, "angle": MethodDeg, "spin": MethodRad, "rot": MethodQuat}

	cases := []struct {
		name     string
		fraction float64
		want     snapshot.Snapshot
	}{
		{name: "zero yields older", fraction: 0, want: older},
		{name: "one yields newer", fraction: 1, want: newer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Argument order must not matter.
			result, err := engine.Interpolate(older, newer, tc.fraction, methods, "players")
			if err != nil {
				t.Fatalf("interpolate failed: %v", err)
			}
			swapped, err := engine.Interpolate(newer, older, tc.fraction, methods, "players")
			if err != nil {
				t.Fatalf("interpolate failed: %v", err)
			}
			if swapped.Entities[0].Field("angle") != result.Entities[0].Field("angle") {
				t.Fatalf("argument order changed the result")
			}
			got := result.Entities[0]
			want := tc.want.State["players"][0]
			for field := range methods {
				if got.Field(field) != want.Field(field) {
					t.Fatalf("field %s: expected exactly %v, got %v", field, want.Field(field), got.Field(field))
				}
			}
			if result.Newer != 2 || result.Older != 1 {
				t.Fatalf("expected newer 2 and older 1, got %d and %d", result.Newer, result.Older)
			}
		})
	}
}

func TestInterpolateAbsoluteTime(t *testing.T) {
	engine := New()
	older := heroSnapshot(1, 1000, map[string]snapshot.Value{"x": snapshot.Number(0)})
	newer := heroSnapshot(2, 2000, map[string]snapshot.Value{"x": snapshot.Number(10)})

	result, err := engine.Interpolate(newer, older, 1250, Methods{"x": MethodLinear}, "players")
	if err != nil {
		t.Fatalf("interpolate failed: %v", err)
	}
	if result.Fraction != 0.25 {
		t.Fatalf("expected fraction 0.25, got %v", result.Fraction)
	}
	if x, _ := result.Entities[0].Field("x").Number(); x != 2.5 {
		t.Fatalf("expected x 2.5, got %v", x)
	}
	if result.ServerTime != 1250 {
		t.Fatalf("expected server time 1250, got %v", result.ServerTime)
	}

	// Times outside the pair extrapolate.
	result, err = engine.Interpolate(newer, older, 2500, Methods{"x": MethodLinear}, "players")
	if err != nil {
		t.Fatalf("interpolate failed: %v", err)
	}
	if result.Fraction != 1.5 {
		t.Fatalf("expected unclamped fraction 1.5, got %v", result.Fraction)
	}
}

func TestInterpolateStringFieldErrors(t *testing.T) {
	engine := New()
	older := heroSnapshot(1, 1000, map[string]snapshot.Value{"x": snapshot.Number(0), "name": snapshot.String("a")})
	newer := heroSnapshot(2, 2000, map[string]snapshot.Value{"x": snapshot.Number(10), "name": snapshot.String("b")})

	_, err := engine.Interpolate(older, newer, 0.5, Methods{"x": MethodLinear, "name": MethodLinear}, "players")
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "name" {
		t.Fatalf("expected field error naming name, got %v", err)
	}

	result, err := engine.Interpolate(older, newer, 0.5, Methods{"x": MethodLinear}, "players")
	if err != nil {
		t.Fatalf("expected success without the string field, got %v", err)
	}
	got := result.Entities[0]
	if x, _ := got.Field("x").Number(); x != 5 {
		t.Fatalf("expected x 5, got %v", x)
	}
	if name, _ := got.Field("name").Text(); name != "b" {
		t.Fatalf("expected untouched field copied from newer, got %q", name)
	}
}

func TestInterpolateMethodErrors(t *testing.T) {
	engine := New()
	older := heroSnapshot(1, 1000, map[string]snapshot.Value{"x": snapshot.Number(0), "alive": snapshot.Bool(true)})
	newer := heroSnapshot(2, 2000, map[string]snapshot.Value{"x": snapshot.Number(10), "alive": snapshot.Bool(false)})

	cases := []struct {
		name    string
		methods Methods
		want    error
	}{
		{name: "missing method", methods: Methods{"x": ""}, want: ErrMissingMethod},
		{name: "quat on numbers", methods: Methods{"x": MethodQuat}, want: ErrUnknownMethod},
		{name: "bool field", methods: Methods{"alive": MethodLinear}, want: ErrUnknownMethod},
		{name: "unknown name", methods: Methods{"x": Method("cubic")}, want: ErrUnknownMethod},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Interpolate(older, newer, 0.5, tc.methods, "players")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInterpolateAbsentAndUnmatchedEntities(t *testing.T) {
	engine := New()
	older := snapshot.Snapshot{
		Sequence:  1,
		Timestamp: 1000,
		State: snapshot.State{"players": {
			{ID: snapshot.IntID(1), Fields: map[string]snapshot.Value{"x": snapshot.Number(0)}},
		}},
	}
	newer := snapshot.Snapshot{
		Sequence:  2,
		Timestamp: 2000,
		State: snapshot.State{"players": {
			{ID: snapshot.IntID(1), Fields: map[string]snapshot.Value{"x": snapshot.Number(4), "y": snapshot.Number(3)}},
			{ID: snapshot.IntID(2), Fields: map[string]snapshot.Value{"x": snapshot.Number(9)}},
		}},
	}

	result, err := engine.Interpolate(older, newer, 0.5, Methods{"x": MethodLinear, "y": MethodLinear}, "players")
	if err != nil {
		t.Fatalf("interpolate failed: %v", err)
	}
	if len(result.Entities) != 2 {
		t.Fatalf("expected entities from the newer snapshot, got %d", len(result.Entities))
	}
	if x, _ := result.Entities[0].Field("x").Number(); x != 2 {
		t.Fatalf("expected blended x 2, got %v", x)
	}
	if y, _ := result.Entities[0].Field("y").Number(); y != 3 {
		t.Fatalf("expected y absent in older to stay at newer value, got %v", y)
	}
	if x, _ := result.Entities[1].Field("x").Number(); x != 9 {
		t.Fatalf("expected unmatched entity copied, got %v", x)
	}

	// Results are detached from the inputs.
	result.Entities[0].Fields["x"] = snapshot.Number(100)
	if x, _ := newer.State["players"][0].Field("x").Number(); x != 4 {
		t.Fatalf("expected newer snapshot untouched, got %v", x)
	}
}

func TestParseMethod(t *testing.T) {
	for _, name := range []string{"linear", "deg", "rad", "quat"} {
		if _, err := ParseMethod(name); err != nil {
			t.Fatalf("expected %q to parse, got %v", name, err)
		}
	}
	if _, err := ParseMethod("cubic"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected unknown method error, got %v", err)
	}
}
