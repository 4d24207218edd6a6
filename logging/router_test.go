package logging_test

import (
	"context"
	"testing"
	"time"

	"github.com/jarvis394/snapshot-interpolation/logging"
	"github.com/jarvis394/snapshot-interpolation/logging/sinks"
)

func TestRouterDeliversToSinks(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityDebug
	cfg.Fields = map[string]any{"service": "follower"}

	router := logging.NewRouter(cfg, logging.ClockFunc(func() time.Time { return fixed }), []logging.NamedSink{
		{Name: "memory", Sink: memory},
	})

	publisher := logging.WithFields(router, map[string]any{"role": "test"})
	publisher.Publish(context.Background(), logging.Event{
		Type:     "interpolation.test",
		Frame:    7,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryInterpolation,
	})
	router.Publish(context.Background(), logging.Event{})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	events := memory.Events()
	if len(events) != 1 {
		t.Fatalf("expected one delivered event, got %d", len(events))
	}
	event := events[0]
	if !event.Time.Equal(fixed) {
		t.Fatalf("expected router clock time, got %v", event.Time)
	}
	if event.Extra["service"] != "follower" || event.Extra["role"] != "test" {
		t.Fatalf("expected merged fields, got %v", event.Extra)
	}
	if stats := router.Stats(); stats.EventsTotal != 1 || stats.DroppedTotal != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if router.Sink("memory") != memory {
		t.Fatalf("expected named sink lookup")
	}
}

func TestRouterFiltersBySeverity(t *testing.T) {
	memory := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn

	router := logging.NewRouter(cfg, nil, []logging.NamedSink{{Name: "memory", Sink: memory}})
	router.Publish(context.Background(), logging.Event{Type: "a", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "b", Severity: logging.SeverityWarn})
	router.Publish(context.Background(), logging.Event{Type: "c", Severity: logging.SeverityError})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}

	events := memory.Events()
	if len(events) != 2 || events[0].Type != "b" || events[1].Type != "c" {
		t.Fatalf("unexpected events %+v", events)
	}

	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityError})
	if len(memory.Events()) != 2 {
		t.Fatalf("expected publish after close to be ignored")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := map[string]logging.Severity{
		"debug":   logging.SeverityDebug,
		"info":    logging.SeverityInfo,
		"warning": logging.SeverityWarn,
		"error":   logging.SeverityError,
		"bogus":   logging.SeverityInfo,
	}
	for name, want := range cases {
		if got := logging.ParseSeverity(name); got != want {
			t.Fatalf("ParseSeverity(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRouterPerSinkThreshold(t *testing.T) {
	all := sinks.NewMemorySink()
	errorsOnly := sinks.NewMemorySink()
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityDebug

	router := logging.NewRouter(cfg, nil, []logging.NamedSink{
		{Name: "all", Sink: all},
		{Name: "errors", Sink: errorsOnly, MinimumSeverity: logging.SeverityError},
	})
	router.Publish(context.Background(), logging.Event{Type: "vault.evicted", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "feed.decode_failed", Severity: logging.SeverityError})

	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got := len(all.Events()); got != 2 {
		t.Fatalf("expected both events on the unfiltered sink, got %d", got)
	}
	if got := errorsOnly.Events(); len(got) != 1 || got[0].Type != "feed.decode_failed" {
		t.Fatalf("expected only the error event, got %+v", got)
	}

	stats := router.Stats()
	if stats.Sinks["all"].Written != 2 || stats.Sinks["errors"].Written != 1 {
		t.Fatalf("unexpected per-sink stats %+v", stats.Sinks)
	}
}
