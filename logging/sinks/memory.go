package sinks

import (
	"context"
	"slices"
	"sync"

	"github.com/jarvis394/snapshot-interpolation/logging"
)

// MemorySink keeps every event it receives. Tests use it both as a router
// sink and as a direct Publisher.
type MemorySink struct {
	mu     sync.RWMutex
	events []logging.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Publish(_ context.Context, event logging.Event) {
	_ = s.Write(event)
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

func (s *MemorySink) OfType(eventType logging.EventType) []logging.Event {
	events := s.Events()
	return slices.DeleteFunc(events, func(e logging.Event) bool { return e.Type != eventType })
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}
