package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jarvis394/snapshot-interpolation/logging"
)

// record is the NDJSON line layout. Severity is spelled out so files stay
// readable without the enum table.
type record struct {
	Type     logging.EventType  `json:"type"`
	Frame    uint64             `json:"frame"`
	Time     string             `json:"time"`
	Severity string             `json:"severity"`
	Category string             `json:"category,omitempty"`
	Subject  logging.SubjectRef `json:"subject"`
	Payload  any                `json:"payload,omitempty"`
	Extra    map[string]any     `json:"extra,omitempty"`
}

// JSON appends one JSON object per event to an underlying writer.
type JSON struct {
	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder

	// nil when every write flushes immediately.
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewJSON constructs a JSON sink writing to w. A non-positive flushInterval
// flushes after every event.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	s := &JSON{buf: buf, enc: json.NewEncoder(buf), done: make(chan struct{})}
	if flushInterval > 0 {
		s.ticker = time.NewTicker(flushInterval)
		go s.flushLoop()
	}
	return s
}

func (s *JSON) Write(event logging.Event) error {
	rec := record{
		Type:     event.Type,
		Frame:    event.Frame,
		Time:     event.Time.UTC().Format(time.RFC3339Nano),
		Severity: event.Severity.String(),
		Category: event.Category,
		Subject:  event.Subject,
		Payload:  event.Payload,
		Extra:    event.Extra,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(rec); err != nil {
		return err
	}
	if s.ticker == nil {
		return s.buf.Flush()
	}
	return nil
}

func (s *JSON) Close(context.Context) error {
	s.once.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
	return s.flush()
}

func (s *JSON) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}

func (s *JSON) flushLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			_ = s.flush()
		}
	}
}
