package telemetry

import "log"

// Logger is the plain printf logger handed to process-level components.
// Structured events go through logging.Publisher instead.
type Logger interface {
	Printf(format string, args ...any)
}

type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// WrapLogger returns a Logger backed by logger. A nil logger discards output.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	return LoggerFunc(logger.Printf)
}

// Metric keys reported by the snapshot feed. Engine keys live in package interp.
const (
	MetricFeedMessages     = "feed_messages_total"
	MetricFeedDecodeErrors = "feed_decode_errors_total"
	MetricFeedSubscribers  = "feed_subscribers"
)

// Metrics exposes the counters and gauges updated by instrumented components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// NopMetrics discards every update.
func NopMetrics() Metrics {
	return nopMetrics{}
}
