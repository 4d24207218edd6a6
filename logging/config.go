package logging

import (
	"maps"
	"time"
)

// Config tunes the Router and the sinks the process builds for it.
type Config struct {
	// QueueSize bounds the number of events waiting for dispatch. Publishing
	// into a full queue drops the event.
	QueueSize        int
	MinimumSeverity  Severity
	Fields           map[string]any
	DropWarnInterval time.Duration
	Console          ConsoleConfig
	JSON             JSONConfig
}

// JSONConfig enables the NDJSON sink when Path is set.
type JSONConfig struct {
	Path          string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

const (
	defaultQueueSize = 256
	minSinkBacklog   = 32
	maxSinkBacklog   = 1024
)

func DefaultConfig() Config {
	return Config{
		QueueSize:        defaultQueueSize,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON:             JSONConfig{FlushInterval: 2 * time.Second},
	}
}

// JSONEnabled reports whether an NDJSON file sink is configured.
func (c Config) JSONEnabled() bool {
	return c.JSON.Path != ""
}

func (c Config) normalized() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.DropWarnInterval <= 0 {
		c.DropWarnInterval = 5 * time.Second
	}
	c.Fields = maps.Clone(c.Fields)
	return c
}

func (c Config) sinkBacklog() int {
	return min(max(c.QueueSize, minSinkBacklog), maxSinkBacklog)
}
