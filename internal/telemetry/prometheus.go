package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Metrics on a dedicated registry. Keys ending in
// "_total" become counters; every other key becomes a gauge. Collectors are
// created on first use.
type Prometheus struct {
	namespace string
	registry  *prometheus.Registry

	mu       sync.Mutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

// NewPrometheus returns metrics registered under namespace.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
		counters:  make(map[string]prometheus.Counter),
		gauges:    make(map[string]prometheus.Gauge),
	}
}

// Add increments the counter for key.
func (p *Prometheus) Add(key string, delta uint64) {
	p.counter(key).Add(float64(delta))
}

// Store sets the gauge for key.
func (p *Prometheus) Store(key string, value uint64) {
	p.gauge(key).Set(float64(value))
}

func (p *Prometheus) counter(key string) prometheus.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[key]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      key,
		Help:      "Snapshot interpolation counter " + key + ".",
	})
	p.registry.MustRegister(c)
	p.counters[key] = c
	return c
}

func (p *Prometheus) gauge(key string) prometheus.Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[key]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      key,
		Help:      "Snapshot interpolation gauge " + key + ".",
	})
	p.registry.MustRegister(g)
	p.gauges[key] = g
	return g
}

// Registry exposes the underlying registry, mostly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
