package interp

// Metric keys reported by the engine. Keys ending in _total are counters.
const (
	MetricSnapshotsAdded       = "snapshots_added_total"
	MetricSnapshotsEvicted     = "snapshots_evicted_total"
	MetricInterpolations       = "interpolations_total"
	MetricInterpolationStarved = "interpolation_starved_total"
	MetricVaultSize            = "vault_size"
)

// Metrics receives engine counters and gauges.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}
