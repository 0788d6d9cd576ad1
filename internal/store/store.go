// Package store persists the learned ensemble state: the tuned weight
// set and per-backend rolling metrics. The learning engine is the sole
// writer; everything else reads snapshots.
package store

// BackendMetric is the persisted rolling summary for one backend.
type BackendMetric struct {
	Backend        string  `json:"backend"`
	MeanConfidence float64 `json:"mean_confidence"`
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	MeanAbsError   float64 `json:"mean_abs_error"` // vs ground truth, 0 when none seen
	SampleCount    int     `json:"sample_count"`
}

// Store is the durable key-value surface for learned ensemble state.
type Store interface {
	// LoadWeights returns the persisted weight set, or an empty map if
	// nothing has been tuned yet.
	LoadWeights() (map[string]float64, error)
	// SaveWeights atomically replaces the persisted weight set.
	SaveWeights(weights map[string]float64) error
	// LoadMetrics returns the persisted per-backend metrics.
	LoadMetrics() (map[string]BackendMetric, error)
	// SaveMetrics atomically replaces the metrics for the given backends.
	SaveMetrics(metrics []BackendMetric) error
	Close() error
}
