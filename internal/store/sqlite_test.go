package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "learning.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWeightsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	loaded, err := s.LoadWeights()
	require.NoError(t, err)
	require.Empty(t, loaded)

	weights := map[string]float64{"det": 0.5, "depth": 0.3, "shape": 0.2}
	require.NoError(t, s.SaveWeights(weights))

	loaded, err = s.LoadWeights()
	require.NoError(t, err)
	require.Equal(t, weights, loaded)
}

func TestSaveWeightsReplacesPrevious(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.SaveWeights(map[string]float64{"old": 1.0}))
	require.NoError(t, s.SaveWeights(map[string]float64{"det": 0.6, "depth": 0.4}))

	loaded, err := s.LoadWeights()
	require.NoError(t, err)
	require.NotContains(t, loaded, "old")
	require.Len(t, loaded, 2)
}

func TestMetricsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	metrics := []BackendMetric{
		{Backend: "det", MeanConfidence: 0.8, MeanLatencyMs: 12, SampleCount: 50},
		{Backend: "depth", MeanConfidence: 0.6, MeanLatencyMs: 30, MeanAbsError: 2.5, SampleCount: 40},
	}
	require.NoError(t, s.SaveMetrics(metrics))

	loaded, err := s.LoadMetrics()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, 0.8, loaded["det"].MeanConfidence)
	require.Equal(t, 2.5, loaded["depth"].MeanAbsError)

	// Upsert overwrites in place.
	metrics[0].MeanConfidence = 0.9
	require.NoError(t, s.SaveMetrics(metrics[:1]))
	loaded, err = s.LoadMetrics()
	require.NoError(t, err)
	require.Equal(t, 0.9, loaded["det"].MeanConfidence)
	require.Equal(t, 50, loaded["det"].SampleCount)
}
