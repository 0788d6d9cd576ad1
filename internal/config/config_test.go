package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 224, cfg.Resolution)
	require.Equal(t, 0.7, cfg.Calibration.AleatoricWeight)
	require.Equal(t, 50, cfg.Learning.WindowSize)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
resolution: 128
request_budget: 500ms
clahe:
  clip_limit: 3.5
calibration:
  scale: 10
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.Resolution)
	require.Equal(t, 500*time.Millisecond, cfg.RequestBudget.Std())
	require.Equal(t, 3.5, cfg.CLAHE.ClipLimit)
	require.Equal(t, 10.0, cfg.Calibration.Scale)
	// Untouched fields keep their defaults.
	require.Equal(t, 16, cfg.CLAHE.BlockSize)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
