// Package config loads estimator configuration from a YAML file, with
// every tunable carrying a working default.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"scrapweigh/internal/calibrate"
	"scrapweigh/internal/learning"
)

// Duration wraps time.Duration so YAML accepts "500ms"-style values.
type Duration time.Duration

// UnmarshalYAML parses either a duration string or a nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full estimator configuration.
type Config struct {
	// Analysis resolution (square edge, pixels).
	Resolution int `yaml:"resolution"`
	// Minimum accepted source image edge.
	MinImageDimension int `yaml:"min_image_dimension"`

	CLAHE struct {
		BlockSize int     `yaml:"block_size"`
		ClipLimit float64 `yaml:"clip_limit"`
	} `yaml:"clahe"`

	// Total per-request inference budget; each backend gets a share.
	RequestBudget Duration `yaml:"request_budget"`
	// Confidence at which sequential/progressive execution stops early.
	ShortCircuitConfidence float64 `yaml:"short_circuit_confidence"`

	Calibration calibrate.Params `yaml:"calibration"`
	Learning    learning.Options `yaml:"learning"`

	// StorePath is the SQLite file holding learned ensemble state.
	StorePath string `yaml:"store_path"`

	// Optional neural detector; when unset the heuristic detector runs.
	DNNModelPath  string `yaml:"dnn_model_path"`
	DNNConfigPath string `yaml:"dnn_config_path"`

	// HTTP listen address for serve mode.
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Resolution:             224,
		MinImageDimension:      32,
		RequestBudget:          Duration(2 * time.Second),
		ShortCircuitConfidence: 0.75,
		Calibration:            calibrate.DefaultParams(),
		Learning:               learning.DefaultOptions(),
		StorePath:              "scrapweigh.db",
		ListenAddr:             ":8080",
	}
	cfg.CLAHE.BlockSize = 16
	cfg.CLAHE.ClipLimit = 2.0
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
