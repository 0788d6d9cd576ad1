// Package calibrate turns per-model and inter-model uncertainty into a
// single confidence score for the fused estimate.
package calibrate

import (
	"math"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/ensemble"
)

// Params are the calibration constants. They are tunable — the
// defaults carry over from the deployed app pending validation against
// ground-truth weight data.
type Params struct {
	// EpistemicWeight scales the inter-model disagreement term.
	EpistemicWeight float64 `yaml:"epistemic_weight"`
	// AleatoricWeight scales the models' own stated uncertainty.
	// Weighted higher: per-observation data quality is the harder
	// signal to fake.
	AleatoricWeight float64 `yaml:"aleatoric_weight"`
	// Scale bounds confidence degradation for large absolute weights,
	// so a few pounds of disagreement does not collapse confidence.
	Scale float64 `yaml:"scale"`
}

// DefaultParams returns the deployed calibration constants.
func DefaultParams() Params {
	return Params{
		EpistemicWeight: 0.3,
		AleatoricWeight: 0.7,
		Scale:           20,
	}
}

// Calibrator computes calibrated confidence scores.
type Calibrator struct {
	params Params
}

// New creates a Calibrator. Zero-valued params fall back to defaults.
func New(params Params) *Calibrator {
	def := DefaultParams()
	if params.EpistemicWeight <= 0 && params.AleatoricWeight <= 0 {
		params.EpistemicWeight = def.EpistemicWeight
		params.AleatoricWeight = def.AleatoricWeight
	}
	if params.Scale <= 0 {
		params.Scale = def.Scale
	}
	return &Calibrator{params: params}
}

// Calibrate combines pairwise disagreement (epistemic) with the
// weighted stated uncertainties (aleatoric) and maps the blend into a
// confidence in [0, 1].
func (c *Calibrator) Calibrate(results []*backend.Result, weights ensemble.Weights) float64 {
	if len(results) == 0 {
		return 0
	}

	epistemic := 0.0
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			diff := math.Abs(results[i].Weight - results[j].Weight)
			epistemic += diff * weights[results[i].Backend] * weights[results[j].Backend]
		}
	}

	aleatoric := 0.0
	for _, r := range results {
		aleatoric += r.Uncertainty * weights[r.Backend]
	}

	combined := c.params.EpistemicWeight*epistemic + c.params.AleatoricWeight*aleatoric
	confidence := 1.0 / (1.0 + combined/c.params.Scale)

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
