// Package ensemble orchestrates the inference backends: request-scoped
// weight computation, tier-based execution, and weighted fusion.
package ensemble

import (
	"fmt"
	"math"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/device"
	"scrapweigh/internal/preprocess"
)

// WeightTolerance is the normalization tolerance for a weight set.
const WeightTolerance = 1e-6

// Weights maps a backend name to its blending coefficient. A valid set
// is non-negative and sums to 1.0 within WeightTolerance.
type Weights map[string]float64

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Normalize returns a copy rescaled to sum to 1.0. An all-zero or empty
// set normalizes to a uniform distribution over its keys.
func (w Weights) Normalize() Weights {
	out := make(Weights, len(w))
	sum := w.Sum()
	if sum <= 0 {
		if len(w) == 0 {
			return out
		}
		uniform := 1.0 / float64(len(w))
		for k := range w {
			out[k] = uniform
		}
		return out
	}
	for k, v := range w {
		out[k] = v / sum
	}
	return out
}

// Validate checks that weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("empty weight set")
	}
	for k, v := range w {
		if v < 0 {
			return fmt.Errorf("negative weight %f for %s", v, k)
		}
	}
	if s := w.Sum(); math.Abs(s-1.0) > WeightTolerance {
		return fmt.Errorf("weights sum to %.8f, must sum to 1.0", s)
	}
	return nil
}

// Clone returns a copy of the weight set.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Static base weight per backend role. Detection carries the estimate;
// refinement roles contribute corrections.
var roleBase = map[backend.Kind]float64{
	backend.KindDetector:        0.40,
	backend.KindDepthEstimator:  0.20,
	backend.KindShapeClassifier: 0.15,
	backend.KindSynthesizer:     0.25,
}

// BaseWeights returns the role-based default weight set for a backend
// list, normalized. Used until the learning engine has persisted a
// tuned set.
func BaseWeights(backends []backend.Backend) Weights {
	w := make(Weights, len(backends))
	for _, b := range backends {
		base, ok := roleBase[b.Kind()]
		if !ok {
			base = 0.1
		}
		w[b.Name()] = base
	}
	return w.Normalize()
}

// AdjustWeights applies the per-request multiplicative adjustments from
// image characteristics and device capabilities, then renormalizes.
// The input set is not mutated.
func AdjustWeights(base Weights, backends []backend.Backend, ch preprocess.Characteristics, caps device.Capabilities) Weights {
	out := base.Clone()
	for _, b := range backends {
		w, ok := out[b.Name()]
		if !ok {
			continue
		}
		switch b.Kind() {
		case backend.KindDetector:
			if ch.HasClearObject {
				w *= 1.30
			}
		case backend.KindDepthEstimator:
			if ch.HasDepthCues {
				w *= 1.25
			}
		case backend.KindShapeClassifier:
			if ch.IsRegularShape {
				w *= 1.25
			}
		case backend.KindSynthesizer:
			// Synthesis is the heaviest stage; keep its latency share
			// bounded on hardware without GPU support.
			if !caps.GPUSupported {
				w *= 0.60
			}
		}
		out[b.Name()] = w
	}
	return out.Normalize()
}
