package backend

import (
	"context"
	"fmt"
	"time"

	"scrapweigh/internal/material"
	"scrapweigh/internal/preprocess"
	"scrapweigh/pkg/colorutil"
)

// Synthesizer cross-checks the photo's dominant color against the
// declared material and produces a color-and-light conditioned
// estimate. It is the most expensive heuristic and the first one the
// orchestrator down-weights on constrained hardware.
type Synthesizer struct{}

// NewSynthesizer creates the heuristic synthesis backend.
func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

func (s *Synthesizer) Name() string { return "heuristic_synthesizer" }
func (s *Synthesizer) Kind() Kind   { return KindSynthesizer }
func (s *Synthesizer) Cost() int    { return 4 }

func (s *Synthesizer) TensorSpec() preprocess.TensorSpec {
	return preprocess.TensorSpec{
		Name: s.Name(), Width: 224, Height: 224, Channels: 3,
		Layout: preprocess.LayoutNCHW, Source: preprocess.SourceNormalizedRGB,
	}
}

func (s *Synthesizer) Estimate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := req.Output
	profile := materialProfile(req.Material)

	// Color agreement between the photo and the declared material.
	dist := colorutil.ColorDistance(
		out.MeanR, out.MeanG, out.MeanB,
		profile.RefR, profile.RefG, profile.RefB,
	)
	match := 1 - dist/200.0
	if match < 0 {
		match = 0
	}

	// Copper and brass read as saturated warm tones; steel and aluminum
	// as near-neutral gray. A saturation mismatch halves the color trust.
	_, sat, _ := colorutil.RGBToHSV(out.MeanR, out.MeanG, out.MeanB)
	warm := req.Material == material.Copper || req.Material == material.Brass
	if (warm && sat < 30) || (!warm && sat > 90) {
		match *= 0.5
	}

	area := ObjectAreaFraction(out)
	mid := material.TypicalWeight(req.Material)

	// Blend the range midpoint toward the area-implied estimate; color
	// agreement decides how much the photo is trusted over the prior.
	areaWeight := profile.WeightMin + minf(area*2, 1)*(profile.WeightMax-profile.WeightMin)
	weight := mid*(1-match*0.6) + areaWeight*(match*0.6)

	confidence := clamp01(0.30 + 0.40*match + 0.10*out.Characteristics.EdgeDensity*5)
	factors := []string{
		fmt.Sprintf("surface color match to %s: %.0f%%", req.Material, match*100),
	}
	if match < 0.3 {
		factors = append(factors, "photo color differs from declared material")
	}

	return &Result{
		Backend:        s.Name(),
		Kind:           s.Kind(),
		Weight:         weight,
		Confidence:     confidence,
		Uncertainty:    (profile.WeightMax - profile.WeightMin) * 0.5 * (1 - confidence),
		ProcessingTime: time.Since(start),
		Factors:        factors,
	}, nil
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
