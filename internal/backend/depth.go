package backend

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"scrapweigh/internal/preprocess"
)

// referenceVolumeIn3 is the assumed volume in cubic inches of an object
// filling the whole frame at typical photo distance. Scales the
// area×thickness proxy into a density-based weight.
const referenceVolumeIn3 = 160.0

// DepthEstimator refines the area-based estimate with a thickness proxy
// derived from shading. Lit tops and shadowed undersides indicate a
// thicker piece; a flat sheet shades almost uniformly.
type DepthEstimator struct{}

// NewDepthEstimator creates the heuristic depth backend.
func NewDepthEstimator() *DepthEstimator { return &DepthEstimator{} }

func (d *DepthEstimator) Name() string { return "heuristic_depth" }
func (d *DepthEstimator) Kind() Kind   { return KindDepthEstimator }
func (d *DepthEstimator) Cost() int    { return 2 }

func (d *DepthEstimator) TensorSpec() preprocess.TensorSpec {
	return preprocess.TensorSpec{
		Name: d.Name(), Width: 112, Height: 112, Channels: 1,
		Layout: preprocess.LayoutNCHW, Source: preprocess.SourceEqualizedGray,
	}
}

func (d *DepthEstimator) Estimate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := req.Output
	profile := materialProfile(req.Material)

	area := ObjectAreaFraction(out)
	thickness := shadingThickness(out)

	// Volume proxy: projected area raised to 3/2 approximates the
	// missing dimension, scaled by the shading-derived thickness.
	volume := math.Pow(area, 1.5) * thickness * referenceVolumeIn3
	weight := profile.DensityLbIn3 * volume
	if weight < profile.WeightMin*0.25 {
		weight = profile.WeightMin * 0.25
	}

	confidence := 0.30
	factors := []string{fmt.Sprintf("estimated thickness factor %.2f", thickness)}
	if out.Characteristics.HasDepthCues {
		confidence += 0.35
		factors = append(factors, "shading indicates object depth")
	} else {
		factors = append(factors, "weak depth cues, thickness uncertain")
	}
	confidence = clamp01(confidence)

	return &Result{
		Backend:        d.Name(),
		Kind:           d.Kind(),
		Weight:         weight,
		Confidence:     confidence,
		Uncertainty:    weight * (1 - confidence),
		ProcessingTime: time.Since(start),
		Factors:        factors,
	}, nil
}

// shadingThickness derives a 0.5-2.0 thickness multiplier from the
// vertical luminance split of the equalized image.
func shadingThickness(out *preprocess.Output) float64 {
	lum := out.Gray
	third := lum.H / 3
	if third == 0 {
		return 1
	}
	top := stat.Mean(lum.Pix[:third*lum.W], nil)
	bottom := stat.Mean(lum.Pix[(lum.H-third)*lum.W:], nil)
	shading := math.Abs(top-bottom) / 255.0

	t := 0.5 + 3*shading
	if t > 2 {
		t = 2
	}
	return t
}
