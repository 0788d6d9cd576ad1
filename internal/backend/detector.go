package backend

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"scrapweigh/internal/preprocess"
)

// Detector estimates weight from the apparent size of the scrap object
// in frame. It assumes the metallic piece is brighter than its
// background, the same assumption the photo guidelines enforce.
type Detector struct{}

// NewDetector creates the heuristic detector backend.
func NewDetector() *Detector { return &Detector{} }

func (d *Detector) Name() string { return "heuristic_detector" }
func (d *Detector) Kind() Kind   { return KindDetector }
func (d *Detector) Cost() int    { return 1 }

func (d *Detector) TensorSpec() preprocess.TensorSpec {
	return preprocess.TensorSpec{
		Name: d.Name(), Width: 224, Height: 224, Channels: 3,
		Layout: preprocess.LayoutNHWC, Source: preprocess.SourceNormalizedRGB,
	}
}

func (d *Detector) Estimate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := req.Output
	ch := out.Characteristics

	area := ObjectAreaFraction(out)
	profile := materialProfile(req.Material)

	// Map area fraction onto the material's typical weight range. An
	// object filling half the frame reaches the top of the range.
	fill := area * 2
	if fill > 1 {
		fill = 1
	}
	weight := profile.WeightMin + fill*(profile.WeightMax-profile.WeightMin)

	confidence := 0.35
	factors := make([]string, 0, 3)
	if ch.HasClearObject {
		confidence += 0.30
		factors = append(factors, "clear object outline detected")
	} else {
		factors = append(factors, "low object distinctiveness in frame")
	}
	confidence += ch.EdgeDensity * 1.5
	confidence = clamp01(confidence)
	if confidence > 0.9 {
		confidence = 0.9
	}
	factors = append(factors, fmt.Sprintf("object covers ~%.0f%% of frame", area*100))

	return &Result{
		Backend:        d.Name(),
		Kind:           d.Kind(),
		Weight:         weight,
		Confidence:     confidence,
		Uncertainty:    (profile.WeightMax - profile.WeightMin) * (1 - confidence) / 2,
		ProcessingTime: time.Since(start),
		Factors:        factors,
	}, nil
}

// ObjectAreaFraction estimates how much of the frame the object covers:
// the fraction of pixels clearly brighter than the scene average. A
// flat image has no such pixels and scores near zero.
func ObjectAreaFraction(out *preprocess.Output) float64 {
	mean := stat.Mean(out.Gray.Pix, nil)
	std := stat.StdDev(out.Gray.Pix, nil)
	if std < 5 {
		return 0
	}
	threshold := mean + 0.5*std
	count := 0
	for _, v := range out.Gray.Pix {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(out.Gray.Pix))
}
