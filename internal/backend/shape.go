package backend

import (
	"context"
	"fmt"
	"time"

	"scrapweigh/internal/preprocess"
)

// ShapeClassifier buckets the object into a coarse form class from its
// moment descriptors and anchors the weight on the material's typical
// range scaled by a per-form factor. Forms mirror the shapes scrap
// actually arrives in: sheets, bars and pipe, wire, compact chunks.
type ShapeClassifier struct{}

// NewShapeClassifier creates the heuristic shape backend.
func NewShapeClassifier() *ShapeClassifier { return &ShapeClassifier{} }

func (s *ShapeClassifier) Name() string { return "heuristic_shape" }
func (s *ShapeClassifier) Kind() Kind   { return KindShapeClassifier }
func (s *ShapeClassifier) Cost() int    { return 3 }

func (s *ShapeClassifier) TensorSpec() preprocess.TensorSpec {
	return preprocess.TensorSpec{
		Name: s.Name(), Width: 224, Height: 224, Channels: 1,
		Layout: preprocess.LayoutNHWC, Source: preprocess.SourceEdgeMap,
	}
}

// Form classes with their weight factor relative to the material's
// typical midpoint. Elongated thin forms weigh less than compact
// chunks of the same projected size.
type formClass struct {
	name   string
	factor float64
}

func classifyForm(sm preprocess.ShapeMoments) formClass {
	switch {
	case sm.M00 == 0:
		return formClass{name: "indistinct", factor: 0.8}
	case sm.Eccentricity > 0.97:
		return formClass{name: "wire or thin rod", factor: 0.45}
	case sm.Eccentricity > 0.90:
		return formClass{name: "bar or pipe", factor: 0.70}
	case sm.Eccentricity > 0.75:
		return formClass{name: "sheet", factor: 0.85}
	default:
		return formClass{name: "compact chunk", factor: 1.1}
	}
}

func (s *ShapeClassifier) Estimate(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := req.Output
	profile := materialProfile(req.Material)

	form := classifyForm(out.Moments)
	mid := (profile.WeightMin + profile.WeightMax) / 2
	weight := mid * form.factor

	confidence := 0.30
	if out.Characteristics.IsRegularShape {
		confidence += 0.30
	}
	if out.Characteristics.HasClearObject {
		confidence += 0.15
	}
	confidence = clamp01(confidence)

	factors := []string{
		fmt.Sprintf("object form resembles %s", form.name),
	}
	if out.Characteristics.IsRegularShape {
		factors = append(factors, "regular shape simplifies volume estimate")
	}

	return &Result{
		Backend:        s.Name(),
		Kind:           s.Kind(),
		Weight:         weight,
		Confidence:     confidence,
		Uncertainty:    (profile.WeightMax - profile.WeightMin) * 0.4 * (1 - confidence),
		ProcessingTime: time.Since(start),
		Factors:        factors,
	}, nil
}
