package fallback

import (
	"context"
	"fmt"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/calibrate"
	"scrapweigh/internal/ensemble"
	"scrapweigh/internal/material"
)

// Strategy names, as surfaced on predictions. The UI layer keys its
// degraded-confidence affordances off these.
const (
	StrategyEnsembleInference     = "EnsembleInference"
	StrategyEnhancedHeuristics    = "EnhancedHeuristics"
	StrategyStatisticalEstimation = "StatisticalEstimation"
	StrategyGuaranteedDefault     = "GuaranteedDefault"
)

// Confidence ceilings per strategy, strictly decreasing down the chain.
const (
	ceilingEnsemble    = 1.0
	ceilingHeuristics  = 0.65
	ceilingStatistical = 0.45
	defaultConfidence  = 0.15
	defaultWeightLb    = 5.0
)

// EnsembleInference is the primary strategy: full orchestration plus
// calibration.
type EnsembleInference struct {
	orchestrator *ensemble.Orchestrator
	calibrator   *calibrate.Calibrator
	// baseWeights returns the persisted snapshot for this request.
	baseWeights func() ensemble.Weights
}

// NewEnsembleInference wires the primary strategy. baseWeights may be
// nil, in which case role defaults apply.
func NewEnsembleInference(o *ensemble.Orchestrator, c *calibrate.Calibrator, baseWeights func() ensemble.Weights) *EnsembleInference {
	if baseWeights == nil {
		baseWeights = func() ensemble.Weights { return nil }
	}
	return &EnsembleInference{orchestrator: o, calibrator: c, baseWeights: baseWeights}
}

func (e *EnsembleInference) Name() string     { return StrategyEnsembleInference }
func (e *EnsembleInference) Ceiling() float64 { return ceilingEnsemble }

func (e *EnsembleInference) Estimate(ctx context.Context, in *Input) (*Prediction, error) {
	fusion, err := e.orchestrator.Estimate(ctx, in.Output, in.Material, e.baseWeights())
	if err != nil {
		return nil, err
	}

	return &Prediction{
		Weight:     fusion.Weight,
		Confidence: e.calibrator.Calibrate(fusion.Results, fusion.Weights),
		Factors:    fusion.Factors,
		Ensemble:   fusion,
	}, nil
}

// EnhancedHeuristics runs the two cheapest heuristic backends inline,
// no orchestration, and averages them. First degradation step when the
// ensemble is unavailable.
type EnhancedHeuristics struct {
	detector *backend.Detector
	shape    *backend.ShapeClassifier
}

// NewEnhancedHeuristics creates the heuristic fallback strategy.
func NewEnhancedHeuristics() *EnhancedHeuristics {
	return &EnhancedHeuristics{detector: backend.NewDetector(), shape: backend.NewShapeClassifier()}
}

func (h *EnhancedHeuristics) Name() string     { return StrategyEnhancedHeuristics }
func (h *EnhancedHeuristics) Ceiling() float64 { return ceilingHeuristics }

func (h *EnhancedHeuristics) Estimate(ctx context.Context, in *Input) (*Prediction, error) {
	if in.Output == nil {
		return nil, fmt.Errorf("no preprocessed image available")
	}

	req := func(b backend.Backend) *backend.Request {
		return &backend.Request{
			Output:   in.Output,
			Tensor:   in.Output.PackTensor(b.TensorSpec()),
			Material: in.Material,
		}
	}

	det, err := h.detector.Estimate(ctx, req(h.detector))
	if err != nil {
		return nil, fmt.Errorf("heuristic detector failed: %w", err)
	}
	shp, err := h.shape.Estimate(ctx, req(h.shape))
	if err != nil {
		return nil, fmt.Errorf("heuristic shape classifier failed: %w", err)
	}

	factors := append([]string{}, det.Factors...)
	factors = append(factors, shp.Factors...)
	factors = append(factors, "estimated without full model ensemble")

	return &Prediction{
		Weight:     (det.Weight + shp.Weight) / 2,
		Confidence: (det.Confidence + shp.Confidence) / 2,
		Factors:    factors,
	}, nil
}

// StatisticalEstimation falls back to per-material averages. Needs only
// the material hint, so it survives a broken preprocessing output.
type StatisticalEstimation struct{}

// NewStatisticalEstimation creates the statistical fallback strategy.
func NewStatisticalEstimation() *StatisticalEstimation { return &StatisticalEstimation{} }

func (s *StatisticalEstimation) Name() string     { return StrategyStatisticalEstimation }
func (s *StatisticalEstimation) Ceiling() float64 { return ceilingStatistical }

func (s *StatisticalEstimation) Estimate(ctx context.Context, in *Input) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile := material.ProfileFor(in.Material)

	return &Prediction{
		Weight:     material.TypicalWeight(in.Material),
		Confidence: 0.40,
		Factors: []string{
			fmt.Sprintf("statistical average for %s scrap (%.0f-%.0f lb typical)",
				in.Material, profile.WeightMin, profile.WeightMax),
			"image analysis unavailable for this estimate",
		},
	}, nil
}

// GuaranteedDefault terminates the chain. It never fails and reports a
// fixed low-confidence placeholder.
type GuaranteedDefault struct{}

// NewGuaranteedDefault creates the terminal strategy.
func NewGuaranteedDefault() *GuaranteedDefault { return &GuaranteedDefault{} }

func (g *GuaranteedDefault) Name() string     { return StrategyGuaranteedDefault }
func (g *GuaranteedDefault) Ceiling() float64 { return defaultConfidence }

func (g *GuaranteedDefault) Estimate(_ context.Context, _ *Input) (*Prediction, error) {
	return &Prediction{
		Weight:     defaultWeightLb,
		Confidence: defaultConfidence,
		Factors: []string{
			"estimation degraded to default placeholder",
			"weigh manually for an accurate value",
		},
	}, nil
}
