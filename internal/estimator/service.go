// Package estimator exposes the single estimation entry point: photo in,
// calibrated weight prediction out. It wires preprocessing, the backend
// ensemble, calibration, the fallback chain, and the learning engine.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/calibrate"
	"scrapweigh/internal/config"
	"scrapweigh/internal/device"
	"scrapweigh/internal/ensemble"
	"scrapweigh/internal/fallback"
	"scrapweigh/internal/imageio"
	"scrapweigh/internal/learning"
	"scrapweigh/internal/material"
	"scrapweigh/internal/preprocess"
	"scrapweigh/internal/store"
)

// ErrMaterialUnknown rejects prediction before a concrete material has
// been chosen.
var ErrMaterialUnknown = errors.New("material must be selected before estimation")

// Re-exported preprocessing sentinels so callers handle input errors
// without importing the pipeline package.
var (
	ErrInvalidImage  = preprocess.ErrInvalidImage
	ErrImageTooSmall = preprocess.ErrImageTooSmall
)

// Result is the caller-facing weight prediction.
type Result struct {
	RequestID   string        `json:"request_id"`
	Material    string        `json:"material"`
	Weight      float64       `json:"weight_lb"`
	Confidence  float64       `json:"confidence"`
	Factors     []string      `json:"factors"`
	Suggestions []string      `json:"suggestions"`
	IsFallback  bool          `json:"is_fallback"`
	Strategy    string        `json:"strategy"`
	Elapsed     time.Duration `json:"elapsed"`
}

// PredictOptions carries the optional per-request inputs.
type PredictOptions struct {
	// ManualEstimate is a caller-entered weight blended in as a weak
	// prior and reported as a factor.
	ManualEstimate *float64
	// GroundTruth is a measured actual weight, fed to the learning
	// engine's accuracy metric when present.
	GroundTruth *float64
}

// Service is the estimation facade. Safe for concurrent use; all
// per-request state is request-scoped.
type Service struct {
	cfg      config.Config
	caps     device.Capabilities
	pre      *preprocess.Preprocessor
	chain    *fallback.Chain
	engine   *learning.Engine
	store    store.Store
	log      zerolog.Logger
	dnn      *backend.DNNDetector
	backends []backend.Backend
}

// New builds a Service from configuration. The device capabilities are
// probed once by the caller and passed in as data.
func New(cfg config.Config, caps device.Capabilities, log zerolog.Logger) (*Service, error) {
	st, err := store.NewSQLite(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open learning store: %w", err)
	}

	engine, err := learning.NewEngine(st, cfg.Learning, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to start learning engine: %w", err)
	}

	s := &Service{
		cfg:    cfg,
		caps:   caps,
		engine: engine,
		store:  st,
		log:    log,
	}

	s.pre = preprocess.New(preprocess.Options{
		Resolution:     cfg.Resolution,
		MinDimension:   cfg.MinImageDimension,
		CLAHEBlockSize: cfg.CLAHE.BlockSize,
		CLAHEClipLimit: cfg.CLAHE.ClipLimit,
	})

	s.backends = backend.DefaultSet()
	if cfg.DNNModelPath != "" {
		dnn, err := backend.NewDNNDetector(cfg.DNNModelPath, cfg.DNNConfigPath)
		if err != nil {
			log.Warn().Err(err).Msg("neural detector unavailable, using heuristic detector")
		} else {
			s.dnn = dnn
			s.backends = backend.ReplaceDetector(s.backends, dnn)
		}
	}

	orchestrator := ensemble.New(s.backends, caps, ensemble.Options{
		Budget:                 cfg.RequestBudget.Std(),
		ShortCircuitConfidence: cfg.ShortCircuitConfidence,
	}, log)
	calibrator := calibrate.New(cfg.Calibration)

	s.chain = fallback.NewChain(log,
		fallback.NewEnsembleInference(orchestrator, calibrator, engine.Snapshot),
		fallback.NewEnhancedHeuristics(),
		fallback.NewStatisticalEstimation(),
		fallback.NewGuaranteedDefault(),
	)

	return s, nil
}

// Close releases the learning engine and store.
func (s *Service) Close() error {
	s.engine.Close()
	if s.dnn != nil {
		s.dnn.Close()
	}
	return s.store.Close()
}

// PredictWeight estimates the weight of the scrap in a decoded photo.
// The only errors it returns are ErrMaterialUnknown, ErrInvalidImage,
// and ErrImageTooSmall; every inference failure degrades through the
// fallback chain into a valid low-confidence result.
func (s *Service) PredictWeight(ctx context.Context, img image.Image, m material.Material, opts PredictOptions) (*Result, error) {
	start := time.Now()
	if m == material.Unknown {
		return nil, ErrMaterialUnknown
	}

	out, err := s.pre.Run(img)
	if err != nil {
		// Input errors are the caller's to handle; no estimate can be
		// made from an unusable photo.
		return nil, err
	}

	pred := s.chain.Run(ctx, &fallback.Input{Output: out, Material: m})

	if opts.ManualEstimate != nil && *opts.ManualEstimate >= 0 {
		pred.Weight = blendManual(pred.Weight, *opts.ManualEstimate)
		pred.Factors = append(pred.Factors,
			fmt.Sprintf("blended with manual estimate of %.1f lb", *opts.ManualEstimate))
	}

	result := &Result{
		RequestID:   uuid.NewString(),
		Material:    m.String(),
		Weight:      pred.Weight,
		Confidence:  pred.Confidence,
		Factors:     pred.Factors,
		Suggestions: suggestions(out.Characteristics, pred),
		IsFallback:  pred.IsFallback,
		Strategy:    pred.Strategy,
		Elapsed:     time.Since(start),
	}

	// Abandoned requests are not observed: their late results must not
	// steer future weights.
	if ctx.Err() == nil && pred.Ensemble != nil {
		s.engine.Observe(learning.Observation{
			Results:           pred.Ensemble.Results,
			Weights:           pred.Ensemble.Weights,
			OutcomeConfidence: pred.Confidence,
			GroundTruth:       opts.GroundTruth,
		})
	}

	s.log.Info().
		Str("request_id", result.RequestID).
		Str("material", result.Material).
		Float64("weight_lb", result.Weight).
		Float64("confidence", result.Confidence).
		Str("strategy", result.Strategy).
		Bool("fallback", result.IsFallback).
		Dur("elapsed", result.Elapsed).
		Msg("weight predicted")

	return result, nil
}

// PredictWeightBytes decodes an image payload and predicts. An empty or
// undecodable payload maps to ErrInvalidImage.
func (s *Service) PredictWeightBytes(ctx context.Context, data []byte, m material.Material, opts PredictOptions) (*Result, error) {
	if m == material.Unknown {
		return nil, ErrMaterialUnknown
	}
	img, err := imageio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return s.PredictWeight(ctx, img, m, opts)
}

// Weights returns the current persisted ensemble weight snapshot and
// the per-backend metrics backing it.
func (s *Service) Weights() (ensemble.Weights, map[string]store.BackendMetric, error) {
	metrics, err := s.store.LoadMetrics()
	if err != nil {
		return nil, nil, err
	}
	return s.engine.Snapshot(), metrics, nil
}

// blendManual folds a manual estimate in as a weak prior.
func blendManual(estimated, manual float64) float64 {
	return 0.8*estimated + 0.2*manual
}
