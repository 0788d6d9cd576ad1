// Package fallback provides the layered estimation chain: an ordered
// list of strategies walked by a single loop that advances on failure.
// The last strategy cannot fail, so every call terminates in a valid
// prediction and no inference error ever reaches the caller.
package fallback

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"scrapweigh/internal/ensemble"
	"scrapweigh/internal/material"
	"scrapweigh/internal/preprocess"
)

// Input is the shared input every strategy receives. Advancing to the
// next strategy reuses the same input.
type Input struct {
	Output   *preprocess.Output
	Material material.Material
}

// Prediction is the chain's output: the caller-facing estimate.
type Prediction struct {
	Weight     float64  `json:"weight"`     // pounds, >= 0
	Confidence float64  `json:"confidence"` // 0-1, capped by the producing strategy
	Factors    []string `json:"factors"`
	IsFallback bool     `json:"is_fallback"`
	Strategy   string   `json:"strategy"`

	// Ensemble carries the fusion details when the full ensemble
	// produced this prediction; nil on degraded paths. Consumed by the
	// learning engine's observation, not serialized to callers.
	Ensemble *ensemble.Fusion `json:"-"`
}

// Strategy is one estimation approach with a fixed confidence ceiling.
// Ceilings decrease monotonically along the chain so a degraded result
// can never claim more certainty than a healthier one.
type Strategy interface {
	Name() string
	Ceiling() float64
	Estimate(ctx context.Context, in *Input) (*Prediction, error)
}

// Chain walks strategies in order until one succeeds.
type Chain struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewChain builds a chain over the given strategies. The caller must
// place a non-failing strategy last.
func NewChain(log zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, log: log}
}

// Run executes the chain. Never returns nil: if every strategy fails,
// which a correctly configured chain cannot do, a guaranteed default is
// synthesized in place.
func (c *Chain) Run(ctx context.Context, in *Input) *Prediction {
	for i, s := range c.strategies {
		pred, err := runStrategy(ctx, s, in)
		if err != nil {
			c.log.Warn().Err(err).
				Str("strategy", s.Name()).
				Msg("estimation strategy failed, advancing")
			continue
		}

		pred.Strategy = s.Name()
		pred.IsFallback = i > 0
		if pred.Confidence > s.Ceiling() {
			pred.Confidence = s.Ceiling()
		}
		if pred.Confidence < 0 {
			pred.Confidence = 0
		}
		if pred.Weight < 0 {
			pred.Weight = 0
		}
		return pred
	}

	c.log.Error().Msg("all strategies failed, synthesizing default")
	pred, _ := NewGuaranteedDefault().Estimate(ctx, in)
	pred.Strategy = StrategyGuaranteedDefault
	pred.IsFallback = true
	return pred
}

// runStrategy converts a strategy panic into an advance signal so one
// misbehaving implementation cannot take down the whole chain.
func runStrategy(ctx context.Context, s Strategy, in *Input) (pred *Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			pred = nil
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Estimate(ctx, in)
}
