// Package backend defines the inference backend contract and the
// built-in estimation backends. Every backend, real model or
// heuristic, satisfies the same interface and produces the same result
// shape; the orchestrator never branches on a backend's identity.
package backend

import (
	"context"
	"time"

	"scrapweigh/internal/material"
	"scrapweigh/internal/preprocess"
)

// Kind is the closed set of backend roles in the ensemble.
type Kind int

const (
	KindDetector Kind = iota
	KindDepthEstimator
	KindShapeClassifier
	KindSynthesizer
)

func (k Kind) String() string {
	switch k {
	case KindDetector:
		return "detector"
	case KindDepthEstimator:
		return "depth_estimator"
	case KindShapeClassifier:
		return "shape_classifier"
	case KindSynthesizer:
		return "synthesizer"
	default:
		return "unknown"
	}
}

// Request carries the per-call inputs for one backend invocation. The
// tensor is packed against the backend's own declared spec.
type Request struct {
	Output   *preprocess.Output
	Tensor   preprocess.Tensor
	Material material.Material
}

// Result is the output of one backend invocation. Created fresh per
// request and never mutated afterwards.
type Result struct {
	Backend        string        `json:"backend"`
	Kind           Kind          `json:"-"`
	Weight         float64       `json:"weight"`      // pounds, always >= 0
	Confidence     float64       `json:"confidence"`  // 0-1
	Uncertainty    float64       `json:"uncertainty"` // pounds
	ProcessingTime time.Duration `json:"processing_time"`
	Factors        []string      `json:"factors"`
}

// Backend is one inference strategy contributing to the ensemble.
type Backend interface {
	Name() string
	Kind() Kind
	// TensorSpec declares this backend's input contract.
	TensorSpec() preprocess.TensorSpec
	// Cost orders backends from cheapest to most expensive for the
	// progressive execution mode. Lower runs first.
	Cost() int
	Estimate(ctx context.Context, req *Request) (*Result, error)
}

// DefaultSet returns the standard heuristic ensemble in role order.
func DefaultSet() []Backend {
	return []Backend{
		NewDetector(),
		NewDepthEstimator(),
		NewShapeClassifier(),
		NewSynthesizer(),
	}
}

// ReplaceDetector returns a copy of set with the detector-role backend
// swapped for det. The result keeps exactly one KindDetector entry, in
// the original detector's position.
func ReplaceDetector(set []Backend, det Backend) []Backend {
	out := make([]Backend, len(set))
	copy(out, set)
	for i, b := range out {
		if b.Kind() == KindDetector {
			out[i] = det
			return out
		}
	}
	return append(out, det)
}

func materialProfile(m material.Material) material.Profile {
	return material.ProfileFor(m)
}

// clamp01 bounds a confidence value to the valid range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
