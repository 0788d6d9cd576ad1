package ensemble

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/device"
	"scrapweigh/internal/material"
	"scrapweigh/internal/preprocess"
)

// ErrEnsembleUnavailable signals that no backend produced a usable
// result. It is consumed by the fallback chain and never reaches the
// caller of the service entry point.
var ErrEnsembleUnavailable = errors.New("ensemble unavailable: all backends failed or timed out")

// Options configures the orchestrator.
type Options struct {
	// Budget is the total per-request inference budget. Each backend's
	// individual timeout is Budget divided by the concurrency fan-out.
	Budget time.Duration
	// ShortCircuitConfidence stops sequential/progressive execution
	// once a backend reports at least this confidence.
	ShortCircuitConfidence float64
}

// DefaultOptions returns orchestration defaults.
func DefaultOptions() Options {
	return Options{
		Budget:                 2 * time.Second,
		ShortCircuitConfidence: 0.75,
	}
}

// Fusion is the merged outcome of one orchestration call.
type Fusion struct {
	// Weight is the weighted-mean estimate in pounds.
	Weight float64
	// Results holds the surviving backend results.
	Results []*backend.Result
	// Weights is the request-scoped set renormalized over survivors.
	Weights Weights
	// Factors is the union of backend factors, ordered by each
	// backend's contributing weight.
	Factors []string
	// Invocations counts backends actually invoked, including ones
	// that failed or timed out.
	Invocations int
}

// Orchestrator dispatches the backend ensemble according to the device
// tier and fuses the surviving results.
type Orchestrator struct {
	backends []backend.Backend
	caps     device.Capabilities
	opts     Options
	log      zerolog.Logger
}

// New creates an Orchestrator over a fixed backend set.
func New(backends []backend.Backend, caps device.Capabilities, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.Budget <= 0 {
		opts.Budget = DefaultOptions().Budget
	}
	if opts.ShortCircuitConfidence <= 0 {
		opts.ShortCircuitConfidence = DefaultOptions().ShortCircuitConfidence
	}
	return &Orchestrator{backends: backends, caps: caps, opts: opts, log: log}
}

// Backends returns the orchestrated backend set.
func (o *Orchestrator) Backends() []backend.Backend { return o.backends }

// Estimate runs the ensemble on a preprocessed photo. base is the
// persisted weight snapshot for this request; characteristics and
// device adjustments are applied on top of it before execution.
func (o *Orchestrator) Estimate(ctx context.Context, out *preprocess.Output, m material.Material, base Weights) (*Fusion, error) {
	if len(o.backends) == 0 || out == nil {
		return nil, ErrEnsembleUnavailable
	}
	if len(base) == 0 {
		base = BaseWeights(o.backends)
	}
	weights := AdjustWeights(base, o.backends, out.Characteristics, o.caps)

	var results []*backend.Result
	var invoked int

	switch o.caps.Tier {
	case device.TierHigh:
		results, invoked = o.runConcurrent(ctx, out, m)
	case device.TierMedium:
		results, invoked = o.runSequential(ctx, out, m, weights)
	default:
		results, invoked = o.runProgressive(ctx, out, m)
	}

	if len(results) == 0 {
		return nil, ErrEnsembleUnavailable
	}

	return fuse(results, weights, invoked), nil
}

// perBackendTimeout divides the request budget by the fan-out so the
// whole ensemble stays inside the budget regardless of tier.
func (o *Orchestrator) perBackendTimeout(fanOut int) time.Duration {
	if fanOut < 1 {
		fanOut = 1
	}
	return o.opts.Budget / time.Duration(fanOut)
}

func (o *Orchestrator) invoke(ctx context.Context, b backend.Backend, out *preprocess.Output, m material.Material, timeout time.Duration) (*backend.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &backend.Request{
		Output:   out,
		Tensor:   out.PackTensor(b.TensorSpec()),
		Material: m,
	}

	type outcome struct {
		res *backend.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := b.Estimate(ctx, req)
		ch <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		// Late completions are discarded; the buffered channel lets the
		// goroutine exit without leaking.
		return nil, ctx.Err()
	case oc := <-ch:
		return oc.res, oc.err
	}
}

// runConcurrent dispatches every backend at once and joins.
func (o *Orchestrator) runConcurrent(ctx context.Context, out *preprocess.Output, m material.Material) ([]*backend.Result, int) {
	timeout := o.perBackendTimeout(len(o.backends))

	var mu sync.Mutex
	var results []*backend.Result

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range o.backends {
		b := b
		g.Go(func() error {
			res, err := o.invoke(gctx, b, out, m, timeout)
			if err != nil {
				o.log.Debug().Err(err).Str("backend", b.Name()).Msg("backend excluded from fusion")
				return nil // one failure must not cancel the others
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, len(o.backends)
}

// runSequential walks backends in descending weight priority and stops
// once a result clears the short-circuit confidence.
func (o *Orchestrator) runSequential(ctx context.Context, out *preprocess.Output, m material.Material, weights Weights) ([]*backend.Result, int) {
	ordered := make([]backend.Backend, len(o.backends))
	copy(ordered, o.backends)
	sort.SliceStable(ordered, func(i, j int) bool {
		return weights[ordered[i].Name()] > weights[ordered[j].Name()]
	})

	timeout := o.perBackendTimeout(1)
	var results []*backend.Result
	invoked := 0
	for _, b := range ordered {
		if ctx.Err() != nil {
			break
		}
		invoked++
		res, err := o.invoke(ctx, b, out, m, timeout)
		if err != nil {
			o.log.Debug().Err(err).Str("backend", b.Name()).Msg("backend excluded from fusion")
			continue
		}
		results = append(results, res)
		if res.Confidence >= o.opts.ShortCircuitConfidence {
			break
		}
	}
	return results, invoked
}

// runProgressive invokes the cheapest backend first and only escalates
// while the best confidence so far stays below the threshold.
func (o *Orchestrator) runProgressive(ctx context.Context, out *preprocess.Output, m material.Material) ([]*backend.Result, int) {
	ordered := make([]backend.Backend, len(o.backends))
	copy(ordered, o.backends)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cost() < ordered[j].Cost()
	})

	timeout := o.perBackendTimeout(1)
	var results []*backend.Result
	best := 0.0
	invoked := 0
	for _, b := range ordered {
		if ctx.Err() != nil {
			break
		}
		if best >= o.opts.ShortCircuitConfidence {
			break
		}
		invoked++
		res, err := o.invoke(ctx, b, out, m, timeout)
		if err != nil {
			o.log.Debug().Err(err).Str("backend", b.Name()).Msg("backend excluded from fusion")
			continue
		}
		results = append(results, res)
		if res.Confidence > best {
			best = res.Confidence
		}
	}
	return results, invoked
}

// fuse merges surviving results by weighted mean, renormalizing the
// request weights over the survivors.
func fuse(results []*backend.Result, weights Weights, invoked int) *Fusion {
	// Fixed summation order keeps fusion bit-for-bit deterministic
	// regardless of concurrent completion order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Backend < results[j].Backend
	})

	survivors := make(Weights, len(results))
	for _, r := range results {
		survivors[r.Backend] = weights[r.Backend]
	}
	survivors = survivors.Normalize()

	sum := 0.0
	for _, r := range results {
		sum += r.Weight * survivors[r.Backend]
	}

	// Factor union, strongest contributor first, top two per backend.
	ordered := make([]*backend.Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return survivors[ordered[i].Backend] > survivors[ordered[j].Backend]
	})
	var factors []string
	seen := map[string]bool{}
	for _, r := range ordered {
		limit := 2
		for _, f := range r.Factors {
			if limit == 0 {
				break
			}
			if !seen[f] {
				seen[f] = true
				factors = append(factors, f)
				limit--
			}
		}
	}

	return &Fusion{
		Weight:      sum,
		Results:     results,
		Weights:     survivors,
		Factors:     factors,
		Invocations: invoked,
	}
}
