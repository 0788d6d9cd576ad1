// Package learning tracks backend performance across requests and
// retunes the persisted ensemble weights. It observes completed
// requests off the response path and is the sole writer of the
// persisted weight snapshot.
package learning

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/ensemble"
	"scrapweigh/internal/store"
)

// Options configures the learning engine.
type Options struct {
	// WindowSize bounds the per-backend sliding window.
	WindowSize int `yaml:"window_size"`
	// MinSamples is the per-backend sample count required before any
	// retune happens.
	MinSamples int `yaml:"min_samples"`
}

// DefaultOptions returns learning defaults.
func DefaultOptions() Options {
	return Options{WindowSize: 50, MinSamples: 10}
}

// Observation is one completed request as seen by the engine.
type Observation struct {
	Results           []*backend.Result
	Weights           ensemble.Weights
	OutcomeConfidence float64
	// GroundTruth is the subsequently measured actual weight, when the
	// caller has one. Feeds the accuracy metric only; it does not
	// accelerate retuning.
	GroundTruth *float64
}

// Engine maintains per-backend windows and the copy-on-write weight
// snapshot that orchestration reads.
type Engine struct {
	opts  Options
	store store.Store
	log   zerolog.Logger

	mu      sync.Mutex
	windows map[string]*window

	// snapshot holds an ensemble.Weights replaced wholesale on retune;
	// readers never see a partially updated set.
	snapshot atomic.Value

	obs  chan Observation
	done chan struct{}
	wg   sync.WaitGroup
}

// NewEngine creates the engine and loads the persisted weight snapshot.
func NewEngine(st store.Store, opts Options, log zerolog.Logger) (*Engine, error) {
	if opts.WindowSize <= 0 {
		opts.WindowSize = DefaultOptions().WindowSize
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = DefaultOptions().MinSamples
	}

	e := &Engine{
		opts:    opts,
		store:   st,
		log:     log,
		windows: make(map[string]*window),
		obs:     make(chan Observation, 64),
		done:    make(chan struct{}),
	}

	persisted, err := st.LoadWeights()
	if err != nil {
		return nil, err
	}
	weights := make(ensemble.Weights, len(persisted))
	for k, v := range persisted {
		weights[k] = v
	}
	e.snapshot.Store(weights)

	e.wg.Add(1)
	go e.run()
	return e, nil
}

// Snapshot returns the current persisted weight set. The returned map
// must be treated as immutable; it is shared between requests.
func (e *Engine) Snapshot() ensemble.Weights {
	w, _ := e.snapshot.Load().(ensemble.Weights)
	return w
}

// Observe enqueues a completed request for processing. Fire-and-forget:
// if the queue is saturated the observation is dropped rather than
// blocking the response path.
func (e *Engine) Observe(obs Observation) {
	select {
	case e.obs <- obs:
	default:
		e.log.Warn().Msg("learning queue full, observation dropped")
	}
}

// Close drains pending observations and stops the engine.
func (e *Engine) Close() {
	close(e.done)
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case obs := <-e.obs:
			e.ingest(obs)
		case <-e.done:
			for {
				select {
				case obs := <-e.obs:
					e.ingest(obs)
				default:
					return
				}
			}
		}
	}
}

// ingest records one observation and retunes if every tracked backend
// has reached the minimum sample count.
func (e *Engine) ingest(obs Observation) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range obs.Results {
		w, ok := e.windows[r.Backend]
		if !ok {
			w = newWindow(e.opts.WindowSize)
			e.windows[r.Backend] = w
		}
		s := sample{confidence: r.Confidence, latency: r.ProcessingTime}
		if obs.GroundTruth != nil {
			s.hasTruth = true
			s.absErr = math.Abs(r.Weight - *obs.GroundTruth)
		}
		w.push(s)
	}

	if e.readyToRetuneLocked() {
		e.retuneLocked()
	}
}

func (e *Engine) readyToRetuneLocked() bool {
	if len(e.windows) == 0 {
		return false
	}
	for _, w := range e.windows {
		if w.count() < e.opts.MinSamples {
			return false
		}
	}
	return true
}

// retuneLocked recomputes backend scores, persists the normalized
// weights and metrics, and swaps the snapshot. Requests already in
// flight keep the weights they started with.
func (e *Engine) retuneLocked() {
	maxLatency := time.Duration(0)
	for _, w := range e.windows {
		if l := w.meanLatency(); l > maxLatency {
			maxLatency = l
		}
	}

	scores := make(ensemble.Weights, len(e.windows))
	metrics := make([]store.BackendMetric, 0, len(e.windows))
	for name, w := range e.windows {
		normLatency := 0.0
		if maxLatency > 0 {
			normLatency = float64(w.meanLatency()) / float64(maxLatency)
		}
		scores[name] = 0.7*w.meanConfidence() + 0.3*(1-normLatency)

		metrics = append(metrics, store.BackendMetric{
			Backend:        name,
			MeanConfidence: w.meanConfidence(),
			MeanLatencyMs:  float64(w.meanLatency()) / float64(time.Millisecond),
			MeanAbsError:   w.meanAbsError(),
			SampleCount:    w.count(),
		})
	}

	weights := scores.Normalize()
	if err := weights.Validate(); err != nil {
		e.log.Error().Err(err).Msg("retune produced invalid weights, keeping previous snapshot")
		return
	}

	if err := e.store.SaveWeights(weights); err != nil {
		e.log.Error().Err(err).Msg("failed to persist retuned weights")
		return
	}
	if err := e.store.SaveMetrics(metrics); err != nil {
		e.log.Error().Err(err).Msg("failed to persist backend metrics")
	}

	e.snapshot.Store(weights)
	e.log.Info().Interface("weights", weights).Msg("ensemble weights retuned")
}
