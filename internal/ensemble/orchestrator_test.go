package ensemble

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scrapweigh/internal/backend"
	"scrapweigh/internal/device"
	"scrapweigh/internal/material"
	"scrapweigh/internal/preprocess"
)

// fakeBackend is a controllable stand-in for an inference backend.
type fakeBackend struct {
	name       string
	kind       backend.Kind
	cost       int
	weight     float64
	confidence float64
	err        error
	delay      time.Duration
	calls      int
}

func (f *fakeBackend) Name() string       { return f.name }
func (f *fakeBackend) Kind() backend.Kind { return f.kind }
func (f *fakeBackend) Cost() int          { return f.cost }

func (f *fakeBackend) TensorSpec() preprocess.TensorSpec {
	return preprocess.TensorSpec{
		Name: f.name, Width: 8, Height: 8, Channels: 1,
		Layout: preprocess.LayoutNHWC, Source: preprocess.SourceEqualizedGray,
	}
}

func (f *fakeBackend) Estimate(ctx context.Context, req *backend.Request) (*backend.Result, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &backend.Result{
		Backend:     f.name,
		Kind:        f.kind,
		Weight:      f.weight,
		Confidence:  f.confidence,
		Uncertainty: 1,
		Factors:     []string{f.name + " factor"},
	}, nil
}

func testOutput(t *testing.T) *preprocess.Output {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 224, 224))
	for y := 0; y < 224; y++ {
		for x := 0; x < 224; x++ {
			img.Set(x, y, color.RGBA{30, 30, 30, 255})
		}
	}
	for y := 60; y < 170; y++ {
		for x := 70; x < 160; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	out, err := preprocess.New(preprocess.DefaultOptions()).Run(img)
	require.NoError(t, err)
	return out
}

func fakeSet() []*fakeBackend {
	return []*fakeBackend{
		{name: "det", kind: backend.KindDetector, cost: 1, weight: 10, confidence: 0.9},
		{name: "depth", kind: backend.KindDepthEstimator, cost: 2, weight: 12, confidence: 0.6},
		{name: "shape", kind: backend.KindShapeClassifier, cost: 3, weight: 11, confidence: 0.5},
		{name: "synth", kind: backend.KindSynthesizer, cost: 4, weight: 9, confidence: 0.7},
	}
}

func asBackends(fakes []*fakeBackend) []backend.Backend {
	out := make([]backend.Backend, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func caps(tier device.Tier) device.Capabilities {
	return device.Capabilities{Tier: tier, GPUSupported: true}
}

func TestBaseWeightsNormalized(t *testing.T) {
	w := BaseWeights(asBackends(fakeSet()))
	require.NoError(t, w.Validate())
}

func TestAdjustWeightsStaysNormalized(t *testing.T) {
	backends := asBackends(fakeSet())
	base := BaseWeights(backends)

	ch := preprocess.Characteristics{HasClearObject: true, HasDepthCues: true, IsRegularShape: true}
	adjusted := AdjustWeights(base, backends, ch, device.Capabilities{GPUSupported: false})
	require.NoError(t, adjusted.Validate())

	// Clear object boosts the detector relative to its base share.
	require.Greater(t, adjusted["det"], base["det"])
	// No GPU suppresses the synthesizer.
	require.Less(t, adjusted["synth"], base["synth"])
}

func TestValidateRejectsBadSets(t *testing.T) {
	require.Error(t, Weights{}.Validate())
	require.Error(t, Weights{"a": -0.5, "b": 1.5}.Validate())
	require.Error(t, Weights{"a": 0.3, "b": 0.3}.Validate())
	require.NoError(t, Weights{"a": 0.5, "b": 0.5}.Validate())
}

func TestHighTierRunsAllBackends(t *testing.T) {
	fakes := fakeSet()
	o := New(asBackends(fakes), caps(device.TierHigh), DefaultOptions(), zerolog.Nop())

	fusion, err := o.Estimate(context.Background(), testOutput(t), material.Steel, nil)
	require.NoError(t, err)

	require.Equal(t, 4, fusion.Invocations)
	require.Len(t, fusion.Results, 4)
	require.NoError(t, fusion.Weights.Validate())
	require.Greater(t, fusion.Weight, 0.0)
	require.NotEmpty(t, fusion.Factors)
}

func TestFailedBackendExcludedAndRenormalized(t *testing.T) {
	fakes := fakeSet()
	fakes[1].err = errors.New("model load failed")
	o := New(asBackends(fakes), caps(device.TierHigh), DefaultOptions(), zerolog.Nop())

	fusion, err := o.Estimate(context.Background(), testOutput(t), material.Steel, nil)
	require.NoError(t, err)

	require.Len(t, fusion.Results, 3)
	require.NoError(t, fusion.Weights.Validate())
	_, excluded := fusion.Weights["depth"]
	require.False(t, excluded)
}

func TestTimedOutBackendExcluded(t *testing.T) {
	fakes := fakeSet()
	fakes[2].delay = time.Second
	opts := Options{Budget: 200 * time.Millisecond, ShortCircuitConfidence: 0.99}
	o := New(asBackends(fakes), caps(device.TierHigh), opts, zerolog.Nop())

	fusion, err := o.Estimate(context.Background(), testOutput(t), material.Steel, nil)
	require.NoError(t, err)

	require.Len(t, fusion.Results, 3)
	require.NoError(t, fusion.Weights.Validate())
}

func TestAllBackendsFailingReturnsEnsembleUnavailable(t *testing.T) {
	fakes := fakeSet()
	for _, f := range fakes {
		f.err = errors.New("boom")
	}
	o := New(asBackends(fakes), caps(device.TierHigh), DefaultOptions(), zerolog.Nop())

	_, err := o.Estimate(context.Background(), testOutput(t), material.Steel, nil)
	require.ErrorIs(t, err, ErrEnsembleUnavailable)
}

func TestLowTierInvokesFewerBackendsThanHigh(t *testing.T) {
	run := func(tier device.Tier) int {
		fakes := fakeSet() // first (cheapest) backend clears the threshold
		o := New(asBackends(fakes), caps(tier), DefaultOptions(), zerolog.Nop())
		fusion, err := o.Estimate(context.Background(), testOutput(t), material.Steel, nil)
		require.NoError(t, err)
		return fusion.Invocations
	}

	low := run(device.TierLow)
	high := run(device.TierHigh)
	require.Less(t, low, high)
	require.Equal(t, 1, low)
}

func TestMediumTierShortCircuits(t *testing.T) {
	fakes := fakeSet()
	o := New(asBackends(fakes), caps(device.TierMedium), DefaultOptions(), zerolog.Nop())

	fusion, err := o.Estimate(context.Background(), testOutput(t), material.Steel, nil)
	require.NoError(t, err)

	// Highest-weighted backend (detector) reports 0.9, above the 0.75
	// short-circuit threshold: nothing else runs.
	require.Equal(t, 1, fusion.Invocations)
}

func TestFusionIsWeightedMean(t *testing.T) {
	fakes := fakeSet()
	o := New(asBackends(fakes), caps(device.TierHigh), DefaultOptions(), zerolog.Nop())

	base := Weights{"det": 0.25, "depth": 0.25, "shape": 0.25, "synth": 0.25}
	out := testOutput(t)
	fusion, err := o.Estimate(context.Background(), out, material.Steel, base)
	require.NoError(t, err)

	expected := 0.0
	for _, r := range fusion.Results {
		expected += r.Weight * fusion.Weights[r.Backend]
	}
	require.InDelta(t, expected, fusion.Weight, 1e-9)
}

func TestFusionDeterministic(t *testing.T) {
	out := testOutput(t)
	run := func() *Fusion {
		o := New(asBackends(fakeSet()), caps(device.TierHigh), DefaultOptions(), zerolog.Nop())
		fusion, err := o.Estimate(context.Background(), out, material.Steel, nil)
		require.NoError(t, err)
		return fusion
	}

	a, b := run(), run()
	require.Equal(t, a.Weight, b.Weight)
	require.Equal(t, a.Factors, b.Factors)
}
