package estimator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scrapweigh/internal/config"
	"scrapweigh/internal/device"
	"scrapweigh/internal/material"
)

func testService(t *testing.T, tier device.Tier) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "learning.db")

	s, err := New(cfg, device.Capabilities{Tier: tier, GPUSupported: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func grayPhoto(level uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 224, 224))
	for y := 0; y < 224; y++ {
		for x := 0; x < 224; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

func scrapPhoto() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{35, 32, 30, 255})
		}
	}
	for y := 60; y < 180; y++ {
		for x := 100; x < 220; x++ {
			img.Set(x, y, color.RGBA{135, 132, 128, 255})
		}
	}
	return img
}

func TestPredictWeightBasicContract(t *testing.T) {
	s := testService(t, device.TierHigh)

	res, err := s.PredictWeight(context.Background(), scrapPhoto(), material.Steel, PredictOptions{})
	require.NoError(t, err)

	require.GreaterOrEqual(t, res.Weight, 0.0)
	require.GreaterOrEqual(t, res.Confidence, 0.0)
	require.LessOrEqual(t, res.Confidence, 1.0)
	require.NotEmpty(t, res.RequestID)
	require.Equal(t, "steel", res.Material)
	require.NotEmpty(t, res.Strategy)
	require.NotEmpty(t, res.Factors)
}

func TestUnknownMaterialRejected(t *testing.T) {
	s := testService(t, device.TierHigh)

	_, err := s.PredictWeight(context.Background(), scrapPhoto(), material.Unknown, PredictOptions{})
	require.ErrorIs(t, err, ErrMaterialUnknown)
}

func TestZeroByteImageIsInvalid(t *testing.T) {
	s := testService(t, device.TierHigh)

	_, err := s.PredictWeightBytes(context.Background(), nil, material.Steel, PredictOptions{})
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = s.PredictWeightBytes(context.Background(), []byte{}, material.Steel, PredictOptions{})
	require.ErrorIs(t, err, ErrInvalidImage)
}

func TestTooSmallImageRejected(t *testing.T) {
	s := testService(t, device.TierHigh)

	tiny := image.NewRGBA(image.Rect(0, 0, 10, 10))
	_, err := s.PredictWeight(context.Background(), tiny, material.Steel, PredictOptions{})
	require.ErrorIs(t, err, ErrImageTooSmall)
}

func TestPredictionIsIdempotent(t *testing.T) {
	s := testService(t, device.TierHigh)
	img := scrapPhoto()

	a, err := s.PredictWeight(context.Background(), img, material.Copper, PredictOptions{})
	require.NoError(t, err)
	b, err := s.PredictWeight(context.Background(), img, material.Copper, PredictOptions{})
	require.NoError(t, err)

	require.Equal(t, a.Weight, b.Weight)
	require.Equal(t, a.Confidence, b.Confidence)
	require.Equal(t, a.Strategy, b.Strategy)
}

func TestUniformGrayLowConfidence(t *testing.T) {
	s := testService(t, device.TierHigh)

	res, err := s.PredictWeight(context.Background(), grayPhoto(128), material.Steel, PredictOptions{})
	require.NoError(t, err)

	require.Less(t, res.Confidence, 0.75)
	require.Contains(t, res.Factors, "low object distinctiveness in frame")
	require.NotEmpty(t, res.Suggestions)
}

func TestManualEstimateBlended(t *testing.T) {
	s := testService(t, device.TierHigh)
	manual := 30.0

	plain, err := s.PredictWeight(context.Background(), scrapPhoto(), material.Steel, PredictOptions{})
	require.NoError(t, err)
	blended, err := s.PredictWeight(context.Background(), scrapPhoto(), material.Steel, PredictOptions{ManualEstimate: &manual})
	require.NoError(t, err)

	require.InDelta(t, 0.8*plain.Weight+0.2*manual, blended.Weight, 1e-9)
	require.Contains(t, blended.Factors, "blended with manual estimate of 30.0 lb")
}

func TestPredictWeightBytesRoundTrip(t *testing.T) {
	s := testService(t, device.TierHigh)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, scrapPhoto()))

	res, err := s.PredictWeightBytes(context.Background(), buf.Bytes(), material.Brass, PredictOptions{})
	require.NoError(t, err)
	require.Equal(t, "brass", res.Material)
	require.GreaterOrEqual(t, res.Weight, 0.0)
}

func TestWeightsSnapshotAccessible(t *testing.T) {
	s := testService(t, device.TierHigh)

	_, metrics, err := s.Weights()
	require.NoError(t, err)
	require.Empty(t, metrics) // nothing observed yet
}
