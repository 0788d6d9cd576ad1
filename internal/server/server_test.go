package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scrapweigh/internal/config"
	"scrapweigh/internal/device"
	"scrapweigh/internal/estimator"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "learning.db")

	svc, err := estimator.New(cfg, device.Capabilities{Tier: device.TierHigh, GPUSupported: true}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return New(svc, zerolog.Nop())
}

func scrapPNG(t *testing.T) []byte {
	t.Helper()
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
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func estimateRequest(t *testing.T, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if imageData != nil {
		fw, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(imageData)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "healthy", body["status"])
}

func TestEstimateEndpoint(t *testing.T) {
	srv := testServer(t)
	req := estimateRequest(t, scrapPNG(t), map[string]string{"material": "steel"})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var res estimator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "steel", res.Material)
	require.GreaterOrEqual(t, res.Weight, 0.0)
	require.NotEmpty(t, res.RequestID)
}

func TestEstimateWithManualEstimate(t *testing.T) {
	srv := testServer(t)
	req := estimateRequest(t, scrapPNG(t), map[string]string{
		"material":        "steel",
		"manual_estimate": "30",
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var res estimator.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Contains(t, res.Factors[len(res.Factors)-1], "manual estimate")
}

func TestEstimateRejectsUnknownMaterial(t *testing.T) {
	srv := testServer(t)
	req := estimateRequest(t, scrapPNG(t), map[string]string{"material": "unobtanium"})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEstimateRejectsMissingImage(t *testing.T) {
	srv := testServer(t)
	req := estimateRequest(t, nil, map[string]string{"material": "steel"})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEstimateRejectsCorruptImage(t *testing.T) {
	srv := testServer(t)
	req := estimateRequest(t, []byte("not a png"), map[string]string{"material": "steel"})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body["error"], "decoded")
}

func TestEstimateRejectsBadManualEstimate(t *testing.T) {
	srv := testServer(t)
	req := estimateRequest(t, scrapPNG(t), map[string]string{
		"material":        "steel",
		"manual_estimate": "-4",
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeightsEndpoint(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/weights", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Weights map[string]float64 `json:"weights"`
		Metrics map[string]any     `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Weights)
}
