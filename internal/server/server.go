// Package server exposes the estimator over HTTP for yard terminals
// and development use.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"scrapweigh/internal/estimator"
	"scrapweigh/internal/material"
)

// maxUploadBytes bounds the accepted photo payload (12MP JPEG leaves
// plenty of headroom).
const maxUploadBytes = 16 << 20

// Server wraps the estimation service with an HTTP API.
type Server struct {
	svc *estimator.Service
	log zerolog.Logger
}

// New creates a Server over an estimation service.
func New(svc *estimator.Service, log zerolog.Logger) *Server {
	return &Server{svc: svc, log: log}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/estimate", s.handleEstimate)
		r.Get("/weights", s.handleWeights)
	})
	return r
}

// ListenAndServe serves until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info().Str("addr", addr).Msg("starting estimation server")
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "scrapweigh",
	})
}

// handleEstimate accepts a multipart form: "image" (file), "material"
// (name), optional "manual_estimate" and "ground_truth" (pounds).
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	m, err := material.Parse(r.FormValue("material"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image payload")
		return
	}

	var opts estimator.PredictOptions
	if v := r.FormValue("manual_estimate"); v != "" {
		manual, err := strconv.ParseFloat(v, 64)
		if err != nil || manual < 0 {
			writeError(w, http.StatusBadRequest, "manual_estimate must be a non-negative number")
			return
		}
		opts.ManualEstimate = &manual
	}
	if v := r.FormValue("ground_truth"); v != "" {
		truth, err := strconv.ParseFloat(v, 64)
		if err != nil || truth < 0 {
			writeError(w, http.StatusBadRequest, "ground_truth must be a non-negative number")
			return
		}
		opts.GroundTruth = &truth
	}

	res, err := s.svc.PredictWeightBytes(r.Context(), data, m, opts)
	if err != nil {
		switch {
		case errors.Is(err, estimator.ErrMaterialUnknown):
			writeError(w, http.StatusBadRequest, "select a material before estimating")
		case errors.Is(err, estimator.ErrImageTooSmall):
			writeError(w, http.StatusBadRequest, "image is too small to analyze")
		case errors.Is(err, estimator.ErrInvalidImage):
			writeError(w, http.StatusBadRequest, "image could not be decoded")
		default:
			s.log.Error().Err(err).Msg("estimate failed unexpectedly")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWeights(w http.ResponseWriter, _ *http.Request) {
	weights, metrics, err := s.svc.Weights()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load weights")
		writeError(w, http.StatusInternalServerError, "failed to load weights")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"weights": weights,
		"metrics": metrics,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
