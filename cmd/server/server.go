package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/liamcoop/churn/artifacts"
	"github.com/liamcoop/churn/auth"
	"github.com/liamcoop/churn/config"
	"github.com/liamcoop/churn/customer"
	"github.com/liamcoop/churn/inference"
	"github.com/liamcoop/churn/internal/logger"
	"github.com/liamcoop/churn/metrics"
	"github.com/liamcoop/churn/predictor"
)

// maxBodyBytes caps request bodies; a customer record is a few hundred bytes
const maxBodyBytes = 64 << 10

type Server struct {
	cfg     *config.Config
	bundle  *artifacts.Bundle
	service *predictor.Service
	metrics *metrics.Registry
	page    *template.Template
	router  *chi.Mux
}

// NewServer wires the gate, the adapter over bundle and the prediction service
func NewServer(cfg *config.Config, bundle *artifacts.Bundle, reg *metrics.Registry) (*Server, error) {
	gate, err := auth.NewGate(cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}

	adapter, err := bundle.Adapter()
	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	service, err := predictor.New(gate, adapter,
		predictor.WithMetrics(reg),
		predictor.WithLogger(logger.Logger.With("model", bundle.Model)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create predictor: %w", err)
	}

	page, err := parsePage()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		bundle:  bundle,
		service: service,
		metrics: reg,
		page:    page,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// Form
	r.Get("/", s.handleForm)
	r.Post("/predict", s.handleFormPredict)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/model", s.handleModel)
		r.Post("/predict", s.handlePredict)
	})

	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs each request and records it in the HTTP metrics
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, status, elapsed)

		args := []any{
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case status >= 500:
			logger.Error("request failed", args...)
		case status >= 400:
			logger.Warn("request rejected", args...)
		default:
			logger.Debug("request served", args...)
		}
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Model:  s.bundle.Model,
	})
}

// Model metadata handler
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ModelResponse{
		ModelName:       s.bundle.Model,
		FeatureContract: inference.FeatureContractVersion,
		Features:        inference.FeatureColumns(),
		Preprocessor:    s.bundle.PreprocessorInfo,
		Classifier:      s.bundle.ClassifierInfo,
	})
}

// Prediction handler
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if raw == nil {
		respondError(w, http.StatusBadRequest, "request body must be a JSON object", nil)
		return
	}

	outcome, err := s.service.Predict(r.Header.Get(auth.HeaderName), raw)
	if err != nil {
		respondPredictError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, PredictResponse{
		RequestID: uuid.NewString(),
		Record:    outcome.Record.Fields(),
		Result:    outcome.Result,
		ModelName: s.bundle.Model,
	})
}

// respondPredictError maps pipeline errors to status codes
func respondPredictError(w http.ResponseWriter, err error) {
	var verr *customer.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:      "validation failed",
			Violations: verr.Violations,
		})
		return
	}

	if reason, ok := auth.ReasonOf(err); ok {
		respondJSON(w, http.StatusUnauthorized, UnauthorizedResponse{
			Error:  "unauthorized",
			Reason: string(reason),
		})
		return
	}

	respondError(w, http.StatusInternalServerError, "prediction failed", err)
}

// statusOf returns the HTTP status respondPredictError would use for err
func statusOf(err error) int {
	var verr *customer.ValidationError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case auth.IsMissing(err), auth.IsMismatch(err):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
