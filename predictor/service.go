// Package predictor runs the validate, authorize and infer pipeline behind
// every prediction request.
package predictor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liamcoop/churn/auth"
	"github.com/liamcoop/churn/customer"
	"github.com/liamcoop/churn/inference"
	"github.com/liamcoop/churn/metrics"
)

// Authorizer decides whether a caller token may run a prediction
type Authorizer interface {
	Authorize(token string) error
}

// Model turns a validated record into a prediction
type Model interface {
	Predict(rec customer.Record) (inference.Result, error)
}

// Outcome is the result of a successful prediction
type Outcome struct {
	Record customer.Record
	Result inference.Result
}

// Service is safe for concurrent use; it holds no per-request state
type Service struct {
	gate    Authorizer
	model   Model
	metrics *metrics.Registry
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records outcomes and inference timings in r
func WithMetrics(r *metrics.Registry) Option {
	return func(s *Service) { s.metrics = r }
}

// WithLogger sets the logger used for per-request lines
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Service over gate and model
func New(gate Authorizer, model Model, opts ...Option) (*Service, error) {
	if gate == nil {
		return nil, errors.New("predictor: authorizer is required")
	}
	if model == nil {
		return nil, errors.New("predictor: model is required")
	}

	s := &Service{
		gate:  gate,
		model: model,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Predict validates raw, authorizes token and runs inference, in that order.
// Errors are *customer.ValidationError, *auth.UnauthorizedError or
// *inference.Error. The model is never called for a rejected request.
func (s *Service) Predict(token string, raw map[string]any) (*Outcome, error) {
	rec, err := customer.Parse(raw)
	if err != nil {
		s.metrics.ObservePrediction(metrics.OutcomeInvalid)
		var verr *customer.ValidationError
		if errors.As(err, &verr) {
			s.log.Info("prediction rejected: invalid input", "fields", verr.Fields())
		}
		return nil, err
	}

	if err := s.gate.Authorize(token); err != nil {
		s.metrics.ObservePrediction(metrics.OutcomeUnauthorized)
		reason, _ := auth.ReasonOf(err)
		s.log.Warn("prediction rejected: unauthorized", "reason", string(reason))
		return nil, err
	}

	start := s.now()
	result, err := s.model.Predict(rec)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveInference(elapsed, result.Probability, err == nil)

	if err != nil {
		s.metrics.ObservePrediction(metrics.OutcomeError)
		s.log.Error("prediction failed", "error", err, "duration", elapsed)
		var ierr *inference.Error
		if !errors.As(err, &ierr) {
			err = &inference.Error{Stage: inference.StagePredict, Err: err}
		}
		return nil, err
	}

	s.metrics.ObservePrediction(metrics.OutcomeSuccess)
	s.log.Info("prediction completed",
		"label", result.Label,
		"probability", result.Probability,
		"duration", elapsed,
	)
	return &Outcome{Record: rec, Result: result}, nil
}

// User-facing messages
const (
	MessageMissingKey = "Please enter an API key."
	MessageInvalidKey = "You are not authorized to use this app. Invalid API key."
	MessageCompleted  = "Prediction Completed"
)

// Message renders err as the text shown to a user of the form
func Message(err error) string {
	if err == nil {
		return MessageCompleted
	}

	var verr *customer.ValidationError
	if errors.As(err, &verr) {
		lines := make([]string, len(verr.Violations))
		for i, v := range verr.Violations {
			lines[i] = fmt.Sprintf("%s %s", v.Field, v.Message)
		}
		return "Invalid input: " + strings.Join(lines, "; ")
	}

	switch {
	case auth.IsMissing(err):
		return MessageMissingKey
	case auth.IsMismatch(err):
		return MessageInvalidKey
	}

	var ierr *inference.Error
	if errors.As(err, &ierr) {
		return "Prediction Error: " + ierr.Err.Error()
	}
	return "Prediction Error: " + err.Error()
}
