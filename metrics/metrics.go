// Package metrics exposes the service's Prometheus collectors
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// Registry owns the collectors. A nil *Registry discards observations.
type Registry struct {
	reg               *prometheus.Registry
	Predictions       *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	Probability       prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	predictions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_predictions_total",
		Help: "Prediction requests by outcome.",
	}, []string{"outcome"})
	inference := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "churn_inference_duration_seconds",
		Help:    "Time spent in preprocessing and classification.",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
	})
	probability := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "churn_probability",
		Help:    "Churn probability of successful predictions.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
	})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "churn_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "churn_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	r.MustRegister(predictions, inference, probability, httpRequests, httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Expose every outcome from the first scrape
	for _, o := range []string{OutcomeSuccess, OutcomeInvalid, OutcomeUnauthorized, OutcomeError} {
		predictions.WithLabelValues(o)
	}

	return &Registry{
		reg:               r,
		Predictions:       predictions,
		InferenceDuration: inference,
		Probability:       probability,
		HTTPRequests:      httpRequests,
		HTTPDuration:      httpDuration,
	}
}

// ObservePrediction counts one prediction with the given outcome
func (r *Registry) ObservePrediction(outcome string) {
	if r == nil {
		return
	}
	r.Predictions.WithLabelValues(outcome).Inc()
}

// ObserveInference records the duration of an adapter call and, on success, its probability
func (r *Registry) ObserveInference(d time.Duration, probability float64, ok bool) {
	if r == nil {
		return
	}
	r.InferenceDuration.Observe(d.Seconds())
	if ok {
		r.Probability.Observe(probability)
	}
}

// ObserveHTTP records one served request
func (r *Registry) ObserveHTTP(route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
