// Package metrics exposes approval workflow counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the service metrics hooks on its own registry
type Recorder struct {
	registry *prometheus.Registry

	actionsTotal     *prometheus.CounterVec
	deniedTotal      *prometheus.CounterVec
	conflictRetries  *prometheus.CounterVec
	pricesActivated  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpRequestTimes *prometheus.HistogramVec
}

// NewRecorder creates a recorder whose metric names start with namespace
func NewRecorder(namespace string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_actions_total",
				Help:      "Approval actions by request type, action and outcome",
			},
			[]string{"request_type", "action", "outcome"},
		),
		deniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_denials_total",
				Help:      "Approval actions refused, by error code",
			},
			[]string{"request_type", "reason"},
		),
		conflictRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_conflict_retries_total",
				Help:      "Transactions replayed after a concurrent modification",
			},
			[]string{"request_type"},
		),
		pricesActivated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fuel_prices_activated_total",
				Help:      "Fuel prices switched live",
			},
			[]string{"fuel_type"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestTimes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	r.registry.MustRegister(
		r.actionsTotal,
		r.deniedTotal,
		r.conflictRetries,
		r.pricesActivated,
		r.httpRequests,
		r.httpRequestTimes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ActionRecorded(requestType entity.RequestType, action, outcome string) {
	r.actionsTotal.WithLabelValues(string(requestType), action, outcome).Inc()
}

func (r *Recorder) ActionDenied(requestType entity.RequestType, reason string) {
	r.deniedTotal.WithLabelValues(string(requestType), reason).Inc()
}

func (r *Recorder) ConflictRetried(requestType entity.RequestType) {
	r.conflictRetries.WithLabelValues(string(requestType)).Inc()
}

func (r *Recorder) PriceActivated(fuelType entity.FuelType) {
	r.pricesActivated.WithLabelValues(string(fuelType)).Inc()
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpRequestTimes.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
