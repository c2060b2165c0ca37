package health

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/wirehttp/wirehttp/pkg/protocol"
)

const namespace = "wirehttp"

// Metrics holds all Prometheus metrics for wirehttp.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestErrors    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ResponseBytes    *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	CurrentTPS       prometheus.Gauge
	TargetTPS        prometheus.Gauge
	ActiveWorkers    prometheus.Gauge
	QueuedRequests   prometheus.Gauge
	DroppedRequests  prometheus.Counter
	TargetHealth     *prometheus.GaugeVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Completed requests by target, method and status code",
			},
			[]string{"target", "method", "status"},
		),
		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "request_errors_total",
				Help:      "Failed requests by target and error kind",
			},
			[]string{"target", "kind"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"target"},
		),
		ResponseBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_body_bytes",
				Help:      "Decoded response body size",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
			},
			[]string{"target"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Current number of requests being processed",
			},
		),
		CurrentTPS: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_tps",
				Help:      "Requests completed in the last second",
			},
		),
		TargetTPS: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "target_tps",
				Help:      "Configured request rate",
			},
		),
		ActiveWorkers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workers",
				Help:      "Number of workers executing a request",
			},
		),
		QueuedRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_requests",
				Help:      "Number of requests waiting in queue",
			},
		),
		DroppedRequests: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_requests_total",
				Help:      "Requests rejected because the queue was full",
			},
		),
		TargetHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "target_health",
				Help:      "Health status of each target (1=healthy, 0=unhealthy)",
			},
			[]string{"target"},
		),
	}
}

// RecordResponse records a request that produced a response.
func (m *Metrics) RecordResponse(target string, method protocol.Method, resp *protocol.Response, durationSeconds float64) {
	m.RequestsTotal.WithLabelValues(target, method.String(), strconv.Itoa(resp.StatusCode)).Inc()
	m.RequestDuration.WithLabelValues(target).Observe(durationSeconds)
	m.ResponseBytes.WithLabelValues(target).Observe(float64(len(resp.Body)))
}

// RecordError records a request that failed before a response was parsed.
func (m *Metrics) RecordError(target string, err error, durationSeconds float64) {
	kind := protocol.KindOf(err).String()
	if phase := protocol.PhaseOf(err); phase != protocol.PhaseNone {
		kind += "_" + phase.String()
	}
	m.RequestErrors.WithLabelValues(target, kind).Inc()
	m.RequestDuration.WithLabelValues(target).Observe(durationSeconds)
}

// SetCurrentTPS updates the current TPS metric.
func (m *Metrics) SetCurrentTPS(tps float64) {
	m.CurrentTPS.Set(tps)
}

// SetTargetTPS updates the target TPS metric.
func (m *Metrics) SetTargetTPS(tps float64) {
	m.TargetTPS.Set(tps)
}

// SetActiveWorkers updates the active workers metric.
func (m *Metrics) SetActiveWorkers(count int) {
	m.ActiveWorkers.Set(float64(count))
}

// SetQueuedRequests updates the queued requests metric.
func (m *Metrics) SetQueuedRequests(count int) {
	m.QueuedRequests.Set(float64(count))
}

// IncDropped counts a request rejected by a full queue.
func (m *Metrics) IncDropped() {
	m.DroppedRequests.Inc()
}

// SetTargetHealth updates the health status for a target.
func (m *Metrics) SetTargetHealth(target string, healthy bool) {
	if healthy {
		m.TargetHealth.WithLabelValues(target).Set(1)
	} else {
		m.TargetHealth.WithLabelValues(target).Set(0)
	}
}

// IncRequestsInFlight increments the in-flight requests counter.
func (m *Metrics) IncRequestsInFlight() {
	m.RequestsInFlight.Inc()
}

// DecRequestsInFlight decrements the in-flight requests counter.
func (m *Metrics) DecRequestsInFlight() {
	m.RequestsInFlight.Dec()
}
