package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "interviewx"

	LabelService = "service"
	LabelOutcome = "outcome"
	LabelKind    = "kind"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	AnalyzerCalls    *prometheus.CounterVec
	AnalyzerDuration *prometheus.HistogramVec
	Orchestrations   *prometheus.CounterVec
	RealtimeFrames   *prometheus.CounterVec
	ActiveSockets    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalyzerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "calls_total",
			Help:      "Analyzer calls by service and outcome.",
		}, []string{LabelService, LabelOutcome}),
		AnalyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "call_duration_seconds",
			Help:      "Analyzer call latency.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{LabelService}),
		Orchestrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "orchestrations_total",
			Help:      "Finished orchestrations by outcome.",
		}, []string{LabelOutcome}),
		RealtimeFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "inputs_total",
			Help:      "Realtime frames and chunks by kind and outcome.",
		}, []string{LabelKind, LabelOutcome}),
		ActiveSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open realtime connections.",
		}),
	}
	m.registry.MustRegister(
		m.AnalyzerCalls,
		m.AnalyzerDuration,
		m.Orchestrations,
		m.RealtimeFrames,
		m.ActiveSockets,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAnalyzerCall(service string, d time.Duration, err error) {
	m.AnalyzerCalls.WithLabelValues(service, outcome(err)).Inc()
	m.AnalyzerDuration.WithLabelValues(service).Observe(d.Seconds())
}

// ObserveOrchestration records "completed", "failed" or "skipped".
func (m *Metrics) ObserveOrchestration(result string) {
	m.Orchestrations.WithLabelValues(result).Inc()
}

// ObserveRealtimeInput records "accepted", "sampled_out", "dropped" or "error".
func (m *Metrics) ObserveRealtimeInput(kind, result string) {
	m.RealtimeFrames.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SocketOpened() { m.ActiveSockets.Inc() }
func (m *Metrics) SocketClosed() { m.ActiveSockets.Dec() }

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
