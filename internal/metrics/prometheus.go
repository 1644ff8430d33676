// Package metrics exposes Prometheus collectors for sessions, the frame
// pipeline and the classifier.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeKnown   = "known"
	OutcomeUnknown = "unknown"

	FitTrained = "trained"
	FitSkipped = "skipped"
	FitFailed  = "failed"
)

// Manager owns every collector and the registry they live in.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	messages         *prometheus.CounterVec
	warnings         *prometheus.CounterVec
	fits             *prometheus.CounterVec
	predictions      *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	fitDuration      prometheus.Histogram
	activeSessions   prometheus.Gauge
	trainingImages   prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets the buckets of latency histograms, in seconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "facestream",
		subsystem:        "session",
		histogramBuckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.messages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "messages_total",
		Help:      "Inbound messages by type. Unrecognized types are counted as \"unknown\".",
	}, []string{"type"})

	m.warnings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "warnings_total",
		Help:      "WARNING messages sent to clients by reason.",
	}, []string{"reason"})

	m.fits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "classifier_fits_total",
		Help:      "Classifier refits by result.",
	}, []string{"result"})

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_total",
		Help:      "Test frame predictions by outcome.",
	}, []string{"outcome"})

	m.pipelineDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pipeline_duration_seconds",
		Help:      "Frame pipeline latency from decode to last outbound message.",
		Buckets:   m.histogramBuckets,
	}, []string{"path"})

	m.fitDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "classifier_fit_duration_seconds",
		Help:      "Grid search and persistence time per refit.",
		Buckets:   m.histogramBuckets,
	})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active",
		Help:      "Open WebSocket sessions.",
	})

	m.trainingImages = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "training_images",
		Help:      "Images under the training root at the last scan.",
	})
}

func (m *Manager) MessageReceived(msgType string) {
	m.messages.WithLabelValues(msgType).Inc()
}

func (m *Manager) Warning(reason string) {
	m.warnings.WithLabelValues(reason).Inc()
}

func (m *Manager) Fit(result string, took time.Duration) {
	m.fits.WithLabelValues(result).Inc()
	if result == FitTrained {
		m.fitDuration.Observe(took.Seconds())
	}
}

func (m *Manager) Prediction(known bool) {
	outcome := OutcomeUnknown
	if known {
		outcome = OutcomeKnown
	}
	m.predictions.WithLabelValues(outcome).Inc()
}

func (m *Manager) ObservePipeline(path string, took time.Duration) {
	m.pipelineDuration.WithLabelValues(path).Observe(took.Seconds())
}

func (m *Manager) SessionOpened() { m.activeSessions.Inc() }

func (m *Manager) SessionClosed() { m.activeSessions.Dec() }

func (m *Manager) SetTrainingImages(n int) {
	m.trainingImages.Set(float64(n))
}

// Registry is exposed for tests and for extra collectors.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
