// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Submissions       *prometheus.CounterVec
	ValidationLatency prometheus.Histogram
	Lookups           *prometheus.CounterVec
	LookupLatency     *prometheus.HistogramVec
	CacheResults      *prometheus.CounterVec
	ActiveChains      prometheus.Gauge
	BridgeSessions    prometheus.Gauge
}

// NewMetrics registers the game metrics on reg. Tests pass a fresh
// prometheus.NewRegistry().
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submissions by decision and rejection reason",
		}, []string{"outcome", "reason"}),
		ValidationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_latency_seconds",
			Help:      "Time from submission to committed decision",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lexicon_lookups_total",
			Help:      "Lexicon lookups by language and outcome",
		}, []string{"language", "outcome"}),
		LookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lexicon_lookup_latency_seconds",
			Help:      "External lexicon lookup latency",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"language"}),
		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lexicon_cache_total",
			Help:      "Lexicon cache hits and misses by language",
		}, []string{"language", "result"}),
		ActiveChains: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_chains",
			Help:      "Number of loaded chains with a current word",
		}),
		BridgeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_sessions",
			Help:      "Number of connected bridge sessions",
		}),
	}

	reg.MustRegister(
		m.Submissions,
		m.ValidationLatency,
		m.Lookups,
		m.LookupLatency,
		m.CacheResults,
		m.ActiveChains,
		m.BridgeSessions,
	)

	return m
}

// ObserveLookup counts a lookup. Cached answers have no latency.
func (m *Metrics) ObserveLookup(lang, outcome string, d time.Duration) {
	m.Lookups.WithLabelValues(lang, outcome).Inc()
	if d > 0 {
		m.LookupLatency.WithLabelValues(lang).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveCache(lang string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheResults.WithLabelValues(lang, result).Inc()
}

func (m *Metrics) ObserveSubmission(outcome, reason string, d time.Duration) {
	m.Submissions.WithLabelValues(outcome, reason).Inc()
	m.ValidationLatency.Observe(d.Seconds())
}

func (m *Metrics) SetActiveChains(count int) {
	m.ActiveChains.Set(float64(count))
}

func (m *Metrics) IncBridgeSessions() {
	m.BridgeSessions.Inc()
}

func (m *Metrics) DecBridgeSessions() {
	m.BridgeSessions.Dec()
}

type Monitor struct {
	Metrics   *Metrics
	gatherer  prometheus.Gatherer
	startTime time.Time
}

func NewMonitor(namespace string, reg *prometheus.Registry) *Monitor {
	return &Monitor{
		Metrics:   NewMetrics(namespace, reg),
		gatherer:  reg,
		startTime: time.Now(),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.startTime)
}
