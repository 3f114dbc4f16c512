// Package metrics exposes sync core counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/adherence/internal/domain/dailycache"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
)

const namespace = "adherence"

// Metrics records queue, cache and persist activity on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	queueSize       *prometheus.GaugeVec
	queueFailed     *prometheus.GaugeVec
	drains          *prometheus.CounterVec
	drainConfirmed  prometheus.Counter
	sessions        *prometheus.CounterVec
	duplicateChecks *prometheus.CounterVec
	rollovers       prometheus.Counter
	persistDuration *prometheus.HistogramVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_size",
			Help:      "Pending offline writes per user.",
		}, []string{"user", "state"}),
		queueFailed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_failed_items",
			Help:      "Queued writes beyond the retry ceiling per user.",
		}, []string{"user"}),
		drains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_drains_total",
			Help:      "Drain passes by outcome.",
		}, []string{"status"}),
		drainConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_confirmed_total",
			Help:      "Queued writes confirmed by the remote store.",
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Logged writes by kind and persist outcome.",
		}, []string{"kind", "outcome"}),
		duplicateChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_checks_total",
			Help:      "Duplicate checks by result.",
		}, []string{"result"}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_rollovers_total",
			Help:      "Daily cache resets caused by a date change.",
		}),
		persistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_persist_duration_seconds",
			Help:      "Latency of remote persist attempts.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queueSize,
		m.queueFailed,
		m.drains,
		m.drainConfirmed,
		m.sessions,
		m.duplicateChecks,
		m.rollovers,
		m.persistDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// QueueChanged implements syncqueue.Observer.
func (m *Metrics) QueueChanged(userID string, size int, state syncqueue.State) {
	m.queueSize.DeletePartialMatch(prometheus.Labels{"user": userID})
	m.queueSize.WithLabelValues(userID, string(state)).Set(float64(size))
}

// DrainFinished implements syncqueue.Observer.
func (m *Metrics) DrainFinished(userID string, report syncqueue.DrainReport) {
	m.drains.WithLabelValues(string(report.Status)).Inc()
	m.drainConfirmed.Add(float64(len(report.Confirmed)))
	m.queueFailed.WithLabelValues(userID).Set(float64(report.FailCount))
}

// WriteLogged counts a logged write by its persist outcome.
func (m *Metrics) WriteLogged(kind, outcome string) {
	m.sessions.WithLabelValues(kind, outcome).Inc()
}

// DuplicateChecked counts duplicate check results.
func (m *Metrics) DuplicateChecked(status dailycache.DuplicateStatus) {
	m.duplicateChecks.WithLabelValues(status.String()).Inc()
}

// CacheRolledOver counts cache resets.
func (m *Metrics) CacheRolledOver() {
	m.rollovers.Inc()
}

// PersistObserved records the latency of one remote persist.
func (m *Metrics) PersistObserved(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persistDuration.WithLabelValues(result).Observe(d.Seconds())
}
