package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds configuration for the metrics endpoint.
type Config struct {
	// Enabled toggles the metrics listener.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Port is the dedicated metrics port.
	Port string `mapstructure:"port" default:"9090"`
}

// Manager owns the Prometheus registry and all sync collectors.
type Manager struct {
	registry *prometheus.Registry

	syncsTotal        *prometheus.CounterVec
	syncDuration      prometheus.Histogram
	eventsDiscovered  prometheus.Histogram
	membersReconciled prometheus.Gauge
	sourceErrors      prometheus.Counter
	reportFailures    prometheus.Counter
}

// NewManager builds a manager with a private registry so tests never collide
// on globally registered collectors.
func NewManager() *Manager {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Manager{
		registry: reg,
		syncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Completed sync runs by outcome.",
		}, []string{"status"}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Wall time of a full sync run.",
			Buckets:   prometheus.DefBuckets,
		}),
		eventsDiscovered: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Subsystem: "sync",
			Name:      "events_discovered",
			Help:      "Events discovered per sync run.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		membersReconciled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "rollcall",
			Subsystem: "sync",
			Name:      "members_reconciled",
			Help:      "Members in the ledger after the last sync.",
		}),
		sourceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "sync",
			Name:      "source_errors_total",
			Help:      "Per-event source fetch failures recovered during sync.",
		}),
		reportFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "sync",
			Name:      "report_failures_total",
			Help:      "Report refresh failures after a committed sync.",
		}),
	}
}

// ObserveSync records one finished sync run.
func (m *Manager) ObserveSync(status string, d time.Duration) {
	m.syncsTotal.WithLabelValues(status).Inc()
	m.syncDuration.Observe(d.Seconds())
}

// ObserveDiscovery records the size of a discovery pass.
func (m *Manager) ObserveDiscovery(events int) {
	m.eventsDiscovered.Observe(float64(events))
}

// SetMembers records the post-sync ledger size.
func (m *Manager) SetMembers(n int) {
	m.membersReconciled.Set(float64(n))
}

// AddSourceError counts one recovered per-event source failure.
func (m *Manager) AddSourceError() {
	m.sourceErrors.Inc()
}

// AddReportFailure counts one non-fatal report refresh failure.
func (m *Manager) AddReportFailure() {
	m.reportFailures.Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a blocking HTTP listener for /metrics on the given port.
func (m *Manager) Serve(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(":"+port, mux)
}
