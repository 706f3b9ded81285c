package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec
	RoleGrantsTotal     *prometheus.CounterVec
	RoleRevokesTotal    *prometheus.CounterVec

	// Identity-provider mirroring metrics
	IdPRequestsTotal      *prometheus.CounterVec
	IdPMirrorFailures     *prometheus.CounterVec
	ReconcileDivergences  prometheus.Counter
	ReconcileRunsTotal    *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lions_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_authz_decisions_total",
				Help: "Authorization decisions by permission and outcome",
			},
			[]string{"permission", "outcome"},
		),
		RoleGrantsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_role_grants_total",
				Help: "Scoped role grants by role and result",
			},
			[]string{"role", "result"},
		),
		RoleRevokesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_role_revokes_total",
				Help: "Scoped role revocations by role and result",
			},
			[]string{"role", "result"},
		),
		IdPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_idp_requests_total",
				Help: "Identity-provider API requests by operation and result",
			},
			[]string{"operation", "result"},
		),
		IdPMirrorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_idp_mirror_failures_total",
				Help: "Failed role-name mirror calls to the identity provider",
			},
			[]string{"operation"},
		),
		ReconcileDivergences: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lions_reconcile_divergences_total",
				Help: "Role-name divergences found between local store and identity provider",
			},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lions_reconcile_runs_total",
				Help: "Reconciler runs by result",
			},
			[]string{"result"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lions_db_connections_active",
				Help: "Number of database connections currently in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lions_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.RoleGrantsTotal,
		m.RoleRevokesTotal,
		m.IdPRequestsTotal,
		m.IdPMirrorFailures,
		m.ReconcileDivergences,
		m.ReconcileRunsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CollectDBStats copies current sql.DB pool stats into the gauges
func (m *Metrics) CollectDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// InstrumentHandler wraps an HTTP handler with request metrics.
// The path label should be the route template, not the raw URL,
// to keep cardinality bounded.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
