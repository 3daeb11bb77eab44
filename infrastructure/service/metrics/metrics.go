// Package metrics exposes gateway counters and gauges in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fixora/tollgate/domain/entity"
	"github.com/fixora/tollgate/domain/state"
)

const namespace = "tollgate"

// Metrics is an audit observer. Every decision and admin action is counted
// from the ledger so the numbers match the audit trail.
type Metrics struct {
	registry       *prometheus.Registry
	auditRecords   *prometheus.CounterVec
	lockdowns      prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	rateLimitBlock prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		auditRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Audit records appended, by event kind and status.",
		}, []string{"event_kind", "status"}),
		lockdowns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockdowns_total",
			Help:      "Decisions that tripped the global lockdown.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimitBlock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests refused by the per-IP rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.auditRecords,
		m.lockdowns,
		m.httpRequests,
		m.httpDuration,
		m.rateLimitBlock,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) OnAudit(r entity.AuditRecord) {
	status := r.Status
	// RESOLVED:<hold id> would give every hold its own series.
	if i := strings.IndexByte(status, ':'); i >= 0 {
		status = status[:i]
	}
	m.auditRecords.WithLabelValues(string(r.EventKind), status).Inc()
	if status == entity.StatusLockdown {
		m.lockdowns.Inc()
	}
}

// WatchState registers gauges that read the store on every scrape.
func (m *Metrics) WatchState(store *state.Store) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lockdown_active",
			Help:      "1 while the gateway is locked down.",
		}, func() float64 {
			if store.IsLocked() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_transfers",
			Help:      "Transfers held for admin review.",
		}, func() float64 {
			return float64(len(store.ListPending()))
		}),
	)
}

// WatchDropped exposes a monotonically increasing drop count, such as the
// audit dispatcher's.
func (m *Metrics) WatchDropped(name, help string, dropped func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		return float64(dropped())
	}))
}

func (m *Metrics) ObserveRequest(route string, code int, took time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}

func (m *Metrics) RateLimited() {
	m.rateLimitBlock.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
