// Package metrics defines the server's Prometheus collectors.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/teamtab/internal/calculator"
	"github.com/mmynk/teamtab/internal/money"
)

const namespace = "teamtab"

// Metrics groups every collector. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	TransactionsCreated  *prometheus.CounterVec
	TransactionsDeleted  prometheus.Counter
	ValidationRejections *prometheus.CounterVec
	Violations           prometheus.Counter
	CacheLookups         *prometheus.CounterVec
	RPCDuration          *prometheus.HistogramVec
	Watchers             prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TransactionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_created_total",
			Help:      "Transactions recorded, by kind (expense or repayment).",
		}, []string{"kind"}),
		TransactionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_deleted_total",
			Help:      "Transactions deleted.",
		}),
		ValidationRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Requests rejected by validation, by field.",
		}, []string{"field"}),
		Violations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_violations_total",
			Help:      "Stored transactions found with splits that do not match their total.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_cache_lookups_total",
			Help:      "Balance cache lookups, by result (hit, miss, error).",
		}, []string{"result"}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency, by procedure and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
		Watchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "balance_watchers",
			Help:      "Open WatchBalances streams.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TransactionsCreated,
		m.TransactionsDeleted,
		m.ValidationRejections,
		m.Violations,
		m.CacheLookups,
		m.RPCDuration,
		m.Watchers,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ReportViolation logs a consistency violation and counts it.
// It implements calculator.Diagnostics.
func (m *Metrics) ReportViolation(teamID string, v calculator.ConsistencyViolation) {
	slog.Warn("Consistency violation",
		"team_id", teamID,
		"transaction_id", v.TransactionID,
		"total", money.Format(v.Total),
		"split_sum", money.Format(v.SplitSum),
	)
	m.Violations.Inc()
}

var _ calculator.Diagnostics = (*Metrics)(nil)
