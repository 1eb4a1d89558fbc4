package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry            *prometheus.Registry
	operationsTotal     *prometheus.CounterVec
	operationsFailed    *prometheus.CounterVec
	operationDuration   prometheus.Histogram
	schedulerTicksTotal *prometheus.CounterVec
	accountBalance      *prometheus.GaugeVec
	logger              *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &Collector{
		registry: registry,
		operationsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of completed ledger operations",
		}, []string{"operation"}),
		operationsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_failed_total",
			Help: "Total number of rejected or failed ledger operations",
		}, []string{"operation"}),
		operationDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Time taken to complete a ledger operation",
			Buckets: prometheus.DefBuckets,
		}),
		schedulerTicksTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Completed background scheduler ticks by job",
		}, []string{"job"}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_balance",
			Help: "Current account cash balance",
		}, []string{"account_id"}),
		logger: logger,
	}

	return collector
}

func (m *Collector) RecordOperation(operation string, duration time.Duration, success bool) {
	if success {
		m.operationsTotal.WithLabelValues(operation).Inc()
	} else {
		m.operationsFailed.WithLabelValues(operation).Inc()
	}
	m.operationDuration.Observe(duration.Seconds())
}

func (m *Collector) RecordSchedulerTick(job string) {
	m.schedulerTicksTotal.WithLabelValues(job).Inc()
}

func (m *Collector) UpdateAccountBalance(accountID string, balance float64) {
	m.accountBalance.WithLabelValues(accountID).Set(balance)
}

func (m *Collector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Collector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}
