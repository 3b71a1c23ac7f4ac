package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

const (
	ErrorTypeDeadlineExceeded = "deadline_exceeded"
	ErrorTypeValidation       = "validation"
	ErrorTypeDB               = "db"
	ErrorTypeUnknown          = "unknown"
)

// EngineMetrics captures billing-metrics engine health signals.
type EngineMetrics struct {
	recomputeRuns     *prometheus.CounterVec
	recomputeErrors   *prometheus.CounterVec
	recomputeDuration *prometheus.HistogramVec
	backfillPeriods   *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobErrors         *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	healthStatus      *prometheus.GaugeVec
}

var (
	engineOnce sync.Once
	engine     *EngineMetrics
)

// Engine returns the process-wide engine metrics, registering them on first use.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engine = newEngineMetrics(prometheus.DefaultRegisterer)
	})
	return engine
}

func newEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	factory := promauto.With(reg)
	return &EngineMetrics{
		recomputeRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "muniva_metrics_recompute_runs_total",
			Help: "Snapshot recomputations started, by trigger source.",
		}, []string{"source"}),
		recomputeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "muniva_metrics_recompute_errors_total",
			Help: "Snapshot recomputations failed, by trigger source and error type.",
		}, []string{"source", "error_type"}),
		recomputeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "muniva_metrics_recompute_duration_seconds",
			Help:    "Snapshot recomputation latency, by trigger source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		backfillPeriods: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "muniva_metrics_backfill_periods_total",
			Help: "Backfilled periods, by result.",
		}, []string{"result"}),
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "muniva_maintenance_job_runs_total",
			Help: "Maintenance job executions, by job.",
		}, []string{"job"}),
		jobErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "muniva_maintenance_job_errors_total",
			Help: "Maintenance job failures, by job and error type.",
		}, []string{"job", "error_type"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "muniva_maintenance_job_duration_seconds",
			Help:    "Maintenance job latency, by job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		healthStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "muniva_metrics_health_status",
			Help: "Latest consistency report classification (1 for the active status).",
		}, []string{"status"}),
	}
}

func (m *EngineMetrics) IncRecomputeRun(source string) {
	m.recomputeRuns.WithLabelValues(source).Inc()
}

func (m *EngineMetrics) IncRecomputeError(source string, err error) {
	m.recomputeErrors.WithLabelValues(source, ClassifyError(err)).Inc()
}

func (m *EngineMetrics) ObserveRecomputeDuration(source string, d time.Duration) {
	m.recomputeDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *EngineMetrics) IncBackfillPeriod(result string) {
	m.backfillPeriods.WithLabelValues(result).Inc()
}

func (m *EngineMetrics) IncJobRun(job string) {
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *EngineMetrics) IncJobError(job string, err error) {
	m.jobErrors.WithLabelValues(job, ClassifyError(err)).Inc()
}

func (m *EngineMetrics) ObserveJobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *EngineMetrics) SetHealthStatus(status string) {
	for _, known := range []string{"healthy", "warning", "error"} {
		value := 0.0
		if known == status {
			value = 1.0
		}
		m.healthStatus.WithLabelValues(known).Set(value)
	}
}

// ClassifyError maps an error to a low-cardinality type label.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ErrorTypeDB
	}
	if errors.Is(err, gorm.ErrInvalidTransaction) || errors.Is(err, gorm.ErrInvalidDB) {
		return ErrorTypeDB
	}
	if strings.Contains(strings.ToLower(err.Error()), "invalid") {
		return ErrorTypeValidation
	}
	return ErrorTypeUnknown
}
