package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencivic/muniva/internal/clock"
	invoicedomain "github.com/opencivic/muniva/internal/invoice/domain"
	obscontext "github.com/opencivic/muniva/internal/observability/context"
	obsmetrics "github.com/opencivic/muniva/internal/observability/metrics"
	metricsdomain "github.com/opencivic/muniva/internal/saasmetrics/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	MetricsSvc  metricsdomain.Service
	InvoiceRepo invoicedomain.Repository
	Config      Config `optional:"true"`
}

// Scheduler drives the daily maintenance routine: the overdue-invoice
// sweep, a manual-trigger recomputation of the current period, and the
// consistency check. Jobs are isolated, so one failing does not stop the
// next. RunOnce still surfaces the joined error for alerting.
type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	metricsSvc  metricsdomain.Service
	invoiceRepo invoicedomain.Repository
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.MetricsSvc == nil || p.InvoiceRepo == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		metricsSvc:  p.MetricsSvc,
		invoiceRepo: p.InvoiceRepo,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx = obscontext.WithTrigger(ctx, "scheduler")

	log := s.log.With(zap.String("job", name))
	engineMetrics := obsmetrics.Engine()
	engineMetrics.IncJobRun(name)

	err := fn(ctx)
	engineMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		log.Info("maintenance job finished", zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	engineMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("maintenance job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
	} else {
		log.Error("maintenance job failed", zap.Error(err))
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes the maintenance jobs in order. Every enabled job is
// attempted regardless of earlier failures.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var errs error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"mark_overdue", s.MarkOverdueJob},
		{"recompute_current", s.RecomputeCurrentJob},
		{"health_check", s.HealthCheckJob},
	}

	for _, job := range jobs {
		if !s.cfg.isJobEnabled(job.Name) {
			continue
		}
		if err := s.runJob(parent, job.Name, job.Run); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// RunForever loops RunOnce at the configured interval until the context
// is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", s.cfg.RunInterval))
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("maintenance run finished with failures", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// MarkOverdueJob flips pending invoices past their due date to OVERDUE.
func (s *Scheduler) MarkOverdueJob(ctx context.Context) error {
	changed, err := s.invoiceRepo.MarkOverdue(ctx, s.db, s.clock.Now())
	if err != nil {
		return err
	}
	if changed > 0 {
		s.log.Info("overdue sweep updated invoices", zap.Int64("invoices", changed))
	}
	return nil
}

// RecomputeCurrentJob refreshes the current period through the manual
// trigger path, same as an administrative refresh.
func (s *Scheduler) RecomputeCurrentJob(ctx context.Context) error {
	return s.metricsSvc.HandleEvent(ctx, metricsdomain.RecalcEvent{
		Kind:       metricsdomain.EventManualTrigger,
		OccurredAt: s.clock.Now(),
	})
}

// HealthCheckJob runs the consistency pass and logs its outcome.
func (s *Scheduler) HealthCheckJob(ctx context.Context) error {
	report := s.metricsSvc.HealthReport(ctx)
	log := s.log.With(
		zap.String("status", string(report.Status)),
		zap.Strings("issues", report.Issues),
	)
	switch report.Status {
	case metricsdomain.HealthStatusHealthy:
		log.Info("metrics consistency check passed")
	case metricsdomain.HealthStatusWarning:
		log.Warn("metrics consistency check found issues")
	default:
		log.Error("metrics consistency check failed")
	}
	return nil
}
