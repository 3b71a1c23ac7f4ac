package service

import (
	"context"

	obslogger "github.com/opencivic/muniva/internal/observability/logger"
	obsmetrics "github.com/opencivic/muniva/internal/observability/metrics"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	"go.uber.org/zap"
)

// Backfill recomputes every period in the inclusive range, oldest first.
// A failed period is logged and skipped; the pass always advances through
// the whole range. Sequential on purpose: it keeps LTV's latest-snapshot
// read consistent with the periods already recomputed earlier in the same
// run.
func (s *Service) Backfill(ctx context.Context, req domain.BackfillRequest) (*domain.BackfillResult, error) {
	start, err := domain.NewPeriod(req.StartYear, req.StartMonth)
	if err != nil {
		return nil, err
	}
	end, err := domain.NewPeriod(req.EndYear, req.EndMonth)
	if err != nil {
		return nil, err
	}
	periods, err := domain.PeriodsBetween(start, end)
	if err != nil {
		return nil, err
	}

	log := s.log.With(
		zap.String("start", start.String()),
		zap.String("end", end.String()),
	)
	log.Info("metrics backfill started",
		zap.String("action", "metrics.backfill.started"),
		zap.Int("periods", len(periods)),
	)

	result := &domain.BackfillResult{}
	for _, period := range periods {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		started := s.clock.Now()
		_, computeErr := s.ComputeAndPersist(ctx, period.Year(), period.Month())
		s.recordRecompute("backfill", started, computeErr)
		if computeErr != nil {
			obsmetrics.Engine().IncBackfillPeriod("failed")
			obslogger.WithPeriod(log, period.String()).Warn("backfill period failed",
				zap.Error(computeErr),
			)
			result.Failed = append(result.Failed, domain.BackfillFailure{
				Period: period,
				Reason: computeErr.Error(),
			})
			continue
		}
		obsmetrics.Engine().IncBackfillPeriod("computed")
		result.Computed = append(result.Computed, period)
	}

	log.Info("metrics backfill finished",
		zap.String("action", "metrics.backfill.finished"),
		zap.Int("computed", len(result.Computed)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}
