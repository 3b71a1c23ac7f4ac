package service

import (
	"context"
	"fmt"
	"time"

	obsmetrics "github.com/opencivic/muniva/internal/observability/metrics"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	"go.uber.org/zap"
)

const staleSnapshotAge = 24 * time.Hour

// staleAfter resolves the staleness threshold from the engine tunables,
// falling back to the built-in default.
func (s *Service) staleAfter() time.Duration {
	if s.settings != nil {
		if v := s.settings.Get().SnapshotStaleAfter; v > 0 {
			return v
		}
	}
	return staleSnapshotAge
}

// HealthReport runs the read-only consistency pass over the source
// aggregates and the latest snapshot. It classifies rather than fails:
// an error during the pass itself yields an error-status report.
func (s *Service) HealthReport(ctx context.Context) *domain.HealthReport {
	report := &domain.HealthReport{Issues: []string{}}

	if err := s.collectHealthIssues(ctx, report); err != nil {
		s.log.Error("health report generation failed", zap.Error(err))
		report.Status = domain.HealthStatusError
		report.Issues = append(report.Issues, fmt.Sprintf("health check failed: %v", err))
		obsmetrics.Engine().SetHealthStatus(string(report.Status))
		return report
	}

	switch {
	case len(report.Issues) == 0:
		report.Status = domain.HealthStatusHealthy
	case len(report.Issues) <= 3:
		report.Status = domain.HealthStatusWarning
	default:
		report.Status = domain.HealthStatusError
	}
	obsmetrics.Engine().SetHealthStatus(string(report.Status))
	return report
}

func (s *Service) collectHealthIssues(ctx context.Context, report *domain.HealthReport) error {
	latest, err := s.snapshotRepo.FindLatest(ctx, s.db)
	if err != nil {
		return fmt.Errorf("read latest snapshot: %w", err)
	}
	if latest == nil {
		report.Issues = append(report.Issues, "no metrics snapshot has ever been computed")
	} else {
		report.Metrics = latest
		updatedAt := latest.UpdatedAt
		report.LastCalculation = &updatedAt
		if s.clock.Now().Sub(latest.UpdatedAt) > s.staleAfter() {
			report.Issues = append(report.Issues, fmt.Sprintf(
				"latest snapshot %s is stale (last computed %s)",
				latest.Period, latest.UpdatedAt.Format(time.RFC3339),
			))
		}
	}

	unpriced, err := s.tenantRepo.CountActiveWithoutPrice(ctx, s.db)
	if err != nil {
		return fmt.Errorf("count unpriced tenants: %w", err)
	}
	if unpriced > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"%d active tenants have no monthly price configured", unpriced,
		))
	}

	missingPaidAt, err := s.invoiceRepo.CountPaidMissingPaidAt(ctx, s.db)
	if err != nil {
		return fmt.Errorf("count paid invoices without payment date: %w", err)
	}
	if missingPaidAt > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"%d paid invoices are missing a payment date", missingPaidAt,
		))
	}

	zeroAmount, err := s.invoiceRepo.CountZeroAmount(ctx, s.db)
	if err != nil {
		return fmt.Errorf("count zero-amount invoices: %w", err)
	}
	if zeroAmount > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"%d invoices have a zero amount", zeroAmount,
		))
	}

	return nil
}
