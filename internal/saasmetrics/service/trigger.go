package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	"go.uber.org/zap"
)

// HandleEvent maps a business event to the set of affected periods and
// recomputes each through the calculator. The dispatcher holds no state;
// every policy is derivable from the event, the clock and the referenced
// invoice.
func (s *Service) HandleEvent(ctx context.Context, event domain.RecalcEvent) error {
	if !event.Kind.Valid() {
		return fmt.Errorf("%w: kind %q", domain.ErrInvalidEvent, event.Kind)
	}

	now := s.clock.Now()
	periods, err := s.affectedPeriods(ctx, event, now)
	if err != nil {
		return err
	}

	s.log.Info("recalculation triggered",
		zap.String("action", "metrics.recalc.triggered"),
		zap.String("event", string(event.Kind)),
		zap.Int("periods", len(periods)),
	)

	var errs error
	for _, period := range periods {
		started := s.clock.Now()
		_, computeErr := s.ComputeAndPersist(ctx, period.Year(), period.Month())
		s.recordRecompute(string(event.Kind), started, computeErr)
		if computeErr != nil {
			errs = errors.Join(errs, fmt.Errorf("recompute %s for %s: %w", period, event.Kind, computeErr))
		}
	}
	return errs
}

// affectedPeriods applies the per-event policy. Every event recomputes
// the current calendar period. invoice_paid additionally corrects the
// payment's own month when the payment is backdated into a different
// period, and tenant_activated also refreshes the previous month because
// next month's churn denominator baselines on this month's active count.
func (s *Service) affectedPeriods(ctx context.Context, event domain.RecalcEvent, now time.Time) ([]domain.Period, error) {
	current := domain.PeriodOf(now)
	periods := []domain.Period{current}

	switch event.Kind {
	case domain.EventInvoicePaid:
		paidAt, err := s.resolvePaymentDate(ctx, event, now)
		if err != nil {
			return nil, err
		}
		if paymentPeriod := domain.PeriodOf(paidAt); paymentPeriod != current {
			periods = append(periods, paymentPeriod)
		}
	case domain.EventTenantActivated:
		periods = append(periods, current.Prev())
	}

	return periods, nil
}

// resolvePaymentDate prefers the referenced invoice's recorded paid_at
// over the event timestamp, falling back to the event time and finally
// the clock.
func (s *Service) resolvePaymentDate(ctx context.Context, event domain.RecalcEvent, now time.Time) (time.Time, error) {
	if event.InvoiceID != nil {
		invoice, err := s.invoiceRepo.FindByID(ctx, s.db, *event.InvoiceID)
		if err != nil {
			return time.Time{}, fmt.Errorf("resolve invoice %s: %w", event.InvoiceID, err)
		}
		if invoice != nil && invoice.PaidAt != nil {
			return *invoice.PaidAt, nil
		}
	}
	if !event.OccurredAt.IsZero() {
		return event.OccurredAt, nil
	}
	return now, nil
}
