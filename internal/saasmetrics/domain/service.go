package domain

import (
	"context"
	"time"
)

// BackfillRequest is a closed, inclusive range of periods to recompute.
type BackfillRequest struct {
	StartYear  int        `json:"start_year"`
	StartMonth time.Month `json:"start_month"`
	EndYear    int        `json:"end_year"`
	EndMonth   time.Month `json:"end_month"`
}

// BackfillFailure records one period the backfill could not compute.
type BackfillFailure struct {
	Period Period `json:"period"`
	Reason string `json:"reason"`
}

// BackfillResult summarizes a completed backfill pass. The batch itself
// never fails on individual periods; failures are listed here instead.
type BackfillResult struct {
	Computed []Period          `json:"computed"`
	Failed   []BackfillFailure `json:"failed"`
}

// CostModel supplies customer-acquisition cost. The engine cannot derive
// CAC from billing data, so it is injected rather than computed.
type CostModel interface {
	AcquisitionCost(ctx context.Context, period Period) (float64, error)
}

// Service is the billing-metrics engine: the calculator, the event-driven
// recalculation trigger, the backfill runner and the consistency reporter
// behind one contract.
type Service interface {
	// ComputeAndPersist derives every metric for the period from live
	// source aggregates and upserts the complete snapshot. All-or-nothing:
	// any source read failure aborts the write.
	ComputeAndPersist(ctx context.Context, year int, month time.Month) (*MetricsSnapshot, error)

	// GetSaasMetrics returns the report for the requested period, falling
	// back to the latest snapshot when that period was never computed. If
	// no snapshot exists at all it computes and persists the current
	// real-world month and reports that, regardless of the requested
	// period.
	GetSaasMetrics(ctx context.Context, period string) (*MetricsReport, error)

	// GetEvolution returns trend points for the most recent n months,
	// ascending by period.
	GetEvolution(ctx context.Context, months int) ([]EvolutionPoint, error)

	// HandleEvent recomputes every period affected by the business event.
	// Failures propagate to the caller.
	HandleEvent(ctx context.Context, event RecalcEvent) error

	// Backfill recomputes the inclusive range in chronological order,
	// logging and skipping per-period failures.
	Backfill(ctx context.Context, req BackfillRequest) (*BackfillResult, error)

	// HealthReport runs the read-only consistency pass.
	HealthReport(ctx context.Context) *HealthReport
}
