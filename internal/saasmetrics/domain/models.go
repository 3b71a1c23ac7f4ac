// Package domain contains the persistence model and contracts for the
// recurring SaaS billing-metrics engine.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MetricsSnapshot is the persisted unit of the engine: every computed
// business metric for one calendar month. Rows are replaced in place by
// recomputation, never deleted; values are point-in-time best-effort
// derivations from live tenant and invoice aggregates, so recomputing a
// past period after the sources changed can legitimately shift it.
type MetricsSnapshot struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	Period string       `gorm:"type:text;not null;uniqueIndex:ux_metrics_snapshots_period" json:"period"`

	// Revenue, in currency minor units.
	MRR            int64 `gorm:"column:mrr;not null;default:0" json:"mrr"`
	ARR            int64 `gorm:"column:arr;not null;default:0" json:"arr"`
	MonthlyRevenue int64 `gorm:"not null;default:0" json:"monthly_revenue"`

	// Health ratios and per-customer figures.
	ChurnRate float64 `gorm:"not null;default:0" json:"churn_rate"`
	ARPU      float64 `gorm:"column:arpu;not null;default:0" json:"arpu"`
	LTV       float64 `gorm:"column:ltv;not null;default:0" json:"ltv"`
	CAC       float64 `gorm:"column:cac;not null;default:0" json:"cac"`

	// Billing operations.
	PendingInvoiceCount int64   `gorm:"not null;default:0" json:"pending_invoice_count"`
	PendingAmount       int64   `gorm:"not null;default:0" json:"pending_amount"`
	OverdueInvoiceCount int64   `gorm:"not null;default:0" json:"overdue_invoice_count"`
	OverdueAmount       int64   `gorm:"not null;default:0" json:"overdue_amount"`
	CollectionRate      float64 `gorm:"not null;default:0" json:"collection_rate"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (MetricsSnapshot) TableName() string { return "metrics_snapshots" }

// Validate enforces the write-time invariants: a well-formed period,
// arr = mrr x 12, non-negative money and counts, and ratio fields in
// [0, 100].
func (s *MetricsSnapshot) Validate() error {
	if _, err := ParsePeriod(s.Period); err != nil {
		return err
	}
	if s.ARR != s.MRR*12 {
		return fmt.Errorf("%w: arr %d != mrr %d x 12", ErrInvalidSnapshot, s.ARR, s.MRR)
	}
	for name, v := range map[string]int64{
		"mrr":                   s.MRR,
		"monthly_revenue":       s.MonthlyRevenue,
		"pending_invoice_count": s.PendingInvoiceCount,
		"pending_amount":        s.PendingAmount,
		"overdue_invoice_count": s.OverdueInvoiceCount,
		"overdue_amount":        s.OverdueAmount,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidSnapshot, name)
		}
	}
	for name, v := range map[string]float64{
		"churn_rate":      s.ChurnRate,
		"collection_rate": s.CollectionRate,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: %s outside [0, 100]", ErrInvalidSnapshot, name)
		}
	}
	if s.ARPU < 0 || s.LTV < 0 || s.CAC < 0 {
		return fmt.Errorf("%w: per-customer figures must be non-negative", ErrInvalidSnapshot)
	}
	return nil
}

// CustomerBreakdown carries customer counts derived at read time from the
// live tenant aggregate; they are not snapshotted historically.
type CustomerBreakdown struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	New       int64 `json:"new"`
	Cancelled int64 `json:"cancelled"`
}

// MetricsReport is the read-side view of one period: the stored snapshot
// plus the read-time derivations.
type MetricsReport struct {
	Snapshot  *MetricsSnapshot  `json:"snapshot"`
	Customers CustomerBreakdown `json:"customers"`
	// MRRGrowth is the percentage change against the previous period's
	// stored MRR; zero when there is no previous snapshot to compare.
	MRRGrowth float64 `json:"mrr_growth"`
}

// EvolutionPoint is one step of a trend query over recent snapshots.
type EvolutionPoint struct {
	Period         string  `json:"period"`
	MRR            int64   `json:"mrr"`
	ARR            int64   `json:"arr"`
	MonthlyRevenue int64   `json:"monthly_revenue"`
	ChurnRate      float64 `json:"churn_rate"`
	CollectionRate float64 `json:"collection_rate"`
	MRRGrowth      float64 `json:"mrr_growth"`
}

// HealthStatus classifies a consistency report.
type HealthStatus string

const (
	HealthStatusHealthy HealthStatus = "healthy"
	HealthStatusWarning HealthStatus = "warning"
	HealthStatusError   HealthStatus = "error"
)

// HealthReport is the outcome of the read-only consistency pass.
type HealthReport struct {
	Status          HealthStatus     `json:"status"`
	Issues          []string         `json:"issues"`
	Metrics         *MetricsSnapshot `json:"metrics,omitempty"`
	LastCalculation *time.Time       `json:"last_calculation,omitempty"`
}
