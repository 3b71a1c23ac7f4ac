package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StatusAggregate is a count/sum pair over invoices in one status.
type StatusAggregate struct {
	Count  int64
	Amount int64
}

// Repository exposes the aggregate queries the metrics engine reads, plus
// the overdue sweep used by daily maintenance. The sweep is the only write.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	SumPaidInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error)
	CountCreatedInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error)
	CountPaidCreatedInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error)
	AggregateByStatus(ctx context.Context, db *gorm.DB, status InvoiceStatus) (StatusAggregate, error)
	CountPaidMissingPaidAt(ctx context.Context, db *gorm.DB) (int64, error)
	CountZeroAmount(ctx context.Context, db *gorm.DB) (int64, error)
	// MarkOverdue flips pending invoices past their due date to OVERDUE and
	// returns how many rows changed.
	MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
