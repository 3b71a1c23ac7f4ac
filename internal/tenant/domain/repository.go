package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repository exposes the read-only aggregate queries the metrics engine
// needs over tenants. Nothing here mutates tenant rows.
type Repository interface {
	CountTotal(ctx context.Context, db *gorm.DB) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status TenantStatus) (int64, error)
	CountCreatedInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error)
	// CountActiveCreatedBefore is the churn-rate denominator: tenants that
	// are active now and existed before the period started.
	CountActiveCreatedBefore(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
	// CountCancelledInRange approximates cancellations from the mutable
	// status and update timestamp. Recomputing a past period after further
	// tenant changes can shift this number.
	CountCancelledInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error)
	SumActiveMonthlyPrice(ctx context.Context, db *gorm.DB) (int64, error)
	CountActiveWithoutPrice(ctx context.Context, db *gorm.DB) (int64, error)
}
