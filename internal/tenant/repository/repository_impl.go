package repository

import (
	"context"
	"time"

	"github.com/opencivic/muniva/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CountTotal(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenants`,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, status domain.TenantStatus) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenants WHERE status = ?`,
		status,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountCreatedInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenants WHERE created_at >= ? AND created_at < ?`,
		start,
		end,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountActiveCreatedBefore(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenants WHERE status = ? AND created_at < ?`,
		domain.TenantStatusActive,
		before,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountCancelledInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenants
		 WHERE status <> ? AND updated_at >= ? AND updated_at < ?`,
		domain.TenantStatusActive,
		start,
		end,
	).Scan(&count).Error
	return count, err
}

func (r *repo) SumActiveMonthlyPrice(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(monthly_price), 0) FROM tenants
		 WHERE status = ? AND monthly_price IS NOT NULL`,
		domain.TenantStatusActive,
	).Scan(&total).Error
	return total, err
}

func (r *repo) CountActiveWithoutPrice(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenants WHERE status = ? AND monthly_price IS NULL`,
		domain.TenantStatusActive,
	).Scan(&count).Error
	return count, err
}
