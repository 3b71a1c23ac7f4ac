package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/opencivic/muniva/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, status, amount, due_at, paid_at, metadata, created_at, updated_at
		 FROM invoices WHERE id = ?`,
		id,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) SumPaidInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM invoices
		 WHERE status = ? AND paid_at >= ? AND paid_at < ?`,
		domain.InvoiceStatusPaid,
		start,
		end,
	).Scan(&total).Error
	return total, err
}

func (r *repo) CountCreatedInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE created_at >= ? AND created_at < ?`,
		start,
		end,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountPaidCreatedInRange(ctx context.Context, db *gorm.DB, start, end time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices
		 WHERE status = ? AND created_at >= ? AND created_at < ?`,
		domain.InvoiceStatusPaid,
		start,
		end,
	).Scan(&count).Error
	return count, err
}

func (r *repo) AggregateByStatus(ctx context.Context, db *gorm.DB, status domain.InvoiceStatus) (domain.StatusAggregate, error) {
	var agg domain.StatusAggregate
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
		 FROM invoices WHERE status = ?`,
		status,
	).Scan(&agg).Error
	return agg, err
}

func (r *repo) CountPaidMissingPaidAt(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE status = ? AND paid_at IS NULL`,
		domain.InvoiceStatusPaid,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountZeroAmount(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE amount = 0`,
	).Scan(&count).Error
	return count, err
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices SET status = ?, updated_at = ?
		 WHERE status = ? AND due_at IS NOT NULL AND due_at < ?`,
		domain.InvoiceStatusOverdue,
		now,
		domain.InvoiceStatusPending,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
