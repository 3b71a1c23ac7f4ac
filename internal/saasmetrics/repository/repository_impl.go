package repository

import (
	"context"
	"fmt"

	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	pkgdb "github.com/opencivic/muniva/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// snapshotValueColumns are the fields an upsert overwrites on conflict.
// Identity (id, period) and created_at survive the rewrite.
var snapshotValueColumns = []string{
	"mrr",
	"arr",
	"monthly_revenue",
	"churn_rate",
	"arpu",
	"ltv",
	"cac",
	"pending_invoice_count",
	"pending_amount",
	"overdue_invoice_count",
	"overdue_amount",
	"collection_rate",
	"updated_at",
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, snapshot *domain.MetricsSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "period"}},
		DoUpdates: clause.AssignmentColumns(snapshotValueColumns),
	}).Create(snapshot).Error
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, snapshot *domain.MetricsSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(snapshot).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: period %s", domain.ErrSnapshotExists, snapshot.Period)
		}
		return err
	}
	return nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, snapshot *domain.MetricsSnapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	result := db.WithContext(ctx).
		Model(&domain.MetricsSnapshot{}).
		Where("period = ?", snapshot.Period).
		Select(snapshotValueColumns).
		Updates(snapshot)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

func (r *repo) FindByPeriod(ctx context.Context, db *gorm.DB, period domain.Period) (*domain.MetricsSnapshot, error) {
	var snapshot domain.MetricsSnapshot
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metrics_snapshots WHERE period = ?`,
		string(period),
	).Scan(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return &snapshot, nil
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB) (*domain.MetricsSnapshot, error) {
	var snapshot domain.MetricsSnapshot
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metrics_snapshots ORDER BY period DESC LIMIT 1`,
	).Scan(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return &snapshot, nil
}

func (r *repo) FindRange(ctx context.Context, db *gorm.DB, start, end domain.Period) ([]*domain.MetricsSnapshot, error) {
	var snapshots []*domain.MetricsSnapshot
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metrics_snapshots
		 WHERE period >= ? AND period <= ?
		 ORDER BY period ASC`,
		string(start),
		string(end),
	).Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repo) FindLastN(ctx context.Context, db *gorm.DB, n int) ([]*domain.MetricsSnapshot, error) {
	if n <= 0 {
		return nil, nil
	}
	var snapshots []*domain.MetricsSnapshot
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM metrics_snapshots ORDER BY period DESC LIMIT ?`,
		n,
	).Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *repo) ListDescending(ctx context.Context, db *gorm.DB, before domain.Period, limit int) ([]*domain.MetricsSnapshot, error) {
	if limit <= 0 {
		return nil, nil
	}
	stmt := db.WithContext(ctx).
		Model(&domain.MetricsSnapshot{})
	if before != "" {
		stmt = stmt.Where("period < ?", string(before))
	}
	var snapshots []*domain.MetricsSnapshot
	err := stmt.
		Order("period desc").
		Limit(limit).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}
