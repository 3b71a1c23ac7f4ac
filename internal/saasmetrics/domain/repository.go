package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository is the snapshot store: one row per period, point and range
// lookups, and the idempotent upsert that recomputation writes through.
// Find methods return (nil, nil) when no row matches.
type Repository interface {
	// Upsert inserts the snapshot or fully overwrites the value fields of
	// the existing row for the same period, advancing updated_at. This is
	// the only write path recomputation may use.
	Upsert(ctx context.Context, db *gorm.DB, snapshot *MetricsSnapshot) error
	// Create and Update exist for direct administrative edits only.
	Create(ctx context.Context, db *gorm.DB, snapshot *MetricsSnapshot) error
	Update(ctx context.Context, db *gorm.DB, snapshot *MetricsSnapshot) error

	FindByPeriod(ctx context.Context, db *gorm.DB, period Period) (*MetricsSnapshot, error)
	FindLatest(ctx context.Context, db *gorm.DB) (*MetricsSnapshot, error)
	FindRange(ctx context.Context, db *gorm.DB, start, end Period) ([]*MetricsSnapshot, error)
	FindLastN(ctx context.Context, db *gorm.DB, n int) ([]*MetricsSnapshot, error)
	// ListDescending pages snapshots newest first; a zero before starts
	// from the latest period.
	ListDescending(ctx context.Context, db *gorm.DB, before Period, limit int) ([]*MetricsSnapshot, error)
}

// LatestSnapshotProvider resolves "whatever is currently the latest
// snapshot" for LTV's cross-period read. Modeled as an explicit
// collaborator so tests can pin it.
type LatestSnapshotProvider func(ctx context.Context) (*MetricsSnapshot, error)
