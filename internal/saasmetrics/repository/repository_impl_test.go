package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&domain.MetricsSnapshot{}))
	return db
}

func newSnapshot(node *snowflake.Node, period string, mrr int64, at time.Time) *domain.MetricsSnapshot {
	return &domain.MetricsSnapshot{
		ID:        node.Generate(),
		Period:    period,
		MRR:       mrr,
		ARR:       mrr * 12,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	day1 := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	first := newSnapshot(node, "2024-03", 100, day1)
	assert.NoError(t, repo.Upsert(ctx, db, first))

	// Second upsert for the same period overwrites the value fields but
	// keeps the original row identity and created_at.
	day2 := day1.Add(24 * time.Hour)
	second := newSnapshot(node, "2024-03", 250, day2)
	second.CollectionRate = 70
	assert.NoError(t, repo.Upsert(ctx, db, second))

	var count int64
	assert.NoError(t, db.Model(&domain.MetricsSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := repo.FindByPeriod(ctx, db, "2024-03")
	assert.NoError(t, err)
	assert.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, int64(250), stored.MRR)
	assert.Equal(t, int64(3000), stored.ARR)
	assert.Equal(t, 70.0, stored.CollectionRate)
	assert.Equal(t, day1.Unix(), stored.CreatedAt.Unix())
	assert.Equal(t, day2.Unix(), stored.UpdatedAt.Unix())
}

func TestUpsert_RejectsInvalidSnapshot(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	broken := newSnapshot(node, "2024-03", 100, time.Now().UTC())
	broken.ARR = 999
	assert.ErrorIs(t, repo.Upsert(ctx, db, broken), domain.ErrInvalidSnapshot)

	stored, err := repo.FindByPeriod(ctx, db, "2024-03")
	assert.NoError(t, err)
	assert.Nil(t, stored)
}

func TestFindByPeriod_AbsentIsNilNil(t *testing.T) {
	db := setupTestDB(t)
	repo := Provide()

	snapshot, err := repo.FindByPeriod(context.Background(), db, "2024-03")
	assert.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestFindLatest(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	latest, err := repo.FindLatest(ctx, db)
	assert.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now().UTC()
	// Inserted out of order; latest is decided by period, not insertion.
	for _, period := range []string{"2024-02", "2023-12", "2024-01"} {
		assert.NoError(t, repo.Upsert(ctx, db, newSnapshot(node, period, 100, now)))
	}

	latest, err = repo.FindLatest(ctx, db)
	assert.NoError(t, err)
	assert.NotNil(t, latest)
	assert.Equal(t, "2024-02", latest.Period)
}

func TestFindRange(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	now := time.Now().UTC()
	for _, period := range []string{"2023-11", "2023-12", "2024-01", "2024-02"} {
		assert.NoError(t, repo.Upsert(ctx, db, newSnapshot(node, period, 100, now)))
	}

	snapshots, err := repo.FindRange(ctx, db, "2023-12", "2024-01")
	assert.NoError(t, err)
	assert.Len(t, snapshots, 2)
	assert.Equal(t, "2023-12", snapshots[0].Period)
	assert.Equal(t, "2024-01", snapshots[1].Period)

	empty, err := repo.FindRange(ctx, db, "2020-01", "2020-06")
	assert.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFindLastN(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	now := time.Now().UTC()
	for _, period := range []string{"2024-01", "2024-02", "2024-03", "2024-04"} {
		assert.NoError(t, repo.Upsert(ctx, db, newSnapshot(node, period, 100, now)))
	}

	snapshots, err := repo.FindLastN(ctx, db, 2)
	assert.NoError(t, err)
	assert.Len(t, snapshots, 2)
	assert.Equal(t, "2024-04", snapshots[0].Period)
	assert.Equal(t, "2024-03", snapshots[1].Period)

	none, err := repo.FindLastN(ctx, db, 0)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestListDescending_Pagination(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	now := time.Now().UTC()
	for _, period := range []string{"2024-01", "2024-02", "2024-03", "2024-04"} {
		assert.NoError(t, repo.Upsert(ctx, db, newSnapshot(node, period, 100, now)))
	}

	page, err := repo.ListDescending(ctx, db, "", 2)
	assert.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "2024-04", page[0].Period)
	assert.Equal(t, "2024-03", page[1].Period)

	page, err = repo.ListDescending(ctx, db, "2024-03", 2)
	assert.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "2024-02", page[0].Period)
	assert.Equal(t, "2024-01", page[1].Period)

	page, err = repo.ListDescending(ctx, db, "2024-01", 2)
	assert.NoError(t, err)
	assert.Empty(t, page)
}

func TestUpdate_MissingRow(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()

	err := repo.Update(context.Background(), db, newSnapshot(node, "2024-03", 100, time.Now().UTC()))
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestCreate_DuplicatePeriodRejected(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	repo := Provide()
	ctx := context.Background()

	now := time.Now().UTC()
	assert.NoError(t, repo.Create(ctx, db, newSnapshot(node, "2024-03", 100, now)))
	assert.ErrorIs(t, repo.Create(ctx, db, newSnapshot(node, "2024-03", 200, now)), domain.ErrSnapshotExists)

	// The original row survives the rejected write.
	stored, err := repo.FindByPeriod(ctx, db, "2024-03")
	assert.NoError(t, err)
	assert.NotNil(t, stored)
	assert.Equal(t, int64(100), stored.MRR)
}
