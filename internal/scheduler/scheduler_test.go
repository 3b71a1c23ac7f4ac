package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/opencivic/muniva/internal/clock"
	invoicedomain "github.com/opencivic/muniva/internal/invoice/domain"
	invoicerepository "github.com/opencivic/muniva/internal/invoice/repository"
	metricsdomain "github.com/opencivic/muniva/internal/saasmetrics/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// metricsServiceStub records which engine entry points the scheduler hit.
type metricsServiceStub struct {
	events       []metricsdomain.RecalcEvent
	healthCalls  int
	handleErr    error
	healthStatus metricsdomain.HealthStatus
}

func (s *metricsServiceStub) ComputeAndPersist(ctx context.Context, year int, month time.Month) (*metricsdomain.MetricsSnapshot, error) {
	return nil, errors.New("not expected")
}

func (s *metricsServiceStub) GetSaasMetrics(ctx context.Context, period string) (*metricsdomain.MetricsReport, error) {
	return nil, errors.New("not expected")
}

func (s *metricsServiceStub) GetEvolution(ctx context.Context, months int) ([]metricsdomain.EvolutionPoint, error) {
	return nil, errors.New("not expected")
}

func (s *metricsServiceStub) HandleEvent(ctx context.Context, event metricsdomain.RecalcEvent) error {
	s.events = append(s.events, event)
	return s.handleErr
}

func (s *metricsServiceStub) Backfill(ctx context.Context, req metricsdomain.BackfillRequest) (*metricsdomain.BackfillResult, error) {
	return nil, errors.New("not expected")
}

func (s *metricsServiceStub) HealthReport(ctx context.Context) *metricsdomain.HealthReport {
	s.healthCalls++
	status := s.healthStatus
	if status == "" {
		status = metricsdomain.HealthStatusHealthy
	}
	return &metricsdomain.HealthReport{Status: status, Issues: []string{}}
}

// failingInvoiceRepo fails the overdue sweep only.
type failingInvoiceRepo struct {
	invoicedomain.Repository
}

func (r *failingInvoiceRepo) MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	return 0, errors.New("sweep unavailable")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&invoicedomain.Invoice{}))
	return db
}

func seedInvoice(t *testing.T, db *gorm.DB, node *snowflake.Node, status invoicedomain.InvoiceStatus, dueAt time.Time) *invoicedomain.Invoice {
	t.Helper()
	invoice := &invoicedomain.Invoice{
		ID:       node.Generate(),
		TenantID: node.Generate(),
		Status:   status,
		Amount:   100,
		DueAt:    &dueAt,
	}
	assert.NoError(t, db.Create(invoice).Error)
	return invoice
}

func TestRunOnce_ExecutesMaintenanceRoutine(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	now := time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)
	stub := &metricsServiceStub{}

	overdue := seedInvoice(t, db, node, invoicedomain.InvoiceStatusPending, now.Add(-48*time.Hour))
	current := seedInvoice(t, db, node, invoicedomain.InvoiceStatusPending, now.Add(48*time.Hour))

	s, err := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(now),
		MetricsSvc:  stub,
		InvoiceRepo: invoicerepository.Provide(),
	})
	assert.NoError(t, err)

	assert.NoError(t, s.RunOnce(context.Background()))

	// Past-due pending invoice flipped, the future one untouched.
	var reloaded invoicedomain.Invoice
	assert.NoError(t, db.First(&reloaded, "id = ?", overdue.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, reloaded.Status)
	reloaded = invoicedomain.Invoice{}
	assert.NoError(t, db.First(&reloaded, "id = ?", current.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, reloaded.Status)

	// The recompute ran through the manual trigger path, then the check.
	assert.Len(t, stub.events, 1)
	assert.Equal(t, metricsdomain.EventManualTrigger, stub.events[0].Kind)
	assert.Equal(t, 1, stub.healthCalls)
}

func TestRunOnce_FailedJobDoesNotBlockTheRest(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)
	stub := &metricsServiceStub{healthStatus: metricsdomain.HealthStatusWarning}

	s, err := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(now),
		MetricsSvc:  stub,
		InvoiceRepo: &failingInvoiceRepo{Repository: invoicerepository.Provide()},
	})
	assert.NoError(t, err)

	err = s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mark_overdue")

	// The later jobs still ran.
	assert.Len(t, stub.events, 1)
	assert.Equal(t, 1, stub.healthCalls)
}

func TestRunOnce_SurfacesRecomputeFailure(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)
	stub := &metricsServiceStub{handleErr: errors.New("sources unavailable")}

	s, err := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(now),
		MetricsSvc:  stub,
		InvoiceRepo: invoicerepository.Provide(),
	})
	assert.NoError(t, err)

	err = s.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "recompute_current")
	assert.Equal(t, 1, stub.healthCalls)
}

func TestRunOnce_DisabledJobsAreSkipped(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)
	now := time.Date(2024, time.March, 15, 6, 0, 0, 0, time.UTC)
	stub := &metricsServiceStub{}

	overdue := seedInvoice(t, db, node, invoicedomain.InvoiceStatusPending, now.Add(-48*time.Hour))

	s, err := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(now),
		MetricsSvc:  stub,
		InvoiceRepo: invoicerepository.Provide(),
		Config: Config{
			EnabledJobs: map[string]bool{"mark_overdue": false},
		},
	})
	assert.NoError(t, err)

	assert.NoError(t, s.RunOnce(context.Background()))

	var reloaded invoicedomain.Invoice
	assert.NoError(t, db.First(&reloaded, "id = ?", overdue.ID).Error)
	assert.Equal(t, invoicedomain.InvoiceStatusPending, reloaded.Status)
	assert.Len(t, stub.events, 1)
	assert.Equal(t, 1, stub.healthCalls)
}

func TestNew_RejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 24*time.Hour, cfg.RunInterval)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.True(t, cfg.isJobEnabled("mark_overdue"))

	cfg.EnabledJobs = map[string]bool{"health_check": false}
	assert.False(t, cfg.isJobEnabled("health_check"))
	assert.True(t, cfg.isJobEnabled("mark_overdue"))
}
