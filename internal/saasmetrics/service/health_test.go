package service

import (
	"context"
	"testing"
	"time"

	"github.com/opencivic/muniva/internal/config"
	invoicedomain "github.com/opencivic/muniva/internal/invoice/domain"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	tenantdomain "github.com/opencivic/muniva/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHealthReport_Healthy(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	_, err := env.svc.ComputeAndPersist(ctx, 2024, time.March)
	assert.NoError(t, err)

	report := env.svc.HealthReport(ctx)
	assert.Equal(t, domain.HealthStatusHealthy, report.Status)
	assert.Empty(t, report.Issues)
	assert.NotNil(t, report.Metrics)
	assert.NotNil(t, report.LastCalculation)
}

func TestHealthReport_WarnsWhenNeverComputed(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))

	report := env.svc.HealthReport(context.Background())
	assert.Equal(t, domain.HealthStatusWarning, report.Status)
	assert.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "never been computed")
	assert.Nil(t, report.Metrics)
	assert.Nil(t, report.LastCalculation)
}

func TestHealthReport_WarnsOnStaleSnapshot(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	_, err := env.svc.ComputeAndPersist(ctx, 2024, time.March)
	assert.NoError(t, err)

	env.clock.Advance(25 * time.Hour)
	report := env.svc.HealthReport(ctx)
	assert.Equal(t, domain.HealthStatusWarning, report.Status)
	assert.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "stale")
}

func TestHealthReport_ConfiguredStaleThreshold(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	svc := New(Params{
		DB:           env.db,
		Log:          zap.NewNop(),
		GenID:        env.node,
		Clock:        env.clock,
		SnapshotRepo: env.repo,
		TenantRepo:   env.tenants,
		InvoiceRepo:  env.invoices,
		CostModel:    NewFixedCostModel(0),
		Settings: config.StaticEngineConfigHolder(config.EngineConfig{
			SnapshotStaleAfter: time.Hour,
			JobTimeout:         time.Minute,
		}),
	})

	_, err := svc.ComputeAndPersist(ctx, 2024, time.March)
	assert.NoError(t, err)

	// Two hours is past the configured one-hour threshold, well inside
	// the built-in 24h default.
	env.clock.Advance(2 * time.Hour)
	report := svc.HealthReport(ctx)
	assert.Equal(t, domain.HealthStatusWarning, report.Status)
	assert.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "stale")
}

func TestHealthReport_WarnsOnSourceInconsistencies(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	_, err := env.svc.ComputeAndPersist(ctx, 2024, time.March)
	assert.NoError(t, err)

	tenant := env.seedTenant(t, tenantdomain.TenantStatusActive, nil, utc(2024, time.January, 1), utc(2024, time.January, 1))
	env.seedInvoice(t, tenant.ID, invoicedomain.InvoiceStatusPaid, 100, utc(2024, time.March, 1), nil)

	report := env.svc.HealthReport(ctx)
	assert.Equal(t, domain.HealthStatusWarning, report.Status)
	assert.Len(t, report.Issues, 2)
	assert.Contains(t, report.Issues[0], "no monthly price")
	assert.Contains(t, report.Issues[1], "missing a payment date")
}

func TestHealthReport_ErrorStatusAboveThreeIssues(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	// Four findings at once: no snapshot ever, an unpriced active tenant,
	// a paid invoice without paid_at, and a zero-amount invoice.
	tenant := env.seedTenant(t, tenantdomain.TenantStatusActive, nil, utc(2024, time.January, 1), utc(2024, time.January, 1))
	env.seedInvoice(t, tenant.ID, invoicedomain.InvoiceStatusPaid, 100, utc(2024, time.March, 1), nil)
	env.seedInvoice(t, tenant.ID, invoicedomain.InvoiceStatusPending, 0, utc(2024, time.March, 2), nil)

	report := env.svc.HealthReport(ctx)
	assert.Equal(t, domain.HealthStatusError, report.Status)
	assert.Len(t, report.Issues, 4)
}

func TestHealthReport_ChecksNeverThrow(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))

	// Dropping the source tables makes every aggregate read fail; the
	// report degrades to error status instead of propagating the failure.
	assert.NoError(t, env.db.Migrator().DropTable(&tenantdomain.Tenant{}))

	report := env.svc.HealthReport(context.Background())
	assert.Equal(t, domain.HealthStatusError, report.Status)
	assert.NotEmpty(t, report.Issues)
	assert.Contains(t, report.Issues[len(report.Issues)-1], "health check failed")
}
