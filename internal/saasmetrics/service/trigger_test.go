package service

import (
	"context"
	"testing"
	"time"

	invoicedomain "github.com/opencivic/muniva/internal/invoice/domain"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	tenantdomain "github.com/opencivic/muniva/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
)

func TestHandleEvent_InvalidKind(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))

	err := env.svc.HandleEvent(context.Background(), domain.RecalcEvent{Kind: "invoice_deleted"})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestHandleEvent_RecomputesCurrentPeriod(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	for _, kind := range []domain.RecalcEventKind{
		domain.EventInvoiceCreated,
		domain.EventTenantCancelled,
		domain.EventPlanChanged,
		domain.EventManualTrigger,
	} {
		assert.NoError(t, env.svc.HandleEvent(ctx, domain.RecalcEvent{Kind: kind}), string(kind))
	}

	snapshot, err := env.repo.FindByPeriod(ctx, env.db, "2024-03")
	assert.NoError(t, err)
	assert.NotNil(t, snapshot)

	// None of those kinds touches any other month.
	previous, err := env.repo.FindByPeriod(ctx, env.db, "2024-02")
	assert.NoError(t, err)
	assert.Nil(t, previous)
}

func TestHandleEvent_BackdatedPaymentRecomputesBothPeriods(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	tenant := env.seedTenant(t, tenantdomain.TenantStatusActive, ptrInt64(100), utc(2024, time.January, 1), utc(2024, time.January, 1))
	paidAt := utc(2024, time.January, 20)
	invoice := env.seedInvoice(t, tenant.ID, invoicedomain.InvoiceStatusPaid, 500, utc(2024, time.January, 10), &paidAt)

	err := env.svc.HandleEvent(ctx, domain.RecalcEvent{
		Kind:      domain.EventInvoicePaid,
		InvoiceID: &invoice.ID,
	})
	assert.NoError(t, err)

	// Both the current month and the payment's own month get snapshots.
	current, err := env.repo.FindByPeriod(ctx, env.db, "2024-03")
	assert.NoError(t, err)
	assert.NotNil(t, current)
	assert.Equal(t, int64(0), current.MonthlyRevenue)

	january, err := env.repo.FindByPeriod(ctx, env.db, "2024-01")
	assert.NoError(t, err)
	assert.NotNil(t, january)
	assert.Equal(t, int64(500), january.MonthlyRevenue)
}

func TestHandleEvent_PaymentInCurrentPeriodComputesOnce(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	tenant := env.seedTenant(t, tenantdomain.TenantStatusActive, ptrInt64(100), utc(2024, time.January, 1), utc(2024, time.January, 1))
	paidAt := utc(2024, time.March, 10)
	invoice := env.seedInvoice(t, tenant.ID, invoicedomain.InvoiceStatusPaid, 500, utc(2024, time.March, 5), &paidAt)

	err := env.svc.HandleEvent(ctx, domain.RecalcEvent{
		Kind:      domain.EventInvoicePaid,
		InvoiceID: &invoice.ID,
	})
	assert.NoError(t, err)

	var count int64
	assert.NoError(t, env.db.Model(&domain.MetricsSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleEvent_PaymentFallsBackToEventTime(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	// No invoice reference: the event timestamp decides the payment month.
	err := env.svc.HandleEvent(ctx, domain.RecalcEvent{
		Kind:       domain.EventInvoicePaid,
		OccurredAt: utc(2023, time.December, 28),
	})
	assert.NoError(t, err)

	december, err := env.repo.FindByPeriod(ctx, env.db, "2023-12")
	assert.NoError(t, err)
	assert.NotNil(t, december)
}

func TestHandleEvent_TenantActivatedRefreshesPreviousMonth(t *testing.T) {
	env := newTestEnv(t, utc(2024, time.March, 15))
	ctx := context.Background()

	err := env.svc.HandleEvent(ctx, domain.RecalcEvent{Kind: domain.EventTenantActivated})
	assert.NoError(t, err)

	for _, period := range []domain.Period{"2024-03", "2024-02"} {
		snapshot, err := env.repo.FindByPeriod(ctx, env.db, period)
		assert.NoError(t, err)
		assert.NotNil(t, snapshot, period.String())
	}
}
