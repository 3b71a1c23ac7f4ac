package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/opencivic/muniva/internal/clock"
	"github.com/opencivic/muniva/internal/config"
	invoicedomain "github.com/opencivic/muniva/internal/invoice/domain"
	obslogger "github.com/opencivic/muniva/internal/observability/logger"
	obsmetrics "github.com/opencivic/muniva/internal/observability/metrics"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	tenantdomain "github.com/opencivic/muniva/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	SnapshotRepo domain.Repository
	TenantRepo   tenantdomain.Repository
	InvoiceRepo  invoicedomain.Repository
	CostModel    domain.CostModel
	// LatestSnapshot overrides the default latest-snapshot read; tests pin
	// it to exercise LTV's cross-period dependency.
	LatestSnapshot domain.LatestSnapshotProvider `optional:"true"`
	// Settings exposes the hot-reloadable engine tunables; absent, the
	// built-in defaults apply.
	Settings *config.EngineConfigHolder `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	snapshotRepo   domain.Repository
	tenantRepo     tenantdomain.Repository
	invoiceRepo    invoicedomain.Repository
	costModel      domain.CostModel
	latestSnapshot domain.LatestSnapshotProvider
	settings       *config.EngineConfigHolder

	periodLocks *periodLocks
}

func New(p Params) domain.Service {
	s := &Service{
		db:             p.DB,
		log:            p.Log.Named("saasmetrics.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		snapshotRepo:   p.SnapshotRepo,
		tenantRepo:     p.TenantRepo,
		invoiceRepo:    p.InvoiceRepo,
		costModel:      p.CostModel,
		latestSnapshot: p.LatestSnapshot,
		settings:       p.Settings,
		periodLocks:    newPeriodLocks(),
	}
	if s.latestSnapshot == nil {
		s.latestSnapshot = func(ctx context.Context) (*domain.MetricsSnapshot, error) {
			return s.snapshotRepo.FindLatest(ctx, s.db)
		}
	}
	return s
}

// snapshotInputs are the raw aggregate reads one computation needs. The
// reads are independent of each other and run concurrently.
type snapshotInputs struct {
	mrr               int64
	monthlyRevenue    int64
	activeCount       int64
	activeAtStart     int64
	cancelledInPeriod int64
	invoicesCreated   int64
	invoicesPaid      int64
	pending           invoicedomain.StatusAggregate
	overdue           invoicedomain.StatusAggregate
}

func (s *Service) ComputeAndPersist(ctx context.Context, year int, month time.Month) (*domain.MetricsSnapshot, error) {
	period, err := domain.NewPeriod(year, month)
	if err != nil {
		return nil, err
	}

	// Serialize writers per period; concurrent triggers for different
	// periods still proceed in parallel.
	unlock := s.periodLocks.lock(period)
	defer unlock()

	// LTV reads whatever is currently the latest snapshot, not the period
	// being computed. Resolved once, before the aggregate reads.
	latest, err := s.latestSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}

	// The upsert preserves the stored row's identity, so a recomputation
	// must carry the existing id and created_at for the returned snapshot
	// to match the row.
	existing, err := s.snapshotRepo.FindByPeriod(ctx, s.db, period)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", period, err)
	}

	inputs, err := s.readInputs(ctx, period)
	if err != nil {
		return nil, err
	}

	cac, err := s.costModel.AcquisitionCost(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("resolve acquisition cost: %w", err)
	}

	now := s.clock.Now()
	snapshot := s.assemble(period, inputs, latest, existing, cac, now)
	if err := s.snapshotRepo.Upsert(ctx, s.db, snapshot); err != nil {
		return nil, fmt.Errorf("persist snapshot %s: %w", period, err)
	}

	obslogger.WithPeriod(s.log, period.String()).Info("metrics snapshot computed",
		zap.String("action", "metrics.snapshot.computed"),
		zap.Int64("mrr", snapshot.MRR),
		zap.Int64("arr", snapshot.ARR),
		zap.Int64("monthly_revenue", snapshot.MonthlyRevenue),
		zap.Float64("churn_rate", snapshot.ChurnRate),
		zap.Float64("collection_rate", snapshot.CollectionRate),
	)
	return snapshot, nil
}

func (s *Service) readInputs(ctx context.Context, period domain.Period) (*snapshotInputs, error) {
	start, end := period.Bounds()
	inputs := &snapshotInputs{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inputs.mrr, err = s.tenantRepo.SumActiveMonthlyPrice(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.monthlyRevenue, err = s.invoiceRepo.SumPaidInRange(gctx, s.db, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.activeCount, err = s.tenantRepo.CountByStatus(gctx, s.db, tenantdomain.TenantStatusActive)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.activeAtStart, err = s.tenantRepo.CountActiveCreatedBefore(gctx, s.db, start)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.cancelledInPeriod, err = s.tenantRepo.CountCancelledInRange(gctx, s.db, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.invoicesCreated, err = s.invoiceRepo.CountCreatedInRange(gctx, s.db, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.invoicesPaid, err = s.invoiceRepo.CountPaidCreatedInRange(gctx, s.db, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.pending, err = s.invoiceRepo.AggregateByStatus(gctx, s.db, invoicedomain.InvoiceStatusPending)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.overdue, err = s.invoiceRepo.AggregateByStatus(gctx, s.db, invoicedomain.InvoiceStatusOverdue)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read source aggregates for %s: %w", period, err)
	}
	return inputs, nil
}

// assemble turns raw aggregates into the full snapshot payload. Every
// ratio falls back to zero on a zero denominator.
func (s *Service) assemble(period domain.Period, in *snapshotInputs, latest, existing *domain.MetricsSnapshot, cac float64, now time.Time) *domain.MetricsSnapshot {
	churnRate := 0.0
	if in.activeAtStart > 0 {
		churnRate = float64(in.cancelledInPeriod) / float64(in.activeAtStart) * 100
	}
	if churnRate > 100 {
		churnRate = 100
	}

	arpu := 0.0
	if in.activeCount > 0 {
		arpu = float64(in.monthlyRevenue) / float64(in.activeCount)
	}

	// LTV projects from the latest stored snapshot, not this period's own
	// arpu/churn. Zero when there is no prior snapshot or no churn.
	ltv := 0.0
	if latest != nil && latest.ChurnRate > 0 {
		ltv = latest.ARPU / (latest.ChurnRate / 100)
	}

	collectionRate := 0.0
	if in.invoicesCreated > 0 {
		collectionRate = float64(in.invoicesPaid) / float64(in.invoicesCreated) * 100
	}

	id := s.genID.Generate()
	createdAt := now
	if existing != nil {
		id = existing.ID
		createdAt = existing.CreatedAt
	}

	return &domain.MetricsSnapshot{
		ID:                  id,
		Period:              period.String(),
		MRR:                 in.mrr,
		ARR:                 in.mrr * 12,
		MonthlyRevenue:      in.monthlyRevenue,
		ChurnRate:           churnRate,
		ARPU:                arpu,
		LTV:                 ltv,
		CAC:                 cac,
		PendingInvoiceCount: in.pending.Count,
		PendingAmount:       in.pending.Amount,
		OverdueInvoiceCount: in.overdue.Count,
		OverdueAmount:       in.overdue.Amount,
		CollectionRate:      collectionRate,
		CreatedAt:           createdAt,
		UpdatedAt:           now,
	}
}

func (s *Service) GetSaasMetrics(ctx context.Context, period string) (*domain.MetricsReport, error) {
	var snapshot *domain.MetricsSnapshot

	if period != "" {
		parsed, err := domain.ParsePeriod(period)
		if err != nil {
			return nil, err
		}
		snapshot, err = s.snapshotRepo.FindByPeriod(ctx, s.db, parsed)
		if err != nil {
			return nil, err
		}
	}
	if snapshot == nil {
		var err error
		snapshot, err = s.snapshotRepo.FindLatest(ctx, s.db)
		if err != nil {
			return nil, err
		}
	}
	if snapshot == nil {
		// Nothing has ever been computed: compute the current real-world
		// month, even if the caller asked for a different period.
		now := s.clock.Now()
		var err error
		snapshot, err = s.ComputeAndPersist(ctx, now.Year(), now.Month())
		if err != nil {
			return nil, err
		}
	}

	return s.buildReport(ctx, snapshot)
}

func (s *Service) buildReport(ctx context.Context, snapshot *domain.MetricsSnapshot) (*domain.MetricsReport, error) {
	period, err := domain.ParsePeriod(snapshot.Period)
	if err != nil {
		return nil, err
	}
	start, end := period.Bounds()

	var customers domain.CustomerBreakdown
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		customers.Total, err = s.tenantRepo.CountTotal(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		customers.Active, err = s.tenantRepo.CountByStatus(gctx, s.db, tenantdomain.TenantStatusActive)
		return err
	})
	g.Go(func() error {
		var err error
		customers.New, err = s.tenantRepo.CountCreatedInRange(gctx, s.db, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		customers.Cancelled, err = s.tenantRepo.CountCancelledInRange(gctx, s.db, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read customer aggregates: %w", err)
	}

	previous, err := s.snapshotRepo.FindByPeriod(ctx, s.db, period.Prev())
	if err != nil {
		return nil, err
	}
	growth := 0.0
	if previous != nil && previous.MRR > 0 {
		growth = (float64(snapshot.MRR) - float64(previous.MRR)) / float64(previous.MRR) * 100
	}

	return &domain.MetricsReport{
		Snapshot:  snapshot,
		Customers: customers,
		MRRGrowth: growth,
	}, nil
}

func (s *Service) GetEvolution(ctx context.Context, months int) ([]domain.EvolutionPoint, error) {
	if months <= 0 || months > 120 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidEvolution, months)
	}

	snapshots, err := s.snapshotRepo.FindLastN(ctx, s.db, months)
	if err != nil {
		return nil, err
	}

	// FindLastN is newest first; trends read oldest first.
	points := make([]domain.EvolutionPoint, 0, len(snapshots))
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		growth := 0.0
		if i+1 < len(snapshots) && snapshots[i+1].MRR > 0 {
			prev := snapshots[i+1]
			growth = (float64(snap.MRR) - float64(prev.MRR)) / float64(prev.MRR) * 100
		}
		points = append(points, domain.EvolutionPoint{
			Period:         snap.Period,
			MRR:            snap.MRR,
			ARR:            snap.ARR,
			MonthlyRevenue: snap.MonthlyRevenue,
			ChurnRate:      snap.ChurnRate,
			CollectionRate: snap.CollectionRate,
			MRRGrowth:      growth,
		})
	}
	return points, nil
}

func (s *Service) recordRecompute(source string, started time.Time, err error) {
	engineMetrics := obsmetrics.Engine()
	engineMetrics.IncRecomputeRun(source)
	engineMetrics.ObserveRecomputeDuration(source, time.Since(started))
	if err != nil {
		engineMetrics.IncRecomputeError(source, err)
	}
}
