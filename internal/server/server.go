package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opencivic/muniva/internal/config"
	"github.com/opencivic/muniva/internal/invoice"
	"github.com/opencivic/muniva/internal/observability"
	obsmiddleware "github.com/opencivic/muniva/internal/observability/logger"
	obsmetrics "github.com/opencivic/muniva/internal/observability/metrics"
	"github.com/opencivic/muniva/internal/saasmetrics"
	metricsdomain "github.com/opencivic/muniva/internal/saasmetrics/domain"
	"github.com/opencivic/muniva/internal/tenant"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	tenant.Module,
	invoice.Module,
	saasmetrics.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with recovery, request logging, metrics
// and error translation, plus the liveness and prometheus endpoints.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	metricsSvc   metricsdomain.Service
	snapshotRepo metricsdomain.Repository
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	MetricsSvc   metricsdomain.Service
	SnapshotRepo metricsdomain.Repository
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		metricsSvc:   p.MetricsSvc,
		snapshotRepo: p.SnapshotRepo,
	}
}

func registerRoutes(s *Server) {
	s.RegisterMetricsRoutes()
}

// RegisterMetricsRoutes mounts the billing-metrics admin API.
func (s *Server) RegisterMetricsRoutes() {
	v1 := s.engine.Group("/v1")
	v1.GET("/metrics/saas", s.GetSaasMetrics)
	v1.GET("/metrics/saas/evolution", s.GetMetricsEvolution)
	v1.GET("/metrics/saas/snapshots", s.ListMetricsSnapshots)
	v1.GET("/metrics/saas/health", s.GetMetricsHealth)
	v1.POST("/metrics/saas/recalculate", s.RecalculateMetrics)
	v1.POST("/metrics/saas/backfill", s.BackfillMetrics)
}
