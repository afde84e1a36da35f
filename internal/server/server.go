package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/plansight/plansight/internal/admission"
	admissiondomain "github.com/plansight/plansight/internal/admission/domain"
	"github.com/plansight/plansight/internal/cache"
	"github.com/plansight/plansight/internal/config"
	"github.com/plansight/plansight/internal/job"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	"github.com/plansight/plansight/internal/ledger"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
	obsmetrics "github.com/plansight/plansight/internal/observability/metrics"
	"github.com/plansight/plansight/internal/ratelimit"
	"github.com/plansight/plansight/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobSnapshotTTL = 2 * time.Second

// Module assembles the HTTP surface with its domain dependencies.
var Module = fx.Module("http.server",
	obsmetrics.Module,
	ratelimit.Module,
	ledger.Module,
	job.Module,
	admission.Module,
	tracker.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())
	return r
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	ledgerSvc    ledgerdomain.Service
	jobSvc       jobdomain.Service
	admissionSvc admissiondomain.Service
	trackers     *tracker.Factory
	jobCache     cache.Cache[string, *jobdomain.AnalysisJob]
	gatherer     prometheus.Gatherer
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	LedgerSvc    ledgerdomain.Service
	JobSvc       jobdomain.Service
	AdmissionSvc admissiondomain.Service
	Trackers     *tracker.Factory
	Gatherer     prometheus.Gatherer
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		ledgerSvc:    p.LedgerSvc,
		jobSvc:       p.JobSvc,
		admissionSvc: p.AdmissionSvc,
		trackers:     p.Trackers,
		jobCache:     cache.NewTTLCache[string, *jobdomain.AnalysisJob](),
		gatherer:     p.Gatherer,
	}
}

func registerRoutes(s *Server) {
	r := s.engine

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.Use(RequireUser())
	{
		v1.POST("/analyses", s.StartAnalysis)
		v1.GET("/jobs/:id", s.GetJob)
		v1.POST("/jobs/:id/wait", s.WaitJob)
		v1.GET("/usage", s.GetUsage)
		v1.POST("/subscription", s.UpgradeSubscription)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
