package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jeremyholland-coder/stageflow/internal/config"
	"github.com/jeremyholland-coder/stageflow/internal/observability/logger"
	"github.com/jeremyholland-coder/stageflow/internal/observability/metrics"
	"github.com/jeremyholland-coder/stageflow/internal/observability/tracing"
	providerdomain "github.com/jeremyholland-coder/stageflow/internal/provider/domain"
	webhookdomain "github.com/jeremyholland-coder/stageflow/internal/webhook/domain"
)

type Server struct {
	cfg         config.Config
	log         *zap.Logger
	db          *gorm.DB
	engine      *gin.Engine
	providerSvc providerdomain.Service
	webhookSvc  webhookdomain.Service
	triggerRate *rateLimiter
}

type Params struct {
	fx.In

	Config      config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	Engine      *gin.Engine
	ProviderSvc providerdomain.Service
	WebhookSvc  webhookdomain.Service
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{SkipPaths: []string{"/healthz", "/metrics"}}))
	engine.Use(tracing.GinMiddleware())

	httpMetrics, err := metrics.NewHTTPMetrics(metrics.Config{
		ServiceName: "stageflow",
		Environment: cfg.Environment,
	}, otel.GetMeterProvider())
	if err == nil {
		engine.Use(metrics.GinMiddleware(httpMetrics))
	}
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:         p.Config,
		log:         p.Log.Named("server"),
		db:          p.DB,
		engine:      p.Engine,
		providerSvc: p.ProviderSvc,
		webhookSvc:  p.WebhookSvc,
		triggerRate: newRateLimiter(p.Config.TriggerRateLimit, p.Config.TriggerRateWindow),
	}
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.POST("/webhooks/:provider", s.IngestProviderWebhook)

	api := s.engine.Group("/api/v1", s.APIKeyRequired())
	api.POST("/webhooks/trigger", s.TriggerRateLimit(), s.TriggerWebhook)
	api.GET("/webhooks/:id/deliveries", s.ListWebhookDeliveries)
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP binds the engine to the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
