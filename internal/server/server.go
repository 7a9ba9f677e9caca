package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/voundbrand/gatehouse/internal/audit/domain"
	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/observability/tracing"
	provisioningdomain "github.com/voundbrand/gatehouse/internal/provisioning/domain"
	"github.com/voundbrand/gatehouse/internal/ratelimit"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(tracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	provisionsvc  provisioningdomain.Service
	queue         taskdomain.Queue
	auditsvc      auditdomain.Service
	signupLimiter *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	ProvisionSvc  provisioningdomain.Service
	Queue         taskdomain.Queue
	AuditSvc      auditdomain.Service
	SignupLimiter *ratelimit.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		provisionsvc:  p.ProvisionSvc,
		queue:         p.Queue,
		auditsvc:      p.AuditSvc,
		signupLimiter: p.SignupLimiter,
	}
}

func registerRoutes(s *Server) {
	v1 := s.engine.Group("/v1")
	v1.Use(s.SignupRateLimit())
	{
		v1.POST("/signup", s.Signup)
		v1.POST("/oauth/:provider/callback", s.OAuthCallback)
		v1.POST("/oauth/:provider/native", s.OAuthNative)
	}

	internal := s.engine.Group("/internal")
	{
		internal.GET("/tasks/dead", s.ListDeadTasks)
		internal.GET("/audit", s.ListAuditEvents)
	}
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server failed", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
