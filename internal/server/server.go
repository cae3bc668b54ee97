package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gainsai/gains-backend/internal/config"
	"github.com/gainsai/gains-backend/internal/db"
	gatewaydomain "github.com/gainsai/gains-backend/internal/gateway/domain"
	"github.com/gainsai/gains-backend/internal/migration"
	"github.com/gainsai/gains-backend/internal/observability"
	referraldomain "github.com/gainsai/gains-backend/internal/referral/domain"
	webhookdomain "github.com/gainsai/gains-backend/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(RunHTTP),
)

const shutdownTimeout = 10 * time.Second

type Params struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	DB          *db.Handle
	Redis       *redis.Client `optional:"true"`
	SchemaGate  migration.SchemaGate
	Registry    *prometheus.Registry
	Metrics     *observability.Metrics
	Claude      gatewaydomain.ImageCompleter
	Perplexity  gatewaydomain.ChatCompleter
	WebhookSvc  webhookdomain.Service
	ReferralSvc referraldomain.Service
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	db         *db.Handle
	redis      *redis.Client
	schemaGate migration.SchemaGate
	registry   *prometheus.Registry
	metrics    *observability.Metrics

	claude      gatewaydomain.ImageCompleter
	perplexity  gatewaydomain.ChatCompleter
	webhookSvc  webhookdomain.Service
	referralSvc referraldomain.Service
}

func New(p Params) *Server {
	if !p.Cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := p.Metrics
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}

	s := &Server{
		engine:      gin.New(),
		cfg:         p.Cfg,
		log:         p.Log.Named("server"),
		db:          p.DB,
		redis:       p.Redis,
		schemaGate:  p.SchemaGate,
		registry:    p.Registry,
		metrics:     metrics,
		claude:      p.Claude,
		perplexity:  p.Perplexity,
		webhookSvc:  p.WebhookSvc,
		referralSvc: p.ReferralSvc,
	}

	s.engine.Use(
		RequestID(),
		s.AccessLog(),
		s.Recovery(),
		s.CORS(),
		BodyLimit(p.Cfg.BodyLimit),
	)
	s.RegisterRoutes()
	return s
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/", s.Root)

	s.RegisterSystemRoutes()

	api := s.engine.Group("/api")
	api.POST("/claude", s.Claude)
	api.POST("/perplexity", s.Perplexity)
	api.POST("/revenuecat-webhook", s.RevenueCatWebhook)

	influencer := api.Group("/influencer")
	// Static route first so "create" is never read as a code.
	influencer.POST("/create", s.CreateReferralCode)
	influencer.GET("/:code", s.GetReferralStats)
	influencer.GET("/:code/purchases", s.ListReferralPurchases)
}

func (s *Server) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Gains AI Backend API"})
}

// RunHTTP binds the listener on start and drains in-flight requests on stop.
func RunHTTP(lc fx.Lifecycle, s *Server, cfg config.Config, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", httpServer.Addr))
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	})
}
