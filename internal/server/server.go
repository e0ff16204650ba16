// Package server wires the HTTP surface: routing, auth, rate limiting
// and the JSON error contract.
package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rxbuddy/loyalty/internal/config"
	"github.com/rxbuddy/loyalty/internal/observability/logger"
	"github.com/rxbuddy/loyalty/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Server struct {
	engine *gin.Engine
	addr   string
	log    *zap.Logger

	http *http.Server
}

type ServerParam struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	DB          *gorm.DB
	HTTPMetrics *metrics.HTTPMetrics `optional:"true"`

	Cards  *CardHandler
	Points *PointsHandler
	Config *ConfigHandler
	Audit  *AuditHandler
}

func NewServer(p ServerParam) *Server {
	if p.Cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz"},
	}))
	engine.Use(metrics.GinMiddleware(p.HTTPMetrics))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := NewRateLimiter(p.Cfg.RateLimit, p.Cfg.RateWindow)

	v1 := engine.Group("/v1")
	v1.Use(limiter.Middleware())
	v1.Use(APIKeyAuth(p.DB, p.Log))
	registerRoutes(v1, p)

	return &Server{
		engine: engine,
		addr:   p.Cfg.HTTPAddr,
		log:    p.Log.Named("server"),
	}
}

func registerRoutes(v1 *gin.RouterGroup, p ServerParam) {
	cards := v1.Group("/cards")
	{
		cards.POST("", p.Cards.CreateCard)
		cards.GET("", p.Cards.ListCards)
		cards.GET("/number/:number", p.Cards.GetCardByNumber)
		cards.GET("/:id", p.Cards.GetCard)
		cards.DELETE("/:id", p.Cards.DeactivateCard)
		cards.POST("/:id/referrer", p.Cards.LinkReferrer)
		cards.GET("/:id/referrals", p.Cards.ListReferrals)
		cards.GET("/:id/balance", p.Points.Balance)
		cards.GET("/:id/transactions", p.Points.Transactions)
	}

	points := v1.Group("/points")
	{
		points.POST("/earn", p.Points.Earn)
		points.POST("/redeem", p.Points.Redeem)
	}

	cfg := v1.Group("/config")
	{
		cfg.GET("", p.Config.GetConfig)
		cfg.PUT("", p.Config.UpdateConfig)
		cfg.POST("/enable", p.Config.EnableConfig)
		cfg.POST("/disable", p.Config.DisableConfig)
		cfg.GET("/category-rates", p.Config.ListCategoryRates)
		cfg.PUT("/category-rates", p.Config.SaveCategoryRate)
		cfg.DELETE("/category-rates/:id", p.Config.DeleteCategoryRate)
		cfg.GET("/category-discounts", p.Config.ListCategoryDiscounts)
		cfg.PUT("/category-discounts", p.Config.SaveCategoryDiscount)
		cfg.DELETE("/category-discounts/:id", p.Config.DeleteCategoryDiscount)
	}

	v1.GET("/audit-logs", p.Audit.ListAuditLogs)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) Start() error {
	s.http = &http.Server{Addr: s.addr, Handler: s.engine}
	s.log.Info("http server listening", zap.String("addr", s.addr))
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

var Module = fx.Module("server",
	fx.Provide(
		NewCardHandler,
		NewPointsHandler,
		NewConfigHandler,
		NewAuditHandler,
		NewServer,
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  func(ctx context.Context) error { return s.Shutdown(ctx) },
		})
	}),
)
