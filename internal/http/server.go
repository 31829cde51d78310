package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/trafficgate/postback-gateway/internal/config"
	"github.com/trafficgate/postback-gateway/internal/engine"
	"github.com/trafficgate/postback-gateway/internal/http/middleware"
	"github.com/trafficgate/postback-gateway/internal/metrics"
	"github.com/trafficgate/postback-gateway/internal/repository"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, eng *engine.Engine) *Server {
	// repos (MySQL)
	operatorsRepo := repository.NewOperatorsRepository(mysqlDB)
	attemptsRepo := repository.NewAttemptsRepository(mysqlDB)

	// repos (ClickHouse)
	chAttemptsRepo := repository.NewCHAttemptsRepository(clickhouseDB)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(operatorsRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:op:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.GET("/profiles/:id/attempts", listAttemptsHandler(chAttemptsRepo))
	v1.GET("/profiles/:id/stats", statsHandler(attemptsRepo))
	v1.POST("/profiles/:id/test", testInvokeHandler(eng))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
