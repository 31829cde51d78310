package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trafficgate/postback-gateway/internal/config"
	"github.com/trafficgate/postback-gateway/internal/db"
	"github.com/trafficgate/postback-gateway/internal/engine"
	"github.com/trafficgate/postback-gateway/internal/executor"
	httpSrv "github.com/trafficgate/postback-gateway/internal/http"
	"github.com/trafficgate/postback-gateway/internal/logger"
	"github.com/trafficgate/postback-gateway/internal/model"
	"github.com/trafficgate/postback-gateway/internal/repository"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run operator HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.LogLevel)
		defer logger.Sync()

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		// Engine for the synchronous test endpoint; the delivery pool
		// runs in the worker process, not here.
		eng := engine.New(
			repository.NewProfilesRepository(mysqlDB),
			repository.NewAttemptsRepository(mysqlDB),
			executor.New(cfg.Engine.MaxBodyExcerpt),
			engine.NewRedisScheduler(redisClient),
		)
		eng.Defaults = model.RetryPolicy{
			MaxAttempts:    cfg.Defaults.MaxAttempts,
			TimeoutMs:      cfg.Defaults.TimeoutMs,
			BackoffBaseSec: cfg.Defaults.BackoffBaseSec,
		}

		server := httpSrv.NewServer(cfg, mysqlDB, chDB, redisClient, eng)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("starting http on %s", cfg.HTTP.Addr)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("signal received: %s, shutting down...", sig)
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
