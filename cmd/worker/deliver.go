package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/trafficgate/postback-gateway/internal/config"
	"github.com/trafficgate/postback-gateway/internal/db"
	"github.com/trafficgate/postback-gateway/internal/engine"
	"github.com/trafficgate/postback-gateway/internal/executor"
	"github.com/trafficgate/postback-gateway/internal/kafka"
	"github.com/trafficgate/postback-gateway/internal/logger"
	"github.com/trafficgate/postback-gateway/internal/metrics"
	"github.com/trafficgate/postback-gateway/internal/model"
	"github.com/trafficgate/postback-gateway/internal/repository"
	"github.com/trafficgate/postback-gateway/internal/worker"
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Run the postback delivery worker",
	RunE:  runDeliver,
}

func runDeliver(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) DB connection (MySQL)
	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	// 3) Redis (retry queue + dedupe guard)
	rds, err := db.NewRedisClient(db.RedisOpts{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = rds.Close() }()

	// 4) engine
	eng := engine.New(
		repository.NewProfilesRepository(dbx),
		repository.NewAttemptsRepository(dbx),
		executor.New(cfg.Engine.MaxBodyExcerpt),
		engine.NewRedisScheduler(rds),
	)
	eng.Dedupe = engine.NewRedisDeduper(rds, cfg.Engine.DedupeTTL)
	eng.Defaults = model.RetryPolicy{
		MaxAttempts:    cfg.Defaults.MaxAttempts,
		TimeoutMs:      cfg.Defaults.TimeoutMs,
		BackoffBaseSec: cfg.Defaults.BackoffBaseSec,
	}
	if cfg.Engine.WorkerCount > 0 {
		eng.Workers = cfg.Engine.WorkerCount
	}
	if cfg.Engine.QueueSize > 0 {
		eng.QueueSize = cfg.Engine.QueueSize
	}
	if cfg.Engine.RetryPollInterval > 0 {
		eng.PollInterval = cfg.Engine.RetryPollInterval
	}

	// 5) kafka consumer
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "pbgw-deliver"
	}
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = "tracking.events"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	intake := worker.NewEventConsumer(consumer, eng)
	if cfg.Engine.IntakeWorkers > 0 {
		intake.Workers = cfg.Engine.IntakeWorkers
	}

	// 6) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> deliver started topic=%s group=%s workers=%d intake=%d",
		topic, groupID, eng.Workers, intake.Workers)

	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(ctx) }()

	if err := intake.Run(ctx); err != nil {
		return err
	}
	return <-errCh
}
