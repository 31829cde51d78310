package db

import (
	"context"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
)

type ClickHouseOpts struct {
	DSN             string // e.g. clickhouse://default:@localhost:9000/pbgw?dial_timeout=5s&compress=true
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration // default 3s
}

func NewClickHouseConnection(opts ClickHouseOpts) (*sqlx.DB, error) {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 3 * time.Second
	}
	conn, err := sqlx.Open("clickhouse", opts.DSN)
	if err != nil {
		return nil, err
	}

	applyPool(conn, opts.MaxOpenConns, opts.MaxIdleConns, opts.ConnMaxLifetime, opts.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}
