package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/trafficgate/postback-gateway/internal/config"
	"github.com/trafficgate/postback-gateway/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo operators and postback profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo operators and profiles...")

		if err := seedOperators(sqlDB); err != nil {
			return err
		}
		if err := seedProfiles(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedOperator struct {
	Name         string
	APIKey       string
	Status       string
	RateLimitRPS *int
}

// seedOperators inserts deterministic demo operators (idempotent).
func seedOperators(dbx *sqlx.DB) error {
	operators := []seedOperator{
		{
			Name:         "Ops Dashboard",
			APIKey:       "11111111111111111111111111111111",
			Status:       "active",
			RateLimitRPS: intptr(20),
		},
		{
			Name:         "Partner Portal",
			APIKey:       "22222222222222222222222222222222",
			Status:       "active",
			RateLimitRPS: intptr(5),
		},
		{
			Name:         "Suspended Operator",
			APIKey:       "33333333333333333333333333333333",
			Status:       "suspended",
			RateLimitRPS: nil,
		},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO operators
    (name, api_key, status, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    status         = VALUES(status),
    rate_limit_rps = VALUES(rate_limit_rps),
    updated_at     = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	for _, o := range operators {
		if _, err := tx.Exec(q, o.Name, o.APIKey, o.Status, o.RateLimitRPS, now, now); err != nil {
			return fmt.Errorf("insert operator %q: %w", o.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit operators: %w", err)
	}
	return nil
}

// seedProfiles inserts two demo postback profiles when the table is empty:
// a global GET tracker and an offer-scoped signed POST.
func seedProfiles(dbx *sqlx.DB) error {
	var count int
	if err := dbx.Get(&count, `SELECT COUNT(*) FROM postback_profiles`); err != nil {
		return fmt.Errorf("count profiles: %w", err)
	}
	if count > 0 {
		return nil
	}

	const q = `
INSERT INTO postback_profiles
    (name, tracker_type, scope_type, scope_id, priority, enabled,
     url, method, id_param, status_map, params, url_encode_values,
     hmac_enabled, hmac_secret, hmac_payload, hmac_sig_param,
     max_attempts, timeout_ms, backoff_base_sec,
     revenue_gt_zero, country_allow, country_deny, exclude_bots)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	rows := [][]any{
		{
			"Global analytics", "custom", "global", "", 10, true,
			"https://tracker.example.com/postback", "GET", "clickid",
			`{"lead":"conversion","deposit":"sale"}`,
			`{"clickid":"{clickid}","status":"{status}","payout":"{payout}","country":"{country}"}`,
			true,
			false, "", nil, "signature",
			3, 5000, 30,
			false, `[]`, `[]`, true,
		},
		{
			"Offer 42 S2S", "custom", "offer", "42", 20, true,
			"https://partner.example.net/s2s", "POST", "subid",
			`{"lead":"approved"}`,
			`{"subid":"{clickid}","status":"{status}","sum":"{revenue}","currency":"{currency}"}`,
			true,
			true, "demo-secret", "{clickid}{status}", "signature",
			5, 8000, 60,
			true, `["US","CA","GB"]`, `[]`, true,
		},
	}

	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, args := range rows {
		if _, err := tx.Exec(q, args...); err != nil {
			return fmt.Errorf("insert profile %v: %w", args[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit profiles: %w", err)
	}
	return nil
}

func intptr(i int) *int { return &i }
