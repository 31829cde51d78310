package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	LogLevel   string          `mapstructure:"log_level"`
	HTTP       HTTPConfig      `mapstructure:"http"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Engine     EngineConfig    `mapstructure:"engine"`
	Defaults   RetryDefaults   `mapstructure:"defaults"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	Topic          string   `mapstructure:"topic"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type EngineConfig struct {
	WorkerCount       int           `mapstructure:"worker_count"`
	QueueSize         int           `mapstructure:"queue_size"`
	IntakeWorkers     int           `mapstructure:"intake_workers"`
	RetryPollInterval time.Duration `mapstructure:"retry_poll_interval"`
	DedupeTTL         time.Duration `mapstructure:"dedupe_ttl"`
	MaxBodyExcerpt    int           `mapstructure:"max_body_excerpt"`
}

// RetryDefaults fill in profile retry settings left at zero by the operator.
type RetryDefaults struct {
	MaxAttempts    int `mapstructure:"max_attempts"`
	TimeoutMs      int `mapstructure:"timeout_ms"`
	BackoffBaseSec int `mapstructure:"backoff_base_sec"`
}

type RateLimitConfig struct {
	RPS int `mapstructure:"rps"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (PBGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (PBGW_*)
	v.SetEnvPrefix("PBGW")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
