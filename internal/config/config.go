// Package config loads the service configuration from defaults, an optional
// .env file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Storage driver names accepted by the persistence layer.
const (
	StorageDriverNoop     = "noop"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Storage    StorageConfig    `json:"storage"`
	Redis      RedisConfig      `json:"redis"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Reports    ReportsConfig    `json:"reports"`
	Logging    LoggingConfig    `json:"logging"`
	Rules      RulesConfig      `json:"rules"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Port         int    `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds"`
}

// StorageConfig selects and tunes the persistence adapter. The noop driver
// keeps everything in memory and is the default; postgres and sqlite are the
// durable bindings.
type StorageConfig struct {
	Driver         string `json:"driver"`
	PostgresDSN    string `json:"-"` // Never serialize credentials
	SQLitePath     string `json:"sqlite_path"`
	RetryAttempts  int    `json:"retry_attempts"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RedisConfig configures the rate limiter backend. Rate limiting is skipped
// entirely when disabled, so the server runs without Redis in development.
type RedisConfig struct {
	Enabled           bool   `json:"enabled"`
	Addr              string `json:"addr"`
	Password          string `json:"-"` // Never serialize credentials
	DB                int    `json:"db"`
	IngestPerMinute   int    `json:"ingest_per_minute"`
	RequestsPerMinute int    `json:"requests_per_minute"`
}

// MonitoringConfig tunes buffer caps and detection parameters.
type MonitoringConfig struct {
	MetricHistoryLimit   int     `json:"metric_history_limit"`
	SnapshotHistoryLimit int     `json:"snapshot_history_limit"`
	CostHistoryLimit     int     `json:"cost_history_limit"`
	AnomalyHistoryLimit  int     `json:"anomaly_history_limit"`
	SLAHistoryLimit      int     `json:"sla_history_limit"`
	TrendHistoryLimit    int     `json:"trend_history_limit"`
	AnomalyWindowSize    int     `json:"anomaly_window_size"`
	AnomalyMinSamples    int     `json:"anomaly_min_samples"`
	AnomalyTriggerScore  float64 `json:"anomaly_trigger_score"`
	SlowQueryThresholdMs float64 `json:"slow_query_threshold_ms"`
}

// ReportsConfig tunes report generation and delivery.
type ReportsConfig struct {
	ExportDir            string `json:"export_dir"`
	HistoryLimit         int    `json:"history_limit"`
	DeliveryRetryLimit   int    `json:"delivery_retry_limit"`
	DeliveryRetryDelayMs int    `json:"delivery_retry_delay_ms"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// RulesConfig points at the optional YAML provisioning file with declared
// thresholds, SLA definitions, and dashboards applied at boot.
type RulesConfig struct {
	Path string `json:"path,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Storage: StorageConfig{
			Driver:         StorageDriverNoop,
			SQLitePath:     "./data/vigil.db",
			RetryAttempts:  3,
			TimeoutSeconds: 30,
		},
		Redis: RedisConfig{
			Enabled:           false,
			Addr:              "localhost:6379",
			DB:                0,
			IngestPerMinute:   6000,
			RequestsPerMinute: 600,
		},
		Monitoring: MonitoringConfig{
			MetricHistoryLimit:   10000,
			SnapshotHistoryLimit: 1000,
			CostHistoryLimit:     500,
			AnomalyHistoryLimit:  1000,
			SLAHistoryLimit:      1000,
			TrendHistoryLimit:    10000,
			AnomalyWindowSize:    20,
			AnomalyMinSamples:    5,
			AnomalyTriggerScore:  0.8,
			SlowQueryThresholdMs: 1000,
		},
		Reports: ReportsConfig{
			ExportDir:            "/tmp",
			HistoryLimit:         1000,
			DeliveryRetryLimit:   3,
			DeliveryRetryDelayMs: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Rules: RulesConfig{},
	}
}

// LoadConfig loads configuration from defaults, an optional .env file, and
// environment variables, then validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// A missing .env is fine; anything else is a real problem.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := DefaultConfig()
	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadFromEnv(config *Config) {
	loadServerConfig(config)
	loadStorageConfig(config)
	loadRedisConfig(config)
	loadMonitoringConfig(config)
	loadReportsConfig(config)
	loadLoggingConfig(config)
	loadRulesConfig(config)
}

func loadServerConfig(config *Config) {
	if port := os.Getenv("VIGIL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("VIGIL_HOST"); host != "" {
		config.Server.Host = host
	}
	if readTimeout := os.Getenv("VIGIL_READ_TIMEOUT_SECONDS"); readTimeout != "" {
		if rt, err := strconv.Atoi(readTimeout); err == nil {
			config.Server.ReadTimeout = rt
		}
	}
	if writeTimeout := os.Getenv("VIGIL_WRITE_TIMEOUT_SECONDS"); writeTimeout != "" {
		if wt, err := strconv.Atoi(writeTimeout); err == nil {
			config.Server.WriteTimeout = wt
		}
	}
}

func loadStorageConfig(config *Config) {
	if driver := os.Getenv("VIGIL_STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}

	// Check both the prefixed and the conventional env var.
	if dsn := os.Getenv("VIGIL_POSTGRES_DSN"); dsn != "" {
		config.Storage.PostgresDSN = dsn
	} else if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Storage.PostgresDSN = dsn
	}

	if path := os.Getenv("VIGIL_SQLITE_PATH"); path != "" {
		config.Storage.SQLitePath = path
	}
	if attempts := os.Getenv("VIGIL_STORAGE_RETRY_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Storage.RetryAttempts = a
		}
	}
	if timeout := os.Getenv("VIGIL_STORAGE_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			config.Storage.TimeoutSeconds = t
		}
	}
}

func loadRedisConfig(config *Config) {
	if enabled := os.Getenv("VIGIL_RATE_LIMIT_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Redis.Enabled = e
		}
	}

	if addr := os.Getenv("VIGIL_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	} else if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}

	if password := os.Getenv("VIGIL_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	} else if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	if db := os.Getenv("VIGIL_REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = d
		}
	}
	if rpm := os.Getenv("VIGIL_INGEST_PER_MINUTE"); rpm != "" {
		if r, err := strconv.Atoi(rpm); err == nil {
			config.Redis.IngestPerMinute = r
		}
	}
	if rpm := os.Getenv("VIGIL_REQUESTS_PER_MINUTE"); rpm != "" {
		if r, err := strconv.Atoi(rpm); err == nil {
			config.Redis.RequestsPerMinute = r
		}
	}
}

func loadMonitoringConfig(config *Config) {
	if limit := os.Getenv("VIGIL_METRIC_HISTORY_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Monitoring.MetricHistoryLimit = l
		}
	}
	if limit := os.Getenv("VIGIL_SNAPSHOT_HISTORY_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Monitoring.SnapshotHistoryLimit = l
		}
	}
	if limit := os.Getenv("VIGIL_COST_HISTORY_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Monitoring.CostHistoryLimit = l
		}
	}
	if window := os.Getenv("VIGIL_ANOMALY_WINDOW_SIZE"); window != "" {
		if w, err := strconv.Atoi(window); err == nil {
			config.Monitoring.AnomalyWindowSize = w
		}
	}
	if minSamples := os.Getenv("VIGIL_ANOMALY_MIN_SAMPLES"); minSamples != "" {
		if m, err := strconv.Atoi(minSamples); err == nil {
			config.Monitoring.AnomalyMinSamples = m
		}
	}
	if trigger := os.Getenv("VIGIL_ANOMALY_TRIGGER_SCORE"); trigger != "" {
		if t, err := strconv.ParseFloat(trigger, 64); err == nil {
			config.Monitoring.AnomalyTriggerScore = t
		}
	}
	if threshold := os.Getenv("VIGIL_SLOW_QUERY_THRESHOLD_MS"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Monitoring.SlowQueryThresholdMs = t
		}
	}
}

func loadReportsConfig(config *Config) {
	if dir := os.Getenv("VIGIL_EXPORT_DIR"); dir != "" {
		config.Reports.ExportDir = dir
	}
	if limit := os.Getenv("VIGIL_REPORT_HISTORY_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			config.Reports.HistoryLimit = l
		}
	}
	if retries := os.Getenv("VIGIL_DELIVERY_RETRY_LIMIT"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Reports.DeliveryRetryLimit = r
		}
	}
}

func loadLoggingConfig(config *Config) {
	if level := os.Getenv("VIGIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("VIGIL_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

func loadRulesConfig(config *Config) {
	if path := os.Getenv("VIGIL_RULES_FILE"); path != "" {
		config.Rules.Path = path
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	switch c.Storage.Driver {
	case StorageDriverNoop, StorageDriverPostgres, StorageDriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == StorageDriverPostgres && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("postgres driver requires VIGIL_POSTGRES_DSN or DATABASE_URL")
	}
	if c.Storage.Driver == StorageDriverSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite driver requires a database path")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address cannot be empty when rate limiting is enabled")
	}

	m := &c.Monitoring
	if m.MetricHistoryLimit <= 0 || m.SnapshotHistoryLimit <= 0 || m.CostHistoryLimit <= 0 {
		return fmt.Errorf("history limits must be positive")
	}
	if m.AnomalyMinSamples < 2 {
		return fmt.Errorf("anomaly detection needs at least 2 samples, got %d", m.AnomalyMinSamples)
	}
	if m.AnomalyWindowSize < m.AnomalyMinSamples {
		return fmt.Errorf("anomaly window size %d is smaller than the minimum sample count %d",
			m.AnomalyWindowSize, m.AnomalyMinSamples)
	}
	if m.AnomalyTriggerScore <= 0 || m.AnomalyTriggerScore > 1 {
		return fmt.Errorf("anomaly trigger score must be within (0,1], got %.2f", m.AnomalyTriggerScore)
	}

	if c.Reports.ExportDir == "" {
		return fmt.Errorf("report export directory cannot be empty")
	}

	return nil
}
