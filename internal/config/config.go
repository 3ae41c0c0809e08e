package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Vector-Attribution service.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	ClickHouse  ClickHouseConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Log         LogConfig
	Metrics     MetricsConfig
	Geo         GeoConfig
	Attribution AttributionConfig
	Propensity  PropensityConfig
	Anomaly     AnomalyConfig
	LTV         LTVConfig
	Aggregator  AggregatorConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// ClickHouseConfig configures the metric-history store.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP enrichment of ingested touchpoints.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// AttributionConfig holds credit-assignment model parameters.
type AttributionConfig struct {
	// HalfLife is the time-decay half-life.
	HalfLife time.Duration
	// UShapeEdgeWeight is the credit share of the first and of the last
	// touchpoint under the U-shape model.
	UShapeEdgeWeight float64
}

// PropensityConfig holds scorer parameters.
type PropensityConfig struct {
	RecencyWindow     time.Duration
	RecencyMultiplier float64
	InactivityWindow  time.Duration
	InactivityPenalty float64
	HotThreshold      float64
	WarmThreshold     float64
	CacheTTL          time.Duration
}

// AnomalyConfig holds deviation-detector parameters.
type AnomalyConfig struct {
	YellowThreshold float64
	RedThreshold    float64
	MinImpressions  int64
	MinSpend        float64
	HistoryDays     int
}

// LTVConfig holds cohort-projection parameters.
type LTVConfig struct {
	// BatchSize caps how many lead ids go into one transaction lookup.
	// The backing store enforces a hard ceiling on IN-style query
	// cardinality, so this is a correctness bound, not a tuning knob.
	BatchSize int
}

// AggregatorConfig holds cross-channel report parameters.
type AggregatorConfig struct {
	// AssumedOrderValue is the placeholder revenue proxy used for blended
	// ROAS/CPA until real revenue attribution is joined in.
	AssumedOrderValue float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("VECTOR_ATTR_HTTP_ADDR", ":8080"),
			Env:             getEnv("VECTOR_ATTR_ENV", "development"),
			ShutdownTimeout: getDurationEnv("VECTOR_ATTR_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("VECTOR_ATTR_DB_HOST", "localhost"),
			Port:     getIntEnv("VECTOR_ATTR_DB_PORT", 5432),
			User:     getEnv("VECTOR_ATTR_DB_USER", "vectorattr"),
			Password: getEnv("VECTOR_ATTR_DB_PASSWORD", "vectorattr_secret"),
			DBName:   getEnv("VECTOR_ATTR_DB_NAME", "vectorattr"),
			SSLMode:  getEnv("VECTOR_ATTR_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("VECTOR_ATTR_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("VECTOR_ATTR_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("VECTOR_ATTR_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VECTOR_ATTR_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VECTOR_ATTR_REDIS_DB", 0),
			PoolSize: getIntEnv("VECTOR_ATTR_REDIS_POOL_SIZE", 50),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("VECTOR_ATTR_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("VECTOR_ATTR_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("VECTOR_ATTR_CLICKHOUSE_DB", "vectorattr"),
			User:     getEnv("VECTOR_ATTR_CLICKHOUSE_USER", "default"),
			Password: getEnv("VECTOR_ATTR_CLICKHOUSE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("VECTOR_ATTR_AUTH_ENABLED", true),
			MasterKey: getEnv("VECTOR_ATTR_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("VECTOR_ATTR_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("VECTOR_ATTR_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("VECTOR_ATTR_RATE_LIMIT_RPS", 200),
			Burst:   getIntEnv("VECTOR_ATTR_RATE_LIMIT_BURST", 50),
		},
		Log: LogConfig{
			Level:  getEnv("VECTOR_ATTR_LOG_LEVEL", "info"),
			Format: getEnv("VECTOR_ATTR_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("VECTOR_ATTR_METRICS_ENABLED", true),
			Path:    getEnv("VECTOR_ATTR_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("VECTOR_ATTR_GEO_ENABLED", false),
			DatabasePath: getEnv("VECTOR_ATTR_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
		},
		Attribution: AttributionConfig{
			HalfLife:         getDurationEnv("VECTOR_ATTR_DECAY_HALF_LIFE", 7*24*time.Hour),
			UShapeEdgeWeight: getFloatEnv("VECTOR_ATTR_USHAPE_EDGE_WEIGHT", 0.4),
		},
		Propensity: PropensityConfig{
			RecencyWindow:     getDurationEnv("VECTOR_ATTR_PROPENSITY_RECENCY_WINDOW", 24*time.Hour),
			RecencyMultiplier: getFloatEnv("VECTOR_ATTR_PROPENSITY_RECENCY_MULT", 1.5),
			InactivityWindow:  getDurationEnv("VECTOR_ATTR_PROPENSITY_INACTIVITY_WINDOW", 7*24*time.Hour),
			InactivityPenalty: getFloatEnv("VECTOR_ATTR_PROPENSITY_INACTIVITY_PENALTY", 0.5),
			HotThreshold:      getFloatEnv("VECTOR_ATTR_PROPENSITY_HOT", 0.7),
			WarmThreshold:     getFloatEnv("VECTOR_ATTR_PROPENSITY_WARM", 0.3),
			CacheTTL:          getDurationEnv("VECTOR_ATTR_PROPENSITY_CACHE_TTL", 6*time.Hour),
		},
		Anomaly: AnomalyConfig{
			YellowThreshold: getFloatEnv("VECTOR_ATTR_ANOMALY_YELLOW", 2.0),
			RedThreshold:    getFloatEnv("VECTOR_ATTR_ANOMALY_RED", 3.0),
			MinImpressions:  int64(getIntEnv("VECTOR_ATTR_ANOMALY_MIN_IMPRESSIONS", 100)),
			MinSpend:        getFloatEnv("VECTOR_ATTR_ANOMALY_MIN_SPEND", 10),
			HistoryDays:     getIntEnv("VECTOR_ATTR_ANOMALY_HISTORY_DAYS", 30),
		},
		LTV: LTVConfig{
			BatchSize: getIntEnv("VECTOR_ATTR_LTV_BATCH_SIZE", 10),
		},
		Aggregator: AggregatorConfig{
			AssumedOrderValue: getFloatEnv("VECTOR_ATTR_ASSUMED_ORDER_VALUE", 50),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("VECTOR_ATTR_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Anomaly.RedThreshold < c.Anomaly.YellowThreshold {
		return fmt.Errorf("VECTOR_ATTR_ANOMALY_RED must be >= VECTOR_ATTR_ANOMALY_YELLOW")
	}
	if c.LTV.BatchSize < 1 || c.LTV.BatchSize > 10 {
		return fmt.Errorf("VECTOR_ATTR_LTV_BATCH_SIZE must be between 1 and 10")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
