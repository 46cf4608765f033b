package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string
	DryRun   bool

	// Venue endpoints
	RestURL    string
	MarketWSURL string
	UserWSURL  string

	// Venue credentials (live mode only)
	APIKey     string
	APISecret  string
	Passphrase string
	PrivateKey string

	// Market discovery
	Assets            []string
	Durations         []string
	DiscoveryInterval time.Duration
	MarketLimit       int

	// Feed
	WSEnabled           bool
	ScanInterval        time.Duration
	PollConcurrency     int
	PollTimeout         time.Duration
	WSDialTimeout       time.Duration
	WSPingInterval      time.Duration
	WSIdleTimeout       time.Duration
	WSReconnectBase     time.Duration
	WSReconnectCap      time.Duration
	FreshnessTTL        time.Duration

	// Detection
	MinProfitMargin float64
	MinSize         float64
	FeeReserveBps   int64
	DetectorWorkers int

	// Risk
	Bankroll            float64
	MaxBetSize          float64
	MinNotional         float64
	MaxBankrollFraction float64
	ReservationTTL      time.Duration

	// Execution
	MaxImbalance     time.Duration
	MaxSlippageTicks int64
	SubmitTimeout    time.Duration
	AckTimeout       time.Duration
	HedgeTimeout     time.Duration
	SubmitPoolSize   int
	SimFillLatency   time.Duration

	// Circuit breaker
	BreakerFailureLimit int
	BreakerWindow       time.Duration
	BreakerCooldown     time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),
		DryRun:   getBoolOrDefault("DRY_RUN", true),

		RestURL:     getEnvOrDefault("VENUE_REST_URL", "https://clob.polymarket.com"),
		MarketWSURL: getEnvOrDefault("VENUE_MARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		UserWSURL:   getEnvOrDefault("VENUE_USER_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/user"),

		APIKey:     os.Getenv("VENUE_API_KEY"),
		APISecret:  os.Getenv("VENUE_SECRET"),
		Passphrase: os.Getenv("VENUE_PASSPHRASE"),
		PrivateKey: os.Getenv("VENUE_PRIVATE_KEY"),

		Assets:            getListOrDefault("ASSETS", []string{"btc", "eth", "sol", "xrp"}),
		Durations:         getListOrDefault("DURATIONS", []string{"5m", "15m"}),
		DiscoveryInterval: getDurationOrDefault("DISCOVERY_INTERVAL", 30*time.Second),
		MarketLimit:       getIntOrDefault("MARKET_LIMIT", 50),

		WSEnabled:       getBoolOrDefault("WS_ENABLED", true),
		ScanInterval:    getDurationOrDefault("SCAN_INTERVAL", 2*time.Second),
		PollConcurrency: getIntOrDefault("POLL_CONCURRENCY", 8),
		PollTimeout:     getDurationOrDefault("POLL_TIMEOUT", 3*time.Second),
		WSDialTimeout:   getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:  getDurationOrDefault("WS_PING_INTERVAL", 20*time.Second),
		WSIdleTimeout:   getDurationOrDefault("WS_IDLE_TIMEOUT", 45*time.Second),
		WSReconnectBase: getDurationOrDefault("WS_RECONNECT_BASE", 500*time.Millisecond),
		WSReconnectCap:  getDurationOrDefault("WS_RECONNECT_CAP", 30*time.Second),
		FreshnessTTL:    getDurationOrDefault("FRESHNESS_TTL", 2*time.Second),

		MinProfitMargin: getFloat64OrDefault("MIN_PROFIT_MARGIN", 0.01),
		MinSize:         getFloat64OrDefault("MIN_SIZE", 5.0),
		FeeReserveBps:   int64(getIntOrDefault("FEE_RESERVE_BPS", 0)),
		DetectorWorkers: getIntOrDefault("DETECTOR_WORKERS", 8),

		Bankroll:            getFloat64OrDefault("BANKROLL", 1000.0),
		MaxBetSize:          getFloat64OrDefault("MAX_BET_SIZE", 50.0),
		MinNotional:         getFloat64OrDefault("MIN_NOTIONAL", 1.0),
		MaxBankrollFraction: getFloat64OrDefault("MAX_BANKROLL_FRACTION", 0.05),
		ReservationTTL:      getDurationOrDefault("RESERVATION_TTL", 10*time.Second),

		MaxImbalance:     getDurationOrDefault("MAX_IMBALANCE", 1500*time.Millisecond),
		MaxSlippageTicks: int64(getIntOrDefault("MAX_SLIPPAGE_TICKS", 5)),
		SubmitTimeout:    getDurationOrDefault("SUBMIT_TIMEOUT", 2*time.Second),
		AckTimeout:       getDurationOrDefault("ACK_TIMEOUT", 2*time.Second),
		HedgeTimeout:     getDurationOrDefault("HEDGE_TIMEOUT", 1*time.Second),
		SubmitPoolSize:   getIntOrDefault("SUBMIT_POOL_SIZE", 16),
		SimFillLatency:   getDurationOrDefault("SIM_FILL_LATENCY", 50*time.Millisecond),

		BreakerFailureLimit: getIntOrDefault("BREAKER_FAILURE_LIMIT", 5),
		BreakerWindow:       getDurationOrDefault("BREAKER_WINDOW", 60*time.Second),
		BreakerCooldown:     getDurationOrDefault("BREAKER_COOLDOWN", 30*time.Second),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "updown"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "updown"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "updown_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}
	if c.RestURL == "" {
		return fmt.Errorf("VENUE_REST_URL cannot be empty")
	}
	if c.WSEnabled && c.MarketWSURL == "" {
		return fmt.Errorf("VENUE_MARKET_WS_URL cannot be empty when WS_ENABLED")
	}
	if c.MinProfitMargin < 0 || c.MinProfitMargin >= 1.0 {
		return fmt.Errorf("MIN_PROFIT_MARGIN must be in [0, 1), got %f", c.MinProfitMargin)
	}
	if c.MaxBankrollFraction <= 0 || c.MaxBankrollFraction > 1.0 {
		return fmt.Errorf("MAX_BANKROLL_FRACTION must be in (0, 1], got %f", c.MaxBankrollFraction)
	}
	if c.MaxBetSize <= 0 {
		return fmt.Errorf("MAX_BET_SIZE must be positive, got %f", c.MaxBetSize)
	}
	if c.FreshnessTTL <= 0 {
		return fmt.Errorf("FRESHNESS_TTL must be positive, got %s", c.FreshnessTTL)
	}
	if c.ReservationTTL <= 0 {
		return fmt.Errorf("RESERVATION_TTL must be positive, got %s", c.ReservationTTL)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("ASSETS cannot be empty")
	}
	if len(c.Durations) == 0 {
		return fmt.Errorf("DURATIONS cannot be empty")
	}
	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}
	if !c.DryRun && c.PrivateKey == "" {
		return fmt.Errorf("VENUE_PRIVATE_KEY required when DRY_RUN is false")
	}
	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.EqualFold(value, "true") || value == "1"
}

func getListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
