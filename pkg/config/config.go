// Package config loads environment-driven settings for the auto-trader.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the trading core.
type Config struct {
	Port string

	// Market data
	UseMockFeed bool
	MarketURL   string
	Instruments []string

	// Signal engine
	PolicyPath   string
	TickInterval time.Duration

	// Routing and execution
	MaterialityThreshold float64
	SplitFraction        float64
	VenueTimeout         time.Duration
	BalanceTTL           time.Duration
	WorkerPoolSize       int

	// Protective levels
	StopLossPct   float64
	TakeProfitPct float64

	// Paper venue simulation
	SimInitialBalance float64
	SimFeeRate        float64 // decimal (e.g. 0.001 = 10 bps)
	SimSlippageBps    float64
	SimLatencyMinMs   int
	SimLatencyMaxMs   int

	// Database
	DBPath string

	// Logging
	LogLevel  string
	LogPretty bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "8080"),
		UseMockFeed:          getEnv("USE_MOCK_FEED", "true") == "true",
		MarketURL:            getEnv("MARKET_URL", "https://api.binance.com"),
		Instruments:          splitAndTrim(getEnv("INSTRUMENTS", "BTC-USDT,ETH-USDT")),
		PolicyPath:           getEnv("POLICY_PATH", ""),
		TickInterval:         getEnvDuration("TICK_INTERVAL", 10*time.Second),
		MaterialityThreshold: getEnvFloat("MATERIALITY_THRESHOLD", 20),
		SplitFraction:        getEnvFloat("SPLIT_FRACTION", 0.7),
		VenueTimeout:         getEnvDuration("VENUE_TIMEOUT", 10*time.Second),
		BalanceTTL:           getEnvDuration("BALANCE_TTL", 3*time.Second),
		WorkerPoolSize:       getEnvInt("WORKER_POOL_SIZE", 4),
		StopLossPct:          getEnvFloat("STOP_LOSS_PCT", 0.05),
		TakeProfitPct:        getEnvFloat("TAKE_PROFIT_PCT", 0.10),
		SimInitialBalance:    getEnvFloat("SIM_INITIAL_BALANCE", 10000.0),
		SimFeeRate:           getEnvFloat("SIM_FEE_RATE", 0.001),
		SimSlippageBps:       getEnvFloat("SIM_SLIPPAGE_BPS", 2),
		SimLatencyMinMs:      getEnvInt("SIM_LATENCY_MIN_MS", 0),
		SimLatencyMaxMs:      getEnvInt("SIM_LATENCY_MAX_MS", 0),
		DBPath:               getEnv("DB_PATH", "./data/autotrader.db"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnv("LOG_PRETTY", "false") == "true",
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
