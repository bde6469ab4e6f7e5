package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the arena
type Config struct {
	// Telegram admin surface
	TelegramToken  string
	TelegramChatID int64

	// Mode
	Debug bool

	// Market data source
	GammaAPIURL string
	WSEnabled   bool
	WSURL       string

	// Bankroll
	InitialBalance  decimal.Decimal // starting cash per agent
	BankruptcyFloor decimal.Decimal // no new bets at or below this balance
	MinBet          decimal.Decimal
	MaxBet          decimal.Decimal
	MaxBalancePct   decimal.Decimal // bet ceiling as fraction of balance
	ConfidenceFloor float64         // no bet below this confidence

	// Tracking intervals
	OddsInterval       time.Duration
	PositionInterval   time.Duration
	RefreshInterval    time.Duration
	IntegratedInterval time.Duration
	CycleTimeout       time.Duration

	// Analysis
	MarketsPerCycle int

	// Database
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		Debug: getEnvBool("DEBUG", false),

		GammaAPIURL: getEnv("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		WSEnabled:   getEnvBool("WS_ENABLED", false),
		WSURL:       getEnv("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		InitialBalance:  getEnvDecimal("INITIAL_BALANCE", decimal.NewFromInt(1000)),
		BankruptcyFloor: getEnvDecimal("BANKRUPTCY_FLOOR", decimal.NewFromInt(10)),
		MinBet:          getEnvDecimal("MIN_BET", decimal.NewFromInt(1)),
		MaxBet:          getEnvDecimal("MAX_BET", decimal.NewFromInt(5)),
		MaxBalancePct:   getEnvDecimal("MAX_BALANCE_PCT", decimal.NewFromFloat(0.05)),
		ConfidenceFloor: getEnvFloat("CONFIDENCE_FLOOR", 0.55),

		OddsInterval:       getEnvDuration("ODDS_INTERVAL", 15*time.Minute),
		PositionInterval:   getEnvDuration("POSITION_INTERVAL", 5*time.Minute),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", 7*time.Second),
		IntegratedInterval: getEnvDuration("INTEGRATED_INTERVAL", 10*time.Minute),
		CycleTimeout:       getEnvDuration("CYCLE_TIMEOUT", time.Minute),

		MarketsPerCycle: getEnvInt("MARKETS_PER_CYCLE", 5),

		DatabasePath: getEnv("DATABASE_PATH", "data/agentarena.db"),
	}

	// Parse admin chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.InitialBalance.LessThanOrEqual(cfg.BankruptcyFloor) {
		return nil, fmt.Errorf("INITIAL_BALANCE must be above BANKRUPTCY_FLOOR")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
