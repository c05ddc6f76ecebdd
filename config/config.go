package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"crypto-signal-bot/internal/model"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Telegram delivery. Leave the token empty to run with log-only
	// notification (useful for dry runs).
	TelegramToken  string
	TelegramChatID int64

	// Optional generic webhook target for alerts.
	WebhookURL string

	// Binance API credentials. Public kline endpoints work without them.
	BinanceAPIKey    string
	BinanceAPISecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	ConfigBackend string // "redis" or "memory"
	SQLitePath    string
	MetricsAddr   string

	// Analysis defaults, used to seed the configuration store on first run.
	DefaultMarkets string // comma-separated exchange:PAIR:timeframe
	Interval       time.Duration
	Cooldown       time.Duration // zero means one analysis interval

	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment (and a .env file when
// present) with sensible defaults.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env file")
	}

	return &Config{
		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		WebhookURL:     getEnv("WEBHOOK_URL", ""),

		BinanceAPIKey:    getEnv("BINANCE_API_KEY", ""),
		BinanceAPISecret: getEnv("BINANCE_API_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		ConfigBackend: getEnv("CONFIG_BACKEND", "redis"),
		SQLitePath:    getEnv("SQLITE_PATH", "data/candles.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		DefaultMarkets: getEnv("DEFAULT_MARKETS", "binance:BTC/USDT:1h,binance:ETH/USDT:1h"),
		Interval:       getEnvDuration("ANALYSIS_INTERVAL", 5*time.Minute),
		Cooldown:       getEnvDuration("ALERT_COOLDOWN", 0),

		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// ParseMarkets parses the DefaultMarkets string into markets, skipping
// malformed entries with a warning.
func (c *Config) ParseMarkets() []model.Market {
	parts := strings.Split(c.DefaultMarkets, ",")
	markets := make([]model.Market, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.Split(p, ":")
		if len(fields) != 3 {
			log.Printf("[config] skipping invalid market entry: %q", p)
			continue
		}
		m := model.Market{Exchange: fields[0], Pair: fields[1], Timeframe: fields[2]}
		if _, err := model.TimeframeDuration(m.Timeframe); err != nil {
			log.Printf("[config] skipping market %q: %v", p, err)
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("[config] invalid integer for %s: %q", key, v)
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("[config] invalid duration for %s: %q", key, v)
	}
	return d
}
