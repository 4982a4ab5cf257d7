package config

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"crosswatch/internal/model"
)

const (
	defaultBar             = "15m"
	defaultFastWindow      = 144
	defaultSlowWindow      = 576
	defaultPollSec         = 900
	defaultRequestDelaySec = 1.2
	defaultMinCandles      = 2000
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Watchlist: "name,contract,chainIndex[,bar]" entries joined by ';'
	Tokens string

	// EMA windows, "fast,slow"
	EMAWindows string

	// Polling cadence
	PollIntervalSec string
	RequestDelaySec string
	MinCandles      string

	// OKX credentials
	OKXAPIKey     string
	OKXSecretKey  string
	OKXPassphrase string
	OKXBaseURL    string
	ProxyURL      string

	// Alert backends
	TGBotToken string
	TGChatID   string
	WebhookURL string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	GatewayAddr   string
	MetricsAddr   string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Tokens:     getEnv("TOKENS", ""),
		EMAWindows: getEnv("EMA_WINDOWS", "144,576"),

		PollIntervalSec: getEnv("POLL_INTERVAL_SEC", "900"),
		RequestDelaySec: getEnv("REQUEST_DELAY_SEC", "1.2"),
		MinCandles:      getEnv("MIN_CANDLES", "2000"),

		OKXAPIKey:     getEnv("OKX_API_KEY", ""),
		OKXSecretKey:  getEnv("OKX_API_SECRET", ""),
		OKXPassphrase: getEnv("OKX_API_PASSPHRASE", ""),
		OKXBaseURL:    getEnv("OKX_BASE_URL", "https://web3.okx.com"),
		ProxyURL:      getEnv("PROXY_URL", ""),

		TGBotToken: getEnv("TG_BOT_TOKEN", ""),
		TGChatID:   getEnv("TG_CHAT_ID", ""),
		WebhookURL: getEnv("WEBHOOK_URL", ""),

		// Redis is off unless an address is given.
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		// These accept an explicitly empty value to disable the feature.
		SQLitePath:  lookupEnv("SQLITE_PATH", "data/signals.db"),
		GatewayAddr: lookupEnv("GATEWAY_ADDR", ":8090"),

		MetricsAddr: getEnv("METRICS_ADDR", ":9100"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// ParseTokens parses the TOKENS string into the watchlist. Entries look
// like "PEPE,0x6982...,1,15m"; the bar defaults to 15m when omitted.
// Entries with fewer than three fields or a non-numeric chain index are
// skipped with a warning.
func (c *Config) ParseTokens() []model.TokenConfig {
	var out []model.TokenConfig
	for _, entry := range strings.Split(c.Tokens, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 3 {
			log.Printf("[config] skipping malformed token entry: %q", entry)
			continue
		}
		chain, err := strconv.Atoi(fields[2])
		if err != nil {
			log.Printf("[config] skipping token %q: bad chain index %q", fields[0], fields[2])
			continue
		}
		bar := defaultBar
		if len(fields) > 3 && fields[3] != "" {
			bar = fields[3]
		}
		out = append(out, model.TokenConfig{
			Name:       fields[0],
			Contract:   fields[1],
			ChainIndex: chain,
			Bar:        bar,
		})
	}
	return out
}

// Windows returns the fast and slow EMA windows. A single value only
// overrides the fast window; invalid values are skipped with a warning.
// Values beyond the second are ignored.
func (c *Config) Windows() (fast, slow int) {
	fast, slow = defaultFastWindow, defaultSlowWindow

	vals := make([]int, 0, 2)
	for _, p := range strings.Split(c.EMAWindows, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			log.Printf("[config] skipping invalid EMA window: %q", p)
			continue
		}
		vals = append(vals, n)
	}

	if len(vals) >= 1 {
		fast = vals[0]
	}
	if len(vals) >= 2 {
		slow = vals[1]
	}
	if fast >= slow {
		log.Printf("[config] fast window %d is not below slow window %d", fast, slow)
	}
	return fast, slow
}

// PollInterval returns the pause between polling cycles.
func (c *Config) PollInterval() time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(c.PollIntervalSec))
	if err != nil || n < 1 {
		log.Printf("[config] invalid POLL_INTERVAL_SEC %q, using %d", c.PollIntervalSec, defaultPollSec)
		n = defaultPollSec
	}
	return time.Duration(n) * time.Second
}

// RequestDelay returns the pause between per-token API calls. Fractional
// seconds are allowed ("1.2").
func (c *Config) RequestDelay() time.Duration {
	f, err := strconv.ParseFloat(strings.TrimSpace(c.RequestDelaySec), 64)
	if err != nil || f < 0 {
		log.Printf("[config] invalid REQUEST_DELAY_SEC %q, using %.1f", c.RequestDelaySec, defaultRequestDelaySec)
		f = defaultRequestDelaySec
	}
	return time.Duration(f * float64(time.Second))
}

// MinCandleCount returns the floor for the candle fetch limit.
func (c *Config) MinCandleCount() int {
	n, err := strconv.Atoi(strings.TrimSpace(c.MinCandles))
	if err != nil || n < 1 {
		log.Printf("[config] invalid MIN_CANDLES %q, using %d", c.MinCandles, defaultMinCandles)
		n = defaultMinCandles
	}
	return n
}

// HasOKXCreds reports whether all three OKX credentials are present.
func (c *Config) HasOKXCreds() bool {
	return c.OKXAPIKey != "" && c.OKXSecretKey != "" && c.OKXPassphrase != ""
}

// Level maps the LOG_LEVEL string onto a slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// lookupEnv is like getEnv but lets an explicitly empty value through,
// so SQLITE_PATH="" turns the journal off.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
