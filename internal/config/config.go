// Package config loads gateway configuration from environment variables,
// optionally sourced from a .env file, in the style of the ambient config
// loaders seen across the example corpus: defaults with env overrides,
// with malformed numeric or duration values returned as errors from Load.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable named in spec.md §6 plus the ambient knobs
// needed to actually run a process: provider backend selection and log
// format.
type Config struct {
	Timezone                   string
	TradingSessions            string
	SpecialTradingSessions     map[string]string // ISO date -> session string
	ClosedDates                string
	SnapshotPollInterval       time.Duration
	IdleBackoff                time.Duration
	MaxActiveSymbols           int
	CacheBackend               string // "memory" | "redis"
	RedisURL                   string
	HistoryMaxLimit            int
	WSPingInterval             time.Duration
	CORSAllowOrigins           []string
	MinuteHistoryMaxDays       int
	ProviderBackend            string // "vendorfeed" | "sim"
	VendorfeedBaseURL          string
	LogFormat                  string // "console" | "json"
	HTTPAddr                   string
}

// Load reads configuration from the environment, first loading a .env file
// if present (missing .env is not an error — godotenv.Load's error is
// ignored exactly as the ambient-stack convention does for local dev).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Timezone:             getEnvOrDefault("TIMEZONE", "Asia/Shanghai"),
		TradingSessions:      getEnvOrDefault("TRADING_SESSIONS", "09:30-11:30,13:00-15:00"),
		ClosedDates:          getEnvOrDefault("CLOSED_DATES", ""),
		MaxActiveSymbols:     200,
		CacheBackend:         getEnvOrDefault("CACHE_BACKEND", "memory"),
		RedisURL:             getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		HistoryMaxLimit:      2000,
		MinuteHistoryMaxDays: 7,
		ProviderBackend:      getEnvOrDefault("PROVIDER_BACKEND", "sim"),
		VendorfeedBaseURL:    getEnvOrDefault("VENDORFEED_BASE_URL", ""),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "console"),
		HTTPAddr:             getEnvOrDefault("HTTP_ADDR", ":8080"),
	}

	cfg.SpecialTradingSessions = parseSpecialSessions(getEnvOrDefault("SPECIAL_TRADING_SESSIONS", ""))
	cfg.CORSAllowOrigins = splitCSV(getEnvOrDefault("CORS_ALLOW_ORIGINS", "http://127.0.0.1:5173"))

	var err error
	cfg.SnapshotPollInterval, err = parseDuration(getEnvOrDefault("SNAPSHOT_POLL_INTERVAL_SECONDS", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_POLL_INTERVAL_SECONDS: %w", err)
	}
	cfg.IdleBackoff, err = parseDuration(getEnvOrDefault("IDLE_BACKOFF_SECONDS", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_BACKOFF_SECONDS: %w", err)
	}
	cfg.WSPingInterval, err = parseDuration(getEnvOrDefault("WS_PING_INTERVAL_SECONDS", "25s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_PING_INTERVAL_SECONDS: %w", err)
	}

	if v := os.Getenv("MAX_ACTIVE_SYMBOLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_ACTIVE_SYMBOLS: %w", err)
		}
		cfg.MaxActiveSymbols = n
	}
	if v := os.Getenv("HISTORY_MAX_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_MAX_LIMIT: %w", err)
		}
		cfg.HistoryMaxLimit = n
	}
	if v := os.Getenv("MINUTE_HISTORY_MAX_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MINUTE_HISTORY_MAX_DAYS: %w", err)
		}
		cfg.MinuteHistoryMaxDays = n
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseDuration extends time.ParseDuration to accept a bare integer as
// seconds (the env vars here are named "..._SECONDS") on top of Go duration
// syntax, and a trailing "d" for days, matching the days-suffix extension
// seen in the example corpus's own config loaders.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as duration: %w", s, err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSpecialSessions decodes the special_trading_sessions JSON map
// (date -> session string). An invalid value degrades to empty rather than
// failing startup, mirroring the original gateway's warn-and-ignore policy.
func parseSpecialSessions(value string) map[string]string {
	value = strings.TrimSpace(value)
	if value == "" {
		return map[string]string{}
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return map[string]string{}
	}
	return raw
}
