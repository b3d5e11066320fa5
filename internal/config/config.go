// Package config loads carlog settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/itcaat/carlog/internal/fetcher"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL         string
	ListingsPerPage int

	UserAgent      string
	RequestTimeout time.Duration
	MaxRetries     int

	SleepMean   time.Duration
	SleepStdDev time.Duration
	SleepBias   time.Duration
	MinInterval time.Duration

	OutputPath  string
	PostgresDSN string

	StartPage int
	MaxPages  int

	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:         getEnv("CARLOG_BASE_URL", fetcher.DefaultSearchURL),
		ListingsPerPage: getEnvInt("CARLOG_LISTINGS_PER_PAGE", 20),

		UserAgent:      getEnv("CARLOG_USER_AGENT", fetcher.DefaultUserAgent),
		RequestTimeout: getEnvDuration("CARLOG_REQUEST_TIMEOUT", 20*time.Second),
		MaxRetries:     getEnvInt("CARLOG_MAX_RETRIES", 3),

		SleepMean:   getEnvDuration("CARLOG_SLEEP_MEAN", 7*time.Second),
		SleepStdDev: getEnvDuration("CARLOG_SLEEP_STD", 5*time.Second),
		SleepBias:   getEnvDuration("CARLOG_SLEEP_BIAS", 7*time.Second),
		MinInterval: getEnvDuration("CARLOG_MIN_INTERVAL", time.Second),

		OutputPath:  getEnv("CARLOG_OUTPUT_PATH", "data/raw/scrapped/"),
		PostgresDSN: getEnv("CARLOG_PG_DSN", ""),

		StartPage: getEnvInt("CARLOG_START_PAGE", 1),
		MaxPages:  getEnvInt("CARLOG_MAX_PAGES", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Warn("Ignoring invalid integer setting", "key", key, "value", val)
	}
	return fallback
}

// getEnvDuration accepts Go durations ("7s", "1m30s") or plain seconds ("7")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	log.Warn("Ignoring invalid duration setting", "key", key, "value", val)
	return fallback
}
