package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	Engine EngineConfig
}

// EngineConfig holds the knobs for the automation coordinator loop.
type EngineConfig struct {
	// How often the coordinator scans for due jobs.
	PollInterval time.Duration
	// Delay before the first scan after startup.
	StartupPollDelay time.Duration
	// Pause between executing jobs within one batch.
	InterJobDelay time.Duration
	// A "started" execution record older than this is reaped as failed.
	StaleExecutionTimeout time.Duration
	// Timezone for time-of-day schedules, allowed windows, and the daily-cap
	// day boundary.
	Timezone *time.Location
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PollInterval:          3 * time.Minute,
		StartupPollDelay:      10 * time.Second,
		InterJobDelay:         2 * time.Second,
		StaleExecutionTimeout: 30 * time.Minute,
		Timezone:              time.Local,
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		Engine:               DefaultEngineConfig(),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")

	cfg.Engine.PollInterval = getdur("ENGINE_POLL_INTERVAL", cfg.Engine.PollInterval)
	cfg.Engine.StartupPollDelay = getdur("ENGINE_STARTUP_POLL_DELAY", cfg.Engine.StartupPollDelay)
	cfg.Engine.InterJobDelay = getdur("ENGINE_INTER_JOB_DELAY", cfg.Engine.InterJobDelay)
	cfg.Engine.StaleExecutionTimeout = getdur("ENGINE_STALE_EXECUTION_TIMEOUT", cfg.Engine.StaleExecutionTimeout)

	if tz := getenv("ENGINE_TIMEZONE", ""); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, errors.Wrapf(err, "invalid ENGINE_TIMEZONE %q", tz)
		}
		cfg.Engine.Timezone = loc
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getdur(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// Plain integers are treated as seconds.
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
