// Package config reads process settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/valeriaulyamaeva/recurring-ledger/internal/logger"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/recurrence"
	"github.com/valeriaulyamaeva/recurring-ledger/internal/scheduler"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	DatabaseURL    string
	HTTPAddr       string
	Store          string
	AllowedOrigins []string
	Log            logger.Options
	Scheduler      scheduler.Config
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a variable lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL: getenv("DATABASE_URL"),
		HTTPAddr:    withDefault(getenv("HTTP_ADDR"), ":8080"),
		Store:       strings.ToLower(withDefault(getenv("STORE"), StorePostgres)),
		Log: logger.Options{
			Level:  withDefault(getenv("LOG_LEVEL"), "info"),
			Format: withDefault(getenv("LOG_FORMAT"), "console"),
		},
		Scheduler: scheduler.DefaultConfig(),
	}
	if origins := getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	}

	if cfg.DatabaseURL == "" && getenv("DB_HOST") != "" {
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(getenv("DB_USER"), getenv("DB_PASSWORD")),
			Host:   net.JoinHostPort(getenv("DB_HOST"), withDefault(getenv("DB_PORT"), "5432")),
			Path:   "/" + getenv("DB_NAME"),
		}
		cfg.DatabaseURL = u.String()
	}

	var err error
	s := &cfg.Scheduler
	if s.Interval, err = duration(getenv, "SCHEDULER_INTERVAL", s.Interval); err != nil {
		return nil, err
	}
	if s.ClaimTimeout, err = duration(getenv, "SCHEDULER_CLAIM_TIMEOUT", s.ClaimTimeout); err != nil {
		return nil, err
	}
	if s.StaleClaimAfter, err = duration(getenv, "SCHEDULER_STALE_CLAIM_AFTER", s.StaleClaimAfter); err != nil {
		return nil, err
	}
	if s.Workers, err = integer(getenv, "SCHEDULER_WORKERS", s.Workers); err != nil {
		return nil, err
	}
	if s.BatchSize, err = integer(getenv, "SCHEDULER_BATCH_SIZE", s.BatchSize); err != nil {
		return nil, err
	}
	if s.MissingRateNotifyAfter, err = integer(getenv, "MISSING_RATE_NOTIFY_AFTER", s.MissingRateNotifyAfter); err != nil {
		return nil, err
	}
	if s.EndTimePolicy, err = recurrence.ParseEndTimePolicy(getenv("SCHEDULER_END_TIME_POLICY")); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL (or DB_HOST, DB_USER, DB_PASSWORD, DB_NAME) is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store)
	}
	return c.Scheduler.Validate()
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func integer(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
