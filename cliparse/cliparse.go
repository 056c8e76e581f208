// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	// Identity
	IdentitySalt   string
	AddressHeaders []string
	AccountHeader  string

	// Rate limiting
	RedisURL         string
	VoteQuota        int
	VoteWindow       time.Duration
	APIQuota         int
	APIWindow        time.Duration
	APILimitFailOpen bool

	AdmissionTimeout time.Duration

	LogLevel  string
	LogFormat string
}

const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
)

// DefaultAddressHeaders is the proxy header priority used when ADDRESS_HEADERS is unset.
var DefaultAddressHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// LoadEnvFile loads KEY=value pairs from path into the environment.
// A missing file is not an error; variables already set are left alone.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ParseFlags validates flags and fills the remaining settings from the environment
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var addressHeaders string
	var failOpen string

	fs := flag.NewFlagSet("artvote", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.RedisURL, "redis", "", "Redis URL for rate limit counters (empty = in-memory)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.IdentitySalt, "identity-salt", "", "Salt for voter address hashing (prefer env)")

	fs.StringVar(&addressHeaders, "address-headers", "", "Comma separated proxy headers, highest priority first")
	fs.StringVar(&cfg.AccountHeader, "account-header", "", "Header carrying the authenticated account id")

	fs.IntVar(&cfg.VoteQuota, "vote-quota", 0, "Votes admitted per identity and contest per window")
	fs.DurationVar(&cfg.VoteWindow, "vote-window", 0, "Vote rate limit window")
	fs.IntVar(&cfg.APIQuota, "api-quota", 0, "API requests admitted per identity per window")
	fs.DurationVar(&cfg.APIWindow, "api-window", 0, "API rate limit window")
	fs.StringVar(&failOpen, "api-fail-open", "", "Admit API traffic when the limiter store is down (true/false)")
	fs.DurationVar(&cfg.AdmissionTimeout, "admission-timeout", 0, "Timeout for a single vote admission")

	fs.StringVar(&cfg.LogLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", "", "text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 3318 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabaseSQLite
		}
	}
	if cfg.DatabaseType != DatabaseSQLite && cfg.DatabaseType != DatabasePostgres {
		return Config{}, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}

	if cfg.RedisURL == "" {
		cfg.RedisURL = os.Getenv("REDIS_URL")
	}

	// Secrets - MUST be provided
	if cfg.IdentitySalt == "" {
		cfg.IdentitySalt = os.Getenv("IDENTITY_SALT")
	}
	if cfg.IdentitySalt == "" {
		return Config{}, errors.New("IDENTITY_SALT required")
	}

	if addressHeaders == "" {
		addressHeaders = os.Getenv("ADDRESS_HEADERS")
	}
	if addressHeaders != "" {
		cfg.AddressHeaders = splitList(addressHeaders)
	} else {
		cfg.AddressHeaders = append([]string(nil), DefaultAddressHeaders...)
	}

	if cfg.AccountHeader == "" {
		cfg.AccountHeader = envOr("ACCOUNT_HEADER", "X-Account-ID")
	}

	var err error
	if cfg.VoteQuota, err = intSetting(cfg.VoteQuota, "VOTE_QUOTA", 1); err != nil {
		return Config{}, err
	}
	if cfg.VoteWindow, err = durationSetting(cfg.VoteWindow, "VOTE_WINDOW", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.APIQuota, err = intSetting(cfg.APIQuota, "API_QUOTA", 100); err != nil {
		return Config{}, err
	}
	if cfg.APIWindow, err = durationSetting(cfg.APIWindow, "API_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AdmissionTimeout, err = durationSetting(cfg.AdmissionTimeout, "ADMISSION_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}

	if failOpen == "" {
		failOpen = os.Getenv("API_LIMIT_FAIL_OPEN")
	}
	if failOpen != "" {
		cfg.APILimitFailOpen, err = strconv.ParseBool(failOpen)
		if err != nil {
			return Config{}, errors.New("invalid API_LIMIT_FAIL_OPEN value")
		}
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = envOr("LOG_LEVEL", "info")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = envOr("LOG_FORMAT", "text")
	}

	return cfg, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func intSetting(flagValue int, env string, def int) (int, error) {
	if flagValue != 0 {
		return flagValue, nil
	}
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s env variable", env)
	}
	return v, nil
}

func durationSetting(flagValue time.Duration, env string, def time.Duration) (time.Duration, error) {
	if flagValue != 0 {
		return flagValue, nil
	}
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s env variable", env)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
