package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Solana configuration
	SolanaRPCURL string

	// Token registry configuration
	TokenListURL string

	// Explorer configuration
	ExplorerBaseURL string

	// Request handling configuration
	SignatureLimitMax int
	RequestTimeout    time.Duration

	// Fetch retry configuration
	FetchMaxAttempts int
}

// Defaults for optional configuration.
const (
	DefaultTokenListURL      = "https://cdn.jsdelivr.net/gh/solana-labs/token-list@main/src/tokens/solana.tokenlist.json"
	DefaultExplorerBaseURL   = "https://solscan.io"
	DefaultSignatureLimitMax = 50
	DefaultFetchMaxAttempts  = 5
)

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// Token registry configuration
	cfg.TokenListURL = getEnvOrDefault("TOKEN_LIST_URL", DefaultTokenListURL)

	// Explorer configuration
	cfg.ExplorerBaseURL = getEnvOrDefault("EXPLORER_BASE_URL", DefaultExplorerBaseURL)

	// Request handling configuration
	limitMax, err := parseInt("SIGNATURE_LIMIT_MAX", DefaultSignatureLimitMax)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignatureLimitMax = limitMax
	}

	timeout, err := parseDuration("REQUEST_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RequestTimeout = timeout
	}

	// Fetch retry configuration
	attempts, err := parseInt("FETCH_MAX_ATTEMPTS", DefaultFetchMaxAttempts)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.FetchMaxAttempts = attempts
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	if c.TokenListURL == "" {
		errs = append(errs, fmt.Errorf("TokenListURL is required"))
	}

	if c.ExplorerBaseURL == "" {
		errs = append(errs, fmt.Errorf("ExplorerBaseURL is required"))
	}

	if c.SignatureLimitMax <= 0 {
		errs = append(errs, fmt.Errorf("SignatureLimitMax must be positive"))
	}

	if c.RequestTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RequestTimeout must be at least 1 second"))
	}

	if c.FetchMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("FetchMaxAttempts must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
