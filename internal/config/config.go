// Package config loads service configuration from the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds configuration settings for the chat backend
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Providers
		Anthropic ProviderConfig
		OpenAI    ProviderConfig

		// Flow storage & archiving
		Redis            StoreConfig
		ArchiveBucketURL string
		ArchivePrefix    string

		// Generation
		Temperature float64
		MaxTokens   int

		// Lifecycle
		RequestTimeout  time.Duration
		ShutdownTimeout time.Duration
	}

	// ProviderConfig holds the credentials and endpoint for one backend.
	// Version is the wire protocol version header; only the Anthropic
	// backend uses it
	ProviderConfig struct {
		APIKey  string
		BaseURL string
		Model   string
		Version string
	}

	// StoreConfig holds Redis connection settings for the flow store.
	// An empty Addr selects the in-memory store
	StoreConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535

	DefaultRedisPrefix = "flowchat"
	DefaultRedisDB     = 0

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	MaxMaxTokens       = 128_000

	DefaultRequestTimeout  = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrInvalidAPIPort     = errors.New("invalid API port")
	ErrInvalidTemperature = errors.New(
		"temperature must be between 0 and 2",
	)
	ErrInvalidMaxTokens = errors.New("max tokens must be positive")
	ErrInvalidTimeout   = errors.New("timeout must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for
// all server, provider, and store settings
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		LogLevel: "info",
		Redis: StoreConfig{
			Prefix: DefaultRedisPrefix,
			DB:     DefaultRedisDB,
		},
		ArchivePrefix:   "executions/",
		Temperature:     DefaultTemperature,
		MaxTokens:       DefaultMaxTokens,
		RequestTimeout:  DefaultRequestTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	loadProviderFromEnv(&c.Anthropic, "ANTHROPIC")
	loadProviderFromEnv(&c.OpenAI, "OPENAI")
	loadStoreFromEnv(&c.Redis)

	if bucketURL := os.Getenv("ARCHIVE_BUCKET_URL"); bucketURL != "" {
		c.ArchiveBucketURL = bucketURL
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		c.ArchivePrefix = prefix
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_TOKENS", &c.MaxTokens, 0, MaxMaxTokens,
	); err != nil {
		return err
	}
	if err := loadEnvFloat("TEMPERATURE", &c.Temperature); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"REQUEST_TIMEOUT", &c.RequestTimeout,
	); err != nil {
		return err
	}
	return loadEnvDuration("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %g", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: REQUEST_TIMEOUT", ErrInvalidTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: SHUTDOWN_TIMEOUT", ErrInvalidTimeout)
	}
	return nil
}

func loadProviderFromEnv(p *ProviderConfig, prefix string) {
	if key := os.Getenv(prefix + "_API_KEY"); key != "" {
		p.APIKey = key
	}
	if baseURL := os.Getenv(prefix + "_BASE_URL"); baseURL != "" {
		p.BaseURL = baseURL
	}
	if model := os.Getenv(prefix + "_MODEL"); model != "" {
		p.Model = model
	}
	if version := os.Getenv(prefix + "_VERSION"); version != "" {
		p.Version = version
	}
}

func loadStoreFromEnv(s *StoreConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		s.Prefix = prefix
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			s.DB = db
		}
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max). Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key from the environment, parses it as a
// duration ("5s", "2m"), and sets *dst. Range checks are left to
// Validate
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = v
	return nil
}

// loadEnvFloat reads key from the environment, parses it as a float, and
// sets *dst. Range checks are left to Validate
func loadEnvFloat(key string, dst *float64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = v
	return nil
}
