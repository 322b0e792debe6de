package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the assistant service.
// Environment variables are parsed from the ASSISTANT_ prefix,
// e.g. ASSISTANT_HTTP_PORT, ASSISTANT_MODEL_API_KEY.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8000"`

	// Storage. DB_DRIVER selects sqlite or postgres.
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/assistant.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Generative model API
	ModelBaseURL string `envconfig:"MODEL_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	ModelName    string `envconfig:"MODEL_NAME" default:"gemini-1.5-flash"`
	ModelAPIKey  string `envconfig:"MODEL_API_KEY" default:""`

	// Generation worker
	MaxRetries    int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryBaseWait time.Duration `envconfig:"RETRY_BASE_WAIT" default:"1s"`
	// QueueRequests switches the pending-slot replace policy to a FIFO
	// queue. Off by default to match the observed replace behavior.
	QueueRequests bool `envconfig:"QUEUE_REQUESTS" default:"false"`

	// Persona and timing catalogs (JSON files)
	PersonaFile    string `envconfig:"PERSONA_FILE" default:"data/personas.json"`
	TimingFile     string `envconfig:"TIMING_FILE" default:"data/response_times.json"`
	TimingMaxDays  int    `envconfig:"TIMING_MAX_DAYS" default:"90"`
	TimingMaxCount int    `envconfig:"TIMING_MAX_COUNT" default:"1000"`

	// Response-time warning thresholds, seconds
	WarnThreshold float64 `envconfig:"WARN_THRESHOLD" default:"10"`
	SlowThreshold float64 `envconfig:"SLOW_THRESHOLD" default:"20"`

	// Memory catalog bound; oldest low-importance memories are evicted
	// past this count.
	MaxMemories int `envconfig:"MAX_MEMORIES" default:"1000"`
}

// ResolveDefaults validates driver selection and derived settings.
func (c *Config) ResolveDefaults() error {
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH required for sqlite driver")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN required for postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseWait <= 0 {
		c.RetryBaseWait = time.Second
	}
	return nil
}

// New creates a new Config by parsing environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ASSISTANT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests.
func NewForTesting() *Config {
	return &Config{
		Environment:    EnvTesting,
		HTTPPort:       8000,
		DBDriver:       "sqlite",
		SQLitePath:     ":memory:",
		ModelBaseURL:   "http://localhost:0",
		ModelName:      "test-model",
		MaxRetries:     3,
		RetryBaseWait:  time.Millisecond,
		TimingMaxDays:  90,
		TimingMaxCount: 1000,
		WarnThreshold:  10,
		SlowThreshold:  20,
		MaxMemories:    1000,
	}
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
