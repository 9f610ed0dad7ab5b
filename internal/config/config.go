package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Tunables holds the knobs that are safe to change at runtime.
// They can be overridden by a YAML file and hot reloaded in development.
type Tunables struct {
	// FeedPageSize caps the number of posts in the home feed
	FeedPageSize int `yaml:"feed_page_size"`
	// ActivityPageSize caps the number of activity rows per fetch
	ActivityPageSize int `yaml:"activity_page_size"`
	// SearchPageSize caps profile search results
	SearchPageSize int `yaml:"search_page_size"`
	// EnrichTimeout bounds the per-item join fan-out
	EnrichTimeout time.Duration `yaml:"enrich_timeout"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Data service configuration
	SupabaseURL     string
	SupabaseAnonKey string
	RealtimeURL     string // derived from SupabaseURL when empty
	StorageBucket   string

	// Realtime configuration
	HeartbeatInterval time.Duration
	ReconnectMinWait  time.Duration
	ReconnectMaxWait  time.Duration

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool

	// Runtime tunables (hot reloadable)
	Tunables Tunables

	// TunablesFile is the optional YAML overlay watched in development
	TunablesFile string
}

// LoadConfig loads configuration from environment variables, then applies
// the optional YAML overlay file on top of the tunables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
		RealtimeURL:     getEnv("SUPABASE_REALTIME_URL", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", "posts"),

		HeartbeatInterval: getEnvDuration("REALTIME_HEARTBEAT_INTERVAL", 30*time.Second),
		ReconnectMinWait:  getEnvDuration("REALTIME_RECONNECT_MIN_WAIT", time.Second),
		ReconnectMaxWait:  getEnvDuration("REALTIME_RECONNECT_MAX_WAIT", 30*time.Second),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),

		Tunables: Tunables{
			FeedPageSize:     getEnvInt("FEED_PAGE_SIZE", 50),
			ActivityPageSize: getEnvInt("ACTIVITY_PAGE_SIZE", 50),
			SearchPageSize:   getEnvInt("SEARCH_PAGE_SIZE", 50),
			EnrichTimeout:    getEnvDuration("ENRICH_TIMEOUT", 10*time.Second),
		},

		TunablesFile: getEnv("TUNABLES_FILE", ""),
	}

	if cfg.TunablesFile != "" {
		if err := cfg.Tunables.LoadFile(cfg.TunablesFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load tunables file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile applies a YAML overlay on top of the current tunables
func (t *Tunables) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, t)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseAnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	if c.Tunables.FeedPageSize <= 0 {
		return fmt.Errorf("feed page size must be positive")
	}
	if c.Tunables.ActivityPageSize <= 0 {
		return fmt.Errorf("activity page size must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
