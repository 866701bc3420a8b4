// Package config loads and validates the service configuration from a YAML
// file, with environment variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pidstack/pidrelations/pkg/relations"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// DatabaseConfig configures the PostgreSQL backend. An empty URL selects the
// in-memory stores, which only make sense for tests and demos.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig configures token verification for mutating endpoints
type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret" validate:"required_if=Enabled true,omitempty,min=32"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// EventsConfig configures domain event fan-out
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size" validate:"min=0"`
	// PublishAddr is an optional NNG pub socket address (e.g. tcp://:7790)
	// for broadcasting events to external consumers
	PublishAddr string `yaml:"publish_addr"`
}

// AuditConfig configures the append-only mutation log
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// LoggingConfig configures structured log output
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Config is the root service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Events   EventsConfig   `yaml:"events"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`

	// RelationTypes extends the built-in registry with deployment-specific
	// relation types
	RelationTypes []relations.RelationType `yaml:"relation_types" validate:"dive"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7780,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
		Events: EventsConfig{
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, applies environment overrides and validates
// the result. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables, so secrets stay
// out of config files
func (c *Config) applyEnv() {
	if url := os.Getenv("PIDREL_DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if secret := os.Getenv("PIDREL_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if port := os.Getenv("PIDREL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if level := os.Getenv("PIDREL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks the configuration against its struct rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BuildRegistry returns the relation type registry for this deployment: the
// built-in types plus any declared in the config
func (c *Config) BuildRegistry() (*relations.Registry, error) {
	registry := relations.DefaultRegistry()
	for i := range c.RelationTypes {
		rt := c.RelationTypes[i]
		if err := registry.Register(&rt); err != nil {
			return nil, fmt.Errorf("failed to register relation type %q: %w", rt.Name, err)
		}
	}
	return registry, nil
}
