// Package config loads the toolgate process configuration from a YAML file
// and the environment.
//
// Loading happens in three steps: defaults, the YAML file (with ${VAR}
// expansion) and environment overrides. Validate reports the first problem
// as a *core.ConfigurationError.
//
//	cfg, err := config.Load("toolgate.yaml")
//	if err != nil { ... }
//	if err := cfg.Validate(); err != nil { ... }
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
)

// Model providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete process configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Store     StoreConfig     `yaml:"store"`
	Converter ConverterConfig `yaml:"converter"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxBodyBytes bounds request bodies, attachments included.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	Name        string   `yaml:"name"`
	APIKey      string   `yaml:"api_key"`
	Temperature *float64 `yaml:"temperature"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// Path is the sqlite database file; empty keeps it in memory.
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

type ConverterConfig struct {
	// URL of the office to PDF service. Empty disables conversion.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type EngineConfig struct {
	SystemInstruction string `yaml:"system_instruction"`
	ScopeInstruction  string `yaml:"scope_instruction"`
	MaxAutoDenyRounds int    `yaml:"max_auto_deny_rounds"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)

	return cfg
}

// Load reads path, expands environment variables, applies defaults and
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 50 << 20
	}
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = ProviderGemini
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverMemory
	}
	if cfg.Converter.Timeout == 0 {
		cfg.Converter.Timeout = 90 * time.Second
	}
	if cfg.Engine.MaxAutoDenyRounds == 0 {
		cfg.Engine.MaxAutoDenyRounds = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv. The provider API key falls back to the provider's
// conventional variable (GEMINI_API_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("TOOLGATE_ADDR", &c.Server.Addr)
	str("TOOLGATE_MODEL_PROVIDER", &c.Model.Provider)
	str("TOOLGATE_MODEL", &c.Model.Name)
	str("TOOLGATE_API_KEY", &c.Model.APIKey)
	str("TOOLGATE_STORE_DRIVER", &c.Store.Driver)
	str("TOOLGATE_SQLITE_PATH", &c.Store.Path)
	str("DATABASE_URL", &c.Store.DSN)
	str("CONVERTER_URL", &c.Converter.URL)
	str("SYSTEM_INSTRUCTION", &c.Engine.SystemInstruction)
	str("TOOLGATE_LOG_LEVEL", &c.Logging.Level)
	str("TOOLGATE_LOG_FORMAT", &c.Logging.Format)

	if v, ok := lookup("TOOLGATE_MAX_AUTO_DENY_ROUNDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &core.ConfigurationError{Field: "TOOLGATE_MAX_AUTO_DENY_ROUNDS", Reason: "must be an integer"}
		}

		c.Engine.MaxAutoDenyRounds = n
	}

	if c.Model.APIKey == "" {
		if key := providerKeyEnv(c.Model.Provider); key != "" {
			str(key, &c.Model.APIKey)
		}
	}

	return nil
}

func providerKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderGemini, "":
		return "GEMINI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// Validate checks the configuration for problems that would prevent start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return &core.ConfigurationError{Field: "server.addr", Reason: "required"}
	}

	switch c.Model.Provider {
	case ProviderGemini, ProviderAnthropic, ProviderOpenAI:
	default:
		return &core.ConfigurationError{Field: "model.provider", Reason: fmt.Sprintf("unknown provider %q", c.Model.Provider)}
	}

	if c.Model.APIKey == "" {
		return &core.ConfigurationError{Field: "model.api_key", Reason: "required (or set " + providerKeyEnv(c.Model.Provider) + ")"}
	}

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return &core.ConfigurationError{Field: "store.dsn", Reason: "required for postgres (or set DATABASE_URL)"}
		}
	default:
		return &core.ConfigurationError{Field: "store.driver", Reason: fmt.Sprintf("unknown driver %q", c.Store.Driver)}
	}

	if strings.TrimSpace(c.Engine.SystemInstruction) == "" {
		return &core.ConfigurationError{Field: "engine.system_instruction", Reason: "required (or set SYSTEM_INSTRUCTION)"}
	}

	if c.Engine.MaxAutoDenyRounds < 0 {
		return &core.ConfigurationError{Field: "engine.max_auto_deny_rounds", Reason: "must not be negative"}
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return &core.ConfigurationError{Field: "logging.level", Reason: err.Error()}
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return &core.ConfigurationError{Field: "logging.format", Reason: "must be json or text"}
	}

	return nil
}

// LoggerConfig translates the logging section for logging.New.
func (c *Config) LoggerConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)

	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = c.Logging.Format
	lc.Component = "toolgate"

	return lc
}
