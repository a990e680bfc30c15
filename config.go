package dispatch

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/creastat/dispatch/core"
)

// Config configures a Dispatcher
type Config struct {
	Executor core.ExecutorConfig `yaml:"executor"`
	Logging  core.LoggingConfig  `yaml:"logging"`
}

// ValidationError represents a validation error with context
type ValidationError struct {
	Message string
	Details string
}

func (e ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

var logLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// DefaultConfig returns a config using a goroutine executor and info logging
func DefaultConfig() Config {
	return Config{
		Executor: core.ExecutorConfig{Kind: core.ExecutorGoroutine},
		Logging:  core.LoggingConfig{Level: defaultLogLevel},
	}
}

// LoadConfig reads a YAML config file. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML on top of DefaultConfig and validates the result
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Executor.Kind == "" {
		c.Executor.Kind = core.ExecutorGoroutine
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// Validate checks the executor and logging settings
func (c Config) Validate() error {
	if c.Executor.Kind != "" && !c.Executor.Kind.Valid() {
		return ValidationError{
			Message: "config validation failed",
			Details: fmt.Sprintf("unknown executor kind %q", c.Executor.Kind),
		}
	}

	if c.Executor.Workers < 0 {
		return ValidationError{
			Message: "config validation failed",
			Details: fmt.Sprintf("executor workers must not be negative, got %d", c.Executor.Workers),
		}
	}

	if c.Executor.Workers > 0 && c.Executor.Kind != core.ExecutorPool {
		return ValidationError{
			Message: "config validation failed",
			Details: "executor workers is only valid for the pool executor",
		}
	}

	if c.Logging.Level != "" && !logLevels[c.Logging.Level] {
		return ValidationError{
			Message: "config validation failed",
			Details: fmt.Sprintf("unknown log level %q", c.Logging.Level),
		}
	}

	return nil
}
