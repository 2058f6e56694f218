// Package config loads the sitegraph configuration and builds the process
// logger.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentic-research/sitegraph/internal/resolve"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override (SITEGRAPH_DATABASE, ...).
const EnvPrefix = "SITEGRAPH"

// Config is the sitegraph configuration.
type Config struct {
	// Database is the SQLite content store. Empty means Fixture is used.
	Database string `mapstructure:"database"`
	// Fixture is a JSON content fixture served from memory.
	Fixture string `mapstructure:"fixture"`
	// Schemas is the HCL settings file holding the site default set.
	Schemas    string       `mapstructure:"schemas"`
	Commerce   bool         `mapstructure:"commerce"`
	MaxDepth   int          `mapstructure:"max_depth"`
	StepBudget int          `mapstructure:"step_budget"`
	LogLevel   string       `mapstructure:"log_level"`
	Server     ServerConfig `mapstructure:"server"`
}

// ServerConfig configures the HTTP host.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
}

// New returns a viper instance with defaults, the sitegraph.yaml search path
// and SITEGRAPH_* environment overrides in place. Callers may bind flags to
// it before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("database", "")
	v.SetDefault("fixture", "")
	v.SetDefault("schemas", "")
	v.SetDefault("commerce", false)
	v.SetDefault("max_depth", resolve.DefaultMaxDepth)
	v.SetDefault("step_budget", resolve.DefaultStepBudget)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.render_timeout", 2*time.Second)

	v.SetConfigName("sitegraph")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. file, when set, replaces the search path; a
// missing sitegraph.yaml on the search path is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.StepBudget < 0 {
		return fmt.Errorf("step_budget must not be negative, got %d", c.StepBudget)
	}
	if c.Database != "" && c.Fixture != "" {
		return fmt.Errorf("database and fixture are mutually exclusive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return lvl, nil
}

// NewLogger builds the process logger. "debug" gets the human-readable
// development encoder; every other level logs JSON to stderr.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if lvl == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
