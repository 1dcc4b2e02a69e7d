// Package config provides configuration management for refract using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// Configuration is read from .refract.yml with REFRACT_ prefixed environment
// variable overrides (e.g. REFRACT_SERVER_PORT=3001). It covers the project
// root, the transform cache location, the external transformer command, the
// development server, and file watching.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Root      string          `yaml:"root" mapstructure:"root"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Transform TransformConfig `yaml:"transform" mapstructure:"transform"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Watch     WatchConfig     `yaml:"watch" mapstructure:"watch"`
	LogLevel  string          `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string          `yaml:"log_format" mapstructure:"log_format"`
}

type CacheConfig struct {
	// Dir is the cache directory, relative to Root unless absolute.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

type TransformConfig struct {
	// Command is the external single-file transformer binary.
	Command string `yaml:"command" mapstructure:"command"`
	// Args are passed to the transformer before the per-file options.
	Args []string `yaml:"args" mapstructure:"args"`
	// Target is the emitted language level.
	Target string `yaml:"target" mapstructure:"target"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Patterns   []string `yaml:"patterns" mapstructure:"patterns"`
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`
	DebounceMS int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Load builds a Config from viper's merged sources and applies defaults.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Root == "" {
		config.Root = "."
	}
	if config.Cache.Dir == "" {
		config.Cache.Dir = filepath.Join("node_modules", ".refract")
	}
	if config.Transform.Command == "" {
		config.Transform.Command = "swc"
	}
	if config.Transform.Target == "" {
		config.Transform.Target = "es2020"
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 3000
	}
	if len(config.Watch.Patterns) == 0 {
		config.Watch.Patterns = []string{"**/*.tsx", "**/*.ts", "**/*.jsx"}
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"node_modules", ".git"}
	}
	if config.Watch.DebounceMS == 0 {
		config.Watch.DebounceMS = 100
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Transform.Command) == "" {
		return fmt.Errorf("transform command must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

// CacheDir resolves the cache directory against the project root.
func (c *Config) CacheDir() string {
	if filepath.IsAbs(c.Cache.Dir) {
		return c.Cache.Dir
	}
	return filepath.Join(c.Root, c.Cache.Dir)
}
