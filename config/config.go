// Package config loads the locator configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nanoncore/nano-onulocator/diagnostics"
	"github.com/nanoncore/nano-onulocator/types"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ONULOCATOR_TIMEOUTS_LOGIN
const EnvPrefix = "ONULOCATOR"

// Config holds all application configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Database is the SQLite file holding inventory, defaults and logs
	Database string `mapstructure:"database"`

	// Fleet defaults applied to OLTs that do not set their own
	Vendor   string `mapstructure:"vendor"`
	Protocol string `mapstructure:"protocol"`
	Port     int    `mapstructure:"port"`

	// Concurrency caps simultaneous sessions during a search
	Concurrency int `mapstructure:"concurrency"`

	Timeouts types.Timeouts `mapstructure:"timeouts"`

	// Diagnostics overrides the extraction rules per field
	Diagnostics diagnostics.Rules `mapstructure:"diagnostics"`

	// MetricsAddr serves /metrics when set
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Database:    filepath.Join(homeDir, ".onulocator", "onulocator.db"),
		Vendor:      string(types.VendorZTE),
		Protocol:    string(types.ProtocolTelnet),
		Port:        23,
		Concurrency: 20,
		Timeouts:    types.DefaultTimeouts(),
	}
}

// Load reads configuration from path, or from onulocator.yaml in the working
// directory or ~/.onulocator when path is empty, then applies environment
// overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("onulocator")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".onulocator"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("vendor", cfg.Vendor)
	v.SetDefault("protocol", cfg.Protocol)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("concurrency", cfg.Concurrency)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)

	v.SetDefault("timeouts.connect", cfg.Timeouts.Connect)
	v.SetDefault("timeouts.login", cfg.Timeouts.Login)
	v.SetDefault("timeouts.shell", cfg.Timeouts.Shell)
	v.SetDefault("timeouts.enable", cfg.Timeouts.Enable)
	v.SetDefault("timeouts.tuning", cfg.Timeouts.Tuning)
	v.SetDefault("timeouts.command", cfg.Timeouts.Command)
	v.SetDefault("timeouts.long_command", cfg.Timeouts.LongCommand)
	v.SetDefault("timeouts.send", cfg.Timeouts.Send)
}

// Validate checks values that would otherwise fail deep inside an operation
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}

	switch types.Protocol(c.Protocol) {
	case types.ProtocolTelnet, types.ProtocolSSH:
	default:
		return fmt.Errorf("invalid protocol %q: must be telnet or ssh", c.Protocol)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

// Extractor builds the diagnostics extractor from the default rules and the
// configured overrides
func (c *Config) Extractor() (*diagnostics.Extractor, error) {
	return diagnostics.NewExtractor(diagnostics.DefaultRules().Merge(c.Diagnostics))
}
