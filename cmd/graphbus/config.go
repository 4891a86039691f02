// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	gbconfig "github.com/teradata-labs/graphbus/pkg/config"
)

// DefaultConfigFileName is the name of the config file
const DefaultConfigFileName = "graphbus"

// Config holds all configuration for the graphbus host.
// Priority: CLI flags > env vars > config file > defaults
type Config struct {
	// DataDir is computed from GRAPHBUS_DATA_DIR (or ~/.graphbus) and is not
	// loaded from the config file.
	DataDir string `mapstructure:"-" yaml:"data_dir"`

	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Runtime   RuntimeConfig   `mapstructure:"runtime" yaml:"runtime"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch"`
}

// ArtifactsConfig locates the artifact set.
type ArtifactsConfig struct {
	// Dir is the artifact directory (default: ./.graphbus)
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RuntimeConfig holds executor settings.
type RuntimeConfig struct {
	MaxCascadeDepth int  `mapstructure:"max_cascade_depth" yaml:"max_cascade_depth"`
	WildcardTopics  bool `mapstructure:"wildcard_topics" yaml:"wildcard_topics"`
	ValidateSchemas bool `mapstructure:"validate_schemas" yaml:"validate_schemas"`
	StrictBindings  bool `mapstructure:"strict_bindings" yaml:"strict_bindings"`

	// Catalog names the built-in agent code to bind ("hello" or "none")
	Catalog string `mapstructure:"catalog" yaml:"catalog"`

	// ShutdownTimeoutSeconds bounds how long shutdown waits for in-flight calls
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
	File   string `mapstructure:"file" yaml:"file"`     // empty: stderr
}

// MetricsConfig controls the Prometheus endpoint of `graphbus run`.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// WatchConfig controls artifact hot reload in `graphbus run`.
type WatchConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	DebounceMs int  `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LoadConfig loads configuration from file, environment, and flags.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config search paths (in order of priority)
		viper.AddConfigPath(gbconfig.GetDataDir()) // respects GRAPHBUS_DATA_DIR
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/graphbus/")
		viper.SetConfigName(DefaultConfigFileName) // graphbus.yaml
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	// GRAPHBUS_RUNTIME_MAX_CASCADE_DEPTH -> runtime.max_cascade_depth
	viper.SetEnvPrefix("GRAPHBUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.DataDir = gbconfig.GetDataDir()
	config.Artifacts.Dir = gbconfig.ResolveArtifactsDir(config.Artifacts.Dir)
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("artifacts.dir", gbconfig.DefaultArtifactsDir)

	viper.SetDefault("runtime.max_cascade_depth", 16)
	viper.SetDefault("runtime.wildcard_topics", true)
	viper.SetDefault("runtime.validate_schemas", false)
	viper.SetDefault("runtime.strict_bindings", false)
	viper.SetDefault("runtime.catalog", "hello")
	viper.SetDefault("runtime.shutdown_timeout_seconds", 10)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.file", "")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9464")

	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.debounce_ms", 500)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required")
	}

	if c.Runtime.MaxCascadeDepth < 1 {
		return fmt.Errorf("invalid runtime.max_cascade_depth: %d (must be >= 1)", c.Runtime.MaxCascadeDepth)
	}
	if c.Runtime.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("invalid runtime.shutdown_timeout_seconds: %d", c.Runtime.ShutdownTimeoutSeconds)
	}
	if _, ok := catalogs[c.Runtime.Catalog]; !ok {
		return fmt.Errorf("unknown runtime.catalog %q (available: %s)", c.Runtime.Catalog, strings.Join(catalogNames(), ", "))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q (must be debug, info, warn, or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q (must be text or json)", c.Logging.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	if c.Watch.DebounceMs < 0 {
		return fmt.Errorf("invalid watch.debounce_ms: %d", c.Watch.DebounceMs)
	}
	return nil
}
