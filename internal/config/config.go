// Package config loads gateway settings from an optional YAML file and
// OLLY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix      = "OLLY"
	appDirName     = ".olly"
	configFileName = "config.yaml"
)

// Config holds every setting the CLI and gateway read.
type Config struct {
	AppDir       string `mapstructure:"app_dir"`
	KeysDir      string `mapstructure:"keys_dir"`
	LegacyConfig string `mapstructure:"legacy_config"`

	Keyring    KeyringConfig   `mapstructure:"keyring"`
	Anthropic  AnthropicConfig `mapstructure:"anthropic"`
	Perplexity ProviderConfig  `mapstructure:"perplexity"`
	Ollama     ProviderConfig  `mapstructure:"ollama"`
	Log        LogConfig       `mapstructure:"log"`

	MaxTokens      int           `mapstructure:"max_tokens"`
	WebSearch      bool          `mapstructure:"web_search"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	StreamTimeout  time.Duration `mapstructure:"stream_timeout"`
}

// KeyringConfig controls the OS keyring tier.
type KeyringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
}

// ProviderConfig overrides a provider's endpoint and default sampling.
type ProviderConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
}

// AnthropicConfig adds the API version header to ProviderConfig.
type AnthropicConfig struct {
	ProviderConfig `mapstructure:",squash"`
	Version        string `mapstructure:"version"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. When configFile is empty, <app_dir>/config.yaml
// is used if it exists; a missing default file is not an error. Environment
// variables such as OLLY_MAX_TOKENS or OLLY_ANTHROPIC_BASE_URL override
// file values, and LOG_LEVEL is honored when OLLY_LOG_LEVEL is unset.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("log.level", envPrefix+"_LOG_LEVEL", "LOG_LEVEL"); err != nil {
		return nil, fmt.Errorf("bind log level: %w", err)
	}

	if configFile == "" {
		candidate := filepath.Join(v.GetString("app_dir"), configFileName)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app_dir", defaultAppDir())
	v.SetDefault("keys_dir", "")
	v.SetDefault("legacy_config", "")

	v.SetDefault("keyring.enabled", true)
	v.SetDefault("keyring.service", "olly")

	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.version", "2023-06-01")
	v.SetDefault("perplexity.base_url", "")
	v.SetDefault("perplexity.model", "")
	v.SetDefault("perplexity.temperature", 0.7)
	v.SetDefault("ollama.base_url", "")
	v.SetDefault("ollama.model", "")
	v.SetDefault("ollama.temperature", 0.7)

	v.SetDefault("max_tokens", 1024)
	v.SetDefault("web_search", true)
	v.SetDefault("request_timeout", 120*time.Second)
	v.SetDefault("stream_timeout", 10*time.Minute)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "pretty")
}

func defaultAppDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, appDirName)
}

// applyDerived fills paths that default relative to AppDir.
func (c *Config) applyDerived() {
	if c.KeysDir == "" {
		c.KeysDir = filepath.Join(c.AppDir, "keys")
	}
	if c.LegacyConfig == "" {
		c.LegacyConfig = filepath.Join(c.AppDir, "config.env")
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.AppDir == "" {
		errs = append(errs, errors.New("app_dir must not be empty"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max_tokens must not be negative, got %d", c.MaxTokens))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout))
	}
	if c.StreamTimeout < 0 {
		errs = append(errs, fmt.Errorf("stream_timeout must not be negative, got %s", c.StreamTimeout))
	}
	switch strings.ToLower(c.Log.Format) {
	case "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be pretty or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
