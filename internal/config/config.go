// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patabrava/nality-sub002/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Splitter SplitterConfig `yaml:"splitter" mapstructure:"splitter"`
	Pending  PendingConfig  `yaml:"pending" mapstructure:"pending"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SplitterConfig configures the extraction/event-splitting collaborator.
// When BaseURL is empty the service falls back to the in-process
// Anthropic splitter, which then requires AnthropicKey.
type SplitterConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	AccessToken    string  `yaml:"access_token" mapstructure:"access_token"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst      int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	AnthropicKey   string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string  `yaml:"anthropic_model" mapstructure:"anthropic_model"`
}

// PendingConfig configures the pending registration handoff.
type PendingConfig struct {
	TTLDays int `yaml:"ttl_days" mapstructure:"ttl_days"`
}

// PipelineConfig configures conversion behavior.
type PipelineConfig struct {
	ConvertOnAnswer bool `yaml:"convert_on_answer" mapstructure:"convert_on_answer"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NALITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("pending.ttl_days", 7)
	v.SetDefault("pipeline.convert_on_answer", false)
	v.SetDefault("splitter.rate_per_sec", 0)
	v.SetDefault("splitter.rate_burst", 1)
	v.SetDefault("splitter.anthropic_model", "claude-haiku-4-5-20251001")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
