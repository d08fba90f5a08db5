// Package config loads bridge configuration from an optional config file
// and BRIDGE_-prefixed environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete bridge configuration.
type Config struct {
	// Host and Port are the downstream listen address.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// AgentBaseURL is the HTTP base of the agent runtime.
	AgentBaseURL string `mapstructure:"agent_base_url"`

	// InitialInstruction seeds the upstream conversation at startup.
	InitialInstruction string `mapstructure:"initial_instruction"`

	// ConnectTimeout bounds each upstream handshake attempt;
	// ReconnectAttempts is the bounded retry budget.
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`

	// CORSOrigins is the downstream allow-list; "*" allows everything.
	CORSOrigins []string `mapstructure:"cors_origins"`

	LogLevel string `mapstructure:"log_level"`
}

const defaultInitialInstruction = "start the web server with the corresponding ports, using `npm run dev`. provide the server url without any other explanations."

// Load reads configuration. A bridge.yaml in the working directory is
// optional; environment variables (BRIDGE_PORT, BRIDGE_AGENT_BASE_URL, …)
// take precedence over it.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("agent_base_url", "http://127.0.0.1:3000")
	v.SetDefault("initial_instruction", defaultInitialInstruction)
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("reconnect_attempts", 3)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("log_level", "info")

	v.SetConfigName("bridge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("bridge")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ListenAddr formats the downstream bind address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
