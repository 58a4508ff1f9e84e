package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the CLI and the provisioning server need.
// Values come from the environment (NUMBERPRO_BASE_URL, DATABASE_URL, ...)
// with an optional npctl.yaml overriding defaults.
type Config struct {
	BaseURL  string `mapstructure:"NUMBERPRO_BASE_URL"`
	Username string `mapstructure:"NUMBERPRO_USERNAME"`
	Password string `mapstructure:"NUMBERPRO_PASSWORD"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	PollSeconds int `mapstructure:"SCHED_POLL_SECONDS"`

	SessionHashKeyB64  string `mapstructure:"SESSION_HASH_KEY"`
	SessionBlockKeyB64 string `mapstructure:"SESSION_BLOCK_KEY"`
	CredEncKeyB64      string `mapstructure:"CRED_ENC_KEY"`

	SessionHashKey  []byte `mapstructure:"-"`
	SessionBlockKey []byte `mapstructure:"-"`
	CredEncKey      []byte `mapstructure:"-"`
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// Load reads configuration from the environment and an optional npctl.yaml
// in the working directory. Inventory connection settings are required
// everywhere; database and key material are validated by RequireServer only
// where the serve/job/user commands need them.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("npctl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SCHED_POLL_SECONDS", 5)

	v.AutomaticEnv()
	for _, key := range []string{
		"NUMBERPRO_BASE_URL", "NUMBERPRO_USERNAME", "NUMBERPRO_PASSWORD",
		"DATABASE_URL", "HTTP_ADDR", "LOG_LEVEL", "SCHED_POLL_SECONDS",
		"SESSION_HASH_KEY", "SESSION_BLOCK_KEY", "CRED_ENC_KEY",
	} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.BaseURL == "" {
		return Config{}, fmt.Errorf("NUMBERPRO_BASE_URL is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return Config{}, fmt.Errorf("NUMBERPRO_USERNAME and NUMBERPRO_PASSWORD are required")
	}
	if cfg.PollSeconds < 1 {
		return Config{}, fmt.Errorf("SCHED_POLL_SECONDS must be >= 1")
	}
	return cfg, nil
}

// RequireServer validates the settings the serve/job/user commands need on
// top of Load: a database and session/encryption key material.
func (c *Config) RequireServer() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	var err error
	if c.SessionHashKey, err = decodeKey("SESSION_HASH_KEY", c.SessionHashKeyB64, 0); err != nil {
		return err
	}
	if c.SessionBlockKey, err = decodeKey("SESSION_BLOCK_KEY", c.SessionBlockKeyB64, 0); err != nil {
		return err
	}
	if c.CredEncKey, err = decodeKey("CRED_ENC_KEY", c.CredEncKeyB64, 32); err != nil {
		return err
	}
	return nil
}

func decodeKey(name, val string, wantLen int) ([]byte, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, fmt.Errorf("%s is required (base64)", name)
	}
	b, err := base64.StdEncoding.DecodeString(val)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(val); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if wantLen > 0 && len(b) != wantLen {
		return nil, fmt.Errorf("%s must decode to %d bytes (got %d)", name, wantLen, len(b))
	}
	return b, nil
}
