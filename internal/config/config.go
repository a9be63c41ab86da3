// Package config loads autopilot settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AUTOPILOT_AGENT_ID.
const EnvPrefix = "AUTOPILOT"

// Config holds the resolved settings.
type Config struct {
	APIAddr            string        `mapstructure:"api_addr"`
	AgentID            string        `mapstructure:"agent_id"`
	APIKey             string        `mapstructure:"api_key"`
	Timeout            time.Duration `mapstructure:"timeout"`
	LogLimit           int           `mapstructure:"log_limit"`
	HistoryLimit       int           `mapstructure:"history_limit"`
	HistoryConcurrency int           `mapstructure:"history_concurrency"`
	LogLevel           string        `mapstructure:"log_level"`
	Listen             string        `mapstructure:"listen"`
	DBPath             string        `mapstructure:"db_path"`

	// Dir is the state directory holding config.yaml, the database and logs.
	Dir string `mapstructure:"-"`
}

// Dir returns the state directory: $AUTOPILOT_HOME or ~/.autopilot.
func Dir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".autopilot"), nil
}

// SetDefaults registers every key so environment overrides are seen by
// Unmarshal.
func SetDefaults(v *viper.Viper, dir string) {
	v.SetDefault("api_addr", "http://127.0.0.1:7466")
	v.SetDefault("agent_id", "")
	v.SetDefault("api_key", "")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("log_limit", 50)
	v.SetDefault("history_limit", 100)
	v.SetDefault("history_concurrency", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("listen", "127.0.0.1:7466")
	v.SetDefault("db_path", filepath.Join(dir, "autopilot.db"))
}

// Load reads config.yaml from the state directory, or override when set.
// A missing file is not an error. Flags should be bound to v before calling.
func Load(v *viper.Viper, override string) (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	SetDefaults(v, dir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override != "" {
		v.SetConfigFile(override)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(override == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Dir = dir

	if strings.HasPrefix(cfg.DBPath, "~/") {
		home, _ := os.UserHomeDir()
		cfg.DBPath = filepath.Join(home, cfg.DBPath[2:])
	}
	cfg.APIAddr = strings.TrimRight(cfg.APIAddr, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would break the client.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIAddr, "http://") && !strings.HasPrefix(c.APIAddr, "https://") {
		return fmt.Errorf("invalid api_addr %q: must start with http:// or https://", c.APIAddr)
	}
	if c.LogLimit <= 0 || c.HistoryLimit <= 0 {
		return fmt.Errorf("log_limit and history_limit must be positive")
	}
	if c.HistoryConcurrency <= 0 {
		return fmt.Errorf("history_concurrency must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// RequireAgent returns an error when no agent id is configured.
func (c *Config) RequireAgent() error {
	if c.AgentID == "" {
		return errors.New("no agent configured: pass --agent or set agent_id in config.yaml")
	}
	return nil
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return lvl, nil
}

// NewLogger builds a text logger at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	lvl, _ := ParseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// OpenLogFile opens name inside the state directory for appending.
func (c *Config) OpenLogFile(name string) (*os.File, error) {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return os.OpenFile(filepath.Join(c.Dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
