// Package config loads roster settings from flags, the environment, a
// .env file and <data-dir>/config.yaml, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ROSTER_ENDPOINT.
const EnvPrefix = "ROSTER"

// Config is the process configuration. Dataset-level settings such as
// the club name live in the Dataset itself; Endpoint and AutoSync here
// only seed a fresh Dataset.
type Config struct {
	DataDir         string        `mapstructure:"data_dir"`
	Endpoint        string        `mapstructure:"endpoint"`
	AutoSync        bool          `mapstructure:"auto_sync"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	StatusRevert    time.Duration `mapstructure:"status_revert"`
	PassphraseHash  string        `mapstructure:"passphrase_hash"`
	DashboardPort   int           `mapstructure:"dashboard_port"`
	LogFile         string        `mapstructure:"log_file"`
	InboxDir        string        `mapstructure:"inbox_dir"`
	BackupSchedule  string        `mapstructure:"backup_schedule"`
	BackupDir       string        `mapstructure:"backup_dir"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "roster")
	}
	return ".roster"
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("endpoint", "")
	v.SetDefault("auto_sync", true)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("status_revert", 3*time.Second)
	v.SetDefault("passphrase_hash", "")
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("log_file", "")
	v.SetDefault("inbox_dir", "")
	v.SetDefault("backup_schedule", "")
	v.SetDefault("backup_dir", "")
	v.SetDefault("refresh_interval", time.Duration(0))
}

// Load resolves the configuration. Flags must already be bound to v.
//
// A .env file in the working directory and one in the data directory are
// loaded into the environment first; variables already set win.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	dataDir := v.GetString("data_dir")
	if err := loadDotEnv(filepath.Join(dataDir, ".env")); err != nil {
		return nil, err
	}
	// The data dir may itself come from the .env just loaded.
	dataDir = v.GetString("data_dir")

	v.SetConfigFile(filepath.Join(dataDir, "config.yaml"))
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
}

// applyPaths fills path settings left empty with locations under DataDir.
func (c *Config) applyPaths() {
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "roster.log")
	}
	if c.InboxDir == "" {
		c.InboxDir = filepath.Join(c.DataDir, "inbox")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.DataDir, "backups")
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %v", c.HTTPTimeout)
	}
	if c.StatusRevert <= 0 {
		return fmt.Errorf("status_revert must be positive, got %v", c.StatusRevert)
	}
	if c.DashboardPort < 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("dashboard_port out of range: %d", c.DashboardPort)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval cannot be negative")
	}
	return nil
}

// StorePath is the Local Store database file.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "roster.db")
}
