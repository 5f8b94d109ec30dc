// Package config loads the shared configuration for both binaries from
// ~/.olbridge/olbridge.yaml, with every field overridable from the
// command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Backend names accepted by the config and flags.
const (
	// BackendOutlook is the live COM automation backend.
	BackendOutlook = "outlook"

	// BackendSim is the SQLite-backed simulated store.
	BackendSim = "sim"
)

// Config is the top-level configuration shared by the daemon and the CLI.
type Config struct {
	// Backend selects the store implementation: outlook or sim.
	Backend string `mapstructure:"backend" yaml:"backend"`

	// Account optionally pins folder resolution and outgoing mail to one
	// account's mailbox.
	Account string `mapstructure:"account" yaml:"account"`

	// Sim configures the simulated backend.
	Sim SimConfig `mapstructure:"sim" yaml:"sim"`

	// LogDir is where the rotating log file is written. Empty disables
	// file logging.
	LogDir string `mapstructure:"log_dir" yaml:"log_dir"`

	// LogLevel is the log level name.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// CallTimeoutSec bounds how long a caller waits on one operation.
	CallTimeoutSec int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`
}

// SimConfig configures the simulated backend.
type SimConfig struct {
	// Path is the database file. Empty means in-memory.
	Path string `mapstructure:"path" yaml:"path"`

	// UserEmail is the session owner's address.
	UserEmail string `mapstructure:"user_email" yaml:"user_email"`

	// UserName is the session owner's display name.
	UserName string `mapstructure:"user_name" yaml:"user_name"`

	// SeedDemo populates a fresh store with the demo data set.
	SeedDemo bool `mapstructure:"seed_demo" yaml:"seed_demo"`
}

// DefaultDir returns the application's home directory, ~/.olbridge.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".olbridge")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "olbridge.yaml")
}

// Load reads the configuration from the given YAML file. A missing file
// yields the defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("backend", BackendOutlook)
	v.SetDefault("log_level", "info")
	v.SetDefault("call_timeout_sec", 30)
	v.SetDefault("sim.path", filepath.Join(DefaultDir(), "sim.db"))

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config %s: %w",
					path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Backend != BackendOutlook && cfg.Backend != BackendSim {
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	return &cfg, nil
}
