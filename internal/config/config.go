package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/safewrite/internal/backoff"
)

// Config represents the complete safewrite configuration
type Config struct {
	Lock    LockConfig    `mapstructure:"lock"`
	Write   WriteConfig   `mapstructure:"write"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LockConfig controls lock acquisition and staleness
type LockConfig struct {
	// MaxAgeMinutes is the age in minutes beyond which a live holder's lock
	// counts as stale (0 = age check disabled)
	MaxAgeMinutes int `mapstructure:"max_age_minutes"`
	// MaxAttempts is the number of acquisition attempts before giving up
	MaxAttempts int `mapstructure:"max_attempts"`
	// BaseDelayMs is the first retry delay in milliseconds
	BaseDelayMs int `mapstructure:"base_delay_ms"`
	// Multiplier scales the delay between attempts (1.0 = fixed delay)
	Multiplier float64 `mapstructure:"multiplier"`
	// MaxDelayMs caps the per-attempt delay in milliseconds (0 = uncapped)
	MaxDelayMs int `mapstructure:"max_delay_ms"`
	// Jitter is the fraction of the delay randomized per attempt, in [0, 1]
	Jitter float64 `mapstructure:"jitter"`
	// WatchRelease waits on lockfile-removal events between retries instead
	// of sleeping out the full delay
	WatchRelease bool `mapstructure:"watch_release"`
}

// WriteConfig controls the atomic replace behavior
type WriteConfig struct {
	// FileMode is the octal mode for newly created targets (default: "0644")
	FileMode string `mapstructure:"file_mode"`
	// PreserveMode carries an existing target's permission bits over to the
	// replacement (default: true)
	PreserveMode bool `mapstructure:"preserve_mode"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: false;
	// the CLI is quiet unless asked)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// MaxAge returns the stale-age threshold as a time.Duration (0 means disabled)
func (c *LockConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

// BaseDelay returns the first retry delay as a time.Duration
func (c *LockConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the delay cap as a time.Duration (0 means uncapped)
func (c *LockConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// Policy converts the lock settings into a retry policy
func (c *LockConfig) Policy() backoff.Policy {
	return backoff.Policy{
		BaseDelay:   c.BaseDelay(),
		Multiplier:  c.Multiplier,
		MaxDelay:    c.MaxDelay(),
		MaxAttempts: c.MaxAttempts,
		Jitter:      c.Jitter,
	}
}

// Mode parses the configured file mode. Invalid values are caught by
// Validate; this falls back to 0644 so callers get something usable.
func (c *WriteConfig) Mode() os.FileMode {
	mode, err := parseFileMode(c.FileMode)
	if err != nil {
		return 0644
	}
	return mode
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Lock: LockConfig{
			MaxAgeMinutes: 10,
			MaxAttempts:   5,
			BaseDelayMs:   100,
			Multiplier:    1.0, // Fixed delay, matching the default retry shape
			MaxDelayMs:    5000,
			Jitter:        0,
			WatchRelease:  false,
		},
		Write: WriteConfig{
			FileMode:     "0644",
			PreserveMode: true,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Lock defaults
	viper.SetDefault("lock.max_age_minutes", defaults.Lock.MaxAgeMinutes)
	viper.SetDefault("lock.max_attempts", defaults.Lock.MaxAttempts)
	viper.SetDefault("lock.base_delay_ms", defaults.Lock.BaseDelayMs)
	viper.SetDefault("lock.multiplier", defaults.Lock.Multiplier)
	viper.SetDefault("lock.max_delay_ms", defaults.Lock.MaxDelayMs)
	viper.SetDefault("lock.jitter", defaults.Lock.Jitter)
	viper.SetDefault("lock.watch_release", defaults.Lock.WatchRelease)

	// Write defaults
	viper.SetDefault("write.file_mode", defaults.Write.FileMode)
	viper.SetDefault("write.preserve_mode", defaults.Write.PreserveMode)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "safewrite")
	}
	// Fall back to ~/.config/safewrite
	home, err := os.UserHomeDir()
	if err != nil {
		return ".safewrite"
	}
	return filepath.Join(home, ".config", "safewrite")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
