package cmd

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/safewrite/internal/atomic"
	"github.com/Iron-Ham/safewrite/internal/config"
	"github.com/Iron-Ham/safewrite/internal/lockfile"
	"github.com/Iron-Ham/safewrite/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "safewrite",
	Short: "Crash-safe, lock-coordinated file replacement",
	Long: `Safewrite replaces a file's contents atomically under an advisory
lockfile protocol: writers coordinate through sibling .lock files,
stale locks left by dead processes are reclaimed, and every replace
is a write-temp-then-rename so readers never observe a torn file.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/safewrite/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/safewrite")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SAFEWRITE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SAFEWRITE_LOCK_MAX_ATTEMPTS for lock.max_attempts
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newOrchestrator wires the core from the effective configuration.
func newOrchestrator() (*atomic.Orchestrator, *logging.Logger) {
	cfg := config.Get()

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		if l, err := logging.NewLogger(filepath.Join(config.ConfigDir(), "logs"), cfg.Logging.Level); err == nil {
			logger = l
		}
	}

	fs := afero.NewOsFs()
	store := lockfile.NewStore(fs, nil, logger)
	manager := lockfile.NewManager(store,
		lockfile.WithPolicy(cfg.Lock.Policy()),
		lockfile.WithMaxAge(cfg.Lock.MaxAge()),
		lockfile.WithWatchRelease(cfg.Lock.WatchRelease),
		lockfile.WithLogger(logger),
	)
	writer := atomic.NewWriter(fs,
		atomic.WithFileMode(cfg.Write.Mode()),
		atomic.WithPreserveMode(cfg.Write.PreserveMode),
		atomic.WithWriterLogger(logger),
	)
	return atomic.NewOrchestrator(manager, writer, cfg.Lock.Policy(), logger), logger
}
