// Package cmd wires the command line interface for semver-server.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spookyvision/semver-server/internal/config"
	"github.com/spookyvision/semver-server/internal/log"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

var rootCmd = &cobra.Command{
	Use:          "semver-server",
	Short:        "A small software package registry over TCP",
	Long:         `A small software package registry: crates with strictly increasing release histories, persisted to a JSON snapshot and served over a line-oriented TCP protocol.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/semver-server/config.yaml)")
	rootCmd.PersistentFlags().StringP("store", "s", "",
		"path to the registry snapshot file")
	rootCmd.PersistentFlags().StringP("addr", "a", "",
		"server address")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging")

	// Bind flags to viper
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("store", defaults.Store)
	viper.SetDefault("addr", defaults.Addr)
	viper.SetDefault("debug", defaults.Debug)
	viper.SetDefault("log_path", defaults.LogPath)
	viper.SetDefault("watch_store", defaults.WatchStore)
	viper.SetDefault("search.cache_ttl_seconds", defaults.Search.CacheTTLSeconds)
	viper.SetDefault("search.disable_cache", defaults.Search.DisableCache)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .semver-server/config.yaml (current directory)
		// 2. ~/.config/semver-server/config.yaml (user config)
		if _, err := os.Stat(".semver-server/config.yaml"); err == nil {
			viper.SetConfigFile(".semver-server/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "semver-server"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create a commented default
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			home, homeErr := os.UserHomeDir()
			if homeErr == nil {
				defaultPath := filepath.Join(home, ".config", "semver-server", "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)

	if debugFlag {
		cfg.Debug = true
	}
	if cfg.Debug {
		log.SetEnabled(true)
		log.SetMinLevel(log.LevelDebug)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
