package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spookyvision/semver-server/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and update the configuration file",
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Persist a configuration value",
	Long: `Persist a configuration value to the config file. Comments and other
sections in the file are left untouched.

Supported keys:
  store    path to the registry snapshot file
  addr     server address

Example:
  semver-server config set store ~/registry.json
  semver-server config set addr 127.0.0.1:9000`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigSet(_ *cobra.Command, args []string) error {
	path, err := activeConfigPath()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	switch key {
	case "store":
		err = config.SaveStore(path, value)
	case "addr":
		err = config.SaveAddr(path, value)
	default:
		return fmt.Errorf("unknown config key %q (supported: store, addr)", key)
	}
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, path)
	return nil
}

// activeConfigPath returns the config file the running command resolved,
// falling back to the default user config location when none was found.
func activeConfigPath() (string, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving config path: %w", err)
	}
	return filepath.Join(home, ".config", "semver-server", "config.yaml"), nil
}
