/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/primefusion/pkg/config"
	"github.com/ssargent/primefusion/pkg/di"
	"github.com/ssargent/primefusion/pkg/logging"
)

var container *di.Container

// SetContainer injects the dependency container used by the commands.
func SetContainer(c *di.Container) {
	container = c
}

type configKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "primefusion",
	Short: "Prime-Fusion trailer codec and beacon journal",
	Long: `primefusion builds, signs and verifies beacons carrying the 10-byte
Prime-Fusion trailer, keeps a local journal of built beacons and serves
both over a REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if _, err := logging.Configure(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Output: cmd.ErrOrStderr(),
		}); err != nil {
			return fmt.Errorf("failed to configure logging: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Journal data directory (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig reads the config file if present and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	explicit := configPath != ""
	if !explicit {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else if explicit && cmd.Name() != "init" {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
	return cfg, nil
}

func configFromContext(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}
