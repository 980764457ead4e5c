/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ssargent/primefusion/pkg/config"
)

type initOptions struct {
	ConfigPath string
	DataDir    string
	Force      bool
	PrintKeys  bool
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration with generated API and master keys",
	Long: `Create a primefusion configuration file with a freshly generated API key
and master key. Session keys for trailers are derived from the master key
once per key window.

Examples:
  primefusion init
  primefusion init --config ./primefusion.yaml --data-dir ./data --print-keys`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOptions{}
		opts.ConfigPath, _ = cmd.Flags().GetString("config")
		opts.DataDir, _ = cmd.Flags().GetString("data-dir")
		opts.Force, _ = cmd.Flags().GetBool("force")
		opts.PrintKeys, _ = cmd.Flags().GetBool("print-keys")
		return runInit(cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	initCmd.Flags().Bool("print-keys", false, "Print the generated keys")
}

func runInit(out io.Writer, opts initOptions) error {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.GetDefaultConfigPath()
	}

	if config.ConfigExists(opts.ConfigPath) && !opts.Force {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", opts.ConfigPath)
	}

	cfg, err := config.BootstrapConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration created at %s\n", opts.ConfigPath)
	fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
	if opts.PrintKeys {
		fmt.Fprintf(out, "API key: %s\n", cfg.Security.APIKey)
		fmt.Fprintf(out, "Master key: %s\n", cfg.Security.MasterKey)
		fmt.Fprintf(out, "Store these keys securely! They are also saved in %s\n", opts.ConfigPath)
	}
	return nil
}
