/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/primefusion/pkg/api"
	"github.com/ssargent/primefusion/pkg/config"
	"github.com/ssargent/primefusion/pkg/sessionkey"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the primefusion REST API server. Trailer and beacon endpoints use
the session keys from the configuration; /metrics exposes Prometheus metrics.

Examples:
  primefusion serve
  primefusion serve --port 9000 --bind 0.0.0.0 --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromContext(cmd)
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			cfg.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			cfg.Security.APIKey, _ = cmd.Flags().GetString("api-key")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "API key for /api/v1 (default: from config)")
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if cfg.Security.APIKey == "" {
		return errors.New("an API key is required (set security.api_key or pass --api-key)")
	}
	if container == nil {
		return fmt.Errorf("dependency container not initialized")
	}

	keys, err := cfg.KeySource()
	if err != nil {
		if !errors.Is(err, config.ErrNoKeyMaterial) {
			return err
		}
		log.Warn("no session key configured; trailer and beacon endpoints are disabled")
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	log.WithFields(log.Fields{
		"data_dir":    cfg.DataDir,
		"strict_tips": cfg.Fusion.StrictTips,
		"derived":     isDerived(keys),
	}).Info("journal opened")

	return container.GetServerFactory().CreateServerStarter().StartServer(ctx, journal, keys, api.ServerConfig{
		Port:       cfg.Port,
		Bind:       cfg.Bind,
		APIKey:     cfg.Security.APIKey,
		StrictTips: cfg.Fusion.StrictTips,
	})
}

func isDerived(src sessionkey.Source) bool {
	_, ok := src.(*sessionkey.Derived)
	return ok
}
