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

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled beacon IDs, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return runList(cmd.OutOrStdout(), configFromContext(cmd), limit)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of IDs (0 for all)")
}

func runList(out io.Writer, cfg *config.Config, limit int) error {
	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	ids, err := journal.List(limit)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintf(out, "%s  %s\n", id, id.Time().UTC().Format("2006-01-02T15:04:05Z"))
	}
	return nil
}
