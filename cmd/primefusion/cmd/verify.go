/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/primefusion/pkg/beacon"
	"github.com/ssargent/primefusion/pkg/config"
	"github.com/ssargent/primefusion/pkg/store"
)

type verifyOptions struct {
	ID     string
	File   string
	KeyHex string
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify [id]",
	Short: "Open a beacon and verify its trailer",
	Long: `Open a beacon from the journal by ID, or a framed beacon from --file,
verify its trailer and print header, payload and trailer fields.

Examples:
  primefusion verify 2Ah6ITRpIJGU4kzOnXq1v6nQgO5
  primefusion verify --file beacon.bin --key 01010101010101010101010101010101`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := verifyOptions{}
		if len(args) == 1 {
			opts.ID = args[0]
		}
		opts.File, _ = cmd.Flags().GetString("file")
		opts.KeyHex, _ = cmd.Flags().GetString("key")
		return runVerify(cmd.OutOrStdout(), configFromContext(cmd), opts, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("file", "", "Framed beacon file instead of a journal ID")
	verifyCmd.Flags().String("key", "", "Hex session key (default: from config)")
}

func runVerify(out io.Writer, cfg *config.Config, opts verifyOptions, now time.Time) error {
	if (opts.ID == "") == (opts.File == "") {
		return errors.New("pass either a beacon id or --file")
	}

	raw, err := loadBeacon(cfg, opts)
	if err != nil {
		return err
	}

	src, err := resolveKeySource(cfg, opts.KeyHex)
	if err != nil {
		return err
	}
	opened, err := beacon.OpenWith(raw, src, now)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "header:  %s\n", opened.HeaderRaw)
	fmt.Fprintf(out, "payload: %d bytes\n", len(opened.Payload))
	fmt.Fprintf(out, "trailer: %s\n", formatFields(opened.Fields))
	return nil
}

func loadBeacon(cfg *config.Config, opts verifyOptions) ([]byte, error) {
	if opts.File != "" {
		return os.ReadFile(opts.File)
	}

	id, err := store.ParseID(opts.ID)
	if err != nil {
		return nil, err
	}
	journal, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}
	defer journal.Close()
	return journal.Get(id)
}
