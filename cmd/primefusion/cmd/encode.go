/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ssargent/primefusion/pkg/config"
	"github.com/ssargent/primefusion/pkg/fusion"
)

type encodeOptions struct {
	keyOptions
	Root     string
	Tips     []string
	DataPath string
}

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a trailer over header||payload bytes",
	Long: `Encode a 10-byte Prime-Fusion trailer and print it as hex.

The MAC covers the bytes read from --data (a file, or - for stdin).

Examples:
  primefusion encode --root 0xCAFE --tips 0x123 --tips 0x456 --data body.bin
  primefusion encode --epoch 11 --key 01010101010101010101010101010101 --root 51966 --data -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := encodeOptions{}
		opts.KeyHex, _ = cmd.Flags().GetString("key")
		opts.Epoch, _ = cmd.Flags().GetString("epoch")
		opts.Root, _ = cmd.Flags().GetString("root")
		opts.Tips, _ = cmd.Flags().GetStringSlice("tips")
		opts.DataPath, _ = cmd.Flags().GetString("data")

		data, err := readInput(opts.DataPath, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read data: %w", err)
		}
		return runEncode(cmd.OutOrStdout(), configFromContext(cmd), opts, data, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().String("key", "", "Hex session key (default: from config)")
	encodeCmd.Flags().String("epoch", "auto", "Epoch 0-255, or auto for the current second")
	encodeCmd.Flags().String("root", "0", "Root ID 0-0xFFFF")
	encodeCmd.Flags().StringSlice("tips", nil, "Two tip IDs (repeat the flag or comma separate)")
	encodeCmd.Flags().String("data", "", "File holding header||payload, - for stdin")
}

func runEncode(out io.Writer, cfg *config.Config, opts encodeOptions, data []byte, now time.Time) error {
	src, err := resolveKeySource(cfg, opts.KeyHex)
	if err != nil {
		return err
	}
	epoch, key, err := signingKey(src, opts.Epoch, now)
	if err != nil {
		return err
	}
	root, err := parseNumber(opts.Root)
	if err != nil {
		return fmt.Errorf("invalid --root: %w", err)
	}
	tips, err := parseTips(opts.Tips)
	if err != nil {
		return err
	}

	trailer, err := codecFor(cfg).Encode(fusion.Fields{Epoch: epoch, RootID: root, Tips: tips}, key, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, trailer.String())
	return nil
}
