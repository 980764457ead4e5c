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
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <trailer-hex>",
	Short: "Verify a trailer and print its fields",
	Long: `Verify a trailer's magic, checksum and MAC against the bytes in --data
and print the decoded fields.

Example:
  primefusion decode cf0bcafe1234561700f1 --key 01010101010101010101010101010101 --data body.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyHex, _ := cmd.Flags().GetString("key")
		dataPath, _ := cmd.Flags().GetString("data")

		data, err := readInput(dataPath, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read data: %w", err)
		}
		return runDecode(cmd.OutOrStdout(), configFromContext(cmd), args[0], keyHex, data, time.Now())
	},
}

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <trailer-hex>",
	Short: "Check a trailer's structure and checksum without a key",
	Long: `Check magic and CRC-8 and print the fields. The MAC is not verified,
so the output is not authenticated.

Example:
  primefusion inspect cf0bcafe1234561700f1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), configFromContext(cmd), args[0])
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().String("key", "", "Hex session key (default: from config)")
	decodeCmd.Flags().String("data", "", "File holding header||payload, - for stdin")

	rootCmd.AddCommand(inspectCmd)
}

func runDecode(out io.Writer, cfg *config.Config, trailerHex, keyHex string, data []byte, now time.Time) error {
	raw, err := parseTrailerHex(trailerHex)
	if err != nil {
		return err
	}
	codec := codecFor(cfg)

	// The epoch selects the key, so peek before verifying.
	peek, err := codec.Inspect(raw)
	if err != nil {
		return err
	}
	src, err := resolveKeySource(cfg, keyHex)
	if err != nil {
		return err
	}
	key, err := src.DecodeKey(now, peek.Epoch)
	if err != nil {
		return err
	}

	fields, err := codec.Decode(raw, key, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, formatFields(fields))
	return nil
}

func runInspect(out io.Writer, cfg *config.Config, trailerHex string) error {
	raw, err := parseTrailerHex(trailerHex)
	if err != nil {
		return err
	}
	fields, err := codecFor(cfg).Inspect(raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (checksum ok, MAC not verified)\n", formatFields(fields))
	return nil
}
