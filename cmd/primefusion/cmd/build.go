/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ssargent/primefusion/pkg/beacon"
	"github.com/ssargent/primefusion/pkg/config"
	"github.com/ssargent/primefusion/pkg/logging"
)

type buildOptions struct {
	keyOptions
	Payload    []byte
	JSONHeader string
	HeaderFile string
	Root       string
	Tips       []string
	Tags       []string
	NoFusion   bool
	DryRun     bool
}

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a signed beacon and store it in the journal",
	Long: `Build a beacon from a payload and an optional JSON header, append the
Prime-Fusion trailer and store the framed beacon in the journal.

With --dry-run the framed beacon is printed as hex and nothing is stored.

Examples:
  primefusion build --payload reading.bin --json-header '{"type":"telemetry"}' --root 0xCAFE --tips 1,2
  echo hello | primefusion build --payload - --tag demo --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := buildOptions{}
		opts.KeyHex, _ = cmd.Flags().GetString("key")
		opts.Epoch, _ = cmd.Flags().GetString("epoch")
		opts.JSONHeader, _ = cmd.Flags().GetString("json-header")
		opts.HeaderFile, _ = cmd.Flags().GetString("header-file")
		opts.Root, _ = cmd.Flags().GetString("root")
		opts.Tips, _ = cmd.Flags().GetStringSlice("tips")
		opts.Tags, _ = cmd.Flags().GetStringArray("tag")
		opts.NoFusion, _ = cmd.Flags().GetBool("no-fusion")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

		payloadPath, _ := cmd.Flags().GetString("payload")
		payload, err := readInput(payloadPath, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read payload: %w", err)
		}
		opts.Payload = payload

		return runBuild(cmd.Context(), cmd.OutOrStdout(), configFromContext(cmd), opts, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().String("payload", "", "Payload file, - for stdin")
	buildCmd.Flags().String("json-header", "", "Header as a JSON object")
	buildCmd.Flags().String("header-file", "", "File holding the header JSON object")
	buildCmd.MarkFlagsMutuallyExclusive("json-header", "header-file")
	buildCmd.Flags().String("key", "", "Hex session key (default: from config)")
	buildCmd.Flags().String("epoch", "auto", "Epoch 0-255, or auto for the current second")
	buildCmd.Flags().String("root", "0", "Root ID 0-0xFFFF")
	buildCmd.Flags().StringSlice("tips", nil, "Two tip IDs (repeat the flag or comma separate)")
	buildCmd.Flags().StringArray("tag", nil, "Tag carried in the header (repeatable)")
	buildCmd.Flags().Bool("no-fusion", false, "Frame the beacon without a trailer")
	buildCmd.Flags().Bool("dry-run", false, "Print the framed beacon as hex instead of storing it")
}

func runBuild(ctx context.Context, out io.Writer, cfg *config.Config, opts buildOptions, now time.Time) error {
	header, err := loadHeader(opts.JSONHeader, opts.HeaderFile)
	if err != nil {
		return err
	}

	builder := &beacon.Builder{
		Payload: opts.Payload,
		Header:  header,
		Tags:    opts.Tags,
		Codec:   codecFor(cfg),
	}

	if !opts.NoFusion {
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
		builder.Fusion = &beacon.FusionParams{Epoch: epoch, RootID: root, Tips: tips, SessionKey: key}
	}

	if opts.DryRun {
		built, err := builder.Build()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, hex.EncodeToString(built.Raw))
		return nil
	}

	journal, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()

	ids, err := beacon.NewSender(journal).Send(ctx, nil, builder)
	if err != nil {
		return err
	}
	logging.GetLoggerFromContext(ctx).WithFields(log.Fields{
		"id":       ids[0],
		"data_dir": cfg.DataDir,
	}).Debug("beacon stored")

	fmt.Fprintln(out, ids[0])
	return nil
}

func loadHeader(jsonHeader, headerFile string) (map[string]any, error) {
	raw := []byte(jsonHeader)
	if headerFile != "" {
		data, err := os.ReadFile(headerFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read header file: %w", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var header map[string]any
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("header must be a JSON object: %w", err)
	}
	return header, nil
}
