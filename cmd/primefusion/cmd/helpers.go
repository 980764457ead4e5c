/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ssargent/primefusion/pkg/config"
	"github.com/ssargent/primefusion/pkg/fusion"
	"github.com/ssargent/primefusion/pkg/sessionkey"
	"github.com/ssargent/primefusion/pkg/store"
)

// keyOptions selects the session key for a command.
type keyOptions struct {
	// KeyHex overrides the configured key source with a static key.
	KeyHex string
	// Epoch is "auto" or an explicit epoch number.
	Epoch string
}

// resolveKeySource returns a static source for keyHex, else the configured one.
func resolveKeySource(cfg *config.Config, keyHex string) (sessionkey.Source, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(strings.TrimPrefix(keyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("--key must be hex: %w", err)
		}
		src, err := sessionkey.NewStatic(key)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	src, err := cfg.KeySource()
	if err != nil {
		return nil, fmt.Errorf("%w (pass --key or run 'primefusion init')", err)
	}
	return src, nil
}

// signingKey returns the epoch and key to encode with at now.
func signingKey(src sessionkey.Source, epochFlag string, now time.Time) (int, []byte, error) {
	if epochFlag == "" || epochFlag == "auto" {
		return src.EncodeKey(now)
	}
	epoch, err := parseNumber(epochFlag)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid --epoch: %w", err)
	}
	key, err := src.DecodeKey(now, epoch)
	if err != nil {
		return 0, nil, err
	}
	return epoch, key, nil
}

// parseNumber accepts decimal or 0x-prefixed hex.
func parseNumber(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func parseTips(values []string) ([2]int, error) {
	var tips [2]int
	if len(values) == 0 {
		return tips, nil
	}
	if len(values) != 2 {
		return tips, fmt.Errorf("--tips takes exactly two values, got %d", len(values))
	}
	for i, v := range values {
		n, err := parseNumber(v)
		if err != nil {
			return tips, fmt.Errorf("invalid tip %q: %w", v, err)
		}
		tips[i] = n
	}
	return tips, nil
}

// readInput reads path, "-" for stdin. An empty path yields no data.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(path)
	}
}

func parseTrailerHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("trailer must be hex: %w", err)
	}
	return raw, nil
}

func formatFields(f fusion.Fields) string {
	return fmt.Sprintf("epoch=%d root=0x%04x tips=0x%03x,0x%03x", f.Epoch, f.RootID, f.Tips[0], f.Tips[1])
}

func codecFor(cfg *config.Config) *fusion.TrailerCodec {
	return &fusion.TrailerCodec{StrictTips: cfg.Fusion.StrictTips}
}

func openJournal(cfg *config.Config) (*store.Journal, error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container not initialized")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return container.GetStoreOpener().OpenJournal(cfg.DataDir)
}
