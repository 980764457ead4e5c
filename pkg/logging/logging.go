// Package logging configures the logrus logger shared by the CLI and the HTTP
// server and carries per-request loggers through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	EnvLogLevel  = "PRIMEFUSION_LOG_LEVEL"
	EnvLogFormat = "PRIMEFUSION_LOG_FORMAT"
)

const (
	TextFormat = "text"
	JSONFormat = "json"
)

// Options selects verbosity and output format.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

type loggerKey struct{}

// Configure applies opts, then any environment overrides, to the standard
// logrus logger and returns it.
func Configure(opts Options) (*log.Logger, error) {
	logger := log.StandardLogger()
	if err := Apply(logger, opts); err != nil {
		return nil, err
	}
	return logger, nil
}

// New returns a fresh logger configured like Configure would.
func New(opts Options) (*log.Logger, error) {
	logger := log.New()
	if err := Apply(logger, opts); err != nil {
		return nil, err
	}
	return logger, nil
}

// Apply configures logger from opts and the environment.
func Apply(logger *log.Logger, opts Options) error {
	applyEnvOverrides(&opts)

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetFormatter(CreateFormatter(opts.Format))
	if opts.Output != nil {
		logger.SetOutput(opts.Output)
	}
	return nil
}

func applyEnvOverrides(opts *Options) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		opts.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		opts.Format = v
	}
}

// ParseLevel maps a level name to logrus. Empty means info.
func ParseLevel(raw string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return log.InfoLevel, nil
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

// CreateFormatter returns the formatter for format; unknown names fall back to text.
func CreateFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case JSONFormat:
		return &log.JSONFormatter{}
	default:
		return &log.TextFormatter{FullTimestamp: true}
	}
}

// SetLoggerToContext sets logger to corresponded context
func SetLoggerToContext(ctx context.Context, logger *log.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLoggerFromContext returns the context logger or the standard logger.
func GetLoggerFromContext(ctx context.Context) *log.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*log.Entry); ok {
		return entry
	}
	return log.NewEntry(log.StandardLogger())
}
