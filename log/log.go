// Package log builds the slog loggers used by hostbridge and replays log
// records that wasm guests send over the wire.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler New builds.
type Format string

const (
	// FormatText selects slog.TextHandler.
	FormatText Format = "text"
	// FormatJSON selects slog.JSONHandler.
	FormatJSON Format = "json"
)

// Option configures New.
type Option func(*config)

type config struct {
	level     slog.Level
	format    Format
	writer    io.Writer
	addSource bool
}

func defaultConfig() config {
	return config{
		level:  slog.LevelInfo,
		format: FormatText,
		writer: os.Stderr,
	}
}

// WithLevel sets the minimum level to report.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithFormat sets the output format (default: text).
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriter sets the destination (default: os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) Option {
	return func(c *config) {
		c.addSource = enabled
	}
}

// New creates a logger with the given options.
func New(opts ...Option) *slog.Logger {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     cfg.level,
		AddSource: cfg.addSource,
	}
	if cfg.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(cfg.writer, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(cfg.writer, handlerOpts))
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parsing log level: %w", err)
	}
	return level, nil
}

// ParseFormat parses "text" or "json". The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}
