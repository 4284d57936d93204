// Package logger builds the slog logger shared by loupe's components.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dshills/loupe/internal/config"
)

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
}

// FromConfig extracts the logger settings from a loaded config.
func FromConfig(cfg config.Config) Config {
	return Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
}

// NewLogger initializes a slog logger. A nil output writes to stderr so log
// lines never mix with review output or the stdio protocol on stdout.
func NewLogger(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level := new(slog.Level)
	name := strings.ToLower(strings.TrimSpace(cfg.Level))
	if name == "warning" {
		name = "warn"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		*level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}
