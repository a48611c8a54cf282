// Package logger configures structured logging for the homework status bot.
// It builds a log/slog logger with either a JSON handler (production, log
// aggregators) or a colored tint handler (development), optionally mirrored
// into a log file, and provides attribute helpers shared by all packages.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Format selects the log handler.
type Format string

const (
	// FormatJSON writes one JSON object per record.
	FormatJSON Format = "json"
	// FormatText writes colored human-readable records.
	FormatText Format = "text"
)

// ParseLevel parses a string into a slog.Level. Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat parses a string into a Format. Unknown values fall back to text.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}
	return FormatText
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool

	// FilePath, when set, duplicates every record into this file.
	FilePath string
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output:    os.Stdout,
		Level:     slog.LevelInfo,
		Format:    FormatText,
		AddSource: true,
	}
}

// New creates a logger with the given options. The returned closer releases
// the log file, if one was opened; it is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	out := opts.Output

	if opts.FilePath != "" {
		file, err := os.OpenFile(opts.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(opts.Output, file)
		closer = file
	}

	var handler slog.Handler
	switch opts.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			AddSource: opts.AddSource,
			Level:     opts.Level,
		})
	default:
		handler = tint.NewHandler(out, &tint.Options{
			AddSource:   opts.AddSource,
			Level:       opts.Level,
			ReplaceAttr: shortSource,
			TimeFormat:  time.DateTime,
			NoColor:     opts.FilePath != "" || !isTerminal(opts.Output),
		})
	}

	return slog.New(handler), closer, nil
}

// shortSource trims the source file to its base name.
func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
		}
	}
	return a
}

// isTerminal reports whether w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// ATTRIBUTES
// ══════════════════════════════════════════════════════════════════════════════

// Err creates an error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Bot-related logging helpers.
func CycleID(id string) slog.Attr        { return slog.String("cycle_id", id) }
func Timestamp(ts int64) slog.Attr       { return slog.Int64("timestamp", ts) }
func Signature(sig string) slog.Attr     { return slog.String("signature", sig) }
func Component(name string) slog.Attr    { return slog.String("component", name) }
func Interval(d time.Duration) slog.Attr { return slog.Duration("interval", d) }
func Latency(d time.Duration) slog.Attr  { return slog.Duration("latency", d) }
