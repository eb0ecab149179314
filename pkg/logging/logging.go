package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the handler and destinations of the application logger
type Options struct {
	Level      string
	Format     string // text or json
	File       string // rotated log file, empty for none
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup builds the application logger, installs it as the slog default and
// bridges the standard library logger onto it. The returned closer releases
// the log file.
func Setup(service string, opts Options, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := console
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		if console != nil {
			out = io.MultiWriter(console, rotating)
		} else {
			out = rotating
		}
		closer = rotating
	}
	if out == nil {
		out = io.Discard
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	base := slog.New(handler.WithAttrs(attrs))
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base, closer, nil
}

// ParseLevel maps a configured level name onto slog levels
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
