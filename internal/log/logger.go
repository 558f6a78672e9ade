package log

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures NewLogger.
type Options struct {
	// Writer receives human-readable text logs. Defaults to os.Stderr.
	Writer io.Writer

	// Verbose sets the level to Debug; otherwise Info.
	Verbose bool

	// File, when non-empty, additionally receives JSON logs with rotation.
	File string

	// MaxSizeMB is the size at which File is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// MaxAgeDays removes rotated files older than this many days. 0 keeps them.
	MaxAgeDays int
}

// NewLogger creates a sanitizing logger. The returned io.Closer releases
// the log file and must be closed on shutdown; it is a no-op without File.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := levelFor(opts.Verbose)
	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})

	if opts.File == "" {
		return slog.New(NewSecureHandler(textHandler)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	jsonHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: level})

	handler := NewSecureHandler(fanoutHandler{textHandler, jsonHandler})
	return slog.New(handler), rotator, nil
}

// NewSecureLogger creates a text logger with secure handling.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(handler))
}

// NewSecureJSONLogger creates a JSON logger with secure handling.
// Useful for structured log aggregation.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(verbose)})
	return slog.New(NewSecureHandler(handler))
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
