// Package logging builds the zap logger used across manifestfill and hands
// out one named child logger per category.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, config and batch loading
	CategoryBrowser  Category = "browser"  // Chrome session and page actions
	CategoryResolver Category = "resolver" // Autocomplete resolution
	CategoryConfirm  Category = "confirm"  // Submission escalation
	CategoryDriver   Category = "driver"   // Per-row state machine
	CategoryReport   Category = "report"   // Run report output
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	// File receives a copy of every entry in addition to stderr.
	File       string
	Categories map[string]bool
}

// Logger wraps the root zap logger with per-category switches.
type Logger struct {
	root       *zap.Logger
	categories map[string]bool
}

// New builds a logger from opts. verbose forces debug level.
func New(opts Options, verbose bool) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch strings.ToLower(opts.Format) {
	case "", "json":
		cfg.Encoding = "json"
	case "console", "text":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	level := opts.Level
	if level == "" {
		level = "info"
	}
	if verbose {
		level = "debug"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg.Level = lvl

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	root, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return Wrap(root, opts.Categories), nil
}

// Wrap uses an existing zap logger as root.
func Wrap(root *zap.Logger, categories map[string]bool) *Logger {
	if root == nil {
		root = zap.NewNop()
	}
	return &Logger{root: root, categories: categories}
}

// Enabled reports whether a category logs. Categories not listed are on.
func (l *Logger) Enabled(category Category) bool {
	enabled, exists := l.categories[string(category)]
	return !exists || enabled
}

// For returns the named logger for a category, or a no-op logger when the
// category is switched off.
func (l *Logger) For(category Category) *zap.Logger {
	if !l.Enabled(category) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Root returns the uncategorized logger.
func (l *Logger) Root() *zap.Logger { return l.root }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	err := l.root.Sync()
	// Syncing a terminal stderr fails on some platforms.
	if err != nil && strings.Contains(err.Error(), "/dev/stderr") {
		return nil
	}
	return err
}
