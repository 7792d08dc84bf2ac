package config

import "manifestfill/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level,omitempty"`           // debug, info, warn, error
	Format     string          `yaml:"format" json:"format,omitempty"`         // json, console
	File       string          `yaml:"file" json:"file,omitempty"`             // optional copy of every entry
	Categories map[string]bool `yaml:"categories" json:"categories,omitempty"` // Per-category toggles
}

// Options converts the section for logging.New. Categories not listed are
// enabled.
func (c *LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
}
