// Package config loads the manifestfill YAML configuration: the target page,
// how to reach Chrome, the form selectors, sentinel values and every wait the
// resolver, confirmer and driver use.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"manifestfill/internal/browser"
	"manifestfill/internal/confirm"
	"manifestfill/internal/driver"
	"manifestfill/internal/manifest"
	"manifestfill/internal/resolver"
)

// DefaultTargetURL is the customs documentation page.
const DefaultTargetURL = "https://iam.lakaut.com.ar/documentacion"

// Config holds all manifestfill configuration.
type Config struct {
	// TargetURL is the page hosting the entry form.
	TargetURL string `yaml:"target_url" json:"target_url"`

	Browser   browser.Config     `yaml:"browser" json:"browser"`
	Selectors browser.Selectors  `yaml:"selectors" json:"selectors"`
	Sentinels manifest.Sentinels `yaml:"sentinels" json:"sentinels"`
	Timings   TimingsConfig      `yaml:"timings" json:"timings"`
	Logging   LoggingConfig      `yaml:"logging" json:"logging"`
	Report    ReportConfig       `yaml:"report" json:"report"`
}

// TimingsConfig holds every wait as a duration string ("300ms", "1.5s").
// Empty or unparsable values fall back to the defaults.
type TimingsConfig struct {
	// ReadyTimeout bounds the wait for the operator to log in and reach
	// the documentation page.
	ReadyTimeout string `yaml:"ready_timeout" json:"ready_timeout"`

	OpenTimeout     string `yaml:"open_timeout" json:"open_timeout"`
	OpenSettle      string `yaml:"open_settle" json:"open_settle"`
	FieldSettle     string `yaml:"field_settle" json:"field_settle"`
	PollInterval    string `yaml:"poll_interval" json:"poll_interval"`
	SnapshotTimeout string `yaml:"snapshot_timeout" json:"snapshot_timeout"`
	// RowTimeout bounds one record, which is always finished even after an
	// interrupt.
	RowTimeout string `yaml:"row_timeout" json:"row_timeout"`

	ListSettle     string `yaml:"list_settle" json:"list_settle"`
	ListWait       string `yaml:"list_wait" json:"list_wait"`
	ListPoll       string `yaml:"list_poll" json:"list_poll"`
	FallbackSettle string `yaml:"fallback_settle" json:"fallback_settle"`

	ButtonTimeout string `yaml:"button_timeout" json:"button_timeout"`
	ButtonPoll    string `yaml:"button_poll" json:"button_poll"`
	ClickSettle   string `yaml:"click_settle" json:"click_settle"`
	KeySettle     string `yaml:"key_settle" json:"key_settle"`
}

// ReportConfig configures the run report.
type ReportConfig struct {
	// Dir receives one report per run, named after the run start time.
	Dir string `yaml:"dir" json:"dir"`
	// Format is yaml or json.
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TargetURL: DefaultTargetURL,
		Browser:   browser.DefaultConfig(),
		Selectors: browser.DefaultSelectors(),
		Sentinels: manifest.DefaultSentinels(),
		Timings: TimingsConfig{
			ReadyTimeout:    "5m",
			OpenTimeout:     "20s",
			OpenSettle:      "400ms",
			FieldSettle:     "200ms",
			PollInterval:    "150ms",
			SnapshotTimeout: "3s",
			RowTimeout:      "2m",
			ListSettle:      "300ms",
			ListWait:        "700ms",
			ListPoll:        "50ms",
			FallbackSettle:  "150ms",
			ButtonTimeout:   "12s",
			ButtonPoll:      "150ms",
			ClickSettle:     "1.5s",
			KeySettle:       "1.2s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Report: ReportConfig{
			Dir:    "reports",
			Format: "yaml",
		},
	}
}

// Load loads configuration from a YAML file over the defaults. A missing file
// yields the defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Return defaults if config file doesn't exist
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MANIFESTFILL_TARGET_URL"); v != "" {
		c.TargetURL = v
	}
	if v := os.Getenv("MANIFESTFILL_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("MANIFESTFILL_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("MANIFESTFILL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.TargetURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("target_url must be an absolute http(s) URL, got %q", c.TargetURL))
	}
	if missing := c.Selectors.Missing(); len(missing) > 0 {
		errs = append(errs, fmt.Errorf("selectors missing: %s", strings.Join(missing, ", ")))
	}
	if c.Sentinels.UnknownCode == "" || len(c.Sentinels.OtherTokens) == 0 {
		errs = append(errs, errors.New("sentinels need unknown_code and at least one other_token"))
	}
	for name, v := range c.Timings.values() {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("timings.%s: invalid duration %q", name, v))
		}
	}
	switch strings.ToLower(c.Report.Format) {
	case "", "yaml", "json":
	default:
		errs = append(errs, fmt.Errorf("report.format must be yaml or json, got %q", c.Report.Format))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ResolverConfig returns the field resolver settings.
func (c *Config) ResolverConfig() resolver.Config {
	d := resolver.DefaultConfig()
	t := c.Timings
	return resolver.Config{
		Sentinels:      c.Sentinels,
		ListSettle:     duration(t.ListSettle, d.ListSettle),
		ListWait:       duration(t.ListWait, d.ListWait),
		PollInterval:   duration(t.ListPoll, d.PollInterval),
		FallbackSettle: duration(t.FallbackSettle, d.FallbackSettle),
	}
}

// ConfirmConfig returns the submission confirmer settings.
func (c *Config) ConfirmConfig() confirm.Config {
	d := confirm.DefaultConfig()
	t := c.Timings
	return confirm.Config{
		ButtonTimeout:  duration(t.ButtonTimeout, d.ButtonTimeout),
		PollInterval:   duration(t.ButtonPoll, d.PollInterval),
		ClickSettle:    duration(t.ClickSettle, d.ClickSettle),
		FallbackSettle: duration(t.KeySettle, d.FallbackSettle),
	}
}

// DriverConfig returns the row driver settings.
func (c *Config) DriverConfig() driver.Config {
	d := driver.DefaultConfig()
	t := c.Timings
	return driver.Config{
		Sentinels:       c.Sentinels,
		OpenTimeout:     duration(t.OpenTimeout, d.OpenTimeout),
		OpenSettle:      duration(t.OpenSettle, d.OpenSettle),
		FieldSettle:     duration(t.FieldSettle, d.FieldSettle),
		PollInterval:    duration(t.PollInterval, d.PollInterval),
		SnapshotTimeout: duration(t.SnapshotTimeout, d.SnapshotTimeout),
		RowTimeout:      duration(t.RowTimeout, d.RowTimeout),
	}
}

// GetReadyTimeout returns the login wait as a time.Duration.
func (c *Config) GetReadyTimeout() time.Duration {
	return duration(c.Timings.ReadyTimeout, 5*time.Minute)
}

// ReportPath returns where the report of a run started at started is written.
func (c *Config) ReportPath(started time.Time) string {
	ext := ".yaml"
	if strings.EqualFold(c.Report.Format, "json") {
		ext = ".json"
	}
	dir := c.Report.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "run-"+started.UTC().Format("20060102T150405Z")+ext)
}

func (t TimingsConfig) values() map[string]string {
	return map[string]string{
		"ready_timeout":    t.ReadyTimeout,
		"open_timeout":     t.OpenTimeout,
		"open_settle":      t.OpenSettle,
		"field_settle":     t.FieldSettle,
		"poll_interval":    t.PollInterval,
		"snapshot_timeout": t.SnapshotTimeout,
		"row_timeout":      t.RowTimeout,
		"list_settle":      t.ListSettle,
		"list_wait":        t.ListWait,
		"list_poll":        t.ListPoll,
		"fallback_settle":  t.FallbackSettle,
		"button_timeout":   t.ButtonTimeout,
		"button_poll":      t.ButtonPoll,
		"click_settle":     t.ClickSettle,
		"key_settle":       t.KeySettle,
	}
}

func duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
