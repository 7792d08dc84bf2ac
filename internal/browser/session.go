// Package browser binds the form abstraction to a Chrome page driven through
// go-rod. A Session owns the Chrome connection; a Page exposes the entry
// form's controls and suggestion lists.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Config holds browser configuration.
type Config struct {
	// DebuggerURL attaches to an already running Chrome, typically the
	// operator's logged-in browser started with --remote-debugging-port.
	DebuggerURL string `yaml:"debugger_url" json:"debugger_url"`
	// Launch is the Chrome binary followed by extra flags, used when no
	// DebuggerURL is set.
	Launch   []string `yaml:"launch" json:"launch"`
	Headless bool     `yaml:"headless" json:"headless"`
	// Stealth injects the go-rod/stealth evasions into new pages.
	Stealth bool `yaml:"stealth" json:"stealth"`
	// ReuseTab attaches to an open tab already showing the target URL
	// instead of opening a new one.
	ReuseTab bool `yaml:"reuse_tab" json:"reuse_tab"`

	ViewportWidth       int `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight      int `yaml:"viewport_height" json:"viewport_height"`
	NavigationTimeoutMs int `yaml:"navigation_timeout_ms" json:"navigation_timeout_ms"`
	// ActionTimeoutMs bounds every single element action.
	ActionTimeoutMs int `yaml:"action_timeout_ms" json:"action_timeout_ms"`
	// TypeDelayMs is the pause between typed characters.
	TypeDelayMs int `yaml:"type_delay_ms" json:"type_delay_ms"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ReuseTab:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
		ActionTimeoutMs:     5000,
		TypeDelayMs:         25,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// ActionTimeout returns the per-action timeout.
func (c Config) ActionTimeout() time.Duration {
	if c.ActionTimeoutMs == 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ActionTimeoutMs) * time.Millisecond
}

// TypeDelay returns the pause between typed characters.
func (c Config) TypeDelay() time.Duration {
	if c.TypeDelayMs < 0 {
		return 0
	}
	return time.Duration(c.TypeDelayMs) * time.Millisecond
}

// Session owns the Chrome connection for one batch run.
type Session struct {
	cfg    Config
	logger *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
	// launched is true when this session started Chrome itself and must
	// close it on shutdown.
	launched bool
}

// NewSession creates a session. A nil logger disables logging.
func NewSession(cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches a new one.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// If we already have a browser, verify it's still alive
	if s.browser != nil {
		if _, err := s.detached().Version(); err == nil {
			return nil
		}
		s.logger.Warn("Stale browser connection detected, reconnecting")
		_ = s.detached().Close()
		s.browser = nil
		s.controlURL = ""
	}

	controlURL := s.cfg.DebuggerURL
	launched := false
	if controlURL != "" && !strings.HasPrefix(controlURL, "ws") {
		// An http://host:port endpoint: resolve the websocket URL.
		resolved, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return fmt.Errorf("resolve debugger url %s: %w", controlURL, err)
		}
		controlURL = resolved
	}

	if controlURL == "" {
		l := launcher.New().Headless(s.cfg.Headless)
		if len(s.cfg.Launch) > 0 {
			l = l.Bin(s.cfg.Launch[0])
			for _, rawFlag := range s.cfg.Launch[1:] {
				flagStr := strings.TrimLeft(rawFlag, "-")
				name, val, hasVal := strings.Cut(flagStr, "=")
				if hasVal {
					l = l.Set(flags.Flag(name), val)
				} else {
					l = l.Set(flags.Flag(name))
				}
			}
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
		launched = true
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	s.browser = b
	s.controlURL = controlURL
	s.launched = launched
	s.logger.Info("Browser connected", zap.String("control_url", controlURL), zap.Bool("launched", launched))
	return nil
}

// ControlURL returns the WebSocket debugger URL.
func (s *Session) ControlURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlURL
}

// OpenPage returns a page showing url. With ReuseTab an already open tab
// whose URL starts with url is used as is, keeping the operator's login and
// any state the page holds.
func (s *Session) OpenPage(ctx context.Context, url string) (*rod.Page, error) {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()
	if b == nil {
		return nil, errors.New("browser not connected")
	}

	if s.cfg.ReuseTab {
		if page, ok := findTab(b, url); ok {
			s.logger.Info("Reusing open tab", zap.String("url", url), zap.String("target_id", string(page.TargetID)))
			return page.Context(ctx), nil
		}
	}

	var (
		page *rod.Page
		err  error
	)
	if s.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.GetViewportWidth(),
		Height:            s.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.logger.Warn("Failed to set viewport", zap.Error(err))
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout())
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.logger.Warn("Page load not confirmed", zap.String("url", url), zap.Error(err))
	}
	s.logger.Info("Page opened", zap.String("url", url), zap.Bool("stealth", s.cfg.Stealth))
	return page.Context(ctx), nil
}

func findTab(b *rod.Browser, url string) (*rod.Page, bool) {
	pages, err := b.Pages()
	if err != nil {
		return nil, false
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.URL, url) {
			return p, true
		}
	}
	return nil, false
}

// Shutdown closes Chrome when this session launched it. An attached
// browser is only disconnected from.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}
	var err error
	if s.launched {
		err = s.detached().Close()
	}
	s.browser = nil
	s.controlURL = ""
	return err
}

// detached returns the browser unbound from the Start context, which is
// usually cancelled by the time the session shuts down.
func (s *Session) detached() *rod.Browser {
	return s.browser.Context(context.Background())
}
