// Package browser is the driver adapter over rod/Chrome. It owns the
// persistent browser context, creates stealth pages, translates driver
// errors into the domain taxonomy, and carries the helper-script injection
// and the attribute selector engine the rest of the service relies on.
package browser

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// UserDataDir is the persistent profile directory the driver owns.
	UserDataDir string

	// Headless toggles headless mode. Default: headful.
	Headless bool

	// ExtraFlags are additional Chrome switches (name without "--", value).
	ExtraFlags map[string]string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the shared browser context. All pages are created against the
// same persistent context; only the session manager mutates the page set.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return NewError(KindDriverGone, "manager is closed")
	}

	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-extensions").
			Set("no-first-run").
			Set("no-default-browser-check").
			Set("disable-infobars")
		if m.cfg.UserDataDir != "" {
			l = l.UserDataDir(m.cfg.UserDataDir)
		}
		for k, v := range m.cfg.ExtraFlags {
			l = l.Set(flags.Flag(flagName(k)), v)
		}

		u, err := l.Launch()
		if err != nil {
			return WrapError(KindDriverGone, err, "launch chrome")
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome",
			"headless", m.cfg.Headless, "user_data_dir", m.cfg.UserDataDir)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return WrapError(KindDriverGone, err, "connect to chrome")
	}
	m.browser = b
	return nil
}

// Connected reports whether the browser context is up.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil && !m.closed
}

// NewPage opens a stealth page on the shared context, starting on about:blank.
// ctx bounds the page's lifetime, not one request; callers scope individual
// operations with their own per-call contexts.
func (m *Manager) NewPage(ctx context.Context) (*Page, error) {
	m.mu.Lock()
	b := m.browser
	closed := m.closed
	m.mu.Unlock()

	if closed || b == nil {
		return nil, NewError(KindDriverGone, "no active browser")
	}

	rp, err := stealth.Page(b)
	if err != nil {
		return nil, Translate(err, "create page")
	}
	return newPage(rp.Context(ctx), m.cfg.Logger), nil
}

// Close shuts down Chrome and the launcher.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true

	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.cfg.Logger.Warn("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}

func flagName(k string) string {
	// launcher.Set takes flag names without the leading dashes.
	for len(k) > 0 && k[0] == '-' {
		k = k[1:]
	}
	return k
}

// NavTimeout bounds a navigation; zero falls back to the default.
func NavTimeout(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
