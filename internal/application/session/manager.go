// Package session owns the authenticated portal context: it logs in through a
// browser, extracts the session cookie and recognises expired sessions.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

// Browser is the subset of browser automation the login flow needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector is present or timeout elapses
	// (internaltypes.ErrTimedOut).
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Cookies(ctx context.Context) (map[string]string, error)
	Evaluate(ctx context.Context, js string, out any) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Login page selectors.
const (
	SelectorEmail    = "#user_email"
	SelectorPassword = "#user_password"
	SelectorConsent  = ".icheckbox"
	SelectorSubmit   = "[name=commit]"
	// SelectorSignedIn appears only once the account dashboard has loaded.
	SelectorSignedIn = "//a[contains(text(),'Continue')]"
)

type Config struct {
	SignInURL   string
	Username    string
	Password    string
	StepTimeout time.Duration
	// StepPause is slept between interactive steps to pace input like a person.
	StepPause     time.Duration
	ScreenshotDir string
}

type Manager struct {
	browser Browser
	cfg     Config

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	current appointment.Session
}

func NewManager(b Browser, cfg Config) *Manager {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 60 * time.Second
	}
	return &Manager{browser: b, cfg: cfg, now: time.Now, sleep: sleepCtx}
}

// Current returns the session in use, if one was ever established.
func (m *Manager) Current() (appointment.Session, bool) {
	return m.current, m.current.Valid()
}

// IsExpired classifies a poll or commit response.
func (m *Manager) IsExpired(status int, body []byte) bool {
	return appointment.IsSessionExpired(status, body)
}

type step struct {
	name     string
	selector string
	act      func(ctx context.Context) error
}

// Establish runs the login flow. On failure the previous session is kept and
// the returned error wraps internaltypes.ErrUnauthorized.
func (m *Manager) Establish(ctx context.Context) (appointment.Session, error) {
	log.Info().Str("url", m.cfg.SignInURL).Msg("session: signing in")
	if err := m.browser.Navigate(ctx, m.cfg.SignInURL); err != nil {
		return appointment.Session{}, m.fail(ctx, "navigate", err)
	}

	steps := []step{
		{"email", SelectorEmail, func(ctx context.Context) error {
			return m.browser.SendKeys(ctx, SelectorEmail, m.cfg.Username)
		}},
		{"password", SelectorPassword, func(ctx context.Context) error {
			return m.browser.SendKeys(ctx, SelectorPassword, m.cfg.Password)
		}},
		{"consent", SelectorConsent, func(ctx context.Context) error {
			return m.browser.Click(ctx, SelectorConsent)
		}},
		{"submit", SelectorSubmit, func(ctx context.Context) error {
			return m.browser.Click(ctx, SelectorSubmit)
		}},
		{"signed-in marker", SelectorSignedIn, nil},
	}
	for _, s := range steps {
		if err := m.browser.WaitFor(ctx, s.selector, m.cfg.StepTimeout); err != nil {
			return appointment.Session{}, m.fail(ctx, s.name, err)
		}
		if s.act == nil {
			continue
		}
		log.Debug().Str("step", s.name).Msg("session: login step")
		if err := s.act(ctx); err != nil {
			return appointment.Session{}, m.fail(ctx, s.name, err)
		}
		if err := m.sleep(ctx, m.cfg.StepPause); err != nil {
			return appointment.Session{}, err
		}
	}

	cookies, err := m.browser.Cookies(ctx)
	if err != nil {
		return appointment.Session{}, m.fail(ctx, "cookies", err)
	}
	token := cookies[appointment.SessionCookie]
	if token == "" {
		return appointment.Session{}, m.fail(ctx, "cookies", fmt.Errorf("%s cookie %w", appointment.SessionCookie, internaltypes.ErrNotFound))
	}
	var ua string
	if err := m.browser.Evaluate(ctx, "navigator.userAgent", &ua); err != nil {
		return appointment.Session{}, m.fail(ctx, "user agent", err)
	}

	m.current = appointment.Session{
		Token:      token,
		Cookies:    cookies,
		UserAgent:  ua,
		AcquiredAt: m.now(),
	}
	log.Info().Time("acquired_at", m.current.AcquiredAt).Msg("session: signed in")
	return m.current, nil
}

func (m *Manager) fail(ctx context.Context, stepName string, err error) error {
	m.captureFailure(ctx, stepName)
	return fmt.Errorf("login step %s: %w: %w", stepName, internaltypes.ErrUnauthorized, err)
}

func (m *Manager) captureFailure(ctx context.Context, stepName string) {
	if m.cfg.ScreenshotDir == "" {
		return
	}
	png, err := m.browser.Screenshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session: screenshot failed")
		return
	}
	if err := os.MkdirAll(m.cfg.ScreenshotDir, 0o755); err != nil {
		log.Warn().Err(err).Msg("session: screenshot dir")
		return
	}
	name := fmt.Sprintf("login-%s-%s.png", stepSlug(stepName), m.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(m.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("session: write screenshot")
		return
	}
	log.Info().Str("path", path).Msg("session: saved failure screenshot")
}

func stepSlug(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == ' ' {
			b[i] = '-'
		}
	}
	return string(b)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
