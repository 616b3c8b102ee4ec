// Package browser drives Chrome through the DevTools protocol for the parts of
// the portal that only work in a real browser: login and the reschedule form.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

type Config struct {
	Headless bool
	// RemoteURL is a DevTools websocket URL of an already running Chrome.
	RemoteURL  string
	ChromePath string
	// AppointmentURL is loaded to read the reschedule form tokens.
	AppointmentURL string
}

type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	cfg         Config
}

// New starts (or attaches to) a browser. Close releases it.
func New(parent context.Context, cfg Config) (*Chrome, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, cfg.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(1280, 900),
		)
		if cfg.ChromePath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, opts...)
	}
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug().Msgf("chromedp: "+format, args...)
	}))
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	log.Info().Bool("remote", cfg.RemoteURL != "").Bool("headless", cfg.Headless).Msg("browser started")
	return &Chrome{ctx: ctx, cancel: cancel, allocCancel: allocCancel, cfg: cfg}, nil
}

func (c *Chrome) Close() {
	c.cancel()
	c.allocCancel()
}

// run executes actions on the browser tab, stopping early when ctx is done.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := c.run(waitCtx, chromedp.WaitReady(selector, chromedp.BySearch))
	return waitError(ctx, selector, err)
}

// waitError maps an elapsed wait to ErrTimedOut while leaving a cancelled
// caller context untouched.
func waitError(parent context.Context, selector string, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("wait for %s: %w", selector, internaltypes.ErrTimedOut)
	}
	return fmt.Errorf("wait for %s: %w", selector, err)
}

func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text, chromedp.BySearch))
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.BySearch))
}

func (c *Chrome) Cookies(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			out[ck.Name] = ck.Value
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return out, nil
}

func (c *Chrome) Evaluate(ctx context.Context, js string, out any) error {
	return c.run(ctx, chromedp.Evaluate(js, out))
}

func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, err
	}
	return buf, nil
}

// readFormJS collects the hidden inputs the commit must echo back; a missing
// input reads as null.
const readFormJS = `(() => {
  const v = n => { const e = document.querySelector('input[name="' + n + '"]'); return e ? e.value : null; };
  return {
    utf8: v("utf8"),
    authenticity_token: v("authenticity_token"),
    confirmed_limit_message: v("confirmed_limit_message"),
    use_consulate_appointment_capacity: v("use_consulate_appointment_capacity"),
  };
})()`

type formValues struct {
	UTF8                  *string `json:"utf8"`
	AuthenticityToken     *string `json:"authenticity_token"`
	ConfirmedLimitMessage *string `json:"confirmed_limit_message"`
	UseConsulateCapacity  *string `json:"use_consulate_appointment_capacity"`
}

// AppointmentForm loads the appointment page and reads the form tokens from it.
func (c *Chrome) AppointmentForm(ctx context.Context) (appointment.Form, error) {
	if c.cfg.AppointmentURL == "" {
		return appointment.Form{}, errors.New("appointment url not configured")
	}
	var (
		location string
		vals     formValues
	)
	err := c.run(ctx,
		chromedp.Navigate(c.cfg.AppointmentURL),
		chromedp.Location(&location),
		chromedp.Evaluate(readFormJS, &vals),
	)
	if err != nil {
		if ctx.Err() != nil {
			return appointment.Form{}, err
		}
		return appointment.Form{}, fmt.Errorf("load appointment form: %w: %w", internaltypes.ErrNetwork, err)
	}
	if strings.Contains(location, "sign_in") {
		return appointment.Form{}, fmt.Errorf("appointment page redirected to login: %w", internaltypes.ErrUnauthorized)
	}
	return vals.form()
}

func (v formValues) form() (appointment.Form, error) {
	if v.AuthenticityToken == nil || *v.AuthenticityToken == "" {
		return appointment.Form{}, fmt.Errorf("appointment form authenticity_token: %w", internaltypes.ErrNotFound)
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return appointment.Form{
		UTF8:                  deref(v.UTF8),
		AuthenticityToken:     *v.AuthenticityToken,
		ConfirmedLimitMessage: deref(v.ConfirmedLimitMessage),
		UseConsulateCapacity:  deref(v.UseConsulateCapacity),
	}, nil
}
