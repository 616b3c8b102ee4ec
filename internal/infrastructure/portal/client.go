// Package portal talks to the AIS appointment endpoints over plain HTTP using
// the cookies of a browser-established session.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

const DefaultBaseURL = "https://ais.usvisa-info.com"

type Config struct {
	BaseURL     string
	CountryCode string
	ScheduleID  string
	FacilityID  string

	Timeout time.Duration
	// RequestsPerMinute paces every request; zero disables pacing.
	RequestsPerMinute int
}

type Client struct {
	hc      *http.Client
	cfg     Config
	limiter *rate.Limiter
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{
		hc:      &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: lim,
	}
}

func (c *Client) scheduleURL() string {
	return fmt.Sprintf("%s/%s/niv/schedule/%s", c.cfg.BaseURL, c.cfg.CountryCode, c.cfg.ScheduleID)
}

// AppointmentURL is the page holding the reschedule form.
func (c *Client) AppointmentURL() string { return c.scheduleURL() + "/appointment" }

// SignInURL is the portal login page.
func (c *Client) SignInURL() string { return c.cfg.BaseURL + "/en-ca/niv/users/sign_in" }

func (c *Client) datesURL() string {
	return fmt.Sprintf("%s/days/%s.json?appointments[expedite]=false", c.AppointmentURL(), c.cfg.FacilityID)
}

func (c *Client) timesURL(date time.Time) string {
	return fmt.Sprintf("%s/times/%s.json?date=%s&appointments[expedite]=false",
		c.AppointmentURL(), c.cfg.FacilityID, appointment.FormatDate(date))
}

type dateEntry struct {
	Date        string `json:"date"`
	BusinessDay bool   `json:"business_day"`
}

// AvailableDates returns the open dates in the order the portal lists them.
func (c *Client) AvailableDates(ctx context.Context, sess appointment.Session) ([]appointment.Slot, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.datesURL(), sess, c.scheduleURL(), "", nil)
	if err != nil {
		return nil, err
	}
	if err := c.check("dates", status, body); err != nil {
		return nil, err
	}
	var entries []dateEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode dates: %w: %w", internaltypes.ErrNetwork, err)
	}
	slots := make([]appointment.Slot, 0, len(entries))
	for _, e := range entries {
		d, err := appointment.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("decode dates: %w: %w", internaltypes.ErrNetwork, err)
		}
		slots = append(slots, appointment.Slot{Date: d, BusinessDay: e.BusinessDay})
	}
	return slots, nil
}

// AvailableTimes returns the bookable times for date, ascending.
func (c *Client) AvailableTimes(ctx context.Context, sess appointment.Session, date time.Time) ([]string, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.timesURL(date), sess, c.scheduleURL(), "", nil)
	if err != nil {
		return nil, err
	}
	if err := c.check("times", status, body); err != nil {
		return nil, err
	}
	var res struct {
		AvailableTimes []string `json:"available_times"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode times: %w: %w", internaltypes.ErrNetwork, err)
	}
	return res.AvailableTimes, nil
}

// Commit posts the reschedule form and returns the response body for
// classification. Redirects are followed, so only the final status counts.
func (c *Client) Commit(ctx context.Context, sess appointment.Session, cm appointment.Commit) ([]byte, error) {
	form := url.Values{}
	form.Set("utf8", cm.Form.UTF8)
	form.Set("authenticity_token", cm.Form.AuthenticityToken)
	form.Set("confirmed_limit_message", cm.Form.ConfirmedLimitMessage)
	form.Set("use_consulate_appointment_capacity", cm.Form.UseConsulateCapacity)
	facility := cm.FacilityID
	if facility == "" {
		facility = c.cfg.FacilityID
	}
	form.Set("appointments[consulate_appointment][facility_id]", facility)
	form.Set("appointments[consulate_appointment][date]", appointment.FormatDate(cm.Date))
	form.Set("appointments[consulate_appointment][time]", cm.Time)

	status, body, err := c.do(ctx, http.MethodPost, c.AppointmentURL(), sess, c.AppointmentURL(),
		"application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return nil, err
	}
	if err := c.check("commit", status, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) check(op string, status int, body []byte) error {
	if appointment.IsSessionExpired(status, body) {
		return fmt.Errorf("%s (status=%d): %w", op, status, internaltypes.ErrUnauthorized)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("%s (status=%d): %w", op, status, internaltypes.ErrNetwork)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, sess appointment.Session, referer, contentType string, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	if sess.UserAgent != "" {
		req.Header.Set("User-Agent", sess.UserAgent)
	}
	req.Header.Set("Referer", referer)
	if method == http.MethodGet {
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		req.Header.Set("Accept", "application/json")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie := sess.CookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, fmt.Errorf("%s %s: %w: %w", method, req.URL.Path, internaltypes.ErrNetwork, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("read %s: %w: %w", req.URL.Path, internaltypes.ErrNetwork, err)
	}
	return res.StatusCode, b, nil
}
