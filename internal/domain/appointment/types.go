package appointment

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format the portal uses for calendar dates.
const DateLayout = "2006-01-02"

// Session is the authenticated portal context produced by a successful login.
type Session struct {
	Token      string
	Cookies    map[string]string
	UserAgent  string
	AcquiredAt time.Time
}

func (s Session) Valid() bool { return s.Token != "" }

// CookieHeader renders the session cookies as a Cookie header value.
func (s Session) CookieHeader() string {
	if len(s.Cookies) == 0 {
		if s.Token == "" {
			return ""
		}
		return SessionCookie + "=" + s.Token
	}
	parts := make([]string, 0, len(s.Cookies))
	for k, v := range s.Cookies {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "; ")
}

// SessionCookie is the portal cookie carrying the session token.
const SessionCookie = "_yatri_session"

// Slot is a date the portal reports as open for booking.
type Slot struct {
	Date        time.Time
	BusinessDay bool
}

func (s Slot) String() string { return FormatDate(s.Date) }

// Commit is the form submitted to move the held appointment.
type Commit struct {
	FacilityID string
	Date       time.Time
	Time       string
	Form       Form
}

// Form holds the consistency tokens read from the live appointment page.
type Form struct {
	UTF8                  string
	AuthenticityToken     string
	ConfirmedLimitMessage string
	UseConsulateCapacity  string
}

type OutcomeKind string

const (
	OutcomeSuccess  OutcomeKind = "success"
	OutcomeRejected OutcomeKind = "rejected"
	// OutcomeError only appears in the audit trail: the attempt failed before it
	// could be classified.
	OutcomeError OutcomeKind = "error"
)

// Outcome is the classified result of a single reschedule attempt.
type Outcome struct {
	Kind   OutcomeKind
	Date   time.Time
	Time   string
	Reason string
}

func (o Outcome) Claimed() bool { return o.Kind == OutcomeSuccess }

// ParseDate parses YYYY-MM-DD into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// SameDate compares calendar dates, ignoring clock and zone.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
