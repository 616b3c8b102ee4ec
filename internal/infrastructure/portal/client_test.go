package portal

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

var testSession = appointment.Session{
	Token:     "tok",
	Cookies:   map[string]string{appointment.SessionCookie: "tok"},
	UserAgent: "test-agent",
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL,
		CountryCode: "en-ca",
		ScheduleID:  "123",
		FacilityID:  "94",
		Timeout:     2 * time.Second,
	})
}

func TestAvailableDates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/en-ca/niv/schedule/123/appointment/days/94.json", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("appointments[expedite]"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, "_yatri_session=tok", r.Header.Get("Cookie"))
		assert.Contains(t, r.Header.Get("Referer"), "/en-ca/niv/schedule/123")
		_, _ = io.WriteString(w, `[{"date":"2025-10-01","business_day":true},{"date":"2025-10-03","business_day":false}]`)
	})

	slots, err := c.AvailableDates(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "2025-10-01", slots[0].String())
	assert.True(t, slots[0].BusinessDay)
	assert.Equal(t, "2025-10-03", slots[1].String())
}

func TestAvailableDates_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	slots, err := c.AvailableDates(context.Background(), testSession)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAvailableDates_ErrorClasses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, "", internaltypes.ErrUnauthorized},
		{"expired marker", http.StatusOK, "Your Session Expired, please sign in", internaltypes.ErrUnauthorized},
		{"server error", http.StatusBadGateway, "oops", internaltypes.ErrNetwork},
		{"bad json", http.StatusOK, "<html>", internaltypes.ErrNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.AvailableDates(context.Background(), testSession)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAvailableDates_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Config{BaseURL: base, CountryCode: "en-ca", ScheduleID: "1", FacilityID: "2", Timeout: time.Second})
	_, err := c.AvailableDates(context.Background(), testSession)
	assert.ErrorIs(t, err, internaltypes.ErrNetwork)
}

func TestAvailableTimes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/en-ca/niv/schedule/123/appointment/times/94.json", r.URL.Path)
		assert.Equal(t, "2025-10-01", r.URL.Query().Get("date"))
		_, _ = io.WriteString(w, `{"available_times":["09:00","09:30"],"business_times":[]}`)
	})
	d, _ := appointment.ParseDate("2025-10-01")
	times, err := c.AvailableTimes(context.Background(), testSession, d)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, times)
}

func TestCommit(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/en-ca/niv/schedule/123/appointment", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())
		got = r.PostForm
		_, _ = io.WriteString(w, "<p>You have Successfully Scheduled your appointment</p>")
	})
	d, _ := appointment.ParseDate("2025-10-01")

	body, err := c.Commit(context.Background(), testSession, appointment.Commit{
		Date: d,
		Time: "09:30",
		Form: appointment.Form{UTF8: "✓", AuthenticityToken: "csrf", ConfirmedLimitMessage: "1", UseConsulateCapacity: "true"},
	})
	require.NoError(t, err)
	assert.True(t, appointment.IsCommitSuccess(body))
	assert.Equal(t, "csrf", got.Get("authenticity_token"))
	assert.Equal(t, "✓", got.Get("utf8"))
	assert.Equal(t, "94", got.Get("appointments[consulate_appointment][facility_id]"))
	assert.Equal(t, "2025-10-01", got.Get("appointments[consulate_appointment][date]"))
	assert.Equal(t, "09:30", got.Get("appointments[consulate_appointment][time]"))
}

func TestCommit_RejectedPageIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "date no longer available")
	})
	body, err := c.Commit(context.Background(), testSession, appointment.Commit{Time: "09:30"})
	require.NoError(t, err)
	assert.False(t, appointment.IsCommitSuccess(body))
}

func TestCommit_ClientErrorStatus(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusUnprocessableEntity} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, "ActionController::InvalidAuthenticityToken")
		})
		body, err := c.Commit(context.Background(), testSession, appointment.Commit{Time: "09:30"})
		assert.ErrorIs(t, err, internaltypes.ErrNetwork, "status %d", status)
		assert.Nil(t, body)
	}
}

func TestCommit_FollowsRedirect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			http.Redirect(w, r, "/en-ca/niv/schedule/123/instructions", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "<p>You have Successfully Scheduled your appointment</p>")
	})
	body, err := c.Commit(context.Background(), testSession, appointment.Commit{Time: "09:30"})
	require.NoError(t, err)
	assert.True(t, appointment.IsCommitSuccess(body))
}

func TestCommit_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := c.Commit(context.Background(), testSession, appointment.Commit{})
	assert.ErrorIs(t, err, internaltypes.ErrUnauthorized)
}

func TestURLs(t *testing.T) {
	c := New(Config{CountryCode: "en-ca", ScheduleID: "42", FacilityID: "94"})
	assert.Equal(t, "https://ais.usvisa-info.com/en-ca/niv/schedule/42/appointment", c.AppointmentURL())
	assert.Equal(t, "https://ais.usvisa-info.com/en-ca/niv/users/sign_in", c.SignInURL())
}

func TestRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	c.cfg.RequestsPerMinute = 1
	c.limiter = New(c.cfg).limiter

	_, err := c.AvailableDates(context.Background(), testSession)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.AvailableDates(ctx, testSession)
	require.Error(t, err)
}
