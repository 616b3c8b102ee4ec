package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visa-scheduler/internal/application/scheduler"
	"github.com/example/visa-scheduler/internal/domain/appointment"
)

type staticStatus scheduler.Status

func (s staticStatus) Status() scheduler.Status { return scheduler.Status(s) }

type fakeAttempts struct {
	list []appointment.Attempt
	err  error
	n    int
}

func (f *fakeAttempts) Record(context.Context, appointment.Attempt) error { return nil }

func (f *fakeAttempts) ListRecent(_ context.Context, limit int) ([]appointment.Attempt, error) {
	f.n = limit
	return f.list, f.err
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, New(":0", staticStatus{}, nil).Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStatus(t *testing.T) {
	st := staticStatus{State: scheduler.StatePolling, Target: "2025-11-05", ConsecutiveFailures: 2, MaxFailures: 6}
	rec := get(t, New(":0", st, nil).Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "polling", got["state"])
	assert.Equal(t, "2025-11-05", got["target"])
	assert.EqualValues(t, 2, got["consecutive_failures"])
}

func TestAttempts(t *testing.T) {
	d, _ := appointment.ParseDate("2025-10-01")
	fa := &fakeAttempts{list: []appointment.Attempt{{
		ID: "att_1", Date: d, Time: "09:30", Outcome: appointment.OutcomeSuccess,
		AttemptedAt: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
	}}}
	h := New(":0", staticStatus{}, fa).Handler()

	rec := get(t, h, "/attempts?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, fa.n)
	var got []attemptView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2025-10-01", got[0].Date)
	assert.Equal(t, "success", got[0].Outcome)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/attempts?limit=0").Code)

	fa.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/attempts").Code)
}

func TestAttempts_NoStore(t *testing.T) {
	rec := get(t, New(":0", staticStatus{}, nil).Handler(), "/attempts")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(t, New(":0", staticStatus{}, nil).Handler(), "/credentials").Code)
}
