package usecases

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

var testSession = appointment.Session{Token: "tok"}

func TestPoll_RetriesTransientNetworkErrors(t *testing.T) {
	d, _ := appointment.ParseDate("2025-10-01")
	p := &fakePortal{
		dates:    []appointment.Slot{{Date: d}},
		dateErrs: []error{fmt.Errorf("dial: %w", internaltypes.ErrNetwork), fmt.Errorf("reset: %w", internaltypes.ErrNetwork)},
	}
	u := PollSlots{Portal: p, RetryWindow: time.Second, RetryInterval: time.Millisecond}

	got, err := u.Poll(context.Background(), testSession)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, p.dateCalls)
}

func TestPoll_AuthErrorIsNotRetried(t *testing.T) {
	p := &fakePortal{dateErrs: []error{fmt.Errorf("dates: %w", internaltypes.ErrUnauthorized)}}
	u := PollSlots{Portal: p, RetryWindow: time.Second, RetryInterval: time.Millisecond}

	_, err := u.Poll(context.Background(), testSession)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internaltypes.ErrUnauthorized))
	assert.Equal(t, 1, p.dateCalls)
}

func TestPoll_GivesUpAfterRetryWindow(t *testing.T) {
	errs := make([]error, 1000)
	for i := range errs {
		errs[i] = fmt.Errorf("dial: %w", internaltypes.ErrNetwork)
	}
	p := &fakePortal{dateErrs: errs}
	u := PollSlots{Portal: p, RetryWindow: 30 * time.Millisecond, RetryInterval: 5 * time.Millisecond}

	_, err := u.Poll(context.Background(), testSession)
	require.Error(t, err)
	assert.True(t, errors.Is(err, internaltypes.ErrNetwork))
	assert.Greater(t, p.dateCalls, 1)
	assert.Less(t, p.dateCalls, 1000)
}

func TestPoll_NoRetryWindowCallsOnce(t *testing.T) {
	p := &fakePortal{dateErrs: []error{internaltypes.ErrNetwork}}
	_, err := PollSlots{Portal: p}.Poll(context.Background(), testSession)
	require.Error(t, err)
	assert.Equal(t, 1, p.dateCalls)
}

func TestCheckAvailability(t *testing.T) {
	d1, _ := appointment.ParseDate("2025-10-01")
	d2, _ := appointment.ParseDate("2025-12-01")
	target, _ := appointment.ParseDate("2025-11-05")
	p := &fakePortal{dates: []appointment.Slot{{Date: d2}, {Date: d1}}}

	got, err := CheckAvailability{Poller: PollSlots{Portal: p}}.Execute(context.Background(), testSession, appointment.Criteria{Target: target})
	require.NoError(t, err)
	assert.True(t, got.Eligible)
	assert.Equal(t, "2025-10-01", got.Candidate.String())

	_, err = CheckAvailability{Poller: PollSlots{Portal: p}}.Execute(context.Background(), appointment.Session{}, appointment.Criteria{Target: target})
	assert.Error(t, err)
}
