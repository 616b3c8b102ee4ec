package browser

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visa-scheduler/internal/internaltypes"
)

func TestWaitError(t *testing.T) {
	bg := context.Background()
	assert.NoError(t, waitError(bg, "#x", nil))
	assert.ErrorIs(t, waitError(bg, "#x", context.DeadlineExceeded), internaltypes.ErrTimedOut)

	other := errors.New("node detached")
	err := waitError(bg, "#x", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, internaltypes.ErrTimedOut)

	cancelled, cancel := context.WithCancel(bg)
	cancel()
	assert.ErrorIs(t, waitError(cancelled, "#x", context.DeadlineExceeded), context.Canceled)
}

func TestFormValues(t *testing.T) {
	var v formValues
	require.NoError(t, json.Unmarshal([]byte(`{
		"utf8": "✓",
		"authenticity_token": "csrf",
		"confirmed_limit_message": "1",
		"use_consulate_appointment_capacity": null
	}`), &v))

	f, err := v.form()
	require.NoError(t, err)
	assert.Equal(t, "✓", f.UTF8)
	assert.Equal(t, "csrf", f.AuthenticityToken)
	assert.Equal(t, "1", f.ConfirmedLimitMessage)
	assert.Empty(t, f.UseConsulateCapacity)
}

func TestFormValues_MissingToken(t *testing.T) {
	_, err := formValues{}.form()
	assert.ErrorIs(t, err, internaltypes.ErrNotFound)
}
