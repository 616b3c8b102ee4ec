package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/infrastructure/crypto"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "visasched dev")
}

func TestKeysCmd(t *testing.T) {
	out, err := execute(t, "", "keys")
	require.NoError(t, err)
	key := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "export CRED_ENC_KEY="))
	_, err = crypto.ParseKey(key)
	assert.NoError(t, err)
}

func TestEncryptCmd(t *testing.T) {
	t.Setenv("CRED_ENC_KEY", "")
	t.Setenv("CRED_PASSPHRASE", "pp")

	out, err := execute(t, "hunter2\n", "encrypt")
	require.NoError(t, err)
	sealed := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(sealed, crypto.SealedPrefix))

	plain, err := crypto.Keyring{Passphrase: "pp"}.Reveal(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestEncryptCmd_NoKeyMaterial(t *testing.T) {
	t.Setenv("CRED_ENC_KEY", "")
	t.Setenv("CRED_PASSPHRASE", "")
	_, err := execute(t, "", "encrypt", "secret")
	assert.Error(t, err)
}

func TestPrintAttempts(t *testing.T) {
	d, _ := appointment.ParseDate("2025-10-01")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, printAttempts(root, []appointment.Attempt{{
		ID: "att_1", Date: d, Time: "09:30", Outcome: appointment.OutcomeRejected,
		Reason: "success marker not found", AttemptedAt: time.Now(),
	}}))
	assert.Contains(t, out.String(), "OUTCOME")
	assert.Contains(t, out.String(), "2025-10-01")
	assert.Contains(t, out.String(), "rejected")
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 1", exitError{code: 1}.Error())
}
