package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visa-scheduler/internal/infrastructure/crypto"
)

const sampleYAML = `
usvisa:
  username: me@example.com
  password: secret
  schedule_id: "12345678"
  facility_id: "94"
  country_code: en-ca
  my_schedule_date: "2025-11-05"
  not_before: "2025-09-01"
monitor:
  active_windows: "22-6,8-10"
  timezone: UTC
  cooldown: 90s
  heartbeat_cron: "@every 6h"
storage:
  driver: none
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() *Config {
	c := Default()
	c.USVisa.Username = "me@example.com"
	c.USVisa.Password = "secret"
	c.USVisa.ScheduleID = "1"
	c.USVisa.FacilityID = "94"
	c.USVisa.MyScheduleDate = "2025-11-05"
	return c
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "me@example.com", cfg.USVisa.Username)
	assert.Equal(t, "12345678", cfg.USVisa.ScheduleID)
	assert.Equal(t, 90*time.Second, cfg.Monitor.Cooldown)
	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Minute, cfg.Monitor.GateInterval)
	assert.Equal(t, 6, cfg.Monitor.MaxFailures)
	assert.Equal(t, 60*time.Second, cfg.Browser.StepTimeout)

	target, err := cfg.Target()
	require.NoError(t, err)
	assert.Equal(t, "2025-11-05", target.Format("2006-01-02"))
	ws, err := cfg.Windows()
	require.NoError(t, err)
	assert.Equal(t, "22-6,8-10", ws.String())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VISASCHED_USVISA_FACILITY_ID", "95")
	t.Setenv("VISASCHED_MONITOR_MAX_FAILURES", "3")
	t.Setenv("VISASCHED_MONITOR_EXCEPTION_BACKOFF", "45s")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "95", cfg.USVisa.FacilityID)
	assert.Equal(t, 3, cfg.Monitor.MaxFailures)
	assert.Equal(t, 45*time.Second, cfg.Monitor.ExceptionBackoff)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "usvisa:\n  username: x\n"))
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, err.Error(), "usvisa.password")
	assert.Contains(t, err.Error(), "usvisa.my_schedule_date")
}

func TestValidate_Default(t *testing.T) {
	assert.Empty(t, validConfig().Validate())
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad window", func(c *Config) { c.Monitor.ActiveWindows = "25-3" }, "monitor.active_windows"},
		{"bad timezone", func(c *Config) { c.Monitor.Timezone = "Mars/Olympus" }, "monitor.timezone"},
		{"zero cooldown", func(c *Config) { c.Monitor.Cooldown = 0 }, "monitor.cooldown"},
		{"negative jitter", func(c *Config) { c.Monitor.CooldownJitter = -time.Second }, "monitor.cooldown_jitter"},
		{"negative max failures", func(c *Config) { c.Monitor.MaxFailures = -1 }, "monitor.max_failures"},
		{"zero max failures", func(c *Config) { c.Monitor.MaxFailures = 0 }, "monitor.max_failures"},
		{"bad cron", func(c *Config) { c.Monitor.HeartbeatCron = "whenever" }, "monitor.heartbeat_cron"},
		{"not_before after target", func(c *Config) { c.USVisa.NotBefore = "2025-12-01" }, "usvisa.not_before"},
		{"email missing server", func(c *Config) { c.Email.Enabled = true }, "email.smtp_server"},
		{"pushover half set", func(c *Config) { c.Pushover.Token = "t" }, "pushover"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres"; c.Storage.DSN = "" }, "storage.dsn"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			errs := c.Validate()
			require.NotEmpty(t, errs)
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "", ValidationErrors(nil).Error())
	single := ValidationErrors{{Field: "a.b", Value: 1, Message: "is invalid"}}
	assert.Equal(t, "a.b: is invalid (got: 1)", single.Error())
	multi := ValidationErrors{{Field: "f1"}, {Field: "f2"}}
	assert.True(t, strings.HasPrefix(multi.Error(), "2 validation errors"))
}

func TestRevealSecrets(t *testing.T) {
	k := crypto.Keyring{Passphrase: "pp"}
	sealed, err := k.Seal("real-password")
	require.NoError(t, err)

	c := validConfig()
	c.USVisa.Password = sealed
	c.Email.SenderPassword = "plain"
	require.NoError(t, c.RevealSecrets(k))
	assert.Equal(t, "real-password", c.USVisa.Password)
	assert.Equal(t, "plain", c.Email.SenderPassword)
}

func TestKeyringFromEnv(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	t.Setenv("CRED_ENC_KEY", key)
	t.Setenv("CRED_PASSPHRASE", "")

	k, err := KeyringFromEnv()
	require.NoError(t, err)
	assert.Len(t, k.Key, crypto.KeySize)

	t.Setenv("CRED_ENC_KEY", "short")
	_, err = KeyringFromEnv()
	assert.Error(t, err)
}
