package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

func ValidStorageDrivers() []string {
	return []string{"none", "sqlite", "postgres"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, c.validateUSVisa()...)
	errs = append(errs, c.validateMonitor()...)
	errs = append(errs, c.validateBrowser()...)
	errs = append(errs, c.validateNotify()...)
	errs = append(errs, c.validateStorage()...)
	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	return errs
}

func required(field, value string) []ValidationError {
	if strings.TrimSpace(value) == "" {
		return []ValidationError{{Field: field, Value: value, Message: "is required"}}
	}
	return nil
}

func (c *Config) validateUSVisa() []ValidationError {
	var errs []ValidationError
	errs = append(errs, required("usvisa.username", c.USVisa.Username)...)
	errs = append(errs, required("usvisa.password", c.USVisa.Password)...)
	errs = append(errs, required("usvisa.schedule_id", c.USVisa.ScheduleID)...)
	errs = append(errs, required("usvisa.facility_id", c.USVisa.FacilityID)...)
	errs = append(errs, required("usvisa.country_code", c.USVisa.CountryCode)...)

	target, err := c.Target()
	if err != nil {
		errs = append(errs, ValidationError{Field: "usvisa.my_schedule_date", Value: c.USVisa.MyScheduleDate, Message: "must be a YYYY-MM-DD date"})
	}
	nb, err := c.NotBefore()
	switch {
	case err != nil:
		errs = append(errs, ValidationError{Field: "usvisa.not_before", Value: c.USVisa.NotBefore, Message: "must be a YYYY-MM-DD date"})
	case !nb.IsZero() && !target.IsZero() && !nb.Before(target):
		errs = append(errs, ValidationError{Field: "usvisa.not_before", Value: c.USVisa.NotBefore, Message: "must be before usvisa.my_schedule_date"})
	}
	return errs
}

func (c *Config) validateMonitor() []ValidationError {
	var errs []ValidationError
	m := c.Monitor
	if _, err := c.Windows(); err != nil {
		errs = append(errs, ValidationError{Field: "monitor.active_windows", Value: m.ActiveWindows, Message: err.Error()})
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, ValidationError{Field: "monitor.timezone", Value: m.Timezone, Message: "unknown time zone"})
	}
	positive := []struct {
		field string
		d     time.Duration
	}{
		{"monitor.gate_interval", m.GateInterval},
		{"monitor.cooldown", m.Cooldown},
		{"monitor.exception_backoff", m.ExceptionBackoff},
		{"monitor.request_timeout", m.RequestTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, ValidationError{Field: p.field, Value: p.d, Message: "must be positive"})
		}
	}
	nonNegative := []struct {
		field string
		d     time.Duration
	}{
		{"monitor.cooldown_jitter", m.CooldownJitter},
		{"monitor.step_delay", m.StepDelay},
		{"monitor.poll_retry_window", m.PollRetryWindow},
		{"monitor.poll_retry_interval", m.PollRetryInterval},
	}
	for _, p := range nonNegative {
		if p.d < 0 {
			errs = append(errs, ValidationError{Field: p.field, Value: p.d, Message: "must be non-negative"})
		}
	}
	if m.MaxFailures < 1 {
		errs = append(errs, ValidationError{Field: "monitor.max_failures", Value: m.MaxFailures, Message: "must be at least 1"})
	}
	if m.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "monitor.requests_per_minute", Value: m.RequestsPerMinute, Message: "must be non-negative"})
	}
	if m.HeartbeatCron != "" {
		if _, err := cron.ParseStandard(m.HeartbeatCron); err != nil {
			errs = append(errs, ValidationError{Field: "monitor.heartbeat_cron", Value: m.HeartbeatCron, Message: err.Error()})
		}
	}
	return errs
}

func (c *Config) validateBrowser() []ValidationError {
	if c.Browser.StepTimeout <= 0 {
		return []ValidationError{{Field: "browser.step_timeout", Value: c.Browser.StepTimeout, Message: "must be positive"}}
	}
	return nil
}

func (c *Config) validateNotify() []ValidationError {
	var errs []ValidationError
	if c.Email.Enabled {
		errs = append(errs, required("email.smtp_server", c.Email.SMTPServer)...)
		errs = append(errs, required("email.sender_email", c.Email.SenderEmail)...)
		errs = append(errs, required("email.receiver_email", c.Email.ReceiverEmail)...)
		if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
			errs = append(errs, ValidationError{Field: "email.smtp_port", Value: c.Email.SMTPPort, Message: "must be a valid port"})
		}
	}
	if (c.Pushover.Token == "") != (c.Pushover.User == "") {
		errs = append(errs, ValidationError{Field: "pushover", Value: "", Message: "token and user must be set together"})
	}
	return errs
}

func (c *Config) validateStorage() []ValidationError {
	if !slices.Contains(ValidStorageDrivers(), c.Storage.Driver) {
		return []ValidationError{{
			Field:   "storage.driver",
			Value:   c.Storage.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStorageDrivers(), ", ")),
		}}
	}
	if c.Storage.Driver != "none" {
		return required("storage.dsn", c.Storage.DSN)
	}
	return nil
}
