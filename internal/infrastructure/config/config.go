// Package config loads the YAML configuration with VISASCHED_ environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/infrastructure/crypto"
)

const EnvPrefix = "VISASCHED"

type Config struct {
	USVisa   USVisaConfig   `mapstructure:"usvisa"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Email    EmailConfig    `mapstructure:"email"`
	Pushover PushoverConfig `mapstructure:"pushover"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Status   StatusConfig   `mapstructure:"status"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type USVisaConfig struct {
	Username string `mapstructure:"username"`
	// Password may be sealed ("enc:...") with `visasched encrypt`.
	Password    string `mapstructure:"password"`
	ScheduleID  string `mapstructure:"schedule_id"`
	FacilityID  string `mapstructure:"facility_id"`
	CountryCode string `mapstructure:"country_code"`
	// MyScheduleDate is the currently held appointment (YYYY-MM-DD).
	MyScheduleDate string `mapstructure:"my_schedule_date"`
	// NotBefore is the earliest date worth taking; empty accepts any.
	NotBefore string `mapstructure:"not_before"`
	BaseURL   string `mapstructure:"base_url"`
}

type MonitorConfig struct {
	// ActiveWindows is a list of hour ranges like "22-6,8-10"; empty means always.
	ActiveWindows     string        `mapstructure:"active_windows"`
	Timezone          string        `mapstructure:"timezone"`
	GateInterval      time.Duration `mapstructure:"gate_interval"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	CooldownJitter    time.Duration `mapstructure:"cooldown_jitter"`
	ExceptionBackoff  time.Duration `mapstructure:"exception_backoff"`
	StepDelay         time.Duration `mapstructure:"step_delay"`
	MaxFailures       int           `mapstructure:"max_failures"`
	PollRetryWindow   time.Duration `mapstructure:"poll_retry_window"`
	PollRetryInterval time.Duration `mapstructure:"poll_retry_interval"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	HeartbeatCron     string        `mapstructure:"heartbeat_cron"`
}

type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	RemoteURL     string        `mapstructure:"remote_url"`
	ChromePath    string        `mapstructure:"chrome_path"`
	StepTimeout   time.Duration `mapstructure:"step_timeout"`
	ScreenshotDir string        `mapstructure:"screenshot_dir"`
}

type EmailConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	SMTPServer     string `mapstructure:"smtp_server"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SenderEmail    string `mapstructure:"sender_email"`
	SenderPassword string `mapstructure:"sender_password"`
	ReceiverEmail  string `mapstructure:"receiver_email"`
}

type PushoverConfig struct {
	Token string `mapstructure:"token"`
	User  string `mapstructure:"user"`
}

type StorageConfig struct {
	// Driver is one of none, sqlite, postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StatusConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func Default() *Config {
	return &Config{
		USVisa: USVisaConfig{
			CountryCode: "en-ca",
		},
		Monitor: MonitorConfig{
			GateInterval:      5 * time.Minute,
			Cooldown:          60 * time.Second,
			CooldownJitter:    15 * time.Second,
			ExceptionBackoff:  30 * time.Second,
			StepDelay:         time.Second,
			MaxFailures:       6,
			PollRetryWindow:   3 * time.Second,
			PollRetryInterval: time.Second,
			RequestTimeout:    30 * time.Second,
			RequestsPerMinute: 20,
		},
		Browser: BrowserConfig{
			Headless:    true,
			StepTimeout: 60 * time.Second,
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "visasched.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every key so environment overrides apply even when the
// file omits them.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("usvisa.username", d.USVisa.Username)
	v.SetDefault("usvisa.password", d.USVisa.Password)
	v.SetDefault("usvisa.schedule_id", d.USVisa.ScheduleID)
	v.SetDefault("usvisa.facility_id", d.USVisa.FacilityID)
	v.SetDefault("usvisa.country_code", d.USVisa.CountryCode)
	v.SetDefault("usvisa.my_schedule_date", d.USVisa.MyScheduleDate)
	v.SetDefault("usvisa.not_before", d.USVisa.NotBefore)
	v.SetDefault("usvisa.base_url", d.USVisa.BaseURL)

	v.SetDefault("monitor.active_windows", d.Monitor.ActiveWindows)
	v.SetDefault("monitor.timezone", d.Monitor.Timezone)
	v.SetDefault("monitor.gate_interval", d.Monitor.GateInterval)
	v.SetDefault("monitor.cooldown", d.Monitor.Cooldown)
	v.SetDefault("monitor.cooldown_jitter", d.Monitor.CooldownJitter)
	v.SetDefault("monitor.exception_backoff", d.Monitor.ExceptionBackoff)
	v.SetDefault("monitor.step_delay", d.Monitor.StepDelay)
	v.SetDefault("monitor.max_failures", d.Monitor.MaxFailures)
	v.SetDefault("monitor.poll_retry_window", d.Monitor.PollRetryWindow)
	v.SetDefault("monitor.poll_retry_interval", d.Monitor.PollRetryInterval)
	v.SetDefault("monitor.request_timeout", d.Monitor.RequestTimeout)
	v.SetDefault("monitor.requests_per_minute", d.Monitor.RequestsPerMinute)
	v.SetDefault("monitor.heartbeat_cron", d.Monitor.HeartbeatCron)

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.remote_url", d.Browser.RemoteURL)
	v.SetDefault("browser.chrome_path", d.Browser.ChromePath)
	v.SetDefault("browser.step_timeout", d.Browser.StepTimeout)
	v.SetDefault("browser.screenshot_dir", d.Browser.ScreenshotDir)

	v.SetDefault("email.enabled", d.Email.Enabled)
	v.SetDefault("email.smtp_server", d.Email.SMTPServer)
	v.SetDefault("email.smtp_port", d.Email.SMTPPort)
	v.SetDefault("email.sender_email", d.Email.SenderEmail)
	v.SetDefault("email.sender_password", d.Email.SenderPassword)
	v.SetDefault("email.receiver_email", d.Email.ReceiverEmail)

	v.SetDefault("pushover.token", d.Pushover.Token)
	v.SetDefault("pushover.user", d.Pushover.User)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)

	v.SetDefault("status.listen_addr", d.Status.ListenAddr)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// Load reads path (or ./config.yaml when path is empty and the file exists),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// Target is the held appointment date; only earlier dates are taken.
func (c *Config) Target() (time.Time, error) {
	return appointment.ParseDate(c.USVisa.MyScheduleDate)
}

func (c *Config) NotBefore() (time.Time, error) {
	if strings.TrimSpace(c.USVisa.NotBefore) == "" {
		return time.Time{}, nil
	}
	return appointment.ParseDate(c.USVisa.NotBefore)
}

func (c *Config) Windows() (appointment.Windows, error) {
	return appointment.ParseWindows(c.Monitor.ActiveWindows)
}

func (c *Config) Location() (*time.Location, error) {
	if c.Monitor.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Monitor.Timezone)
}

// KeyringFromEnv reads CRED_ENC_KEY (base64, 32 bytes) and CRED_PASSPHRASE.
func KeyringFromEnv() (crypto.Keyring, error) {
	var k crypto.Keyring
	if raw := strings.TrimSpace(os.Getenv("CRED_ENC_KEY")); raw != "" {
		key, err := crypto.ParseKey(raw)
		if err != nil {
			return k, fmt.Errorf("CRED_ENC_KEY: %w", err)
		}
		k.Key = key
	}
	k.Passphrase = os.Getenv("CRED_PASSPHRASE")
	return k, nil
}

// RevealSecrets replaces sealed passwords with their plaintext.
func (c *Config) RevealSecrets(k crypto.Keyring) error {
	pw, err := k.Reveal(c.USVisa.Password)
	if err != nil {
		return fmt.Errorf("usvisa.password: %w", err)
	}
	c.USVisa.Password = pw
	spw, err := k.Reveal(c.Email.SenderPassword)
	if err != nil {
		return fmt.Errorf("email.sender_password: %w", err)
	}
	c.Email.SenderPassword = spw
	return nil
}
