package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/application/scheduler"
	"github.com/example/visa-scheduler/internal/application/session"
	"github.com/example/visa-scheduler/internal/application/usecases"
	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/infrastructure/browser"
	"github.com/example/visa-scheduler/internal/infrastructure/config"
	"github.com/example/visa-scheduler/internal/infrastructure/notify"
	"github.com/example/visa-scheduler/internal/infrastructure/portal"
	"github.com/example/visa-scheduler/internal/infrastructure/storage"
	"github.com/example/visa-scheduler/internal/logging"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg      *config.Config
	portal   *portal.Client
	browser  *browser.Chrome
	sessions *session.Manager
	notifier appointment.Notifier
	recorder appointment.AttemptRecorder

	closers []func()
}

// loadConfig reads and validates configuration, starts logging and reveals
// sealed secrets.
func loadConfig(path string) (*config.Config, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, err
	}
	k, err := config.KeyringFromEnv()
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	if err := cfg.RevealSecrets(k); err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return cfg, func() { _ = closer.Close() }, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	a.portal = portal.New(portal.Config{
		BaseURL:           cfg.USVisa.BaseURL,
		CountryCode:       cfg.USVisa.CountryCode,
		ScheduleID:        cfg.USVisa.ScheduleID,
		FacilityID:        cfg.USVisa.FacilityID,
		Timeout:           cfg.Monitor.RequestTimeout,
		RequestsPerMinute: cfg.Monitor.RequestsPerMinute,
	})

	rec, closeStore, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	a.recorder = rec
	a.closers = append(a.closers, closeStore)

	chrome, err := browser.New(ctx, browser.Config{
		Headless:       cfg.Browser.Headless,
		RemoteURL:      cfg.Browser.RemoteURL,
		ChromePath:     cfg.Browser.ChromePath,
		AppointmentURL: a.portal.AppointmentURL(),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.browser = chrome
	a.closers = append(a.closers, chrome.Close)

	a.sessions = session.NewManager(chrome, session.Config{
		SignInURL:     a.portal.SignInURL(),
		Username:      cfg.USVisa.Username,
		Password:      cfg.USVisa.Password,
		StepTimeout:   cfg.Browser.StepTimeout,
		StepPause:     cfg.Monitor.StepDelay,
		ScreenshotDir: cfg.Browser.ScreenshotDir,
	})
	a.notifier = buildNotifier(cfg)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) poller() usecases.PollSlots {
	return usecases.PollSlots{
		Portal:        a.portal,
		RetryWindow:   a.cfg.Monitor.PollRetryWindow,
		RetryInterval: a.cfg.Monitor.PollRetryInterval,
	}
}

func (a *app) criteria() (appointment.Criteria, error) {
	target, err := a.cfg.Target()
	if err != nil {
		return appointment.Criteria{}, err
	}
	nb, err := a.cfg.NotBefore()
	if err != nil {
		return appointment.Criteria{}, err
	}
	return appointment.Criteria{Target: target, NotBefore: nb}, nil
}

func (a *app) controller() (*scheduler.Controller, error) {
	crit, err := a.criteria()
	if err != nil {
		return nil, err
	}
	windows, err := a.cfg.Windows()
	if err != nil {
		return nil, err
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	m := a.cfg.Monitor
	resched := usecases.Reschedule{
		Portal:     a.portal,
		Forms:      a.browser,
		Notifier:   a.notifier,
		Recorder:   a.recorder,
		FacilityID: a.cfg.USVisa.FacilityID,
	}
	return scheduler.New(scheduler.Config{
		Target:           crit.Target,
		NotBefore:        crit.NotBefore,
		Windows:          windows,
		Location:         loc,
		GateInterval:     m.GateInterval,
		Cooldown:         m.Cooldown,
		CooldownJitter:   m.CooldownJitter,
		ExceptionBackoff: m.ExceptionBackoff,
		StepDelay:        m.StepDelay,
		MaxFailures:      m.MaxFailures,
	}, a.sessions, a.poller(), resched, a.notifier), nil
}

// buildNotifier fans out to every configured channel, or just the log when
// none is configured.
func buildNotifier(cfg *config.Config) appointment.Notifier {
	var m notify.Multi
	if cfg.Email.Enabled {
		m = append(m, notify.Named{Name: "email", Notifier: notify.NewEmail(notify.SMTPConfig{
			Server:   cfg.Email.SMTPServer,
			Port:     cfg.Email.SMTPPort,
			Sender:   cfg.Email.SenderEmail,
			Password: cfg.Email.SenderPassword,
			Receiver: cfg.Email.ReceiverEmail,
			Timeout:  cfg.Monitor.RequestTimeout,
		})})
	}
	if cfg.Pushover.Token != "" {
		m = append(m, notify.Named{Name: "pushover", Notifier: notify.NewPushover(cfg.Pushover.Token, cfg.Pushover.User)})
	}
	if len(m) == 0 {
		log.Warn().Msg("no notification channel configured; messages go to the log only")
		return notify.Log{}
	}
	return m
}
