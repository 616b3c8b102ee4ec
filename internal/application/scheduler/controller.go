// Package scheduler runs the monitoring loop: gate, poll, decide, reschedule,
// and recover from failures until a date is claimed or the failure budget is spent.
package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/application/usecases"
	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

type SessionManager interface {
	Establish(ctx context.Context) (appointment.Session, error)
}

type Poller interface {
	Poll(ctx context.Context, sess appointment.Session) ([]appointment.Slot, error)
}

type Rescheduler interface {
	Attempt(ctx context.Context, sess appointment.Session, date time.Time) (appointment.Outcome, error)
}

type Config struct {
	Target    time.Time
	NotBefore time.Time

	Windows  appointment.Windows
	Location *time.Location

	// GateInterval is slept while outside every active window.
	GateInterval     time.Duration
	Cooldown         time.Duration
	CooldownJitter   time.Duration
	ExceptionBackoff time.Duration
	// StepDelay is slept after a successful re-login.
	StepDelay time.Duration
	// MaxFailures is the tolerated run of generic failures; zero selects
	// DefaultMaxFailures. Configuration rejects values below 1.
	MaxFailures int
}

// DefaultMaxFailures is the number of consecutive generic failures tolerated.
const DefaultMaxFailures = 6

type Controller struct {
	cfg         Config
	sessions    SessionManager
	poller      Poller
	rescheduler Rescheduler
	notifier    appointment.Notifier

	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration

	// Owned by the Run goroutine.
	session     appointment.Session
	retry       RetryState
	lastClaimed time.Time
	claimed     bool

	mu     sync.Mutex
	status Status
}

func New(cfg Config, sessions SessionManager, poller Poller, rescheduler Rescheduler, notifier appointment.Notifier) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	c := &Controller{
		cfg:         cfg,
		sessions:    sessions,
		poller:      poller,
		rescheduler: rescheduler,
		notifier:    notifier,
		now:         time.Now,
		sleep:       sleepCtx,
		jitter:      uniformJitter,
		retry:       RetryState{MaxFailures: cfg.MaxFailures},
	}
	c.status = Status{
		State:       StateIdle,
		Target:      appointment.FormatDate(cfg.Target),
		MaxFailures: cfg.MaxFailures,
	}
	return c
}

// Status returns a snapshot of the loop state. Safe to call from any goroutine.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run drives the loop until a date is claimed, the failure budget is spent,
// or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	c.update(func(s *Status) { s.StartedAt = c.now() })
	log.Info().
		Str("target", appointment.FormatDate(c.cfg.Target)).
		Str("windows", c.cfg.Windows.String()).
		Int("max_failures", c.cfg.MaxFailures).
		Msg("scheduler: started")

	for {
		if err := ctx.Err(); err != nil {
			return c.stop(ResultInterrupted), err
		}
		c.setState(StateGating)
		if !appointment.IsActive(c.now().In(c.cfg.Location), c.cfg.Windows) {
			log.Debug().Dur("sleep", c.cfg.GateInterval).Msg("scheduler: outside active window")
			if err := c.pause(ctx, c.cfg.GateInterval); err != nil {
				return c.stop(ResultInterrupted), err
			}
			continue
		}

		if !c.session.Valid() {
			if err := c.login(ctx); err != nil {
				if ctx.Err() != nil {
					return c.stop(ResultInterrupted), ctx.Err()
				}
				if c.fail(err) {
					return c.stop(ResultExhausted), nil
				}
				if err := c.pause(ctx, c.cfg.ExceptionBackoff); err != nil {
					return c.stop(ResultInterrupted), err
				}
				continue
			}
			usecases.Announce(ctx, c.notifier, "Login successful!")
		}

		err := c.cycle(ctx)
		switch {
		case err == nil:
			if c.claimed {
				log.Info().Str("date", appointment.FormatDate(c.lastClaimed)).Msg("scheduler: appointment claimed")
				return c.stop(ResultClaimed), nil
			}
			c.retry.Reset()
			c.syncRetry()
			if err := c.pause(ctx, c.cooldown()); err != nil {
				return c.stop(ResultInterrupted), err
			}
		case ctx.Err() != nil:
			return c.stop(ResultInterrupted), ctx.Err()
		case errors.Is(err, internaltypes.ErrUnauthorized):
			log.Warn().Err(err).Msg("scheduler: session invalid")
			if exhausted, err := c.recoverSession(ctx); err != nil {
				return c.stop(ResultInterrupted), err
			} else if exhausted {
				return c.stop(ResultExhausted), nil
			}
		default:
			if c.fail(err) {
				return c.stop(ResultExhausted), nil
			}
			if err := c.pause(ctx, c.cfg.ExceptionBackoff); err != nil {
				return c.stop(ResultInterrupted), err
			}
		}
	}
}

// cycle runs Polling -> Deciding -> Rescheduling once.
func (c *Controller) cycle(ctx context.Context) error {
	c.setState(StatePolling)
	slots, err := c.poller.Poll(ctx, c.session)
	if err != nil {
		return err
	}
	c.update(func(s *Status) {
		s.LastPollAt = c.now()
		if len(slots) > 0 {
			s.EarliestSeen = appointment.FormatDate(slots[0].Date)
		}
	})
	if len(slots) == 0 {
		log.Info().Msg("scheduler: no open dates")
	} else {
		log.Info().Str("earliest", slots[0].String()).Int("count", len(slots)).Msg("scheduler: open dates")
	}

	c.setState(StateDeciding)
	cand, ok := appointment.SelectEarlier(slots, appointment.Criteria{
		Target:      c.cfg.Target,
		LastClaimed: c.lastClaimed,
		NotBefore:   c.cfg.NotBefore,
	})
	if !ok {
		log.Info().Msg("scheduler: no earlier date")
		return nil
	}

	// Mark before attempting so the same date is never tried twice.
	c.lastClaimed = cand.Date
	c.update(func(s *Status) { s.LastClaimed = appointment.FormatDate(cand.Date) })
	log.Info().Str("date", cand.String()).Msg("scheduler: earlier date found")

	c.setState(StateRescheduling)
	out, err := c.rescheduler.Attempt(ctx, c.session, cand.Date)
	if err != nil {
		return err
	}
	if out.Claimed() {
		c.claimed = true
		c.update(func(s *Status) { s.Claimed = true })
	}
	return nil
}

func (c *Controller) login(ctx context.Context) error {
	c.setState(StateRecovering)
	sess, err := c.sessions.Establish(ctx)
	if err != nil {
		return err
	}
	c.session = sess
	c.update(func(s *Status) { s.SessionAcquiredAt = sess.AcquiredAt })
	return nil
}

// recoverSession re-authenticates after an auth failure. A successful login is
// a fresh start and clears the failure count.
func (c *Controller) recoverSession(ctx context.Context) (exhausted bool, err error) {
	usecases.Announce(ctx, c.notifier, "Session expired or unauthorized, re-login...")
	if lerr := c.login(ctx); lerr != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// The previous session is kept for one more cycle.
		if c.fail(lerr) {
			return true, nil
		}
		return false, c.pause(ctx, c.cfg.ExceptionBackoff)
	}
	c.retry.Reset()
	c.syncRetry()
	usecases.Announce(ctx, c.notifier, "Re-login successful.")
	return false, c.pause(ctx, c.cfg.StepDelay)
}

func (c *Controller) fail(err error) bool {
	exhausted := c.retry.Fail()
	c.syncRetry()
	log.Error().Err(err).
		Int("failures", c.retry.ConsecutiveFailures).
		Int("max_failures", c.retry.MaxFailures).
		Msg("scheduler: cycle failed")
	return exhausted
}

func (c *Controller) pause(ctx context.Context, d time.Duration) error {
	c.setState(StateSleeping)
	return c.sleep(ctx, d)
}

func (c *Controller) cooldown() time.Duration {
	d := c.cfg.Cooldown
	if c.cfg.CooldownJitter > 0 {
		d += c.jitter(c.cfg.CooldownJitter)
	}
	return d
}

func (c *Controller) stop(r Result) Result {
	c.setState(StateTerminated)
	log.Info().Str("result", r.String()).Int("failures", c.retry.ConsecutiveFailures).Msg("scheduler: stopped")
	return r
}

func (c *Controller) setState(st State) {
	c.update(func(s *Status) { s.State = st })
}

func (c *Controller) syncRetry() {
	n := c.retry.ConsecutiveFailures
	c.update(func(s *Status) { s.ConsecutiveFailures = n })
}

func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
