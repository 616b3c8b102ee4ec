package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/internaltypes"
)

// PollSlots fetches the open dates. It is the only step that retries on its
// own, and only for network errors inside RetryWindow.
type PollSlots struct {
	Portal        appointment.Portal
	RetryWindow   time.Duration
	RetryInterval time.Duration
}

func (u PollSlots) Poll(ctx context.Context, sess appointment.Session) ([]appointment.Slot, error) {
	if u.Portal == nil {
		return nil, fmt.Errorf("portal is nil")
	}
	if u.RetryWindow <= 0 {
		return u.Portal.AvailableDates(ctx, sess)
	}
	interval := u.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	attempt := 0
	op := func() ([]appointment.Slot, error) {
		attempt++
		slots, err := u.Portal.AvailableDates(ctx, sess)
		if err == nil {
			return slots, nil
		}
		if errors.Is(err, internaltypes.ErrNetwork) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}
	slots, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(u.RetryWindow),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("poll: transient failure")
		}),
	)
	if err != nil {
		return nil, err
	}
	return slots, nil
}
