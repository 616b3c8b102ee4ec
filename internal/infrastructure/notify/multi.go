package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

// Named attaches a label to a channel for logging.
type Named struct {
	Name string
	appointment.Notifier
}

// Multi fans a message out to every channel. One channel failing never stops
// the others; the joined error is returned for the caller to log.
type Multi []Named

func (m Multi) Notify(ctx context.Context, subject, body string) error {
	var errs []error
	for _, ch := range m {
		if err := ch.Notify(ctx, subject, body); err != nil {
			log.Warn().Err(err).Str("channel", ch.Name).Msg("notify: channel failed")
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		}
	}
	return errors.Join(errs...)
}
