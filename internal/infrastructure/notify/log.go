package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Log writes messages to the application log. It never fails and is the
// fallback when no external channel is configured.
type Log struct{}

func (Log) Notify(_ context.Context, subject, body string) error {
	log.Info().Str("subject", subject).Msg(body)
	return nil
}
