package usecases

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

// Subject is used for every status notification.
const Subject = "Visa Appointment Notification"

// AnnounceTimeout caps one delivery across all channels.
var AnnounceTimeout = time.Minute

// Announce delivers a status message best-effort: failures are logged and
// never returned.
func Announce(ctx context.Context, n appointment.Notifier, body string) {
	log.Info().Str("message", body).Msg("notify")
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, AnnounceTimeout)
	defer cancel()
	if err := n.Notify(ctx, Subject, body); err != nil {
		log.Warn().Err(err).Msg("notify failed")
	}
}
