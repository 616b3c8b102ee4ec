package scheduler

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/application/usecases"
)

// CrashMessage is sent once when the failure budget is exhausted.
const CrashMessage = "HELP! Crashed."

// Supervise runs the loop and maps its result to a process exit code. The
// crash notification is sent only when retries are exhausted.
func (c *Controller) Supervise(ctx context.Context) int {
	res, err := c.Run(ctx)
	switch res {
	case ResultClaimed:
		log.Info().Msg("rescheduled successfully, exiting")
	case ResultExhausted:
		log.Error().Int("failures", c.Status().ConsecutiveFailures).Msg("retries exhausted")
		usecases.Announce(context.WithoutCancel(ctx), c.notifier, CrashMessage)
	default:
		log.Warn().Err(err).Msg("interrupted")
	}
	return res.ExitCode()
}
