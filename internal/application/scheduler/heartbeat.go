package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/application/usecases"
	"github.com/example/visa-scheduler/internal/domain/appointment"
)

// Heartbeat periodically reports the loop status so a quiet run is
// distinguishable from a dead one.
type Heartbeat struct {
	cron *cron.Cron
}

// StartHeartbeat schedules a status notification on a standard cron expression.
func StartHeartbeat(spec string, c *Controller, n appointment.Notifier) (*Heartbeat, error) {
	cr := cron.New()
	_, err := cr.AddFunc(spec, func() {
		usecases.Announce(context.Background(), n, c.Status().Summary())
	})
	if err != nil {
		return nil, fmt.Errorf("heartbeat cron %q: %w", spec, err)
	}
	cr.Start()
	log.Info().Str("cron", spec).Msg("heartbeat started")
	return &Heartbeat{cron: cr}, nil
}

func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	<-h.cron.Stop().Done()
}
