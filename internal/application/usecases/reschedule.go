package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

// Reschedule issues exactly one commit for a chosen date.
type Reschedule struct {
	Portal     appointment.Portal
	Forms      appointment.FormSource
	Notifier   appointment.Notifier
	Recorder   appointment.AttemptRecorder
	FacilityID string

	Now func() time.Time
}

// Attempt resolves a time for date, submits the commit and classifies the
// response. A refused commit is an Outcome, not an error.
func (u Reschedule) Attempt(ctx context.Context, sess appointment.Session, date time.Time) (appointment.Outcome, error) {
	if u.Portal == nil || u.Forms == nil {
		return appointment.Outcome{}, fmt.Errorf("portal and form source are required")
	}
	day := appointment.FormatDate(date)
	log.Info().Str("date", day).Msg("reschedule: attempting")

	times, err := u.Portal.AvailableTimes(ctx, sess, date)
	if err != nil {
		u.record(ctx, date, "", appointment.OutcomeError, err.Error())
		return appointment.Outcome{}, fmt.Errorf("fetch times for %s: %w", day, err)
	}
	if len(times) == 0 {
		out := appointment.Outcome{Kind: appointment.OutcomeRejected, Date: date, Reason: "no available times"}
		u.record(ctx, date, "", out.Kind, out.Reason)
		Announce(ctx, u.Notifier, fmt.Sprintf("Reschedule skipped: %s has no available times", day))
		return out, nil
	}
	// The portal lists times ascending; the last one is the least contested.
	slotTime := times[len(times)-1]
	log.Info().Str("date", day).Str("time", slotTime).Msg("reschedule: time resolved")

	form, err := u.Forms.AppointmentForm(ctx)
	if err != nil {
		u.record(ctx, date, slotTime, appointment.OutcomeError, err.Error())
		return appointment.Outcome{}, fmt.Errorf("load appointment form: %w", err)
	}

	Announce(ctx, u.Notifier, fmt.Sprintf("Attempting to reschedule to %s %s", day, slotTime))
	body, err := u.Portal.Commit(ctx, sess, appointment.Commit{
		FacilityID: u.FacilityID,
		Date:       date,
		Time:       slotTime,
		Form:       form,
	})
	if err != nil {
		u.record(ctx, date, slotTime, appointment.OutcomeError, err.Error())
		return appointment.Outcome{}, fmt.Errorf("commit %s %s: %w", day, slotTime, err)
	}

	out := appointment.Outcome{Date: date, Time: slotTime}
	if appointment.IsCommitSuccess(body) {
		out.Kind = appointment.OutcomeSuccess
		Announce(ctx, u.Notifier, fmt.Sprintf("Rescheduled successfully: %s %s", day, slotTime))
	} else {
		out.Kind = appointment.OutcomeRejected
		out.Reason = "success marker not found"
		Announce(ctx, u.Notifier, fmt.Sprintf("Reschedule rejected: %s %s", day, slotTime))
	}
	u.record(ctx, date, slotTime, out.Kind, out.Reason)
	return out, nil
}

func (u Reschedule) record(ctx context.Context, date time.Time, slotTime string, kind appointment.OutcomeKind, reason string) {
	if u.Recorder == nil {
		return
	}
	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	a := appointment.Attempt{
		ID:          "att_" + uuid.NewString(),
		Date:        date,
		Time:        slotTime,
		Outcome:     kind,
		Reason:      reason,
		AttemptedAt: now().UTC(),
	}
	if err := u.Recorder.Record(ctx, a); err != nil {
		log.Warn().Err(err).Str("date", appointment.FormatDate(date)).Msg("reschedule: record attempt failed")
	}
}
