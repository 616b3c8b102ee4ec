package appointment

import (
	"context"
	"time"
)

// Portal is the HTTP surface of the scheduling portal.
type Portal interface {
	AvailableDates(ctx context.Context, sess Session) ([]Slot, error)
	AvailableTimes(ctx context.Context, sess Session, date time.Time) ([]string, error)
	Commit(ctx context.Context, sess Session, c Commit) (body []byte, err error)
}

// FormSource loads the consistency tokens the commit endpoint requires.
type FormSource interface {
	AppointmentForm(ctx context.Context) (Form, error)
}

// Notifier delivers human-readable status messages.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Attempt is the audit record of one reschedule attempt.
type Attempt struct {
	ID          string
	Date        time.Time
	Time        string
	Outcome     OutcomeKind
	Reason      string
	AttemptedAt time.Time
}

// AttemptRecorder persists the attempt audit trail.
type AttemptRecorder interface {
	Record(ctx context.Context, a Attempt) error
	ListRecent(ctx context.Context, limit int) ([]Attempt, error)
}
