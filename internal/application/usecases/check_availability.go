package usecases

import (
	"context"
	"fmt"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

// Availability is a read-only view of one poll.
type Availability struct {
	Slots     []appointment.Slot
	Candidate appointment.Slot
	Eligible  bool
}

// CheckAvailability polls once and reports the slot the monitor would pick,
// without committing anything.
type CheckAvailability struct {
	Poller PollSlots
}

func (u CheckAvailability) Execute(ctx context.Context, sess appointment.Session, c appointment.Criteria) (Availability, error) {
	if !sess.Valid() {
		return Availability{}, fmt.Errorf("session is not established")
	}
	slots, err := u.Poller.Poll(ctx, sess)
	if err != nil {
		return Availability{}, err
	}
	cand, ok := appointment.SelectEarlier(slots, c)
	return Availability{Slots: slots, Candidate: cand, Eligible: ok}, nil
}
