package appointment

import "time"

// MaxCandidates bounds how many of the portal's (ascending) dates are considered.
const MaxCandidates = 5

// Criteria decides which slots are worth an attempt.
type Criteria struct {
	// Target is the currently held appointment date.
	Target time.Time
	// LastClaimed is the last date an attempt was issued for; zero if none.
	LastClaimed time.Time
	// NotBefore optionally rejects dates earlier than this; zero disables it.
	NotBefore time.Time
}

func (c Criteria) Eligible(s Slot) bool {
	if !s.Date.Before(c.Target) {
		return false
	}
	if !c.LastClaimed.IsZero() && SameDate(s.Date, c.LastClaimed) {
		return false
	}
	if !c.NotBefore.IsZero() && s.Date.Before(c.NotBefore) {
		return false
	}
	return true
}

// SelectEarlier returns the first eligible slot among the first MaxCandidates
// entries, preserving portal order.
func SelectEarlier(slots []Slot, c Criteria) (Slot, bool) {
	if len(slots) > MaxCandidates {
		slots = slots[:MaxCandidates]
	}
	for _, s := range slots {
		if c.Eligible(s) {
			return s, true
		}
	}
	return Slot{}, false
}
