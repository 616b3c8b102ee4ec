package scheduler

import (
	"fmt"
	"time"
)

type State string

const (
	StateIdle         State = "idle"
	StateGating       State = "gating"
	StatePolling      State = "polling"
	StateDeciding     State = "deciding"
	StateRescheduling State = "rescheduling"
	StateSleeping     State = "sleeping"
	StateRecovering   State = "recovering"
	StateTerminated   State = "terminated"
)

// Result is how a Run ended.
type Result int

const (
	ResultInterrupted Result = iota
	ResultClaimed
	ResultExhausted
)

func (r Result) String() string {
	switch r {
	case ResultClaimed:
		return "claimed"
	case ResultExhausted:
		return "exhausted"
	default:
		return "interrupted"
	}
}

// Process exit codes.
const (
	ExitClaimed     = 0
	ExitExhausted   = 1
	ExitInterrupted = 2
)

func (r Result) ExitCode() int {
	switch r {
	case ResultClaimed:
		return ExitClaimed
	case ResultExhausted:
		return ExitExhausted
	default:
		return ExitInterrupted
	}
}

// RetryState counts consecutive generic failures.
type RetryState struct {
	ConsecutiveFailures int
	MaxFailures         int
}

func (r *RetryState) Fail() bool {
	r.ConsecutiveFailures++
	return r.Exhausted()
}

func (r *RetryState) Reset() { r.ConsecutiveFailures = 0 }

func (r RetryState) Exhausted() bool { return r.ConsecutiveFailures > r.MaxFailures }

// Status is a read-only snapshot for observers (heartbeat, status endpoint).
type Status struct {
	State               State     `json:"state"`
	Target              string    `json:"target"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	MaxFailures         int       `json:"max_failures"`
	LastClaimed         string    `json:"last_claimed,omitempty"`
	Claimed             bool      `json:"claimed"`
	EarliestSeen        string    `json:"earliest_seen,omitempty"`
	LastPollAt          time.Time `json:"last_poll_at"`
	SessionAcquiredAt   time.Time `json:"session_acquired_at"`
	StartedAt           time.Time `json:"started_at"`
}

func (s Status) Summary() string {
	earliest := s.EarliestSeen
	if earliest == "" {
		earliest = "none"
	}
	last := "never"
	if !s.LastPollAt.IsZero() {
		last = s.LastPollAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("Still watching for a date before %s. State=%s, earliest seen=%s, last poll=%s, failures=%d/%d.",
		s.Target, s.State, earliest, last, s.ConsecutiveFailures, s.MaxFailures)
}
