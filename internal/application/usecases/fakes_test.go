package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

type fakePortal struct {
	dates     []appointment.Slot
	dateErrs  []error
	times     []string
	timesErr  error
	commitErr error
	body      string

	dateCalls int
	commits   []appointment.Commit
}

func (f *fakePortal) AvailableDates(context.Context, appointment.Session) ([]appointment.Slot, error) {
	f.dateCalls++
	if len(f.dateErrs) > 0 {
		err := f.dateErrs[0]
		f.dateErrs = f.dateErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.dates, nil
}

func (f *fakePortal) AvailableTimes(context.Context, appointment.Session, time.Time) ([]string, error) {
	return f.times, f.timesErr
}

func (f *fakePortal) Commit(_ context.Context, _ appointment.Session, c appointment.Commit) ([]byte, error) {
	f.commits = append(f.commits, c)
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	return []byte(f.body), nil
}

type fakeForms struct{ err error }

func (f fakeForms) AppointmentForm(context.Context) (appointment.Form, error) {
	return appointment.Form{UTF8: "✓", AuthenticityToken: "csrf"}, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingNotifier) Notify(_ context.Context, _, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, body)
	return nil
}

type memRecorder struct{ attempts []appointment.Attempt }

func (m *memRecorder) Record(_ context.Context, a appointment.Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *memRecorder) ListRecent(context.Context, int) ([]appointment.Attempt, error) {
	return m.attempts, nil
}
