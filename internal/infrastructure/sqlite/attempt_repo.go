// Package sqlite stores the reschedule audit trail in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS attempts (
	id TEXT PRIMARY KEY,
	appointment_date TEXT NOT NULL,
	appointment_time TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	attempted_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_attempted_at ON attempts(attempted_at);
`

// Open opens (creating if needed) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// timestampLayout is fixed width so attempted_at sorts correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type AttemptRepo struct{ db *sql.DB }

func NewAttemptRepo(db *sql.DB) *AttemptRepo { return &AttemptRepo{db: db} }

func (r *AttemptRepo) Record(ctx context.Context, a appointment.Attempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attempts (id, appointment_date, appointment_time, outcome, reason, attempted_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, appointment.FormatDate(a.Date), a.Time, string(a.Outcome), a.Reason, a.AttemptedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	return nil
}

func (r *AttemptRepo) ListRecent(ctx context.Context, limit int) ([]appointment.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, appointment_date, appointment_time, outcome, reason, attempted_at
		FROM attempts ORDER BY attempted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []appointment.Attempt
	for rows.Next() {
		var (
			a                   appointment.Attempt
			date, outcome, when string
		)
		if err := rows.Scan(&a.ID, &date, &a.Time, &outcome, &a.Reason, &when); err != nil {
			return nil, err
		}
		if a.Date, err = appointment.ParseDate(date); err != nil {
			return nil, err
		}
		if a.AttemptedAt, err = time.Parse(time.RFC3339Nano, when); err != nil {
			return nil, fmt.Errorf("attempt %s: bad timestamp %q: %w", a.ID, when, err)
		}
		a.Outcome = appointment.OutcomeKind(outcome)
		out = append(out, a)
	}
	return out, rows.Err()
}
