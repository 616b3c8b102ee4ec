package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/visa-scheduler/internal/domain/appointment"
)

type AttemptRepo struct{ pool *pgxpool.Pool }

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo { return &AttemptRepo{pool: pool} }

func (r *AttemptRepo) Record(ctx context.Context, a appointment.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempts (id, appointment_date, appointment_time, outcome, reason, attempted_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.Date, a.Time, string(a.Outcome), a.Reason, a.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt %s: %w", a.ID, err)
	}
	return nil
}

func (r *AttemptRepo) ListRecent(ctx context.Context, limit int) ([]appointment.Attempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_date, appointment_time, outcome, reason, attempted_at
		FROM attempts ORDER BY attempted_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (appointment.Attempt, error) {
		var (
			a       appointment.Attempt
			outcome string
		)
		err := row.Scan(&a.ID, &a.Date, &a.Time, &outcome, &a.Reason, &a.AttemptedAt)
		a.Outcome = appointment.OutcomeKind(outcome)
		return a, err
	})
}
