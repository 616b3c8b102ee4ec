// Package storage selects the attempt audit backend from configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/example/visa-scheduler/internal/domain/appointment"
	"github.com/example/visa-scheduler/internal/infrastructure/postgres"
	"github.com/example/visa-scheduler/internal/infrastructure/sqlite"
)

// Open returns the recorder for driver and a func releasing it. Driver "none"
// yields a nil recorder; attempts are then only logged.
func Open(ctx context.Context, driver, dsn string) (appointment.AttemptRecorder, func(), error) {
	switch driver {
	case "", "none":
		return nil, func() {}, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewAttemptRepo(db), func() { _ = db.Close() }, nil
	case "postgres":
		pool, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewAttemptRepo(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
