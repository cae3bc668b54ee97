package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// lockKey identifies the ledger migrator among other pg_advisory_lock users.
const lockKey int64 = 4_711_902_337

var ErrLockHeld = errors.New("another migrator holds the schema lock")

// withSchemaLock runs fn while holding a session-level advisory lock on a
// dedicated connection, so concurrent deploys never migrate twice.
func withSchemaLock(ctx context.Context, db *sql.DB, fn func() error) error {
	if db == nil {
		return errors.New("schema lock requires database handle")
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("reserve lock connection: %w", err)
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&acquired); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if !acquired {
		return ErrLockHeld
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
	}()

	return fn()
}
