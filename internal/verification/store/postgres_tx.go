package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "kyc/pkg/domain"
	dErrors "kyc/pkg/domain-errors"
	txcontext "kyc/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresTx serializes recalculations per user with a transaction scoped
// advisory lock. Stores reached through the ctx passed to fn join the
// transaction.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db, timeout: defaultTxTimeout}
}

func (t *PostgresTx) RunInTx(ctx context.Context, userID id.UserID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	return txcontext.Run(ctx, t.db, func(ctx context.Context) error {
		lock := `SELECT pg_advisory_xact_lock(hashtext($1))`
		if _, err := txcontext.ExecutorFrom(ctx, t.db).ExecContext(ctx, lock, userID.String()); err != nil {
			return fmt.Errorf("acquire user lock: %w", err)
		}
		return fn(ctx)
	})
}
