// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// PostgresFastPassLedger tracks per-member FastPass balances. It implements
// queue.FastPassCharger for paid queues.
type PostgresFastPassLedger struct {
	pool poolIface
}

// NewPostgresFastPassLedger creates a new PostgreSQL FastPass ledger.
func NewPostgresFastPassLedger(pool poolIface) *PostgresFastPassLedger {
	return &PostgresFastPassLedger{pool: pool}
}

// Deduct atomically charges one FastPass from a member's balance.
// Returns false with no error when the member has no balance to spend;
// the guarded UPDATE ensures the balance never goes negative under
// concurrent charges.
func (l *PostgresFastPassLedger) Deduct(ctx context.Context, memberID string) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`UPDATE fastpass_balances SET balance = balance - 1, updated_at = now()
		 WHERE member_id = $1 AND balance > 0`,
		memberID)
	if err != nil {
		return false, oops.Code("FASTPASS_DEDUCT_FAILED").With("member_id", memberID).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Grant credits passes to a member, creating the ledger row if needed.
// A concurrent first-grant race surfaces as a unique violation; the
// conflict clause makes the insert idempotent so that cannot happen, but
// the check stays for drivers that report it differently.
func (l *PostgresFastPassLedger) Grant(ctx context.Context, memberID string, count int) error {
	if count <= 0 {
		return oops.Code("FASTPASS_BAD_COUNT").Errorf("count must be positive, got %d", count)
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO fastpass_balances (member_id, balance)
		 VALUES ($1, $2)
		 ON CONFLICT (member_id) DO UPDATE
		 SET balance = fastpass_balances.balance + $2, updated_at = now()`,
		memberID, count)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("FASTPASS_GRANT_CONFLICT").With("member_id", memberID).Wrap(err)
		}
		return oops.Code("FASTPASS_GRANT_FAILED").With("member_id", memberID).Wrap(err)
	}
	return nil
}

// Balance returns a member's current FastPass balance. Members with no
// ledger row have a balance of zero.
func (l *PostgresFastPassLedger) Balance(ctx context.Context, memberID string) (int, error) {
	var balance int
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM fastpass_balances WHERE member_id = $1`,
		memberID).Scan(&balance)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, oops.Code("FASTPASS_BALANCE_FAILED").With("member_id", memberID).Wrap(err)
	}
	return balance, nil
}
