package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreatePrincipal registers a user with an opening balance. Re-creating an
// existing principal is a no-op.
func (l *Ledger) CreatePrincipal(ctx context.Context, userID int64, initialBalance Cents) error {
	if initialBalance < 0 {
		return fmt.Errorf("%w: initial balance must not be negative", ErrValidation)
	}
	_, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO users (user_id, initial_balance) VALUES (?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, int64(initialBalance))
	l.metrics.RecordWrite("user", err)
	if err != nil {
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

// PrincipalExists reports whether the user row is present.
func (l *Ledger) PrincipalExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := l.store.DB().QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("principal exists: %w", err)
	}
	return true, nil
}

// IsConfigured reports whether first-time setup has completed.
func (l *Ledger) IsConfigured(ctx context.Context, userID int64) (bool, error) {
	var configured int
	err := l.store.DB().QueryRowContext(ctx,
		`SELECT configured FROM users WHERE user_id = ?`, userID).Scan(&configured)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is configured: %w", err)
	}
	return configured != 0, nil
}

// MarkConfigured flags the principal as having completed setup.
func (l *Ledger) MarkConfigured(ctx context.Context, userID int64) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE users SET configured = 1 WHERE user_id = ?`, userID)
	l.metrics.RecordWrite("user", err)
	if err != nil {
		return fmt.Errorf("mark configured: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: principal %d", ErrNotFound, userID)
	}
	return nil
}

// UpdateInitialBalance replaces the opening balance.
func (l *Ledger) UpdateInitialBalance(ctx context.Context, userID int64, amount Cents) error {
	if amount < 0 {
		return fmt.Errorf("%w: balance must not be negative", ErrValidation)
	}
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE users SET initial_balance = ? WHERE user_id = ?`, int64(amount), userID)
	l.metrics.RecordWrite("user", err)
	if err != nil {
		return fmt.Errorf("update initial balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: principal %d", ErrNotFound, userID)
	}
	return nil
}

// ConfiguredPrincipals lists users who completed setup. Used by the
// monthly-summary broadcast.
func (l *Ledger) ConfiguredPrincipals(ctx context.Context) ([]int64, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT user_id FROM users WHERE configured = 1 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("configured principals: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
