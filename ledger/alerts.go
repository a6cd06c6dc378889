package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Alert is a spending-limit rule for one scope.
type Alert struct {
	ID        int64
	UserID    int64
	Scope     Scope
	Threshold Cents
	Active    bool
}

// AlertPayload is the structured body of a fired alert notification.
type AlertPayload struct {
	Scope     string `json:"scope"`
	Threshold string `json:"threshold"`
	Spent     string `json:"spent"`
	Excess    string `json:"excess"`
}

// UpsertAlert replaces any existing rule for the same scope.
func (l *Ledger) UpsertAlert(ctx context.Context, userID int64, scope Scope, threshold Cents) error {
	if scope != ScopeDaily && scope != ScopeMonthly {
		return fmt.Errorf("%w: unknown scope %q", ErrValidation, scope)
	}
	if threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive", ErrValidation)
	}
	_, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO alerts (user_id, scope, threshold, active) VALUES (?, ?, ?, 1)
		 ON CONFLICT(user_id, scope) DO UPDATE SET
		    threshold = excluded.threshold,
		    active = 1`,
		userID, string(scope), int64(threshold))
	l.metrics.RecordWrite("alert", err)
	if err != nil {
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// ActiveAlerts lists the user's active rules.
func (l *Ledger) ActiveAlerts(ctx context.Context, userID int64) ([]Alert, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, scope, threshold, active FROM alerts
		 WHERE user_id = ? AND active = 1 ORDER BY scope`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		var scope string
		var threshold int64
		var active int
		if err := rows.Scan(&a.ID, &a.UserID, &scope, &threshold, &active); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Scope = Scope(scope)
		a.Threshold = Cents(threshold)
		a.Active = active != 0
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// DeactivateAlert disables a rule owned by the user.
func (l *Ledger) DeactivateAlert(ctx context.Context, alertID, userID int64) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE alerts SET active = 0 WHERE id = ? AND user_id = ? AND active = 1`,
		alertID, userID)
	l.metrics.RecordWrite("alert", err)
	if err != nil {
		return fmt.Errorf("deactivate alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: alert %d", ErrNotFound, alertID)
	}
	return nil
}

// evaluateAlertsTx runs inside the expense write's transaction. For each
// active scope whose spending strictly exceeds its threshold it enqueues an
// alert notification. A fired alert never blocks the write.
func (l *Ledger) evaluateAlertsTx(ctx context.Context, tx *sql.Tx, userID int64, today time.Time) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT scope, threshold FROM alerts WHERE user_id = ? AND active = 1`,
		userID)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	type rule struct {
		scope     Scope
		threshold Cents
	}
	var rules []rule
	for rows.Next() {
		var r rule
		var scope string
		var threshold int64
		if err := rows.Scan(&scope, &threshold); err != nil {
			rows.Close()
			return fmt.Errorf("scan alert rule: %w", err)
		}
		r.scope = Scope(scope)
		r.threshold = Cents(threshold)
		rules = append(rules, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range rules {
		spent, err := spentForScopeTx(ctx, tx, userID, r.scope, today)
		if err != nil {
			return err
		}
		if spent <= r.threshold {
			continue
		}
		payload := AlertPayload{
			Scope:     string(r.scope),
			Threshold: r.threshold.String(),
			Spent:     spent.String(),
			Excess:    (spent - r.threshold).String(),
		}
		message := fmt.Sprintf("⚠️ %s spending limit exceeded: spent %s of %s (over by %s)",
			r.scope, spent, r.threshold, spent-r.threshold)
		if err := enqueueTx(ctx, tx, userID, NotificationAlert, message, payload); err != nil {
			return err
		}
		l.metrics.RecordAlert(string(r.scope))
		l.log.Info("alert fired", "user_id", userID, "scope", string(r.scope),
			"threshold", r.threshold.String(), "spent", spent.String())
	}
	return nil
}

func spentForScopeTx(ctx context.Context, tx *sql.Tx, userID int64, scope Scope, today time.Time) (Cents, error) {
	var spent int64
	var err error
	if scope == ScopeDaily {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM movements
			 WHERE user_id = ? AND kind = 'expense' AND date = ?`,
			userID, today.Format(DateLayout)).Scan(&spent)
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM movements
			 WHERE user_id = ? AND kind = 'expense' AND month = ? AND year = ?`,
			userID, int(today.Month()), today.Year()).Scan(&spent)
	}
	if err != nil {
		return 0, fmt.Errorf("sum %s expenses: %w", scope, err)
	}
	return Cents(spent), nil
}
