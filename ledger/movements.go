package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Movement is one immutable ledger entry.
type Movement struct {
	ID          int64
	UserID      int64
	Date        time.Time
	Kind        Kind
	Category    string
	Amount      Cents
	Description string
	Month       int
	Year        int
}

const maxMovementRows = 100

// AddMovement records a movement dated today. In the same transaction it
// invalidates the monthly summary for the period, refreshes the daily
// summary and, for expenses, evaluates spending alerts.
func (l *Ledger) AddMovement(ctx context.Context, userID int64, kind Kind, category string, amount Cents, description string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}
	if amount < MinAmount || amount > MaxAmount {
		return fmt.Errorf("%w: amount %s out of range", ErrValidation, amount)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: category is required", ErrValidation)
	}
	description = truncateDescription(description)

	today := l.today()
	month, year := int(today.Month()), today.Year()

	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO movements (user_id, date, kind, category, amount, description, month, year)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, today.Format(DateLayout), string(kind), category, int64(amount), description, month, year); err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}
		if err := invalidateMonthlySummaryTx(ctx, tx, userID, month, year); err != nil {
			return err
		}
		if err := refreshDailySummaryTx(ctx, tx, userID, today); err != nil {
			return err
		}
		if kind == KindExpense {
			if err := l.evaluateAlertsTx(ctx, tx, userID, today); err != nil {
				return err
			}
		}
		return nil
	})
	l.metrics.RecordWrite("movement", err)
	if err != nil {
		return err
	}

	l.log.Info("movement recorded",
		"user_id", userID, "kind", string(kind), "category", category, "amount", amount.String())
	return nil
}

// Movements lists up to 100 most-recent rows, newest first. Month and year
// default to the current period when zero; kind filters when non-empty.
func (l *Ledger) Movements(ctx context.Context, userID int64, month, year int, kind Kind) ([]Movement, error) {
	today := l.today()
	if month == 0 {
		month = int(today.Month())
	}
	if year == 0 {
		year = today.Year()
	}

	query := `SELECT id, user_id, date, kind, category, amount, description, month, year
		 FROM movements WHERE user_id = ? AND month = ? AND year = ?`
	args := []any{userID, month, year}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY date DESC, id DESC LIMIT ?`
	args = append(args, maxMovementRows)

	rows, err := l.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	return scanMovements(rows)
}

// DeleteMovement removes a movement owned by the user and invalidates the
// monthly summary it contributed to. Deletes are destructive.
func (l *Ledger) DeleteMovement(ctx context.Context, movementID, userID int64) error {
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		var month, year int
		var date string
		err := tx.QueryRowContext(ctx,
			`SELECT date, month, year FROM movements WHERE id = ? AND user_id = ?`,
			movementID, userID).Scan(&date, &month, &year)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: movement %d", ErrNotFound, movementID)
		}
		if err != nil {
			return fmt.Errorf("lookup movement: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM movements WHERE id = ? AND user_id = ?`, movementID, userID); err != nil {
			return fmt.Errorf("delete movement: %w", err)
		}
		if err := invalidateMonthlySummaryTx(ctx, tx, userID, month, year); err != nil {
			return err
		}
		if day, perr := time.Parse(DateLayout, date); perr == nil {
			if err := refreshDailySummaryTx(ctx, tx, userID, day); err != nil {
				return err
			}
		}
		return nil
	})
	l.metrics.RecordWrite("movement", err)
	return err
}

func truncateDescription(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= MaxDescriptionLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLen {
		return s
	}
	return string(runes[:MaxDescriptionLen-3]) + "..."
}

func scanMovements(rows *sql.Rows) ([]Movement, error) {
	var out []Movement
	for rows.Next() {
		var m Movement
		var date string
		var kind string
		var amount int64
		if err := rows.Scan(&m.ID, &m.UserID, &date, &kind, &m.Category, &amount, &m.Description, &m.Month, &m.Year); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		parsed, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse movement date: %w", err)
		}
		m.Date = parsed
		m.Kind = Kind(kind)
		m.Amount = Cents(amount)
		out = append(out, m)
	}
	return out, rows.Err()
}
