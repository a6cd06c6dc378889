package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Reminder is a one-shot dated notification. It never affects the balance.
type Reminder struct {
	ID          int64
	UserID      int64
	Description string
	Amount      Cents // zero when not supplied
	DueDate     time.Time
	Active      bool
}

// AddReminder schedules a reminder. Amount is optional; pass zero to omit.
func (l *Ledger) AddReminder(ctx context.Context, userID int64, description string, amount Cents, dueDate time.Time) (Reminder, error) {
	if dueDate.IsZero() {
		return Reminder{}, fmt.Errorf("%w: due date is required", ErrValidation)
	}
	description = truncateDescription(description)
	if description == "" {
		return Reminder{}, fmt.Errorf("%w: description is required", ErrValidation)
	}

	var stored any
	if amount > 0 {
		stored = int64(amount)
	}
	res, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO reminders (user_id, description, amount, due_date) VALUES (?, ?, ?, ?)`,
		userID, description, stored, dueDate.Format(DateLayout))
	l.metrics.RecordWrite("reminder", err)
	if err != nil {
		return Reminder{}, fmt.Errorf("add reminder: %w", err)
	}

	rem := Reminder{UserID: userID, Description: description, Amount: amount, DueDate: dueDate, Active: true}
	rem.ID, _ = res.LastInsertId()
	return rem, nil
}

// ActiveReminders lists the user's pending reminders, soonest first.
func (l *Ledger) ActiveReminders(ctx context.Context, userID int64) ([]Reminder, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, description, amount, due_date, active FROM reminders
		 WHERE user_id = ? AND active = 1 ORDER BY due_date, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// DueReminders returns active reminders across all principals that are due
// today or earlier.
func (l *Ledger) DueReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, description, amount, due_date, active FROM reminders
		 WHERE active = 1 AND due_date <= ? ORDER BY due_date, id`,
		l.today().Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// MarkReminderDispatched retires a reminder after its notification was
// enqueued.
func (l *Ledger) MarkReminderDispatched(ctx context.Context, reminderID int64) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE reminders SET active = 0 WHERE id = ? AND active = 1`, reminderID)
	l.metrics.RecordWrite("reminder", err)
	if err != nil {
		return fmt.Errorf("mark reminder dispatched: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: reminder %d", ErrNotFound, reminderID)
	}
	return nil
}

func scanReminders(rows *sql.Rows) ([]Reminder, error) {
	var out []Reminder
	for rows.Next() {
		var r Reminder
		var amount sql.NullInt64
		var due string
		var active int
		if err := rows.Scan(&r.ID, &r.UserID, &r.Description, &amount, &due, &active); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		parsed, err := time.Parse(DateLayout, due)
		if err != nil {
			return nil, fmt.Errorf("parse due date: %w", err)
		}
		if amount.Valid {
			r.Amount = Cents(amount.Int64)
		}
		r.DueDate = parsed
		r.Active = active != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
