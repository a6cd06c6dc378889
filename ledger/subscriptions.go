package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Subscription is a recurring expense materialized on its charge day.
type Subscription struct {
	ID         int64
	UserID     int64
	Name       string
	Amount     Cents
	Category   string
	ChargeDay  int
	NextCharge time.Time
	Active     bool
}

// AddSubscription registers a recurring charge. The first charge lands in
// the current month when the day is still ahead, otherwise next month; the
// day is clamped to the target month's length.
func (l *Ledger) AddSubscription(ctx context.Context, userID int64, name string, amount Cents, category string, chargeDay int) (Subscription, error) {
	if chargeDay < 1 || chargeDay > 31 {
		return Subscription{}, fmt.Errorf("%w: charge day %d out of range", ErrValidation, chargeDay)
	}
	if amount < MinAmount || amount > MaxAmount {
		return Subscription{}, fmt.Errorf("%w: amount %s out of range", ErrValidation, amount)
	}

	next := nextChargeDate(l.today(), chargeDay)
	sub := Subscription{
		UserID:     userID,
		Name:       name,
		Amount:     amount,
		Category:   category,
		ChargeDay:  chargeDay,
		NextCharge: next,
		Active:     true,
	}

	res, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, name, amount, category, charge_day, next_charge_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, name, int64(amount), category, chargeDay, next.Format(DateLayout))
	l.metrics.RecordWrite("subscription", err)
	if err != nil {
		return Subscription{}, fmt.Errorf("add subscription: %w", err)
	}
	sub.ID, _ = res.LastInsertId()

	l.log.Info("subscription added", "user_id", userID, "name", name,
		"amount", amount.String(), "next_charge", next.Format(DateLayout))
	return sub, nil
}

// ActiveSubscriptions lists the user's active subscriptions.
func (l *Ledger) ActiveSubscriptions(ctx context.Context, userID int64) ([]Subscription, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, name, amount, category, charge_day, next_charge_date, active
		 FROM subscriptions WHERE user_id = ? AND active = 1 ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// DueSubscriptions returns active subscriptions across all principals whose
// next charge date is today or earlier.
func (l *Ledger) DueSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, name, amount, category, charge_day, next_charge_date, active
		 FROM subscriptions WHERE active = 1 AND next_charge_date <= ?
		 ORDER BY next_charge_date, id`,
		l.today().Format(DateLayout))
	if err != nil {
		return nil, fmt.Errorf("due subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ProcessSubscription materializes one charge: inserts the expense movement,
// advances the next charge date by a calendar month with day clamping, and
// invalidates the charge month's summary, all in one transaction.
func (l *Ledger) ProcessSubscription(ctx context.Context, subscriptionID int64) (Subscription, error) {
	var sub Subscription
	today := l.today()
	month, year := int(today.Month()), today.Year()

	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		var amount int64
		var next string
		var active int
		err := tx.QueryRowContext(ctx,
			`SELECT id, user_id, name, amount, category, charge_day, next_charge_date, active
			 FROM subscriptions WHERE id = ?`,
			subscriptionID).Scan(&sub.ID, &sub.UserID, &sub.Name, &amount, &sub.Category, &sub.ChargeDay, &next, &active)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: subscription %d", ErrNotFound, subscriptionID)
		}
		if err != nil {
			return fmt.Errorf("lookup subscription: %w", err)
		}
		if active == 0 {
			return fmt.Errorf("%w: subscription %d", ErrNotFound, subscriptionID)
		}
		sub.Amount = Cents(amount)
		sub.Active = true

		current, err := time.Parse(DateLayout, next)
		if err != nil {
			return fmt.Errorf("parse next charge date: %w", err)
		}

		description := "Subscription: " + sub.Name
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO movements (user_id, date, kind, category, amount, description, month, year)
			 VALUES (?, ?, 'expense', ?, ?, ?, ?, ?)`,
			sub.UserID, today.Format(DateLayout), sub.Category, amount, description, month, year); err != nil {
			return fmt.Errorf("insert subscription charge: %w", err)
		}

		sub.NextCharge = advanceChargeDate(current, sub.ChargeDay)
		if _, err := tx.ExecContext(ctx,
			`UPDATE subscriptions SET next_charge_date = ? WHERE id = ?`,
			sub.NextCharge.Format(DateLayout), sub.ID); err != nil {
			return fmt.Errorf("advance subscription: %w", err)
		}

		if err := invalidateMonthlySummaryTx(ctx, tx, sub.UserID, month, year); err != nil {
			return err
		}
		return refreshDailySummaryTx(ctx, tx, sub.UserID, today)
	})
	l.metrics.RecordWrite("subscription", err)
	if err != nil {
		return Subscription{}, err
	}

	l.log.Info("subscription charged", "subscription_id", sub.ID, "user_id", sub.UserID,
		"name", sub.Name, "next_charge", sub.NextCharge.Format(DateLayout))
	return sub, nil
}

// DeactivateSubscription cancels a subscription owned by the user.
func (l *Ledger) DeactivateSubscription(ctx context.Context, subscriptionID, userID int64) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE subscriptions SET active = 0 WHERE id = ? AND user_id = ? AND active = 1`,
		subscriptionID, userID)
	l.metrics.RecordWrite("subscription", err)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: subscription %d", ErrNotFound, subscriptionID)
	}
	return nil
}

// nextChargeDate picks the first charge: this month when the day is still
// ahead of today, otherwise next month. The day clamps to month length.
func nextChargeDate(today time.Time, chargeDay int) time.Time {
	year, month := today.Year(), today.Month()
	if chargeDay <= today.Day() {
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return clampedDate(year, month, chargeDay, today.Location())
}

// advanceChargeDate moves a charge date one calendar month forward, again
// clamping the day (day 31 in February becomes the 28th or 29th).
func advanceChargeDate(current time.Time, chargeDay int) time.Time {
	year, month := current.Year(), current.Month()+1
	if month > time.December {
		month = time.January
		year++
	}
	return clampedDate(year, month, chargeDay, current.Location())
}

func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func scanSubscriptions(rows *sql.Rows) ([]Subscription, error) {
	var out []Subscription
	for rows.Next() {
		var s Subscription
		var amount int64
		var next string
		var active int
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &amount, &s.Category, &s.ChargeDay, &next, &active); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		parsed, err := time.Parse(DateLayout, next)
		if err != nil {
			return nil, fmt.Errorf("parse next charge date: %w", err)
		}
		s.Amount = Cents(amount)
		s.NextCharge = parsed
		s.Active = active != 0
		out = append(out, s)
	}
	return out, rows.Err()
}
