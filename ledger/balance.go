package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DaySummary holds per-kind totals for one calendar date.
type DaySummary struct {
	Date    time.Time
	Income  Cents
	Expense Cents
	Saving  Cents
	Balance Cents
}

// MonthSummary holds per-kind totals for one month plus the acting balance.
type MonthSummary struct {
	Month   int
	Year    int
	Income  Cents
	Expense Cents
	Saving  Cents
	Balance Cents
}

// currentMonthCacheTTL is how long a cached summary for the in-progress
// month stays valid. Past months never change, so their rows never expire.
const currentMonthCacheTTL = time.Hour

// querier is the read/write surface shared by *sql.DB and *sql.Tx, so the
// aggregation helpers can run standalone or inside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CurrentBalance computes initial_balance plus the signed sum of every
// movement in one query.
func (l *Ledger) CurrentBalance(ctx context.Context, userID int64) (Cents, error) {
	return currentBalance(ctx, l.store.DB(), userID)
}

func currentBalance(ctx context.Context, q querier, userID int64) (Cents, error) {
	var balance int64
	err := q.QueryRowContext(ctx,
		`SELECT u.initial_balance + COALESCE(
		    (SELECT SUM(CASE WHEN kind = 'income' THEN amount ELSE -amount END)
		     FROM movements WHERE user_id = u.user_id), 0)
		 FROM users u WHERE u.user_id = ?`,
		userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: principal %d", ErrNotFound, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("current balance: %w", err)
	}
	return Cents(balance), nil
}

// DailyBalance returns per-kind totals for the given date (today when zero)
// alongside the full current balance.
func (l *Ledger) DailyBalance(ctx context.Context, userID int64, date time.Time) (DaySummary, error) {
	if date.IsZero() {
		date = l.today()
	}
	summary := DaySummary{Date: date}

	var income, expense, saving int64
	err := l.store.DB().QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'saving' THEN amount END), 0)
		 FROM movements WHERE user_id = ? AND date = ?`,
		userID, date.Format(DateLayout)).Scan(&income, &expense, &saving)
	if err != nil {
		return DaySummary{}, fmt.Errorf("daily totals: %w", err)
	}
	summary.Income = Cents(income)
	summary.Expense = Cents(expense)
	summary.Saving = Cents(saving)

	balance, err := l.CurrentBalance(ctx, userID)
	if err != nil {
		return DaySummary{}, err
	}
	summary.Balance = balance
	return summary, nil
}

// Summary returns per-kind totals for a month. Month and year default to
// the current period when zero. Past months are served from cache when
// present; the current month's cache expires after an hour.
func (l *Ledger) Summary(ctx context.Context, userID int64, month, year int) (MonthSummary, error) {
	today := l.today()
	if month == 0 {
		month = int(today.Month())
	}
	if year == 0 {
		year = today.Year()
	}
	if month < 1 || month > 12 {
		return MonthSummary{}, fmt.Errorf("%w: month %d", ErrValidation, month)
	}

	if cached, ok, err := l.cachedSummary(ctx, userID, month, year, today); err != nil {
		return MonthSummary{}, err
	} else if ok {
		return cached, nil
	}

	// Recompute and cache atomically so an interleaved write's invalidation
	// cannot be overwritten by a stale row.
	var summary MonthSummary
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		summary, err = aggregateMonth(ctx, tx, userID, month, year)
		if err != nil {
			return err
		}
		return cacheSummary(ctx, tx, userID, summary)
	})
	if err != nil {
		return MonthSummary{}, err
	}
	return summary, nil
}

func aggregateMonth(ctx context.Context, q querier, userID int64, month, year int) (MonthSummary, error) {
	summary := MonthSummary{Month: month, Year: year}

	var income, expense, saving int64
	err := q.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'saving' THEN amount END), 0)
		 FROM movements WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year).Scan(&income, &expense, &saving)
	if err != nil {
		return MonthSummary{}, fmt.Errorf("month totals: %w", err)
	}
	summary.Income = Cents(income)
	summary.Expense = Cents(expense)
	summary.Saving = Cents(saving)

	balance, err := currentBalance(ctx, q, userID)
	if err != nil {
		return MonthSummary{}, err
	}
	summary.Balance = balance
	return summary, nil
}

func (l *Ledger) cachedSummary(ctx context.Context, userID int64, month, year int, today time.Time) (MonthSummary, bool, error) {
	var income, expense, saving, balance int64
	var refreshed string
	err := l.store.DB().QueryRowContext(ctx,
		`SELECT income_total, expense_total, saving_total, end_balance, refreshed_at
		 FROM monthly_summary WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year).Scan(&income, &expense, &saving, &balance, &refreshed)
	if errors.Is(err, sql.ErrNoRows) {
		return MonthSummary{}, false, nil
	}
	if err != nil {
		return MonthSummary{}, false, fmt.Errorf("cached summary: %w", err)
	}

	current := month == int(today.Month()) && year == today.Year()
	if current {
		at, perr := time.Parse("2006-01-02 15:04:05", refreshed)
		if perr != nil || l.now().UTC().Sub(at) > currentMonthCacheTTL {
			return MonthSummary{}, false, nil
		}
	}
	return MonthSummary{
		Month: month, Year: year,
		Income: Cents(income), Expense: Cents(expense), Saving: Cents(saving),
		Balance: Cents(balance),
	}, true, nil
}

func cacheSummary(ctx context.Context, q querier, userID int64, s MonthSummary) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO monthly_summary (user_id, month, year, income_total, expense_total, saving_total, end_balance, refreshed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT(user_id, month, year) DO UPDATE SET
		    income_total = excluded.income_total,
		    expense_total = excluded.expense_total,
		    saving_total = excluded.saving_total,
		    end_balance = excluded.end_balance,
		    refreshed_at = excluded.refreshed_at`,
		userID, s.Month, s.Year, int64(s.Income), int64(s.Expense), int64(s.Saving), int64(s.Balance))
	return err
}

// invalidateMonthlySummaryTx drops the cached row for a period so the next
// read re-aggregates. Runs inside the write's transaction.
func invalidateMonthlySummaryTx(ctx context.Context, tx *sql.Tx, userID int64, month, year int) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM monthly_summary WHERE user_id = ? AND month = ? AND year = ?`,
		userID, month, year); err != nil {
		return fmt.Errorf("invalidate monthly summary: %w", err)
	}
	return nil
}

// refreshDailySummaryTx recomputes the daily totals row from the movements
// inside the same transaction, keeping it coherent with the write.
func refreshDailySummaryTx(ctx context.Context, tx *sql.Tx, userID int64, date time.Time) error {
	day := date.Format(DateLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO daily_summary (user_id, date, income_total, expense_total, saving_total, refreshed_at)
		 SELECT ?, ?,
		    COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'saving' THEN amount END), 0),
		    datetime('now')
		 FROM movements WHERE user_id = ? AND date = ?
		 ON CONFLICT(user_id, date) DO UPDATE SET
		    income_total = excluded.income_total,
		    expense_total = excluded.expense_total,
		    saving_total = excluded.saving_total,
		    refreshed_at = excluded.refreshed_at`,
		userID, day, userID, day); err != nil {
		return fmt.Errorf("refresh daily summary: %w", err)
	}
	return nil
}
