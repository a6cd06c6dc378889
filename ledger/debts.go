package ledger

import (
	"context"
	"fmt"
)

// Debt records money owed in either direction. Debts never touch the
// balance; the amount is stored as a magnitude with the direction alongside.
type Debt struct {
	ID           int64
	UserID       int64
	Counterparty string
	Amount       Cents
	Direction    Direction
	Description  string
	Active       bool
}

// Signed reapplies the direction for presentation: positive when the
// counterparty owes the principal, negative the other way around.
func (d Debt) Signed() Cents {
	if d.Direction == OwedByPrincipal {
		return -d.Amount
	}
	return d.Amount
}

// AddDebt records a debt with the given direction.
func (l *Ledger) AddDebt(ctx context.Context, userID int64, counterparty string, amount Cents, direction Direction, description string) (Debt, error) {
	if direction != OwedToPrincipal && direction != OwedByPrincipal {
		return Debt{}, fmt.Errorf("%w: unknown direction %q", ErrValidation, direction)
	}
	if amount < MinAmount || amount > MaxAmount {
		return Debt{}, fmt.Errorf("%w: amount %s out of range", ErrValidation, amount)
	}
	description = truncateDescription(description)

	res, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO debts (user_id, counterparty, amount, direction, description)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, counterparty, int64(amount), string(direction), description)
	l.metrics.RecordWrite("debt", err)
	if err != nil {
		return Debt{}, fmt.Errorf("add debt: %w", err)
	}

	debt := Debt{
		UserID:       userID,
		Counterparty: counterparty,
		Amount:       amount,
		Direction:    direction,
		Description:  description,
		Active:       true,
	}
	debt.ID, _ = res.LastInsertId()
	return debt, nil
}

// ActiveDebts lists open debts for the user.
func (l *Ledger) ActiveDebts(ctx context.Context, userID int64) ([]Debt, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, user_id, counterparty, amount, direction, description, active
		 FROM debts WHERE user_id = ? AND active = 1 ORDER BY counterparty, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var out []Debt
	for rows.Next() {
		var d Debt
		var amount int64
		var direction string
		var active int
		if err := rows.Scan(&d.ID, &d.UserID, &d.Counterparty, &amount, &direction, &d.Description, &active); err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		d.Amount = Cents(amount)
		d.Direction = Direction(direction)
		d.Active = active != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDebtSettled closes a debt owned by the user.
func (l *Ledger) MarkDebtSettled(ctx context.Context, debtID, userID int64) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE debts SET active = 0 WHERE id = ? AND user_id = ? AND active = 1`,
		debtID, userID)
	l.metrics.RecordWrite("debt", err)
	if err != nil {
		return fmt.Errorf("settle debt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: debt %d", ErrNotFound, debtID)
	}
	return nil
}
