package ledger

import (
	"context"
	"fmt"
)

// Default category sets seeded when a user has no categories of a kind.
var (
	defaultIncomeCategories  = []string{"Salario", "Freelance", "Negocio", "Inversiones", "Otros"}
	defaultExpenseCategories = []string{"Vivienda", "Comida", "Transporte", "Ropa", "Salud", "Entretenimiento", "Educación", "Servicios"}
)

const maxCategoriesPerKind = 50

// CategoryTotal pairs a category with its summed movements for a period.
type CategoryTotal struct {
	Name  string
	Total Cents
}

// AddCategory inserts a category if it does not already exist. Returns true
// only when a row was actually inserted.
func (l *Ledger) AddCategory(ctx context.Context, userID int64, name string, kind Kind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: unknown kind %q", ErrValidation, kind)
	}
	res, err := l.store.DB().ExecContext(ctx,
		`INSERT INTO categories (user_id, name, kind) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, name, kind) DO NOTHING`,
		userID, name, string(kind))
	l.metrics.RecordWrite("category", err)
	if err != nil {
		return false, fmt.Errorf("add category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add category: %w", err)
	}
	return n > 0, nil
}

// ListCategories returns active category names of one kind, alphabetically.
func (l *Ledger) ListCategories(ctx context.Context, userID int64, kind Kind) ([]string, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT name FROM categories
		 WHERE user_id = ? AND kind = ? AND active = 1
		 ORDER BY name LIMIT ?`,
		userID, string(kind), maxCategoriesPerKind)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListCategoriesWithTotals joins active categories against summed movements
// for a month, largest spenders first.
func (l *Ledger) ListCategoriesWithTotals(ctx context.Context, userID int64, kind Kind, month, year int) ([]CategoryTotal, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT c.name, COALESCE(SUM(m.amount), 0) AS total
		 FROM categories c
		 LEFT JOIN movements m
		   ON m.user_id = c.user_id AND m.category = c.name AND m.kind = c.kind
		  AND m.month = ? AND m.year = ?
		 WHERE c.user_id = ? AND c.kind = ? AND c.active = 1
		 GROUP BY c.name
		 ORDER BY total DESC, c.name
		 LIMIT ?`,
		month, year, userID, string(kind), maxCategoriesPerKind)
	if err != nil {
		return nil, fmt.Errorf("list category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		var total int64
		if err := rows.Scan(&ct.Name, &total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Total = Cents(total)
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

// DeactivateCategory soft-deletes a category. Categories are never removed
// because movements snapshot their name.
func (l *Ledger) DeactivateCategory(ctx context.Context, userID int64, name string, kind Kind) error {
	res, err := l.store.DB().ExecContext(ctx,
		`UPDATE categories SET active = 0
		 WHERE user_id = ? AND name = ? AND kind = ? AND active = 1`,
		userID, name, string(kind))
	l.metrics.RecordWrite("category", err)
	if err != nil {
		return fmt.Errorf("deactivate category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: category %q", ErrNotFound, name)
	}
	return nil
}

// EnsureDefaultCategories seeds the stock category set for a kind when the
// user has none. Returns the active list afterwards.
func (l *Ledger) EnsureDefaultCategories(ctx context.Context, userID int64, kind Kind) ([]string, error) {
	existing, err := l.ListCategories(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	defaults := defaultExpenseCategories
	if kind == KindIncome {
		defaults = defaultIncomeCategories
	}
	for _, name := range defaults {
		if _, err := l.AddCategory(ctx, userID, name, kind); err != nil {
			return nil, err
		}
	}
	return l.ListCategories(ctx, userID, kind)
}

// FirstCategory returns the alphabetically first active category of a kind,
// creating "Otros" when the user has none. Backs the fast-path commands.
func (l *Ledger) FirstCategory(ctx context.Context, userID int64, kind Kind) (string, error) {
	names, err := l.ListCategories(ctx, userID, kind)
	if err != nil {
		return "", err
	}
	if len(names) > 0 {
		return names[0], nil
	}
	if _, err := l.AddCategory(ctx, userID, "Otros", kind); err != nil {
		return "", err
	}
	return "Otros", nil
}
