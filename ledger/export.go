package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

var exportHeader = []string{"Date", "Kind", "Category", "Amount", "Description", "Month", "Year"}

// ExportCSV streams the principal's full movement history as RFC 4180 CSV,
// newest first. The header is always written; the returned count is the
// number of data rows, so callers can tell an empty export apart.
func (l *Ledger) ExportCSV(ctx context.Context, userID int64, w io.Writer) (int, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT date, kind, category, amount, description, month, year
		 FROM movements WHERE user_id = ? ORDER BY date DESC, id DESC`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("export movements: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	count := 0
	for rows.Next() {
		var date, kind, category, description string
		var amount int64
		var month, year int
		if err := rows.Scan(&date, &kind, &category, &amount, &description, &month, &year); err != nil {
			return count, fmt.Errorf("scan export row: %w", err)
		}
		if parsed, perr := time.Parse(DateLayout, date); perr == nil {
			date = parsed.Format(DateLayout)
		}
		record := []string{
			date,
			kind,
			category,
			Cents(amount).String(),
			description,
			strconv.Itoa(month),
			strconv.Itoa(year),
		}
		if err := cw.Write(record); err != nil {
			return count, fmt.Errorf("write csv row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("flush csv: %w", err)
	}
	return count, nil
}
