package ledger

import (
	"context"
	"fmt"
	"time"
)

// PruneRetained deletes dispatched reminders, processed notifications and
// stale current-period summary rows older than the retention window, then
// reclaims file space. Runs from the weekly maintenance task.
func (l *Ledger) PruneRetained(ctx context.Context, retention time.Duration) error {
	cutoff := l.now().UTC().Add(-retention).Format("2006-01-02 15:04:05")

	if _, err := l.store.DB().ExecContext(ctx,
		`DELETE FROM reminders WHERE active = 0 AND created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune reminders: %w", err)
	}
	if _, err := l.store.DB().ExecContext(ctx,
		`DELETE FROM notifications WHERE processed = 1 AND created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune notifications: %w", err)
	}
	if _, err := l.store.DB().ExecContext(ctx,
		`DELETE FROM daily_summary WHERE refreshed_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune daily summaries: %w", err)
	}

	if err := l.store.Vacuum(ctx); err != nil {
		return err
	}
	l.log.Info("retention maintenance complete", "cutoff", cutoff)
	return nil
}

// Stats returns row counts per table for the health surface.
func (l *Ledger) Stats(ctx context.Context) (map[string]int, error) {
	return l.store.Stats(ctx)
}
