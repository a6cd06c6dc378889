package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"finbot/dialog"
	"finbot/ledger"
)

// TaskConfig carries the knobs the task table needs.
type TaskConfig struct {
	AuthorizedUserID int64
	BackupEnabled    bool
	RetentionDays    int
	StateTTL         time.Duration
}

// BuildTasks assembles the standard task table: subscription charges and
// reminder dispatch hourly, the monthly broadcast and backup daily, weekly
// retention, plus in-memory housekeeping.
func BuildTasks(l *ledger.Ledger, states *dialog.StateStore, cfg TaskConfig, log *slog.Logger) []Task {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")

	tasks := []Task{
		{
			Name: "process-due-subscriptions",
			Due:  Every(time.Hour),
			Run:  func(ctx context.Context) error { return processDueSubscriptions(ctx, l, log) },
		},
		{
			Name: "dispatch-due-reminders",
			Due:  Every(time.Hour),
			Run:  func(ctx context.Context) error { return dispatchDueReminders(ctx, l, log) },
		},
		{
			Name: "monthly-summary-broadcast",
			Due:  DailyAt(8, 0),
			Run:  func(ctx context.Context) error { return broadcastMonthlySummaries(ctx, l, time.Now) },
		},
		{
			Name: "retention-vacuum",
			Due:  WeeklyAt(time.Sunday, 3, 0),
			Run: func(ctx context.Context) error {
				return l.PruneRetained(ctx, time.Duration(cfg.RetentionDays)*24*time.Hour)
			},
		},
	}
	if cfg.BackupEnabled {
		tasks = append(tasks, Task{
			Name: "backup-snapshot",
			Due:  DailyAt(2, 0),
			Run:  func(ctx context.Context) error { return snapshotBackup(ctx, l, cfg.AuthorizedUserID) },
		})
	}
	tasks = append(tasks,
		Task{
			Name: "state-gc",
			Due:  Every(2 * time.Hour),
			Run: func(context.Context) error {
				if removed := states.SweepExpired(cfg.StateTTL); removed > 0 {
					log.Info("expired dialog states swept", "removed", removed)
				}
				return nil
			},
		},
		Task{
			Name: "memory-hint",
			Due:  Every(4 * time.Hour),
			Run: func(context.Context) error {
				debug.FreeOSMemory()
				return nil
			},
		},
	)
	return tasks
}

func processDueSubscriptions(ctx context.Context, l *ledger.Ledger, log *slog.Logger) error {
	due, err := l.DueSubscriptions(ctx)
	if err != nil {
		return err
	}
	for _, sub := range due {
		processed, err := l.ProcessSubscription(ctx, sub.ID)
		if err != nil {
			// Keep charging the rest; this one retries next hour.
			log.Error("subscription charge failed", "subscription_id", sub.ID, "error", err)
			continue
		}
		message := fmt.Sprintf("🔁 Charged %s: %s (next charge %s)",
			processed.Name, processed.Amount, processed.NextCharge.Format("02/01/2006"))
		payload := map[string]string{
			"name":        processed.Name,
			"amount":      processed.Amount.String(),
			"next_charge": processed.NextCharge.Format("2006-01-02"),
		}
		if err := l.Enqueue(ctx, processed.UserID, ledger.NotificationSubscriptionCharge, message, payload); err != nil {
			log.Error("subscription notification enqueue failed", "subscription_id", sub.ID, "error", err)
		}
	}
	return nil
}

func dispatchDueReminders(ctx context.Context, l *ledger.Ledger, log *slog.Logger) error {
	due, err := l.DueReminders(ctx)
	if err != nil {
		return err
	}
	for _, rem := range due {
		message := "⏰ Reminder: " + rem.Description
		if rem.Amount > 0 {
			message += fmt.Sprintf(" (%s)", rem.Amount)
		}
		payload := map[string]string{
			"description": rem.Description,
			"due_date":    rem.DueDate.Format("2006-01-02"),
		}
		if err := l.Enqueue(ctx, rem.UserID, ledger.NotificationReminderDue, message, payload); err != nil {
			log.Error("reminder notification enqueue failed", "reminder_id", rem.ID, "error", err)
			continue
		}
		if err := l.MarkReminderDispatched(ctx, rem.ID); err != nil {
			log.Error("reminder dispatch mark failed", "reminder_id", rem.ID, "error", err)
		}
	}
	return nil
}

// broadcastMonthlySummaries runs every morning but only acts on the first
// of the month, summarizing the month that just closed.
func broadcastMonthlySummaries(ctx context.Context, l *ledger.Ledger, now func() time.Time) error {
	today := now()
	if today.Day() != 1 {
		return nil
	}
	prev := today.AddDate(0, -1, 0)
	month, year := int(prev.Month()), prev.Year()

	principals, err := l.ConfiguredPrincipals(ctx)
	if err != nil {
		return err
	}
	for _, userID := range principals {
		summary, err := l.Summary(ctx, userID, month, year)
		if err != nil {
			return err
		}
		message := dialog.FormatMonthSummary(summary)
		payload := map[string]string{
			"month":   fmt.Sprintf("%02d", month),
			"year":    fmt.Sprintf("%d", year),
			"income":  summary.Income.String(),
			"expense": summary.Expense.String(),
			"saving":  summary.Saving.String(),
		}
		if err := l.Enqueue(ctx, userID, ledger.NotificationMonthlySummary, message, payload); err != nil {
			return err
		}
	}
	return nil
}

func snapshotBackup(ctx context.Context, l *ledger.Ledger, userID int64) error {
	var buf bytes.Buffer
	rows, err := l.ExportCSV(ctx, userID, &buf)
	if err != nil {
		return err
	}
	if rows == 0 {
		return l.Enqueue(ctx, userID, ledger.NotificationBackupReady,
			"📦 Nothing to back up yet.", map[string]any{"rows": 0})
	}
	payload := map[string]any{
		"rows":     rows,
		"filename": fmt.Sprintf("finanzas_%s.csv", time.Now().Format("20060102")),
		"csv":      buf.String(),
	}
	message := fmt.Sprintf("📦 Backup ready: %d movements.", rows)
	return l.Enqueue(ctx, userID, ledger.NotificationBackupReady, message, payload)
}
