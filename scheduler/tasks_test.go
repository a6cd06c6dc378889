package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finbot/dialog"
	"finbot/ledger"
	"finbot/storage"
)

const testUser int64 = 42

func newTaskLedger(t *testing.T, at time.Time) *ledger.Ledger {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "tasks.db"), 5*time.Second, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return ledger.New(store, nil).WithClock(func() time.Time { return at })
}

func mustAmount(t *testing.T, raw string) ledger.Cents {
	t.Helper()
	c, err := ledger.ParseAmount(raw, false)
	require.NoError(t, err)
	return c
}

func TestProcessDueSubscriptionsEnqueuesCharge(t *testing.T) {
	created := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	l := newTaskLedger(t, created)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, mustAmount(t, "100000")))
	_, err := l.AddSubscription(ctx, testUser, "Netflix", mustAmount(t, "15000"), "Entretenimiento", 10)
	require.NoError(t, err)

	chargeDay := time.Date(2024, time.April, 10, 9, 0, 0, 0, time.UTC)
	l.WithClock(func() time.Time { return chargeDay })

	require.NoError(t, processDueSubscriptions(ctx, l, slog.Default()))

	pending, err := l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ledger.NotificationSubscriptionCharge, pending[0].Kind)

	movements, err := l.Movements(ctx, testUser, 4, 2024, ledger.KindExpense)
	require.NoError(t, err)
	require.Len(t, movements, 1)

	// Re-running finds nothing due.
	require.NoError(t, processDueSubscriptions(ctx, l, slog.Default()))
	pending, err = l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestDispatchDueRemindersMarksInactive(t *testing.T) {
	now := time.Date(2024, time.March, 20, 9, 0, 0, 0, time.UTC)
	l := newTaskLedger(t, now)
	ctx := context.Background()

	_, err := l.AddReminder(ctx, testUser, "Pagar tarjeta", 0,
		time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.NoError(t, dispatchDueReminders(ctx, l, slog.Default()))

	pending, err := l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ledger.NotificationReminderDue, pending[0].Kind)

	active, err := l.ActiveReminders(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestMonthlyBroadcastOnlyOnDayOne(t *testing.T) {
	march := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	l := newTaskLedger(t, march)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, mustAmount(t, "1000")))
	require.NoError(t, l.MarkConfigured(ctx, testUser))
	require.NoError(t, l.AddMovement(ctx, testUser, ledger.KindExpense, "Comida", mustAmount(t, "200"), ""))

	midMonth := func() time.Time { return march }
	require.NoError(t, broadcastMonthlySummaries(ctx, l, midMonth))
	pending, err := l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Empty(t, pending, "no broadcast mid-month")

	firstOfApril := func() time.Time { return time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, broadcastMonthlySummaries(ctx, l, firstOfApril))
	pending, err = l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ledger.NotificationMonthlySummary, pending[0].Kind)
	require.Contains(t, pending[0].Message, "03/2024")
}

func TestSnapshotBackupEmptyAndPopulated(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	l := newTaskLedger(t, now)
	ctx := context.Background()

	require.NoError(t, snapshotBackup(ctx, l, testUser))
	pending, err := l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Contains(t, pending[0].Message, "Nothing to back up")
	require.NoError(t, l.MarkProcessed(ctx, pending[0].ID))

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))
	require.NoError(t, l.AddMovement(ctx, testUser, ledger.KindExpense, "Comida", mustAmount(t, "50"), ""))

	require.NoError(t, snapshotBackup(ctx, l, testUser))
	pending, err = l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ledger.NotificationBackupReady, pending[0].Kind)
	require.Contains(t, pending[0].Message, "1 movements")
}

func TestBuildTasksTable(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	l := newTaskLedger(t, now)
	states := dialog.NewStateStore(100)

	cfg := TaskConfig{AuthorizedUserID: testUser, BackupEnabled: true, RetentionDays: 7, StateTTL: 2 * time.Hour}
	tasks := BuildTasks(l, states, cfg, nil)
	require.Len(t, tasks, 7)

	names := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		names[task.Name] = true
	}
	require.True(t, names["backup-snapshot"])

	cfg.BackupEnabled = false
	tasks = BuildTasks(l, states, cfg, nil)
	require.Len(t, tasks, 6)
}
