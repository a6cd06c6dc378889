package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOutboxDrainOrderAndMarkProcessed(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)
	ctx := context.Background()

	require.NoError(t, l.Enqueue(ctx, testUser, NotificationReminderDue, "first", nil))
	require.NoError(t, l.Enqueue(ctx, testUser, NotificationReminderDue, "second", nil))

	pending, err := l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, "first", pending[0].Message)
	require.Equal(t, "second", pending[1].Message)
	require.NotEmpty(t, pending[0].DedupKey)
	require.NotEqual(t, pending[0].DedupKey, pending[1].DedupKey)

	require.NoError(t, l.MarkProcessed(ctx, pending[0].ID))

	pending, err = l.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "second", pending[0].Message)

	// Marking twice reports not found; the row is already processed.
	require.ErrorIs(t, l.MarkProcessed(ctx, 1), ErrNotFound)

	count, err := l.PendingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestReminderDispatchLifecycle(t *testing.T) {
	now := time.Date(2024, time.March, 20, 8, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)
	ctx := context.Background()

	rem, err := l.AddReminder(ctx, testUser, "Pagar tarjeta", 0, time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	due, err := l.DueReminders(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "Pagar tarjeta", due[0].Description)

	require.NoError(t, l.MarkReminderDispatched(ctx, rem.ID))

	due, err = l.DueReminders(ctx)
	require.NoError(t, err)
	require.Empty(t, due)

	active, err := l.ActiveReminders(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, active)
}
