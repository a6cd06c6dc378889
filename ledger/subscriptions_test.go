package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddSubscriptionPicksNextMonth(t *testing.T) {
	// Created March 12 with charge day 10: the day already passed, so the
	// first charge is April 10.
	now := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)
	ctx := context.Background()

	sub, err := l.AddSubscription(ctx, testUser, "Netflix", mustAmount(t, "15000"), "Entretenimiento", 10)
	require.NoError(t, err)
	require.Equal(t, "2024-04-10", sub.NextCharge.Format(DateLayout))
}

func TestAddSubscriptionPicksCurrentMonth(t *testing.T) {
	now := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)

	sub, err := l.AddSubscription(context.Background(), testUser, "Gym", mustAmount(t, "8000"), "Salud", 20)
	require.NoError(t, err)
	require.Equal(t, "2024-03-20", sub.NextCharge.Format(DateLayout))
}

func TestSubscriptionDayClampedToFebruary(t *testing.T) {
	now := time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)

	sub, err := l.AddSubscription(context.Background(), testUser, "Hosting", mustAmount(t, "100"), "Servicios", 31)
	require.NoError(t, err)
	// 2024 is a leap year.
	require.Equal(t, "2024-02-29", sub.NextCharge.Format(DateLayout))
}

func TestProcessSubscriptionInsertsChargeAndAdvances(t *testing.T) {
	created := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	l := newTestLedger(t, created)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, mustAmount(t, "100000")))
	sub, err := l.AddSubscription(ctx, testUser, "Netflix", mustAmount(t, "15000"), "Entretenimiento", 10)
	require.NoError(t, err)

	chargeDay := time.Date(2024, time.April, 10, 9, 0, 0, 0, time.UTC)
	l.WithClock(func() time.Time { return chargeDay })

	processed, err := l.ProcessSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, "2024-05-10", processed.NextCharge.Format(DateLayout))

	movements, err := l.Movements(ctx, testUser, 4, 2024, KindExpense)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, "Subscription: Netflix", movements[0].Description)
	require.Equal(t, "Entretenimiento", movements[0].Category)
	require.Equal(t, "15000.00", movements[0].Amount.String())

	due, err := l.DueSubscriptions(ctx)
	require.NoError(t, err)
	require.Empty(t, due, "advanced subscription must not be due")
}

func TestProcessSubscriptionNotFoundAndInactive(t *testing.T) {
	now := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)
	ctx := context.Background()

	_, err := l.ProcessSubscription(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	sub, err := l.AddSubscription(ctx, testUser, "Netflix", mustAmount(t, "15000"), "Entretenimiento", 10)
	require.NoError(t, err)
	require.NoError(t, l.DeactivateSubscription(ctx, sub.ID, testUser))

	_, err = l.ProcessSubscription(ctx, sub.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDueSubscriptionsAcrossPrincipals(t *testing.T) {
	now := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	l := newTestLedger(t, now)
	ctx := context.Background()

	// Charge day 12 equals today, so next charge lands in April; rewind the
	// clock to force a due row instead.
	subA, err := l.AddSubscription(ctx, testUser, "Netflix", mustAmount(t, "15000"), "Entretenimiento", 12)
	require.NoError(t, err)
	_, err = l.AddSubscription(ctx, testUser+1, "Spotify", mustAmount(t, "5000"), "Entretenimiento", 12)
	require.NoError(t, err)

	l.WithClock(func() time.Time { return time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC) })
	due, err := l.DueSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, subA.ID, due[0].ID)
}

func TestAdvanceChargeDateDecemberRollover(t *testing.T) {
	current := time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC)
	next := advanceChargeDate(current, 15)
	require.Equal(t, "2025-01-15", next.Format(DateLayout))
}
