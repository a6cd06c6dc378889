package dialog

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finbot/ledger"
	"finbot/storage"
)

const testUser int64 = 42

func newTestMachine(t *testing.T, at time.Time) (*Machine, *ledger.Ledger, *StateStore) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "dialog.db"), 5*time.Second, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := func() time.Time { return at }
	l := ledger.New(store, nil).WithClock(clock)
	states := NewStateStore(100)
	m := NewMachine(l, states, nil).WithClock(clock)
	return m, l, states
}

func TestSetupFlow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, states := newTestMachine(t, now)
	ctx := context.Background()

	reply := m.Start(ctx, testUser)
	require.Contains(t, reply.Text, "balance")

	st, ok := states.Get(testUser)
	require.True(t, ok)
	require.Equal(t, StepSetupBalance, st.Step)

	reply = m.HandleText(ctx, testUser, "100000")
	require.Contains(t, reply.Text, "✅")
	require.NotEmpty(t, reply.Buttons)

	_, ok = states.Get(testUser)
	require.False(t, ok, "state must clear on commit")

	balance, err := l.CurrentBalance(ctx, testUser)
	require.NoError(t, err)
	require.Equal(t, "100000.00", balance.String())

	configured, err := l.IsConfigured(ctx, testUser)
	require.NoError(t, err)
	require.True(t, configured)

	// A configured user gets the menu, not setup.
	reply = m.Start(ctx, testUser)
	require.NotEmpty(t, reply.Buttons)
	_, ok = states.Get(testUser)
	require.False(t, ok)
}

func TestAddExpenseFlowWithNewCategory(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, states := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))

	reply := m.HandleCallback(ctx, testUser, "add_expense")
	require.Contains(t, reply.Text, "category")

	reply = m.HandleCallback(ctx, testUser, "new_cat_expense")
	require.Contains(t, reply.Text, "new category")

	reply = m.HandleText(ctx, testUser, "Comida")
	require.Contains(t, reply.Text, "Amount")

	// Invalid amount keeps the step.
	reply = m.HandleText(ctx, testUser, "abc")
	require.Contains(t, reply.Text, "❌")
	st, ok := states.Get(testUser)
	require.True(t, ok)
	require.Equal(t, StepMoveAmount, st.Step)

	reply = m.HandleText(ctx, testUser, "5000")
	require.Contains(t, reply.Text, "Description")

	reply = m.HandleText(ctx, testUser, "almuerzo")
	require.Contains(t, reply.Text, "✅")

	movements, err := l.Movements(ctx, testUser, 0, 0, ledger.KindExpense)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, "Comida", movements[0].Category)
	require.Equal(t, "5000.00", movements[0].Amount.String())
	require.Equal(t, "almuerzo", movements[0].Description)
}

func TestAddIncomeFlowSelectExistingCategorySkipDescription(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))
	_, err := l.AddCategory(ctx, testUser, "Salario", ledger.KindIncome)
	require.NoError(t, err)

	m.HandleCallback(ctx, testUser, "add_income")
	m.HandleCallback(ctx, testUser, "select_cat_income_Salario")
	m.HandleText(ctx, testUser, "1000")
	reply := m.HandleText(ctx, testUser, "omitir")
	require.Contains(t, reply.Text, "✅")

	movements, err := l.Movements(ctx, testUser, 0, 0, ledger.KindIncome)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Empty(t, movements[0].Description)
}

func TestSubscriptionFlow(t *testing.T) {
	now := time.Date(2024, time.March, 12, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))

	m.HandleCallback(ctx, testUser, "add_subscription")
	m.HandleText(ctx, testUser, "Netflix")
	reply := m.HandleText(ctx, testUser, "15000")
	require.Contains(t, reply.Text, "category")
	require.NotEmpty(t, reply.Buttons, "default expense categories must be offered")

	m.HandleCallback(ctx, testUser, "subscription_cat_Entretenimiento")
	reply = m.HandleText(ctx, testUser, "10")
	require.Contains(t, reply.Text, "✅")
	require.Contains(t, reply.Text, "10/04/2024")

	subs, err := l.ActiveSubscriptions(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "Netflix", subs[0].Name)
	require.Equal(t, "Entretenimiento", subs[0].Category)
}

func TestReminderFlowShortDate(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	m.HandleCallback(ctx, testUser, "add_reminder")
	m.HandleText(ctx, testUser, "Pagar tarjeta")
	reply := m.HandleText(ctx, testUser, "15/03")
	require.Contains(t, reply.Text, "15/03/2024")

	reminders, err := l.ActiveReminders(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	require.Equal(t, "2024-03-15", reminders[0].DueDate.Format("2006-01-02"))
}

func TestDebtFlow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	m.HandleCallback(ctx, testUser, "add_debt")
	m.HandleText(ctx, testUser, "Ana")
	m.HandleCallback(ctx, testUser, "debt_type_owed_to")
	reply := m.HandleText(ctx, testUser, "150")
	require.Contains(t, reply.Text, "Ana owes you")

	debts, err := l.ActiveDebts(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	require.Equal(t, ledger.OwedToPrincipal, debts[0].Direction)
}

func TestAlertFlow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	m.HandleCallback(ctx, testUser, "add_alert")
	m.HandleCallback(ctx, testUser, "alert_type_daily")
	reply := m.HandleText(ctx, testUser, "10000")
	require.Contains(t, reply.Text, "✅")

	alerts, err := l.ActiveAlerts(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, ledger.ScopeDaily, alerts[0].Scope)
	require.Equal(t, "10000.00", alerts[0].Threshold.String())
}

func TestCancelReturnsToMenuAndClearsState(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, _, states := newTestMachine(t, now)
	ctx := context.Background()

	m.HandleCallback(ctx, testUser, "add_debt")
	_, ok := states.Get(testUser)
	require.True(t, ok)

	reply := m.HandleCallback(ctx, testUser, "cancel")
	require.NotEmpty(t, reply.Buttons)
	_, ok = states.Get(testUser)
	require.False(t, ok)
}

func TestFastPathMovement(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))

	reply := m.FastPathMovement(ctx, testUser, ledger.KindExpense, "2500", "taxi")
	require.Contains(t, reply.Text, "✅")
	require.Contains(t, reply.Text, "Otros")

	reply = m.FastPathMovement(ctx, testUser, ledger.KindExpense, "nope", "")
	require.Contains(t, reply.Text, "❌")
}

func TestHistoryMenuAndMovementDeletion(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))
	require.NoError(t, l.AddMovement(ctx, testUser, ledger.KindExpense, "Comida", 500000, "almuerzo"))

	reply := m.HandleCallback(ctx, testUser, "menu_history")
	require.Contains(t, reply.Text, "review")
	require.NotEmpty(t, reply.Buttons)

	reply = m.HandleCallback(ctx, testUser, "view_movements")
	require.Contains(t, reply.Text, "Comida")
	require.Contains(t, reply.Text, "almuerzo")
	require.True(t, strings.HasPrefix(reply.Buttons[0][0].Data, "del_move_"))

	reply = m.HandleCallback(ctx, testUser, reply.Buttons[0][0].Data)
	require.Contains(t, reply.Text, "deleted")

	movements, err := l.Movements(ctx, testUser, 0, 0, "")
	require.NoError(t, err)
	require.Empty(t, movements)

	reply = m.HandleCallback(ctx, testUser, "view_movements")
	require.Contains(t, reply.Text, "No movements")
}

func TestSubscriptionViewAndCancel(t *testing.T) {
	now := time.Date(2024, time.March, 12, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.CreatePrincipal(ctx, testUser, 0))
	sub, err := l.AddSubscription(ctx, testUser, "Netflix", 1500000, "Entretenimiento", 10)
	require.NoError(t, err)

	reply := m.HandleCallback(ctx, testUser, "view_subscriptions")
	require.Contains(t, reply.Text, "Netflix")
	require.Contains(t, reply.Text, "10/04/2024")

	reply = m.HandleCallback(ctx, testUser, reply.Buttons[0][0].Data)
	require.Contains(t, reply.Text, "cancelled")

	subs, err := l.ActiveSubscriptions(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, subs)

	// The button no longer resolves once the subscription is gone.
	reply = m.HandleCallback(ctx, testUser, "sub_off_"+strconv.FormatInt(sub.ID, 10))
	require.Contains(t, reply.Text, "❌")
}

func TestDebtViewAndSettle(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	_, err := l.AddDebt(ctx, testUser, "Ana", 15000, ledger.OwedToPrincipal, "")
	require.NoError(t, err)

	reply := m.HandleCallback(ctx, testUser, "view_debts")
	require.Contains(t, reply.Text, "Ana owes you")

	reply = m.HandleCallback(ctx, testUser, reply.Buttons[0][0].Data)
	require.Contains(t, reply.Text, "settled")

	debts, err := l.ActiveDebts(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, debts)
}

func TestAlertViewAndRemoval(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	require.NoError(t, l.UpsertAlert(ctx, testUser, ledger.ScopeDaily, 1000000))

	reply := m.HandleCallback(ctx, testUser, "view_alerts")
	require.Contains(t, reply.Text, "daily limit")

	reply = m.HandleCallback(ctx, testUser, reply.Buttons[0][0].Data)
	require.Contains(t, reply.Text, "removed")

	alerts, err := l.ActiveAlerts(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, alerts)
}

func TestReminderViewListsPending(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	m, l, _ := newTestMachine(t, now)
	ctx := context.Background()

	reply := m.HandleCallback(ctx, testUser, "view_reminders")
	require.Contains(t, reply.Text, "No pending reminders")

	_, err := l.AddReminder(ctx, testUser, "Pagar tarjeta", 0, now.AddDate(0, 0, 14))
	require.NoError(t, err)

	reply = m.HandleCallback(ctx, testUser, "view_reminders")
	require.Contains(t, reply.Text, "Pagar tarjeta")
	require.Contains(t, reply.Text, "15/03/2024")
}

func TestUnknownCallbackIsRejected(t *testing.T) {
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	m, _, _ := newTestMachine(t, now)

	reply := m.HandleCallback(context.Background(), testUser, "bogus_thing")
	require.Contains(t, reply.Text, "❌")
}
