package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"finbot/ledger"
)

// Button is one inline keyboard option. Data round-trips through the
// transport and comes back as a callback.
type Button struct {
	Label string
	Data  string
}

// Reply is the machine's transport-agnostic answer: text plus an optional
// inline keyboard laid out in rows.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Machine drives every multi-turn flow. Transitions are deterministic:
// given the current step and an input exactly one outcome applies, or the
// input is rejected and the step held.
type Machine struct {
	ledger *ledger.Ledger
	states *StateStore
	log    *slog.Logger
	now    func() time.Time
}

// NewMachine wires the dialog machine over the ledger and state store.
func NewMachine(l *ledger.Ledger, states *StateStore, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		ledger: l,
		states: states,
		log:    log.With("component", "dialog"),
		now:    time.Now,
	}
}

// WithClock overrides the machine clock. Intended for tests.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Start begins first-time setup or shows the main menu for a configured
// user.
func (m *Machine) Start(ctx context.Context, userID int64) Reply {
	configured, err := m.ledger.IsConfigured(ctx, userID)
	if err != nil {
		return m.failure(err)
	}
	if configured {
		m.states.Clear(userID)
		return m.mainMenu()
	}
	m.states.Set(userID, StepSetupBalance, Payload{})
	return Reply{Text: "👋 Welcome! Let's set up your ledger.\n\nEnter your current balance (0 is fine):"}
}

// HandleText advances the user's flow with a free-text message. Users with
// no active flow get the main menu.
func (m *Machine) HandleText(ctx context.Context, userID int64, text string) Reply {
	state, ok := m.states.Get(userID)
	if !ok || state.Step == StepNone {
		return m.mainMenu()
	}

	switch state.Step {
	case StepSetupBalance:
		return m.textSetupBalance(ctx, userID, text)
	case StepMoveNewCategory:
		return m.textNewCategory(ctx, userID, state, text)
	case StepMoveAmount:
		return m.textMovementAmount(userID, state, text)
	case StepMoveDescription:
		return m.textMovementDescription(ctx, userID, state, text)
	case StepSubName:
		return m.textSubscriptionName(userID, text)
	case StepSubAmount:
		return m.textSubscriptionAmount(ctx, userID, state, text)
	case StepSubDay:
		return m.textSubscriptionDay(ctx, userID, state, text)
	case StepReminderDescription:
		return m.textReminderDescription(userID, text)
	case StepReminderDate:
		return m.textReminderDate(ctx, userID, state, text)
	case StepDebtName:
		return m.textDebtName(userID, text)
	case StepDebtAmount:
		return m.textDebtAmount(ctx, userID, state, text)
	case StepAlertThreshold:
		return m.textAlertThreshold(ctx, userID, state, text)
	case StepBalanceAmount:
		return m.textBalanceAmount(ctx, userID, text)
	default:
		// Steps that expect a button press, not text.
		m.states.Touch(userID)
		return Reply{Text: "❌ Please use the buttons above, or press Cancel."}
	}
}

// HandleCallback routes an inline-button press.
func (m *Machine) HandleCallback(ctx context.Context, userID int64, data string) Reply {
	switch {
	case data == "cancel":
		m.states.Clear(userID)
		return m.mainMenu()
	case data == "menu_main":
		m.states.Clear(userID)
		return m.mainMenu()
	case data == "menu_balance":
		return m.replyBalance(ctx, userID)
	case data == "menu_summary":
		return m.SummaryReply(ctx, userID)
	case data == "menu_history":
		m.states.Clear(userID)
		return m.historyMenu()
	case data == "view_movements":
		return m.replyMovements(ctx, userID)
	case data == "view_subscriptions":
		return m.replySubscriptions(ctx, userID)
	case data == "view_reminders":
		return m.replyReminders(ctx, userID)
	case data == "view_debts":
		return m.replyDebts(ctx, userID)
	case data == "view_alerts":
		return m.replyAlerts(ctx, userID)
	case data == "add_expense":
		return m.beginMovement(ctx, userID, ledger.KindExpense)
	case data == "add_income":
		return m.beginMovement(ctx, userID, ledger.KindIncome)
	case data == "add_saving":
		return m.beginMovement(ctx, userID, ledger.KindSaving)
	case data == "add_subscription":
		m.states.Set(userID, StepSubName, Payload{})
		return Reply{Text: "Subscription name:", Buttons: cancelRow()}
	case data == "add_reminder":
		m.states.Set(userID, StepReminderDescription, Payload{})
		return Reply{Text: "What should I remind you about?", Buttons: cancelRow()}
	case data == "add_debt":
		m.states.Set(userID, StepDebtName, Payload{})
		return Reply{Text: "Who is the debt with?", Buttons: cancelRow()}
	case data == "add_alert":
		m.states.Set(userID, StepAlertScope, Payload{})
		return Reply{
			Text: "Alert on which spending window?",
			Buttons: [][]Button{
				{{Label: "Daily", Data: "alert_type_daily"}, {Label: "Monthly", Data: "alert_type_monthly"}},
				{{Label: "Cancel", Data: "cancel"}},
			},
		}
	case data == "change_balance":
		m.states.Set(userID, StepBalanceAmount, Payload{})
		return Reply{Text: "New initial balance:", Buttons: cancelRow()}
	case strings.HasPrefix(data, "select_cat_"):
		return m.callbackSelectCategory(userID, data)
	case strings.HasPrefix(data, "new_cat_"):
		return m.callbackNewCategory(userID, data)
	case strings.HasPrefix(data, "subscription_cat_"):
		return m.callbackSubscriptionCategory(userID, strings.TrimPrefix(data, "subscription_cat_"))
	case strings.HasPrefix(data, "debt_type_"):
		return m.callbackDebtDirection(userID, strings.TrimPrefix(data, "debt_type_"))
	case strings.HasPrefix(data, "alert_type_"):
		return m.callbackAlertScope(userID, strings.TrimPrefix(data, "alert_type_"))
	case strings.HasPrefix(data, "del_move_"):
		return m.callbackDeleteMovement(ctx, userID, strings.TrimPrefix(data, "del_move_"))
	case strings.HasPrefix(data, "sub_off_"):
		return m.callbackDeactivateSubscription(ctx, userID, strings.TrimPrefix(data, "sub_off_"))
	case strings.HasPrefix(data, "debt_settle_"):
		return m.callbackSettleDebt(ctx, userID, strings.TrimPrefix(data, "debt_settle_"))
	case strings.HasPrefix(data, "alert_off_"):
		return m.callbackDeactivateAlert(ctx, userID, strings.TrimPrefix(data, "alert_off_"))
	default:
		m.log.Warn("unknown callback", "user_id", userID, "data", data)
		return Reply{Text: "❌ That option is no longer available."}
	}
}

// FastPathMovement backs /expense and /income: no flow, first active
// category of the kind, immediate commit.
func (m *Machine) FastPathMovement(ctx context.Context, userID int64, kind ledger.Kind, rawAmount, description string) Reply {
	amount, err := ValidateAmount(rawAmount, false)
	if err != nil {
		return m.failure(err)
	}
	category, err := m.ledger.FirstCategory(ctx, userID, kind)
	if err != nil {
		return m.failure(err)
	}
	if err := m.ledger.AddMovement(ctx, userID, kind, category, amount, Sanitize(description)); err != nil {
		return m.failure(err)
	}
	return Reply{Text: fmt.Sprintf("✅ Recorded %s of %s in %s.", kind, amount, category)}
}

func (m *Machine) beginMovement(ctx context.Context, userID int64, kind ledger.Kind) Reply {
	names, err := m.ledger.ListCategories(ctx, userID, kind)
	if err != nil {
		return m.failure(err)
	}
	m.states.Set(userID, StepMoveCategory, Payload{Kind: kind})

	var rows [][]Button
	for _, name := range names {
		rows = append(rows, []Button{{Label: name, Data: fmt.Sprintf("select_cat_%s_%s", kind, name)}})
	}
	rows = append(rows, []Button{{Label: "➕ New category", Data: "new_cat_" + string(kind)}})
	rows = append(rows, []Button{{Label: "Cancel", Data: "cancel"}})
	return Reply{Text: fmt.Sprintf("Pick a category for the %s:", kind), Buttons: rows}
}

func (m *Machine) callbackSelectCategory(userID int64, data string) Reply {
	rest := strings.TrimPrefix(data, "select_cat_")
	kindStr, category, found := strings.Cut(rest, "_")
	kind := ledger.Kind(kindStr)
	if !found || !kind.Valid() || category == "" {
		return Reply{Text: "❌ That option is no longer available."}
	}
	m.states.Set(userID, StepMoveAmount, Payload{Kind: kind, Category: category})
	return Reply{Text: fmt.Sprintf("Amount for %s:", category), Buttons: cancelRow()}
}

func (m *Machine) callbackNewCategory(userID int64, data string) Reply {
	kind := ledger.Kind(strings.TrimPrefix(data, "new_cat_"))
	if !kind.Valid() {
		return Reply{Text: "❌ That option is no longer available."}
	}
	m.states.Set(userID, StepMoveNewCategory, Payload{Kind: kind})
	return Reply{Text: "Name for the new category:", Buttons: cancelRow()}
}

func (m *Machine) callbackSubscriptionCategory(userID int64, category string) Reply {
	state, ok := m.states.Get(userID)
	if !ok || state.Step != StepSubCategory {
		return Reply{Text: "❌ That option is no longer available."}
	}
	payload := state.Payload
	payload.Category = category
	m.states.Set(userID, StepSubDay, payload)
	return Reply{Text: "Charge day of the month (1-31):", Buttons: cancelRow()}
}

func (m *Machine) callbackDebtDirection(userID int64, suffix string) Reply {
	state, ok := m.states.Get(userID)
	if !ok || state.Step != StepDebtDirection {
		return Reply{Text: "❌ That option is no longer available."}
	}
	payload := state.Payload
	switch suffix {
	case "owed_to":
		payload.Direction = ledger.OwedToPrincipal
	case "owed_by":
		payload.Direction = ledger.OwedByPrincipal
	default:
		return Reply{Text: "❌ That option is no longer available."}
	}
	m.states.Set(userID, StepDebtAmount, payload)
	return Reply{Text: "Debt amount:", Buttons: cancelRow()}
}

func (m *Machine) callbackAlertScope(userID int64, suffix string) Reply {
	state, ok := m.states.Get(userID)
	if !ok || state.Step != StepAlertScope {
		return Reply{Text: "❌ That option is no longer available."}
	}
	payload := state.Payload
	switch suffix {
	case "daily":
		payload.Scope = ledger.ScopeDaily
	case "monthly":
		payload.Scope = ledger.ScopeMonthly
	default:
		return Reply{Text: "❌ That option is no longer available."}
	}
	m.states.Set(userID, StepAlertThreshold, payload)
	return Reply{Text: fmt.Sprintf("Spending limit for the %s alert:", payload.Scope), Buttons: cancelRow()}
}

func (m *Machine) textSetupBalance(ctx context.Context, userID int64, text string) Reply {
	amount, err := ValidateAmount(text, true)
	if err != nil {
		return m.retry(userID, err)
	}
	if err := m.ledger.CreatePrincipal(ctx, userID, amount); err != nil {
		return m.failure(err)
	}
	if err := m.ledger.UpdateInitialBalance(ctx, userID, amount); err != nil {
		return m.failure(err)
	}
	if err := m.ledger.MarkConfigured(ctx, userID); err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	menu := m.mainMenu()
	menu.Text = fmt.Sprintf("✅ All set. Starting balance: %s\n\n%s", amount, menu.Text)
	return menu
}

func (m *Machine) textNewCategory(ctx context.Context, userID int64, state State, text string) Reply {
	name, err := ValidateName(text, maxCategoryNameLen)
	if err != nil {
		return m.retry(userID, err)
	}
	if _, err := m.ledger.AddCategory(ctx, userID, name, state.Payload.Kind); err != nil {
		return m.failure(err)
	}
	payload := state.Payload
	payload.Category = name
	m.states.Set(userID, StepMoveAmount, payload)
	return Reply{Text: fmt.Sprintf("Amount for %s:", name), Buttons: cancelRow()}
}

func (m *Machine) textMovementAmount(userID int64, state State, text string) Reply {
	amount, err := ValidateAmount(text, false)
	if err != nil {
		return m.retry(userID, err)
	}
	payload := state.Payload
	payload.Amount = amount
	m.states.Set(userID, StepMoveDescription, payload)
	return Reply{Text: "Description? (or reply \"skip\")", Buttons: cancelRow()}
}

func (m *Machine) textMovementDescription(ctx context.Context, userID int64, state State, text string) Reply {
	description := Sanitize(text)
	if IsSkip(description) {
		description = ""
	}
	p := state.Payload
	if err := m.ledger.AddMovement(ctx, userID, p.Kind, p.Category, p.Amount, description); err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	return Reply{Text: fmt.Sprintf("✅ Recorded %s of %s in %s.", p.Kind, p.Amount, p.Category)}
}

func (m *Machine) textSubscriptionName(userID int64, text string) Reply {
	name, err := ValidateName(text, maxGenericNameLen)
	if err != nil {
		return m.retry(userID, err)
	}
	m.states.Set(userID, StepSubAmount, Payload{Name: name})
	return Reply{Text: "Monthly amount:", Buttons: cancelRow()}
}

func (m *Machine) textSubscriptionAmount(ctx context.Context, userID int64, state State, text string) Reply {
	amount, err := ValidateAmount(text, false)
	if err != nil {
		return m.retry(userID, err)
	}
	names, err := m.ledger.EnsureDefaultCategories(ctx, userID, ledger.KindExpense)
	if err != nil {
		return m.failure(err)
	}
	payload := state.Payload
	payload.Amount = amount
	m.states.Set(userID, StepSubCategory, payload)

	var rows [][]Button
	for _, name := range names {
		rows = append(rows, []Button{{Label: name, Data: "subscription_cat_" + name}})
	}
	rows = append(rows, []Button{{Label: "Cancel", Data: "cancel"}})
	return Reply{Text: "Expense category for the subscription:", Buttons: rows}
}

func (m *Machine) textSubscriptionDay(ctx context.Context, userID int64, state State, text string) Reply {
	day, err := ValidateDay(text)
	if err != nil {
		return m.retry(userID, err)
	}
	p := state.Payload
	sub, err := m.ledger.AddSubscription(ctx, userID, p.Name, p.Amount, p.Category, day)
	if err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	return Reply{Text: fmt.Sprintf("✅ Subscription %s saved. First charge: %s.",
		sub.Name, sub.NextCharge.Format("02/01/2006"))}
}

func (m *Machine) textReminderDescription(userID int64, text string) Reply {
	description, err := ValidateName(text, ledger.MaxDescriptionLen)
	if err != nil {
		return m.retry(userID, err)
	}
	m.states.Set(userID, StepReminderDate, Payload{Description: description})
	return Reply{Text: "When? (DD/MM/YYYY or DD/MM)", Buttons: cancelRow()}
}

func (m *Machine) textReminderDate(ctx context.Context, userID int64, state State, text string) Reply {
	due, err := ParseDate(text, m.now())
	if err != nil {
		return m.retry(userID, err)
	}
	if _, err := m.ledger.AddReminder(ctx, userID, state.Payload.Description, 0, due); err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	return Reply{Text: fmt.Sprintf("✅ Reminder saved for %s.", due.Format("02/01/2006"))}
}

func (m *Machine) textDebtName(userID int64, text string) Reply {
	name, err := ValidateName(text, maxGenericNameLen)
	if err != nil {
		return m.retry(userID, err)
	}
	m.states.Set(userID, StepDebtDirection, Payload{Name: name})
	return Reply{
		Text: fmt.Sprintf("Does %s owe you, or do you owe them?", name),
		Buttons: [][]Button{
			{{Label: "They owe me", Data: "debt_type_owed_to"}, {Label: "I owe them", Data: "debt_type_owed_by"}},
			{{Label: "Cancel", Data: "cancel"}},
		},
	}
}

func (m *Machine) textDebtAmount(ctx context.Context, userID int64, state State, text string) Reply {
	amount, err := ValidateAmount(text, false)
	if err != nil {
		return m.retry(userID, err)
	}
	p := state.Payload
	debt, err := m.ledger.AddDebt(ctx, userID, p.Name, amount, p.Direction, "")
	if err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	if debt.Direction == ledger.OwedToPrincipal {
		return Reply{Text: fmt.Sprintf("✅ Noted: %s owes you %s.", debt.Counterparty, debt.Amount)}
	}
	return Reply{Text: fmt.Sprintf("✅ Noted: you owe %s %s.", debt.Counterparty, debt.Amount)}
}

func (m *Machine) textAlertThreshold(ctx context.Context, userID int64, state State, text string) Reply {
	threshold, err := ValidateAmount(text, false)
	if err != nil {
		return m.retry(userID, err)
	}
	if err := m.ledger.UpsertAlert(ctx, userID, state.Payload.Scope, threshold); err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	return Reply{Text: fmt.Sprintf("✅ %s alert set at %s.", state.Payload.Scope, threshold)}
}

func (m *Machine) textBalanceAmount(ctx context.Context, userID int64, text string) Reply {
	amount, err := ValidateAmount(text, true)
	if err != nil {
		return m.retry(userID, err)
	}
	if err := m.ledger.UpdateInitialBalance(ctx, userID, amount); err != nil {
		return m.failure(err)
	}
	m.states.Clear(userID)
	return Reply{Text: fmt.Sprintf("✅ Initial balance updated to %s.", amount)}
}

func (m *Machine) replyBalance(ctx context.Context, userID int64) Reply {
	balance, err := m.ledger.CurrentBalance(ctx, userID)
	if err != nil {
		return m.failure(err)
	}
	return Reply{Text: fmt.Sprintf("💰 Current balance: %s", balance)}
}

// SummaryReply renders the current month's summary with a spending delta
// against the previous month.
func (m *Machine) SummaryReply(ctx context.Context, userID int64) Reply {
	summary, err := m.ledger.Summary(ctx, userID, 0, 0)
	if err != nil {
		return m.failure(err)
	}
	prevPeriod := m.now().AddDate(0, -1, -m.now().Day()+1)
	prev, err := m.ledger.Summary(ctx, userID, int(prevPeriod.Month()), prevPeriod.Year())
	if err != nil {
		return Reply{Text: FormatMonthSummary(summary)}
	}

	text := FormatMonthSummary(summary)
	delta := summary.Expense - prev.Expense
	switch {
	case delta > 0:
		text += fmt.Sprintf("\n\n📈 Spending up %s vs %02d/%d.", delta, prev.Month, prev.Year)
	case delta < 0:
		text += fmt.Sprintf("\n\n📉 Spending down %s vs %02d/%d.", -delta, prev.Month, prev.Year)
	default:
		text += fmt.Sprintf("\n\n➖ Spending level with %02d/%d.", prev.Month, prev.Year)
	}
	return Reply{Text: text}
}

// FormatMonthSummary renders a month summary for chat delivery.
func FormatMonthSummary(s ledger.MonthSummary) string {
	return fmt.Sprintf(
		"📊 Summary %02d/%d\n\nIncome: %s\nExpenses: %s\nSavings: %s\n\nBalance: %s",
		s.Month, s.Year, s.Income, s.Expense, s.Saving, s.Balance)
}

func (m *Machine) mainMenu() Reply {
	return Reply{
		Text: "What would you like to do?",
		Buttons: [][]Button{
			{{Label: "💸 Expense", Data: "add_expense"}, {Label: "💵 Income", Data: "add_income"}},
			{{Label: "🏦 Saving", Data: "add_saving"}, {Label: "🔁 Subscription", Data: "add_subscription"}},
			{{Label: "⏰ Reminder", Data: "add_reminder"}, {Label: "🤝 Debt", Data: "add_debt"}},
			{{Label: "🚨 Alert", Data: "add_alert"}, {Label: "⚙️ Balance", Data: "change_balance"}},
			{{Label: "💰 Show balance", Data: "menu_balance"}, {Label: "📊 Summary", Data: "menu_summary"}},
			{{Label: "📋 History", Data: "menu_history"}},
		},
	}
}

func (m *Machine) historyMenu() Reply {
	return Reply{
		Text: "What do you want to review?",
		Buttons: [][]Button{
			{{Label: "🧾 Movements", Data: "view_movements"}, {Label: "🔁 Subscriptions", Data: "view_subscriptions"}},
			{{Label: "⏰ Reminders", Data: "view_reminders"}, {Label: "🤝 Debts", Data: "view_debts"}},
			{{Label: "🚨 Alerts", Data: "view_alerts"}},
			{{Label: "⬅️ Menu", Data: "menu_main"}},
		},
	}
}

// maxHistoryButtons caps how many rows get their own action button; the
// transport limits keyboard size.
const maxHistoryButtons = 10

func (m *Machine) replyMovements(ctx context.Context, userID int64) Reply {
	movements, err := m.ledger.Movements(ctx, userID, 0, 0, "")
	if err != nil {
		return m.failure(err)
	}
	if len(movements) == 0 {
		return Reply{Text: "🧾 No movements this month.", Buttons: backRow()}
	}

	now := m.now()
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Movements %02d/%d", int(now.Month()), now.Year())
	shown := movements
	if len(shown) > maxHistoryButtons {
		shown = shown[:maxHistoryButtons]
	}
	var rows [][]Button
	for _, mv := range shown {
		sign := "-"
		if mv.Kind == ledger.KindIncome {
			sign = "+"
		}
		fmt.Fprintf(&b, "\n%s %s %s%s", mv.Date.Format("02/01"), mv.Category, sign, mv.Amount)
		if mv.Description != "" {
			fmt.Fprintf(&b, " (%s)", mv.Description)
		}
		rows = append(rows, []Button{{
			Label: fmt.Sprintf("🗑 %s %s %s", mv.Date.Format("02/01"), mv.Category, mv.Amount),
			Data:  fmt.Sprintf("del_move_%d", mv.ID),
		}})
	}
	if len(movements) > len(shown) {
		fmt.Fprintf(&b, "\nand %d more", len(movements)-len(shown))
	}
	rows = append(rows, backRow()...)
	return Reply{Text: b.String(), Buttons: rows}
}

func (m *Machine) replySubscriptions(ctx context.Context, userID int64) Reply {
	subs, err := m.ledger.ActiveSubscriptions(ctx, userID)
	if err != nil {
		return m.failure(err)
	}
	if len(subs) == 0 {
		return Reply{Text: "🔁 No active subscriptions.", Buttons: backRow()}
	}

	var b strings.Builder
	b.WriteString("🔁 Active subscriptions")
	var rows [][]Button
	for _, s := range subs {
		fmt.Fprintf(&b, "\n%s: %s monthly, next charge %s", s.Name, s.Amount, s.NextCharge.Format("02/01/2006"))
		rows = append(rows, []Button{{Label: "🗑 " + s.Name, Data: fmt.Sprintf("sub_off_%d", s.ID)}})
	}
	rows = append(rows, backRow()...)
	return Reply{Text: b.String(), Buttons: rows}
}

func (m *Machine) replyReminders(ctx context.Context, userID int64) Reply {
	reminders, err := m.ledger.ActiveReminders(ctx, userID)
	if err != nil {
		return m.failure(err)
	}
	if len(reminders) == 0 {
		return Reply{Text: "⏰ No pending reminders.", Buttons: backRow()}
	}

	var b strings.Builder
	b.WriteString("⏰ Pending reminders")
	for _, r := range reminders {
		fmt.Fprintf(&b, "\n%s: %s", r.DueDate.Format("02/01/2006"), r.Description)
		if r.Amount > 0 {
			fmt.Fprintf(&b, " (%s)", r.Amount)
		}
	}
	return Reply{Text: b.String(), Buttons: backRow()}
}

func (m *Machine) replyDebts(ctx context.Context, userID int64) Reply {
	debts, err := m.ledger.ActiveDebts(ctx, userID)
	if err != nil {
		return m.failure(err)
	}
	if len(debts) == 0 {
		return Reply{Text: "🤝 No open debts.", Buttons: backRow()}
	}

	var b strings.Builder
	b.WriteString("🤝 Open debts")
	var rows [][]Button
	for _, d := range debts {
		if d.Direction == ledger.OwedToPrincipal {
			fmt.Fprintf(&b, "\n%s owes you %s", d.Counterparty, d.Amount)
		} else {
			fmt.Fprintf(&b, "\nYou owe %s %s", d.Counterparty, d.Amount)
		}
		rows = append(rows, []Button{{Label: "✅ Settle " + d.Counterparty, Data: fmt.Sprintf("debt_settle_%d", d.ID)}})
	}
	rows = append(rows, backRow()...)
	return Reply{Text: b.String(), Buttons: rows}
}

func (m *Machine) replyAlerts(ctx context.Context, userID int64) Reply {
	alerts, err := m.ledger.ActiveAlerts(ctx, userID)
	if err != nil {
		return m.failure(err)
	}
	if len(alerts) == 0 {
		return Reply{Text: "🚨 No active alerts.", Buttons: backRow()}
	}

	var b strings.Builder
	b.WriteString("🚨 Active alerts")
	var rows [][]Button
	for _, a := range alerts {
		fmt.Fprintf(&b, "\n%s limit: %s", a.Scope, a.Threshold)
		rows = append(rows, []Button{{Label: fmt.Sprintf("🗑 %s alert", a.Scope), Data: fmt.Sprintf("alert_off_%d", a.ID)}})
	}
	rows = append(rows, backRow()...)
	return Reply{Text: b.String(), Buttons: rows}
}

func (m *Machine) callbackDeleteMovement(ctx context.Context, userID int64, raw string) Reply {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Reply{Text: "❌ That option is no longer available."}
	}
	if err := m.ledger.DeleteMovement(ctx, id, userID); err != nil {
		return m.failure(err)
	}
	reply := m.replyMovements(ctx, userID)
	reply.Text = "🗑 Movement deleted.\n\n" + reply.Text
	return reply
}

func (m *Machine) callbackDeactivateSubscription(ctx context.Context, userID int64, raw string) Reply {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Reply{Text: "❌ That option is no longer available."}
	}
	if err := m.ledger.DeactivateSubscription(ctx, id, userID); err != nil {
		return m.failure(err)
	}
	reply := m.replySubscriptions(ctx, userID)
	reply.Text = "🗑 Subscription cancelled.\n\n" + reply.Text
	return reply
}

func (m *Machine) callbackSettleDebt(ctx context.Context, userID int64, raw string) Reply {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Reply{Text: "❌ That option is no longer available."}
	}
	if err := m.ledger.MarkDebtSettled(ctx, id, userID); err != nil {
		return m.failure(err)
	}
	reply := m.replyDebts(ctx, userID)
	reply.Text = "✅ Debt settled.\n\n" + reply.Text
	return reply
}

func (m *Machine) callbackDeactivateAlert(ctx context.Context, userID int64, raw string) Reply {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Reply{Text: "❌ That option is no longer available."}
	}
	if err := m.ledger.DeactivateAlert(ctx, id, userID); err != nil {
		return m.failure(err)
	}
	reply := m.replyAlerts(ctx, userID)
	reply.Text = "🗑 Alert removed.\n\n" + reply.Text
	return reply
}

// retry keeps the step, refreshes the state timestamp and surfaces the
// validation problem so the user can try again.
func (m *Machine) retry(userID int64, err error) Reply {
	m.states.Touch(userID)
	return m.failure(err)
}

func (m *Machine) failure(err error) Reply {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return Reply{Text: "❌ " + strings.TrimPrefix(err.Error(), "validation failed: ")}
	case errors.Is(err, ledger.ErrNotFound):
		return Reply{Text: "❌ Not found."}
	default:
		m.log.Error("dialog operation failed", "error", err)
		return Reply{Text: "❌ Something went wrong, please try again."}
	}
}

func cancelRow() [][]Button {
	return [][]Button{{{Label: "Cancel", Data: "cancel"}}}
}

func backRow() [][]Button {
	return [][]Button{{{Label: "⬅️ Menu", Data: "menu_main"}}}
}
