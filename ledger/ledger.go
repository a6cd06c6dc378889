package ledger

import (
	"errors"
	"log/slog"
	"time"

	"finbot/observability"
	"finbot/storage"
)

// Movement kinds.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
	KindSaving  Kind = "saving"
)

// Valid reports whether k is one of the three movement kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindSaving:
		return true
	}
	return false
}

// Sign is +1 for income and -1 for expense or saving. Savings reduce the
// balance but are not expenses.
func (k Kind) Sign() int64 {
	if k == KindIncome {
		return 1
	}
	return -1
}

// Debt directions.
type Direction string

const (
	OwedToPrincipal Direction = "owed_to_principal"
	OwedByPrincipal Direction = "owed_by_principal"
)

// Alert scopes.
type Scope string

const (
	ScopeDaily   Scope = "daily"
	ScopeMonthly Scope = "monthly"
)

// Sentinel errors shared across the service. Callers classify failures with
// errors.Is and decide how much to reveal to the user.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
)

// DateLayout is the canonical persisted form of calendar dates.
const DateLayout = "2006-01-02"

// MaxDescriptionLen bounds free-text descriptions; longer input is truncated
// with a trailing ellipsis.
const MaxDescriptionLen = 500

// Ledger owns all reads and writes against the finance store. The clock is
// injectable so period arithmetic is testable.
type Ledger struct {
	store   *storage.Store
	log     *slog.Logger
	now     func() time.Time
	metrics *observability.LedgerMetrics
}

// New builds a Ledger over the given store.
func New(store *storage.Store, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		store:   store,
		log:     log.With("component", "ledger"),
		now:     time.Now,
		metrics: observability.Ledger(),
	}
}

// WithClock overrides the ledger clock. Intended for tests.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) today() time.Time {
	t := l.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
