// Package repository declares the persistence contracts of the projection
// engine. Concrete implementations live under internal/infra.
package repository

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/balance-projection/internal/domain"
)

// AccountRepository provides bank account lookups.
type AccountRepository interface {
	// CreateAccount inserts a bank account.
	CreateAccount(ctx context.Context, account *domain.BankAccount) error

	// GetAccount returns the account or an error matching domain.ErrNotFound.
	GetAccount(ctx context.Context, accountID string) (*domain.BankAccount, error)

	// ListAccounts returns every bank account ordered by creation time.
	ListAccounts(ctx context.Context) ([]*domain.BankAccount, error)
}

// EventRepository provides one-off projection event operations.
type EventRepository interface {
	// InsertEvent inserts a single user-created event.
	InsertEvent(ctx context.Context, event *domain.ProjectionEvent) error

	// UpdateEvent replaces a user-created event.
	UpdateEvent(ctx context.Context, event *domain.ProjectionEvent) error

	// GetEvent returns the event or an error matching domain.ErrNotFound.
	GetEvent(ctx context.Context, eventID string) (*domain.ProjectionEvent, error)

	// DeleteEvent deletes a single event.
	DeleteEvent(ctx context.Context, eventID string) error

	// ListEventsInRange returns every event of the account dated within
	// [from, to], user-created and rule-generated, ordered by date.
	ListEventsInRange(ctx context.Context, accountID string, from, to civil.Date) ([]domain.ProjectionEvent, error)

	// EventBounds returns the earliest and latest event dates of an account,
	// or nil when it has no events.
	EventBounds(ctx context.Context, accountID string) (*domain.DateRange, error)
}

// RuleRepository provides recurring rule operations. Every method that
// touches both a rule and its generated events does so in one transaction.
type RuleRepository interface {
	// InsertRuleWithEvents inserts a rule and its generated events.
	InsertRuleWithEvents(ctx context.Context, rule *domain.RecurringEventRule, events []domain.ProjectionEvent) error

	// ReplaceRuleWithEvents updates a rule and replaces all of its generated
	// events with events.
	ReplaceRuleWithEvents(ctx context.Context, rule *domain.RecurringEventRule, events []domain.ProjectionEvent) error

	// GetRule returns the rule or an error matching domain.ErrNotFound.
	GetRule(ctx context.Context, ruleID string) (*domain.RecurringEventRule, error)

	// DeleteRule deletes a rule and cascades to its generated events.
	DeleteRule(ctx context.Context, ruleID string) error

	// ListRules returns the rules of an account ordered by start date.
	ListRules(ctx context.Context, accountID string) ([]domain.RecurringEventRule, error)

	// ListLineage returns every rule of the chain rooted at rootID ordered by
	// start date.
	ListLineage(ctx context.Context, rootID string) ([]domain.RecurringEventRule, error)

	// ApplyRevision truncates the revised rule, deletes its events from
	// DeleteFrom on, and inserts the revision with its events. It returns the
	// number of events deleted.
	ApplyRevision(ctx context.Context, plan RevisionWrite) (int, error)
}

// RevisionWrite is the storage-level view of a planned revision.
type RevisionWrite struct {
	Root           domain.RecurringEventRule
	Target         domain.RecurringEventRule
	Revision       domain.RecurringEventRule
	RevisionEvents []domain.ProjectionEvent
	DeleteFrom     civil.Date
}

// BalanceRepository persists the daily balance timeline.
type BalanceRepository interface {
	// UpsertExpectedBalances writes expected_balance for every row in one
	// transaction. Existing actual balances are left untouched.
	UpsertExpectedBalances(ctx context.Context, accountID string, rows []domain.DailyBalance) error

	// ListDailyBalances returns persisted rows within [from, to].
	ListDailyBalances(ctx context.Context, accountID string, from, to civil.Date) ([]domain.DailyBalance, error)

	// ListActualBalances returns actual-balance overrides within [from, to]
	// keyed by date.
	ListActualBalances(ctx context.Context, accountID string, from, to civil.Date) (map[civil.Date]decimal.Decimal, error)

	// LatestActualBalanceBefore returns the most recent override dated
	// strictly before date, or nil.
	LatestActualBalanceBefore(ctx context.Context, accountID string, date civil.Date) (*domain.DailyBalance, error)

	// SetActualBalance records a user-supplied actual balance for a date.
	SetActualBalance(ctx context.Context, accountID string, date civil.Date, amount decimal.Decimal) error

	// ClearActualBalance removes the override for a date.
	ClearActualBalance(ctx context.Context, accountID string, date civil.Date) error

	// ActualBalanceBounds returns the earliest and latest override dates, or nil.
	ActualBalanceBounds(ctx context.Context, accountID string) (*domain.DateRange, error)
}

// DecisionPathRepository provides decision path operations.
type DecisionPathRepository interface {
	CreateDecisionPath(ctx context.Context, path *domain.DecisionPath) error
	GetDecisionPath(ctx context.Context, pathID string) (*domain.DecisionPath, error)
	ListDecisionPaths(ctx context.Context) ([]domain.DecisionPath, error)

	// DeleteDecisionPath removes the path and nulls references on events and
	// rules. It returns, per account, the span of events whose reference was
	// nulled.
	DeleteDecisionPath(ctx context.Context, pathID string) (map[string]domain.DateRange, error)
}

// ScenarioRepository provides scenario set operations.
type ScenarioRepository interface {
	CreateScenarioSet(ctx context.Context, set *domain.ScenarioSet) error
	GetScenarioSet(ctx context.Context, setID string) (*domain.ScenarioSet, error)

	// GetDefaultScenarioSet returns the default set, creating it if missing.
	GetDefaultScenarioSet(ctx context.Context) (*domain.ScenarioSet, error)
	ListScenarioSets(ctx context.Context) ([]domain.ScenarioSet, error)

	// SetScenarioPaths replaces the stored (path, enabled) pairs of a set.
	SetScenarioPaths(ctx context.Context, setID string, paths map[string]bool) error

	// MakeDefault marks setID as the only default set.
	MakeDefault(ctx context.Context, setID string) error
	DeleteScenarioSet(ctx context.Context, setID string) error
}

// SettingsRepository provides configured initial balances.
type SettingsRepository interface {
	// GetInitialBalance returns the account's initial balance, falling back
	// to the global one. A nil accountID asks for the global one. It returns
	// nil when neither is configured.
	GetInitialBalance(ctx context.Context, accountID *string) (*domain.InitialBalance, error)

	// SetInitialBalance stores an initial balance; a nil BankAccountID sets
	// the global default.
	SetInitialBalance(ctx context.Context, balance *domain.InitialBalance) error
}

// TransactionRepository exposes imported transaction history. The import
// itself happens elsewhere; InsertTransactions is its write path.
type TransactionRepository interface {
	InsertTransactions(ctx context.Context, rows []domain.TransactionRecord) error

	// ListTransactionDates returns the distinct transaction dates of an
	// account in ascending order.
	ListTransactionDates(ctx context.Context, accountID string) ([]civil.Date, error)

	// LatestTransactionWithBalance returns the latest transaction dated on or
	// before date that carries a running balance, or nil.
	LatestTransactionWithBalance(ctx context.Context, accountID string, onOrBefore civil.Date) (*domain.TransactionRecord, error)
}
