// Package projection is the engine's public surface: CRUD over accounts,
// events, rules, decision paths, scenario sets and balance settings, plus
// the balance operations. Every mutation that can move a balance ends by
// invalidating the affected window of the owning account.
package projection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-projection/internal/balance"
	"github.com/dvloznov/balance-projection/internal/coverage"
	"github.com/dvloznov/balance-projection/internal/domain"
	"github.com/dvloznov/balance-projection/internal/jobs"
	"github.com/dvloznov/balance-projection/internal/recalc"
	"github.com/dvloznov/balance-projection/internal/repository"
)

// Store is every repository the service uses.
type Store interface {
	repository.AccountRepository
	repository.EventRepository
	repository.RuleRepository
	repository.BalanceRepository
	repository.DecisionPathRepository
	repository.ScenarioRepository
	repository.SettingsRepository
	repository.TransactionRepository
}

// Service implements the projection operations.
type Service struct {
	store     Store
	calc      *balance.Calculator
	trigger   *recalc.Trigger
	tracker   coverage.Tracker
	jobs      jobs.JobStore
	publisher jobs.Publisher
	log       zerolog.Logger
	newID     func() string
}

// Deps groups the collaborators of a Service. Publisher may be nil, in
// which case rebuilds can only run synchronously.
type Deps struct {
	Store     Store
	Calc      *balance.Calculator
	Trigger   *recalc.Trigger
	Tracker   coverage.Tracker
	Jobs      jobs.JobStore
	Publisher jobs.Publisher
	Log       zerolog.Logger
}

// NewService creates a Service.
func NewService(d Deps) *Service {
	return &Service{
		store:     d.Store,
		calc:      d.Calc,
		trigger:   d.Trigger,
		tracker:   d.Tracker,
		jobs:      d.Jobs,
		publisher: d.Publisher,
		log:       d.Log,
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateAccount creates a bank account.
func (s *Service) CreateAccount(ctx context.Context, name string) (*domain.BankAccount, error) {
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	acct := &domain.BankAccount{ID: s.newID(), Name: name}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	s.log.Info().Str("bank_account_id", acct.ID).Str("name", name).Msg("Bank account created")
	return acct, nil
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*domain.BankAccount, error) {
	return s.store.GetAccount(ctx, accountID)
}

// ListAccounts returns every account.
func (s *Service) ListAccounts(ctx context.Context) ([]*domain.BankAccount, error) {
	return s.store.ListAccounts(ctx)
}

// requireAccount turns an unknown account referenced from input into a
// validation error.
func (s *Service) requireAccount(ctx context.Context, accountID string) error {
	if accountID == "" {
		return domain.Invalid("bank_account_id", "is required")
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		if isNotFound(err) {
			return domain.Invalid("bank_account_id", fmt.Sprintf("unknown bank account %q", accountID))
		}
		return err
	}
	return nil
}

func (s *Service) requireDecisionPath(ctx context.Context, pathID *string) error {
	if pathID == nil {
		return nil
	}
	if _, err := s.store.GetDecisionPath(ctx, *pathID); err != nil {
		if isNotFound(err) {
			return domain.Invalid("decision_path_id", fmt.Sprintf("unknown decision path %q", *pathID))
		}
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
