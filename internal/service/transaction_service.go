package service

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

func (s *LedgerService) Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	s.logger.Info("Processing deposit", "account_number", accountNumber, "amount", amount)

	return s.apply(ctx, accountNumber, func(a *domain.Account) error {
		return a.Deposit(amount, s.now())
	})
}

func (s *LedgerService) Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error) {
	s.logger.Info("Processing withdrawal", "account_number", accountNumber, "amount", amount)

	return s.apply(ctx, accountNumber, func(a *domain.Account) error {
		return a.Withdraw(amount, s.now())
	})
}

// GetHistory returns a copy of the account's transactions in the order they
// were applied.
func (s *LedgerService) GetHistory(_ context.Context, accountNumber string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := indexOf(s.accounts, accountNumber)
	if i < 0 {
		return nil, errors.ErrAccountNotFound
	}
	return slices.Clone(s.accounts[i].History), nil
}

func (s *LedgerService) apply(ctx context.Context, accountNumber string, change func(*domain.Account) error) (*domain.Account, error) {
	var updated domain.Account
	err := s.mutate(ctx, func(next []domain.Account) ([]domain.Account, error) {
		i := indexOf(next, accountNumber)
		if i < 0 {
			return nil, errors.ErrAccountNotFound
		}

		account := next[i].Clone()
		if err := change(&account); err != nil {
			return nil, err
		}
		next[i] = account
		updated = account
		return next, nil
	})
	if err != nil {
		s.logger.Warn("Transaction rejected", "account_number", accountNumber, "error", err)
		return nil, err
	}

	s.logger.Info("Transaction applied", "account_number", accountNumber, "balance", updated.Balance)
	result := updated.Clone()
	return &result, nil
}
