package service

import (
	"context"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

func (s *LedgerService) CreateAccount(ctx context.Context, holderName, accountNumber string, initialBalance decimal.Decimal) (*domain.Account, error) {
	s.logger.Info("Creating account", "account_number", accountNumber, "initial_balance", initialBalance)

	if strings.TrimSpace(accountNumber) == "" {
		return nil, errors.ErrInvalidInput.WithDetails("account number is required")
	}
	if err := domain.CheckAmountBounds(initialBalance); err != nil {
		return nil, err
	}
	if initialBalance.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidAmount, "initial balance must not be negative")
	}

	var created domain.Account
	err := s.mutate(ctx, func(next []domain.Account) ([]domain.Account, error) {
		if indexOf(next, accountNumber) >= 0 {
			s.logger.Warn("Duplicate account creation attempt", "account_number", accountNumber)
			return nil, errors.ErrDuplicateAccount
		}
		created = domain.NewAccount(holderName, accountNumber, initialBalance, s.now())
		return append(next, created), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account created successfully", "account_number", accountNumber)
	result := created.Clone()
	return &result, nil
}

func (s *LedgerService) FindAccount(_ context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := indexOf(s.accounts, accountNumber)
	if i < 0 {
		return nil, errors.ErrAccountNotFound
	}
	account := s.accounts[i].Clone()
	return &account, nil
}

func (s *LedgerService) GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error) {
	account, err := s.FindAccount(ctx, accountNumber)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return account.Balance, nil
}

// DeleteAccount removes the account and its whole history. Nothing is kept.
func (s *LedgerService) DeleteAccount(ctx context.Context, accountNumber string) error {
	err := s.mutate(ctx, func(next []domain.Account) ([]domain.Account, error) {
		i := indexOf(next, accountNumber)
		if i < 0 {
			return nil, errors.ErrAccountNotFound
		}
		return slices.Delete(next, i, i+1), nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Account deleted", "account_number", accountNumber)
	return nil
}
