package service

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

// LedgerService owns the account collection and its snapshot persistence.
// Every mutation runs as one critical section: copy the collection, change
// the copy, save it, and only then make it the live state.
type LedgerService struct {
	mu       sync.RWMutex
	accounts []domain.Account
	store    domain.SnapshotStore
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*LedgerService)

// WithClock overrides the source of transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) {
		s.now = now
	}
}

func NewLedgerService(store domain.SnapshotStore, logger *slog.Logger, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate replaces the in-memory collection with the persisted snapshot.
// A missing or corrupt snapshot leaves the ledger empty; any other read
// failure is returned so that an unreadable snapshot is never overwritten.
func (s *LedgerService) Hydrate(ctx context.Context) error {
	accounts, err := s.store.Load(ctx)
	switch {
	case err == nil:
		s.logger.Info("Ledger hydrated", "accounts", len(accounts))
	case stderrors.Is(err, domain.ErrSnapshotNotFound):
		s.logger.Info("No snapshot found, starting with an empty ledger")
		accounts = nil
	case stderrors.Is(err, domain.ErrCorruptSnapshot):
		s.logger.Error("Snapshot is corrupt, starting with an empty ledger", "error", err)
		accounts = nil
	default:
		s.logger.Error("Failed to load snapshot", "error", err)
		return errors.ErrStorageFailure.Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
	return nil
}

// AccountCount returns the number of accounts in the ledger.
func (s *LedgerService) AccountCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// mutate applies fn to a copy of the collection and commits the copy once it
// has been saved. fn must Clone any account it changes in place.
func (s *LedgerService) mutate(ctx context.Context, fn func(next []domain.Account) ([]domain.Account, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(slices.Clone(s.accounts))
	if err != nil {
		return err
	}

	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error("Failed to persist ledger, change discarded", "error", err)
		return errors.ErrStorageFailure.Wrap(err)
	}

	s.accounts = next
	return nil
}

// indexOf scans in insertion order and returns the first exact match.
func indexOf(accounts []domain.Account, accountNumber string) int {
	for i := range accounts {
		if accounts[i].AccountNumber == accountNumber {
			return i
		}
	}
	return -1
}

// ParseAmount parses user supplied text as a decimal amount. Malformed text
// is invalid_input; amounts outside domain.CheckAmountBounds are
// invalid_amount. The sign is left to the operation.
func ParseAmount(text string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Decimal{}, errors.ErrInvalidInput.WithDetails("amount is not a number: " + text)
	}
	if err := domain.CheckAmountBounds(amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}
