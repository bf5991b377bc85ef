package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
	"account-ledger/internal/logging"
	"account-ledger/internal/repository"
)

// memoryStore records saved snapshots and can be told to fail.
type memoryStore struct {
	mu       sync.Mutex
	saved    []domain.Account
	saves    int
	loadErr  error
	saveErr  error
	hasSaved bool
}

func (m *memoryStore) Load(_ context.Context) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if !m.hasSaved {
		return nil, domain.ErrSnapshotNotFound
	}
	return m.saved, nil
}

func (m *memoryStore) Save(_ context.Context, accounts []domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.hasSaved = true
	m.saved = make([]domain.Account, len(accounts))
	for i, a := range accounts {
		m.saved[i] = a.Clone()
	}
	return nil
}

func (m *memoryStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestLedger(t *testing.T) (*LedgerService, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	return NewLedgerService(store, logging.Discard(), WithClock(fixedClock())), store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertBalance(t *testing.T, s *LedgerService, accountNumber, want string) {
	t.Helper()
	got, err := s.GetBalance(context.Background(), accountNumber)
	require.NoError(t, err)
	assert.True(t, dec(want).Equal(got), "balance of %s: want %s, got %s", accountNumber, want, got)
}

func kinds(history []domain.Transaction) []domain.TransactionKind {
	out := make([]domain.TransactionKind, len(history))
	for i, tx := range history {
		out[i] = tx.Kind
	}
	return out
}

func TestLedgerService_Scenario(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)

	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("100.0"))
	require.NoError(t, err)

	_, err = s.Deposit(ctx, "A100", dec("50"))
	require.NoError(t, err)
	assertBalance(t, s, "A100", "150.0")

	history, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.KindAccountCreated, history[0].Kind)
	assert.True(t, dec("100.0").Equal(history[0].Amount))
	assert.Equal(t, domain.KindDeposit, history[1].Kind)
	assert.True(t, dec("50.0").Equal(history[1].Amount))

	_, err = s.Withdraw(ctx, "A100", dec("200"))
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assertBalance(t, s, "A100", "150.0")

	_, err = s.Withdraw(ctx, "A100", dec("150"))
	require.NoError(t, err)
	assertBalance(t, s, "A100", "0.0")

	require.NoError(t, s.DeleteAccount(ctx, "A100"))
	_, err = s.FindAccount(ctx, "A100")
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
}

func TestLedgerService_BalanceInvariant(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)

	_, err := s.CreateAccount(ctx, "Carol", "C1", dec("10"))
	require.NoError(t, err)

	expected := dec("10")
	ops := []struct {
		deposit bool
		amount  string
	}{
		{true, "5.55"}, {false, "3.05"}, {false, "100"}, {true, "0.01"},
		{false, "12.51"}, {false, "0.01"}, {true, "1000"}, {false, "999.99"},
	}
	for _, op := range ops {
		amount := dec(op.amount)
		if op.deposit {
			_, err := s.Deposit(ctx, "C1", amount)
			require.NoError(t, err)
			expected = expected.Add(amount)
		} else {
			_, err := s.Withdraw(ctx, "C1", amount)
			if amount.GreaterThan(expected) {
				require.ErrorIs(t, err, errors.ErrInsufficientFunds)
			} else {
				require.NoError(t, err)
				expected = expected.Sub(amount)
			}
		}

		account, err := s.FindAccount(ctx, "C1")
		require.NoError(t, err)
		assert.True(t, expected.Equal(account.Balance), "want %s, got %s", expected, account.Balance)
		assert.False(t, account.Balance.IsNegative())
		assert.NoError(t, account.Validate())
	}
}

func TestLedgerService_CreateAccountValidation(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)

	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("0"))
	require.NoError(t, err, "zero initial balance is allowed")

	_, err = s.CreateAccount(ctx, "Impostor", "A100", dec("5"))
	assert.ErrorIs(t, err, errors.ErrDuplicateAccount)

	_, err = s.CreateAccount(ctx, "Bob", "B1", dec("-1"))
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	_, err = s.CreateAccount(ctx, "Nobody", "   ", dec("1"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	assert.Equal(t, 1, s.AccountCount())
	assert.Equal(t, 1, store.saveCount(), "rejected creations must not persist")
}

func TestLedgerService_NonPositiveAmountsRejected(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("100"))
	require.NoError(t, err)

	for _, amount := range []string{"0", "-0.01", "-50"} {
		_, err := s.Deposit(ctx, "A100", dec(amount))
		assert.ErrorIs(t, err, errors.ErrInvalidAmount, "deposit %s", amount)

		_, err = s.Withdraw(ctx, "A100", dec(amount))
		assert.ErrorIs(t, err, errors.ErrInvalidAmount, "withdraw %s", amount)
	}

	assertBalance(t, s, "A100", "100")
	history, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, store.saveCount())
}

func TestLedgerService_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)

	_, err := s.FindAccount(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	_, err = s.GetBalance(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	_, err = s.GetHistory(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	_, err = s.Deposit(ctx, "missing", dec("1"))
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	_, err = s.Withdraw(ctx, "missing", dec("1"))
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "missing"), errors.ErrAccountNotFound)
}

func TestLedgerService_LookupIsExactMatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("1"))
	require.NoError(t, err)

	for _, number := range []string{"a100", "A100 ", "A10"} {
		_, err := s.FindAccount(ctx, number)
		assert.ErrorIs(t, err, errors.ErrAccountNotFound, number)
	}
}

func TestLedgerService_HistoryOrderAndTimestamps(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)

	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("10"))
	require.NoError(t, err)
	_, err = s.Deposit(ctx, "A100", dec("1"))
	require.NoError(t, err)
	_, err = s.Withdraw(ctx, "A100", dec("2"))
	require.NoError(t, err)
	_, err = s.Deposit(ctx, "A100", dec("3"))
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	assert.Equal(t, []domain.TransactionKind{
		domain.KindAccountCreated, domain.KindDeposit, domain.KindWithdraw, domain.KindDeposit,
	}, kinds(history))

	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].Timestamp.Before(history[i-1].Timestamp))
		assert.NotEqual(t, history[i].ID, history[i-1].ID)
	}

	again, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	assert.Equal(t, history, again, "history can be read repeatedly")
}

func TestLedgerService_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("10"))
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	history[0].Amount = dec("999")

	account, err := s.FindAccount(ctx, "A100")
	require.NoError(t, err)
	account.Balance = dec("999")
	account.History = append(account.History, domain.NewTransaction(domain.KindDeposit, dec("1"), time.Now()))

	fresh, err := s.FindAccount(ctx, "A100")
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(fresh.Balance))
	require.Len(t, fresh.History, 1)
	assert.True(t, dec("10").Equal(fresh.History[0].Amount))
}

func TestLedgerService_DeleteRemovesFromReport(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestLedger(t)
	for _, n := range []string{"1", "2", "3"} {
		_, err := s.CreateAccount(ctx, "Holder "+n, n, dec(n))
		require.NoError(t, err)
	}

	require.NoError(t, s.DeleteAccount(ctx, "2"))

	report := s.GenerateReport(ctx)
	require.Len(t, report.Accounts, 2)
	assert.Equal(t, "1", report.Accounts[0].AccountNumber)
	assert.Equal(t, "3", report.Accounts[1].AccountNumber)
	assert.Equal(t, 2, report.AccountCount)
	assert.True(t, dec("4").Equal(report.TotalBalance))
}

func TestLedgerService_ReportDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("10"))
	require.NoError(t, err)

	before := store.saveCount()
	s.GenerateReport(ctx)
	_, _ = s.GetHistory(ctx, "A100")
	_, _ = s.GetBalance(ctx, "A100")
	assert.Equal(t, before, store.saveCount())
}

func TestLedgerService_EveryMutationPersists(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)

	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("10"))
	require.NoError(t, err)
	_, err = s.Deposit(ctx, "A100", dec("5"))
	require.NoError(t, err)
	_, err = s.Withdraw(ctx, "A100", dec("1"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteAccount(ctx, "A100"))

	assert.Equal(t, 4, store.saveCount())
	assert.Empty(t, store.saved)
}

func TestLedgerService_FailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("10"))
	require.NoError(t, err)

	store.saveErr = stderrors.New("disk full")

	_, err = s.Deposit(ctx, "A100", dec("5"))
	assert.ErrorIs(t, err, errors.ErrStorageFailure)
	_, err = s.Withdraw(ctx, "A100", dec("5"))
	assert.ErrorIs(t, err, errors.ErrStorageFailure)
	_, err = s.CreateAccount(ctx, "Bob", "B1", dec("1"))
	assert.ErrorIs(t, err, errors.ErrStorageFailure)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "A100"), errors.ErrStorageFailure)

	assertBalance(t, s, "A100", "10")
	history, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, 1, s.AccountCount())

	store.saveErr = nil
	_, err = s.Deposit(ctx, "A100", dec("5"))
	require.NoError(t, err)
	assertBalance(t, s, "A100", "15")
}

func TestLedgerService_StorageFailureUnwrapsToCause(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)
	cause := stderrors.New("disk full")
	store.saveErr = cause

	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("10"))
	assert.ErrorIs(t, err, cause)

	appErr := errors.AsAppError(err)
	assert.Equal(t, errors.StorageFailure, appErr.Code)
	assert.Equal(t, "disk full", appErr.Details)
}

func TestLedgerService_Hydrate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing snapshot starts empty", func(t *testing.T) {
		s, _ := newTestLedger(t)
		require.NoError(t, s.Hydrate(ctx))
		assert.Zero(t, s.AccountCount())
	})

	t.Run("corrupt snapshot starts empty", func(t *testing.T) {
		store := &memoryStore{loadErr: fmt.Errorf("%w: bad bytes", domain.ErrCorruptSnapshot)}
		s := NewLedgerService(store, logging.Discard())
		require.NoError(t, s.Hydrate(ctx))
		assert.Zero(t, s.AccountCount())
	})

	t.Run("read failure is reported", func(t *testing.T) {
		store := &memoryStore{loadErr: stderrors.New("permission denied")}
		s := NewLedgerService(store, logging.Discard())
		err := s.Hydrate(ctx)
		assert.ErrorIs(t, err, errors.ErrStorageFailure)
	})
}

func TestLedgerService_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")

	first := NewLedgerService(repository.NewFileStore(path, logging.Discard()), logging.Discard())
	require.NoError(t, first.Hydrate(ctx))

	for i := 1; i <= 5; i++ {
		number := fmt.Sprintf("N%03d", i)
		_, err := first.CreateAccount(ctx, fmt.Sprintf("Holder %d", i), number, decimal.NewFromInt(int64(i*100)))
		require.NoError(t, err)
		_, err = first.Deposit(ctx, number, dec("12.34"))
		require.NoError(t, err)
		_, err = first.Withdraw(ctx, number, dec("0.34"))
		require.NoError(t, err)
	}
	require.NoError(t, first.DeleteAccount(ctx, "N003"))

	second := NewLedgerService(repository.NewFileStore(path, logging.Discard()), logging.Discard())
	require.NoError(t, second.Hydrate(ctx))

	want := first.GenerateReport(ctx).Accounts
	got := second.GenerateReport(ctx).Accounts
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].HolderName, got[i].HolderName)
		assert.Equal(t, want[i].AccountNumber, got[i].AccountNumber)
		assert.True(t, want[i].Balance.Equal(got[i].Balance))
		require.Len(t, got[i].History, len(want[i].History))
		for j := range want[i].History {
			assert.Equal(t, want[i].History[j].ID, got[i].History[j].ID)
			assert.Equal(t, want[i].History[j].Kind, got[i].History[j].Kind)
			assert.True(t, want[i].History[j].Amount.Equal(got[i].History[j].Amount))
			assert.True(t, want[i].History[j].Timestamp.Equal(got[i].History[j].Timestamp))
		}
	}
}

func TestLedgerService_HydrateCorruptFileThenRecover(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := NewLedgerService(repository.NewFileStore(path, logging.Discard()), logging.Discard())
	require.NoError(t, s.Hydrate(ctx))
	assert.Zero(t, s.AccountCount())

	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("1"))
	require.NoError(t, err)

	reloaded := NewLedgerService(repository.NewFileStore(path, logging.Discard()), logging.Discard())
	require.NoError(t, reloaded.Hydrate(ctx))
	assert.Equal(t, 1, reloaded.AccountCount())
}

func TestLedgerService_ConcurrentDeposits(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("0"))
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := s.Deposit(ctx, "A100", dec("1")); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
	}
	wg.Wait()

	assertBalance(t, s, "A100", "50")
	history, err := s.GetHistory(ctx, "A100")
	require.NoError(t, err)
	assert.Len(t, history, workers+1)
	assert.Equal(t, workers+1, store.saveCount())
	require.Len(t, store.saved, 1)
	assert.True(t, dec("50").Equal(store.saved[0].Balance), "last snapshot reflects every deposit")
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(" 12.50 ")
	require.NoError(t, err)
	assert.True(t, dec("12.5").Equal(amount))

	amount, err = ParseAmount("-3")
	require.NoError(t, err, "sign is validated by the operation, not the parser")
	assert.True(t, dec("-3").Equal(amount))

	for _, bad := range []string{"", "abc", "1,000", "12.3.4"} {
		_, err := ParseAmount(bad)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, bad)
	}

	for _, outOfRange := range []string{"1e1000000000", "-1e1000000000", "10000000000.5", "0.000000001", "1e-1000000000"} {
		_, err := ParseAmount(outOfRange)
		assert.ErrorIs(t, err, errors.ErrInvalidAmount, outOfRange)
	}
}

func TestLedgerService_OutOfRangeAmountsRejected(t *testing.T) {
	ctx := context.Background()
	s, store := newTestLedger(t)
	_, err := s.CreateAccount(ctx, "Alice", "A100", dec("100"))
	require.NoError(t, err)

	_, err = s.CreateAccount(ctx, "Bob", "B200", dec("10000000001"))
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	huge := dec("1e1000000000")
	_, err = s.Deposit(ctx, "A100", huge)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	_, err = s.Withdraw(ctx, "A100", huge)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	assertBalance(t, s, "A100", "100")
	assert.Equal(t, 1, s.AccountCount())
	assert.Equal(t, 1, store.saveCount())
}
