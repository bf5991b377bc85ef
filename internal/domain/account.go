package domain

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"account-ledger/internal/errors"
)

const (
	// MaxAmountScale is the largest number of decimal places an amount may carry.
	MaxAmountScale  = 8
	maxAmountDigits = 11
)

// MaxAmount caps any single amount, initial balances included.
var MaxAmount = decimal.NewFromInt(10_000_000_000) // 10 billion

// CheckAmountBounds rejects amounts above MaxAmount or finer than
// MaxAmountScale decimal places. The digit count is checked before any
// comparison so that huge exponents are never expanded.
func CheckAmountBounds(amount decimal.Decimal) error {
	exp := int(amount.Exponent())
	if exp < -MaxAmountScale {
		return errors.NewAppErrorf(errors.InvalidAmount, "amount has more than %d decimal places", MaxAmountScale)
	}
	if exp+amount.NumDigits() > maxAmountDigits || amount.Abs().GreaterThan(MaxAmount) {
		return errors.NewAppError(errors.InvalidAmount, "amount exceeds maximum limit")
	}
	return nil
}

type Account struct {
	HolderName    string          `json:"holder_name"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	History       []Transaction   `json:"history"`
}

// NewAccount opens an account whose history starts with an AccountCreated
// entry for the initial balance.
func NewAccount(holderName, accountNumber string, initialBalance decimal.Decimal, at time.Time) Account {
	return Account{
		HolderName:    holderName,
		AccountNumber: accountNumber,
		Balance:       initialBalance,
		History:       []Transaction{NewTransaction(KindAccountCreated, initialBalance, at)},
	}
}

// Clone returns a copy that shares no backing array with a.
func (a Account) Clone() Account {
	a.History = slices.Clone(a.History)
	return a
}

func (a *Account) Deposit(amount decimal.Decimal, at time.Time) error {
	if err := CheckAmountBounds(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	a.Balance = a.Balance.Add(amount)
	a.record(KindDeposit, amount, at)
	return nil
}

func (a *Account) Withdraw(amount decimal.Decimal, at time.Time) error {
	if err := CheckAmountBounds(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if amount.GreaterThan(a.Balance) {
		return errors.ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	a.record(KindWithdraw, amount, at)
	return nil
}

// record appends to the history. Timestamps never go backwards within one
// account even if the wall clock does.
func (a *Account) record(kind TransactionKind, amount decimal.Decimal, at time.Time) {
	if n := len(a.History); n > 0 && at.Before(a.History[n-1].Timestamp) {
		at = a.History[n-1].Timestamp
	}
	a.History = append(a.History, NewTransaction(kind, amount, at))
}

var (
	errEmptyHistory   = stderrors.New("history is empty")
	errNegativeAmount = stderrors.New("negative transaction amount")
)

// Validate checks the balance invariant against the history.
func (a Account) Validate() error {
	if a.AccountNumber == "" {
		return fmt.Errorf("account number is empty")
	}
	if len(a.History) == 0 {
		return fmt.Errorf("account %s: %w", a.AccountNumber, errEmptyHistory)
	}
	if a.History[0].Kind != KindAccountCreated {
		return fmt.Errorf("account %s: first entry is %s, want %s", a.AccountNumber, a.History[0].Kind, KindAccountCreated)
	}

	var sum decimal.Decimal
	for i, tx := range a.History {
		if tx.Amount.IsNegative() {
			return fmt.Errorf("account %s entry %d: %w", a.AccountNumber, i, errNegativeAmount)
		}
		switch tx.Kind {
		case KindAccountCreated:
			if i != 0 {
				return fmt.Errorf("account %s entry %d: duplicate %s", a.AccountNumber, i, KindAccountCreated)
			}
			sum = tx.Amount
		case KindDeposit:
			sum = sum.Add(tx.Amount)
		case KindWithdraw:
			sum = sum.Sub(tx.Amount)
		default:
			return fmt.Errorf("account %s entry %d: unknown kind %q", a.AccountNumber, i, tx.Kind)
		}
		if sum.IsNegative() {
			return fmt.Errorf("account %s entry %d: balance goes negative", a.AccountNumber, i)
		}
	}

	if !sum.Equal(a.Balance) {
		return fmt.Errorf("account %s: balance %s does not match history total %s", a.AccountNumber, a.Balance, sum)
	}
	return nil
}

var (
	ErrSnapshotNotFound = stderrors.New("snapshot not found")
	ErrCorruptSnapshot  = stderrors.New("snapshot is corrupt")
)

// SnapshotStore persists the whole account collection at once.
type SnapshotStore interface {
	// Load returns ErrSnapshotNotFound when nothing has been saved yet and an
	// error wrapping ErrCorruptSnapshot when the stored data cannot be decoded.
	Load(ctx context.Context) ([]Account, error)
	Save(ctx context.Context, accounts []Account) error
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}
