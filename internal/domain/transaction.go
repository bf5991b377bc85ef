package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind identifies the event a transaction records.
type TransactionKind string

const (
	KindAccountCreated TransactionKind = "account_created"
	KindDeposit        TransactionKind = "deposit"
	KindWithdraw       TransactionKind = "withdraw"
)

// Label returns the human readable name used in reports.
func (k TransactionKind) Label() string {
	switch k {
	case KindAccountCreated:
		return "Account Created"
	case KindDeposit:
		return "Deposit"
	case KindWithdraw:
		return "Withdraw"
	default:
		return string(k)
	}
}

func (k TransactionKind) Valid() bool {
	switch k {
	case KindAccountCreated, KindDeposit, KindWithdraw:
		return true
	}
	return false
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown transaction kind %q", string(k))
	}
	return []byte(k), nil
}

func (k *TransactionKind) UnmarshalText(text []byte) error {
	kind := TransactionKind(text)
	if !kind.Valid() {
		return fmt.Errorf("unknown transaction kind %q", string(text))
	}
	*k = kind
	return nil
}

// Transaction is one immutable entry in an account's history.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Kind      TransactionKind `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewTransaction(kind TransactionKind, amount decimal.Decimal, at time.Time) Transaction {
	return Transaction{
		ID:        uuid.New(),
		Kind:      kind,
		Amount:    amount,
		Timestamp: at,
	}
}
