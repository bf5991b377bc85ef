package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
)

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func newTransactionRepository(db SQLExecutor, logger *slog.Logger) *transactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) InsertTransaction(ctx context.Context, accountNumber string, seq int, tx domain.Transaction) error {
	query := `
		INSERT INTO ledger_transactions
		(id, account_number, seq, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		accountNumber,
		seq,
		string(tx.Kind),
		tx.Amount.String(),
		tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s for account %s: %w", tx.ID, accountNumber, err)
	}
	return nil
}

// ListTransactions returns every transaction grouped by account number, each
// group in history order.
func (r *transactionRepository) ListTransactions(ctx context.Context) (map[string][]domain.Transaction, error) {
	query := `
		SELECT id, account_number, kind, amount, created_at
		FROM ledger_transactions ORDER BY account_number, seq
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Transaction)
	for rows.Next() {
		var (
			id            uuid.UUID
			accountNumber string
			kind          string
			amountStr     string
			createdAt     time.Time
		)
		if err := rows.Scan(&id, &accountNumber, &kind, &amountStr, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		var tx domain.Transaction
		if err := tx.Kind.UnmarshalText([]byte(kind)); err != nil {
			return nil, fmt.Errorf("%w: transaction %s: %v", domain.ErrCorruptSnapshot, id, err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %s amount %q", domain.ErrCorruptSnapshot, id, amountStr)
		}
		tx.ID = id
		tx.Amount = amount
		tx.Timestamp = createdAt.UTC()

		out[accountNumber] = append(out[accountNumber], tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}
