package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type accountRow struct {
	AccountNumber string
	HolderName    string
	Balance       decimal.Decimal
}

type accountRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func newAccountRepository(db SQLExecutor, logger *slog.Logger) *accountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

func (r *accountRepository) InsertAccount(ctx context.Context, position int, account domain.Account) error {
	query := `
		INSERT INTO ledger_accounts (account_number, position, holder_name, balance)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.AccountNumber,
		position,
		account.HolderName,
		account.Balance.String(),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			r.logger.Warn("Duplicate account in snapshot", "account_number", account.AccountNumber)
			return errors.ErrDuplicateAccount
		}
		return fmt.Errorf("insert account %s: %w", account.AccountNumber, err)
	}
	return nil
}

func (r *accountRepository) DeleteAllAccounts(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ledger_accounts`); err != nil {
		return fmt.Errorf("delete accounts: %w", err)
	}
	return nil
}

// ListAccounts returns accounts in insertion order.
func (r *accountRepository) ListAccounts(ctx context.Context) ([]accountRow, error) {
	query := `
		SELECT account_number, holder_name, balance
		FROM ledger_accounts ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []accountRow
	for rows.Next() {
		var row accountRow
		var balanceStr string
		if err := rows.Scan(&row.AccountNumber, &row.HolderName, &balanceStr); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}

		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			r.logger.Error("Failed to parse balance", "account_number", row.AccountNumber, "balance_str", balanceStr, "error", err)
			return nil, fmt.Errorf("%w: account %s balance %q", domain.ErrCorruptSnapshot, row.AccountNumber, balanceStr)
		}
		row.Balance = balance
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}
