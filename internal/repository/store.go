package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"account-ledger/internal/domain"
)

var errCannotBeginTransaction = stderrors.New("store is already inside a transaction")

// Store is the PostgreSQL snapshot store. It groups the table repositories
// and runs a whole snapshot write as one unit of work.
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

func NewStore(db DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

func (s *Store) Account() *accountRepository {
	return newAccountRepository(s.executor, s.logger)
}

func (s *Store) Transaction() *transactionRepository {
	return newTransactionRepository(s.executor, s.logger)
}

// WithTransaction executes a function within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	db, ok := s.executor.(DB)
	if !ok {
		return errCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txStore := &Store{
		executor: tx,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *Store) Load(ctx context.Context) ([]domain.Account, error) {
	var version int
	err := s.executor.QueryRowContext(ctx, `SELECT version FROM ledger_snapshots WHERE id = 1`).Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read snapshot marker: %w", err)
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d, want %d", domain.ErrCorruptSnapshot, version, snapshotVersion)
	}

	rows, err := s.Account().ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.Transaction().ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, domain.Account{
			HolderName:    row.HolderName,
			AccountNumber: row.AccountNumber,
			Balance:       row.Balance,
			History:       history[row.AccountNumber],
		})
	}
	if err := validateAccounts(accounts); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptSnapshot, err)
	}

	s.logger.Debug("Snapshot loaded", "accounts", len(accounts))
	return accounts, nil
}

// Save replaces every stored account and transaction in one SQL transaction.
func (s *Store) Save(ctx context.Context, accounts []domain.Account) error {
	err := s.WithTransaction(ctx, func(tx *Store) error {
		if err := tx.Account().DeleteAllAccounts(ctx); err != nil {
			return err
		}

		for i, account := range accounts {
			if err := tx.Account().InsertAccount(ctx, i, account); err != nil {
				return err
			}
			for seq, entry := range account.History {
				if err := tx.Transaction().InsertTransaction(ctx, account.AccountNumber, seq, entry); err != nil {
					return err
				}
			}
		}

		_, err := tx.executor.ExecContext(ctx, `
			INSERT INTO ledger_snapshots (id, version, saved_at) VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, saved_at = EXCLUDED.saved_at
		`, snapshotVersion, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("write snapshot marker: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save snapshot", "accounts", len(accounts), "error", err)
		return err
	}

	s.logger.Debug("Snapshot saved", "accounts", len(accounts))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	db, ok := s.executor.(DB)
	if !ok {
		return errCannotBeginTransaction
	}
	return db.PingContext(ctx)
}
