package service

import (
	"context"

	"account-ledger/internal/domain"
)

// GenerateReport summarises all accounts. It never writes to the store.
func (s *LedgerService) GenerateReport(_ context.Context) domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.NewReport(s.accounts, s.now())
}
