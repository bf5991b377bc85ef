package handler

import (
	"log/slog"
	"net/http"

	"account-ledger/internal/service"
)

type ReportHandler struct {
	ledger *service.LedgerService
	logger *slog.Logger
}

func NewReportHandler(ledger *service.LedgerService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		ledger: ledger,
		logger: logger,
	}
}

type ReportResponse struct {
	GeneratedAt  string            `json:"generated_at"`
	AccountCount int               `json:"account_count"`
	TotalBalance string            `json:"total_balance"`
	Accounts     []AccountResponse `json:"accounts"`
}

// GetReport renders JSON by default and plain text for ?format=text.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report := h.ledger.GenerateReport(r.Context())

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := report.WriteText(w); err != nil {
			h.logger.Error("Failed to write text report", "accounts", report.AccountCount, "error", err)
		}
		return
	}

	response := ReportResponse{
		GeneratedAt:  report.GeneratedAt.Format("2006-01-02T15:04:05.000000Z07:00"),
		AccountCount: report.AccountCount,
		TotalBalance: report.TotalBalance.String(),
		Accounts:     make([]AccountResponse, 0, len(report.Accounts)),
	}
	for i := range report.Accounts {
		response.Accounts = append(response.Accounts, toAccountResponse(&report.Accounts[i]))
	}

	writeJSON(w, http.StatusOK, response)
}
