package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"account-ledger/internal/domain"
	"account-ledger/internal/service"
)

type TransactionHandler struct {
	ledger *service.LedgerService
}

func NewTransactionHandler(ledger *service.LedgerService) *TransactionHandler {
	return &TransactionHandler{
		ledger: ledger,
	}
}

type AmountRequest struct {
	Amount amountText `json:"amount"`
}

type HistoryResponse struct {
	AccountNumber string                `json:"account_number"`
	Transactions  []TransactionResponse `json:"transactions"`
}

func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ledger.Deposit)
}

func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ledger.Withdraw)
}

func (h *TransactionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountNumber := mux.Vars(r)["account_number"]

	history, err := h.ledger.GetHistory(r.Context(), accountNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		AccountNumber: accountNumber,
		Transactions:  toTransactionResponses(history),
	})
}

type moveFunc func(ctx context.Context, accountNumber string, amount decimal.Decimal) (*domain.Account, error)

func (h *TransactionHandler) move(w http.ResponseWriter, r *http.Request, op moveFunc) {
	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := service.ParseAmount(string(req.Amount))
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := op(r.Context(), mux.Vars(r)["account_number"], amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}
