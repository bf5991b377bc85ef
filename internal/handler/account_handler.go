package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"account-ledger/internal/service"
)

type AccountHandler struct {
	ledger *service.LedgerService
}

func NewAccountHandler(ledger *service.LedgerService) *AccountHandler {
	return &AccountHandler{
		ledger: ledger,
	}
}

type CreateAccountRequest struct {
	HolderName     string     `json:"holder_name"`
	AccountNumber  string     `json:"account_number"`
	InitialBalance amountText `json:"initial_balance"`
}

type BalanceResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	initialBalance, err := service.ParseAmount(string(req.InitialBalance))
	if err != nil {
		writeError(w, err)
		return
	}

	account, err := h.ledger.CreateAccount(r.Context(), req.HolderName, req.AccountNumber, initialBalance)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.FindAccount(r.Context(), mux.Vars(r)["account_number"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountNumber := mux.Vars(r)["account_number"]

	balance, err := h.ledger.GetBalance(r.Context(), accountNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{
		AccountNumber: accountNumber,
		Balance:       balance.String(),
	})
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteAccount(r.Context(), mux.Vars(r)["account_number"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
