package handler

import (
	"encoding/json"
	"net/http"

	"account-ledger/internal/domain"
	"account-ledger/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type TransactionResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Label     string `json:"label"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

type AccountResponse struct {
	HolderName    string                `json:"holder_name"`
	AccountNumber string                `json:"account_number"`
	Balance       string                `json:"balance"`
	History       []TransactionResponse `json:"history"`
}

// amountText accepts an amount given either as a JSON string or a JSON
// number and keeps its exact text for decimal parsing.
type amountText string

func (a *amountText) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountText(s)
		return nil
	}
	*a = amountText(b)
	return nil
}

func toTransactionResponses(history []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(history))
	for _, tx := range history {
		out = append(out, TransactionResponse{
			ID:        tx.ID.String(),
			Kind:      string(tx.Kind),
			Label:     tx.Kind.Label(),
			Amount:    tx.Amount.String(),
			Timestamp: tx.Timestamp.Format("2006-01-02T15:04:05.000000Z07:00"),
		})
	}
	return out
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		HolderName:    a.HolderName,
		AccountNumber: a.AccountNumber,
		Balance:       a.Balance.String(),
		History:       toTransactionResponses(a.History),
	}
}

func decodeJSON(r *http.Request, v interface{}) *errors.AppError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, err error) {
	appErr := errors.AsAppError(err)
	w.Header().Set("Content-Type", "application/json")

	statusCode := appErr.HTTPStatus()
	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

// WriteError is exported for middleware that rejects requests before they
// reach a handler.
func WriteError(w http.ResponseWriter, err error) {
	writeError(w, err)
}
