package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound   ErrorCode = "account_not_found"
	DuplicateAccount  ErrorCode = "duplicate_account"
	InvalidInput      ErrorCode = "invalid_input"
	InvalidAmount     ErrorCode = "invalid_amount"
	InsufficientFunds ErrorCode = "insufficient_funds"
	StorageFailure    ErrorCode = "storage_failure"
	Unauthorized      ErrorCode = "unauthorized"
	InternalError     ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	cause   error
}

func (e AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError with the same code, so sentinels
// match copies made by WithDetails and Wrap.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound:
		return http.StatusNotFound
	case DuplicateAccount:
		return http.StatusConflict
	case InvalidInput, InvalidAmount:
		return http.StatusBadRequest
	case InsufficientFunds:
		return http.StatusUnprocessableEntity
	case Unauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy of e carrying details.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of e that records cause as details and unwraps to it.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	if cause != nil {
		cp.Details = cause.Error()
	}
	return &cp
}

// AsAppError converts any error to an AppError, falling back to InternalError.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(InternalError, "an unexpected error occurred").Wrap(err)
}

// Predefined errors for common cases
var (
	ErrAccountNotFound   = NewAppError(AccountNotFound, "account not found")
	ErrDuplicateAccount  = NewAppError(DuplicateAccount, "account already exists")
	ErrInvalidInput      = NewAppError(InvalidInput, "invalid input")
	ErrInvalidAmount     = NewAppError(InvalidAmount, "amount must be positive")
	ErrInsufficientFunds = NewAppError(InsufficientFunds, "insufficient funds")
	ErrStorageFailure    = NewAppError(StorageFailure, "failed to persist ledger")
	ErrUnauthorized      = NewAppError(Unauthorized, "invalid username or password")
)
