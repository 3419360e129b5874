package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound     ErrorCode = "account_not_found"
	TransferNotFound    ErrorCode = "transfer_not_found"
	DuplicateAccount    ErrorCode = "duplicate_account"
	DuplicateTransfer   ErrorCode = "duplicate_transfer"
	TransferNotTerminal ErrorCode = "transfer_not_terminal"
	InsufficientFunds   ErrorCode = "insufficient_funds"
	InvalidInput        ErrorCode = "invalid_input"
	InvalidAmount       ErrorCode = "invalid_amount"
	InvalidAccountID    ErrorCode = "invalid_account_id"
	SameAccountTransfer ErrorCode = "same_account_transfer"
	UnsupportedCurrency ErrorCode = "unsupported_currency"
	InternalError       ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	cause error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying driver or library error, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any AppError carrying the same code, so predefined errors can be
// used with errors.Is after WithDetails or Wrap produced a copy.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !stderrors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
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

// WithDetails returns a copy of e carrying details. Predefined errors are
// shared, so they are never mutated.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy of e with err recorded as its cause and as details.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.cause = err
	if err != nil {
		cp.Details = err.Error()
	}
	return &cp
}

func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound, TransferNotFound:
		return http.StatusNotFound
	case DuplicateAccount, DuplicateTransfer, TransferNotTerminal:
		return http.StatusConflict
	case InsufficientFunds:
		return http.StatusUnprocessableEntity
	case InvalidInput, InvalidAmount, InvalidAccountID, SameAccountTransfer, UnsupportedCurrency:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FromError extracts an AppError from err's chain.
func FromError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Internal wraps an infrastructure failure.
func Internal(message string, err error) *AppError {
	return NewAppError(InternalError, message).Wrap(err)
}

// Predefined errors for common cases
var (
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrTransferNotFound       = NewAppError(TransferNotFound, "transfer request not found")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account already exists")
	ErrDuplicateTransfer      = NewAppError(DuplicateTransfer, "transfer request already exists")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds")
	ErrInvalidAmount          = NewAppError(InvalidAmount, "amount must be positive")
	ErrInvalidAccountID       = NewAppError(InvalidAccountID, "invalid account id")
	ErrSameAccountTransfer    = NewAppError(SameAccountTransfer, "source and destination accounts must differ")
	ErrUnsupportedCurrency    = NewAppError(UnsupportedCurrency, "currency is not supported")
	ErrCannotBeginTransaction = NewAppError(InternalError, "cannot begin a transaction inside a transaction")
)
