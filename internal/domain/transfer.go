package domain

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxErrorMessageLength is the maximum number of characters stored in
// TransferRequest.ErrorMessage.
const MaxErrorMessageLength = 1000

// TransferRequest is an asynchronous request to move Amount (in Currency)
// from SourceAccountID to DestinationAccountID before ExpiresAt.
type TransferRequest struct {
	ID                   uuid.UUID       `json:"transfer_id"`
	SourceAccountID      uuid.UUID       `json:"source_account_id"`
	DestinationAccountID uuid.UUID       `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Status               TransferStatus  `json:"status"`
	ErrorMessage         *string         `json:"error_message,omitempty"`
	CreatedBy            string          `json:"created_by"`
	CreatedAt            time.Time       `json:"created_at"`
	ExpiresAt            time.Time       `json:"expires_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// IsExpired reports whether the deadline has been reached at now.
func (t *TransferRequest) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// SetError records message, truncated to MaxErrorMessageLength.
func (t *TransferRequest) SetError(message string) {
	truncated := TruncateErrorMessage(message)
	t.ErrorMessage = &truncated
}

// TruncateErrorMessage cuts message to MaxErrorMessageLength characters
// without splitting a multi-byte rune.
func TruncateErrorMessage(message string) string {
	if utf8.RuneCountInString(message) <= MaxErrorMessageLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:MaxErrorMessageLength])
}

// Before orders requests by (CreatedAt, ID), comparing ids by their canonical
// string form when creation times are equal.
func (t *TransferRequest) Before(other *TransferRequest) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.ID.String() < other.ID.String()
}

type TransferRepository interface {
	CreateTransfer(ctx context.Context, transfer *TransferRequest) error
	GetTransfer(ctx context.Context, id uuid.UUID) (*TransferRequest, error)
	// GetTransferForUpdate reads the request and holds its row lock until the
	// surrounding transaction ends.
	GetTransferForUpdate(ctx context.Context, id uuid.UUID) (*TransferRequest, error)
	// ListActiveTransfers returns every request with status NEW or IN_PROGRESS.
	ListActiveTransfers(ctx context.Context) ([]*TransferRequest, error)
	// ListTransfers returns requests, newest first, optionally filtered by status.
	ListTransfers(ctx context.Context, status *TransferStatus) ([]*TransferRequest, error)
	// UpdateTransfer persists Status and ErrorMessage.
	UpdateTransfer(ctx context.Context, transfer *TransferRequest) error
	DeleteTransfer(ctx context.Context, id uuid.UUID) error
}
