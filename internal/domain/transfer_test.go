package domain

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferRequest_IsExpired(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	transfer := &TransferRequest{ExpiresAt: deadline}

	assert.False(t, transfer.IsExpired(deadline.Add(-time.Nanosecond)))
	assert.True(t, transfer.IsExpired(deadline), "deadline itself counts as expired")
	assert.True(t, transfer.IsExpired(deadline.Add(time.Second)))
}

func TestTransferRequest_SetErrorTruncates(t *testing.T) {
	transfer := &TransferRequest{}

	transfer.SetError(strings.Repeat("é", MaxErrorMessageLength+50))

	require.NotNil(t, transfer.ErrorMessage)
	assert.Equal(t, MaxErrorMessageLength, utf8.RuneCountInString(*transfer.ErrorMessage))
	assert.True(t, utf8.ValidString(*transfer.ErrorMessage))
}

func TestTransferRequest_SetErrorKeepsShortMessage(t *testing.T) {
	transfer := &TransferRequest{}
	transfer.SetError("boom")
	assert.Equal(t, "boom", *transfer.ErrorMessage)
}

func TestTransferRequest_Before(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	low := &TransferRequest{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000a"), CreatedAt: createdAt}
	high := &TransferRequest{ID: uuid.MustParse("00000000-0000-0000-0000-00000000000b"), CreatedAt: createdAt}
	older := &TransferRequest{ID: uuid.MustParse("ffffffff-0000-0000-0000-000000000000"), CreatedAt: createdAt.Add(-time.Second)}

	assert.True(t, low.Before(high))
	assert.False(t, high.Before(low))
	assert.True(t, older.Before(low), "creation time wins over id")
}
