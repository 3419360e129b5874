package processing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"async-transfers/internal/domain"
	"async-transfers/internal/exchange"
	"async-transfers/internal/repository/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore() *memory.Store {
	return memory.NewStore(discardLogger())
}

func newTestRates(t *testing.T) *exchange.Table {
	t.Helper()
	rates, err := exchange.ParseRates("USD:1,EUR:0.92")
	require.NoError(t, err)
	table, err := exchange.NewTable(rates)
	require.NoError(t, err)
	return table
}

func createAccount(t *testing.T, store domain.Store, balance, currency string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		ID:          uuid.New(),
		DisplayName: "test account",
		OwnerID:     "owner",
		Balance:     decimal.RequireFromString(balance),
		Currency:    currency,
	}
	require.NoError(t, store.Accounts().CreateAccount(context.Background(), account))
	return account
}

type transferOption func(*domain.TransferRequest)

func createdAt(at time.Time) transferOption {
	return func(transfer *domain.TransferRequest) {
		transfer.CreatedAt = at
	}
}

func expiresAt(at time.Time) transferOption {
	return func(transfer *domain.TransferRequest) {
		transfer.ExpiresAt = at
	}
}

func withStatus(status domain.TransferStatus) transferOption {
	return func(transfer *domain.TransferRequest) {
		transfer.Status = status
	}
}

func createTransfer(t *testing.T, store domain.Store, from, to uuid.UUID, amount, currency string, opts ...transferOption) *domain.TransferRequest {
	t.Helper()
	transfer := &domain.TransferRequest{
		ID:                   uuid.New(),
		SourceAccountID:      from,
		DestinationAccountID: to,
		Amount:               decimal.RequireFromString(amount),
		Currency:             currency,
		Status:               domain.StatusNew,
		CreatedBy:            "tester",
		CreatedAt:            testNow.Add(-time.Minute),
		ExpiresAt:            testNow.Add(10 * time.Minute),
	}
	for _, opt := range opts {
		opt(transfer)
	}
	require.NoError(t, store.Transfers().CreateTransfer(context.Background(), transfer))
	return transfer
}

func requireBalance(t *testing.T, store domain.Store, id uuid.UUID, want string) {
	t.Helper()
	account, err := store.Accounts().GetAccount(context.Background(), id)
	require.NoError(t, err)
	require.Truef(t, account.Balance.Equal(decimal.RequireFromString(want)),
		"account %s balance = %s, want %s", id, account.Balance, want)
}

func requireStatus(t *testing.T, store domain.Store, id uuid.UUID, want domain.TransferStatus) *domain.TransferRequest {
	t.Helper()
	transfer, err := store.Transfers().GetTransfer(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, want, transfer.Status)
	return transfer
}
