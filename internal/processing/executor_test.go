package processing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"async-transfers/internal/domain"
	"async-transfers/internal/exchange"
)

func newTestExecutor(t *testing.T, store domain.Store) *Executor {
	t.Helper()
	return NewExecutor(store, newTestRates(t), discardLogger())
}

func TestExecutor_CompletesTransfer(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "2000", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")

	result := newTestExecutor(t, store).Execute(ctx, transfer.ID)

	assert.Equal(t, ResultCompleted, result)
	stored := requireStatus(t, store, transfer.ID, domain.StatusCompleted)
	assert.Nil(t, stored.ErrorMessage)
	requireBalance(t, store, a.ID, "900")
	requireBalance(t, store, b.ID, "2100")
}

func TestExecutor_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "50", "USD")
	b := createAccount(t, store, "0", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")

	result := newTestExecutor(t, store).Execute(ctx, transfer.ID)

	assert.Equal(t, ResultFailed, result)
	stored := requireStatus(t, store, transfer.ID, domain.StatusFailed)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "insufficient funds")
	requireBalance(t, store, a.ID, "50")
	requireBalance(t, store, b.ID, "0")
}

func TestExecutor_ExactBalanceIsEnough(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "100", "USD")
	b := createAccount(t, store, "0", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")

	assert.Equal(t, ResultCompleted, newTestExecutor(t, store).Execute(ctx, transfer.ID))
	requireBalance(t, store, a.ID, "0")
	requireBalance(t, store, b.ID, "100")
}

func TestExecutor_MissingDestinationAccount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	transfer := createTransfer(t, store, a.ID, uuid.New(), "100", "USD")

	result := newTestExecutor(t, store).Execute(ctx, transfer.ID)

	assert.Equal(t, ResultFailed, result)
	stored := requireStatus(t, store, transfer.ID, domain.StatusFailed)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "account not found")
	requireBalance(t, store, a.ID, "1000")
}

func TestExecutor_DestinationDeletedWhileLocked(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "0", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")

	result := make(chan Result, 1)
	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		if _, err := tx.Accounts().GetAccountForUpdate(ctx, b.ID); err != nil {
			return err
		}
		go func() {
			result <- newTestExecutor(t, store).Execute(ctx, transfer.ID)
		}()
		time.Sleep(20 * time.Millisecond)
		return tx.Accounts().DeleteAccount(ctx, b.ID)
	})
	require.NoError(t, err)

	assert.Equal(t, ResultFailed, <-result)
	stored := requireStatus(t, store, transfer.ID, domain.StatusFailed)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "account_not_found")
	requireBalance(t, store, a.ID, "1000")
}

func TestExecutor_ConvertsCrossCurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "0", "EUR")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")

	assert.Equal(t, ResultCompleted, newTestExecutor(t, store).Execute(ctx, transfer.ID))
	requireBalance(t, store, a.ID, "900")
	requireBalance(t, store, b.ID, "92")
}

func TestExecutor_UnsupportedCurrencyFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "0", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "JPY")

	assert.Equal(t, ResultFailed, newTestExecutor(t, store).Execute(ctx, transfer.ID))
	stored := requireStatus(t, store, transfer.ID, domain.StatusFailed)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "JPY")
	requireBalance(t, store, a.ID, "1000")
}

func TestExecutor_SkipsRequestsNotNew(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "0", "USD")

	for _, status := range []domain.TransferStatus{domain.StatusInProgress, domain.StatusCompleted, domain.StatusFailed} {
		transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD", withStatus(status))

		assert.Equal(t, ResultSkipped, newTestExecutor(t, store).Execute(ctx, transfer.ID), status)
		requireStatus(t, store, transfer.ID, status)
	}
	requireBalance(t, store, a.ID, "1000")
}

func TestExecutor_ConcurrentExecutionsMoveMoneyOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "0", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")
	executor := newTestExecutor(t, store)

	const workers = 8
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = executor.Execute(ctx, transfer.ID)
		}(i)
	}
	wg.Wait()

	completed := 0
	for _, result := range results {
		if result == ResultCompleted {
			completed++
		} else {
			assert.Equal(t, ResultSkipped, result)
		}
	}
	assert.Equal(t, 1, completed)
	requireBalance(t, store, a.ID, "900")
	requireBalance(t, store, b.ID, "100")
}

func TestExecutor_OpposingTransfersDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "1000", "USD")
	executor := newTestExecutor(t, store)

	const pairs = 20
	var ids []uuid.UUID
	for i := 0; i < pairs; i++ {
		ids = append(ids,
			createTransfer(t, store, a.ID, b.ID, "10", "USD").ID,
			createTransfer(t, store, b.ID, a.ID, "5", "USD").ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.Equal(t, ResultCompleted, executor.Execute(ctx, id))
		}(id)
	}
	wg.Wait()

	requireBalance(t, store, a.ID, "900")
	requireBalance(t, store, b.ID, "1100")
}

// expiringRates fails the request while it is being converted, the way the
// sweeper would after an abandoned claim.
type expiringRates struct {
	exchange.RateProvider
	store domain.Store
	id    uuid.UUID
	once  sync.Once
}

func (r *expiringRates) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	var err error
	r.once.Do(func() {
		_, err = Transition(ctx, r.store, r.id, domain.StatusFailed, failWith("expired"))
	})
	if err != nil {
		return decimal.Zero, err
	}
	return r.RateProvider.Convert(ctx, amount, from, to)
}

func TestExecutor_ClaimLostLeavesBalancesUntouched(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	a := createAccount(t, store, "1000", "USD")
	b := createAccount(t, store, "0", "USD")
	transfer := createTransfer(t, store, a.ID, b.ID, "100", "USD")

	rates := &expiringRates{RateProvider: newTestRates(t), store: store, id: transfer.ID}
	result := NewExecutor(store, rates, discardLogger()).Execute(ctx, transfer.ID)

	assert.Equal(t, ResultSkipped, result)
	stored := requireStatus(t, store, transfer.ID, domain.StatusFailed)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "expired", *stored.ErrorMessage)
	requireBalance(t, store, a.ID, "1000")
	requireBalance(t, store, b.ID, "0")
}

func TestLockOrder(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	assert.Equal(t, [2]uuid.UUID{a, b}, lockOrder(a, b))
	assert.Equal(t, [2]uuid.UUID{a, b}, lockOrder(b, a))
}

func TestFailureMessage_IncludesDetails(t *testing.T) {
	store := newTestStore()
	a := createAccount(t, store, "1", "USD")
	b := createAccount(t, store, "0", "USD")

	err := moveFunds(context.Background(), store.Accounts(), a.ID, b.ID, decimal.NewFromInt(5), decimal.NewFromInt(5))
	require.Error(t, err)

	message := failureMessage(err)
	assert.Contains(t, message, "processing failed: insufficient_funds: insufficient funds")
	assert.Contains(t, message, a.ID.String())
}
