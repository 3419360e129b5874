package processing

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
	"async-transfers/internal/exchange"
)

// Result is what one execution did to its request.
type Result uint8

const (
	// ResultSkipped means the request was not claimed (already claimed,
	// terminal, or the claim itself failed) and nothing was changed.
	ResultSkipped Result = iota
	ResultCompleted
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultCompleted:
		return "completed"
	case ResultFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// errClaimLost aborts the balance mutation when the request left IN_PROGRESS
// while it was being resolved.
var errClaimLost = stderrors.New("transfer request is no longer in progress")

// Executor runs one transfer request from claim to terminal status.
type Executor struct {
	store  domain.Store
	rates  exchange.RateProvider
	logger *slog.Logger
}

func NewExecutor(store domain.Store, rates exchange.RateProvider, logger *slog.Logger) *Executor {
	return &Executor{
		store:  store,
		rates:  rates,
		logger: logger,
	}
}

// Execute claims the request and, when claimed, moves money and completes it.
// Errors never escape: anything that goes wrong after the claim fails the
// request with a stored message.
func (e *Executor) Execute(ctx context.Context, id uuid.UUID) Result {
	logger := e.logger.With("transfer_id", id)
	logger.Debug("Processing transfer started")

	claim, err := Transition(ctx, e.store, id, domain.StatusInProgress, nil)
	if err != nil {
		// still NEW; the next tick selects it again
		logger.Error("Failed to claim transfer", "error", err)
		return ResultSkipped
	}
	if !claim.Claimed() {
		logger.Debug("Transfer already claimed", "status", claim.Current)
		return ResultSkipped
	}

	err = e.process(ctx, claim.Request)
	switch {
	case err == nil:
		logger.Info("Transfer completed",
			"source_account_id", claim.Request.SourceAccountID,
			"destination_account_id", claim.Request.DestinationAccountID,
			"amount", claim.Request.Amount,
			"currency", claim.Request.Currency)
		return ResultCompleted
	case stderrors.Is(err, errClaimLost):
		logger.Warn("Transfer left IN_PROGRESS before completion, balances untouched")
		return ResultSkipped
	}

	logger.Error("Transfer failed", "error", err)
	e.fail(ctx, id, failureMessage(err))
	return ResultFailed
}

func (e *Executor) process(ctx context.Context, transfer *domain.TransferRequest) error {
	source, err := e.store.Accounts().GetAccount(ctx, transfer.SourceAccountID)
	if err != nil {
		return fmt.Errorf("source account %s: %w", transfer.SourceAccountID, err)
	}
	destination, err := e.store.Accounts().GetAccount(ctx, transfer.DestinationAccountID)
	if err != nil {
		return fmt.Errorf("destination account %s: %w", transfer.DestinationAccountID, err)
	}

	debit, err := e.rates.Convert(ctx, transfer.Amount, transfer.Currency, source.Currency)
	if err != nil {
		return fmt.Errorf("convert debit to %s: %w", source.Currency, err)
	}
	credit, err := e.rates.Convert(ctx, transfer.Amount, transfer.Currency, destination.Currency)
	if err != nil {
		return fmt.Errorf("convert credit to %s: %w", destination.Currency, err)
	}

	return e.store.WithTransaction(ctx, func(tx domain.Store) error {
		// request row first, then accounts: the lock order every transaction follows
		claim, err := transitionLocked(ctx, tx, transfer.ID, domain.StatusCompleted, nil)
		if err != nil {
			return err
		}
		if !claim.Claimed() {
			return errClaimLost
		}

		return moveFunds(ctx, tx.Accounts(), transfer.SourceAccountID, transfer.DestinationAccountID, debit, credit)
	})
}

// moveFunds locks both accounts in ascending id order, checks the source
// balance covers debit, then debits source and credits destination.
func moveFunds(
	ctx context.Context,
	accounts domain.AccountRepository,
	sourceID, destinationID uuid.UUID,
	debit, credit decimal.Decimal,
) error {
	locked := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range lockOrder(sourceID, destinationID) {
		account, err := accounts.GetAccountForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("lock account %s: %w", id, err)
		}
		locked[id] = account
	}

	source, destination := locked[sourceID], locked[destinationID]
	if source.Balance.LessThan(debit) {
		return errors.ErrInsufficientFunds.WithDetails(fmt.Sprintf(
			"account %s holds %s %s, debit requires %s",
			source.ID, source.Balance, source.Currency, debit))
	}

	if err := accounts.UpdateAccountBalance(ctx, source.ID, source.Balance.Sub(debit)); err != nil {
		return err
	}
	return accounts.UpdateAccountBalance(ctx, destination.ID, destination.Balance.Add(credit))
}

// lockOrder returns the two ids in ascending lexical order of their string form.
func lockOrder(a, b uuid.UUID) [2]uuid.UUID {
	if b.String() < a.String() {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}

// fail moves the request to FAILED unless it already reached a terminal status.
func (e *Executor) fail(ctx context.Context, id uuid.UUID, message string) {
	claim, err := Transition(ctx, e.store, id, domain.StatusFailed, failWith(message))
	if err != nil {
		e.logger.Error("Failed to mark transfer as failed", "transfer_id", id, "error", err)
		return
	}
	if !claim.Claimed() {
		e.logger.Debug("Transfer already terminal, failure not recorded", "transfer_id", id, "status", claim.Current)
	}
}

// failureMessage renders err for TransferRequest.ErrorMessage.
func failureMessage(err error) string {
	message := "processing failed: " + err.Error()
	if appErr, ok := errors.FromError(err); ok && appErr.Details != "" {
		message += " (" + appErr.Details + ")"
	}
	return message
}
