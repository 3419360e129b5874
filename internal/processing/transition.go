package processing

import (
	"context"

	"github.com/google/uuid"

	"async-transfers/internal/domain"
)

// Outcome of a guarded status transition.
type Outcome uint8

const (
	// NotClaimed means the request's current status is not an allowed
	// source for the target; nothing was written.
	NotClaimed Outcome = iota
	// Claimed means the request moved to the target status.
	Claimed
)

// Claim is the result of Transition. Request holds the updated request when
// claimed; Current holds the status observed under the row lock either way.
type Claim struct {
	Outcome Outcome
	Request *domain.TransferRequest
	Current domain.TransferStatus
}

func (c Claim) Claimed() bool {
	return c.Outcome == Claimed
}

// Transition atomically moves request id to target if, under its row lock,
// the current status is one of domain.AllowedSources(target). mutate, if not
// nil, is applied to the request before it is persisted.
func Transition(
	ctx context.Context,
	store domain.Store,
	id uuid.UUID,
	target domain.TransferStatus,
	mutate func(*domain.TransferRequest),
) (Claim, error) {
	var claim Claim
	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		var err error
		claim, err = transitionLocked(ctx, tx, id, target, mutate)
		return err
	})
	if err != nil {
		return Claim{}, err
	}
	return claim, nil
}

// transitionLocked is Transition inside an existing transaction. The request
// row lock stays held until that transaction ends.
func transitionLocked(
	ctx context.Context,
	tx domain.Store,
	id uuid.UUID,
	target domain.TransferStatus,
	mutate func(*domain.TransferRequest),
) (Claim, error) {
	transfer, err := tx.Transfers().GetTransferForUpdate(ctx, id)
	if err != nil {
		return Claim{}, err
	}

	if !transfer.Status.CanTransitionTo(target) {
		return Claim{Outcome: NotClaimed, Current: transfer.Status}, nil
	}

	transfer.Status = target
	if mutate != nil {
		mutate(transfer)
	}

	if err := tx.Transfers().UpdateTransfer(ctx, transfer); err != nil {
		return Claim{}, err
	}

	return Claim{Outcome: Claimed, Request: transfer, Current: target}, nil
}

// failWith returns a mutation recording message on the request.
func failWith(message string) func(*domain.TransferRequest) {
	return func(transfer *domain.TransferRequest) {
		transfer.SetError(message)
	}
}
