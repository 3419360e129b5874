package memory

import (
	"context"
	stderrors "errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
)

// errNegativeBalance mirrors the CHECK (balance >= 0) constraint of the SQL schema.
var errNegativeBalance = stderrors.New("balance must not be negative")

type transferRepository struct {
	store *Store
}

func (r *transferRepository) CreateTransfer(ctx context.Context, transfer *domain.TransferRequest) error {
	return r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{transfersTable, transfer.ID}); err != nil {
			return err
		}
		if _, exists := tx.transfer(transfer.ID); exists {
			return errors.ErrDuplicateTransfer
		}

		transfer.UpdatedAt = transfer.CreatedAt
		tx.putTransfer(cloneTransfer(*transfer))
		return nil
	})
}

func (r *transferRepository) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.TransferRequest, error) {
	var found *domain.TransferRequest
	err := r.store.run(func(tx *transaction) error {
		transfer, ok := tx.transfer(id)
		if !ok {
			return errors.ErrTransferNotFound
		}
		transfer = cloneTransfer(transfer)
		found = &transfer
		return nil
	})
	return found, err
}

func (r *transferRepository) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (*domain.TransferRequest, error) {
	var found *domain.TransferRequest
	err := r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{transfersTable, id}); err != nil {
			return err
		}
		transfer, ok := tx.transfer(id)
		if !ok {
			return errors.ErrTransferNotFound
		}
		transfer = cloneTransfer(transfer)
		found = &transfer
		return nil
	})
	return found, err
}

func (r *transferRepository) ListActiveTransfers(ctx context.Context) ([]*domain.TransferRequest, error) {
	transfers, err := r.list(func(transfer domain.TransferRequest) bool {
		return transfer.Status.IsActive()
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(transfers, func(a, b *domain.TransferRequest) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
	return transfers, nil
}

func (r *transferRepository) ListTransfers(ctx context.Context, status *domain.TransferStatus) ([]*domain.TransferRequest, error) {
	transfers, err := r.list(func(transfer domain.TransferRequest) bool {
		return status == nil || transfer.Status == *status
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(transfers, func(a, b *domain.TransferRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return transfers, nil
}

func (r *transferRepository) list(keep func(domain.TransferRequest) bool) ([]*domain.TransferRequest, error) {
	var transfers []*domain.TransferRequest
	err := r.store.run(func(tx *transaction) error {
		visible := tx.visibleTransfers()
		transfers = make([]*domain.TransferRequest, 0, len(visible))
		for _, transfer := range visible {
			if keep(transfer) {
				transfer = cloneTransfer(transfer)
				transfers = append(transfers, &transfer)
			}
		}
		return nil
	})
	return transfers, err
}

func (r *transferRepository) UpdateTransfer(ctx context.Context, transfer *domain.TransferRequest) error {
	return r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{transfersTable, transfer.ID}); err != nil {
			return err
		}
		stored, ok := tx.transfer(transfer.ID)
		if !ok {
			return errors.ErrTransferNotFound
		}

		stored.Status = transfer.Status
		stored.ErrorMessage = transfer.ErrorMessage
		stored.UpdatedAt = time.Now().UTC()
		tx.putTransfer(cloneTransfer(stored))

		transfer.UpdatedAt = stored.UpdatedAt
		return nil
	})
}

func (r *transferRepository) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	return r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{transfersTable, id}); err != nil {
			return err
		}
		if _, ok := tx.transfer(id); !ok {
			return errors.ErrTransferNotFound
		}

		tx.deleteTransfer(id)
		return nil
	})
}

// cloneTransfer copies the error message so callers never share it with the store.
func cloneTransfer(transfer domain.TransferRequest) domain.TransferRequest {
	if transfer.ErrorMessage != nil {
		message := *transfer.ErrorMessage
		transfer.ErrorMessage = &message
	}
	return transfer
}
