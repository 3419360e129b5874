package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
)

const transferColumns = `id, source_account_id, destination_account_id, amount, currency, status,
	error_message, created_by, created_at, expires_at, updated_at`

type transferRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransferRepository(db SQLExecutor, logger *slog.Logger) domain.TransferRepository {
	return &transferRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transferRepository) CreateTransfer(ctx context.Context, transfer *domain.TransferRequest) error {
	query := `
		INSERT INTO transfer_requests
		(id, source_account_id, destination_account_id, amount, currency, status,
		 error_message, created_by, created_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		transfer.ID,
		transfer.SourceAccountID,
		transfer.DestinationAccountID,
		transfer.Amount.String(),
		transfer.Currency,
		string(transfer.Status),
		nullableString(transfer.ErrorMessage),
		transfer.CreatedBy,
		transfer.CreatedAt,
		transfer.ExpiresAt,
		transfer.CreatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			r.logger.Warn("Duplicate transfer request", "transfer_id", transfer.ID)
			return errors.ErrDuplicateTransfer
		}
		r.logger.Error("Failed to create transfer request",
			"source_account_id", transfer.SourceAccountID,
			"destination_account_id", transfer.DestinationAccountID,
			"amount", transfer.Amount,
			"error", err)
		return errors.Internal("failed to create transfer request", err)
	}

	transfer.UpdatedAt = transfer.CreatedAt
	r.logger.Info("Transfer request created successfully", "transfer_id", transfer.ID)
	return nil
}

func (r *transferRepository) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = $1`

	return r.getTransfer(ctx, query, id)
}

func (r *transferRepository) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (*domain.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = $1 FOR UPDATE`

	return r.getTransfer(ctx, query, id)
}

func (r *transferRepository) getTransfer(ctx context.Context, query string, id uuid.UUID) (*domain.TransferRequest, error) {
	transfer, err := scanTransfer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrTransferNotFound
		}
		r.logger.Error("Failed to get transfer request", "transfer_id", id, "error", err)
		return nil, errors.Internal("failed to get transfer request", err)
	}

	return transfer, nil
}

func (r *transferRepository) ListActiveTransfers(ctx context.Context) ([]*domain.TransferRequest, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE status = ANY($1)
		ORDER BY created_at, id
	`

	active := domain.ActiveStatuses()
	statuses := make([]string, 0, len(active))
	for _, status := range active {
		statuses = append(statuses, string(status))
	}

	return r.listTransfers(ctx, query, pq.Array(statuses))
}

func (r *transferRepository) ListTransfers(ctx context.Context, status *domain.TransferStatus) ([]*domain.TransferRequest, error) {
	if status == nil {
		query := `SELECT ` + transferColumns + ` FROM transfer_requests ORDER BY created_at DESC, id`
		return r.listTransfers(ctx, query)
	}

	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE status = $1 ORDER BY created_at DESC, id`
	return r.listTransfers(ctx, query, string(*status))
}

func (r *transferRepository) listTransfers(ctx context.Context, query string, args ...interface{}) ([]*domain.TransferRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transfer requests", "error", err)
		return nil, errors.Internal("failed to list transfer requests", err)
	}
	defer rows.Close()

	transfers := make([]*domain.TransferRequest, 0)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			return nil, errors.Internal("failed to scan transfer request", err)
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("failed to list transfer requests", err)
	}

	return transfers, nil
}

func scanTransfer(row rowScanner) (*domain.TransferRequest, error) {
	var transfer domain.TransferRequest
	var amountStr, status string
	var errorMessage sql.NullString

	err := row.Scan(
		&transfer.ID,
		&transfer.SourceAccountID,
		&transfer.DestinationAccountID,
		&amountStr,
		&transfer.Currency,
		&status,
		&errorMessage,
		&transfer.CreatedBy,
		&transfer.CreatedAt,
		&transfer.ExpiresAt,
		&transfer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, err
	}
	transfer.Amount = amount

	transfer.Status, err = domain.ParseTransferStatus(status)
	if err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		transfer.ErrorMessage = &errorMessage.String
	}

	return &transfer, nil
}

func (r *transferRepository) UpdateTransfer(ctx context.Context, transfer *domain.TransferRequest) error {
	query := `UPDATE transfer_requests SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query, string(transfer.Status), nullableString(transfer.ErrorMessage), now, transfer.ID)
	if err != nil {
		r.logger.Error("Failed to update transfer request",
			"transfer_id", transfer.ID, "status", transfer.Status, "error", err)
		return errors.Internal("failed to update transfer request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Internal("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.ErrTransferNotFound
	}

	transfer.UpdatedAt = now
	r.logger.Debug("Transfer request updated", "transfer_id", transfer.ID, "status", transfer.Status)
	return nil
}

func (r *transferRepository) DeleteTransfer(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transfer_requests WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete transfer request", "transfer_id", id, "error", err)
		return errors.Internal("failed to delete transfer request", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Internal("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return errors.ErrTransferNotFound
	}

	r.logger.Info("Transfer request deleted", "transfer_id", id)
	return nil
}

func nullableString(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}
