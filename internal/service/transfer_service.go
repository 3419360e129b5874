package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
)

const DefaultTransferTTL = 10 * time.Minute

type TransferServiceConfig struct {
	// TTL is how long a request may wait before it expires.
	TTL time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// TransferService accepts transfer requests. Requests are executed later by
// the processing engine.
type TransferService struct {
	store      domain.Store
	validate   *validator.Validate
	currencies CurrencyCatalog
	ttl        time.Duration
	clock      func() time.Time
	logger     *slog.Logger
}

func NewTransferService(
	store domain.Store,
	validate *validator.Validate,
	currencies CurrencyCatalog,
	cfg TransferServiceConfig,
	logger *slog.Logger,
) *TransferService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTransferTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &TransferService{
		store:      store,
		validate:   validate,
		currencies: currencies,
		ttl:        cfg.TTL,
		clock:      cfg.Clock,
		logger:     logger,
	}
}

type SubmitTransferInput struct {
	SourceAccountID      string          `validate:"required,uuid"`
	DestinationAccountID string          `validate:"required,uuid,nefield=SourceAccountID"`
	Amount               decimal.Decimal `validate:"positive_decimal,money"`
	Currency             string          `validate:"required,currency"`
	CreatedBy            string          `validate:"max=255"`
}

// Submit stores a NEW transfer request after checking that both accounts
// exist. Balances are not checked here; the executor checks them when the
// request runs.
func (s *TransferService) Submit(ctx context.Context, input SubmitTransferInput) (*domain.TransferRequest, error) {
	s.logger.Info("Submitting transfer",
		"source_account_id", input.SourceAccountID,
		"destination_account_id", input.DestinationAccountID,
		"amount", input.Amount,
		"currency", input.Currency,
		"created_by", input.CreatedBy)

	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}
	if err := checkCurrency(s.currencies, input.Currency); err != nil {
		return nil, err
	}

	sourceID := uuid.MustParse(input.SourceAccountID)
	destinationID := uuid.MustParse(input.DestinationAccountID)
	if sourceID == destinationID {
		// uuid accepts several spellings of the same id
		return nil, errors.ErrSameAccountTransfer
	}

	if err := s.ensureAccountExists(ctx, "source", sourceID); err != nil {
		return nil, err
	}
	if err := s.ensureAccountExists(ctx, "destination", destinationID); err != nil {
		return nil, err
	}

	// timestamptz keeps microseconds
	now := s.clock().UTC().Truncate(time.Microsecond)
	transfer := &domain.TransferRequest{
		ID:                   uuid.New(),
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               input.Amount,
		Currency:             input.Currency,
		Status:               domain.StatusNew,
		CreatedBy:            input.CreatedBy,
		CreatedAt:            now,
		ExpiresAt:            now.Add(s.ttl),
	}

	if err := s.store.Transfers().CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	s.logger.Info("Transfer submitted", "transfer_id", transfer.ID, "expires_at", transfer.ExpiresAt)
	return transfer, nil
}

func (s *TransferService) ensureAccountExists(ctx context.Context, role string, id uuid.UUID) error {
	if _, err := s.store.Accounts().GetAccount(ctx, id); err != nil {
		if appErr, ok := errors.FromError(err); ok && appErr.Code == errors.AccountNotFound {
			return errors.ErrAccountNotFound.WithDetails(fmt.Sprintf("%s account %s", role, id))
		}
		return err
	}
	return nil
}

func (s *TransferService) GetTransfer(ctx context.Context, transferID string) (*domain.TransferRequest, error) {
	id, err := uuid.Parse(transferID)
	if err != nil {
		return nil, errors.NewAppError(errors.InvalidInput, "invalid transfer id").WithDetails(transferID)
	}

	return s.store.Transfers().GetTransfer(ctx, id)
}

// ListTransfers returns requests newest first, optionally filtered by status.
func (s *TransferService) ListTransfers(ctx context.Context, status string) ([]*domain.TransferRequest, error) {
	if status == "" {
		return s.store.Transfers().ListTransfers(ctx, nil)
	}

	parsed, err := domain.ParseTransferStatus(status)
	if err != nil {
		return nil, errors.NewAppError(errors.InvalidInput, "invalid transfer status").WithDetails(status)
	}
	return s.store.Transfers().ListTransfers(ctx, &parsed)
}

// DeleteTransfer removes a COMPLETED or FAILED request. Requests the engine
// still owns are refused.
func (s *TransferService) DeleteTransfer(ctx context.Context, transferID string) error {
	s.logger.Info("Deleting transfer", "transfer_id", transferID)

	id, err := uuid.Parse(transferID)
	if err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid transfer id").WithDetails(transferID)
	}

	return s.store.WithTransaction(ctx, func(tx domain.Store) error {
		transfer, err := tx.Transfers().GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !transfer.Status.IsTerminal() {
			return errors.NewAppErrorf(errors.TransferNotTerminal, "transfer request is %s", transfer.Status)
		}

		return tx.Transfers().DeleteTransfer(ctx, id)
	})
}
