package service

import (
	"context"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
)

var maxInitialBalance = decimal.NewFromInt(10_000_000_000) // 10 billion

type AccountService struct {
	store      domain.Store
	validate   *validator.Validate
	currencies CurrencyCatalog
	logger     *slog.Logger
}

func NewAccountService(store domain.Store, validate *validator.Validate, currencies CurrencyCatalog, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:      store,
		validate:   validate,
		currencies: currencies,
		logger:     logger,
	}
}

type CreateAccountInput struct {
	// AccountID is generated when empty.
	AccountID      string          `validate:"omitempty,uuid"`
	DisplayName    string          `validate:"max=255"`
	OwnerID        string          `validate:"required,max=255"`
	InitialBalance decimal.Decimal `validate:"non_negative_decimal,money"`
	Currency       string          `validate:"required,currency"`
}

func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	s.logger.Info("Creating account",
		"account_id", input.AccountID,
		"owner_id", input.OwnerID,
		"initial_balance", input.InitialBalance,
		"currency", input.Currency)

	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}
	if input.InitialBalance.GreaterThan(maxInitialBalance) {
		return nil, errors.NewAppError(errors.InvalidAmount, "initial balance exceeds maximum limit")
	}
	if err := checkCurrency(s.currencies, input.Currency); err != nil {
		return nil, err
	}

	id := uuid.New()
	if input.AccountID != "" {
		id = uuid.MustParse(input.AccountID)
	}

	account := &domain.Account{
		ID:          id,
		DisplayName: input.DisplayName,
		OwnerID:     input.OwnerID,
		Balance:     input.InitialBalance,
		Currency:    input.Currency,
	}

	if err := s.store.Accounts().CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created successfully", "account_id", account.ID)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	s.logger.Debug("Getting account", "account_id", accountID)

	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, errors.ErrInvalidAccountID.WithDetails(accountID)
	}

	return s.store.Accounts().GetAccount(ctx, id)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return s.store.Accounts().ListAccounts(ctx)
}

// DeleteAccount removes the account. Requests that still reference it fail
// with account_not_found when they run.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	s.logger.Info("Deleting account", "account_id", accountID)

	id, err := uuid.Parse(accountID)
	if err != nil {
		return errors.ErrInvalidAccountID.WithDetails(accountID)
	}

	return s.store.Accounts().DeleteAccount(ctx, id)
}
