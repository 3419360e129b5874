package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
)

type accountRepository struct {
	store *Store
}

func (r *accountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	return r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{accountsTable, account.ID}); err != nil {
			return err
		}
		if _, exists := tx.account(account.ID); exists {
			r.store.logger.Warn("Duplicate account creation attempt", "account_id", account.ID)
			return errors.ErrDuplicateAccount
		}

		now := time.Now().UTC()
		account.CreatedAt = now
		account.UpdatedAt = now
		tx.putAccount(*account)
		return nil
	})
}

func (r *accountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var found *domain.Account
	err := r.store.run(func(tx *transaction) error {
		account, ok := tx.account(id)
		if !ok {
			return errors.ErrAccountNotFound
		}
		found = &account
		return nil
	})
	return found, err
}

func (r *accountRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var found *domain.Account
	err := r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{accountsTable, id}); err != nil {
			return err
		}
		account, ok := tx.account(id)
		if !ok {
			return errors.ErrAccountNotFound
		}
		found = &account
		return nil
	})
	return found, err
}

func (r *accountRepository) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	var accounts []*domain.Account
	err := r.store.run(func(tx *transaction) error {
		visible := tx.visibleAccounts()
		accounts = make([]*domain.Account, 0, len(visible))
		for i := range visible {
			accounts = append(accounts, &visible[i])
		}
		return nil
	})
	return accounts, err
}

func (r *accountRepository) UpdateAccountBalance(ctx context.Context, id uuid.UUID, newBalance decimal.Decimal) error {
	return r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{accountsTable, id}); err != nil {
			return err
		}
		account, ok := tx.account(id)
		if !ok {
			return errors.ErrAccountNotFound
		}
		if newBalance.IsNegative() {
			return errors.Internal("failed to update account balance", errNegativeBalance)
		}

		account.Balance = newBalance
		account.UpdatedAt = time.Now().UTC()
		tx.putAccount(account)
		return nil
	})
}

func (r *accountRepository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return r.store.run(func(tx *transaction) error {
		if err := tx.lock(ctx, rowKey{accountsTable, id}); err != nil {
			return err
		}
		if _, ok := tx.account(id); !ok {
			return errors.ErrAccountNotFound
		}

		tx.deleteAccount(id)
		return nil
	})
}
