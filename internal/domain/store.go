package domain

import "context"

// Store is the unit of work shared by the repositories. Repositories returned
// by a Store passed to WithTransaction's callback operate inside that
// transaction; the transaction commits when fn returns nil and rolls back
// otherwise.
type Store interface {
	Accounts() AccountRepository
	Transfers() TransferRepository
	WithTransaction(ctx context.Context, fn func(tx Store) error) error
}
