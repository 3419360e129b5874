// Package memory is an in-process domain.Store. Rows are locked the way
// SELECT ... FOR UPDATE locks them: a lock taken inside a transaction is held
// until commit or rollback, and writes become visible to other readers only
// on commit.
package memory

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"async-transfers/internal/domain"
	"async-transfers/internal/errors"
)

type table uint8

const (
	accountsTable table = iota
	transfersTable
)

type rowKey struct {
	table table
	id    uuid.UUID
}

// rowLock is a row's lock channel. refs counts the holder and waiters; the
// entry is dropped from database.locks when it reaches zero.
type rowLock struct {
	ch   chan struct{}
	refs int
}

type database struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]domain.Account
	transfers map[uuid.UUID]domain.TransferRequest
	locks     map[rowKey]*rowLock
}

// Store is the in-memory unit of work.
type Store struct {
	db     *database
	tx     *transaction
	logger *slog.Logger
}

var _ domain.Store = (*Store)(nil)

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		db: &database{
			accounts:  make(map[uuid.UUID]domain.Account),
			transfers: make(map[uuid.UUID]domain.TransferRequest),
			locks:     make(map[rowKey]*rowLock),
		},
		logger: logger,
	}
}

func (s *Store) Accounts() domain.AccountRepository {
	return &accountRepository{store: s}
}

func (s *Store) Transfers() domain.TransferRepository {
	return &transferRepository{store: s}
}

func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if s.tx != nil {
		return errors.ErrCannotBeginTransaction
	}

	tx := newTransaction(s.db)
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(&Store{db: s.db, tx: tx, logger: s.logger}); err != nil {
		return err
	}

	tx.commit()
	committed = true
	return nil
}

// run executes fn in the store's transaction, or in a single-statement
// transaction when the store is not inside one.
func (s *Store) run(fn func(tx *transaction) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}

	tx := newTransaction(s.db)
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

// transaction buffers writes until commit. Deleted rows are tracked apart
// from written ones so a delete hides the committed row.
type transaction struct {
	db               *database
	held             map[rowKey]*rowLock
	accounts         map[uuid.UUID]domain.Account
	transfers        map[uuid.UUID]domain.TransferRequest
	deletedAccounts  map[uuid.UUID]struct{}
	deletedTransfers map[uuid.UUID]struct{}
}

func newTransaction(db *database) *transaction {
	return &transaction{
		db:               db,
		held:             make(map[rowKey]*rowLock),
		accounts:         make(map[uuid.UUID]domain.Account),
		transfers:        make(map[uuid.UUID]domain.TransferRequest),
		deletedAccounts:  make(map[uuid.UUID]struct{}),
		deletedTransfers: make(map[uuid.UUID]struct{}),
	}
}

func (db *database) acquireRef(key rowKey) *rowLock {
	db.mu.Lock()
	defer db.mu.Unlock()

	lock, ok := db.locks[key]
	if !ok {
		lock = &rowLock{ch: make(chan struct{}, 1)}
		db.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (db *database) releaseRef(key rowKey, lock *rowLock) {
	db.mu.Lock()
	defer db.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(db.locks, key)
	}
}

// lock blocks until the row lock is held by tx or ctx is done.
func (tx *transaction) lock(ctx context.Context, key rowKey) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}

	lock := tx.db.acquireRef(key)
	select {
	case lock.ch <- struct{}{}:
		tx.held[key] = lock
		return nil
	case <-ctx.Done():
		tx.db.releaseRef(key, lock)
		return errors.Internal("failed to acquire row lock", ctx.Err())
	}
}

func (tx *transaction) release() {
	for key, lock := range tx.held {
		<-lock.ch
		tx.db.releaseRef(key, lock)
		delete(tx.held, key)
	}
}

func (tx *transaction) commit() {
	tx.db.mu.Lock()
	for id, account := range tx.accounts {
		tx.db.accounts[id] = account
	}
	for id, transfer := range tx.transfers {
		tx.db.transfers[id] = transfer
	}
	for id := range tx.deletedAccounts {
		delete(tx.db.accounts, id)
	}
	for id := range tx.deletedTransfers {
		delete(tx.db.transfers, id)
	}
	tx.db.mu.Unlock()

	tx.release()
}

func (tx *transaction) rollback() {
	clear(tx.accounts)
	clear(tx.transfers)
	clear(tx.deletedAccounts)
	clear(tx.deletedTransfers)
	tx.release()
}

func (tx *transaction) putAccount(account domain.Account) {
	delete(tx.deletedAccounts, account.ID)
	tx.accounts[account.ID] = account
}

func (tx *transaction) deleteAccount(id uuid.UUID) {
	delete(tx.accounts, id)
	tx.deletedAccounts[id] = struct{}{}
}

func (tx *transaction) putTransfer(transfer domain.TransferRequest) {
	delete(tx.deletedTransfers, transfer.ID)
	tx.transfers[transfer.ID] = transfer
}

func (tx *transaction) deleteTransfer(id uuid.UUID) {
	delete(tx.transfers, id)
	tx.deletedTransfers[id] = struct{}{}
}

func (tx *transaction) account(id uuid.UUID) (domain.Account, bool) {
	if _, deleted := tx.deletedAccounts[id]; deleted {
		return domain.Account{}, false
	}
	if account, ok := tx.accounts[id]; ok {
		return account, true
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	account, ok := tx.db.accounts[id]
	return account, ok
}

func (tx *transaction) transfer(id uuid.UUID) (domain.TransferRequest, bool) {
	if _, deleted := tx.deletedTransfers[id]; deleted {
		return domain.TransferRequest{}, false
	}
	if transfer, ok := tx.transfers[id]; ok {
		return transfer, true
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	transfer, ok := tx.db.transfers[id]
	return transfer, ok
}

// visibleTransfers merges committed rows with the rows written by tx.
func (tx *transaction) visibleTransfers() []domain.TransferRequest {
	tx.db.mu.Lock()
	merged := make(map[uuid.UUID]domain.TransferRequest, len(tx.db.transfers))
	for id, transfer := range tx.db.transfers {
		merged[id] = transfer
	}
	tx.db.mu.Unlock()

	for id, transfer := range tx.transfers {
		merged[id] = transfer
	}
	for id := range tx.deletedTransfers {
		delete(merged, id)
	}

	transfers := make([]domain.TransferRequest, 0, len(merged))
	for _, transfer := range merged {
		transfers = append(transfers, transfer)
	}
	return transfers
}

func (tx *transaction) visibleAccounts() []domain.Account {
	tx.db.mu.Lock()
	merged := make(map[uuid.UUID]domain.Account, len(tx.db.accounts))
	for id, account := range tx.db.accounts {
		merged[id] = account
	}
	tx.db.mu.Unlock()

	for id, account := range tx.accounts {
		merged[id] = account
	}
	for id := range tx.deletedAccounts {
		delete(merged, id)
	}

	accounts := make([]domain.Account, 0, len(merged))
	for _, account := range merged {
		accounts = append(accounts, account)
	}
	slices.SortFunc(accounts, func(a, b domain.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return accounts
}

func compareIDs(a, b uuid.UUID) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
