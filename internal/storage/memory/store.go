package memory

import (
	"context"
	"sync"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
type MemoryLedgerStore struct {
	accounts *AccountStore
	txlog    *TransactionLog
}

// NewMemoryLedgerStore creates an empty store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts: NewAccountStore(),
		txlog:    NewTransactionLog(),
	}
}

func (m *MemoryLedgerStore) Accounts() interfaces.AccountStore {
	return m.accounts
}

func (m *MemoryLedgerStore) Transactions() interfaces.TransactionLog {
	return m.txlog
}

// WithinTx runs fn against journaled views of the store. Balance changes
// are applied immediately and undone in reverse order if fn fails; log
// appends are staged and only become visible when fn succeeds.
//
// Isolation between concurrent units of work touching the same accounts is
// the caller's job (the ledger holds account locks around this call).
func (m *MemoryLedgerStore) WithinTx(ctx context.Context, fn interfaces.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uow := &unitOfWork{store: m}
	if err := fn(ctx, &txAccounts{uow: uow}, &txLog{uow: uow}); err != nil {
		uow.rollback()
		return err
	}
	uow.commit()
	return nil
}

type unitOfWork struct {
	store  *MemoryLedgerStore
	mu     sync.Mutex
	undo   []func()
	staged []models.Transaction
}

func (u *unitOfWork) record(undo func()) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.undo = append(u.undo, undo)
}

func (u *unitOfWork) stage(tx models.Transaction) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.staged = append(u.staged, tx)
}

func (u *unitOfWork) rollback() {
	u.mu.Lock()
	defer u.mu.Unlock()

	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	u.staged = nil
}

func (u *unitOfWork) commit() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.store.txlog.commit(u.staged...)
	u.undo = nil
	u.staged = nil
}

// txAccounts is the account store as seen from inside a unit of work.
type txAccounts struct {
	uow *unitOfWork
}

func (a *txAccounts) EnsureAccount(ctx context.Context, accountID string, initial models.Amount) (models.Account, error) {
	store := a.uow.store.accounts
	acct, created, err := store.ensure(accountID, initial)
	if err != nil {
		return models.Account{}, err
	}
	if created {
		a.uow.record(func() { store.remove(accountID) })
	}
	return acct, nil
}

func (a *txAccounts) GetBalance(ctx context.Context, accountID string) (models.Amount, error) {
	return a.uow.store.accounts.GetBalance(ctx, accountID)
}

func (a *txAccounts) Credit(ctx context.Context, accountID string, amount models.Amount) error {
	store := a.uow.store.accounts
	if err := store.Credit(ctx, accountID, amount); err != nil {
		return err
	}
	a.uow.record(func() { store.adjust(accountID, -amount) })
	return nil
}

func (a *txAccounts) Debit(ctx context.Context, accountID string, amount models.Amount) error {
	store := a.uow.store.accounts
	if err := store.Debit(ctx, accountID, amount); err != nil {
		return err
	}
	a.uow.record(func() { store.adjust(accountID, amount) })
	return nil
}

func (a *txAccounts) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return a.uow.store.accounts.ListAccounts(ctx)
}

// txLog stages appends until the unit of work commits.
type txLog struct {
	uow *unitOfWork
}

func (l *txLog) Append(ctx context.Context, senderID, recipientID string, amount models.Amount) (models.Transaction, error) {
	tx := l.uow.store.txlog.reserve(senderID, recipientID, amount)
	l.uow.stage(tx)
	return tx, nil
}

func (l *txLog) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	return l.uow.store.txlog.ListByAccount(ctx, accountID)
}

func (l *txLog) Get(ctx context.Context, transactionID uint64) (models.Transaction, error) {
	return l.uow.store.txlog.Get(ctx, transactionID)
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
