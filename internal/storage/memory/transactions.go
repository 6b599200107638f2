package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

// TransactionLog is an append-only, id-ordered list of transactions.
// Its mutex is independent of any account lock.
type TransactionLog struct {
	mu        sync.RWMutex
	nextID    uint64
	lastTime  time.Time
	records   []models.Transaction            // ascending id
	byAccount map[string][]models.Transaction // ascending id, per account
	clock     func() time.Time
}

func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		byAccount: make(map[string][]models.Transaction),
		clock:     time.Now,
	}
}

func (l *TransactionLog) Append(ctx context.Context, senderID, recipientID string, amount models.Amount) (models.Transaction, error) {
	tx := l.reserve(senderID, recipientID, amount)
	l.commit(tx)
	return tx, nil
}

// reserve assigns the next id and a timestamp that never goes backwards
// relative to earlier ids. A reserved id that is never committed leaves a gap.
func (l *TransactionLog) reserve(senderID, recipientID string, amount models.Amount) models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	now := l.clock().UTC()
	if now.Before(l.lastTime) {
		now = l.lastTime
	}
	l.lastTime = now

	return models.Transaction{
		ID:          l.nextID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Status:      models.StatusCommitted,
		CreatedAt:   now,
	}
}

func (l *TransactionLog) commit(txs ...models.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, tx := range txs {
		l.records = insertByID(l.records, tx)
		l.byAccount[tx.SenderID] = insertByID(l.byAccount[tx.SenderID], tx)
		l.byAccount[tx.RecipientID] = insertByID(l.byAccount[tx.RecipientID], tx)
	}
}

func (l *TransactionLog) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.byAccount[accountID]
	out := make([]models.Transaction, len(src))
	copy(out, src)
	return out, nil
}

func (l *TransactionLog) Get(ctx context.Context, transactionID uint64) (models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := sort.Search(len(l.records), func(i int) bool { return l.records[i].ID >= transactionID })
	if i < len(l.records) && l.records[i].ID == transactionID {
		return l.records[i], nil
	}
	return models.Transaction{}, fmt.Errorf("%w: %d", models.ErrTransactionNotFound, transactionID)
}

// All returns a copy of the whole log in id order.
func (l *TransactionLog) All() []models.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Transaction, len(l.records))
	copy(out, l.records)
	return out
}

func (l *TransactionLog) lastID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID
}

func (l *TransactionLog) replace(nextID uint64, txs []models.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	l.byAccount = make(map[string][]models.Transaction)
	l.lastTime = time.Time{}
	l.nextID = nextID
	for _, tx := range txs {
		l.records = insertByID(l.records, tx)
		l.byAccount[tx.SenderID] = insertByID(l.byAccount[tx.SenderID], tx)
		l.byAccount[tx.RecipientID] = insertByID(l.byAccount[tx.RecipientID], tx)
		if tx.ID > l.nextID {
			l.nextID = tx.ID
		}
		if tx.CreatedAt.After(l.lastTime) {
			l.lastTime = tx.CreatedAt
		}
	}
}

// insertByID keeps list sorted. Commits almost always arrive in id order,
// so this is an append in the common case.
func insertByID(list []models.Transaction, tx models.Transaction) []models.Transaction {
	i := sort.Search(len(list), func(i int) bool { return list[i].ID > tx.ID })
	return slices.Insert(list, i, tx)
}

var _ interfaces.TransactionLog = (*TransactionLog)(nil)
