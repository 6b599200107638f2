package interfaces

import (
	"context"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

// AccountStore owns balance storage. Every mutation on one account is
// linearizable with every other operation on that account.
type AccountStore interface {
	EnsureAccount(ctx context.Context, accountID string, initial models.Amount) (models.Account, error)
	GetBalance(ctx context.Context, accountID string) (models.Amount, error)
	Credit(ctx context.Context, accountID string, amount models.Amount) error
	Debit(ctx context.Context, accountID string, amount models.Amount) error
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// TransactionLog is the append-only record of committed transfers.
type TransactionLog interface {
	Append(ctx context.Context, senderID, recipientID string, amount models.Amount) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)
	Get(ctx context.Context, transactionID uint64) (models.Transaction, error)
}

// TxFunc runs inside a unit of work against stores bound to it.
type TxFunc func(ctx context.Context, accounts AccountStore, txlog TransactionLog) error

// LedgerStore bundles the account store and the transaction log.
// WithinTx applies everything fn does or nothing: when fn returns an error
// every balance change and log append made through its arguments is undone.
type LedgerStore interface {
	Accounts() AccountStore
	Transactions() TransactionLog
	WithinTx(ctx context.Context, fn TxFunc) error
}
