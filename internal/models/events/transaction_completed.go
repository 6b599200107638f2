package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

// TransactionCompleted is published after a transfer commits.
// EventID lets consumers drop redeliveries.
type TransactionCompleted struct {
	EventID       string          `json:"event_id"`
	TransactionID uint64          `json:"transaction_id"`
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	AmountMinor   int64           `json:"amount_minor"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewTransactionCompleted(tx models.Transaction) TransactionCompleted {
	return TransactionCompleted{
		EventID:       uuid.NewString(),
		TransactionID: tx.ID,
		FromAccount:   tx.SenderID,
		ToAccount:     tx.RecipientID,
		Amount:        tx.Amount.Decimal(),
		AmountMinor:   int64(tx.Amount),
		OccurredAt:    tx.CreatedAt,
	}
}

// PartitionKey keeps events of one sender on one partition.
func (e TransactionCompleted) PartitionKey() string {
	return e.FromAccount
}
