package models

import "time"

type TransactionStatus string

const (
	StatusCommitted TransactionStatus = "committed"
	StatusRejected  TransactionStatus = "rejected"
)

// Transaction is an immutable record of a transfer between two accounts.
// IDs are assigned by the transaction log in strictly increasing order.
type Transaction struct {
	ID          uint64            `json:"id"`
	SenderID    string            `json:"sender_id"`
	RecipientID string            `json:"recipient_id"`
	Amount      Amount            `json:"amount"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Involves reports whether accountID is the sender or the recipient.
func (t Transaction) Involves(accountID string) bool {
	return t.SenderID == accountID || t.RecipientID == accountID
}
