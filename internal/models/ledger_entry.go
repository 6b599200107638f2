package models

import "time"

// LedgerEntry is one side of a committed transaction (double-entry).
// A transfer produces a negative entry on the sender and a positive one on
// the recipient, so entries of a transaction always sum to zero.
type LedgerEntry struct {
	TransactionID uint64    // owning transaction
	AccountID     string    // which account this entry belongs to
	Amount        Amount    // signed, in minor units
	CreatedAt     time.Time // timestamp
}

// Postings splits a transaction into its debit and credit entries.
func Postings(tx Transaction) (debit LedgerEntry, credit LedgerEntry) {
	debit = LedgerEntry{
		TransactionID: tx.ID,
		AccountID:     tx.SenderID,
		Amount:        -tx.Amount,
		CreatedAt:     tx.CreatedAt,
	}
	credit = LedgerEntry{
		TransactionID: tx.ID,
		AccountID:     tx.RecipientID,
		Amount:        tx.Amount,
		CreatedAt:     tx.CreatedAt,
	}
	return debit, credit
}
