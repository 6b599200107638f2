package models

import "fmt"

// IdempotencyRecord ties an idempotency key to the transfer it committed.
type IdempotencyRecord struct {
	TransactionID uint64 `json:"transaction_id"`
	Fingerprint   string `json:"fingerprint"`
}

// TransferFingerprint identifies the parameters of a transfer request so a
// replayed key can be checked against the original call.
func TransferFingerprint(senderID, recipientID string, amount Amount) string {
	return fmt.Sprintf("%q|%q|%d", senderID, recipientID, int64(amount))
}
