package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL CHECK (balance >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id           BIGSERIAL PRIMARY KEY,
		sender_id    TEXT NOT NULL REFERENCES accounts (id),
		recipient_id TEXT NOT NULL REFERENCES accounts (id),
		amount       BIGINT NOT NULL CHECK (amount > 0),
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
		CHECK (sender_id <> recipient_id)
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_sender_idx ON transactions (sender_id, id)`,
	`CREATE INDEX IF NOT EXISTS transactions_recipient_idx ON transactions (recipient_id, id)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		transaction_id BIGINT NOT NULL REFERENCES transactions (id),
		account_id     TEXT NOT NULL REFERENCES accounts (id),
		amount         BIGINT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (transaction_id, account_id)
	)`,
}

// Migrate creates the ledger tables if they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
