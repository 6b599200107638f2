package interfaces

import (
	"context"

	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

// IdempotencyStore remembers which transaction a caller-supplied key produced.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (models.IdempotencyRecord, bool, error)
	Put(ctx context.Context, key string, record models.IdempotencyRecord) error
}
