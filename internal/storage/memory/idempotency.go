package memory

import (
	"context"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

type idempotencyEntry struct {
	record    models.IdempotencyRecord
	expiresAt time.Time // zero means never
}

// IdempotencyStore keeps idempotency keys in a map. Expired keys are
// dropped lazily on lookup.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idempotencyEntry
	clock   func() time.Time
}

// NewIdempotencyStore returns a store whose keys live for ttl; ttl <= 0
// keeps them forever.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:     ttl,
		entries: make(map[string]idempotencyEntry),
		clock:   time.Now,
	}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (models.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return models.IdempotencyRecord{}, false, nil
	}
	if !entry.expiresAt.IsZero() && !s.clock().Before(entry.expiresAt) {
		delete(s.entries, key)
		return models.IdempotencyRecord{}, false, nil
	}
	return entry.record, true, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, key string, record models.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := idempotencyEntry{record: record}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.entries[key] = entry
	return nil
}

var _ interfaces.IdempotencyStore = (*IdempotencyStore)(nil)
