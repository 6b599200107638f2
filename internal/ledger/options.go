package ledger

import (
	"time"

	"github.com/rs/zerolog"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
)

// DefaultTopic is where TransactionCompleted events go unless overridden.
const DefaultTopic = "transaction_completed"

type Option func(*Ledger)

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger.With().Str("component", "ledger").Logger()
	}
}

// WithPublisher enables TransactionCompleted events. An empty topic keeps
// DefaultTopic.
func WithPublisher(p interfaces.EventPublisher, topic string) Option {
	return func(l *Ledger) {
		l.publisher = p
		if topic != "" {
			l.topic = topic
		}
	}
}

func WithIdempotencyStore(s interfaces.IdempotencyStore) Option {
	return func(l *Ledger) {
		l.idempotency = s
	}
}

// WithLockTimeout bounds how long a call waits for locks. Zero waits until
// the caller's context is done.
func WithLockTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.lockTimeout = d
	}
}
