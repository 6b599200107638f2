package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/metrics"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
	"github.com/sheikh-saqib/wallet-ledger/internal/models/events"
	"github.com/sheikh-saqib/wallet-ledger/internal/storage/memory"
)

const publishTimeout = 5 * time.Second

// Ledger is the only mutating entry point into account balances and the
// transaction log. Create one per process with NewLedger and share it.
type Ledger struct {
	store        interfaces.LedgerStore
	accountLocks *Locker
	keyLocks     *Locker
	idempotency  interfaces.IdempotencyStore
	publisher    interfaces.EventPublisher
	topic        string
	lockTimeout  time.Duration
	logger       zerolog.Logger

	// barrier is read-held by every transfer while it applies, so a writer
	// observes a state with no transfer half done.
	barrier sync.RWMutex
}

// NewLedger wires a ledger over store. Without WithIdempotencyStore keys are
// remembered in memory for the life of the process.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		accountLocks: NewLocker(),
		keyLocks:     NewLocker(),
		topic:        DefaultTopic,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.idempotency == nil {
		l.idempotency = memory.NewIdempotencyStore(0)
	}
	return l
}

type transferRequest struct {
	senderID    string
	recipientID string
	amount      models.Amount
}

// Transfer moves amount from sender to recipient. It either commits and
// returns the logged transaction, or fails leaving balances and the log
// exactly as they were.
func (l *Ledger) Transfer(ctx context.Context, senderID, recipientID string, amount models.Amount) (models.Transaction, error) {
	req := transferRequest{senderID: senderID, recipientID: recipientID, amount: amount}

	start := time.Now()
	tx, state, err := l.transfer(ctx, req)
	l.finish(ctx, req, tx, state, err, time.Since(start))
	return tx, err
}

// TransferIdempotent is Transfer guarded by a caller-chosen key. A repeated
// key with the same parameters returns the original transaction and
// replayed=true without moving funds again. Only committed transfers
// consume a key.
func (l *Ledger) TransferIdempotent(ctx context.Context, key, senderID, recipientID string, amount models.Amount) (tx models.Transaction, replayed bool, err error) {
	if key == "" {
		tx, err = l.Transfer(ctx, senderID, recipientID, amount)
		return tx, false, err
	}

	unlock, err := l.lock(ctx, l.keyLocks, key)
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("%w: waiting for idempotency key: %w", models.ErrCancelled, err)
	}
	defer unlock()

	fingerprint := models.TransferFingerprint(senderID, recipientID, amount)
	rec, found, err := l.idempotency.Get(ctx, key)
	if err != nil {
		return models.Transaction{}, false, classify(err)
	}
	if found {
		if rec.Fingerprint != fingerprint {
			return models.Transaction{}, false, fmt.Errorf("%w: key %q", models.ErrIdempotencyConflict, key)
		}
		tx, err = l.store.Transactions().Get(ctx, rec.TransactionID)
		if err != nil {
			return models.Transaction{}, false, classify(err)
		}
		metrics.RecordTransfer("replayed", 0)
		l.logger.Info().Str("idempotency_key", key).Uint64("transaction_id", tx.ID).Msg("transfer replayed")
		return tx, true, nil
	}

	tx, err = l.Transfer(ctx, senderID, recipientID, amount)
	if err != nil {
		return models.Transaction{}, false, err
	}
	record := models.IdempotencyRecord{TransactionID: tx.ID, Fingerprint: fingerprint}
	if err := l.idempotency.Put(ctx, key, record); err != nil {
		l.logger.Error().Err(err).
			Str("idempotency_key", key).
			Uint64("transaction_id", tx.ID).
			Msg("transfer committed but idempotency key was not stored")
	}
	return tx, false, nil
}

func (l *Ledger) transfer(ctx context.Context, req transferRequest) (models.Transaction, State, error) {
	if req.senderID == req.recipientID {
		return models.Transaction{}, StateValidating, fmt.Errorf("%w: %s", models.ErrInvalidTransfer, req.senderID)
	}
	if req.amount <= 0 {
		return models.Transaction{}, StateValidating, fmt.Errorf("%w: got %s", models.ErrInvalidAmount, req.amount)
	}
	// Accounts are never deleted, so existence checked here still holds
	// once the locks are taken.
	accounts := l.store.Accounts()
	for _, id := range []string{req.senderID, req.recipientID} {
		if _, err := accounts.GetBalance(ctx, id); err != nil {
			return models.Transaction{}, StateValidating, classify(err)
		}
	}

	unlock, err := l.lock(ctx, l.accountLocks, req.senderID, req.recipientID)
	if err != nil {
		return models.Transaction{}, StateLocking, fmt.Errorf("%w: waiting for account locks: %w", models.ErrCancelled, err)
	}
	defer unlock()

	l.barrier.RLock()
	defer l.barrier.RUnlock()

	state := StateApplying
	var committed models.Transaction
	err = l.store.WithinTx(ctx, func(ctx context.Context, accounts interfaces.AccountStore, txlog interfaces.TransactionLog) error {
		balance, err := accounts.GetBalance(ctx, req.senderID)
		if err != nil {
			return err
		}
		if balance < req.amount {
			return fmt.Errorf("%w: %s holds %s, needs %s", models.ErrInsufficientFunds, req.senderID, balance, req.amount)
		}
		if err := accounts.Debit(ctx, req.senderID, req.amount); err != nil {
			return fmt.Errorf("debit %s: %w", req.senderID, err)
		}
		if err := accounts.Credit(ctx, req.recipientID, req.amount); err != nil {
			return fmt.Errorf("credit %s: %w", req.recipientID, err)
		}

		state = StateLogging
		tx, err := txlog.Append(ctx, req.senderID, req.recipientID, req.amount)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}
		committed = tx
		return nil
	})
	if err != nil {
		return models.Transaction{}, state, classify(err)
	}
	return committed, StateCommitted, nil
}

func (l *Ledger) lock(ctx context.Context, locker *Locker, keys ...string) (func(), error) {
	if l.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	unlock, err := locker.Lock(ctx, keys...)
	metrics.RecordLockWait(time.Since(start))
	return unlock, err
}

// finish logs, counts and publishes the outcome after every lock is released.
func (l *Ledger) finish(ctx context.Context, req transferRequest, tx models.Transaction, state State, err error, elapsed time.Duration) {
	outcome := outcomeOf(err)
	metrics.RecordTransfer(outcome, elapsed)

	if err == nil {
		l.logger.Debug().
			Uint64("transaction_id", tx.ID).
			Str("sender", req.senderID).
			Str("recipient", req.recipientID).
			Int64("amount", int64(req.amount)).
			Str("state", string(state)).
			Msg("transfer committed")
		l.publish(ctx, tx)
		return
	}

	var event *zerolog.Event
	switch {
	case errors.Is(err, models.ErrStorageFault):
		event = l.logger.Error()
	case errors.Is(err, models.ErrCancelled):
		event = l.logger.Warn()
	default:
		event = l.logger.Info()
	}
	event.Err(err).
		Str("sender", req.senderID).
		Str("recipient", req.recipientID).
		Int64("amount", int64(req.amount)).
		Str("failed_in", string(state)).
		Str("state", string(StateRejected)).
		Str("outcome", outcome).
		Msg("transfer rejected")
}

func (l *Ledger) publish(ctx context.Context, tx models.Transaction) {
	if l.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(ctx, l.topic, events.NewTransactionCompleted(tx)); err != nil {
		metrics.RecordPublishFailure()
		l.logger.Warn().Err(err).Uint64("transaction_id", tx.ID).Str("topic", l.topic).Msg("failed to publish transaction completed event")
	}
}

// GetBalance reads under the account's lock, so it never observes a
// transfer halfway through.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (models.Amount, error) {
	unlock, err := l.lock(ctx, l.accountLocks, accountID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrCancelled, err)
	}
	defer unlock()

	balance, err := l.store.Accounts().GetBalance(ctx, accountID)
	if err != nil {
		return 0, classify(err)
	}
	return balance, nil
}

// ListTransactions returns the account's committed transactions in id order.
func (l *Ledger) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	if _, err := l.store.Accounts().GetBalance(ctx, accountID); err != nil {
		return nil, classify(err)
	}
	txs, err := l.store.Transactions().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, classify(err)
	}
	return txs, nil
}

func (l *Ledger) GetTransaction(ctx context.Context, transactionID uint64) (models.Transaction, error) {
	tx, err := l.store.Transactions().Get(ctx, transactionID)
	if err != nil {
		return models.Transaction{}, classify(err)
	}
	return tx, nil
}

// EnsureAccount provisions an account with an opening balance. It is a
// no-op returning the current state when the account already exists.
func (l *Ledger) EnsureAccount(ctx context.Context, accountID string, initial models.Amount) (models.Account, error) {
	acct, err := l.store.Accounts().EnsureAccount(ctx, accountID, initial)
	if err != nil {
		return models.Account{}, classify(err)
	}
	l.logger.Debug().Str("account_id", acct.ID).Int64("balance", int64(acct.Balance)).Msg("account ensured")
	return acct, nil
}

// ListAccounts returns a consistent snapshot of every account.
func (l *Ledger) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	err := l.Quiesced(func() error {
		var err error
		accounts, err = l.store.Accounts().ListAccounts(ctx)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}
	return accounts, nil
}

// TotalBalance sums every balance. Committed transfers never change it.
func (l *Ledger) TotalBalance(ctx context.Context) (models.Amount, error) {
	accounts, err := l.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	var total models.Amount
	for _, a := range accounts {
		total += a.Balance
	}
	return total, nil
}

// Quiesced runs fn while no transfer is applying.
func (l *Ledger) Quiesced(fn func() error) error {
	l.barrier.Lock()
	defer l.barrier.Unlock()
	return fn()
}

// classify maps store errors onto the ledger's error taxonomy. Rejections
// pass through unchanged; anything unrecognised is a storage fault.
func classify(err error) error {
	switch {
	case models.IsRejection(err),
		errors.Is(err, models.ErrTransactionNotFound),
		errors.Is(err, models.ErrCancelled),
		errors.Is(err, models.ErrStorageFault):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", models.ErrCancelled, err)
	default:
		return fmt.Errorf("%w: %w", models.ErrStorageFault, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, models.ErrInvalidTransfer):
		return "invalid_transfer"
	case errors.Is(err, models.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, models.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrCancelled):
		return "cancelled"
	default:
		return "storage_fault"
	}
}
