package memory

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

func TestEnsureAccountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()

	first, err := s.EnsureAccount(ctx, "X", 100)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(100), first.Balance)

	again, err := s.EnsureAccount(ctx, "X", 5000)
	require.NoError(t, err)
	assert.Equal(t, models.Amount(100), again.Balance, "existing account must not be reset")

	_, err = s.EnsureAccount(ctx, "", 0)
	assert.ErrorIs(t, err, models.ErrInvalidAccount)

	_, err = s.EnsureAccount(ctx, "Z", -1)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestCreditDebit(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	_, err := s.EnsureAccount(ctx, "X", 100)
	require.NoError(t, err)

	require.NoError(t, s.Credit(ctx, "X", 50))
	require.NoError(t, s.Debit(ctx, "X", 30))

	bal, err := s.GetBalance(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(120), bal)

	assert.ErrorIs(t, s.Credit(ctx, "X", 0), models.ErrInvalidAmount)
	assert.ErrorIs(t, s.Debit(ctx, "X", -1), models.ErrInvalidAmount)
	assert.ErrorIs(t, s.Debit(ctx, "X", 121), models.ErrInsufficientFunds)
	assert.ErrorIs(t, s.Credit(ctx, "nope", 1), models.ErrAccountNotFound)

	_, err = s.GetBalance(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestConcurrentCreditsNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	_, err := s.EnsureAccount(ctx, "X", 0)
	require.NoError(t, err)

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Credit(ctx, "X", 1))
		}()
	}
	wg.Wait()

	bal, err := s.GetBalance(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(workers), bal)
}

func TestListAccountsSorted(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	for _, id := range []string{"c", "a", "b"} {
		_, err := s.EnsureAccount(ctx, id, 1)
		require.NoError(t, err)
	}

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, "a", accounts[0].ID)
	assert.Equal(t, "c", accounts[2].ID)
}

func TestTransactionLogOrdering(t *testing.T) {
	ctx := context.Background()
	l := NewTransactionLog()

	t1, err := l.Append(ctx, "X", "Y", 10)
	require.NoError(t, err)
	t2, err := l.Append(ctx, "Y", "Z", 20)
	require.NoError(t, err)
	t3, err := l.Append(ctx, "Z", "X", 30)
	require.NoError(t, err)

	assert.Less(t, t1.ID, t2.ID)
	assert.Less(t, t2.ID, t3.ID)
	assert.False(t, t2.CreatedAt.Before(t1.CreatedAt))
	assert.Equal(t, models.StatusCommitted, t1.Status)

	forX, err := l.ListByAccount(ctx, "X")
	require.NoError(t, err)
	require.Len(t, forX, 2)
	assert.Equal(t, t1.ID, forX[0].ID)
	assert.Equal(t, t3.ID, forX[1].ID)

	none, err := l.ListByAccount(ctx, "W")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	got, err := l.Get(ctx, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, t2, got)

	_, err = l.Get(ctx, 999)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestTransactionLogTimestampNeverGoesBack(t *testing.T) {
	ctx := context.Background()
	l := NewTransactionLog()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Minute), base.Add(time.Second)}
	i := 0
	l.clock = func() time.Time {
		now := times[i]
		i++
		return now
	}

	a, _ := l.Append(ctx, "X", "Y", 1)
	b, _ := l.Append(ctx, "X", "Y", 1)
	c, _ := l.Append(ctx, "X", "Y", 1)

	assert.Equal(t, base, a.CreatedAt)
	assert.Equal(t, base, b.CreatedAt)
	assert.Equal(t, base.Add(time.Second), c.CreatedAt)
}

func TestConcurrentAppendsUniqueIDs(t *testing.T) {
	ctx := context.Background()
	l := NewTransactionLog()

	const n = 200
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tx, err := l.Append(ctx, "X", "Y", 1)
			assert.NoError(t, err)
			ids <- tx.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	all := l.All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLedgerStore()
	seed(t, m, map[string]models.Amount{"X": 100, "Y": 50})

	err := m.WithinTx(ctx, func(ctx context.Context, accounts interfaces.AccountStore, txlog interfaces.TransactionLog) error {
		if err := accounts.Debit(ctx, "X", 30); err != nil {
			return err
		}
		if err := accounts.Credit(ctx, "Y", 30); err != nil {
			return err
		}
		_, err := txlog.Append(ctx, "X", "Y", 30)
		return err
	})
	require.NoError(t, err)

	assertBalance(t, m, "X", 70)
	assertBalance(t, m, "Y", 80)
	txs, _ := m.Transactions().ListByAccount(ctx, "X")
	assert.Len(t, txs, 1)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLedgerStore()
	seed(t, m, map[string]models.Amount{"X": 100, "Y": 50})
	boom := errors.New("disk on fire")

	err := m.WithinTx(ctx, func(ctx context.Context, accounts interfaces.AccountStore, txlog interfaces.TransactionLog) error {
		require.NoError(t, accounts.Debit(ctx, "X", 30))
		require.NoError(t, accounts.Credit(ctx, "Y", 30))
		_, err := accounts.EnsureAccount(ctx, "Z", 10)
		require.NoError(t, err)
		_, err = txlog.Append(ctx, "X", "Y", 30)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assertBalance(t, m, "X", 100)
	assertBalance(t, m, "Y", 50)
	_, err = m.Accounts().GetBalance(ctx, "Z")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
	assert.Empty(t, m.txlog.All())
}

func TestWithinTxRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewMemoryLedgerStore().WithinTx(ctx, func(context.Context, interfaces.AccountStore, interfaces.TransactionLog) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestIdempotencyStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	rec := models.IdempotencyRecord{TransactionID: 3, Fingerprint: "fp"}
	require.NoError(t, s.Put(ctx, "k", rec))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec, got)

	now = now.Add(time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLedgerStore()
	seed(t, m, map[string]models.Amount{"X": 100, "Y": 50})
	_, err := m.Transactions().Append(ctx, "X", "Y", 30)
	require.NoError(t, err)
	require.NoError(t, m.Accounts().Debit(ctx, "X", 30))
	require.NoError(t, m.Accounts().Credit(ctx, "Y", 30))

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, SaveSnapshot(path, m.Snapshot()))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	restored := NewMemoryLedgerStore()
	require.NoError(t, restored.Restore(snap))
	assertBalance(t, restored, "X", 70)
	assertBalance(t, restored, "Y", 80)

	txs, err := restored.Transactions().ListByAccount(ctx, "Y")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	next, err := restored.Transactions().Append(ctx, "Y", "X", 1)
	require.NoError(t, err)
	assert.Greater(t, next.ID, txs[0].ID)
}

func TestRestoreRejectsNegativeBalance(t *testing.T) {
	snap := Snapshot{
		Meta:     SnapshotMeta{Version: snapshotVersion},
		Accounts: []models.Account{{ID: "X", Balance: -1}},
	}
	assert.Error(t, NewMemoryLedgerStore().Restore(snap))
}

func seed(t *testing.T, m *MemoryLedgerStore, balances map[string]models.Amount) {
	t.Helper()
	for id, bal := range balances {
		_, err := m.Accounts().EnsureAccount(context.Background(), id, bal)
		require.NoError(t, err)
	}
}

func assertBalance(t *testing.T, m *MemoryLedgerStore, id string, want models.Amount) {
	t.Helper()
	got, err := m.Accounts().GetBalance(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, got, "balance of %s", id)
}
