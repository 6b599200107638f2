package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerOrdersAndDedupesKeys(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, orderKeys([]string{"B", "A", "B"}))
}

func TestLockerExcludes(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "X", "Y")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, "Y")
		if assert.NoError(t, err) {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock succeeded while Y was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired Y")
	}
}

func TestLockerCancelReleasesPartialHold(t *testing.T) {
	l := NewLocker()
	unlockY, err := l.Lock(context.Background(), "Y")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "X", "Y")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// X was taken first and must have been released again.
	unlockX, err := l.Lock(context.Background(), "X")
	require.NoError(t, err)
	unlockX()
	unlockY()

	assert.Equal(t, 0, l.size())
}

func TestLockerDoneContextNeverAcquires(t *testing.T) {
	l := NewLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Lock(ctx, "X")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.size())
}

func TestLockerOppositeOrderNoDeadlock(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			u, err := l.Lock(ctx, "A", "B")
			if assert.NoError(t, err) {
				u()
			}
		}()
		go func() {
			defer wg.Done()
			u, err := l.Lock(ctx, "B", "A")
			if assert.NoError(t, err) {
				u()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, l.size())
}

func TestLockerUnlockIsIdempotent(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "X")
	require.NoError(t, err)
	unlock()
	unlock()
	assert.Equal(t, 0, l.size())
}
