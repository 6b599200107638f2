package ledger

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker hands out exclusive per-key locks whose acquisition can be
// abandoned through a context. Entries are reference counted and dropped
// once nobody holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock acquires every key in ascending lexicographic order, whatever order
// they were passed in. On failure nothing stays held and ctx.Err() is
// returned. The returned func releases all keys and must be called once.
func (l *Locker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := orderKeys(keys)
	held := make([]string, 0, len(ordered))

	for _, key := range ordered {
		// semaphore.Acquire may succeed on a done context when the lock is
		// free; check first so cancellation is deterministic.
		if err := ctx.Err(); err != nil {
			l.release(held)
			return nil, err
		}
		lk := l.ref(key)
		if err := lk.sem.Acquire(ctx, 1); err != nil {
			l.unref(key)
			l.release(held)
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *Locker) ref(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[key]
	if !ok {
		lk = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk := l.locks[key]
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *Locker) release(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		l.mu.Lock()
		lk := l.locks[held[i]]
		l.mu.Unlock()

		lk.sem.Release(1)
		l.unref(held[i])
	}
}

// size is the number of live lock entries.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func orderKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
