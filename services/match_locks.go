package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// MatchLocks serializes mutating operations per match id. One weighted
// semaphore of capacity 1 per match gives single-writer semantics within a
// match while distinct matches proceed fully in parallel.
type MatchLocks struct {
	mu    sync.Mutex
	locks map[int]*lockEntry
}

type lockEntry struct {
	sem *semaphore.Weighted
	// refs counts holders plus waiters so idle entries can be dropped.
	refs int
}

func NewMatchLocks() *MatchLocks {
	return &MatchLocks{locks: make(map[int]*lockEntry)}
}

// Acquire blocks until the match lock is held, the timeout elapses, or ctx is
// cancelled. On success the returned release func must be called exactly once.
// A wait timeout surfaces ErrMatchBusy so callers can retry; caller
// cancellation surfaces the context error unchanged.
func (l *MatchLocks) Acquire(ctx context.Context, matchID int, timeout time.Duration) (release func(), err error) {
	l.mu.Lock()
	entry, ok := l.locks[matchID]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.locks[matchID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := entry.sem.Acquire(acquireCtx, 1); err != nil {
		l.put(matchID, entry)
		// Caller cancellation aborts cleanly; only a lock wait timeout is
		// reported as contention.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrMatchBusy
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			l.put(matchID, entry)
		})
	}, nil
}

func (l *MatchLocks) put(matchID int, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, matchID)
	}
	l.mu.Unlock()
}
