package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMatchLocksMutualExclusion(t *testing.T) {
	locks := NewMatchLocks()
	ctx := context.Background()

	const goroutines = 16
	var holders, maxHolders int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, 42, 5*time.Second)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxHolders != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxHolders)
	}
}

func TestMatchLocksDistinctMatchesDoNotBlock(t *testing.T) {
	locks := NewMatchLocks()
	ctx := context.Background()

	release1, err := locks.Acquire(ctx, 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire match 1: %v", err)
	}
	defer release1()

	// A different match must be acquirable while match 1 is held.
	release2, err := locks.Acquire(ctx, 2, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire match 2 while match 1 held: %v", err)
	}
	release2()
}

func TestMatchLocksTimeoutSurfacesBusy(t *testing.T) {
	locks := NewMatchLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, 7, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	_, err = locks.Acquire(ctx, 7, 20*time.Millisecond)
	if !errors.Is(err, ErrMatchBusy) {
		t.Errorf("err = %v, want ErrMatchBusy", err)
	}
}

func TestMatchLocksCallerCancellation(t *testing.T) {
	locks := NewMatchLocks()

	release, err := locks.Acquire(context.Background(), 7, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = locks.Acquire(ctx, 7, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMatchLocksReleaseIsIdempotent(t *testing.T) {
	locks := NewMatchLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, 1, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
	release() // second call must be a no-op

	again, err := locks.Acquire(ctx, 1, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire after double release: %v", err)
	}
	again()
}

func TestMatchLocksDropIdleEntries(t *testing.T) {
	locks := NewMatchLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, 99, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.locks) != 0 {
		t.Errorf("idle registry holds %d entries, want 0", len(locks.locks))
	}
}
