package adjudication

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestCaseLocksExclusive(t *testing.T) {
	locks := NewCaseLocks()
	id := uuid.New()

	release, ok := locks.TryAcquire(id)
	if !ok {
		t.Fatal("first acquire should succeed")
	}
	if _, ok := locks.TryAcquire(id); ok {
		t.Fatal("second acquire of the same case should fail")
	}
	if _, ok := locks.TryAcquire(uuid.New()); !ok {
		t.Fatal("a different case should not be blocked")
	}

	release()
	release() // idempotent
	if _, ok := locks.TryAcquire(id); !ok {
		t.Fatal("acquire after release should succeed")
	}
}

func TestCaseLocksConcurrent(t *testing.T) {
	locks := NewCaseLocks()
	id := uuid.New()

	var won atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := locks.TryAcquire(id); ok {
				won.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := won.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
	if got := locks.InFlight(); got != 1 {
		t.Fatalf("InFlight = %d, want 1", got)
	}
}
