package memory_test

import (
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/fms/internal/storage/memory"
)

func TestAllocationGuard_AcquireRelease(t *testing.T) {
	guard := memory.NewAllocationGuard()

	acquired, err := guard.Acquire("order-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected first acquire to succeed")
	}

	acquired, err = guard.Acquire("order-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if acquired {
		t.Fatal("expected duplicate acquire to fail")
	}

	// Другой заказ не блокируется.
	acquired, err = guard.Acquire("order-2")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected acquire for another order to succeed")
	}

	if err := guard.Release("order-1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	acquired, err = guard.Acquire("order-1")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("expected acquire after release to succeed")
	}
}

func TestAllocationGuard_SingleWinner(t *testing.T) {
	guard := memory.NewAllocationGuard()

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := guard.Acquire("order-1")
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			if ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var total int
	for range wins {
		total++
	}
	if total != 1 {
		t.Fatalf("expected exactly one winner, got %d", total)
	}
}
