package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"BullionLedger/internal/lock"
)

func TestAcquireRelease(t *testing.T) {
	m := lock.NewManager()

	ok, err := m.Acquire(context.Background(), "balance", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("uncontended acquire should succeed")
	}

	if err := m.Release("balance"); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestAcquireTimeout(t *testing.T) {
	m := lock.NewManager()

	ok, err := m.Acquire(context.Background(), "balance", time.Second)
	if !ok || err != nil {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	// The key is held; a second acquire must report timeout, not error.
	ok, err = m.Acquire(context.Background(), "balance", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("timed-out acquire returned error: %v", err)
	}
	if ok {
		t.Fatal("second acquire should have timed out")
	}
}

func TestAcquireDistinctKeysIndependent(t *testing.T) {
	m := lock.NewManager()

	if ok, _ := m.Acquire(context.Background(), "balance", time.Second); !ok {
		t.Fatal("acquire balance")
	}
	if ok, _ := m.Acquire(context.Background(), "position:vault:XAU:physical", time.Second); !ok {
		t.Fatal("holding one key must not block another")
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	m := lock.NewManager()

	if ok, _ := m.Acquire(context.Background(), "balance", time.Second); !ok {
		t.Fatal("first acquire")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	ok, err := m.Acquire(ctx, "balance", time.Minute)
	if ok {
		t.Fatal("cancelled acquire should not succeed")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestReleaseNotHeld(t *testing.T) {
	m := lock.NewManager()

	err := m.Release("balance")
	if !errors.Is(err, lock.ErrNotHeld) {
		t.Fatalf("got %v, want ErrNotHeld", err)
	}

	// Acquire then double-release: second release must fail too.
	if ok, _ := m.Acquire(context.Background(), "balance", time.Second); !ok {
		t.Fatal("acquire")
	}
	if err := m.Release("balance"); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := m.Release("balance"); !errors.Is(err, lock.ErrNotHeld) {
		t.Fatalf("double release: got %v, want ErrNotHeld", err)
	}
}

func TestMutualExclusion(t *testing.T) {
	m := lock.NewManager()

	const goroutines = 16
	const iterations = 50

	var counter int
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				ok, err := m.Acquire(context.Background(), "counter", 5*time.Second)
				if err != nil || !ok {
					t.Errorf("acquire: ok=%v err=%v", ok, err)
					return
				}
				counter++
				if err := m.Release("counter"); err != nil {
					t.Errorf("release: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*iterations {
		t.Errorf("counter = %d, want %d (lost updates)", counter, goroutines*iterations)
	}
}
