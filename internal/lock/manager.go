// Package lock provides cooperative named locks with bounded waits.
// A lock only serializes callers that ask for the same key; nothing
// stops code that bypasses the manager, so every write path must go
// through it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotHeld reports a release of a key that was never acquired, or was
// already released. Callers treat this as a programming error, not a
// recoverable condition.
var ErrNotHeld = errors.New("lock not held")

// Manager hands out one-token semaphores keyed by name. Semaphores are
// created on first use and never reaped; the key space is small and
// fixed (contention domains, not entity IDs).
type Manager struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func NewManager() *Manager {
	return &Manager{sems: make(map[string]chan struct{})}
}

func (m *Manager) sem(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		m.sems[key] = s
	}
	return s
}

// Acquire blocks until the key's lock is free, the timeout elapses, or
// ctx is cancelled. It returns (true, nil) when the lock was taken,
// (false, nil) on timeout, and (false, ctx.Err()) on cancellation. The
// caller owns the lock only on (true, nil) and must Release it exactly
// once.
func (m *Manager) Acquire(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	sem := m.sem(key)

	// Fast path: uncontended.
	select {
	case sem <- struct{}{}:
		return true, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Release frees the key's lock. Releasing a key that is not held
// returns ErrNotHeld instead of corrupting the semaphore.
func (m *Manager) Release(key string) error {
	sem := m.sem(key)
	select {
	case <-sem:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrNotHeld, key)
	}
}
