package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Store owns the append-only sequences and the running-balance
// invariant: Append computes prev + side*magnitude from the key's
// latest entry and inserts the new immutable record atomically.
//
// Callers must not write entries except through Service.Append, which
// serializes writers per contention domain.
type Store interface {
	// Append stamps e.Seq and e.RunningBalance from the key's prior
	// entry and inserts e. All-or-nothing per entry.
	Append(ctx context.Context, e *Entry) error

	// LastBalance returns the latest running balance for key, ordered
	// by timestamp with insertion-order tie break. found is false when
	// the key has no entries (zero baseline).
	LastBalance(ctx context.Context, key Key) (balance decimal.Decimal, found bool, err error)

	// History returns the key's entries in running-balance order,
	// optionally truncated to those at or before asOf.
	History(ctx context.Context, key Key, asOf *time.Time) ([]*Entry, error)

	// Balances returns the latest running balance of every key.
	Balances(ctx context.Context) (map[Key]decimal.Decimal, error)
}

// MemoryStore is the in-process Store used by tests and tooling.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key][]*Entry
	seq     map[Key]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[Key][]*Entry),
		seq:     make(map[Key]int64),
	}
}

func (s *MemoryStore) Append(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := decimal.Zero
	if existing := s.entries[e.Key]; len(existing) > 0 {
		prev = existing[len(existing)-1].RunningBalance
	}

	s.seq[e.Key]++
	e.Seq = s.seq[e.Key]
	e.RunningBalance = prev.Add(e.SignedAmount())

	stored := *e
	s.entries[e.Key] = append(s.entries[e.Key], &stored)
	return nil
}

func (s *MemoryStore) LastBalance(ctx context.Context, key Key) (decimal.Decimal, bool, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := s.entries[key]
	if len(existing) == 0 {
		return decimal.Zero, false, nil
	}
	return existing[len(existing)-1].RunningBalance, true, nil
}

func (s *MemoryStore) History(ctx context.Context, key Key, asOf *time.Time) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries[key] {
		if asOf != nil && e.TimestampUTC.After(*asOf) {
			continue
		}
		copied := *e
		out = append(out, &copied)
	}

	// Entries append under lock so slice order is insertion order, but
	// reads still present the contractual (timestamp, seq) order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimestampUTC.Equal(out[j].TimestampUTC) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].TimestampUTC.Before(out[j].TimestampUTC)
	})

	return out, nil
}

func (s *MemoryStore) Balances(ctx context.Context) (map[Key]decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Key]decimal.Decimal, len(s.entries))
	for key, entries := range s.entries {
		if len(entries) == 0 {
			continue
		}
		out[key] = entries[len(entries)-1].RunningBalance
	}
	return out, nil
}
