package trade

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists trades and adjustments.
type Store interface {
	Insert(ctx context.Context, t *Trade) error
	Get(ctx context.Context, id uuid.UUID) (*Trade, error)
	Update(ctx context.Context, t *Trade) error

	// DueFinancial returns non-cancelled, not-under-review trades with
	// IsFinancialSettled == false and FinancialSettleOn on or before
	// asOf, in settle-date order.
	DueFinancial(ctx context.Context, asOf time.Time) ([]*Trade, error)

	InsertAdjustment(ctx context.Context, a *FinancialAdjustment) error
	GetAdjustment(ctx context.Context, id uuid.UUID) (*FinancialAdjustment, error)
	DeleteAdjustment(ctx context.Context, id uuid.UUID) error
}

// MemoryStore is the in-process Store used by tests and tooling.
type MemoryStore struct {
	mu          sync.RWMutex
	trades      map[uuid.UUID]*Trade
	order       []uuid.UUID
	adjustments map[uuid.UUID]*FinancialAdjustment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades:      make(map[uuid.UUID]*Trade),
		adjustments: make(map[uuid.UUID]*FinancialAdjustment),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, t *Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *t
	s.trades[t.ID] = &copied
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *MemoryStore) Update(ctx context.Context, t *Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trades[t.ID]; !ok {
		return ErrNotFound
	}
	copied := *t
	s.trades[t.ID] = &copied
	return nil
}

func (s *MemoryStore) DueFinancial(ctx context.Context, asOf time.Time) ([]*Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*Trade
	for _, id := range s.order {
		t := s.trades[id]
		if t.IsCancelled() || t.IsFinancialSettled || t.RequiresReview {
			continue
		}
		if t.FinancialSettleOn.After(asOf) {
			continue
		}
		copied := *t
		due = append(due, &copied)
	}
	return due, nil
}

func (s *MemoryStore) InsertAdjustment(ctx context.Context, a *FinancialAdjustment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *a
	s.adjustments[a.ID] = &copied
	return nil
}

func (s *MemoryStore) GetAdjustment(ctx context.Context, id uuid.UUID) (*FinancialAdjustment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.adjustments[id]
	if !ok {
		return nil, ErrAdjustmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *MemoryStore) DeleteAdjustment(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.adjustments[id]; !ok {
		return ErrAdjustmentNotFound
	}
	delete(s.adjustments, id)
	return nil
}
