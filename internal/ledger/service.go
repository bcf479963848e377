package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/event"
	"BullionLedger/internal/lock"
	"BullionLedger/internal/observability"
)

// AppendRequest describes one ledger entry to derive from the prior
// running balance.
type AppendRequest struct {
	Key       Key
	Kind      Kind
	Side      Side
	Magnitude decimal.Decimal
	SourceRef string
	Note      string

	// AllowNegative disables the non-negative balance guard. Manual
	// corrections may overdraw; trade debits and sells may not.
	AllowNegative bool
}

// AppendResult carries the inserted entry and the events it raised.
// The orchestrating unit of work enqueues the events after commit;
// the service never touches the queue itself.
type AppendResult struct {
	Entry  *Entry
	Events []event.Event
}

// Service orchestrates "append a new ledger entry derived from the
// prior balance" under the cooperative lock. It is the only legal write
// path into the Store.
type Service struct {
	store       Store
	locks       *lock.Manager
	lockTimeout time.Duration
	clock       func() time.Time
	log         zerolog.Logger
	metrics     *observability.Metrics
}

func NewService(store Store, locks *lock.Manager, lockTimeout time.Duration, log zerolog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:       store,
		locks:       locks,
		lockTimeout: lockTimeout,
		clock:       func() time.Time { return time.Now().UTC() },
		log:         log,
		metrics:     metrics,
	}
}

// WithClock overrides the timestamp source. Tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Append acquires the key's contention-domain lock, re-reads the latest
// running balance, verifies the balance guard, and inserts the new
// immutable entry. A lock wait that expires surfaces as ErrLockTimeout
// (retryable), a violated guard as ErrInsufficientBalance or
// ErrInsufficientPosition (non-retryable); in both cases nothing was
// appended. Context cancellation aborts the lock wait and the insert is
// all-or-nothing, so a cancelled append never half-writes.
func (s *Service) Append(ctx context.Context, req AppendRequest) (*AppendResult, error) {
	start := s.clock()

	if req.Magnitude.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMagnitude, req.Magnitude)
	}
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, req.Side)
	}

	lockKey := req.Key.LockKey()

	lockStart := s.clock()
	ok, err := s.locks.Acquire(ctx, lockKey, s.lockTimeout)
	if s.metrics != nil {
		s.metrics.LockWaitDuration.WithLabelValues(lockKey).Observe(s.clock().Sub(lockStart).Seconds())
	}
	if err != nil {
		// Cancellation outcome, not a lock failure.
		return nil, err
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.LockTimeouts.WithLabelValues(lockKey).Inc()
			s.metrics.LedgerAppendRejected.WithLabelValues(req.Kind.String(), "lock_timeout").Inc()
		}
		return nil, fmt.Errorf("%w: key %q", ErrLockTimeout, lockKey)
	}
	defer func() {
		if relErr := s.locks.Release(lockKey); relErr != nil {
			// Unbalanced acquire/release is a programming error; keep it loud.
			s.log.Error().Err(relErr).Str("lock_key", lockKey).Msg("lock release failed")
		}
	}()

	prev, _, err := s.store.LastBalance(ctx, req.Key)
	if err != nil {
		return nil, fmt.Errorf("read last balance for %q: %w", req.Key, err)
	}

	if req.Side == SideDebit && !req.AllowNegative {
		if prev.Sub(req.Magnitude).IsNegative() {
			guardErr := ErrInsufficientPosition
			if req.Key.IsMoney() {
				guardErr = ErrInsufficientBalance
			}
			if s.metrics != nil {
				s.metrics.LedgerAppendRejected.WithLabelValues(req.Kind.String(), "insufficient").Inc()
			}
			return nil, fmt.Errorf("%w: key %q has %s, debit of %s rejected",
				guardErr, req.Key, prev, req.Magnitude)
		}
	}

	entry := &Entry{
		ID:           uuid.New(),
		Kind:         req.Kind,
		Key:          req.Key,
		TimestampUTC: s.clock(),
		Side:         req.Side,
		Magnitude:    req.Magnitude,
		SourceRef:    req.SourceRef,
		Note:         req.Note,
	}

	if err := s.store.Append(ctx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.LedgerAppendRejected.WithLabelValues(req.Kind.String(), "store").Inc()
		}
		return nil, fmt.Errorf("append entry to %q: %w", req.Key, err)
	}

	if s.metrics != nil {
		s.metrics.LedgerAppends.WithLabelValues(req.Kind.String()).Inc()
		s.metrics.LedgerAppendDuration.WithLabelValues(req.Kind.String()).Observe(s.clock().Sub(start).Seconds())
		bal, _ := entry.RunningBalance.Float64()
		s.metrics.LedgerBalance.WithLabelValues(string(req.Key)).Set(bal)
	}

	s.log.Debug().
		Str("key", string(req.Key)).
		Str("kind", req.Kind.String()).
		Int32("side", int32(req.Side)).
		Str("magnitude", req.Magnitude.String()).
		Str("running_balance", entry.RunningBalance.String()).
		Str("source_ref", req.SourceRef).
		Msg("ledger entry appended")

	return &AppendResult{
		Entry:  entry,
		Events: []event.Event{s.entryEvent(entry)},
	}, nil
}

// CurrentBalance reads the latest running balance for key. Zero when
// the key has no entries.
func (s *Service) CurrentBalance(ctx context.Context, key Key) (decimal.Decimal, error) {
	bal, _, err := s.store.LastBalance(ctx, key)
	return bal, err
}

func (s *Service) entryEvent(e *Entry) event.Event {
	if e.Kind == KindPositionEntry {
		return &event.PositionCreated{
			ID:        uuid.New(),
			EntryID:   e.ID,
			LedgerKey: string(e.Key),
			Side:      int32(e.Side),
			Quantity:  e.Magnitude,
			Balance:   e.RunningBalance,
			SourceRef: e.SourceRef,
			RaisedAt:  e.TimestampUTC,
		}
	}
	return &event.TransactionCreated{
		ID:        uuid.New(),
		EntryID:   e.ID,
		LedgerKey: string(e.Key),
		Side:      int32(e.Side),
		Amount:    e.Magnitude,
		Balance:   e.RunningBalance,
		SourceRef: e.SourceRef,
		RaisedAt:  e.TimestampUTC,
	}
}
