// Package query provides read-only access to ledger state: current
// balances under both views and per-key running histories.
package query

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"BullionLedger/internal/ledger"
)

// Service reads through the ledger store; it never writes. Queries see
// the latest committed running balances, so a read concurrent with an
// append returns either the pre- or post-append balance, never a
// partial state.
type Service struct {
	store ledger.Store
	clock func() time.Time
}

func NewService(store ledger.Store) *Service {
	return &Service{
		store: store,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// CurrentBalance returns the money balance under the effective and
// actual views. Keys with no entries read as zero.
func (s *Service) CurrentBalance(ctx context.Context) (*BalanceView, error) {
	available, _, err := s.store.LastBalance(ctx, ledger.MoneyKey(ledger.DimensionEffective))
	if err != nil {
		return nil, err
	}
	actual, _, err := s.store.LastBalance(ctx, ledger.MoneyKey(ledger.DimensionActual))
	if err != nil {
		return nil, err
	}

	return &BalanceView{
		Available: available,
		Actual:    actual,
		AsOf:      s.clock(),
	}, nil
}

// Positions returns the latest running quantity of every inventory key.
func (s *Service) Positions(ctx context.Context) ([]PositionView, error) {
	balances, err := s.store.Balances(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	var out []PositionView
	for key, balance := range balances {
		if key.IsMoney() {
			continue
		}
		out = append(out, PositionView{
			LedgerKey: string(key),
			Quantity:  balance,
			AsOf:      now,
		})
	}
	return out, nil
}

// RunningHistory returns the entries of one ledger key in
// running-balance order, optionally truncated to those at or before
// asOf.
func (s *Service) RunningHistory(ctx context.Context, key ledger.Key, asOf *time.Time) ([]EntryView, error) {
	entries, err := s.store.History(ctx, key, asOf)
	if err != nil {
		return nil, err
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView(e))
	}
	return views, nil
}

// TradeActivity returns every ledger entry posted on behalf of one
// trade, across money and inventory ledgers. Display and audit only.
func (s *Service) TradeActivity(ctx context.Context, tradeID uuid.UUID) ([]EntryView, error) {
	balances, err := s.store.Balances(ctx)
	if err != nil {
		return nil, err
	}

	ref := tradeID.String()
	var views []EntryView
	for key := range balances {
		entries, err := s.store.History(ctx, key, nil)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if strings.EqualFold(e.SourceRef, ref) {
				views = append(views, entryView(e))
			}
		}
	}
	return views, nil
}

func entryView(e *ledger.Entry) EntryView {
	return EntryView{
		ID:             e.ID,
		Kind:           e.Kind.String(),
		LedgerKey:      string(e.Key),
		TimestampUTC:   e.TimestampUTC,
		Side:           int32(e.Side),
		Magnitude:      e.Magnitude,
		RunningBalance: e.RunningBalance,
		SourceRef:      e.SourceRef,
		Note:           e.Note,
	}
}
