// Package trade holds the Trade aggregate, manual financial
// adjustments, and the command service that mutates them through the
// ledger.
package trade

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("trade not found")

	ErrAdjustmentNotFound = errors.New("adjustment not found")

	// ErrCancelled rejects operations on a cancelled trade.
	ErrCancelled = errors.New("trade is cancelled")

	// ErrSettled rejects cancellation after a settlement action has
	// posted ledger entries. Settled entries are never reversed.
	ErrSettled = errors.New("trade has settled entries")

	// ErrAlreadySettled rejects settling the same dimension twice.
	ErrAlreadySettled = errors.New("trade already settled")
)

// Direction is the dealer's side of the trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Trade is the aggregate owning the ledger entries posted on its
// behalf. Lifecycle: Created → (optionally) Cancelled; independently
// Position-Settled and Financial-Settled, in either order, both
// required for full completion.
type Trade struct {
	ID           uuid.UUID
	ProductID    string
	Location     string
	Counterparty string
	Direction    Direction

	// Quantity is in troy ounces; Amount = Quantity * UnitPrice.
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal

	CreatedOnUTC      time.Time
	FinancialSettleOn time.Time // target date, rolled to a business day by the job

	IsPositionSettled  bool
	IsFinancialSettled bool
	ConfirmedOnUTC     *time.Time
	CancelledOnUTC     *time.Time

	// RequiresReview parks a trade whose settlement was rejected by a
	// business rule; the job skips it until an operator clears it.
	RequiresReview bool
	ReviewReason   string
}

func (t *Trade) IsCancelled() bool {
	return t.CancelledOnUTC != nil
}

// FullySettled reports whether both settlement dimensions completed.
func (t *Trade) FullySettled() bool {
	return t.IsPositionSettled && t.IsFinancialSettled
}

// Confirm marks the trade confirmed with the counterparty.
func (t *Trade) Confirm(now time.Time) error {
	if t.IsCancelled() {
		return ErrCancelled
	}
	if t.ConfirmedOnUTC == nil {
		ts := now
		t.ConfirmedOnUTC = &ts
	}
	return nil
}

// Cancel marks the trade cancelled. Legal only while no settlement has
// posted ledger entries; cancelling after settlement is rejected, not
// reversed.
func (t *Trade) Cancel(now time.Time) error {
	if t.IsCancelled() {
		return ErrCancelled
	}
	if t.IsPositionSettled || t.IsFinancialSettled {
		return ErrSettled
	}
	ts := now
	t.CancelledOnUTC = &ts
	return nil
}

// MarkFinancialSettled flips the financial dimension. The flag is the
// single source of truth gating settlement eligibility.
func (t *Trade) MarkFinancialSettled() error {
	if t.IsCancelled() {
		return ErrCancelled
	}
	if t.IsFinancialSettled {
		return ErrAlreadySettled
	}
	t.IsFinancialSettled = true
	return nil
}

// MarkPositionSettled flips the position dimension.
func (t *Trade) MarkPositionSettled() error {
	if t.IsCancelled() {
		return ErrCancelled
	}
	if t.IsPositionSettled {
		return ErrAlreadySettled
	}
	t.IsPositionSettled = true
	return nil
}

// FinancialAdjustment is a manual ledger-entry-producing activity. It
// always posts one effective and one actual transaction at creation.
type FinancialAdjustment struct {
	ID     uuid.UUID
	Date   time.Time
	Side   int32 // +1 credit, -1 debit
	Amount decimal.Decimal
	Note   string

	CreatedOnUTC time.Time
}
