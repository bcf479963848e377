// Package ledger implements the append-only balance/position ledger:
// immutable entries carrying a running balance captured at insert time,
// and the service that appends them under cooperative locking.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind discriminates the two concrete entry kinds.
type Kind int32

const (
	KindFinancialTransaction Kind = iota
	KindPositionEntry
)

func (k Kind) String() string {
	switch k {
	case KindFinancialTransaction:
		return "financial_transaction"
	case KindPositionEntry:
		return "position_entry"
	default:
		return "unknown"
	}
}

// Side multiplies the magnitude to produce a signed delta.
type Side int32

const (
	SideCredit Side = 1
	SideDebit  Side = -1
)

func (s Side) Valid() bool {
	return s == SideCredit || s == SideDebit
}

// BalanceDimension selects the money-ledger view.
type BalanceDimension string

const (
	// DimensionEffective is the balance usable for live trading
	// decisions before full settlement.
	DimensionEffective BalanceDimension = "effective"

	// DimensionActual is the balance reflecting completed settlement.
	DimensionActual BalanceDimension = "actual"
)

// PositionType classifies how inventory is held at a location.
type PositionType string

const (
	PositionPhysical PositionType = "physical"
	PositionForward  PositionType = "forward"
)

// Key is the logical partition of the ledger whose running balance is
// independently maintained: one balance dimension for money, or one
// location+product+position-type tuple for inventory.
type Key string

// MoneyKey returns the ledger key for a balance dimension.
func MoneyKey(dim BalanceDimension) Key {
	return Key(fmt.Sprintf("balance:%s", dim))
}

// PositionKey returns the ledger key for an inventory position.
func PositionKey(location, productID string, pt PositionType) Key {
	return Key(fmt.Sprintf("position:%s:%s:%s", location, productID, pt))
}

// LockKey maps the ledger key to its contention domain. All money
// ledgers share one coarse domain so that any two writers touching cash
// balances serialize, whichever command they came from. Inventory keys
// contend only with themselves.
func (k Key) LockKey() string {
	if strings.HasPrefix(string(k), "balance:") {
		return "balance"
	}
	return string(k)
}

// IsMoney reports whether the key belongs to the money ledger.
func (k Key) IsMoney() bool {
	return strings.HasPrefix(string(k), "balance:")
}

// Entry is one immutable ledger record. Entries are never mutated or
// deleted; corrections are made by appending offsetting entries.
type Entry struct {
	ID           uuid.UUID
	Kind         Kind
	Key          Key
	TimestampUTC time.Time

	// Seq breaks timestamp ties by insertion order within a key.
	Seq int64

	Side      Side
	Magnitude decimal.Decimal

	// RunningBalance is prev + Side*Magnitude, captured at insertion
	// time and never recomputed.
	RunningBalance decimal.Decimal

	// SourceRef identifies the originating activity (trade id,
	// adjustment id). Display and audit only, never recomputation.
	SourceRef string

	Note string
}

// SignedAmount returns Side * Magnitude.
func (e *Entry) SignedAmount() decimal.Decimal {
	if e.Side == SideDebit {
		return e.Magnitude.Neg()
	}
	return e.Magnitude
}
