package query

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceView answers "what is our cash balance" under both views.
type BalanceView struct {
	Available decimal.Decimal `json:"available"` // effective, pre-settlement
	Actual    decimal.Decimal `json:"actual"`    // settled
	AsOf      time.Time       `json:"as_of"`
}

// PositionView is one inventory position's latest running balance.
type PositionView struct {
	LedgerKey string          `json:"ledger_key"`
	Quantity  decimal.Decimal `json:"quantity"`
	AsOf      time.Time       `json:"as_of"`
}

// EntryView is one ledger entry in a running history.
type EntryView struct {
	ID             uuid.UUID       `json:"id"`
	Kind           string          `json:"kind"`
	LedgerKey      string          `json:"ledger_key"`
	TimestampUTC   time.Time       `json:"timestamp_utc"`
	Side           int32           `json:"side"`
	Magnitude      decimal.Decimal `json:"magnitude"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	SourceRef      string          `json:"source_ref"`
	Note           string          `json:"note,omitempty"`
}
