// Package event defines the domain events raised by aggregate mutations
// and the queue/processor pipeline that dispatches them asynchronously.
//
// Events carry the minimal identifiers downstream consumers need to
// re-query enriched detail, never a full aggregate. They are enqueued
// only after the raising unit of work has committed.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeTransactionCreated
	TypePositionCreated
	TypeAdjustmentCreated
	TypeTradeConfirmed
	TypeTradeCancelled
	TypeTradeFinancialSettled
	TypeTradePositionSettled
	TypeItemDeleted
)

// Event is the interface all domain event payloads implement.
type Event interface {
	// EventID returns the stable identity of this event instance.
	EventID() uuid.UUID

	// EventType returns the discriminator.
	EventType() Type

	// OccurredAt returns the raise time (UTC).
	OccurredAt() time.Time
}

func (t Type) String() string {
	switch t {
	case TypeTransactionCreated:
		return "TransactionCreated"
	case TypePositionCreated:
		return "PositionCreated"
	case TypeAdjustmentCreated:
		return "AdjustmentCreated"
	case TypeTradeConfirmed:
		return "TradeConfirmed"
	case TypeTradeCancelled:
		return "TradeCancelled"
	case TypeTradeFinancialSettled:
		return "TradeFinancialSettled"
	case TypeTradePositionSettled:
		return "TradePositionSettled"
	case TypeItemDeleted:
		return "ItemDeleted"
	default:
		return "Unknown"
	}
}

// ParseType maps a stored discriminator name back to its Type.
func ParseType(s string) Type {
	switch s {
	case "TransactionCreated":
		return TypeTransactionCreated
	case "PositionCreated":
		return TypePositionCreated
	case "AdjustmentCreated":
		return TypeAdjustmentCreated
	case "TradeConfirmed":
		return TypeTradeConfirmed
	case "TradeCancelled":
		return TypeTradeCancelled
	case "TradeFinancialSettled":
		return TypeTradeFinancialSettled
	case "TradePositionSettled":
		return TypeTradePositionSettled
	case "ItemDeleted":
		return TypeItemDeleted
	default:
		return TypeUnknown
	}
}
