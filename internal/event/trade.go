package event

import (
	"time"

	"github.com/google/uuid"
)

// TradeConfirmed is raised when a trade is confirmed with the counterparty.
type TradeConfirmed struct {
	ID       uuid.UUID
	TradeID  uuid.UUID
	RaisedAt time.Time
}

func (e *TradeConfirmed) EventID() uuid.UUID    { return e.ID }
func (e *TradeConfirmed) EventType() Type       { return TypeTradeConfirmed }
func (e *TradeConfirmed) OccurredAt() time.Time { return e.RaisedAt }

// TradeCancelled is raised when a trade is cancelled before settlement.
type TradeCancelled struct {
	ID       uuid.UUID
	TradeID  uuid.UUID
	RaisedAt time.Time
}

func (e *TradeCancelled) EventID() uuid.UUID    { return e.ID }
func (e *TradeCancelled) EventType() Type       { return TypeTradeCancelled }
func (e *TradeCancelled) OccurredAt() time.Time { return e.RaisedAt }

// TradeFinancialSettled is raised when the settlement job has posted the
// actual cash transaction for a trade.
type TradeFinancialSettled struct {
	ID       uuid.UUID
	TradeID  uuid.UUID
	EntryID  uuid.UUID
	RaisedAt time.Time
}

func (e *TradeFinancialSettled) EventID() uuid.UUID    { return e.ID }
func (e *TradeFinancialSettled) EventType() Type       { return TypeTradeFinancialSettled }
func (e *TradeFinancialSettled) OccurredAt() time.Time { return e.RaisedAt }

// TradePositionSettled is raised when a trade's inventory position entry
// has been posted.
type TradePositionSettled struct {
	ID       uuid.UUID
	TradeID  uuid.UUID
	EntryID  uuid.UUID
	RaisedAt time.Time
}

func (e *TradePositionSettled) EventID() uuid.UUID    { return e.ID }
func (e *TradePositionSettled) EventType() Type       { return TypeTradePositionSettled }
func (e *TradePositionSettled) OccurredAt() time.Time { return e.RaisedAt }
