package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionCreated is raised after a financial transaction is appended
// to a money ledger. It carries the resulting running balance so
// consumers can notify without re-reading the ledger head.
type TransactionCreated struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	LedgerKey string
	Side      int32
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	SourceRef string
	RaisedAt  time.Time
}

func (e *TransactionCreated) EventID() uuid.UUID    { return e.ID }
func (e *TransactionCreated) EventType() Type       { return TypeTransactionCreated }
func (e *TransactionCreated) OccurredAt() time.Time { return e.RaisedAt }

// PositionCreated is raised after a position entry is appended to an
// inventory ledger.
type PositionCreated struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	LedgerKey string
	Side      int32
	Quantity  decimal.Decimal
	Balance   decimal.Decimal
	SourceRef string
	RaisedAt  time.Time
}

func (e *PositionCreated) EventID() uuid.UUID    { return e.ID }
func (e *PositionCreated) EventType() Type       { return TypePositionCreated }
func (e *PositionCreated) OccurredAt() time.Time { return e.RaisedAt }

// AdjustmentCreated is raised when a manual financial adjustment has
// posted its effective and actual transactions.
type AdjustmentCreated struct {
	ID           uuid.UUID
	AdjustmentID uuid.UUID
	Side         int32
	Amount       decimal.Decimal
	RaisedAt     time.Time
}

func (e *AdjustmentCreated) EventID() uuid.UUID    { return e.ID }
func (e *AdjustmentCreated) EventType() Type       { return TypeAdjustmentCreated }
func (e *AdjustmentCreated) OccurredAt() time.Time { return e.RaisedAt }

// ItemDeleted is raised when a non-ledger record (ledger entries are
// never deleted) is removed, so read models can evict it.
type ItemDeleted struct {
	ID       uuid.UUID
	Kind     string
	ItemID   uuid.UUID
	RaisedAt time.Time
}

func (e *ItemDeleted) EventID() uuid.UUID    { return e.ID }
func (e *ItemDeleted) EventType() Type       { return TypeItemDeleted }
func (e *ItemDeleted) OccurredAt() time.Time { return e.RaisedAt }
