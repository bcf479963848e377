package trade

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/event"
	"BullionLedger/internal/ledger"
)

// Calendar provides the business-day arithmetic used to derive a
// trade's financial settlement date.
type Calendar interface {
	AddBusinessDays(d time.Time, n int) time.Time
}

// SettleLagDays is the financial settlement lag applied to new trades.
const SettleLagDays = 2

// NewTradeRequest describes a trade to execute.
type NewTradeRequest struct {
	ProductID    string
	Location     string
	Counterparty string
	Direction    Direction
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
}

// Service executes trade and adjustment commands. Each command is one
// unit of work: the aggregate and its ledger entries are persisted
// first, and only then are the raised domain events enqueued.
type Service struct {
	trades   Store
	ledger   *ledger.Service
	calendar Calendar
	queue    *event.Queue
	clock    func() time.Time
	log      zerolog.Logger
}

func NewService(trades Store, ledgerSvc *ledger.Service, calendar Calendar, queue *event.Queue, log zerolog.Logger) *Service {
	return &Service{
		trades:   trades,
		ledger:   ledgerSvc,
		calendar: calendar,
		queue:    queue,
		clock:    func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// WithClock overrides the timestamp source. Tests only.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Execute books a new trade: it posts the effective cash transaction
// (the view used for live trading decisions) and stores the aggregate.
// A buy debits effective cash and is rejected with
// ErrInsufficientBalance before anything is written.
func (s *Service) Execute(ctx context.Context, req NewTradeRequest) (*Trade, error) {
	now := s.clock()

	t := &Trade{
		ID:                uuid.New(),
		ProductID:         req.ProductID,
		Location:          req.Location,
		Counterparty:      req.Counterparty,
		Direction:         req.Direction,
		Quantity:          req.Quantity,
		UnitPrice:         req.UnitPrice,
		Amount:            req.Quantity.Mul(req.UnitPrice),
		CreatedOnUTC:      now,
		FinancialSettleOn: s.calendar.AddBusinessDays(now, SettleLagDays),
	}

	res, err := s.ledger.Append(ctx, ledger.AppendRequest{
		Key:       ledger.MoneyKey(ledger.DimensionEffective),
		Kind:      ledger.KindFinancialTransaction,
		Side:      cashSide(t.Direction),
		Magnitude: t.Amount,
		SourceRef: t.ID.String(),
		Note:      fmt.Sprintf("trade %s %s %s @ %s", t.Direction, t.Quantity, t.ProductID, t.UnitPrice),
	})
	if err != nil {
		return nil, fmt.Errorf("post effective transaction: %w", err)
	}

	if err := s.trades.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	s.queue.Enqueue(res.Events...)

	s.log.Info().
		Str("trade_id", t.ID.String()).
		Str("direction", string(t.Direction)).
		Str("product_id", t.ProductID).
		Str("quantity", t.Quantity.String()).
		Str("amount", t.Amount.String()).
		Time("settle_on", t.FinancialSettleOn).
		Msg("trade executed")

	return t, nil
}

// Confirm marks a trade confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) error {
	t, err := s.trades.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.clock()
	if err := t.Confirm(now); err != nil {
		return err
	}
	if err := s.trades.Update(ctx, t); err != nil {
		return fmt.Errorf("update trade: %w", err)
	}

	s.queue.Enqueue(&event.TradeConfirmed{ID: uuid.New(), TradeID: t.ID, RaisedAt: now})
	return nil
}

// Cancel cancels a trade that has no settled entries and posts the
// offsetting effective transaction. The original entry is never
// mutated; corrections are offsetting appends.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	t, err := s.trades.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.clock()
	if err := t.Cancel(now); err != nil {
		return err
	}

	res, err := s.ledger.Append(ctx, ledger.AppendRequest{
		Key:           ledger.MoneyKey(ledger.DimensionEffective),
		Kind:          ledger.KindFinancialTransaction,
		Side:          -cashSide(t.Direction),
		Magnitude:     t.Amount,
		SourceRef:     t.ID.String(),
		Note:          "trade cancellation offset",
		AllowNegative: true,
	})
	if err != nil {
		return fmt.Errorf("post cancellation offset: %w", err)
	}

	if err := s.trades.Update(ctx, t); err != nil {
		return fmt.Errorf("update trade: %w", err)
	}

	s.queue.Enqueue(res.Events...)
	s.queue.Enqueue(&event.TradeCancelled{ID: uuid.New(), TradeID: t.ID, RaisedAt: now})

	s.log.Info().Str("trade_id", t.ID.String()).Msg("trade cancelled")
	return nil
}

// CreateAdjustment books a manual financial adjustment, posting one
// effective and one actual transaction at creation. Adjustments are
// operator corrections and may overdraw a balance.
func (s *Service) CreateAdjustment(ctx context.Context, date time.Time, side ledger.Side, amount decimal.Decimal, note string) (*FinancialAdjustment, error) {
	now := s.clock()

	a := &FinancialAdjustment{
		ID:           uuid.New(),
		Date:         date,
		Side:         int32(side),
		Amount:       amount,
		Note:         note,
		CreatedOnUTC: now,
	}

	var raised []event.Event
	for _, dim := range []ledger.BalanceDimension{ledger.DimensionEffective, ledger.DimensionActual} {
		res, err := s.ledger.Append(ctx, ledger.AppendRequest{
			Key:           ledger.MoneyKey(dim),
			Kind:          ledger.KindFinancialTransaction,
			Side:          side,
			Magnitude:     amount,
			SourceRef:     a.ID.String(),
			Note:          note,
			AllowNegative: true,
		})
		if err != nil {
			return nil, fmt.Errorf("post %s adjustment transaction: %w", dim, err)
		}
		raised = append(raised, res.Events...)
	}

	if err := s.trades.InsertAdjustment(ctx, a); err != nil {
		return nil, fmt.Errorf("insert adjustment: %w", err)
	}

	raised = append(raised, &event.AdjustmentCreated{
		ID:           uuid.New(),
		AdjustmentID: a.ID,
		Side:         a.Side,
		Amount:       a.Amount,
		RaisedAt:     now,
	})
	s.queue.Enqueue(raised...)

	s.log.Info().
		Str("adjustment_id", a.ID.String()).
		Int32("side", a.Side).
		Str("amount", a.Amount.String()).
		Msg("financial adjustment created")

	return a, nil
}

// DeleteAdjustment removes a financial adjustment. Ledger entries are
// never rewritten, so the original postings stay and an offsetting
// transaction is booked on each dimension before the record is deleted.
func (s *Service) DeleteAdjustment(ctx context.Context, id uuid.UUID) error {
	a, err := s.trades.GetAdjustment(ctx, id)
	if err != nil {
		return err
	}
	now := s.clock()

	var raised []event.Event
	for _, dim := range []ledger.BalanceDimension{ledger.DimensionEffective, ledger.DimensionActual} {
		res, err := s.ledger.Append(ctx, ledger.AppendRequest{
			Key:           ledger.MoneyKey(dim),
			Kind:          ledger.KindFinancialTransaction,
			Side:          -ledger.Side(a.Side),
			Magnitude:     a.Amount,
			SourceRef:     a.ID.String(),
			Note:          "adjustment deletion offset",
			AllowNegative: true,
		})
		if err != nil {
			return fmt.Errorf("post %s adjustment offset: %w", dim, err)
		}
		raised = append(raised, res.Events...)
	}

	if err := s.trades.DeleteAdjustment(ctx, id); err != nil {
		return fmt.Errorf("delete adjustment: %w", err)
	}

	raised = append(raised, &event.ItemDeleted{
		ID:       uuid.New(),
		Kind:     "financial_adjustment",
		ItemID:   a.ID,
		RaisedAt: now,
	})
	s.queue.Enqueue(raised...)

	s.log.Info().
		Str("adjustment_id", a.ID.String()).
		Msg("financial adjustment deleted")

	return nil
}

// cashSide maps a trade direction to the sign of its cash movement:
// buying metal spends cash, selling receives it.
func cashSide(d Direction) ledger.Side {
	if d == DirectionBuy {
		return ledger.SideDebit
	}
	return ledger.SideCredit
}
