package trade_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BullionLedger/internal/calendar"
	"BullionLedger/internal/event"
	"BullionLedger/internal/ledger"
	"BullionLedger/internal/lock"
	"BullionLedger/internal/trade"
)

type fixture struct {
	svc    *trade.Service
	trades *trade.MemoryStore
	ledger *ledger.Service
	store  *ledger.MemoryStore
	queue  *event.Queue
}

func newFixture() *fixture {
	store := ledger.NewMemoryStore()
	ledgerSvc := ledger.NewService(store, lock.NewManager(), 5*time.Second, zerolog.Nop(), nil)
	trades := trade.NewMemoryStore()
	queue := event.NewQueue()
	svc := trade.NewService(trades, ledgerSvc, calendar.New(), queue, zerolog.Nop())
	return &fixture{svc: svc, trades: trades, ledger: ledgerSvc, store: store, queue: queue}
}

func (f *fixture) fund(t *testing.T, amount string) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), ledger.AppendRequest{
		Key:       ledger.MoneyKey(ledger.DimensionEffective),
		Kind:      ledger.KindFinancialTransaction,
		Side:      ledger.SideCredit,
		Magnitude: decimal.RequireFromString(amount),
		Note:      "opening balance",
	})
	require.NoError(t, err)
	f.drainQueue()
}

func (f *fixture) drainQueue() {
	for {
		if _, ok := f.queue.Dequeue(); !ok {
			return
		}
	}
}

func (f *fixture) effectiveBalance(t *testing.T) decimal.Decimal {
	t.Helper()
	bal, err := f.ledger.CurrentBalance(context.Background(), ledger.MoneyKey(ledger.DimensionEffective))
	require.NoError(t, err)
	return bal
}

func buyRequest() trade.NewTradeRequest {
	return trade.NewTradeRequest{
		ProductID:    "XAU-1OZ",
		Location:     "vault-zurich",
		Counterparty: "acme-metals",
		Direction:    trade.DirectionBuy,
		Quantity:     decimal.NewFromInt(10),
		UnitPrice:    decimal.RequireFromString("2400"),
	}
}

func TestExecuteBuyDebitsEffective(t *testing.T) {
	f := newFixture()
	f.fund(t, "30000")

	tr, err := f.svc.Execute(context.Background(), buyRequest())
	require.NoError(t, err)

	assert.True(t, tr.Amount.Equal(decimal.RequireFromString("24000")), "amount = quantity * unit price")
	assert.True(t, f.effectiveBalance(t).Equal(decimal.RequireFromString("6000")))
	assert.False(t, tr.IsFinancialSettled)
	assert.False(t, tr.IsPositionSettled)

	// The effective entry references the trade.
	hist, err := f.store.History(context.Background(), ledger.MoneyKey(ledger.DimensionEffective), nil)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, tr.ID.String(), hist[1].SourceRef)

	// One TransactionCreated event was enqueued.
	e, ok := f.queue.Dequeue()
	require.True(t, ok)
	assert.Equal(t, event.TypeTransactionCreated, e.EventType())
}

func TestExecuteBuyInsufficientBalance(t *testing.T) {
	f := newFixture()
	f.fund(t, "100")

	_, err := f.svc.Execute(context.Background(), buyRequest())
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// Nothing was written and nothing enqueued.
	assert.True(t, f.effectiveBalance(t).Equal(decimal.RequireFromString("100")))
	assert.Equal(t, 0, f.queue.Len())
	_, err = f.svc.Execute(context.Background(), trade.NewTradeRequest{
		ProductID: "XAU-1OZ", Direction: trade.DirectionSell,
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("2400"),
	})
	require.NoError(t, err, "sells credit cash and need no balance")
}

func TestExecuteSetsSettlementDate(t *testing.T) {
	f := newFixture()
	f.fund(t, "30000")

	// Thursday; two business days later is Monday.
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time { return now })

	tr, err := f.svc.Execute(context.Background(), buyRequest())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC), tr.FinancialSettleOn)
}

func TestCancelPostsOffsettingEntry(t *testing.T) {
	f := newFixture()
	f.fund(t, "30000")

	tr, err := f.svc.Execute(context.Background(), buyRequest())
	require.NoError(t, err)
	f.drainQueue()

	require.NoError(t, f.svc.Cancel(context.Background(), tr.ID))

	// The debit is offset by an equal credit; balance is restored.
	assert.True(t, f.effectiveBalance(t).Equal(decimal.RequireFromString("30000")))

	stored, err := f.trades.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCancelled())

	// Offset entry event plus the TradeCancelled event.
	first, _ := f.queue.Dequeue()
	second, _ := f.queue.Dequeue()
	assert.Equal(t, event.TypeTransactionCreated, first.EventType())
	assert.Equal(t, event.TypeTradeCancelled, second.EventType())
}

func TestCancelSettledTradeRejected(t *testing.T) {
	f := newFixture()
	f.fund(t, "30000")

	tr, err := f.svc.Execute(context.Background(), buyRequest())
	require.NoError(t, err)

	stored, err := f.trades.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	require.NoError(t, stored.MarkFinancialSettled())
	require.NoError(t, f.trades.Update(context.Background(), stored))

	err = f.svc.Cancel(context.Background(), tr.ID)
	require.ErrorIs(t, err, trade.ErrSettled)
	// No offsetting entry was posted.
	assert.True(t, f.effectiveBalance(t).Equal(decimal.RequireFromString("6000")))
}

func TestConfirmEnqueuesEvent(t *testing.T) {
	f := newFixture()
	f.fund(t, "30000")

	tr, err := f.svc.Execute(context.Background(), buyRequest())
	require.NoError(t, err)
	f.drainQueue()

	require.NoError(t, f.svc.Confirm(context.Background(), tr.ID))

	e, ok := f.queue.Dequeue()
	require.True(t, ok)
	assert.Equal(t, event.TypeTradeConfirmed, e.EventType())
}

func TestCreateAdjustmentPostsBothDimensions(t *testing.T) {
	f := newFixture()

	a, err := f.svc.CreateAdjustment(
		context.Background(),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		ledger.SideDebit,
		decimal.RequireFromString("150"),
		"bank fee correction",
	)
	require.NoError(t, err)

	// Adjustments may overdraw: both dimensions went negative.
	effective, err := f.ledger.CurrentBalance(context.Background(), ledger.MoneyKey(ledger.DimensionEffective))
	require.NoError(t, err)
	actual, err := f.ledger.CurrentBalance(context.Background(), ledger.MoneyKey(ledger.DimensionActual))
	require.NoError(t, err)
	assert.True(t, effective.Equal(decimal.RequireFromString("-150")))
	assert.True(t, actual.Equal(decimal.RequireFromString("-150")))

	// Two entry events plus the AdjustmentCreated event.
	assert.Equal(t, 3, f.queue.Len())
	for i := 0; i < 2; i++ {
		e, _ := f.queue.Dequeue()
		assert.Equal(t, event.TypeTransactionCreated, e.EventType())
	}
	e, _ := f.queue.Dequeue()
	require.Equal(t, event.TypeAdjustmentCreated, e.EventType())
	created := e.(*event.AdjustmentCreated)
	assert.Equal(t, a.ID, created.AdjustmentID)
}

func TestDeleteAdjustmentOffsetsBothDimensions(t *testing.T) {
	f := newFixture()

	a, err := f.svc.CreateAdjustment(
		context.Background(),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		ledger.SideDebit,
		decimal.RequireFromString("150"),
		"bank fee correction",
	)
	require.NoError(t, err)
	f.drainQueue()

	require.NoError(t, f.svc.DeleteAdjustment(context.Background(), a.ID))

	// The offset postings bring both dimensions back to zero.
	effective, err := f.ledger.CurrentBalance(context.Background(), ledger.MoneyKey(ledger.DimensionEffective))
	require.NoError(t, err)
	actual, err := f.ledger.CurrentBalance(context.Background(), ledger.MoneyKey(ledger.DimensionActual))
	require.NoError(t, err)
	assert.True(t, effective.IsZero())
	assert.True(t, actual.IsZero())

	// Two offset entry events plus the ItemDeleted event.
	require.Equal(t, 3, f.queue.Len())
	for i := 0; i < 2; i++ {
		e, _ := f.queue.Dequeue()
		assert.Equal(t, event.TypeTransactionCreated, e.EventType())
	}
	e, _ := f.queue.Dequeue()
	require.Equal(t, event.TypeItemDeleted, e.EventType())
	deleted := e.(*event.ItemDeleted)
	assert.Equal(t, a.ID, deleted.ItemID)
	assert.Equal(t, "financial_adjustment", deleted.Kind)

	// Record is gone and a second delete reports it.
	err = f.svc.DeleteAdjustment(context.Background(), a.ID)
	assert.ErrorIs(t, err, trade.ErrAdjustmentNotFound)
}
