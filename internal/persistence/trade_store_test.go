package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/persistence"
	"BullionLedger/internal/testutil"
	"BullionLedger/internal/trade"
)

func setupTradeStore(t *testing.T) (*persistence.TradeStore, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)

	migrator := persistence.NewMigrator(db, "../../migrations", zerolog.Nop())
	if err := migrator.Up(context.Background()); err != nil {
		cleanup()
		t.Fatalf("migrations: %v", err)
	}
	return persistence.NewTradeStore(db), cleanup
}

func storedTrade(settleOn time.Time) *trade.Trade {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &trade.Trade{
		ID:                uuid.New(),
		ProductID:         "XAU-1OZ",
		Location:          "vault-zurich",
		Counterparty:      "acme-metals",
		Direction:         trade.DirectionBuy,
		Quantity:          decimal.NewFromInt(2),
		UnitPrice:         decimal.RequireFromString("2400"),
		Amount:            decimal.RequireFromString("4800"),
		CreatedOnUTC:      now,
		FinancialSettleOn: settleOn,
	}
}

func TestTradeStoreRoundTrip(t *testing.T) {
	store, cleanup := setupTradeStore(t)
	defer cleanup()
	ctx := context.Background()

	src := storedTrade(time.Now().UTC().Truncate(time.Microsecond))
	if err := store.Insert(ctx, src); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.Get(ctx, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ProductID != src.ProductID || got.Direction != src.Direction {
		t.Errorf("got %+v, want %+v", got, src)
	}
	if !got.Amount.Equal(src.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, src.Amount)
	}
	if got.ConfirmedOnUTC != nil || got.CancelledOnUTC != nil {
		t.Error("fresh trade should have nil lifecycle timestamps")
	}

	if _, err := store.Get(ctx, uuid.New()); !errors.Is(err, trade.ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
}

func TestTradeStoreUpdateLifecycle(t *testing.T) {
	store, cleanup := setupTradeStore(t)
	defer cleanup()
	ctx := context.Background()

	src := storedTrade(time.Now().UTC())
	if err := store.Insert(ctx, src); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	if err := src.Confirm(now); err != nil {
		t.Fatal(err)
	}
	if err := src.MarkFinancialSettled(); err != nil {
		t.Fatal(err)
	}
	if err := store.Update(ctx, src); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, src.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsFinancialSettled {
		t.Error("settled flag not persisted")
	}
	if got.ConfirmedOnUTC == nil || !got.ConfirmedOnUTC.Equal(now) {
		t.Error("confirmation timestamp not persisted")
	}

	missing := storedTrade(time.Now().UTC())
	if err := store.Update(ctx, missing); !errors.Is(err, trade.ErrNotFound) {
		t.Errorf("update unknown: got %v, want ErrNotFound", err)
	}
}

func TestTradeStoreDueFinancialSelection(t *testing.T) {
	store, cleanup := setupTradeStore(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC()

	due := storedTrade(now.AddDate(0, 0, -1))
	future := storedTrade(now.AddDate(0, 0, 5))
	settled := storedTrade(now.AddDate(0, 0, -1))
	settled.IsFinancialSettled = true
	cancelled := storedTrade(now.AddDate(0, 0, -1))
	ts := now
	cancelled.CancelledOnUTC = &ts
	parked := storedTrade(now.AddDate(0, 0, -1))
	parked.RequiresReview = true
	parked.ReviewReason = "insufficient balance"

	for _, tr := range []*trade.Trade{due, future, settled, cancelled, parked} {
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := store.DueFinancial(ctx, now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("selected %d trades, want 1", len(got))
	}
	if got[0].ID != due.ID {
		t.Errorf("selected %s, want %s", got[0].ID, due.ID)
	}
}

func TestTradeStoreInsertAdjustment(t *testing.T) {
	store, cleanup := setupTradeStore(t)
	defer cleanup()

	a := &trade.FinancialAdjustment{
		ID:           uuid.New(),
		Date:         time.Now().UTC().Truncate(time.Microsecond),
		Side:         -1,
		Amount:       decimal.RequireFromString("150.25"),
		Note:         "bank fee correction",
		CreatedOnUTC: time.Now().UTC(),
	}
	if err := store.InsertAdjustment(context.Background(), a); err != nil {
		t.Fatalf("insert adjustment: %v", err)
	}
}
