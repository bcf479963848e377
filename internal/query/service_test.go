package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"BullionLedger/internal/ledger"
	"BullionLedger/internal/lock"
	"BullionLedger/internal/query"
)

func seed(t *testing.T) (*query.Service, *ledger.Service) {
	t.Helper()
	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store, lock.NewManager(), time.Second, zerolog.Nop(), nil)
	return query.NewService(store), svc
}

func post(t *testing.T, svc *ledger.Service, key ledger.Key, kind ledger.Kind, side ledger.Side, mag, ref string) {
	t.Helper()
	_, err := svc.Append(context.Background(), ledger.AppendRequest{
		Key:       key,
		Kind:      kind,
		Side:      side,
		Magnitude: decimal.RequireFromString(mag),
		SourceRef: ref,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestCurrentBalanceBothViews(t *testing.T) {
	q, svc := seed(t)
	ctx := context.Background()

	// Empty ledgers read as zero.
	bal, err := q.CurrentBalance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Available.IsZero() || !bal.Actual.IsZero() {
		t.Errorf("empty balances = %s/%s, want 0/0", bal.Available, bal.Actual)
	}

	post(t, svc, ledger.MoneyKey(ledger.DimensionEffective), ledger.KindFinancialTransaction, ledger.SideCredit, "500", "")
	post(t, svc, ledger.MoneyKey(ledger.DimensionActual), ledger.KindFinancialTransaction, ledger.SideCredit, "200", "")

	bal, err = q.CurrentBalance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Available.Equal(decimal.RequireFromString("500")) {
		t.Errorf("available = %s, want 500", bal.Available)
	}
	if !bal.Actual.Equal(decimal.RequireFromString("200")) {
		t.Errorf("actual = %s, want 200", bal.Actual)
	}
}

func TestPositionsExcludeMoneyKeys(t *testing.T) {
	q, svc := seed(t)

	post(t, svc, ledger.MoneyKey(ledger.DimensionEffective), ledger.KindFinancialTransaction, ledger.SideCredit, "500", "")
	post(t, svc, ledger.PositionKey("vault-a", "XAU-1OZ", ledger.PositionPhysical), ledger.KindPositionEntry, ledger.SideCredit, "12", "")
	post(t, svc, ledger.PositionKey("vault-b", "XAG-100OZ", ledger.PositionForward), ledger.KindPositionEntry, ledger.SideCredit, "3", "")

	positions, err := q.Positions(context.Background())
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2 (money keys excluded)", len(positions))
	}

	byKey := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		byKey[p.LedgerKey] = p.Quantity
	}
	if qty := byKey["position:vault-a:XAU-1OZ:physical"]; !qty.Equal(decimal.RequireFromString("12")) {
		t.Errorf("vault-a quantity = %s, want 12", qty)
	}
	if qty := byKey["position:vault-b:XAG-100OZ:forward"]; !qty.Equal(decimal.RequireFromString("3")) {
		t.Errorf("vault-b quantity = %s, want 3", qty)
	}
}

func TestTradeActivityAcrossLedgers(t *testing.T) {
	q, svc := seed(t)
	tradeID := uuid.New()

	post(t, svc, ledger.MoneyKey(ledger.DimensionEffective), ledger.KindFinancialTransaction, ledger.SideCredit, "1000", tradeID.String())
	post(t, svc, ledger.MoneyKey(ledger.DimensionActual), ledger.KindFinancialTransaction, ledger.SideCredit, "1000", tradeID.String())
	post(t, svc, ledger.PositionKey("vault-a", "XAU-1OZ", ledger.PositionPhysical), ledger.KindPositionEntry, ledger.SideCredit, "1", tradeID.String())
	// Noise from another trade.
	post(t, svc, ledger.MoneyKey(ledger.DimensionEffective), ledger.KindFinancialTransaction, ledger.SideCredit, "42", uuid.New().String())

	activity, err := q.TradeActivity(context.Background(), tradeID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(activity) != 3 {
		t.Fatalf("got %d entries, want 3", len(activity))
	}
	for _, v := range activity {
		if v.SourceRef != tradeID.String() {
			t.Errorf("entry %s has source ref %s", v.ID, v.SourceRef)
		}
	}
}
