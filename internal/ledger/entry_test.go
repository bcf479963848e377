package ledger_test

import (
	"testing"

	"BullionLedger/internal/ledger"
)

func TestMoneyKey(t *testing.T) {
	key := ledger.MoneyKey(ledger.DimensionEffective)
	if string(key) != "balance:effective" {
		t.Errorf("got %q, want %q", key, "balance:effective")
	}
	if !key.IsMoney() {
		t.Error("money key should report IsMoney")
	}
}

func TestPositionKey(t *testing.T) {
	key := ledger.PositionKey("vault-zurich", "XAU-1OZ", ledger.PositionPhysical)
	if string(key) != "position:vault-zurich:XAU-1OZ:physical" {
		t.Errorf("got %q", key)
	}
	if key.IsMoney() {
		t.Error("position key should not report IsMoney")
	}
}

// Money ledgers share one contention domain: a writer on the effective
// balance serializes with a writer on the actual balance. Inventory
// keys contend only with themselves.
func TestLockKeyContentionDomains(t *testing.T) {
	effective := ledger.MoneyKey(ledger.DimensionEffective).LockKey()
	actual := ledger.MoneyKey(ledger.DimensionActual).LockKey()
	if effective != actual {
		t.Errorf("money lock keys differ: %q vs %q", effective, actual)
	}

	a := ledger.PositionKey("vault-a", "XAU-1OZ", ledger.PositionPhysical).LockKey()
	b := ledger.PositionKey("vault-b", "XAU-1OZ", ledger.PositionPhysical).LockKey()
	if a == b {
		t.Error("distinct position keys must not share a lock key")
	}
	if a == effective {
		t.Error("position keys must not share the money lock domain")
	}
}

func TestSideValid(t *testing.T) {
	if !ledger.SideCredit.Valid() || !ledger.SideDebit.Valid() {
		t.Error("credit and debit are valid sides")
	}
	if ledger.Side(0).Valid() || ledger.Side(2).Valid() {
		t.Error("only +1 and -1 are valid sides")
	}
}

func TestSignedAmount(t *testing.T) {
	e := &ledger.Entry{Side: ledger.SideDebit, Magnitude: dec("25")}
	if !e.SignedAmount().Equal(dec("-25")) {
		t.Errorf("debit signed amount = %s, want -25", e.SignedAmount())
	}
	e.Side = ledger.SideCredit
	if !e.SignedAmount().Equal(dec("25")) {
		t.Errorf("credit signed amount = %s, want 25", e.SignedAmount())
	}
}
