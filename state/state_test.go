package state

import (
	"testing"

	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestBalanceAddSubAndInsufficientFunds(t *testing.T) {
	s := NewMemoryState()
	a := addr(1)

	s.AddBalance(a, uint256.NewFromUint64(100))
	if got := s.GetBalance(a).Uint64(); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	if ok := s.SubBalance(a, uint256.NewFromUint64(40)); !ok {
		t.Fatal("expected successful SubBalance")
	}
	if got := s.GetBalance(a).Uint64(); got != 60 {
		t.Fatalf("balance = %d, want 60", got)
	}
	if ok := s.SubBalance(a, uint256.NewFromUint64(1000)); ok {
		t.Fatal("expected SubBalance to fail on insufficient funds")
	}
	if got := s.GetBalance(a).Uint64(); got != 60 {
		t.Fatalf("balance should be unchanged after failed SubBalance, got %d", got)
	}
}

func TestSnapshotRevert(t *testing.T) {
	s := NewMemoryState()
	a := addr(1)
	s.SetNonce(a, 1)

	id := s.Snapshot()
	s.SetNonce(a, 2)
	s.SetBalance(a, uint256.NewFromUint64(500))
	if s.GetNonce(a) != 2 {
		t.Fatal("expected nonce 2 before revert")
	}

	s.RevertToSnapshot(id)
	if s.GetNonce(a) != 1 {
		t.Fatalf("nonce after revert = %d, want 1", s.GetNonce(a))
	}
	if !s.GetBalance(a).IsZero() {
		t.Fatal("balance after revert should be zero")
	}
}

func TestStorageAndOriginalStorage(t *testing.T) {
	s := NewMemoryState()
	a := addr(1)
	slot := types.HexToHash("01")
	val1 := types.HexToHash("0a")
	val2 := types.HexToHash("0b")

	s.SetStorage(a, slot, val1)
	if got := s.GetStorage(a, slot); got != val1 {
		t.Fatalf("storage = %s, want %s", got.Hex(), val1.Hex())
	}
	// Original storage is unset until a transaction boundary flushes it.
	if got := s.GetOriginalStorage(a, slot); got != (types.Hash{}) {
		t.Fatalf("original storage = %s, want zero", got.Hex())
	}

	s.BeginTransaction()
	if got := s.GetOriginalStorage(a, slot); got != val1 {
		t.Fatalf("original storage after BeginTransaction = %s, want %s", got.Hex(), val1.Hex())
	}

	s.SetStorage(a, slot, val2)
	if got := s.GetOriginalStorage(a, slot); got != val1 {
		t.Fatalf("original storage should stay %s mid-transaction, got %s", val1.Hex(), got.Hex())
	}
	if got := s.GetStorage(a, slot); got != val2 {
		t.Fatalf("current storage = %s, want %s", got.Hex(), val2.Hex())
	}
}

func TestWarmColdAccessList(t *testing.T) {
	s := NewMemoryState()
	a := addr(1)
	slot := types.HexToHash("01")

	if s.IsAddressWarm(a) {
		t.Fatal("address should start cold")
	}
	if wasCold := s.WarmAddress(a); !wasCold {
		t.Fatal("expected first WarmAddress to report cold")
	}
	if !s.IsAddressWarm(a) {
		t.Fatal("address should be warm after WarmAddress")
	}
	if wasCold := s.WarmAddress(a); wasCold {
		t.Fatal("expected second WarmAddress to report warm")
	}

	if wasCold := s.WarmSlot(a, slot); !wasCold {
		t.Fatal("expected first WarmSlot to report cold")
	}
	if !s.IsSlotWarm(a, slot) {
		t.Fatal("slot should be warm after WarmSlot")
	}
}

func TestSelfDestructZeroesBalance(t *testing.T) {
	s := NewMemoryState()
	a := addr(1)
	s.AddBalance(a, uint256.NewFromUint64(1000))
	s.SelfDestruct(a)
	if !s.HasSelfDestructed(a) {
		t.Fatal("expected self-destructed flag set")
	}
	if !s.GetBalance(a).IsZero() {
		t.Fatal("balance should be zero after self-destruct")
	}
}

func TestEmptyStateRoot(t *testing.T) {
	s := NewMemoryState()
	root, err := s.StateRoot()
	if err != nil {
		t.Fatal(err)
	}
	if root != types.EmptyRootHash {
		t.Fatalf("empty state root = %s, want %s", root.Hex(), types.EmptyRootHash.Hex())
	}
}

func TestStateRootDeterministicAndChanges(t *testing.T) {
	build := func() *MemoryState {
		s := NewMemoryState()
		s.SetNonce(addr(1), 1)
		s.AddBalance(addr(1), uint256.NewFromUint64(1000))
		s.SetNonce(addr(2), 1)
		return s
	}
	r1, err := build().StateRoot()
	if err != nil {
		t.Fatal(err)
	}
	r2, err := build().StateRoot()
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 {
		t.Fatalf("state root not deterministic: %s vs %s", r1.Hex(), r2.Hex())
	}

	s := build()
	s.AddBalance(addr(1), uint256.NewFromUint64(1))
	r3, err := s.StateRoot()
	if err != nil {
		t.Fatal(err)
	}
	if r3 == r1 {
		t.Fatal("state root should change when balance changes")
	}
}

func TestEmptyAccountExcludedFromRoot(t *testing.T) {
	a := addr(1)

	s1 := NewMemoryState()
	s1.CreateContract(a) // nonce 1, non-empty
	s1.SetNonce(a, 0)     // back to empty
	root1, err := s1.StateRoot()
	if err != nil {
		t.Fatal(err)
	}

	s2 := NewMemoryState()
	root2, err := s2.StateRoot()
	if err != nil {
		t.Fatal(err)
	}
	if root1 != root2 {
		t.Fatalf("empty account should be excluded from root: %s vs %s", root1.Hex(), root2.Hex())
	}
}

func TestRefundCounter(t *testing.T) {
	s := NewMemoryState()
	s.AddRefund(100)
	s.AddRefund(50)
	if s.GetRefund() != 150 {
		t.Fatalf("refund = %d, want 150", s.GetRefund())
	}
	s.SubRefund(30)
	if s.GetRefund() != 120 {
		t.Fatalf("refund = %d, want 120", s.GetRefund())
	}
}

func TestBeginTransactionClearsWarmSetsAndRefund(t *testing.T) {
	s := NewMemoryState()
	a := addr(1)
	s.WarmAddress(a)
	s.AddRefund(100)
	s.SetTransientStorage(a, types.HexToHash("01"), types.HexToHash("02"))

	s.BeginTransaction()

	if s.IsAddressWarm(a) {
		t.Fatal("warm set should be cleared by BeginTransaction")
	}
	if s.GetRefund() != 0 {
		t.Fatal("refund counter should be cleared by BeginTransaction")
	}
	if got := s.GetTransientStorage(a, types.HexToHash("01")); got != (types.Hash{}) {
		t.Fatal("transient storage should be cleared by BeginTransaction")
	}
}
