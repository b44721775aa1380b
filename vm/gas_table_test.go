package vm

import (
	"testing"

	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

func TestMemoryGasCostQuadratic(t *testing.T) {
	mem := NewMemory()
	tests := []struct {
		size uint64
		want uint64
	}{
		{0, 0},
		{32, 3},        // 1 word: 3*1 + 1/512
		{64, 6},        // 2 words
		{1024, 98},     // 32 words: 96 + 1024/512
		{32 * 1024, 5120}, // 1024 words: 3072 + 2048
	}
	for _, tt := range tests {
		got, err := memoryGasCost(mem, tt.size)
		if err != nil {
			t.Fatalf("size %d: %v", tt.size, err)
		}
		if got != tt.want {
			t.Errorf("memoryGasCost(%d) = %d, want %d", tt.size, got, tt.want)
		}
	}
}

func TestMemoryGasCostIncremental(t *testing.T) {
	mem := NewMemory()
	first, _ := memoryGasCost(mem, 64)
	mem.Resize(64)
	second, _ := memoryGasCost(mem, 128)
	total, _ := memoryGasCost(NewMemory(), 128)
	if first+second != total {
		t.Fatalf("incremental expansion %d+%d != direct %d", first, second, total)
	}
	// No charge for staying within the current size.
	if cost, _ := memoryGasCost(mem, 32); cost != 0 {
		t.Fatalf("shrinking access charged %d", cost)
	}
}

func TestMemoryGasCostOverflow(t *testing.T) {
	if _, err := memoryGasCost(NewMemory(), 0x20000000000); err == nil {
		t.Fatal("huge memory size must error")
	}
}

func TestGasSloadColdWarm(t *testing.T) {
	evm, _ := newTestEVM(t)
	contract := NewContract(types.Address{}, types.HexToAddress("0xc0de"), uint256.Zero(), 1_000_000)
	stack := NewStack()
	stack.Push(uint256.NewFromUint64(5)) // slot

	cold, err := gasSload(evm, contract, stack, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cold != ColdSloadCost {
		t.Fatalf("cold SLOAD = %d, want %d", cold, ColdSloadCost)
	}
	warm, _ := gasSload(evm, contract, stack, nil, 0)
	if warm != WarmStorageReadCost {
		t.Fatalf("warm SLOAD = %d, want %d", warm, WarmStorageReadCost)
	}
}

func TestGasSstoreSchedule(t *testing.T) {
	addr := types.HexToAddress("0xc0de")
	slot := types.Hash{31: 1}
	one := types.Hash{31: 1}
	two := types.Hash{31: 2}

	setup := func(t *testing.T, original types.Hash) (*EVM, *Contract, func(key, val uint64) uint64) {
		evm, st := newTestEVM(t)
		st.CreateContract(addr)
		if original != (types.Hash{}) {
			st.SetStorage(addr, slot, original)
		}
		st.BeginTransaction()
		contract := NewContract(types.Address{}, addr, uint256.Zero(), 1_000_000)
		charge := func(key, val uint64) uint64 {
			stack := NewStack()
			stack.Push(uint256.NewFromUint64(val))
			stack.Push(uint256.NewFromUint64(key))
			cost, err := gasSstore(evm, contract, stack, nil, 0)
			if err != nil {
				t.Fatal(err)
			}
			return cost
		}
		return evm, contract, charge
	}

	t.Run("set from zero, cold", func(t *testing.T) {
		_, _, charge := setup(t, types.Hash{})
		if got := charge(1, 2); got != ColdSloadCost+SstoreSetGas {
			t.Fatalf("cost = %d, want %d", got, ColdSloadCost+SstoreSetGas)
		}
	})

	t.Run("reset existing, cold", func(t *testing.T) {
		_, _, charge := setup(t, one)
		want := ColdSloadCost + (SstoreResetGas - ColdSloadCost)
		if got := charge(1, 2); got != want {
			t.Fatalf("cost = %d, want %d", got, want)
		}
	})

	t.Run("no-op write, warm", func(t *testing.T) {
		evm, _, charge := setup(t, one)
		evm.StateDB.WarmSlot(addr, slot)
		if got := charge(1, 1); got != WarmStorageReadCost {
			t.Fatalf("cost = %d, want %d", got, WarmStorageReadCost)
		}
	})

	t.Run("clear grants refund", func(t *testing.T) {
		evm, _, charge := setup(t, two)
		evm.StateDB.WarmSlot(addr, slot)
		charge(1, 0)
		if refund := evm.StateDB.GetRefund(); refund != SstoreClearRefund {
			t.Fatalf("refund = %d, want %d", refund, SstoreClearRefund)
		}
	})

	t.Run("sentry rejects stipend gas", func(t *testing.T) {
		evm, _, _ := setup(t, types.Hash{})
		contract := NewContract(types.Address{}, addr, uint256.Zero(), CallStipend)
		stack := NewStack()
		stack.Push(uint256.Zero())
		stack.Push(uint256.Zero())
		if _, err := gasSstore(evm, contract, stack, nil, 0); err == nil {
			t.Fatal("SSTORE with stipend-level gas must fail")
		}
	})
}

func TestCallGas63of64(t *testing.T) {
	all := types.Hash{}
	for i := range all {
		all[i] = 0xff
	}
	// Requesting more than available caps at 63/64 of what remains.
	if got := callGas(6400, 0, &all); got != 6400-6400/64 {
		t.Fatalf("capped call gas = %d, want %d", got, 6400-6400/64)
	}
	// A small explicit request is honored exactly.
	small := types.Hash{31: 100}
	if got := callGas(6400, 0, &small); got != 100 {
		t.Fatalf("requested call gas = %d, want 100", got)
	}
	// The base cost is deducted before the 63/64 split.
	if got := callGas(6400, 400, &all); got != 6000-6000/64 {
		t.Fatalf("call gas after base = %d, want %d", got, 6000-6000/64)
	}
}

func TestGasExpPerByte(t *testing.T) {
	evm, _ := newTestEVM(t)
	stack := NewStack()
	stack.Push(uint256.NewFromUint64(0x1_0000)) // 3-byte exponent
	stack.Push(uint256.NewFromUint64(2))        // base on top
	got, err := gasExp(evm, nil, stack, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3*ExpByteGas {
		t.Fatalf("EXP dynamic gas = %d, want %d", got, 3*ExpByteGas)
	}
}
