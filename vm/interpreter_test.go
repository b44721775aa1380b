package vm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/daniellehrner/ethexec/state"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

func newTestEVM(t *testing.T) (*EVM, *state.MemoryState) {
	t.Helper()
	st := state.NewMemoryState()
	blockCtx := BlockContext{
		BlockNumber: uint256.NewFromUint64(1),
		Time:        1000,
		GasLimit:    30_000_000,
		BaseFee:     uint256.NewFromUint64(7),
		BlobBaseFee: uint256.One(),
	}
	txCtx := TxContext{GasPrice: uint256.NewFromUint64(10)}
	rules := ForkRules{
		IsCancun: true, IsShanghai: true, IsMerge: true,
		IsLondon: true, IsBerlin: true, IsIstanbul: true,
		IsByzantium: true, IsHomestead: true, IsEIP158: true,
	}
	return NewEVM(blockCtx, txCtx, Config{ChainID: 1}, st, rules), st
}

func runCode(t *testing.T, code []byte, gas uint64) ([]byte, uint64, error) {
	t.Helper()
	evm, st := newTestEVM(t)
	addr := types.HexToAddress("0x00000000000000000000000000000000000c0de")
	st.CreateContract(addr)
	st.SetCode(addr, code)

	contract := NewContract(types.Address{}, addr, uint256.Zero(), gas)
	contract.Code = code
	contract.CodeHash = st.GetCodeHash(addr)
	ret, err := evm.Run(contract, nil)
	return ret, gas - contract.Gas, err
}

func TestRunStopOnly(t *testing.T) {
	ret, gasUsed, err := runCode(t, []byte{0x00}, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ret != nil {
		t.Fatalf("STOP returned data: %x", ret)
	}
	if gasUsed != 0 {
		t.Fatalf("STOP consumed %d gas, want 0", gasUsed)
	}
}

func TestRunPushAddGas(t *testing.T) {
	// PUSH1 10, PUSH1 20, ADD, STOP
	code := []byte{0x60, 0x0a, 0x60, 0x14, 0x01, 0x00}
	_, gasUsed, err := runCode(t, code, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gasUsed != 9 {
		t.Fatalf("gas used = %d, want 9 (3+3+3)", gasUsed)
	}
}

func TestRunAddResult(t *testing.T) {
	// PUSH1 10, PUSH1 20, ADD, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0, RETURN
	code := []byte{
		0x60, 0x0a, 0x60, 0x14, 0x01,
		0x60, 0x00, 0x52,
		0x60, 0x20, 0x60, 0x00, 0xf3,
	}
	ret, _, err := runCode(t, code, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := make([]byte, 32)
	want[31] = 30
	if !bytes.Equal(ret, want) {
		t.Fatalf("return = %x, want %x", ret, want)
	}
}

func TestRunOutOfGas(t *testing.T) {
	code := []byte{0x60, 0x0a, 0x60, 0x14, 0x01, 0x00}
	_, _, err := runCode(t, code, 5)
	if !errors.Is(err, ErrOutOfGas) {
		t.Fatalf("err = %v, want out of gas", err)
	}
}

func TestRunStackUnderflow(t *testing.T) {
	_, _, err := runCode(t, []byte{0x01}, 100_000) // bare ADD
	if !errors.Is(err, ErrStackUnderflow) {
		t.Fatalf("err = %v, want stack underflow", err)
	}
}

func TestRunInvalidOpcode(t *testing.T) {
	for _, code := range [][]byte{{0xfe}, {0x0c}} {
		_, _, err := runCode(t, code, 100_000)
		if !errors.Is(err, ErrInvalidOpCode) {
			t.Fatalf("code %x: err = %v, want invalid opcode", code, err)
		}
	}
}

func TestJumpToJumpdest(t *testing.T) {
	// PUSH1 4, JUMP, INVALID, JUMPDEST, STOP
	code := []byte{0x60, 0x04, 0x56, 0xfe, 0x5b, 0x00}
	_, _, err := runCode(t, code, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJumpIntoPushImmediate(t *testing.T) {
	// PUSH1 4, JUMP, PUSH1 0x5b, STOP: offset 4 holds a 0x5b byte, but it
	// is PUSH immediate data, not an instruction.
	code := []byte{0x60, 0x04, 0x56, 0x60, 0x5b, 0x00}
	_, _, err := runCode(t, code, 100_000)
	if !errors.Is(err, ErrInvalidJump) {
		t.Fatalf("err = %v, want invalid jump", err)
	}
}

func TestPushTruncatedAtCodeEnd(t *testing.T) {
	evm, _ := newTestEVM(t)
	// PUSH32 with a single trailing byte: the value is the byte followed
	// by zeros in big-endian interpretation.
	contract := NewContract(types.Address{}, types.Address{}, uint256.Zero(), 100)
	contract.Code = []byte{0x7f, 0xaa}
	stack := NewStack()
	pc := uint64(0)
	if _, err := makePush(32)(&pc, evm, contract, NewMemory(), stack); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if pc != 32 {
		t.Fatalf("pc advanced to %d, want 32", pc)
	}
	want := uint256.FromBytesBE(append([]byte{0xaa}, make([]byte, 31)...))
	if !stack.Peek().Eq(want) {
		t.Fatalf("pushed %s, want %s", stack.Peek(), want)
	}
}

func TestStaticCallWriteProtection(t *testing.T) {
	evm, st := newTestEVM(t)
	callee := types.HexToAddress("0x0000000000000000000000000000000000000aaa")
	st.CreateContract(callee)
	// PUSH1 1, PUSH1 0, SSTORE
	st.SetCode(callee, []byte{0x60, 0x01, 0x60, 0x00, 0x55})

	_, gasLeft, err := evm.StaticCall(types.Address{}, callee, nil, 100_000)
	if !errors.Is(err, ErrWriteProtection) {
		t.Fatalf("err = %v, want write protection", err)
	}
	if gasLeft != 0 {
		t.Fatalf("write-protection fault left %d gas, want 0", gasLeft)
	}
}

func TestStaticContextPropagates(t *testing.T) {
	evm, st := newTestEVM(t)
	inner := types.HexToAddress("0x0000000000000000000000000000000000000aaa")
	outer := types.HexToAddress("0x0000000000000000000000000000000000000bbb")
	st.CreateContract(inner)
	st.SetCode(inner, []byte{0x60, 0x01, 0x60, 0x00, 0x55}) // SSTORE
	st.CreateContract(outer)
	// CALL inner with no value: PUSH1 0 x5 (ret/args), PUSH20 addr, GAS, CALL, STOP
	code := []byte{0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x73}
	code = append(code, inner[:]...)
	code = append(code, 0x5a, 0xf1, 0x00)
	st.SetCode(outer, code)

	// A plain CALL from a static frame must still refuse the write.
	ret, _, err := evm.StaticCall(types.Address{}, outer, nil, 200_000)
	if err != nil {
		t.Fatalf("outer call failed: %v (ret %x)", err, ret)
	}
	if got := st.GetStorage(inner, types.Hash{}); got != (types.Hash{}) {
		t.Fatalf("storage written through static context: %x", got)
	}
}

func TestCallValueTransfer(t *testing.T) {
	evm, st := newTestEVM(t)
	sender := types.HexToAddress("0x0000000000000000000000000000000000000001a")
	dest := types.HexToAddress("0x0000000000000000000000000000000000000002b")
	st.CreateContract(sender)
	st.SetBalance(sender, uint256.NewFromUint64(1000))

	_, _, err := evm.Call(sender, dest, nil, 100_000, uint256.NewFromUint64(400))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := st.GetBalance(dest); !got.Eq(uint256.NewFromUint64(400)) {
		t.Fatalf("dest balance = %s, want 400", got)
	}
	if got := st.GetBalance(sender); !got.Eq(uint256.NewFromUint64(600)) {
		t.Fatalf("sender balance = %s, want 600", got)
	}
}

func TestCallInsufficientBalance(t *testing.T) {
	evm, st := newTestEVM(t)
	sender := types.HexToAddress("0x0000000000000000000000000000000000000001a")
	dest := types.HexToAddress("0x0000000000000000000000000000000000000002b")
	st.CreateContract(sender)

	_, gasLeft, err := evm.Call(sender, dest, nil, 100_000, uint256.NewFromUint64(1))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want insufficient balance", err)
	}
	if gasLeft != 100_000 {
		t.Fatalf("failed call consumed gas: left %d", gasLeft)
	}
}

func TestCreateDeploysRuntimeCode(t *testing.T) {
	evm, st := newTestEVM(t)
	caller := types.HexToAddress("0x000000000000000000000000000000000000dead")
	st.CreateContract(caller)
	st.SetNonce(caller, 0) // a fresh externally-owned account
	st.SetBalance(caller, uint256.NewFromUint64(1_000_000))

	// PUSH1 5, PUSH1 0, RETURN: deploys 5 zero bytes read from untouched
	// memory.
	initCode := []byte{0x60, 0x05, 0x60, 0x00, 0xf3}
	ret, addr, _, err := evm.Create(caller, initCode, 200_000, uint256.Zero())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !bytes.Equal(ret, make([]byte, 5)) {
		t.Fatalf("runtime code = %x, want 5 zero bytes", ret)
	}
	if !bytes.Equal(st.GetCode(addr), make([]byte, 5)) {
		t.Fatalf("deployed code = %x", st.GetCode(addr))
	}
	if st.GetNonce(addr) != 1 {
		t.Fatalf("new contract nonce = %d, want 1", st.GetNonce(addr))
	}
	if st.GetNonce(caller) != 1 {
		t.Fatalf("caller nonce = %d, want 1", st.GetNonce(caller))
	}
	if addr != createAddress(caller, 0) {
		t.Fatalf("create address mismatch: %s", addr)
	}
}

func TestTopLevelCreateGetsFullGas(t *testing.T) {
	evm, st := newTestEVM(t)
	caller := types.HexToAddress("0x000000000000000000000000000000000000dead")
	st.CreateContract(caller)

	// PUSH1 5, PUSH1 0, RETURN costs 3+3+3 (one word of memory) plus a
	// 5*200 code deposit: 1009 gas exactly. A transaction-level create
	// runs the init code with the full budget, with no 63/64 hold-back,
	// so this succeeds with nothing to spare.
	initCode := []byte{0x60, 0x05, 0x60, 0x00, 0xf3}
	_, addr, gasLeft, err := evm.Create(caller, initCode, 1009, uint256.Zero())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if gasLeft != 0 {
		t.Fatalf("gas left = %d, want 0", gasLeft)
	}
	if len(st.GetCode(addr)) != 5 {
		t.Fatalf("deployed code = %x", st.GetCode(addr))
	}
}

func TestEcrecoverMalformedInputSucceedsEmpty(t *testing.T) {
	evm, _ := newTestEVM(t)
	ecrecover := types.BytesToAddress([]byte{1})

	// All-zero input has an invalid recovery id; the precompile call
	// still succeeds, with empty output and only its fixed fee charged.
	ret, gasLeft, err := evm.StaticCall(types.Address{}, ecrecover, make([]byte, 128), 10_000)
	if err != nil {
		t.Fatalf("malformed ecrecover input errored: %v", err)
	}
	if len(ret) != 0 {
		t.Fatalf("output = %x, want empty", ret)
	}
	if gasLeft != 10_000-3000 {
		t.Fatalf("gas left = %d, want %d", gasLeft, 10_000-3000)
	}

	// A nonzero byte inside the v quantity's upper bytes is equally
	// malformed, even with a plausible final byte.
	input := make([]byte, 128)
	input[62] = 1
	input[63] = 27
	ret, _, err = evm.StaticCall(types.Address{}, ecrecover, input, 10_000)
	if err != nil || len(ret) != 0 {
		t.Fatalf("ret = %x, err = %v, want empty success", ret, err)
	}
}

func TestCreateAddressDerivation(t *testing.T) {
	// keccak256(rlp([sender, nonce]))[12:] for a well-known vector:
	// sender 0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0, nonce 0 yields
	// 0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d (the original "cow"
	// test account's first deployment).
	sender := types.HexToAddress("0x6ac7ea33f8831ea9dcc53393aaa88b25a785dbf0")
	got := createAddress(sender, 0)
	want := types.HexToAddress("0xcd234a471b72ba2f1ccf0a70fcaba648a5eecd8d")
	if got != want {
		t.Fatalf("createAddress = %s, want %s", got, want)
	}
}

func TestRevertReturnsDataAndFails(t *testing.T) {
	// PUSH1 42, PUSH1 0, MSTORE, PUSH1 32, PUSH1 0, REVERT
	code := []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xfd}
	ret, _, err := runCode(t, code, 100_000)
	if !errors.Is(err, ErrExecutionReverted) {
		t.Fatalf("err = %v, want reverted", err)
	}
	want := make([]byte, 32)
	want[31] = 42
	if !bytes.Equal(ret, want) {
		t.Fatalf("revert data = %x, want %x", ret, want)
	}
}

func TestCallRevertPushesZero(t *testing.T) {
	evm, st := newTestEVM(t)
	reverter := types.HexToAddress("0x0000000000000000000000000000000000000aaa")
	outer := types.HexToAddress("0x0000000000000000000000000000000000000bbb")
	st.CreateContract(reverter)
	st.SetCode(reverter, []byte{0x60, 0x00, 0x60, 0x00, 0xfd}) // REVERT(0,0)
	st.CreateContract(outer)
	// CALL reverter, then return the status word.
	code := []byte{0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x60, 0x00, 0x73}
	code = append(code, reverter[:]...)
	code = append(code, 0x5a, 0xf1) // GAS, CALL
	code = append(code, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3)
	st.SetCode(outer, code)

	ret, _, err := evm.Call(types.Address{}, outer, nil, 200_000, uint256.Zero())
	if err != nil {
		t.Fatalf("outer call failed: %v", err)
	}
	if !bytes.Equal(ret, make([]byte, 32)) {
		t.Fatalf("status word = %x, want 0", ret)
	}
}

func TestTransientStorageRoundTrip(t *testing.T) {
	// PUSH1 7, PUSH1 1, TSTORE, PUSH1 1, TLOAD, PUSH1 0, MSTORE,
	// PUSH1 32, PUSH1 0, RETURN
	code := []byte{
		0x60, 0x07, 0x60, 0x01, 0x5d,
		0x60, 0x01, 0x5c,
		0x60, 0x00, 0x52,
		0x60, 0x20, 0x60, 0x00, 0xf3,
	}
	ret, _, err := runCode(t, code, 100_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := make([]byte, 32)
	want[31] = 7
	if !bytes.Equal(ret, want) {
		t.Fatalf("TLOAD returned %x, want %x", ret, want)
	}
}

func TestSelfdestructSendsBalance(t *testing.T) {
	evm, st := newTestEVM(t)
	victim := types.HexToAddress("0x0000000000000000000000000000000000000aaa")
	heir := types.HexToAddress("0x0000000000000000000000000000000000000bbb")
	st.CreateContract(victim)
	st.SetBalance(victim, uint256.NewFromUint64(500))
	// PUSH20 heir, SELFDESTRUCT
	code := append([]byte{0x73}, heir[:]...)
	code = append(code, 0xff)
	st.SetCode(victim, code)

	_, _, err := evm.Call(types.Address{}, victim, nil, 100_000, uint256.Zero())
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := st.GetBalance(heir); !got.Eq(uint256.NewFromUint64(500)) {
		t.Fatalf("heir balance = %s, want 500", got)
	}
	if !st.HasSelfDestructed(victim) {
		t.Fatal("victim not marked self-destructed")
	}
}
