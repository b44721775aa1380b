package vm

import (
	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

type execFunc func(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error)

func isNegative(x *uint256.Int) bool {
	b := x.Bytes32()
	return b[0]&0x80 != 0
}

// --- Arithmetic ---

func opAdd(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Add(x, y)
	return nil, nil
}

func opSub(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Sub(x, y)
	return nil, nil
}

func opMul(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mul(x, y)
	return nil, nil
}

func opDiv(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Div(x, y)
	return nil, nil
}

func opSdiv(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SDiv(x, y)
	return nil, nil
}

func opMod(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.Mod(x, y)
	return nil, nil
}

func opSmod(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	y.SMod(x, y)
	return nil, nil
}

func opAddmod(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y, m := stack.Pop(), stack.Pop(), stack.Peek()
	m.AddMod(x, y, m)
	return nil, nil
}

func opMulmod(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y, m := stack.Pop(), stack.Pop(), stack.Peek()
	m.MulMod(x, y, m)
	return nil, nil
}

func opExp(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	base, exp := stack.Pop(), stack.Peek()
	exp.Exp(base, exp)
	return nil, nil
}

func opSignExtend(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	back, num := stack.Pop(), stack.Peek()
	num.SignExtend(back, num)
	return nil, nil
}

// --- Comparison and bitwise ---

func opLt(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	lt := x.Lt(y)
	setBool(y, lt)
	return nil, nil
}

func opGt(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	gt := x.Gt(y)
	setBool(y, gt)
	return nil, nil
}

func opSlt(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	setBool(y, signedLess(x, y))
	return nil, nil
}

func opSgt(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	setBool(y, signedLess(y, x))
	return nil, nil
}

func signedLess(x, y *uint256.Int) bool {
	xNeg, yNeg := isNegative(x), isNegative(y)
	if xNeg != yNeg {
		return xNeg
	}
	return x.Cmp(y) < 0
}

func opEq(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	setBool(y, x.Eq(y))
	return nil, nil
}

func opIszero(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	setBool(x, x.IsZero())
	return nil, nil
}

func setBool(z *uint256.Int, v bool) {
	if v {
		z.Set(uint256.One())
	} else {
		z.Set(uint256.Zero())
	}
}

func opAnd(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	bitwise(x, y, y, func(a, b uint64) uint64 { return a & b })
	return nil, nil
}

func opOr(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	bitwise(x, y, y, func(a, b uint64) uint64 { return a | b })
	return nil, nil
}

func opXor(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x, y := stack.Pop(), stack.Peek()
	bitwise(x, y, y, func(a, b uint64) uint64 { return a ^ b })
	return nil, nil
}

// bitwise applies op limb-by-limb over the big-endian byte form of x and
// y, since uint256.Int does not expose its limbs outside the package.
func bitwise(x, y, z *uint256.Int, op func(a, b uint64) uint64) {
	xb, yb := x.Bytes32(), y.Bytes32()
	var out [32]byte
	for i := 0; i < 4; i++ {
		lo, hi := i*8, i*8+8
		a := beToU64(xb[lo:hi])
		b := beToU64(yb[lo:hi])
		putU64BE(out[lo:hi], op(a, b))
	}
	z.Set(uint256.FromBytesBE(out[:]))
}

func beToU64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func putU64BE(dst []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func opNot(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	b := x.Bytes32()
	for i := range b {
		b[i] = ^b[i]
	}
	x.Set(uint256.FromBytesBE(b[:]))
	return nil, nil
}

func opByte(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	i, x := stack.Pop(), stack.Peek()
	x.Byte(i, x)
	return nil, nil
}

func opShl(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	shift, x := stack.Pop(), stack.Peek()
	x.Lsh(x, shiftAmount(shift))
	return nil, nil
}

func opShr(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	shift, x := stack.Pop(), stack.Peek()
	x.Rsh(x, shiftAmount(shift))
	return nil, nil
}

func opSar(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	shift, x := stack.Pop(), stack.Peek()
	x.Sar(x, shiftAmount(shift))
	return nil, nil
}

func shiftAmount(x *uint256.Int) uint {
	if !x.FitsUint64() || x.Uint64() > 256 {
		return 256
	}
	return uint(x.Uint64())
}

// --- Keccak256 ---

func opKeccak256(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	offset, size := stack.Pop(), stack.Peek()
	data := mem.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
	hash := crypto.Keccak256(data)
	size.Set(uint256.FromBytesBE(hash))
	return nil, nil
}

// --- Environment ---

func opAddress(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(addressToInt(contract.Address))
	return nil, nil
}

func addressToInt(a types.Address) *uint256.Int {
	return uint256.FromBytesBE(a[:])
}

func opBalance(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	addr := stack.Peek()
	a := intToAddress(addr)
	addr.Set(evm.StateDB.GetBalance(a))
	return nil, nil
}

func intToAddress(x *uint256.Int) types.Address {
	b := x.Bytes32()
	return types.BytesToAddress(b[12:])
}

func opOrigin(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(addressToInt(evm.TxContext.Origin))
	return nil, nil
}

func opCaller(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(addressToInt(contract.CallerAddress))
	return nil, nil
}

func opCallValue(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(contract.Value.Clone())
	return nil, nil
}

func opCallDataLoad(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	off := x.Uint64()
	var buf [32]byte
	if off < uint64(len(contract.Input)) {
		copy(buf[:], contract.Input[off:])
	}
	x.Set(uint256.FromBytesBE(buf[:]))
	return nil, nil
}

func opCallDataSize(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(uint64(len(contract.Input))))
	return nil, nil
}

func opCallDataCopy(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, size := stack.Pop(), stack.Pop(), stack.Pop()
	data := getDataSlice(contract.Input, dataOffset.Uint64(), size.Uint64())
	mem.Set(memOffset.Uint64(), size.Uint64(), data)
	return nil, nil
}

// getDataSlice returns size bytes starting at offset from src,
// zero-padding any portion past the end of src.
func getDataSlice(src []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	if offset < uint64(len(src)) {
		copy(out, src[offset:])
	}
	return out
}

func opCodeSize(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(uint64(len(contract.Code))))
	return nil, nil
}

func opCodeCopy(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	memOffset, codeOffset, size := stack.Pop(), stack.Pop(), stack.Pop()
	data := getDataSlice(contract.Code, codeOffset.Uint64(), size.Uint64())
	mem.Set(memOffset.Uint64(), size.Uint64(), data)
	return nil, nil
}

func opGasprice(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.TxContext.GasPrice.Clone())
	return nil, nil
}

func opExtCodeSize(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	a := intToAddress(x)
	x.Set(uint256.NewFromUint64(uint64(evm.StateDB.GetCodeSize(a))))
	return nil, nil
}

func opExtCodeCopy(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	addr, memOffset, codeOffset, size := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	a := intToAddress(addr)
	code := evm.StateDB.GetCode(a)
	data := getDataSlice(code, codeOffset.Uint64(), size.Uint64())
	mem.Set(memOffset.Uint64(), size.Uint64(), data)
	return nil, nil
}

func opReturnDataSize(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(uint64(len(evm.returnData))))
	return nil, nil
}

func opReturnDataCopy(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	memOffset, dataOffset, size := stack.Pop(), stack.Pop(), stack.Pop()
	off, sz := dataOffset.Uint64(), size.Uint64()
	if off+sz > uint64(len(evm.returnData)) || off+sz < off {
		return nil, ErrReturnDataOutOfBounds
	}
	mem.Set(memOffset.Uint64(), sz, evm.returnData[off:off+sz])
	return nil, nil
}

func opExtCodeHash(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	a := intToAddress(x)
	if !evm.StateDB.AccountExists(a) || evm.StateDB.AccountIsEmpty(a) {
		x.Set(uint256.Zero())
		return nil, nil
	}
	h := evm.StateDB.GetCodeHash(a)
	x.Set(uint256.FromBytesBE(h[:]))
	return nil, nil
}

// --- Block information ---

func opBlockhash(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	if evm.Context.GetHash == nil || !x.FitsUint64() {
		x.Set(uint256.Zero())
		return nil, nil
	}
	h := evm.Context.GetHash(x.Uint64())
	x.Set(uint256.FromBytesBE(h[:]))
	return nil, nil
}

func opCoinbase(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(addressToInt(evm.Context.Coinbase))
	return nil, nil
}

func opTimestamp(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(evm.Context.Time))
	return nil, nil
}

func opNumber(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.Context.BlockNumber.Clone())
	return nil, nil
}

func opDifficulty(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	// Post-Merge this opcode returns PrevRandao (EIP-4399); this
	// interpreter targets post-Merge forks only.
	stack.Push(uint256.FromBytesBE(evm.Context.PrevRandao[:]))
	return nil, nil
}

func opGasLimit(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(evm.Context.GasLimit))
	return nil, nil
}

func opChainID(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(evm.Config.ChainID))
	return nil, nil
}

func opSelfBalance(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.StateDB.GetBalance(contract.Address))
	return nil, nil
}

func opBaseFee(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.Context.BaseFee.Clone())
	return nil, nil
}

func opBlobHash(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	idx := stack.Peek()
	if !idx.FitsUint64() || idx.Uint64() >= uint64(len(evm.TxContext.BlobHashes)) {
		idx.Set(uint256.Zero())
		return nil, nil
	}
	h := evm.TxContext.BlobHashes[idx.Uint64()]
	idx.Set(uint256.FromBytesBE(h[:]))
	return nil, nil
}

func opBlobBaseFee(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(evm.Context.BlobBaseFee.Clone())
	return nil, nil
}

// --- Stack, memory, storage ---

func opPop(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	off := x.Uint64()
	x.Set(uint256.FromBytesBE(mem.GetPtr(int64(off), 32)))
	return nil, nil
}

func opMstore(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	off, val := stack.Pop(), stack.Pop()
	mem.Set32(off.Uint64(), val)
	return nil, nil
}

func opMstore8(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	off, val := stack.Pop(), stack.Pop()
	mem.store[off.Uint64()] = byte(val.Uint64())
	return nil, nil
}

func opMsize(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(uint64(mem.Len())))
	return nil, nil
}

func opMcopy(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	dst, src, size := stack.Pop(), stack.Pop(), stack.Pop()
	n := size.Uint64()
	if n == 0 {
		return nil, nil
	}
	copy(mem.GetPtr(int64(dst.Uint64()), int64(n)), mem.Get(int64(src.Uint64()), int64(n)))
	return nil, nil
}

func opSload(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	slot := types.Hash(x.Bytes32())
	val := evm.StateDB.GetStorage(contract.Address, slot)
	x.Set(uint256.FromBytesBE(val[:]))
	return nil, nil
}

func opSstore(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	key, val := stack.Pop(), stack.Pop()
	slot := types.Hash(key.Bytes32())
	value := types.Hash(val.Bytes32())
	evm.StateDB.SetStorage(contract.Address, slot, value)
	return nil, nil
}

func opTload(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	x := stack.Peek()
	slot := types.Hash(x.Bytes32())
	val := evm.StateDB.GetTransientStorage(contract.Address, slot)
	x.Set(uint256.FromBytesBE(val[:]))
	return nil, nil
}

func opTstore(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	key, val := stack.Pop(), stack.Pop()
	slot := types.Hash(key.Bytes32())
	value := types.Hash(val.Bytes32())
	evm.StateDB.SetTransientStorage(contract.Address, slot, value)
	return nil, nil
}

// --- Control flow ---

func opJump(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	dest := stack.Pop()
	if !dest.FitsUint64() || !contract.validJumpdest(dest.Uint64()) {
		return nil, ErrInvalidJump
	}
	*pc = dest.Uint64()
	return nil, nil
}

func opJumpi(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	dest, cond := stack.Pop(), stack.Pop()
	if cond.IsZero() {
		*pc++
		return nil, nil
	}
	if !dest.FitsUint64() || !contract.validJumpdest(dest.Uint64()) {
		return nil, ErrInvalidJump
	}
	*pc = dest.Uint64()
	return nil, nil
}

func opPc(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(*pc))
	return nil, nil
}

func opJumpdest(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opGas(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.NewFromUint64(contract.Gas))
	return nil, nil
}

func opStop(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	return nil, nil
}

func opReturn(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	off, size := stack.Pop(), stack.Pop()
	return mem.Get(int64(off.Uint64()), int64(size.Uint64())), nil
}

func opRevert(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	off, size := stack.Pop(), stack.Pop()
	return mem.Get(int64(off.Uint64()), int64(size.Uint64())), ErrExecutionReverted
}

func opInvalid(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	return nil, ErrInvalidOpCode
}

// --- Push, dup, swap, log ---

func makePush(size int) execFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
		start := *pc + 1
		var buf [32]byte
		end := start + uint64(size)
		codeLen := uint64(len(contract.Code))
		if start < codeLen {
			stop := end
			if stop > codeLen {
				stop = codeLen
			}
			copy(buf[32-size:], contract.Code[start:stop])
		}
		stack.Push(uint256.FromBytesBE(buf[:]))
		*pc += uint64(size)
		return nil, nil
	}
}

func opPush0(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	stack.Push(uint256.Zero())
	return nil, nil
}

func makeDup(n int) execFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
		stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) execFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
		stack.Swap(n)
		return nil, nil
	}
}

func makeLog(n int) execFunc {
	return func(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
		off, size := stack.Pop(), stack.Pop()
		topics := make([]types.Hash, n)
		for i := 0; i < n; i++ {
			t := stack.Pop()
			topics[i] = types.Hash(t.Bytes32())
		}
		data := mem.Get(int64(off.Uint64()), int64(size.Uint64()))
		evm.StateDB.AddLog(&types.Log{
			Address: contract.Address,
			Topics:  topics,
			Data:    data,
		})
		return nil, nil
	}
}

// --- Calls and contract creation ---

func opCreate(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	value, off, size := stack.Pop(), stack.Pop(), stack.Pop()
	code := mem.Get(int64(off.Uint64()), int64(size.Uint64()))
	// EIP-150: the caller keeps 1/64th of its remaining gas; only the
	// rest is forwarded to the init code.
	gas := contract.Gas - contract.Gas/CallGasFraction
	contract.UseGas(gas)
	ret, addr, gasLeft, err := evm.Create(contract.Address, code, gas, value)
	if err == ErrMaxInitCodeSizeExceeded {
		return nil, err
	}
	contract.Gas += gasLeft
	pushCreateResult(stack, addr, err)
	if err != nil && err != ErrExecutionReverted {
		evm.returnData = nil
	} else {
		evm.returnData = ret
	}
	return nil, nil
}

func opCreate2(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	value, off, size, salt := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	code := mem.Get(int64(off.Uint64()), int64(size.Uint64()))
	gas := contract.Gas - contract.Gas/CallGasFraction
	contract.UseGas(gas)
	ret, addr, gasLeft, err := evm.Create2(contract.Address, code, gas, value, salt)
	if err == ErrMaxInitCodeSizeExceeded {
		return nil, err
	}
	contract.Gas += gasLeft
	pushCreateResult(stack, addr, err)
	if err != nil && err != ErrExecutionReverted {
		evm.returnData = nil
	} else {
		evm.returnData = ret
	}
	return nil, nil
}

func pushCreateResult(stack *Stack, addr types.Address, err error) {
	if err != nil {
		stack.Push(uint256.Zero())
		return
	}
	stack.Push(addressToInt(addr))
}

func opCall(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	_, addr, value, inOff, inSize, outOff, outSize := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	a := intToAddress(addr)
	input := mem.Get(int64(inOff.Uint64()), int64(inSize.Uint64()))
	// The forwarded gas was computed (and already charged) by the dynamic
	// gas function; a value transfer grants the callee a free stipend.
	gas := evm.callGasTemp
	if !value.IsZero() {
		gas += CallStipend
	}
	ret, gasLeft, err := evm.Call(contract.Address, a, input, gas, value)
	contract.Gas += gasLeft
	writeCallResult(mem, stack, ret, err, outOff.Uint64(), outSize.Uint64())
	evm.returnData = ret
	return nil, nil
}

func opCallCode(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	_, addr, value, inOff, inSize, outOff, outSize := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	a := intToAddress(addr)
	input := mem.Get(int64(inOff.Uint64()), int64(inSize.Uint64()))
	gas := evm.callGasTemp
	if !value.IsZero() {
		gas += CallStipend
	}
	ret, gasLeft, err := evm.CallCode(contract.Address, a, input, gas, value)
	contract.Gas += gasLeft
	writeCallResult(mem, stack, ret, err, outOff.Uint64(), outSize.Uint64())
	evm.returnData = ret
	return nil, nil
}

func opDelegateCall(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	_, addr, inOff, inSize, outOff, outSize := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	a := intToAddress(addr)
	input := mem.Get(int64(inOff.Uint64()), int64(inSize.Uint64()))
	ret, gasLeft, err := evm.DelegateCall(contract.CallerAddress, contract.Address, a, input, evm.callGasTemp, contract.Value)
	contract.Gas += gasLeft
	writeCallResult(mem, stack, ret, err, outOff.Uint64(), outSize.Uint64())
	evm.returnData = ret
	return nil, nil
}

func opStaticCall(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	_, addr, inOff, inSize, outOff, outSize := stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop(), stack.Pop()
	a := intToAddress(addr)
	input := mem.Get(int64(inOff.Uint64()), int64(inSize.Uint64()))
	ret, gasLeft, err := evm.StaticCall(contract.Address, a, input, evm.callGasTemp)
	contract.Gas += gasLeft
	writeCallResult(mem, stack, ret, err, outOff.Uint64(), outSize.Uint64())
	evm.returnData = ret
	return nil, nil
}

func writeCallResult(mem *Memory, stack *Stack, ret []byte, err error, outOff, outSize uint64) {
	if err != nil {
		stack.Push(uint256.Zero())
	} else {
		stack.Push(uint256.One())
	}
	// Return data is visible to the caller on success and on REVERT, but
	// not after a hard failure.
	if (err == nil || err == ErrExecutionReverted) && outSize > 0 {
		n := outSize
		if uint64(len(ret)) < n {
			n = uint64(len(ret))
		}
		mem.Set(outOff, n, ret[:n])
	}
}

func opSelfdestruct(pc *uint64, evm *EVM, contract *Contract, mem *Memory, stack *Stack) ([]byte, error) {
	beneficiary := stack.Pop()
	a := intToAddress(beneficiary)
	balance := evm.StateDB.GetBalance(contract.Address)
	if !balance.IsZero() {
		evm.StateDB.AddBalance(a, balance)
	}
	evm.StateDB.SelfDestruct(contract.Address)
	return nil, nil
}
