package vm

import (
	"sync"

	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

// Contract is the execution context for a single call frame: the code
// being run, its caller and address, remaining gas, and the call's input
// and value.
type Contract struct {
	CallerAddress types.Address
	Address       types.Address

	Code     []byte
	CodeHash types.Hash
	Input    []byte

	Gas   uint64
	Value *uint256.Int
}

func NewContract(caller, addr types.Address, value *uint256.Int, gas uint64) *Contract {
	if value == nil {
		value = uint256.Zero()
	}
	return &Contract{
		CallerAddress: caller,
		Address:       addr,
		Value:         value,
		Gas:           gas,
	}
}

// GetOp returns the opcode at position n, or STOP if n is past the end of
// the code (implicit STOP at end of contract).
func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

// UseGas deducts amount from the contract's remaining gas, reporting
// false (leaving gas unchanged) if that would go negative.
func (c *Contract) UseGas(amount uint64) bool {
	if c.Gas < amount {
		return false
	}
	c.Gas -= amount
	return true
}

// validJumpdest reports whether dest is both in bounds and a JUMPDEST
// opcode that isn't inside the immediate data of a PUSH.
func (c *Contract) validJumpdest(dest uint64) bool {
	if dest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[dest]) != JUMPDEST {
		return false
	}
	return jumpdestBitmap(c.CodeHash, c.Code).isSet(dest)
}

// jumpdestCache memoizes JUMPDEST validity analysis per code hash, since
// the same deployed code is typically executed many times across a block
// and re-scanning it on every JUMP/JUMPI would be wasted work.
var jumpdestCache = struct {
	sync.Mutex
	m map[types.Hash]*bitvec
}{m: make(map[types.Hash]*bitvec)}

func jumpdestBitmap(codeHash types.Hash, code []byte) *bitvec {
	// Init code in CREATE frames carries no code hash; analyze it fresh
	// rather than letting every init code share one cache slot.
	if codeHash == (types.Hash{}) {
		return analyzeJumpdests(code)
	}
	jumpdestCache.Lock()
	defer jumpdestCache.Unlock()
	if bv, ok := jumpdestCache.m[codeHash]; ok {
		return bv
	}
	bv := analyzeJumpdests(code)
	jumpdestCache.m[codeHash] = bv
	return bv
}

// bitvec is a one-bit-per-code-position bitmap marking valid JUMPDEST
// targets.
type bitvec []byte

func newBitvec(n int) *bitvec {
	bv := make(bitvec, (n+7)/8)
	return &bv
}

func (bv *bitvec) set(pos uint64) {
	(*bv)[pos/8] |= 1 << (pos % 8)
}

func (bv *bitvec) isSet(pos uint64) bool {
	if pos/8 >= uint64(len(*bv)) {
		return false
	}
	return (*bv)[pos/8]&(1<<(pos%8)) != 0
}

// analyzeJumpdests walks code once, marking every JUMPDEST byte that is
// not itself inside a PUSH instruction's immediate data.
func analyzeJumpdests(code []byte) *bitvec {
	bv := newBitvec(len(code))
	for pc := 0; pc < len(code); {
		op := OpCode(code[pc])
		if op == JUMPDEST {
			bv.set(uint64(pc))
			pc++
			continue
		}
		if op.IsPush() {
			pc += 1 + op.PushSize()
			continue
		}
		pc++
	}
	return bv
}
