package vm

import (
	"errors"
	"fmt"

	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/state"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

var (
	ErrOutOfGas                = errors.New("out of gas")
	ErrStackOverflow           = errors.New("stack overflow")
	ErrStackUnderflow          = errors.New("stack underflow")
	ErrInvalidJump             = errors.New("invalid jump destination")
	ErrWriteProtection         = errors.New("write protection")
	ErrExecutionReverted       = errors.New("execution reverted")
	ErrMaxCallDepthExceeded    = errors.New("max call depth exceeded")
	ErrInvalidOpCode           = errors.New("invalid opcode")
	ErrReturnDataOutOfBounds   = errors.New("return data out of bounds")
	ErrMaxInitCodeSizeExceeded = errors.New("max initcode size exceeded")
	ErrInsufficientBalance     = errors.New("insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrMaxCodeSizeExceeded     = errors.New("max code size exceeded")
)

// GetHashFunc resolves a recent block number to its hash, for BLOCKHASH.
type GetHashFunc func(uint64) types.Hash

// BlockContext carries the block-level information the EVM exposes to
// running contracts (COINBASE, NUMBER, BASEFEE, and so on).
type BlockContext struct {
	GetHash     GetHashFunc
	BlockNumber *uint256.Int
	Time        uint64
	Coinbase    types.Address
	GasLimit    uint64
	BaseFee     *uint256.Int
	PrevRandao  types.Hash
	BlobBaseFee *uint256.Int
}

// TxContext carries the transaction-level information the EVM exposes to
// running contracts (ORIGIN, GASPRICE, blob hashes for BLOBHASH).
type TxContext struct {
	Origin     types.Address
	GasPrice   *uint256.Int
	BlobHashes []types.Hash
}

// Config holds EVM execution options.
type Config struct {
	MaxCallDepth int
	ChainID      uint64
}

// ForkRules mirrors the subset of chain-configuration fork activation
// flags the interpreter needs to select a jump table and gas schedule.
type ForkRules struct {
	IsPrague    bool
	IsCancun    bool
	IsShanghai  bool
	IsMerge     bool
	IsLondon    bool
	IsBerlin    bool
	IsIstanbul  bool
	IsByzantium bool
	IsHomestead bool
	IsEIP158    bool // EIP-158: empty-account cleanup, Spurious Dragon
}

// EVM is one instance of the Ethereum Virtual Machine, scoped to a single
// block. A new call frame's Contract is executed by Run; Call/Create
// wire up value transfer, account creation and snapshot/revert around it.
type EVM struct {
	Context   BlockContext
	TxContext TxContext
	Config    Config
	StateDB   state.Access

	depth       int
	readOnly    bool
	jumpTable   JumpTable
	precompiles map[types.Address]PrecompiledContract
	returnData  []byte
	forkRules   ForkRules
	pools       *execPools
	callGasTemp uint64
}

func NewEVM(blockCtx BlockContext, txCtx TxContext, config Config, stateDB state.Access, rules ForkRules) *EVM {
	if config.MaxCallDepth == 0 {
		config.MaxCallDepth = 1024
	}
	evm := &EVM{
		Context:   blockCtx,
		TxContext: txCtx,
		Config:    config,
		StateDB:   stateDB,
		forkRules: rules,
		pools:     newExecPools(),
	}
	evm.jumpTable = SelectJumpTable(rules)
	evm.precompiles = SelectPrecompiles(rules)
	return evm
}

// ResetScratch rewinds the pooled memory arena. Callers must only do
// this between blocks, when no call frame is live.
func (evm *EVM) ResetScratch() {
	evm.pools.resetArena()
}

func (evm *EVM) precompile(addr types.Address) (PrecompiledContract, bool) {
	p, ok := evm.precompiles[addr]
	return p, ok
}

func runPrecompile(p PrecompiledContract, input []byte, gas uint64) ([]byte, uint64, error) {
	cost := p.RequiredGas(input)
	if gas < cost {
		return nil, 0, ErrOutOfGas
	}
	out, err := p.Run(input)
	return out, gas - cost, err
}

// Run executes contract.Code via the interpreter loop, charging constant
// then dynamic gas for each opcode before resizing memory and executing
// the operation, matching the go-ethereum charging order.
func (evm *EVM) Run(contract *Contract, input []byte) ([]byte, error) {
	contract.Input = input

	// Stack and memory come from the depth-indexed pools: borrow and
	// return are balanced because frames unwind strictly LIFO.
	var pc uint64
	stack, mem := evm.pools.borrow(evm.depth)
	defer evm.pools.release(evm.depth)

	for {
		op := contract.GetOp(pc)
		operation := evm.jumpTable[op]
		if operation == nil || operation.execute == nil {
			return nil, ErrInvalidOpCode
		}

		sLen := stack.Len()
		if sLen < operation.minStack {
			return nil, ErrStackUnderflow
		}
		if sLen > operation.maxStack {
			return nil, ErrStackOverflow
		}
		if evm.readOnly && operation.writes {
			return nil, ErrWriteProtection
		}

		if operation.constantGas > 0 {
			if !contract.UseGas(operation.constantGas) {
				return nil, ErrOutOfGas
			}
		}

		var memorySize uint64
		if operation.memorySize != nil {
			size, overflow := operation.memorySize(stack)
			if overflow {
				return nil, ErrOutOfGas
			}
			if size > 0 {
				memorySize = (size + 31) / 32 * 32
			}
		}

		if operation.dynamicGas != nil {
			cost, err := operation.dynamicGas(evm, contract, stack, mem, memorySize)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOutOfGas, err)
			}
			if !contract.UseGas(cost) {
				return nil, ErrOutOfGas
			}
		}

		if memorySize > 0 && uint64(mem.Len()) < memorySize {
			mem.Resize(memorySize)
		}

		ret, err := operation.execute(&pc, evm, contract, mem, stack)
		if err != nil {
			if errors.Is(err, ErrExecutionReverted) {
				return ret, err
			}
			return nil, err
		}

		if operation.halts {
			return ret, nil
		}
		if operation.jumps {
			continue
		}
		pc++
	}
}

// resolveCode returns the code to execute for addr, following an
// EIP-7702 delegation designator (0xef0100 || target) a single hop.
func (evm *EVM) resolveCode(addr types.Address) ([]byte, types.Hash) {
	code := evm.StateDB.GetCode(addr)
	if evm.forkRules.IsPrague && len(code) == 23 && code[0] == 0xef && code[1] == 0x01 && code[2] == 0x00 {
		target := types.BytesToAddress(code[3:])
		evm.StateDB.WarmAddress(target)
		return evm.StateDB.GetCode(target), evm.StateDB.GetCodeHash(target)
	}
	return code, evm.StateDB.GetCodeHash(addr)
}

// Call executes a message call to addr with the given input, gas and
// value, wrapping it in a state snapshot that is rolled back on failure.
func (evm *EVM) Call(caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth >= evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}

	transfersValue := value != nil && !value.IsZero()
	if transfersValue {
		if evm.readOnly {
			return nil, gas, ErrWriteProtection
		}
		if evm.StateDB.GetBalance(caller).Lt(value) {
			return nil, gas, ErrInsufficientBalance
		}
	}

	snapshot := evm.StateDB.Snapshot()

	p, isPrecompile := evm.precompile(addr)

	if !evm.StateDB.AccountExists(addr) {
		if !isPrecompile && evm.forkRules.IsEIP158 && !transfersValue {
			return nil, gas, nil
		}
		evm.StateDB.CreateContract(addr)
		evm.StateDB.SetNonce(addr, 0)
	}

	if transfersValue {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	if isPrecompile {
		ret, gasLeft, err := runPrecompile(p, input, gas)
		if err != nil {
			// A hard precompile error behaves like any other frame
			// fault: state rolls back and the forwarded gas is gone.
			evm.StateDB.RevertToSnapshot(snapshot)
			if !errors.Is(err, ErrExecutionReverted) {
				gasLeft = 0
			}
		}
		return ret, gasLeft, err
	}

	code, codeHash := evm.resolveCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, addr, value, gas)
	contract.Code = code
	contract.CodeHash = codeHash

	evm.depth++
	ret, err := evm.Run(contract, input)
	evm.depth--

	gasLeft := contract.Gas
	if err != nil && !errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
		gasLeft = 0
	} else if errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
	}
	evm.returnData = ret
	return ret, gasLeft, err
}

// CallCode runs the callee's code in the caller's storage and address
// context (CALLCODE).
func (evm *EVM) CallCode(caller, addr types.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth >= evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if p, ok := evm.precompile(addr); ok {
		snapshot := evm.StateDB.Snapshot()
		ret, gasLeft, err := runPrecompile(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
			if !errors.Is(err, ErrExecutionReverted) {
				gasLeft = 0
			}
		}
		return ret, gasLeft, err
	}

	snapshot := evm.StateDB.Snapshot()
	code, codeHash := evm.resolveCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, caller, value, gas)
	contract.Code = code
	contract.CodeHash = codeHash

	evm.depth++
	ret, err := evm.Run(contract, input)
	evm.depth--

	gasLeft := contract.Gas
	if err != nil && !errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
		gasLeft = 0
	} else if errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
	}
	evm.returnData = ret
	return ret, gasLeft, err
}

// DelegateCall runs the callee's code while preserving the current
// caller and call value (DELEGATECALL).
func (evm *EVM) DelegateCall(caller, self, addr types.Address, input []byte, gas uint64, value *uint256.Int) ([]byte, uint64, error) {
	if evm.depth >= evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}
	if p, ok := evm.precompile(addr); ok {
		snapshot := evm.StateDB.Snapshot()
		ret, gasLeft, err := runPrecompile(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
			if !errors.Is(err, ErrExecutionReverted) {
				gasLeft = 0
			}
		}
		return ret, gasLeft, err
	}

	snapshot := evm.StateDB.Snapshot()
	code, codeHash := evm.resolveCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, self, value, gas)
	contract.Code = code
	contract.CodeHash = codeHash

	evm.depth++
	ret, err := evm.Run(contract, input)
	evm.depth--

	gasLeft := contract.Gas
	if err != nil && !errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
		gasLeft = 0
	} else if errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
	}
	evm.returnData = ret
	return ret, gasLeft, err
}

// StaticCall runs a read-only call: any attempt to write state aborts
// execution with ErrWriteProtection (STATICCALL).
func (evm *EVM) StaticCall(caller, addr types.Address, input []byte, gas uint64) ([]byte, uint64, error) {
	if evm.depth >= evm.Config.MaxCallDepth {
		return nil, gas, ErrMaxCallDepthExceeded
	}

	prevReadOnly := evm.readOnly
	evm.readOnly = true
	defer func() { evm.readOnly = prevReadOnly }()

	snapshot := evm.StateDB.Snapshot()

	if p, ok := evm.precompile(addr); ok {
		ret, gasLeft, err := runPrecompile(p, input, gas)
		if err != nil {
			evm.StateDB.RevertToSnapshot(snapshot)
			if !errors.Is(err, ErrExecutionReverted) {
				gasLeft = 0
			}
		}
		return ret, gasLeft, err
	}

	code, codeHash := evm.resolveCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, addr, uint256.Zero(), gas)
	contract.Code = code
	contract.CodeHash = codeHash

	evm.depth++
	ret, err := evm.Run(contract, input)
	evm.depth--

	gasLeft := contract.Gas
	if err != nil && !errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
		gasLeft = 0
	} else if errors.Is(err, ErrExecutionReverted) {
		evm.StateDB.RevertToSnapshot(snapshot)
	}
	evm.returnData = ret
	return ret, gasLeft, err
}

// createAddress computes the CREATE contract address: the low 20 bytes
// of keccak256(rlp([sender, nonce])).
func createAddress(caller types.Address, nonce uint64) types.Address {
	payload := struct {
		Sender types.Address
		Nonce  uint64
	}{caller, nonce}
	encoded, err := rlp.EncodeToBytes(payload)
	if err != nil {
		panic(err)
	}
	hash := crypto.Keccak256(encoded)
	return types.BytesToAddress(hash[12:])
}

// create2Address computes the CREATE2 contract address per EIP-1014:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initCode))[12:].
func create2Address(caller types.Address, salt *uint256.Int, initCodeHash []byte) types.Address {
	saltBytes := salt.Bytes32()
	data := make([]byte, 0, 1+20+32+32)
	data = append(data, 0xff)
	data = append(data, caller[:]...)
	data = append(data, saltBytes[:]...)
	data = append(data, initCodeHash...)
	hash := crypto.Keccak256(data)
	return types.BytesToAddress(hash[12:])
}

// Create deploys new contract code via CREATE, bumping the caller's
// nonce before the address is derived.
func (evm *EVM) Create(caller types.Address, code []byte, gas uint64, value *uint256.Int) ([]byte, types.Address, uint64, error) {
	nonce := evm.StateDB.GetNonce(caller)
	evm.StateDB.SetNonce(caller, nonce+1)
	addr := createAddress(caller, nonce)
	return evm.create(caller, code, gas, value, addr)
}

// Create2 deploys new contract code via CREATE2, whose address depends
// on a caller-supplied salt rather than the caller's nonce.
func (evm *EVM) Create2(caller types.Address, code []byte, gas uint64, value, salt *uint256.Int) ([]byte, types.Address, uint64, error) {
	initCodeHash := crypto.Keccak256(code)
	addr := create2Address(caller, salt, initCodeHash)
	return evm.create(caller, code, gas, value, addr)
}

func (evm *EVM) create(caller types.Address, code []byte, gas uint64, value *uint256.Int, contractAddr types.Address) ([]byte, types.Address, uint64, error) {
	if evm.depth >= evm.Config.MaxCallDepth {
		return nil, types.Address{}, gas, ErrMaxCallDepthExceeded
	}
	if evm.readOnly {
		return nil, types.Address{}, gas, ErrWriteProtection
	}
	if len(code) > MaxInitCodeSizeForFork(evm.forkRules) {
		return nil, types.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}

	existingHash := evm.StateDB.GetCodeHash(contractAddr)
	if evm.StateDB.GetNonce(contractAddr) != 0 ||
		(existingHash != (types.Hash{}) && existingHash != types.EmptyCodeHash) {
		return nil, types.Address{}, 0, ErrContractAddressCollision
	}

	transfersValue := value != nil && !value.IsZero()
	if transfersValue && evm.StateDB.GetBalance(caller).Lt(value) {
		return nil, types.Address{}, gas, ErrInsufficientBalance
	}

	// EIP-2929: warm the address even if creation later fails.
	evm.StateDB.WarmAddress(contractAddr)

	snapshot := evm.StateDB.Snapshot()

	if !evm.StateDB.AccountExists(contractAddr) {
		evm.StateDB.CreateContract(contractAddr)
	}
	evm.StateDB.SetNonce(contractAddr, 1)

	if transfersValue {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(contractAddr, value)
	}

	// The full gas budget goes to the init code: the EIP-150 63/64
	// hold-back applies only on the CREATE/CREATE2 opcode path, where
	// opCreate/opCreate2 withhold the caller's share before calling in.
	// A top-level creation transaction runs with everything after the
	// intrinsic charge.
	contract := NewContract(caller, contractAddr, value, gas)
	contract.Code = code

	evm.depth++
	ret, err := evm.Run(contract, nil)
	evm.depth--

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if !errors.Is(err, ErrExecutionReverted) {
			return ret, types.Address{}, 0, err
		}
		return ret, types.Address{}, contract.Gas, err
	}

	gas = contract.Gas

	if len(ret) > 0 {
		if len(ret) > MaxCodeSizeForFork(evm.forkRules) {
			evm.StateDB.RevertToSnapshot(snapshot)
			return nil, types.Address{}, 0, ErrMaxCodeSizeExceeded
		}
		depositCost := uint64(len(ret)) * CreateDataGas
		if gas < depositCost {
			evm.StateDB.RevertToSnapshot(snapshot)
			return nil, types.Address{}, 0, ErrOutOfGas
		}
		gas -= depositCost
		evm.StateDB.SetCode(contractAddr, ret)
	}

	return ret, contractAddr, gas, nil
}
