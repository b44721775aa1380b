package vm

import (
	"errors"

	"github.com/daniellehrner/ethexec/types"
)

var errGasUintOverflow = errors.New("gas uint64 overflow")

// memoryGasCost returns the incremental gas cost of growing memory from
// its current size to newMemSize bytes. The quadratic term makes very
// large memories prohibitively expensive; sizes past 0x1FFFFFFFE0 would
// overflow the cost computation and are rejected outright.
func memoryGasCost(mem *Memory, newMemSize uint64) (uint64, error) {
	if newMemSize == 0 {
		return 0, nil
	}
	if newMemSize > 0x1FFFFFFFE0 {
		return 0, errGasUintOverflow
	}
	newWords := (newMemSize + 31) / 32
	newCost := newWords*MemoryGas + newWords*newWords/QuadCoeffDiv

	if uint64(mem.Len()) >= newMemSize {
		return 0, nil
	}
	oldWords := (uint64(mem.Len()) + 31) / 32
	oldCost := oldWords*MemoryGas + oldWords*oldWords/QuadCoeffDiv
	return newCost - oldCost, nil
}

func gasMemExpansion(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	return memoryGasCost(mem, memorySize)
}

// gasKeccak256 charges memory expansion plus a per-word hashing fee over
// the region being hashed.
func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	size := stack.Back(1)
	if !size.FitsUint64() {
		return 0, errGasUintOverflow
	}
	words := (size.Uint64() + 31) / 32
	return gas + words*Keccak256WordGas, nil
}

// makeGasCopy builds the dynamic gas function for the *COPY family: the
// copied length sits lengthPos items below the top of the stack.
func makeGasCopy(lengthPos int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		gas, err := memoryGasCost(mem, memorySize)
		if err != nil {
			return 0, err
		}
		size := stack.Back(lengthPos)
		if !size.FitsUint64() {
			return 0, errGasUintOverflow
		}
		words := (size.Uint64() + 31) / 32
		return gas + words*CopyGas, nil
	}
}

func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	expByteLen := uint64(stack.Back(1).ByteLen())
	return expByteLen * ExpByteGas, nil
}

// gasSload implements EIP-2929 SLOAD pricing: 2100 for the first access
// to a slot within a transaction, 100 thereafter.
func gasSload(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	slot := types.Hash(stack.Back(0).Bytes32())
	if evm.StateDB.WarmSlot(contract.Address, slot) {
		return ColdSloadCost, nil
	}
	return WarmStorageReadCost, nil
}

// gasSstore implements the combined EIP-2200/2929/3529 SSTORE schedule.
// The cost depends on the triple (original, current, new) for the slot;
// refunds for clearing storage are tracked on the state's refund counter
// and capped by the executor at transaction end.
func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	// EIP-2200 sentry: refuse to run with at most the call stipend left,
	// so a 2300-gas stipend can never write storage.
	if contract.Gas <= CallStipend {
		return 0, errors.New("not enough gas for reentrancy sentry")
	}

	var (
		slot    = types.Hash(stack.Back(0).Bytes32())
		value   = types.Hash(stack.Back(1).Bytes32())
		current = evm.StateDB.GetStorage(contract.Address, slot)
		cost    = uint64(0)
	)
	if evm.StateDB.WarmSlot(contract.Address, slot) {
		cost = ColdSloadCost
	}
	if current == value {
		return cost + WarmStorageReadCost, nil
	}

	original := evm.StateDB.GetOriginalStorage(contract.Address, slot)
	if original == current {
		if original == (types.Hash{}) {
			return cost + SstoreSetGas, nil
		}
		if value == (types.Hash{}) {
			evm.StateDB.AddRefund(SstoreClearRefund)
		}
		return cost + SstoreResetGas - ColdSloadCost, nil
	}

	// Dirty slot: already modified earlier in this transaction.
	if original != (types.Hash{}) {
		if current == (types.Hash{}) {
			evm.StateDB.SubRefund(SstoreClearRefund)
		} else if value == (types.Hash{}) {
			evm.StateDB.AddRefund(SstoreClearRefund)
		}
	}
	if original == value {
		if original == (types.Hash{}) {
			evm.StateDB.AddRefund(SstoreSetGas - WarmStorageReadCost)
		} else {
			evm.StateDB.AddRefund(SstoreResetGas - ColdSloadCost - WarmStorageReadCost)
		}
	}
	return cost + WarmStorageReadCost, nil
}

// gasAccountAccess is the EIP-2929 dynamic cost for BALANCE, EXTCODESIZE
// and EXTCODEHASH: the address operand is on top of the stack.
func gasAccountAccess(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := intToAddress(stack.Back(0))
	if evm.StateDB.WarmAddress(addr) {
		return ColdAccountAccessCost, nil
	}
	return WarmStorageReadCost, nil
}

func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	size := stack.Back(3)
	if !size.FitsUint64() {
		return 0, errGasUintOverflow
	}
	gas += (size.Uint64() + 31) / 32 * CopyGas

	addr := intToAddress(stack.Back(0))
	if evm.StateDB.WarmAddress(addr) {
		gas += ColdAccountAccessCost
	} else {
		gas += WarmStorageReadCost
	}
	return gas, nil
}

// callGas applies the EIP-150 63/64 rule: the child receives at most
// availableGas - availableGas/64, or the requested amount if smaller.
// availableGas is the caller's remaining gas after the call's own base
// cost has been accounted for.
func callGas(availableGas, base uint64, requested *types.Hash) uint64 {
	availableGas -= base
	gas := availableGas - availableGas/CallGasFraction
	// A requested amount wider than 64 bits always exceeds the cap.
	for _, b := range requested[:24] {
		if b != 0 {
			return gas
		}
	}
	req := uint64(0)
	for _, b := range requested[24:] {
		req = req<<8 | uint64(b)
	}
	if req < gas {
		return req
	}
	return gas
}

func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		gas            uint64
		addr           = intToAddress(stack.Back(1))
		transfersValue = !stack.Back(2).IsZero()
	)
	if evm.StateDB.WarmAddress(addr) {
		gas += ColdAccountAccessCost - WarmStorageReadCost
	}
	if transfersValue {
		gas += CallValueTransferGas
		// EIP-158: the new-account surcharge applies only when value is
		// actually being moved into a non-existent or empty account.
		if !evm.StateDB.AccountExists(addr) || evm.StateDB.AccountIsEmpty(addr) {
			gas += CallNewAccountGas
		}
	}
	memGas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	gas += memGas

	if contract.Gas < gas {
		return 0, ErrOutOfGas
	}
	requested := types.Hash(stack.Back(0).Bytes32())
	evm.callGasTemp = callGas(contract.Gas, gas, &requested)
	return gas + evm.callGasTemp, nil
}

func gasCallCode(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		gas  uint64
		addr = intToAddress(stack.Back(1))
	)
	if evm.StateDB.WarmAddress(addr) {
		gas += ColdAccountAccessCost - WarmStorageReadCost
	}
	if !stack.Back(2).IsZero() {
		gas += CallValueTransferGas
	}
	memGas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	gas += memGas

	if contract.Gas < gas {
		return 0, ErrOutOfGas
	}
	requested := types.Hash(stack.Back(0).Bytes32())
	evm.callGasTemp = callGas(contract.Gas, gas, &requested)
	return gas + evm.callGasTemp, nil
}

// gasThinCall covers DELEGATECALL and STATICCALL, which never transfer
// value: cold-access surcharge plus memory plus the forwarded gas.
func gasThinCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var (
		gas  uint64
		addr = intToAddress(stack.Back(1))
	)
	if evm.StateDB.WarmAddress(addr) {
		gas += ColdAccountAccessCost - WarmStorageReadCost
	}
	memGas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	gas += memGas

	if contract.Gas < gas {
		return 0, ErrOutOfGas
	}
	requested := types.Hash(stack.Back(0).Bytes32())
	evm.callGasTemp = callGas(contract.Gas, gas, &requested)
	return gas + evm.callGasTemp, nil
}

// gasCreate charges memory expansion plus, post-Shanghai, the EIP-3860
// per-word fee over the init code.
func gasCreate(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	if evm.forkRules.IsShanghai {
		size := stack.Back(2)
		if !size.FitsUint64() {
			return 0, errGasUintOverflow
		}
		gas += (size.Uint64() + 31) / 32 * InitCodeWordGas
	}
	return gas, nil
}

// gasCreate2 additionally charges the hashing fee for the address
// derivation keccak over the init code.
func gasCreate2(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas, err := memoryGasCost(mem, memorySize)
	if err != nil {
		return 0, err
	}
	size := stack.Back(2)
	if !size.FitsUint64() {
		return 0, errGasUintOverflow
	}
	words := (size.Uint64() + 31) / 32
	gas += words * Keccak256WordGas
	if evm.forkRules.IsShanghai {
		gas += words * InitCodeWordGas
	}
	return gas, nil
}

func makeGasLog(topics uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		gas, err := memoryGasCost(mem, memorySize)
		if err != nil {
			return 0, err
		}
		size := stack.Back(1)
		if !size.FitsUint64() {
			return 0, errGasUintOverflow
		}
		return gas + topics*LogTopicGas + size.Uint64()*LogDataGas, nil
	}
}

func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	beneficiary := intToAddress(stack.Back(0))
	if evm.StateDB.WarmAddress(beneficiary) {
		gas += ColdAccountAccessCost
	}
	if (!evm.StateDB.AccountExists(beneficiary) || evm.StateDB.AccountIsEmpty(beneficiary)) &&
		!evm.StateDB.GetBalance(contract.Address).IsZero() {
		gas += CallNewAccountGas
	}
	return gas, nil
}
