package executor

import (
	coretypes "github.com/daniellehrner/ethexec/core/types"
	"github.com/daniellehrner/ethexec/vm"
)

// Intrinsic gas constants (Yellow Paper appendix G and amending EIPs).
const (
	TxGas                 = 21000
	TxGasContractCreation = 53000
	TxDataZeroGas         = 4
	TxDataNonZeroGas      = 16 // EIP-2028
	TxAccessListAddress   = 2400
	TxAccessListStorage   = 1900
	TxAuthTupleGas        = 25000 // EIP-7702 PER_EMPTY_ACCOUNT_COST
	TxAuthExistingRefund  = 12500 // refunded when the authority already exists
)

// IntrinsicGas computes the gas charged before the first opcode runs:
// the base fee for the transaction shape, per-byte calldata cost, the
// declared access list, EIP-3860 init-code words for creations, and
// EIP-7702 authorization tuples.
func IntrinsicGas(data []byte, accessList coretypes.AccessList, authCount int, isCreate bool, rules vm.ForkRules) (uint64, error) {
	var gas uint64 = TxGas
	if isCreate {
		gas = TxGasContractCreation
	}

	if len(data) > 0 {
		var nonZero uint64
		for _, b := range data {
			if b != 0 {
				nonZero++
			}
		}
		zero := uint64(len(data)) - nonZero

		// Overflow-safe: calldata is bounded in practice, but the gas
		// limit is attacker-controlled input.
		nonZeroGas := nonZero * TxDataNonZeroGas
		if nonZeroGas/TxDataNonZeroGas != nonZero {
			return 0, ErrIntrinsicGas
		}
		gas += nonZeroGas
		gas += zero * TxDataZeroGas

		if isCreate && rules.IsShanghai {
			words := (uint64(len(data)) + 31) / 32
			gas += words * vm.InitCodeWordGas
		}
	}

	for _, tuple := range accessList {
		gas += TxAccessListAddress
		gas += uint64(len(tuple.StorageKeys)) * TxAccessListStorage
	}

	gas += uint64(authCount) * TxAuthTupleGas

	return gas, nil
}
