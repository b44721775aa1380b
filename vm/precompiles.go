package vm

import (
	"math/big"

	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/types"
)

// PrecompiledContract is a contract implemented in Go rather than EVM
// bytecode, invoked via CALL/STATICCALL/DELEGATECALL to one of the
// reserved low addresses.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// ecrecoverPrecompile implements the ECRECOVER precompile at address
// 0x01: given a message hash, recovery id and signature, it recovers and
// returns the signing address. Malformed input is not an error: the
// call succeeds with empty output, and only the contract's own checks
// on the return data size can tell the difference.
type ecrecoverPrecompile struct{}

const ecrecoverGas uint64 = 3000

func (ecrecoverPrecompile) RequiredGas([]byte) uint64 { return ecrecoverGas }

func (ecrecoverPrecompile) Run(input []byte) ([]byte, error) {
	const inputLen = 128
	padded := make([]byte, inputLen)
	copy(padded, input)

	hash := padded[0:32]
	v := padded[63]
	r := padded[64:96]
	s := padded[96:128]

	// v is a 32-byte quantity that must be exactly 27 or 28.
	if !allZero(padded[32:63]) || (v != 27 && v != 28) {
		return nil, nil
	}
	sig := make([]byte, 65)
	copy(sig[0:32], r)
	copy(sig[32:64], s)
	sig[64] = v - 27

	if !crypto.ValidateSignatureValues(sig[64], new(big.Int).SetBytes(r), new(big.Int).SetBytes(s), false) {
		return nil, nil
	}

	pub, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, nil
	}
	addr := crypto.PubkeyToAddress(pub)
	out := make([]byte, 32)
	copy(out[12:], addr[:])
	return out, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

var precompiledContractsFrontier = map[types.Address]PrecompiledContract{
	types.BytesToAddress([]byte{1}): ecrecoverPrecompile{},
}

// PrecompiledContractsCancun is the active precompile set from Frontier
// through Prague: only ECRECOVER is implemented, matching the supported
// opcode and precompile surface of this interpreter.
var PrecompiledContractsCancun = precompiledContractsFrontier

// SelectPrecompiles returns the precompile set active for the given fork
// rules.
func SelectPrecompiles(rules ForkRules) map[types.Address]PrecompiledContract {
	return precompiledContractsFrontier
}
