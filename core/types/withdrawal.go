package types

import (
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/types"
)

// Withdrawal is one EIP-4895 validator withdrawal: the amount is
// denominated in gwei and credited to the address without gas or
// execution.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        types.Address
	Amount         uint64
}

func (w *Withdrawal) encodeRLP() []byte {
	var payload []byte
	payload = appendUint64(payload, w.Index)
	payload = appendUint64(payload, w.ValidatorIndex)
	payload = appendBytes(payload, w.Address[:])
	payload = appendUint64(payload, w.Amount)
	return rlp.WrapList(payload)
}
