package state

import (
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

// DumpAccount is one flattened account record, the shape the t8n result
// channel exports.
type DumpAccount struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
	Storage map[types.Hash]types.Hash
}

// Dump flattens the world state to per-address records. Self-destructed
// and EIP-161-empty accounts are omitted, matching what the state trie
// would contain. Zero-valued storage slots are elided.
func (s *MemoryState) Dump() map[types.Address]DumpAccount {
	out := make(map[types.Address]DumpAccount, len(s.objects))
	for addr, obj := range s.objects {
		if obj.selfDestructed || obj.account.IsEmpty() {
			continue
		}
		acc := DumpAccount{
			Balance: obj.account.Balance.Clone(),
			Nonce:   obj.account.Nonce,
			Code:    obj.code,
		}
		storage := mergeStorage(obj)
		if len(storage) > 0 {
			acc.Storage = storage
		}
		out[addr] = acc
	}
	return out
}
