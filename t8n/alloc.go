package t8n

import (
	"fmt"
	"sort"

	"github.com/daniellehrner/ethexec/state"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

// Account is one pre- or post-state account record as carried in
// alloc.json.
type Account struct {
	Balance     *HexBig           `json:"balance"`
	Nonce       *HexUint64        `json:"nonce,omitempty"`
	Code        HexBytes          `json:"code,omitempty"`
	StorageJSON map[string]string `json:"storage,omitempty"`
}

// Alloc maps 0x-addresses to account records.
type Alloc map[string]Account

// MakePreState seeds the world state from an allocation.
func MakePreState(st *state.MemoryState, alloc Alloc) error {
	for addrHex, acc := range alloc {
		addr := types.HexToAddress(addrHex)
		st.CreateContract(addr)
		if acc.Balance != nil {
			bal, overflow := uint256.FromBig(acc.Balance.Big())
			if overflow {
				return fmt.Errorf("account %s: balance overflows 256 bits", addrHex)
			}
			st.SetBalance(addr, bal)
		}
		// CreateContract starts the account at nonce 1; an entry without
		// a nonce field is an account at nonce 0.
		var nonce uint64
		if acc.Nonce != nil {
			nonce = uint64(*acc.Nonce)
		}
		st.SetNonce(addr, nonce)
		if len(acc.Code) > 0 {
			st.SetCode(addr, acc.Code)
		}
		for slotHex, valHex := range acc.StorageJSON {
			slot := types.HexToHash(slotHex)
			val := types.HexToHash(valHex)
			st.SetStorage(addr, slot, val)
		}
	}
	// Fold the seeded storage into the committed layer so the first
	// transaction sees it as original values.
	st.BeginTransaction()
	return nil
}

// DumpAlloc flattens the post-execution world state back into the
// alloc.json shape, with deterministic storage-key ordering left to the
// JSON encoder.
func DumpAlloc(st *state.MemoryState) Alloc {
	out := make(Alloc)
	for addr, acc := range st.Dump() {
		rec := Account{
			Balance: NewHexBig(acc.Balance.ToBig()),
		}
		if acc.Nonce != 0 {
			n := HexUint64(acc.Nonce)
			rec.Nonce = &n
		}
		if len(acc.Code) > 0 {
			rec.Code = acc.Code
		}
		if len(acc.Storage) > 0 {
			rec.StorageJSON = make(map[string]string, len(acc.Storage))
			keys := make([]types.Hash, 0, len(acc.Storage))
			for k := range acc.Storage {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i].Hex() < keys[j].Hex() })
			for _, k := range keys {
				rec.StorageJSON[k.Hex()] = acc.Storage[k].Hex()
			}
		}
		out[addr.Hex()] = rec
	}
	return out
}
