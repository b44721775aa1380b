// Package crypto provides the Keccak-256 hashing and secp256k1 signing
// primitives the transaction envelope, trie hasher and CREATE/CREATE2
// address derivation all depend on.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/daniellehrner/ethexec/types"
)

// Keccak256 calculates the Keccak-256 hash of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash calculates Keccak-256 and returns it as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}
