// Package types defines the core Ethereum data types shared across the
// state, trie, VM and executor layers: fixed-size hashes and addresses,
// account records, log entries and bloom filters.
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/daniellehrner/ethexec/uint256"
)

const (
	HashLength    = 32
	AddressLength = 20
	BloomLength   = 256
)

// Hash represents a 32-byte Keccak256 hash.
type Hash [HashLength]byte

// Address represents the 20-byte address of an Ethereum account.
type Address [AddressLength]byte

// BytesToHash converts bytes to a Hash, left-padding if shorter than 32
// bytes and discarding leading bytes if longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

// HexToHash converts a hex string (optionally "0x"-prefixed) to a Hash.
func HexToHash(s string) Hash {
	return BytesToHash(fromHex(s))
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) Hex() string    { return fmt.Sprintf("0x%x", h[:]) }
func (h Hash) String() string { return h.Hex() }

// SetBytes sets the hash from a byte slice, left-padding if necessary.
func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

// IsZero reports whether the hash is all zeros.
func (h Hash) IsZero() bool { return h == Hash{} }

// BytesToAddress converts bytes to an Address, left-padding if shorter
// than 20 bytes and discarding leading bytes if longer.
func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

// HexToAddress converts a hex string (optionally "0x"-prefixed) to an
// Address.
func HexToAddress(s string) Address {
	return BytesToAddress(fromHex(s))
}

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) Hex() string    { return fmt.Sprintf("0x%x", a[:]) }
func (a Address) String() string { return a.Hex() }

// SetBytes sets the address from a byte slice, left-padding if shorter.
func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool { return a == Address{} }

// Account is the consensus representation of an account stored in the
// state trie: nonce, balance, storage-trie root and code hash.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     Hash
	CodeHash Hash
}

// NewAccount returns an empty account with zero balance, empty storage
// root and the hash of empty code.
func NewAccount() Account {
	return Account{
		Balance:  uint256.Zero(),
		Root:     EmptyRootHash,
		CodeHash: EmptyCodeHash,
	}
}

// IsEmpty reports whether the account has the "empty" status EIP-161
// uses to decide whether an account should be pruned from state:
// nonce zero, balance zero, and no code.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && a.CodeHash == EmptyCodeHash
}

// Log represents a single contract log (EVM LOG0-LOG4 event).
type Log struct {
	Address     Address
	Topics      []Hash
	Data        []byte
	BlockNumber uint64
	TxHash      Hash
	TxIndex     uint
	BlockHash   Hash
	Index       uint
	Removed     bool
}

var (
	// EmptyRootHash is the root hash of an empty Merkle Patricia Trie.
	EmptyRootHash = HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

	// EmptyCodeHash is keccak256 of the empty byte string, the code hash
	// of every externally-owned account.
	EmptyCodeHash = HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
)

func fromHex(s string) []byte {
	if has0xPrefix(s) {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

func has0xPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
