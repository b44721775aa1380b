// Package rlp implements the Ethereum Recursive Length Prefix encoding
// used for transactions, receipts, and Merkle Patricia Trie nodes.
package rlp

import "errors"

var (
	// ErrExpectedString is returned when a list is encountered where a
	// string was expected.
	ErrExpectedString = errors.New("rlp: expected string")

	// ErrExpectedList is returned when a string is encountered where a
	// list was expected.
	ErrExpectedList = errors.New("rlp: expected list")

	// ErrCanonSize is returned when a single byte < 0x80 was encoded as
	// a one-byte string instead of as itself.
	ErrCanonSize = errors.New("rlp: non-canonical size information")

	// ErrEOL is returned when a list is closed before all its declared
	// payload bytes have been consumed.
	ErrEOL = errors.New("rlp: end of list")

	// ErrCanonInt is returned when an integer uses non-canonical
	// encoding (leading zero bytes).
	ErrCanonInt = errors.New("rlp: non-canonical integer encoding")

	// ErrNonCanonicalSize is returned when a long-form size prefix
	// encodes a size that should have used the short form.
	ErrNonCanonicalSize = errors.New("rlp: non-canonical size")

	// ErrUint64Range is returned when a decoded integer exceeds uint64
	// range.
	ErrUint64Range = errors.New("rlp: uint64 overflow")

	// ErrUint256Range is returned when a decoded integer exceeds
	// uint256 range.
	ErrUint256Range = errors.New("rlp: uint256 overflow")

	// ErrValueTooLarge is returned when a Go value has no RLP
	// representation.
	ErrValueTooLarge = errors.New("rlp: value too large")
)
