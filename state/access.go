// Package state implements the journaled, snapshot/revert-capable world
// state that the EVM interpreter and block executor read and write
// accounts, code and storage through.
package state

import (
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
)

// Access is the interface the EVM interpreter and executor use to read and
// mutate account state. It mirrors a state-access vtable: existence and
// emptiness checks, balance/nonce/code/storage accessors, EIP-2929 warm-set
// tracking, transaction/call boundaries and state root computation.
type Access interface {
	// Account existence and lifecycle.
	AccountExists(addr types.Address) bool
	AccountIsEmpty(addr types.Address) bool
	CreateContract(addr types.Address)
	DeleteAccount(addr types.Address)

	// Balance.
	GetBalance(addr types.Address) *uint256.Int
	SetBalance(addr types.Address, balance *uint256.Int)
	AddBalance(addr types.Address, amount *uint256.Int)
	SubBalance(addr types.Address, amount *uint256.Int) bool

	// Nonce.
	GetNonce(addr types.Address) uint64
	SetNonce(addr types.Address, nonce uint64)
	IncrementNonce(addr types.Address) uint64

	// Code.
	GetCode(addr types.Address) []byte
	GetCodeSize(addr types.Address) int
	GetCodeHash(addr types.Address) types.Hash
	SetCode(addr types.Address, code []byte)

	// Storage.
	GetStorage(addr types.Address, slot types.Hash) types.Hash
	GetOriginalStorage(addr types.Address, slot types.Hash) types.Hash
	SetStorage(addr types.Address, slot, value types.Hash)

	// Transient storage (EIP-1153).
	GetTransientStorage(addr types.Address, slot types.Hash) types.Hash
	SetTransientStorage(addr types.Address, slot, value types.Hash)

	// EIP-2929 warm/cold access.
	IsAddressWarm(addr types.Address) bool
	WarmAddress(addr types.Address) bool
	IsSlotWarm(addr types.Address, slot types.Hash) bool
	WarmSlot(addr types.Address, slot types.Hash) bool

	// Self-destruct.
	SelfDestruct(addr types.Address)
	HasSelfDestructed(addr types.Address) bool

	// Refund counter.
	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	// Logs.
	AddLog(log *types.Log)
	GetLogs(txHash types.Hash) []*types.Log
	SetTxContext(txHash types.Hash, txIndex int)

	// Transaction boundary: flushes the previous transaction's dirty
	// storage into the committed layer and clears warm sets, the refund
	// counter and transient storage.
	BeginTransaction()

	// Snapshot/revert, for CALL/CREATE frames.
	Snapshot() int
	RevertToSnapshot(id int)

	// State root.
	StateRoot() (types.Hash, error)
}
