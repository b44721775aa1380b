// Package executor applies a block of transactions to a world state:
// per-transaction validation, EVM invocation, gas accounting, fee payout
// and the final state root.
package executor

import "errors"

// Validation errors: a transaction failing one of these is rejected
// before touching state and reported on the rejected list.
var (
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrNonceTooLow         = errors.New("nonce too low")
	ErrNonceTooHigh        = errors.New("nonce too high")
	ErrInsufficientFunds   = errors.New("insufficient funds for gas * price + value")
	ErrIntrinsicGas        = errors.New("intrinsic gas too low")
	ErrGasLimitReached     = errors.New("exceeds block gas limit")
	ErrFeeCapTooLow        = errors.New("max fee per gas less than block base fee")
	ErrTipAboveFeeCap      = errors.New("max priority fee per gas higher than max fee per gas")
	ErrChainIDMismatch     = errors.New("chain id mismatch")
	ErrInitCodeTooLarge    = errors.New("max initcode size exceeded")
	ErrBlobFeeCapTooLow    = errors.New("max fee per blob gas less than block blob base fee")
	ErrNoBlobs             = errors.New("blob transaction without blobs")
	ErrBlobGasLimitReached = errors.New("exceeds block blob gas limit")
	ErrEmptyAuthList       = errors.New("set code transaction without authorizations")
)

// ErrMissingBlockHash aborts the whole transition: executed code asked
// BLOCKHASH for a block the environment did not supply.
var ErrMissingBlockHash = errors.New("missing required block hash")
