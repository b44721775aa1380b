package executor

import (
	"errors"
	"fmt"
	"math/big"

	coretypes "github.com/daniellehrner/ethexec/core/types"
	"github.com/daniellehrner/ethexec/log"
	"github.com/daniellehrner/ethexec/state"
	"github.com/daniellehrner/ethexec/types"
	"github.com/daniellehrner/ethexec/uint256"
	"github.com/daniellehrner/ethexec/vm"
)

// Blob gas limits per block (EIP-4844; raised by EIP-7691 in Prague).
const (
	MaxBlobGasPerBlockCancun = 6 * coretypes.BlobTxBlobGasPerBlob
	MaxBlobGasPerBlockPrague = 9 * coretypes.BlobTxBlobGasPerBlob

	// MinBlobBaseFee and the update fraction parameterize the blob fee
	// exponential (EIP-4844).
	MinBlobBaseFee            = 1
	BlobBaseFeeUpdateFraction = 3338477
)

// Config carries the chain-level execution parameters.
type Config struct {
	ChainID uint64
	Fork    vm.ForkRules

	// Reward is paid to the coinbase after all transactions; nil
	// disables the payout (post-Merge default).
	Reward *big.Int
}

// Environment is the block context the transactions execute under.
type Environment struct {
	Coinbase      types.Address
	GasLimit      uint64
	Number        uint64
	Timestamp     uint64
	PrevRandao    types.Hash
	BaseFee       *big.Int
	ExcessBlobGas *uint64
	BlockHashes   map[uint64]types.Hash
	Withdrawals   []*coretypes.Withdrawal
}

// RejectedTx identifies a transaction that failed validation, by its
// index in the submitted list.
type RejectedTx struct {
	Index int
	Err   error
}

// BlockResult is everything the transition produces besides the mutated
// state itself.
type BlockResult struct {
	Receipts        []*coretypes.Receipt
	Rejected        []RejectedTx
	IncludedTxs     []*coretypes.Transaction
	Logs            []*types.Log
	GasUsed         uint64
	BlobGasUsed     uint64
	StateRoot       types.Hash
	TxRoot          types.Hash
	ReceiptRoot     types.Hash
	WithdrawalsRoot types.Hash
	LogsHash        types.Hash
	Bloom           types.Bloom
}

// BlockExecutor runs transactions sequentially against one world state.
type BlockExecutor struct {
	state  *state.MemoryState
	cfg    Config
	signer *coretypes.Signer
	logger *log.Logger

	missingHash *uint64
}

func New(st *state.MemoryState, cfg Config) *BlockExecutor {
	return &BlockExecutor{
		state:  st,
		cfg:    cfg,
		signer: coretypes.NewSigner(cfg.ChainID),
		logger: log.Default().Module("executor"),
	}
}

// CalcBlobBaseFee computes the blob base fee from the excess blob gas
// via the EIP-4844 fake-exponential approximation.
func CalcBlobBaseFee(excessBlobGas uint64) *big.Int {
	var (
		num    = new(big.Int).SetUint64(excessBlobGas)
		denom  = big.NewInt(BlobBaseFeeUpdateFraction)
		output = new(big.Int)
		accum  = new(big.Int).Mul(big.NewInt(MinBlobBaseFee), denom)
	)
	for i := int64(1); accum.Sign() > 0; i++ {
		output.Add(output, accum)
		accum.Mul(accum, num)
		accum.Div(accum, denom)
		accum.Div(accum, big.NewInt(i))
	}
	return output.Div(output, denom)
}

// ExecuteBlock validates and applies every transaction in order,
// credits withdrawals and the block reward, and computes the final
// roots. Rejected transactions leave no trace in state.
func (e *BlockExecutor) ExecuteBlock(env *Environment, txs []*coretypes.Transaction) (*BlockResult, error) {
	baseFee := env.BaseFee
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	blobBaseFee := big.NewInt(MinBlobBaseFee)
	if env.ExcessBlobGas != nil {
		blobBaseFee = CalcBlobBaseFee(*env.ExcessBlobGas)
	}

	baseFeeU, _ := uint256.FromBig(baseFee)
	blobBaseFeeU, _ := uint256.FromBig(blobBaseFee)
	blockCtx := vm.BlockContext{
		GetHash:     e.getHashFn(env),
		BlockNumber: uint256.NewFromUint64(env.Number),
		Time:        env.Timestamp,
		Coinbase:    env.Coinbase,
		GasLimit:    env.GasLimit,
		BaseFee:     baseFeeU,
		PrevRandao:  env.PrevRandao,
		BlobBaseFee: blobBaseFeeU,
	}

	maxBlobGas := uint64(0)
	if e.cfg.Fork.IsPrague {
		maxBlobGas = MaxBlobGasPerBlockPrague
	} else if e.cfg.Fork.IsCancun {
		maxBlobGas = MaxBlobGasPerBlockCancun
	}

	result := &BlockResult{}
	evm := vm.NewEVM(blockCtx, vm.TxContext{}, vm.Config{ChainID: e.cfg.ChainID}, e.state, e.cfg.Fork)

	for i, tx := range txs {
		e.state.BeginTransaction()
		e.state.SetTxContext(tx.Hash(), len(result.Receipts))

		receipt, err := e.applyTransaction(evm, env, tx, baseFee, blobBaseFee, maxBlobGas, result)
		if err != nil {
			e.logger.Debug("transaction rejected", "index", i, "err", err)
			result.Rejected = append(result.Rejected, RejectedTx{Index: i, Err: err})
			continue
		}
		result.Receipts = append(result.Receipts, receipt)
		result.IncludedTxs = append(result.IncludedTxs, tx)
		result.Logs = append(result.Logs, receipt.Logs...)
		result.GasUsed += receipt.GasUsed
		result.BlobGasUsed += receipt.BlobGasUsed

		if e.missingHash != nil {
			return nil, fmt.Errorf("%w: block %d", ErrMissingBlockHash, *e.missingHash)
		}
	}

	for _, w := range env.Withdrawals {
		// Withdrawal amounts are gwei.
		amount := new(big.Int).Mul(new(big.Int).SetUint64(w.Amount), big.NewInt(1_000_000_000))
		amountU, _ := uint256.FromBig(amount)
		e.state.AddBalance(w.Address, amountU)
	}

	if e.cfg.Reward != nil && e.cfg.Reward.Sign() >= 0 {
		rewardU, _ := uint256.FromBig(e.cfg.Reward)
		e.state.AddBalance(env.Coinbase, rewardU)
	}

	evm.ResetScratch()

	stateRoot, err := e.state.StateRoot()
	if err != nil {
		return nil, err
	}
	result.StateRoot = stateRoot
	result.TxRoot = coretypes.DeriveTxsRoot(result.IncludedTxs)
	result.ReceiptRoot = coretypes.DeriveReceiptsRoot(result.Receipts)
	result.WithdrawalsRoot = coretypes.DeriveWithdrawalsRoot(env.Withdrawals)
	result.LogsHash = coretypes.LogsHash(result.Logs)
	result.Bloom = types.LogsBloom(result.Logs)
	return result, nil
}

func (e *BlockExecutor) getHashFn(env *Environment) vm.GetHashFunc {
	return func(n uint64) types.Hash {
		if h, ok := env.BlockHashes[n]; ok {
			return h
		}
		// Only the 256 most recent blocks are addressable; anything
		// else legitimately reads zero.
		if n < env.Number && env.Number-n <= 256 {
			num := n
			e.missingHash = &num
		}
		return types.Hash{}
	}
}

// validate runs the §-ordered pre-execution checks. The sender has
// already been recovered.
func (e *BlockExecutor) validate(env *Environment, tx *coretypes.Transaction, sender types.Address, baseFee, blobBaseFee *big.Int, maxBlobGas uint64, result *BlockResult) error {
	// Chain id: Sender already rejects a mismatched bound chain id; a
	// nil chain id (pre-EIP-155 legacy) is valid on every chain.

	nonce := e.state.GetNonce(sender)
	switch {
	case tx.Nonce() < nonce:
		return fmt.Errorf("%w: tx %d, state %d", ErrNonceTooLow, tx.Nonce(), nonce)
	case tx.Nonce() > nonce:
		return fmt.Errorf("%w: tx %d, state %d", ErrNonceTooHigh, tx.Nonce(), nonce)
	}

	isCreate := tx.To() == nil
	if isCreate && e.cfg.Fork.IsShanghai && len(tx.Data()) > vm.MaxInitCodeSize {
		return fmt.Errorf("%w: %d bytes", ErrInitCodeTooLarge, len(tx.Data()))
	}

	intrinsic, err := IntrinsicGas(tx.Data(), tx.AccessList(), len(tx.AuthList()), isCreate, e.cfg.Fork)
	if err != nil {
		return err
	}
	if tx.Gas() < intrinsic {
		return fmt.Errorf("%w: have %d, need %d", ErrIntrinsicGas, tx.Gas(), intrinsic)
	}

	if tx.Gas() > env.GasLimit-result.GasUsed {
		return fmt.Errorf("%w: tx gas %d, remaining %d", ErrGasLimitReached, tx.Gas(), env.GasLimit-result.GasUsed)
	}

	if tx.GasFeeCap().Cmp(baseFee) < 0 {
		return fmt.Errorf("%w: fee cap %s, base fee %s", ErrFeeCapTooLow, tx.GasFeeCap(), baseFee)
	}
	if tx.GasTipCap().Cmp(tx.GasFeeCap()) > 0 {
		return fmt.Errorf("%w: tip %s, cap %s", ErrTipAboveFeeCap, tx.GasTipCap(), tx.GasFeeCap())
	}

	if tx.Type() == coretypes.BlobTxType {
		if len(tx.BlobHashes()) == 0 {
			return ErrNoBlobs
		}
		if tx.BlobGas() > maxBlobGas-result.BlobGasUsed {
			return fmt.Errorf("%w: tx blob gas %d, remaining %d", ErrBlobGasLimitReached, tx.BlobGas(), maxBlobGas-result.BlobGasUsed)
		}
		if tx.BlobGasFeeCap().Cmp(blobBaseFee) < 0 {
			return fmt.Errorf("%w: cap %s, blob base fee %s", ErrBlobFeeCapTooLow, tx.BlobGasFeeCap(), blobBaseFee)
		}
	}
	if tx.Type() == coretypes.SetCodeTxType && len(tx.AuthList()) == 0 {
		return ErrEmptyAuthList
	}

	// Overflow-safe total cost: gas_limit * effective price + value
	// (+ blob fee for blob transactions).
	cost := new(big.Int).SetUint64(tx.Gas())
	cost.Mul(cost, tx.EffectiveGasPrice(baseFee))
	cost.Add(cost, tx.Value())
	if tx.Type() == coretypes.BlobTxType {
		blobFee := new(big.Int).SetUint64(tx.BlobGas())
		cost.Add(cost, blobFee.Mul(blobFee, blobBaseFee))
	}
	if balance := e.state.GetBalance(sender).ToBig(); balance.Cmp(cost) < 0 {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, balance, cost)
	}
	return nil
}

func (e *BlockExecutor) applyTransaction(evm *vm.EVM, env *Environment, tx *coretypes.Transaction, baseFee, blobBaseFee *big.Int, maxBlobGas uint64, result *BlockResult) (*coretypes.Receipt, error) {
	sender, err := e.signer.Sender(tx)
	if err != nil {
		if errors.Is(err, coretypes.ErrInvalidChainID) {
			return nil, fmt.Errorf("%w: %v", ErrChainIDMismatch, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := e.validate(env, tx, sender, baseFee, blobBaseFee, maxBlobGas, result); err != nil {
		return nil, err
	}

	effPrice := tx.EffectiveGasPrice(baseFee)
	effPriceU, _ := uint256.FromBig(effPrice)
	evm.TxContext = vm.TxContext{
		Origin:     sender,
		GasPrice:   effPriceU,
		BlobHashes: tx.BlobHashes(),
	}

	// Debit the maximum execution fee up front; unused gas is refunded
	// after execution. The blob fee is debited and never refunded.
	upfront := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), effPrice)
	if tx.Type() == coretypes.BlobTxType {
		blobFee := new(big.Int).SetUint64(tx.BlobGas())
		upfront.Add(upfront, blobFee.Mul(blobFee, blobBaseFee))
	}
	upfrontU, _ := uint256.FromBig(upfront)
	e.state.SubBalance(sender, upfrontU)

	// EIP-2929/3651 pre-warming: sender, recipient, coinbase, the
	// precompiles, and the whole declared access list.
	e.state.WarmAddress(sender)
	if to := tx.To(); to != nil {
		e.state.WarmAddress(*to)
	}
	if e.cfg.Fork.IsShanghai {
		e.state.WarmAddress(env.Coinbase)
	}
	e.state.WarmAddress(types.BytesToAddress([]byte{1}))
	for _, tuple := range tx.AccessList() {
		e.state.WarmAddress(tuple.Address)
		for _, key := range tuple.StorageKeys {
			e.state.WarmSlot(tuple.Address, key)
		}
	}

	if e.cfg.Fork.IsPrague {
		e.applyAuthorizations(tx.AuthList())
	}

	intrinsic, _ := IntrinsicGas(tx.Data(), tx.AccessList(), len(tx.AuthList()), tx.To() == nil, e.cfg.Fork)
	gas := tx.Gas() - intrinsic

	valueU, _ := uint256.FromBig(tx.Value())
	var (
		gasLeft         uint64
		vmErr           error
		contractAddress types.Address
	)
	if tx.To() == nil {
		_, contractAddress, gasLeft, vmErr = evm.Create(sender, tx.Data(), gas, valueU)
	} else {
		e.state.SetNonce(sender, e.state.GetNonce(sender)+1)
		_, gasLeft, vmErr = evm.Call(sender, *tx.To(), tx.Data(), gas, valueU)
	}
	if vmErr != nil {
		e.logger.Debug("execution failed", "tx", tx.Hash(), "err", vmErr)
	}

	gasUsed := tx.Gas() - gasLeft
	if vmErr == nil {
		// Gas refunds (storage clearing, EIP-7702) are capped at a
		// fifth of the gas actually consumed.
		refund := gasUsed / vm.MaxRefundQuotient
		if e.state.GetRefund() < refund {
			refund = e.state.GetRefund()
		}
		gasUsed -= refund
	}

	// Return the unused portion of the upfront fee.
	remaining := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()-gasUsed), effPrice)
	remainingU, _ := uint256.FromBig(remaining)
	e.state.AddBalance(sender, remainingU)

	// The coinbase earns the priority fee; the base fee is burned.
	tip := new(big.Int).Sub(effPrice, baseFee)
	payout := new(big.Int).Mul(new(big.Int).SetUint64(gasUsed), tip)
	payoutU, _ := uint256.FromBig(payout)
	e.state.AddBalance(env.Coinbase, payoutU)

	receipt := &coretypes.Receipt{
		Type:              tx.Type(),
		CumulativeGasUsed: result.GasUsed + gasUsed,
		TxHash:            tx.Hash(),
		GasUsed:           gasUsed,
		BlobGasUsed:       tx.BlobGas(),
		TransactionIndex:  uint(len(result.Receipts)),
	}
	if vmErr == nil {
		receipt.Status = coretypes.ReceiptStatusSuccessful
		receipt.Logs = e.state.GetLogs(tx.Hash())
		receipt.ContractAddress = contractAddress
	} else {
		receipt.Status = coretypes.ReceiptStatusFailed
	}
	receipt.Bloom = types.LogsBloom(receipt.Logs)
	return receipt, nil
}

// applyAuthorizations installs EIP-7702 delegation designators. Invalid
// tuples are skipped, not fatal: their intrinsic cost was already paid.
func (e *BlockExecutor) applyAuthorizations(list []coretypes.Authorization) {
	chainID := new(big.Int).SetUint64(e.cfg.ChainID)
	for _, auth := range list {
		if auth.ChainID != nil && auth.ChainID.Sign() != 0 && auth.ChainID.Cmp(chainID) != 0 {
			continue
		}
		authority, err := e.signer.RecoverAuthority(auth)
		if err != nil {
			continue
		}
		e.state.WarmAddress(authority)
		if code := e.state.GetCode(authority); len(code) > 0 && !isDelegation(code) {
			continue
		}
		if e.state.GetNonce(authority) != auth.Nonce {
			continue
		}
		if e.state.AccountExists(authority) && !e.state.AccountIsEmpty(authority) {
			e.state.AddRefund(TxAuthExistingRefund)
		}
		if auth.Address == (types.Address{}) {
			e.state.SetCode(authority, nil)
		} else {
			e.state.SetCode(authority, delegationCode(auth.Address))
		}
		e.state.IncrementNonce(authority)
	}
}

// delegationCode builds the EIP-7702 designator 0xef0100 || address.
func delegationCode(target types.Address) []byte {
	code := make([]byte, 0, 23)
	code = append(code, 0xef, 0x01, 0x00)
	return append(code, target[:]...)
}

func isDelegation(code []byte) bool {
	return len(code) == 23 && code[0] == 0xef && code[1] == 0x01 && code[2] == 0x00
}
