// Package types implements the Ethereum transaction envelope: the five
// transaction variants, their canonical RLP wire formats, signing hashes
// and sender recovery, plus receipts and withdrawals.
package types

import (
	"math/big"
	"sync/atomic"

	"github.com/daniellehrner/ethexec/types"
)

// Transaction type constants.
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
	BlobTxType       = 0x03
	SetCodeTxType    = 0x04
)

// Transaction wraps one of the five transaction payload variants with
// lazily computed, cached derived values (hash, sender).
type Transaction struct {
	inner TxData
	hash  atomic.Pointer[types.Hash]
	from  atomic.Pointer[types.Address]
}

// NewTransaction wraps payload data in a Transaction.
func NewTransaction(inner TxData) *Transaction {
	return &Transaction{inner: inner.copy()}
}

// TxData is the payload of one transaction variant. Every accessor is
// total: variants without a field answer with the nearest equivalent
// (e.g. a legacy gas price serves as both fee caps).
type TxData interface {
	txType() byte
	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() uint64
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	value() *big.Int
	nonce() uint64
	to() *types.Address

	rawSignatureValues() (v, r, s *big.Int)
	setSignatureValues(v, r, s *big.Int)

	copy() TxData
}

func (tx *Transaction) Type() byte              { return tx.inner.txType() }
func (tx *Transaction) Nonce() uint64           { return tx.inner.nonce() }
func (tx *Transaction) Gas() uint64             { return tx.inner.gas() }
func (tx *Transaction) GasPrice() *big.Int      { return tx.inner.gasPrice() }
func (tx *Transaction) GasTipCap() *big.Int     { return tx.inner.gasTipCap() }
func (tx *Transaction) GasFeeCap() *big.Int     { return tx.inner.gasFeeCap() }
func (tx *Transaction) Value() *big.Int         { return tx.inner.value() }
func (tx *Transaction) Data() []byte            { return tx.inner.data() }
func (tx *Transaction) AccessList() AccessList  { return tx.inner.accessList() }
func (tx *Transaction) To() *types.Address      { return copyAddressPtr(tx.inner.to()) }

// ChainID returns the chain id the transaction is bound to, or nil for
// a pre-EIP-155 legacy transaction that is valid on any chain.
func (tx *Transaction) ChainID() *big.Int { return tx.inner.chainID() }

// RawSignatureValues returns the V, R, S signature values as carried on
// the wire (legacy V includes the EIP-155 chain id folding; typed
// transactions carry the y-parity bit).
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.rawSignatureValues()
}

// BlobHashes returns the versioned blob commitment hashes of a blob
// transaction, nil for every other type.
func (tx *Transaction) BlobHashes() []types.Hash {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.BlobHashes
	}
	return nil
}

// BlobGasFeeCap returns the max blob fee of a blob transaction, nil
// otherwise.
func (tx *Transaction) BlobGasFeeCap() *big.Int {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.BlobFeeCap
	}
	return nil
}

// BlobGas returns the total blob gas the transaction consumes.
func (tx *Transaction) BlobGas() uint64 {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return uint64(len(blob.BlobHashes)) * BlobTxBlobGasPerBlob
	}
	return 0
}

// AuthList returns the EIP-7702 authorization list of a set-code
// transaction, nil otherwise.
func (tx *Transaction) AuthList() []Authorization {
	if sc, ok := tx.inner.(*SetCodeTx); ok {
		return sc.AuthList
	}
	return nil
}

// SetSender caches the recovered sender on the transaction.
func (tx *Transaction) SetSender(addr types.Address) {
	a := addr
	tx.from.Store(&a)
}

// CachedSender returns the previously recovered sender, if any.
func (tx *Transaction) CachedSender() (types.Address, bool) {
	if a := tx.from.Load(); a != nil {
		return *a, true
	}
	return types.Address{}, false
}

// EffectiveGasPrice returns the per-gas price actually paid under the
// given base fee: min(feeCap, baseFee+tipCap) for dynamic-fee types, the
// fixed gas price otherwise.
func (tx *Transaction) EffectiveGasPrice(baseFee *big.Int) *big.Int {
	if tx.Type() < DynamicFeeTxType || baseFee == nil {
		return new(big.Int).Set(tx.GasPrice())
	}
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price.Set(tx.GasFeeCap())
	}
	return price
}

// BlobTxBlobGasPerBlob is the gas consumed per blob (EIP-4844: 2^17).
const BlobTxBlobGasPerBlob = 1 << 17

// AccessList is the EIP-2930 list of addresses and storage slots the
// transaction pre-declares (and pre-warms).
type AccessList []AccessTuple

// AccessTuple is one address with its declared storage keys.
type AccessTuple struct {
	Address     types.Address
	StorageKeys []types.Hash
}

// StorageKeys returns the total number of storage keys across the list.
func (al AccessList) StorageKeys() int {
	n := 0
	for _, tuple := range al {
		n += len(tuple.StorageKeys)
	}
	return n
}

func (al AccessList) copy() AccessList {
	if al == nil {
		return nil
	}
	cpy := make(AccessList, len(al))
	for i, tuple := range al {
		cpy[i] = AccessTuple{
			Address:     tuple.Address,
			StorageKeys: append([]types.Hash(nil), tuple.StorageKeys...),
		}
	}
	return cpy
}

// Authorization is one EIP-7702 set-code authorization tuple.
type Authorization struct {
	ChainID *big.Int
	Address types.Address
	Nonce   uint64
	YParity uint8
	R       *big.Int
	S       *big.Int
}

func copyAuthList(list []Authorization) []Authorization {
	if list == nil {
		return nil
	}
	cpy := make([]Authorization, len(list))
	for i, auth := range list {
		cpy[i] = Authorization{
			ChainID: copyBig(auth.ChainID),
			Address: auth.Address,
			Nonce:   auth.Nonce,
			YParity: auth.YParity,
			R:       copyBig(auth.R),
			S:       copyBig(auth.S),
		}
	}
	return cpy
}

// LegacyTx is the original (type 0x00) transaction format.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *types.Address
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) txType() byte            { return LegacyTxType }
func (tx *LegacyTx) accessList() AccessList  { return nil }
func (tx *LegacyTx) data() []byte            { return tx.Data }
func (tx *LegacyTx) gas() uint64             { return tx.Gas }
func (tx *LegacyTx) gasPrice() *big.Int      { return tx.GasPrice }
func (tx *LegacyTx) gasTipCap() *big.Int     { return tx.GasPrice }
func (tx *LegacyTx) gasFeeCap() *big.Int     { return tx.GasPrice }
func (tx *LegacyTx) value() *big.Int         { return tx.Value }
func (tx *LegacyTx) nonce() uint64           { return tx.Nonce }
func (tx *LegacyTx) to() *types.Address      { return tx.To }

// chainID derives the chain id from the EIP-155 V value, or nil for a
// pre-EIP-155 signature (V in {27, 28}).
func (tx *LegacyTx) chainID() *big.Int {
	if tx.V == nil {
		return nil
	}
	v := tx.V.Uint64()
	if tx.V.BitLen() <= 64 && (v == 27 || v == 28 || v == 0 || v == 1) {
		return nil
	}
	// chainID = (V - 35) / 2
	id := new(big.Int).Sub(tx.V, big.NewInt(35))
	return id.Rsh(id, 1)
}

func (tx *LegacyTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *LegacyTx) setSignatureValues(v, r, s *big.Int)    { tx.V, tx.R, tx.S = v, r, s }

func (tx *LegacyTx) copy() TxData {
	return &LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: copyBig(tx.GasPrice),
		Gas:      tx.Gas,
		To:       copyAddressPtr(tx.To),
		Value:    copyBig(tx.Value),
		Data:     copyBytes(tx.Data),
		V:        copyBig(tx.V),
		R:        copyBig(tx.R),
		S:        copyBig(tx.S),
	}
}

// AccessListTx is the EIP-2930 (type 0x01) transaction format.
type AccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *types.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *AccessListTx) txType() byte            { return AccessListTxType }
func (tx *AccessListTx) chainID() *big.Int       { return tx.ChainID }
func (tx *AccessListTx) accessList() AccessList  { return tx.AccessList }
func (tx *AccessListTx) data() []byte            { return tx.Data }
func (tx *AccessListTx) gas() uint64             { return tx.Gas }
func (tx *AccessListTx) gasPrice() *big.Int      { return tx.GasPrice }
func (tx *AccessListTx) gasTipCap() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) gasFeeCap() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) value() *big.Int         { return tx.Value }
func (tx *AccessListTx) nonce() uint64           { return tx.Nonce }
func (tx *AccessListTx) to() *types.Address      { return tx.To }

func (tx *AccessListTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *AccessListTx) setSignatureValues(v, r, s *big.Int)    { tx.V, tx.R, tx.S = v, r, s }

func (tx *AccessListTx) copy() TxData {
	return &AccessListTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasPrice:   copyBig(tx.GasPrice),
		Gas:        tx.Gas,
		To:         copyAddressPtr(tx.To),
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: tx.AccessList.copy(),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// DynamicFeeTx is the EIP-1559 (type 0x02) transaction format.
type DynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         *types.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *DynamicFeeTx) txType() byte            { return DynamicFeeTxType }
func (tx *DynamicFeeTx) chainID() *big.Int       { return tx.ChainID }
func (tx *DynamicFeeTx) accessList() AccessList  { return tx.AccessList }
func (tx *DynamicFeeTx) data() []byte            { return tx.Data }
func (tx *DynamicFeeTx) gas() uint64             { return tx.Gas }
func (tx *DynamicFeeTx) gasPrice() *big.Int      { return tx.GasFeeCap }
func (tx *DynamicFeeTx) gasTipCap() *big.Int     { return tx.GasTipCap }
func (tx *DynamicFeeTx) gasFeeCap() *big.Int     { return tx.GasFeeCap }
func (tx *DynamicFeeTx) value() *big.Int         { return tx.Value }
func (tx *DynamicFeeTx) nonce() uint64           { return tx.Nonce }
func (tx *DynamicFeeTx) to() *types.Address      { return tx.To }

func (tx *DynamicFeeTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *DynamicFeeTx) setSignatureValues(v, r, s *big.Int)    { tx.V, tx.R, tx.S = v, r, s }

func (tx *DynamicFeeTx) copy() TxData {
	return &DynamicFeeTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         copyAddressPtr(tx.To),
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: tx.AccessList.copy(),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// BlobTx is the EIP-4844 (type 0x03) transaction format. The blob
// payloads themselves travel in the sidecar; only the versioned hashes
// appear here. To is mandatory: blob transactions cannot create.
type BlobTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         types.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	BlobFeeCap *big.Int
	BlobHashes []types.Hash
	V, R, S    *big.Int
}

func (tx *BlobTx) txType() byte            { return BlobTxType }
func (tx *BlobTx) chainID() *big.Int       { return tx.ChainID }
func (tx *BlobTx) accessList() AccessList  { return tx.AccessList }
func (tx *BlobTx) data() []byte            { return tx.Data }
func (tx *BlobTx) gas() uint64             { return tx.Gas }
func (tx *BlobTx) gasPrice() *big.Int      { return tx.GasFeeCap }
func (tx *BlobTx) gasTipCap() *big.Int     { return tx.GasTipCap }
func (tx *BlobTx) gasFeeCap() *big.Int     { return tx.GasFeeCap }
func (tx *BlobTx) value() *big.Int         { return tx.Value }
func (tx *BlobTx) nonce() uint64           { return tx.Nonce }
func (tx *BlobTx) to() *types.Address      { to := tx.To; return &to }

func (tx *BlobTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *BlobTx) setSignatureValues(v, r, s *big.Int)    { tx.V, tx.R, tx.S = v, r, s }

func (tx *BlobTx) copy() TxData {
	return &BlobTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: tx.AccessList.copy(),
		BlobFeeCap: copyBig(tx.BlobFeeCap),
		BlobHashes: append([]types.Hash(nil), tx.BlobHashes...),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

// SetCodeTx is the EIP-7702 (type 0x04) transaction format. To is
// mandatory. Each authorization, once validated, installs a delegation
// designator in the authority's code.
type SetCodeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         types.Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	AuthList   []Authorization
	V, R, S    *big.Int
}

func (tx *SetCodeTx) txType() byte            { return SetCodeTxType }
func (tx *SetCodeTx) chainID() *big.Int       { return tx.ChainID }
func (tx *SetCodeTx) accessList() AccessList  { return tx.AccessList }
func (tx *SetCodeTx) data() []byte            { return tx.Data }
func (tx *SetCodeTx) gas() uint64             { return tx.Gas }
func (tx *SetCodeTx) gasPrice() *big.Int      { return tx.GasFeeCap }
func (tx *SetCodeTx) gasTipCap() *big.Int     { return tx.GasTipCap }
func (tx *SetCodeTx) gasFeeCap() *big.Int     { return tx.GasFeeCap }
func (tx *SetCodeTx) value() *big.Int         { return tx.Value }
func (tx *SetCodeTx) nonce() uint64           { return tx.Nonce }
func (tx *SetCodeTx) to() *types.Address      { to := tx.To; return &to }

func (tx *SetCodeTx) rawSignatureValues() (v, r, s *big.Int) { return tx.V, tx.R, tx.S }
func (tx *SetCodeTx) setSignatureValues(v, r, s *big.Int)    { tx.V, tx.R, tx.S = v, r, s }

func (tx *SetCodeTx) copy() TxData {
	return &SetCodeTx{
		ChainID:    copyBig(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  copyBig(tx.GasTipCap),
		GasFeeCap:  copyBig(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      copyBig(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: tx.AccessList.copy(),
		AuthList:   copyAuthList(tx.AuthList),
		V:          copyBig(tx.V),
		R:          copyBig(tx.R),
		S:          copyBig(tx.S),
	}
}

func copyBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func copyAddressPtr(a *types.Address) *types.Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}
