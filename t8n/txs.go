package t8n

import (
	"fmt"
	"math/big"

	coretypes "github.com/daniellehrner/ethexec/core/types"
	"github.com/daniellehrner/ethexec/types"
)

// TxJSON is one transaction object in txs.json. Field presence varies
// by type; quantities are hex-encoded per the JSON-RPC convention.
type TxJSON struct {
	Type                 *HexUint64    `json:"type,omitempty"`
	ChainID              *HexBig       `json:"chainId,omitempty"`
	Nonce                HexUint64     `json:"nonce"`
	GasPrice             *HexBig       `json:"gasPrice,omitempty"`
	MaxPriorityFeePerGas *HexBig       `json:"maxPriorityFeePerGas,omitempty"`
	MaxFeePerGas         *HexBig       `json:"maxFeePerGas,omitempty"`
	Gas                  HexUint64     `json:"gas"`
	To                   *string       `json:"to,omitempty"`
	Value                *HexBig       `json:"value,omitempty"`
	Input                HexBytes      `json:"input"`
	AccessList           []AccessJSON  `json:"accessList,omitempty"`
	MaxFeePerBlobGas     *HexBig       `json:"maxFeePerBlobGas,omitempty"`
	BlobVersionedHashes  []string      `json:"blobVersionedHashes,omitempty"`
	AuthorizationList    []AuthJSON    `json:"authorizationList,omitempty"`
	V                    *HexBig       `json:"v"`
	R                    *HexBig       `json:"r"`
	S                    *HexBig       `json:"s"`
}

// AccessJSON is one access-list tuple on the wire.
type AccessJSON struct {
	Address     string   `json:"address"`
	StorageKeys []string `json:"storageKeys"`
}

// AuthJSON is one EIP-7702 authorization tuple on the wire.
type AuthJSON struct {
	ChainID *HexBig   `json:"chainId"`
	Address string    `json:"address"`
	Nonce   HexUint64 `json:"nonce"`
	YParity HexUint64 `json:"yParity"`
	R       *HexBig   `json:"r"`
	S       *HexBig   `json:"s"`
}

func (j *TxJSON) toAddressPtr() *types.Address {
	if j.To == nil || *j.To == "" {
		return nil
	}
	addr := types.HexToAddress(*j.To)
	return &addr
}

func bigOrZero(b *HexBig) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b.Big()
}

func (j *TxJSON) accessList() coretypes.AccessList {
	if len(j.AccessList) == 0 {
		return nil
	}
	al := make(coretypes.AccessList, len(j.AccessList))
	for i, tuple := range j.AccessList {
		keys := make([]types.Hash, len(tuple.StorageKeys))
		for k, s := range tuple.StorageKeys {
			keys[k] = types.HexToHash(s)
		}
		al[i] = coretypes.AccessTuple{
			Address:     types.HexToAddress(tuple.Address),
			StorageKeys: keys,
		}
	}
	return al
}

// ToTransaction converts the JSON object into a typed transaction.
func (j *TxJSON) ToTransaction() (*coretypes.Transaction, error) {
	txType := byte(coretypes.LegacyTxType)
	if j.Type != nil {
		txType = byte(*j.Type)
	}
	v, r, s := bigOrZero(j.V), bigOrZero(j.R), bigOrZero(j.S)

	switch txType {
	case coretypes.LegacyTxType:
		return coretypes.NewTransaction(&coretypes.LegacyTx{
			Nonce:    uint64(j.Nonce),
			GasPrice: bigOrZero(j.GasPrice),
			Gas:      uint64(j.Gas),
			To:       j.toAddressPtr(),
			Value:    bigOrZero(j.Value),
			Data:     j.Input,
			V:        v, R: r, S: s,
		}), nil

	case coretypes.AccessListTxType:
		return coretypes.NewTransaction(&coretypes.AccessListTx{
			ChainID:    bigOrZero(j.ChainID),
			Nonce:      uint64(j.Nonce),
			GasPrice:   bigOrZero(j.GasPrice),
			Gas:        uint64(j.Gas),
			To:         j.toAddressPtr(),
			Value:      bigOrZero(j.Value),
			Data:       j.Input,
			AccessList: j.accessList(),
			V:          v, R: r, S: s,
		}), nil

	case coretypes.DynamicFeeTxType:
		return coretypes.NewTransaction(&coretypes.DynamicFeeTx{
			ChainID:    bigOrZero(j.ChainID),
			Nonce:      uint64(j.Nonce),
			GasTipCap:  bigOrZero(j.MaxPriorityFeePerGas),
			GasFeeCap:  bigOrZero(j.MaxFeePerGas),
			Gas:        uint64(j.Gas),
			To:         j.toAddressPtr(),
			Value:      bigOrZero(j.Value),
			Data:       j.Input,
			AccessList: j.accessList(),
			V:          v, R: r, S: s,
		}), nil

	case coretypes.BlobTxType:
		to := j.toAddressPtr()
		if to == nil {
			return nil, fmt.Errorf("blob transaction without recipient")
		}
		hashes := make([]types.Hash, len(j.BlobVersionedHashes))
		for i, h := range j.BlobVersionedHashes {
			hashes[i] = types.HexToHash(h)
		}
		return coretypes.NewTransaction(&coretypes.BlobTx{
			ChainID:    bigOrZero(j.ChainID),
			Nonce:      uint64(j.Nonce),
			GasTipCap:  bigOrZero(j.MaxPriorityFeePerGas),
			GasFeeCap:  bigOrZero(j.MaxFeePerGas),
			Gas:        uint64(j.Gas),
			To:         *to,
			Value:      bigOrZero(j.Value),
			Data:       j.Input,
			AccessList: j.accessList(),
			BlobFeeCap: bigOrZero(j.MaxFeePerBlobGas),
			BlobHashes: hashes,
			V:          v, R: r, S: s,
		}), nil

	case coretypes.SetCodeTxType:
		to := j.toAddressPtr()
		if to == nil {
			return nil, fmt.Errorf("set code transaction without recipient")
		}
		auths := make([]coretypes.Authorization, len(j.AuthorizationList))
		for i, a := range j.AuthorizationList {
			auths[i] = coretypes.Authorization{
				ChainID: bigOrZero(a.ChainID),
				Address: types.HexToAddress(a.Address),
				Nonce:   uint64(a.Nonce),
				YParity: uint8(a.YParity),
				R:       bigOrZero(a.R),
				S:       bigOrZero(a.S),
			}
		}
		return coretypes.NewTransaction(&coretypes.SetCodeTx{
			ChainID:    bigOrZero(j.ChainID),
			Nonce:      uint64(j.Nonce),
			GasTipCap:  bigOrZero(j.MaxPriorityFeePerGas),
			GasFeeCap:  bigOrZero(j.MaxFeePerGas),
			Gas:        uint64(j.Gas),
			To:         *to,
			Value:      bigOrZero(j.Value),
			Data:       j.Input,
			AccessList: j.accessList(),
			AuthList:   auths,
			V:          v, R: r, S: s,
		}), nil
	}
	return nil, fmt.Errorf("unsupported transaction type 0x%02x", txType)
}

// ParseTxs converts the whole txs.json array.
func ParseTxs(list []*TxJSON) ([]*coretypes.Transaction, error) {
	txs := make([]*coretypes.Transaction, 0, len(list))
	for i, j := range list {
		tx, err := j.ToTransaction()
		if err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
