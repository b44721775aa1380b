package types

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/types"
)

var (
	ErrEmptyTxInput    = errors.New("tx: empty input")
	ErrInvalidTxType   = errors.New("tx: invalid type byte")
	ErrInvalidFieldLen = errors.New("tx: invalid field length")
	ErrTrailingBytes   = errors.New("tx: trailing bytes after transaction")
)

// DecodeTransaction decodes a transaction from its canonical wire form:
// a bare RLP list for legacy transactions, or a type byte in 0x01..0x04
// followed by the type-specific RLP payload.
func DecodeTransaction(data []byte) (*Transaction, error) {
	if len(data) == 0 {
		return nil, ErrEmptyTxInput
	}
	if data[0] >= 0xc0 {
		inner, err := decodeLegacyTx(data)
		if err != nil {
			return nil, err
		}
		return &Transaction{inner: inner}, nil
	}
	if data[0] == LegacyTxType || data[0] > SetCodeTxType {
		return nil, fmt.Errorf("%w: 0x%02x", ErrInvalidTxType, data[0])
	}

	var (
		inner TxData
		err   error
	)
	payload := data[1:]
	switch data[0] {
	case AccessListTxType:
		inner, err = decodeAccessListTx(payload)
	case DynamicFeeTxType:
		inner, err = decodeDynamicFeeTx(payload)
	case BlobTxType:
		inner, err = decodeBlobTx(payload)
	case SetCodeTxType:
		inner, err = decodeSetCodeTx(payload)
	}
	if err != nil {
		return nil, err
	}
	return &Transaction{inner: inner}, nil
}

// EncodeRLP returns the canonical wire encoding of the transaction,
// type byte included for typed variants.
func (tx *Transaction) EncodeRLP() []byte {
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		return encodeLegacyTx(inner)
	case *AccessListTx:
		return append([]byte{AccessListTxType}, encodeAccessListTx(inner)...)
	case *DynamicFeeTx:
		return append([]byte{DynamicFeeTxType}, encodeDynamicFeeTx(inner)...)
	case *BlobTx:
		return append([]byte{BlobTxType}, encodeBlobTx(inner)...)
	case *SetCodeTx:
		return append([]byte{SetCodeTxType}, encodeSetCodeTx(inner)...)
	}
	return nil
}

// Hash returns keccak256 of the wire encoding, computed once and cached.
func (tx *Transaction) Hash() types.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	h := crypto.Keccak256Hash(tx.EncodeRLP())
	tx.hash.Store(&h)
	return h
}

// --- field encoding helpers ---

func appendUint64(buf []byte, u uint64) []byte {
	enc, _ := rlp.EncodeToBytes(u)
	return append(buf, enc...)
}

// appendBig encodes a big integer as its minimal big-endian byte string
// (nil encodes like zero).
func appendBig(buf []byte, x *big.Int) []byte {
	if x == nil || x.Sign() == 0 {
		return append(buf, 0x80)
	}
	enc, _ := rlp.EncodeToBytes(x.Bytes())
	return append(buf, enc...)
}

func appendBytes(buf, b []byte) []byte {
	enc, _ := rlp.EncodeToBytes(b)
	return append(buf, enc...)
}

// appendAddressPtr encodes a recipient: the empty string stands for the
// missing To of a contract-creating transaction.
func appendAddressPtr(buf []byte, a *types.Address) []byte {
	if a == nil {
		return append(buf, 0x80)
	}
	enc, _ := rlp.EncodeToBytes(a[:])
	return append(buf, enc...)
}

func appendAccessList(buf []byte, al AccessList) []byte {
	var payload []byte
	for _, tuple := range al {
		var item []byte
		item = appendBytes(item, tuple.Address[:])
		var keys []byte
		for _, key := range tuple.StorageKeys {
			keys = appendBytes(keys, key[:])
		}
		item = append(item, rlp.WrapList(keys)...)
		payload = append(payload, rlp.WrapList(item)...)
	}
	return append(buf, rlp.WrapList(payload)...)
}

func appendAuthList(buf []byte, list []Authorization) []byte {
	var payload []byte
	for _, auth := range list {
		var item []byte
		item = appendBig(item, auth.ChainID)
		item = appendBytes(item, auth.Address[:])
		item = appendUint64(item, auth.Nonce)
		item = appendUint64(item, uint64(auth.YParity))
		item = appendBig(item, auth.R)
		item = appendBig(item, auth.S)
		payload = append(payload, rlp.WrapList(item)...)
	}
	return append(buf, rlp.WrapList(payload)...)
}

func appendBlobHashes(buf []byte, hashes []types.Hash) []byte {
	var payload []byte
	for _, h := range hashes {
		payload = appendBytes(payload, h[:])
	}
	return append(buf, rlp.WrapList(payload)...)
}

// --- field decoding helpers ---

// readBig reads a canonical RLP integer of at most 32 bytes.
func readBig(s *rlp.Stream) (*big.Int, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b) > 32 {
		return nil, rlp.ErrUint256Range
	}
	if len(b) > 1 && b[0] == 0 {
		return nil, rlp.ErrCanonInt
	}
	return new(big.Int).SetBytes(b), nil
}

// readAddressPtr reads an optional recipient: the empty string decodes
// to nil, anything other than exactly 20 bytes is rejected.
func readAddressPtr(s *rlp.Stream) (*types.Address, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	if len(b) != types.AddressLength {
		return nil, ErrInvalidFieldLen
	}
	addr := types.BytesToAddress(b)
	return &addr, nil
}

func readAddress(s *rlp.Stream) (types.Address, error) {
	b, err := s.Bytes()
	if err != nil {
		return types.Address{}, err
	}
	if len(b) != types.AddressLength {
		return types.Address{}, ErrInvalidFieldLen
	}
	return types.BytesToAddress(b), nil
}

func readHash(s *rlp.Stream) (types.Hash, error) {
	b, err := s.Bytes()
	if err != nil {
		return types.Hash{}, err
	}
	if len(b) != types.HashLength {
		return types.Hash{}, ErrInvalidFieldLen
	}
	return types.BytesToHash(b), nil
}

func readAccessList(s *rlp.Stream) (AccessList, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var al AccessList
	for {
		if _, err := s.List(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var (
			tuple AccessTuple
			err   error
		)
		if tuple.Address, err = readAddress(s); err != nil {
			return nil, err
		}
		if _, err := s.List(); err != nil {
			return nil, err
		}
		for {
			key, err := readHash(s)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
			tuple.StorageKeys = append(tuple.StorageKeys, key)
		}
		if err := s.ListEnd(); err != nil {
			return nil, err
		}
		if err := s.ListEnd(); err != nil {
			return nil, err
		}
		al = append(al, tuple)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return al, nil
}

func readAuthList(s *rlp.Stream) ([]Authorization, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var list []Authorization
	for {
		if _, err := s.List(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var (
			auth Authorization
			err  error
		)
		if auth.ChainID, err = readBig(s); err != nil {
			return nil, err
		}
		if auth.Address, err = readAddress(s); err != nil {
			return nil, err
		}
		if auth.Nonce, err = s.Uint64(); err != nil {
			return nil, err
		}
		parity, err := s.Uint64()
		if err != nil {
			return nil, err
		}
		if parity > 1 {
			return nil, ErrInvalidFieldLen
		}
		auth.YParity = uint8(parity)
		if auth.R, err = readBig(s); err != nil {
			return nil, err
		}
		if auth.S, err = readBig(s); err != nil {
			return nil, err
		}
		if err := s.ListEnd(); err != nil {
			return nil, err
		}
		list = append(list, auth)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return list, nil
}

func readBlobHashes(s *rlp.Stream) ([]types.Hash, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var hashes []types.Hash
	for {
		h, err := readHash(s)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		hashes = append(hashes, h)
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// expectEnd verifies the payload has been fully consumed.
func expectEnd(s *rlp.Stream) error {
	if _, _, err := s.Kind(); !errors.Is(err, io.EOF) {
		return ErrTrailingBytes
	}
	return nil
}

// --- per-type codecs ---

func encodeLegacyTx(tx *LegacyTx) []byte {
	var payload []byte
	payload = appendUint64(payload, tx.Nonce)
	payload = appendBig(payload, tx.GasPrice)
	payload = appendUint64(payload, tx.Gas)
	payload = appendAddressPtr(payload, tx.To)
	payload = appendBig(payload, tx.Value)
	payload = appendBytes(payload, tx.Data)
	payload = appendBig(payload, tx.V)
	payload = appendBig(payload, tx.R)
	payload = appendBig(payload, tx.S)
	return rlp.WrapList(payload)
}

func decodeLegacyTx(data []byte) (*LegacyTx, error) {
	s := rlp.NewStream(bytes.NewReader(data))
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var (
		tx  LegacyTx
		err error
	)
	if tx.Nonce, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Gas, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.To, err = readAddressPtr(s); err != nil {
		return nil, err
	}
	if tx.Value, err = readBig(s); err != nil {
		return nil, err
	}
	if data, err := s.Bytes(); err != nil {
		return nil, err
	} else {
		tx.Data = bytes.Clone(data)
	}
	if tx.V, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.R, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.S, err = readBig(s); err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &tx, expectEnd(s)
}

func encodeAccessListTx(tx *AccessListTx) []byte {
	var payload []byte
	payload = appendBig(payload, tx.ChainID)
	payload = appendUint64(payload, tx.Nonce)
	payload = appendBig(payload, tx.GasPrice)
	payload = appendUint64(payload, tx.Gas)
	payload = appendAddressPtr(payload, tx.To)
	payload = appendBig(payload, tx.Value)
	payload = appendBytes(payload, tx.Data)
	payload = appendAccessList(payload, tx.AccessList)
	payload = appendBig(payload, tx.V)
	payload = appendBig(payload, tx.R)
	payload = appendBig(payload, tx.S)
	return rlp.WrapList(payload)
}

func decodeAccessListTx(payload []byte) (*AccessListTx, error) {
	s := rlp.NewStream(bytes.NewReader(payload))
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var (
		tx  AccessListTx
		err error
	)
	if tx.ChainID, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Nonce, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.GasPrice, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Gas, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.To, err = readAddressPtr(s); err != nil {
		return nil, err
	}
	if tx.Value, err = readBig(s); err != nil {
		return nil, err
	}
	if data, err := s.Bytes(); err != nil {
		return nil, err
	} else {
		tx.Data = bytes.Clone(data)
	}
	if tx.AccessList, err = readAccessList(s); err != nil {
		return nil, err
	}
	if tx.V, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.R, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.S, err = readBig(s); err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &tx, expectEnd(s)
}

func encodeDynamicFeeTx(tx *DynamicFeeTx) []byte {
	var payload []byte
	payload = appendBig(payload, tx.ChainID)
	payload = appendUint64(payload, tx.Nonce)
	payload = appendBig(payload, tx.GasTipCap)
	payload = appendBig(payload, tx.GasFeeCap)
	payload = appendUint64(payload, tx.Gas)
	payload = appendAddressPtr(payload, tx.To)
	payload = appendBig(payload, tx.Value)
	payload = appendBytes(payload, tx.Data)
	payload = appendAccessList(payload, tx.AccessList)
	payload = appendBig(payload, tx.V)
	payload = appendBig(payload, tx.R)
	payload = appendBig(payload, tx.S)
	return rlp.WrapList(payload)
}

func decodeDynamicFeeTx(payload []byte) (*DynamicFeeTx, error) {
	s := rlp.NewStream(bytes.NewReader(payload))
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var (
		tx  DynamicFeeTx
		err error
	)
	if tx.ChainID, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Nonce, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.GasTipCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.GasFeeCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Gas, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.To, err = readAddressPtr(s); err != nil {
		return nil, err
	}
	if tx.Value, err = readBig(s); err != nil {
		return nil, err
	}
	if data, err := s.Bytes(); err != nil {
		return nil, err
	} else {
		tx.Data = bytes.Clone(data)
	}
	if tx.AccessList, err = readAccessList(s); err != nil {
		return nil, err
	}
	if tx.V, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.R, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.S, err = readBig(s); err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &tx, expectEnd(s)
}

func encodeBlobTx(tx *BlobTx) []byte {
	var payload []byte
	payload = appendBig(payload, tx.ChainID)
	payload = appendUint64(payload, tx.Nonce)
	payload = appendBig(payload, tx.GasTipCap)
	payload = appendBig(payload, tx.GasFeeCap)
	payload = appendUint64(payload, tx.Gas)
	payload = appendBytes(payload, tx.To[:])
	payload = appendBig(payload, tx.Value)
	payload = appendBytes(payload, tx.Data)
	payload = appendAccessList(payload, tx.AccessList)
	payload = appendBig(payload, tx.BlobFeeCap)
	payload = appendBlobHashes(payload, tx.BlobHashes)
	payload = appendBig(payload, tx.V)
	payload = appendBig(payload, tx.R)
	payload = appendBig(payload, tx.S)
	return rlp.WrapList(payload)
}

func decodeBlobTx(payload []byte) (*BlobTx, error) {
	s := rlp.NewStream(bytes.NewReader(payload))
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var (
		tx  BlobTx
		err error
	)
	if tx.ChainID, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Nonce, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.GasTipCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.GasFeeCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Gas, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.To, err = readAddress(s); err != nil {
		return nil, err
	}
	if tx.Value, err = readBig(s); err != nil {
		return nil, err
	}
	if data, err := s.Bytes(); err != nil {
		return nil, err
	} else {
		tx.Data = bytes.Clone(data)
	}
	if tx.AccessList, err = readAccessList(s); err != nil {
		return nil, err
	}
	if tx.BlobFeeCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.BlobHashes, err = readBlobHashes(s); err != nil {
		return nil, err
	}
	if tx.V, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.R, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.S, err = readBig(s); err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &tx, expectEnd(s)
}

func encodeSetCodeTx(tx *SetCodeTx) []byte {
	var payload []byte
	payload = appendBig(payload, tx.ChainID)
	payload = appendUint64(payload, tx.Nonce)
	payload = appendBig(payload, tx.GasTipCap)
	payload = appendBig(payload, tx.GasFeeCap)
	payload = appendUint64(payload, tx.Gas)
	payload = appendBytes(payload, tx.To[:])
	payload = appendBig(payload, tx.Value)
	payload = appendBytes(payload, tx.Data)
	payload = appendAccessList(payload, tx.AccessList)
	payload = appendAuthList(payload, tx.AuthList)
	payload = appendBig(payload, tx.V)
	payload = appendBig(payload, tx.R)
	payload = appendBig(payload, tx.S)
	return rlp.WrapList(payload)
}

func decodeSetCodeTx(payload []byte) (*SetCodeTx, error) {
	s := rlp.NewStream(bytes.NewReader(payload))
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var (
		tx  SetCodeTx
		err error
	)
	if tx.ChainID, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Nonce, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.GasTipCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.GasFeeCap, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.Gas, err = s.Uint64(); err != nil {
		return nil, err
	}
	if tx.To, err = readAddress(s); err != nil {
		return nil, err
	}
	if tx.Value, err = readBig(s); err != nil {
		return nil, err
	}
	if data, err := s.Bytes(); err != nil {
		return nil, err
	} else {
		tx.Data = bytes.Clone(data)
	}
	if tx.AccessList, err = readAccessList(s); err != nil {
		return nil, err
	}
	if tx.AuthList, err = readAuthList(s); err != nil {
		return nil, err
	}
	if tx.V, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.R, err = readBig(s); err != nil {
		return nil, err
	}
	if tx.S, err = readBig(s); err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &tx, expectEnd(s)
}
