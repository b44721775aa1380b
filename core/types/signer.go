package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/rlp"
	"github.com/daniellehrner/ethexec/types"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	ErrInvalidSignature = errors.New("tx: invalid signature")
	ErrInvalidChainID   = errors.New("tx: chain id mismatch")
)

// Signer derives signing hashes and recovers sender addresses for
// transactions bound to one chain id.
type Signer struct {
	chainID *big.Int
	sr      *crypto.SigRecover
}

func NewSigner(chainID uint64) *Signer {
	return &Signer{
		chainID: new(big.Int).SetUint64(chainID),
		sr:      crypto.NewSigRecover(),
	}
}

func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// SigningHash returns the keccak256 digest the sender signs: the
// unsigned-field RLP for legacy transactions (chain id folded in per
// EIP-155 when one is bound), or the type byte plus unsigned payload
// for typed transactions.
func (s *Signer) SigningHash(tx *Transaction) types.Hash {
	switch inner := tx.inner.(type) {
	case *LegacyTx:
		chainID := inner.chainID()
		if chainID == nil && inner.V == nil {
			// Unsigned: bind to this signer's chain.
			chainID = s.chainID
		}
		return legacySigningHash(inner, chainID)
	case *AccessListTx:
		var payload []byte
		payload = appendBig(payload, inner.ChainID)
		payload = appendUint64(payload, inner.Nonce)
		payload = appendBig(payload, inner.GasPrice)
		payload = appendUint64(payload, inner.Gas)
		payload = appendAddressPtr(payload, inner.To)
		payload = appendBig(payload, inner.Value)
		payload = appendBytes(payload, inner.Data)
		payload = appendAccessList(payload, inner.AccessList)
		return typedSigningHash(AccessListTxType, payload)
	case *DynamicFeeTx:
		var payload []byte
		payload = appendBig(payload, inner.ChainID)
		payload = appendUint64(payload, inner.Nonce)
		payload = appendBig(payload, inner.GasTipCap)
		payload = appendBig(payload, inner.GasFeeCap)
		payload = appendUint64(payload, inner.Gas)
		payload = appendAddressPtr(payload, inner.To)
		payload = appendBig(payload, inner.Value)
		payload = appendBytes(payload, inner.Data)
		payload = appendAccessList(payload, inner.AccessList)
		return typedSigningHash(DynamicFeeTxType, payload)
	case *BlobTx:
		var payload []byte
		payload = appendBig(payload, inner.ChainID)
		payload = appendUint64(payload, inner.Nonce)
		payload = appendBig(payload, inner.GasTipCap)
		payload = appendBig(payload, inner.GasFeeCap)
		payload = appendUint64(payload, inner.Gas)
		payload = appendBytes(payload, inner.To[:])
		payload = appendBig(payload, inner.Value)
		payload = appendBytes(payload, inner.Data)
		payload = appendAccessList(payload, inner.AccessList)
		payload = appendBig(payload, inner.BlobFeeCap)
		payload = appendBlobHashes(payload, inner.BlobHashes)
		return typedSigningHash(BlobTxType, payload)
	case *SetCodeTx:
		var payload []byte
		payload = appendBig(payload, inner.ChainID)
		payload = appendUint64(payload, inner.Nonce)
		payload = appendBig(payload, inner.GasTipCap)
		payload = appendBig(payload, inner.GasFeeCap)
		payload = appendUint64(payload, inner.Gas)
		payload = appendBytes(payload, inner.To[:])
		payload = appendBig(payload, inner.Value)
		payload = appendBytes(payload, inner.Data)
		payload = appendAccessList(payload, inner.AccessList)
		payload = appendAuthList(payload, inner.AuthList)
		return typedSigningHash(SetCodeTxType, payload)
	}
	return types.Hash{}
}

func legacySigningHash(tx *LegacyTx, chainID *big.Int) types.Hash {
	var payload []byte
	payload = appendUint64(payload, tx.Nonce)
	payload = appendBig(payload, tx.GasPrice)
	payload = appendUint64(payload, tx.Gas)
	payload = appendAddressPtr(payload, tx.To)
	payload = appendBig(payload, tx.Value)
	payload = appendBytes(payload, tx.Data)
	if chainID != nil && chainID.Sign() > 0 {
		payload = appendBig(payload, chainID)
		payload = append(payload, 0x80, 0x80)
	}
	return crypto.Keccak256Hash(rlp.WrapList(payload))
}

func typedSigningHash(txType byte, payload []byte) types.Hash {
	return crypto.Keccak256Hash([]byte{txType}, rlp.WrapList(payload))
}

// Sender recovers and caches the transaction's sender. A typed
// transaction's chain id must match the signer's; a legacy transaction
// may be pre-EIP-155 and valid on any chain.
func (s *Signer) Sender(tx *Transaction) (types.Address, error) {
	if addr, ok := tx.CachedSender(); ok {
		return addr, nil
	}
	v, r, sv := tx.RawSignatureValues()
	if v == nil || r == nil || sv == nil {
		return types.Address{}, ErrInvalidSignature
	}

	var (
		addr types.Address
		err  error
	)
	if tx.Type() == LegacyTxType {
		chainID := tx.ChainID()
		hash := legacySigningHash(tx.inner.(*LegacyTx), chainID)
		if chainID == nil {
			// Pre-EIP-155: V is 27 or 28.
			addr, err = s.recoverRaw(hash, r, sv, v)
		} else {
			if chainID.Cmp(s.chainID) != 0 {
				return types.Address{}, fmt.Errorf("%w: tx %s, signer %s", ErrInvalidChainID, chainID, s.chainID)
			}
			addr, err = s.sr.RecoverEIP155Sender(hash[:], v, r, sv, s.chainID)
		}
	} else {
		if cid := tx.ChainID(); cid != nil && cid.Cmp(s.chainID) != 0 {
			return types.Address{}, fmt.Errorf("%w: tx %s, signer %s", ErrInvalidChainID, cid, s.chainID)
		}
		if !v.IsUint64() || v.Uint64() > 1 {
			return types.Address{}, ErrInvalidSignature
		}
		hash := s.SigningHash(tx)
		addr, err = s.recoverParity(hash, r, sv, byte(v.Uint64()))
	}
	if err != nil {
		return types.Address{}, err
	}
	tx.SetSender(addr)
	return addr, nil
}

// recoverRaw handles 27/28-style V values.
func (s *Signer) recoverRaw(hash types.Hash, r, sv, v *big.Int) (types.Address, error) {
	if !v.IsUint64() || (v.Uint64() != 27 && v.Uint64() != 28) {
		return types.Address{}, ErrInvalidSignature
	}
	return s.recoverParity(hash, r, sv, byte(v.Uint64()-27))
}

func (s *Signer) recoverParity(hash types.Hash, r, sv *big.Int, parity byte) (types.Address, error) {
	sig := make([]byte, 65)
	rb, sb := r.Bytes(), sv.Bytes()
	if len(rb) > 32 || len(sb) > 32 {
		return types.Address{}, ErrInvalidSignature
	}
	copy(sig[32-len(rb):32], rb)
	copy(sig[64-len(sb):64], sb)
	sig[64] = parity
	addr, err := s.sr.SignatureToAddressBytes(hash[:], sig)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return addr, nil
}

// AuthorizationSigningHash is the digest an EIP-7702 authority signs:
// keccak256(0x05 || rlp([chain_id, address, nonce])).
func AuthorizationSigningHash(auth Authorization) types.Hash {
	var payload []byte
	payload = appendBig(payload, auth.ChainID)
	payload = appendBytes(payload, auth.Address[:])
	payload = appendUint64(payload, auth.Nonce)
	return crypto.Keccak256Hash([]byte{0x05}, rlp.WrapList(payload))
}

// RecoverAuthority recovers the signer of an EIP-7702 authorization.
func (s *Signer) RecoverAuthority(auth Authorization) (types.Address, error) {
	hash := AuthorizationSigningHash(auth)
	return s.recoverParity(hash, auth.R, auth.S, auth.YParity)
}

// SignTx signs an unsigned transaction with the given private key and
// returns a fresh, signed copy. Legacy transactions are signed with
// EIP-155 chain id protection.
func (s *Signer) SignTx(tx *Transaction, key *secp256k1.PrivateKey) (*Transaction, error) {
	hash := s.SigningHash(tx)
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	sv := new(big.Int).SetBytes(sig[32:64])
	parity := sig[64]

	inner := tx.inner.copy()
	if legacy, ok := inner.(*LegacyTx); ok {
		legacy.setSignatureValues(crypto.EncodeVEIP155(parity, s.chainID), r, sv)
	} else {
		inner.setSignatureValues(new(big.Int).SetUint64(uint64(parity)), r, sv)
	}
	return &Transaction{inner: inner}, nil
}
