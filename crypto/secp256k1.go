package crypto

import (
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/daniellehrner/ethexec/types"
)

// secp256k1N is the order of the secp256k1 curve.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)

// secp256k1halfN is half the order, used for the Homestead low-S check.
var secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)

// GenerateKey generates a new secp256k1 private key.
func GenerateKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// Sign calculates a 65-byte Ethereum-style signature (R || S || V, V in
// {0,1}) over a 32-byte hash.
func Sign(hash []byte, priv *secp256k1.PrivateKey) ([]byte, error) {
	if len(hash) != 32 {
		return nil, errors.New("crypto: hash must be 32 bytes")
	}
	compact := dcecdsa.SignCompact(priv, hash, false)
	// compact = recoveryCode(1) || R(32) || S(32); recoveryCode = 27+recid
	// for an uncompressed key. Re-order to Ethereum's R || S || V.
	sig := make([]byte, 65)
	copy(sig[0:32], compact[1:33])
	copy(sig[32:64], compact[33:65])
	sig[64] = compact[0] - 27
	return sig, nil
}

// Ecrecover recovers the uncompressed public key (65 bytes, 0x04 || X
// || Y) from hash and a 65-byte [R || S || V] signature.
func Ecrecover(hash, sig []byte) ([]byte, error) {
	pub, err := sigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

// SigToPub recovers the public key from hash and signature, returning
// the uncompressed encoding (callers that need curve coordinates should
// use Ecrecover and slice the result).
func SigToPub(hash, sig []byte) ([]byte, error) {
	pub, err := sigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

func sigToPub(hash, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != 65 {
		return nil, errors.New("crypto: signature must be 65 bytes [R || S || V]")
	}
	if len(hash) != 32 {
		return nil, errors.New("crypto: hash must be 32 bytes")
	}
	v := sig[64]
	if v > 3 {
		return nil, errors.New("crypto: invalid recovery id")
	}
	compact := make([]byte, 65)
	compact[0] = 27 + v
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])
	pub, _, err := dcecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// ValidateSignature verifies that a 64-byte (R || S, no V) signature is
// valid for the given uncompressed or compressed public key and 32-byte
// hash.
func ValidateSignature(pubkey, hash, sig []byte) bool {
	if len(sig) != 64 || len(hash) != 32 {
		return false
	}
	pub, err := secp256k1.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	var r, s secp256k1.ModNScalar
	if r.SetByteSlice(sig[:32]) {
		return false
	}
	if s.SetByteSlice(sig[32:64]) {
		return false
	}
	signature := dcecdsa.NewSignature(&r, &s)
	return signature.Verify(hash, pub)
}

// ValidateSignatureValues checks r, s, v for validity per Homestead
// rules. If homestead is true, s must lie in the lower half of the
// curve order (EIP-2, preventing signature malleability).
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r == nil || s == nil {
		return false
	}
	if v > 1 {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	if r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return false
	}
	if homestead && s.Cmp(secp256k1halfN) > 0 {
		return false
	}
	return true
}

// PubkeyToAddress derives the Ethereum address from an uncompressed
// public key (65 bytes, 0x04 || X || Y): Keccak256(X || Y)[12:].
func PubkeyToAddress(pubUncompressed []byte) types.Address {
	if len(pubUncompressed) != 65 || pubUncompressed[0] != 0x04 {
		return types.Address{}
	}
	hash := Keccak256(pubUncompressed[1:])
	return types.BytesToAddress(hash[12:])
}

// CompressPubkey compresses a 65-byte uncompressed public key to 33
// bytes.
func CompressPubkey(pubUncompressed []byte) ([]byte, error) {
	pub, err := secp256k1.ParsePubKey(pubUncompressed)
	if err != nil {
		return nil, err
	}
	return pub.SerializeCompressed(), nil
}

// DecompressPubkey decompresses a 33-byte compressed public key to its
// 65-byte uncompressed form.
func DecompressPubkey(pubCompressed []byte) ([]byte, error) {
	if len(pubCompressed) != 33 {
		return nil, errors.New("crypto: invalid compressed public key length")
	}
	pub, err := secp256k1.ParsePubKey(pubCompressed)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}
