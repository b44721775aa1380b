package types

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/daniellehrner/ethexec/crypto"
	"github.com/daniellehrner/ethexec/types"
)

func addrPtr(s string) *types.Address {
	a := types.HexToAddress(s)
	return &a
}

func TestLegacyTxRoundTrip(t *testing.T) {
	tx := NewTransaction(&LegacyTx{
		Nonce:    7,
		GasPrice: big.NewInt(1_000_000_000),
		Gas:      21_000,
		To:       addrPtr("0x095e7baea6a6c7c4c2dfeb977efac326af552d87"),
		Value:    big.NewInt(1_000_000),
		Data:     []byte{0xca, 0xfe},
		V:        big.NewInt(37),
		R:        big.NewInt(11111),
		S:        big.NewInt(22222),
	})
	enc := tx.EncodeRLP()
	dec, err := DecodeTransaction(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.Type() != LegacyTxType || dec.Nonce() != 7 || dec.Gas() != 21_000 {
		t.Fatalf("fields mismatch: %+v", dec)
	}
	if dec.GasPrice().Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("gas price = %s", dec.GasPrice())
	}
	if *dec.To() != *tx.To() {
		t.Fatalf("to mismatch")
	}
	if !bytes.Equal(dec.Data(), tx.Data()) {
		t.Fatalf("data mismatch")
	}
	if !bytes.Equal(dec.EncodeRLP(), enc) {
		t.Fatalf("re-encoding differs")
	}
	if dec.ChainID().Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("EIP-155 V=37 should derive chain id 1, got %s", dec.ChainID())
	}
}

func TestLegacyTxPreEIP155ChainID(t *testing.T) {
	tx := NewTransaction(&LegacyTx{
		GasPrice: big.NewInt(1), Gas: 21_000, Value: big.NewInt(0),
		V: big.NewInt(27), R: big.NewInt(1), S: big.NewInt(1),
	})
	if tx.ChainID() != nil {
		t.Fatalf("pre-EIP-155 tx must carry no chain id, got %s", tx.ChainID())
	}
}

func TestDynamicFeeTxRoundTrip(t *testing.T) {
	tx := NewTransaction(&DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     3,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(100),
		Gas:       50_000,
		To:        addrPtr("0x095e7baea6a6c7c4c2dfeb977efac326af552d87"),
		Value:     big.NewInt(5),
		Data:      nil,
		AccessList: AccessList{{
			Address:     types.HexToAddress("0x0000000000000000000000000000000000001337"),
			StorageKeys: []types.Hash{{31: 1}, {31: 2}},
		}},
		V: big.NewInt(1), R: big.NewInt(3), S: big.NewInt(4),
	})
	enc := tx.EncodeRLP()
	if enc[0] != DynamicFeeTxType {
		t.Fatalf("envelope type byte = %02x", enc[0])
	}
	dec, err := DecodeTransaction(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.GasTipCap().Cmp(big.NewInt(2)) != 0 || dec.GasFeeCap().Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("fee caps mismatch")
	}
	al := dec.AccessList()
	if len(al) != 1 || al.StorageKeys() != 2 {
		t.Fatalf("access list mismatch: %+v", al)
	}
	if !bytes.Equal(dec.EncodeRLP(), enc) {
		t.Fatalf("re-encoding differs")
	}
}

func TestContractCreationTxHasNilTo(t *testing.T) {
	tx := NewTransaction(&DynamicFeeTx{
		ChainID: big.NewInt(1), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(1),
		Gas: 60_000, Value: big.NewInt(0), Data: []byte{0x60, 0x00},
		V: big.NewInt(0), R: big.NewInt(1), S: big.NewInt(1),
	})
	dec, err := DecodeTransaction(tx.EncodeRLP())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if dec.To() != nil {
		t.Fatalf("creation tx decoded with To = %s", dec.To())
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown type", []byte{0x05, 0xc0}},
		{"type byte zero", []byte{0x00, 0xc0}},
		{"not a list", []byte{0x82, 0x01, 0x02}},
		{"truncated list", []byte{0xc8, 0x01}},
	}
	for _, tc := range cases {
		if _, err := DecodeTransaction(tc.data); err == nil {
			t.Errorf("%s: decode accepted invalid input", tc.name)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	tx := NewTransaction(&LegacyTx{
		GasPrice: big.NewInt(1), Gas: 21_000, Value: big.NewInt(0),
		V: big.NewInt(27), R: big.NewInt(1), S: big.NewInt(1),
	})
	enc := append(tx.EncodeRLP(), 0x00)
	if _, err := DecodeTransaction(enc); !errors.Is(err, ErrTrailingBytes) {
		t.Fatalf("err = %v, want trailing bytes", err)
	}
}

func TestSignAndRecoverAllTypes(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub := key.PubKey().SerializeUncompressed()
	want := crypto.PubkeyToAddress(pub)
	signer := NewSigner(1)

	to := addrPtr("0x095e7baea6a6c7c4c2dfeb977efac326af552d87")
	txs := []*Transaction{
		NewTransaction(&LegacyTx{GasPrice: big.NewInt(10), Gas: 21_000, To: to, Value: big.NewInt(1)}),
		NewTransaction(&AccessListTx{ChainID: big.NewInt(1), GasPrice: big.NewInt(10), Gas: 21_000, To: to, Value: big.NewInt(1)}),
		NewTransaction(&DynamicFeeTx{ChainID: big.NewInt(1), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(10), Gas: 21_000, To: to, Value: big.NewInt(1)}),
		NewTransaction(&BlobTx{ChainID: big.NewInt(1), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(10), Gas: 21_000, To: *to, Value: big.NewInt(1), BlobFeeCap: big.NewInt(1), BlobHashes: []types.Hash{{0: 0x01}}}),
		NewTransaction(&SetCodeTx{ChainID: big.NewInt(1), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(10), Gas: 60_000, To: *to, Value: big.NewInt(0)}),
	}
	for _, tx := range txs {
		signed, err := signer.SignTx(tx, key)
		if err != nil {
			t.Fatalf("type %d: sign failed: %v", tx.Type(), err)
		}
		// Round-trip through the wire form before recovering.
		dec, err := DecodeTransaction(signed.EncodeRLP())
		if err != nil {
			t.Fatalf("type %d: decode failed: %v", tx.Type(), err)
		}
		got, err := signer.Sender(dec)
		if err != nil {
			t.Fatalf("type %d: recover failed: %v", tx.Type(), err)
		}
		if got != want {
			t.Fatalf("type %d: sender = %s, want %s", tx.Type(), got, want)
		}
	}
}

func TestSenderRejectsWrongChain(t *testing.T) {
	key, _ := crypto.GenerateKey()
	signer := NewSigner(1)
	tx := NewTransaction(&DynamicFeeTx{
		ChainID: big.NewInt(5), GasTipCap: big.NewInt(1), GasFeeCap: big.NewInt(10),
		Gas: 21_000, Value: big.NewInt(0),
	})
	signed, err := NewSigner(5).SignTx(tx, key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := signer.Sender(signed); !errors.Is(err, ErrInvalidChainID) {
		t.Fatalf("err = %v, want chain id mismatch", err)
	}
}

func TestAuthorizationRecovery(t *testing.T) {
	key, _ := crypto.GenerateKey()
	pub := key.PubKey().SerializeUncompressed()
	want := crypto.PubkeyToAddress(pub)

	auth := Authorization{
		ChainID: big.NewInt(1),
		Address: types.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Nonce:   5,
	}
	hash := AuthorizationSigningHash(auth)
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		t.Fatal(err)
	}
	auth.R = new(big.Int).SetBytes(sig[:32])
	auth.S = new(big.Int).SetBytes(sig[32:64])
	auth.YParity = sig[64]

	got, err := NewSigner(1).RecoverAuthority(auth)
	if err != nil {
		t.Fatalf("recover failed: %v", err)
	}
	if got != want {
		t.Fatalf("authority = %s, want %s", got, want)
	}
}

func TestReceiptRootEmpty(t *testing.T) {
	if root := DeriveReceiptsRoot(nil); root != types.EmptyRootHash {
		t.Fatalf("empty receipts root = %s", root)
	}
	if root := DeriveTxsRoot(nil); root != types.EmptyRootHash {
		t.Fatalf("empty txs root = %s", root)
	}
}

func TestEffectiveGasPrice(t *testing.T) {
	to := addrPtr("0x095e7baea6a6c7c4c2dfeb977efac326af552d87")
	legacy := NewTransaction(&LegacyTx{GasPrice: big.NewInt(50), Gas: 21_000, To: to, Value: big.NewInt(0)})
	if got := legacy.EffectiveGasPrice(big.NewInt(10)); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("legacy effective price = %s, want 50", got)
	}

	dyn := NewTransaction(&DynamicFeeTx{
		ChainID: big.NewInt(1), GasTipCap: big.NewInt(2), GasFeeCap: big.NewInt(100),
		Gas: 21_000, To: to, Value: big.NewInt(0),
	})
	if got := dyn.EffectiveGasPrice(big.NewInt(10)); got.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("dynamic effective price = %s, want baseFee+tip = 12", got)
	}
	capped := NewTransaction(&DynamicFeeTx{
		ChainID: big.NewInt(1), GasTipCap: big.NewInt(50), GasFeeCap: big.NewInt(30),
		Gas: 21_000, To: to, Value: big.NewInt(0),
	})
	if got := capped.EffectiveGasPrice(big.NewInt(10)); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("capped effective price = %s, want feeCap = 30", got)
	}
}
