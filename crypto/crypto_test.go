package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestKeccak256EmptyInput(t *testing.T) {
	got := Keccak256()
	want, _ := hex.DecodeString("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if !bytes.Equal(got, want) {
		t.Fatalf("keccak256(\"\") = %x, want %x", got, want)
	}
}

func TestSignAndRecoverRoundTrip(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	hash := Keccak256([]byte("test message"))

	sig, err := Sign(hash, priv)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 65 {
		t.Fatalf("expected 65-byte signature, got %d", len(sig))
	}

	pub, err := Ecrecover(hash, sig)
	if err != nil {
		t.Fatal(err)
	}

	wantAddr := PubkeyToAddress(priv.PubKey().SerializeUncompressed())
	gotAddr := PubkeyToAddress(pub)
	if gotAddr != wantAddr {
		t.Fatalf("recovered address mismatch: got %s, want %s", gotAddr, wantAddr)
	}
}

func TestEcRecoverPrecompileMatchesSign(t *testing.T) {
	priv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	hash := Keccak256([]byte("precompile test"))
	sig, err := Sign(hash, priv)
	if err != nil {
		t.Fatal(err)
	}

	cs, err := ParseCompactSignature(sig)
	if err != nil {
		t.Fatal(err)
	}
	cs.NormalizeS()

	input := make([]byte, 128)
	copy(input[0:32], hash)
	input[63] = EncodeVLegacy(cs.V)
	copy(input[64:96], cs.R[:])
	copy(input[96:128], cs.S[:])

	sr := NewSigRecover()
	out := sr.EcRecoverPrecompile(input)
	if out == nil {
		t.Fatal("expected non-nil recovery output")
	}

	wantAddr := PubkeyToAddress(priv.PubKey().SerializeUncompressed())
	gotAddr := BytesToAddr(out)
	if gotAddr != wantAddr {
		t.Fatalf("precompile address mismatch: got %s, want %s", gotAddr, wantAddr)
	}
}

func BytesToAddr(b []byte) (a [20]byte) {
	copy(a[:], b[12:32])
	return a
}
