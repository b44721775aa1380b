package rlp

import (
	"bytes"
	"testing"

	"github.com/daniellehrner/ethexec/uint256"
)

func TestEncodeEmptyString(t *testing.T) {
	got, err := EncodeToBytes("")
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x80}; !bytes.Equal(got, want) {
		t.Fatalf("empty string: got %x, want %x", got, want)
	}
}

func TestEncodeDog(t *testing.T) {
	got, err := EncodeToBytes("dog")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x83, 0x64, 0x6f, 0x67}
	if !bytes.Equal(got, want) {
		t.Fatalf("\"dog\": got %x, want %x", got, want)
	}
}

func TestEncodeLongString(t *testing.T) {
	s := "Lorem ipsum dolor sit amet, consectetur adipisicing elit"
	got, err := EncodeToBytes(s)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0xb8 || got[1] != 0x38 {
		t.Fatalf("long string header: got %x %x, want 0xb8 0x38", got[0], got[1])
	}
	if !bytes.Equal(got[2:], []byte(s)) {
		t.Fatal("long string data mismatch")
	}
}

func TestEncodeUint(t *testing.T) {
	tests := []struct {
		name string
		val  uint64
		want []byte
	}{
		{"0", 0, []byte{0x80}},
		{"15", 15, []byte{0x0f}},
		{"127", 127, []byte{0x7f}},
		{"128", 128, []byte{0x81, 0x80}},
		{"256", 256, []byte{0x82, 0x01, 0x00}},
		{"1024", 1024, []byte{0x82, 0x04, 0x00}},
	}
	for _, tt := range tests {
		got, err := EncodeToBytes(tt.val)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !bytes.Equal(got, tt.want) {
			t.Fatalf("%s: got %x, want %x", tt.name, got, tt.want)
		}
	}
}

func TestEncodeUint256(t *testing.T) {
	zero := uint256.Zero()
	got, err := EncodeToBytes(zero)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x80}; !bytes.Equal(got, want) {
		t.Fatalf("zero uint256: got %x, want %x", got, want)
	}

	v := uint256.NewFromUint64(1024)
	got, err = EncodeToBytes(v)
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0x82, 0x04, 0x00}; !bytes.Equal(got, want) {
		t.Fatalf("uint256(1024): got %x, want %x", got, want)
	}
}

func TestEncodeEmptyList(t *testing.T) {
	got, err := EncodeToBytes([]uint64{})
	if err != nil {
		t.Fatal(err)
	}
	if want := []byte{0xc0}; !bytes.Equal(got, want) {
		t.Fatalf("empty list: got %x, want %x", got, want)
	}
}

func TestEncodeListOfStrings(t *testing.T) {
	got, err := EncodeToBytes([]string{"cat", "dog"})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xc8, 0x83, 'c', 'a', 't', 0x83, 'd', 'o', 'g'}
	if !bytes.Equal(got, want) {
		t.Fatalf("list: got %x, want %x", got, want)
	}
}

func TestDecodeRoundTripUint64(t *testing.T) {
	vals := []uint64{0, 1, 127, 128, 255, 256, 65535, 1 << 40}
	for _, v := range vals {
		enc, err := EncodeToBytes(v)
		if err != nil {
			t.Fatal(err)
		}
		s := newByteStream(enc)
		got, err := s.Uint64()
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestDecodeRoundTripUint256(t *testing.T) {
	vals := []*uint256.Int{
		uint256.Zero(),
		uint256.One(),
		uint256.NewFromUint64(1 << 40),
	}
	for _, v := range vals {
		enc, err := EncodeToBytes(v)
		if err != nil {
			t.Fatal(err)
		}
		s := newByteStream(enc)
		got, err := s.Uint256()
		if err != nil {
			t.Fatalf("decode %s: %v", v, err)
		}
		if got.Cmp(v) != 0 {
			t.Fatalf("round trip %s: got %s", v, got)
		}
	}
}

func TestDecodeListRoundTrip(t *testing.T) {
	type pair struct {
		A uint64
		B []byte
	}
	in := pair{A: 42, B: []byte("hello")}
	enc, err := EncodeToBytes(in)
	if err != nil {
		t.Fatal(err)
	}
	var out pair
	if err := DecodeBytes(enc, &out); err != nil {
		t.Fatal(err)
	}
	if out.A != in.A || !bytes.Equal(out.B, in.B) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestDecodeRejectsNonCanonicalInt(t *testing.T) {
	// 0x82 0x00 0x01 encodes 1 with a leading zero byte, non-canonical.
	s := newByteStream([]byte{0x82, 0x00, 0x01})
	if _, err := s.Uint64(); err != ErrCanonInt {
		t.Fatalf("expected ErrCanonInt, got %v", err)
	}
}

func TestDecodeRejectsNonCanonicalSingleByte(t *testing.T) {
	// 0x81 0x01 should have been encoded as the single byte 0x01.
	s := newByteStream([]byte{0x81, 0x01})
	if _, err := s.Bytes(); err != ErrCanonSize {
		t.Fatalf("expected ErrCanonSize, got %v", err)
	}
}

func TestWrapList(t *testing.T) {
	a, _ := EncodeToBytes(uint64(1))
	b, _ := EncodeToBytes(uint64(2))
	got := WrapList(append(append([]byte{}, a...), b...))
	want := []byte{0xc2, 0x01, 0x02}
	if !bytes.Equal(got, want) {
		t.Fatalf("WrapList: got %x, want %x", got, want)
	}
}
