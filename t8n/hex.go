// Package t8n implements the state transition tool's input and output
// channels: the alloc/env/txs JSON schemas, the transition driver, and
// the result/alloc serialization.
package t8n

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// HexUint64 is a uint64 that marshals as a 0x-prefixed hex quantity.
type HexUint64 uint64

func (u HexUint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", uint64(u)))
}

func (u *HexUint64) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	v, err := parseUint64(s)
	if err != nil {
		return err
	}
	*u = HexUint64(v)
	return nil
}

// HexBig is a big integer that marshals as a 0x-prefixed hex quantity.
type HexBig big.Int

func (b *HexBig) Big() *big.Int {
	if b == nil {
		return nil
	}
	return (*big.Int)(b)
}

func NewHexBig(x *big.Int) *HexBig {
	if x == nil {
		return nil
	}
	return (*HexBig)(new(big.Int).Set(x))
}

func (b HexBig) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", (*big.Int)(&b)))
}

func (b *HexBig) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	v, err := parseBig(s)
	if err != nil {
		return err
	}
	(*big.Int)(b).Set(v)
	return nil
}

// HexBytes is a byte slice that marshals as 0x-prefixed hex data.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal("0x" + hex.EncodeToString(b))
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	s, err := unquote(data)
	if err != nil {
		return err
	}
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex data %q: %w", s, err)
	}
	*b = decoded
	return nil
}

func unquote(data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	return s, nil
}

// parseUint64 accepts 0x-prefixed hex and plain decimal quantities.
func parseUint64(s string) (uint64, error) {
	if rest, ok := strip0x(s); ok {
		return strconv.ParseUint(rest, 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseBig(s string) (*big.Int, error) {
	var (
		v  *big.Int
		ok bool
	)
	if rest, isHex := strip0x(s); isHex {
		v, ok = new(big.Int).SetString(rest, 16)
	} else {
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return v, nil
}

func strip0x(s string) (string, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}
