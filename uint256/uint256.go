// Package uint256 implements fixed-width 256-bit unsigned integer
// arithmetic with EVM semantics: division and modulo by zero return zero
// rather than trapping, and all arithmetic wraps modulo 2^256.
package uint256

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Int is a 256-bit unsigned integer stored as four 64-bit limbs in
// little-endian limb order: limbs[0] holds the least significant 64 bits.
// External byte representations (RLP, hex, EVM memory) are big-endian;
// use FromBytes/Bytes for that boundary.
type Int struct {
	limbs [4]uint64
}

// Zero returns the zero value.
func Zero() *Int { return &Int{} }

// One returns the value 1.
func One() *Int { return NewFromUint64(1) }

// NewFromUint64 constructs an Int from a uint64.
func NewFromUint64(v uint64) *Int {
	return &Int{limbs: [4]uint64{v, 0, 0, 0}}
}

// NewFromLimbs constructs an Int from four little-endian limbs.
func NewFromLimbs(l0, l1, l2, l3 uint64) *Int {
	return &Int{limbs: [4]uint64{l0, l1, l2, l3}}
}

// Set copies src into z and returns z.
func (z *Int) Set(src *Int) *Int {
	z.limbs = src.limbs
	return z
}

// Clone returns a new Int with the same value.
func (z *Int) Clone() *Int {
	c := *z
	return &c
}

// IsZero reports whether z is zero.
func (z *Int) IsZero() bool {
	return z.limbs[0] == 0 && z.limbs[1] == 0 && z.limbs[2] == 0 && z.limbs[3] == 0
}

// Eq reports whether z equals x.
func (z *Int) Eq(x *Int) bool {
	return z.limbs == x.limbs
}

// Cmp returns -1, 0 or 1 depending on whether z < x, z == x or z > x,
// treating both operands as unsigned.
func (z *Int) Cmp(x *Int) int {
	for i := 3; i >= 0; i-- {
		if z.limbs[i] != x.limbs[i] {
			if z.limbs[i] < x.limbs[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Lt reports whether z < x (unsigned).
func (z *Int) Lt(x *Int) bool { return z.Cmp(x) < 0 }

// Gt reports whether z > x (unsigned).
func (z *Int) Gt(x *Int) bool { return z.Cmp(x) > 0 }

// FitsUint64 reports whether z fits losslessly into a uint64.
func (z *Int) FitsUint64() bool {
	return z.limbs[1] == 0 && z.limbs[2] == 0 && z.limbs[3] == 0
}

// Uint64 returns the low 64 bits. Callers should check FitsUint64 first
// if truncation would be incorrect.
func (z *Int) Uint64() uint64 {
	return z.limbs[0]
}

// BitLen returns the number of bits required to represent z, 0 for zero.
func (z *Int) BitLen() int {
	for i := 3; i >= 0; i-- {
		if z.limbs[i] != 0 {
			return i*64 + bits.Len64(z.limbs[i])
		}
	}
	return 0
}

// ByteLen returns the number of bytes required to represent z.
func (z *Int) ByteLen() int {
	return (z.BitLen() + 7) / 8
}

// Add sets z = x + y mod 2^256 and returns z.
func (z *Int) Add(x, y *Int) *Int {
	var carry uint64
	var r [4]uint64
	r[0], carry = bits.Add64(x.limbs[0], y.limbs[0], 0)
	r[1], carry = bits.Add64(x.limbs[1], y.limbs[1], carry)
	r[2], carry = bits.Add64(x.limbs[2], y.limbs[2], carry)
	r[3], _ = bits.Add64(x.limbs[3], y.limbs[3], carry)
	z.limbs = r
	return z
}

// Sub sets z = x - y mod 2^256 and returns z.
func (z *Int) Sub(x, y *Int) *Int {
	var borrow uint64
	var r [4]uint64
	r[0], borrow = bits.Sub64(x.limbs[0], y.limbs[0], 0)
	r[1], borrow = bits.Sub64(x.limbs[1], y.limbs[1], borrow)
	r[2], borrow = bits.Sub64(x.limbs[2], y.limbs[2], borrow)
	r[3], _ = bits.Sub64(x.limbs[3], y.limbs[3], borrow)
	z.limbs = r
	return z
}

// Neg sets z = -x mod 2^256 (two's complement negation) and returns z.
func (z *Int) Neg(x *Int) *Int {
	return z.Sub(Zero(), x)
}

// Mul sets z = x * y mod 2^256 and returns z.
func (z *Int) Mul(x, y *Int) *Int {
	hi, lo := mul512(x, y)
	_ = hi
	z.limbs = lo.limbs
	return z
}

// quoRem computes x/y and x%y using schoolbook binary long division over
// the limb representation, treating both operands as unsigned 256-bit
// integers. Returns (quotient, remainder).
func quoRem(x, y *Int) (*Int, *Int) {
	if y.IsZero() {
		return Zero(), Zero()
	}
	if x.Cmp(y) < 0 {
		return Zero(), x.Clone()
	}
	quotient := Zero()
	remainder := Zero()
	for i := x.BitLen() - 1; i >= 0; i-- {
		overflow := shlOneInPlace(remainder)
		if bitAt(x, i) {
			remainder.limbs[0] |= 1
		}
		// If the shift overflowed past 256 bits, the true remainder is
		// >= 2^256 > y, so a subtraction is always due regardless of
		// what the truncated limbs compare as.
		if overflow || remainder.Cmp(y) >= 0 {
			remainder.Sub(remainder, y)
			setBit(quotient, i)
		}
	}
	return quotient, remainder
}

func bitAt(x *Int, i int) bool {
	return (x.limbs[i/64]>>(uint(i)%64))&1 == 1
}

func setBit(x *Int, i int) {
	x.limbs[i/64] |= 1 << (uint(i) % 64)
}

// shlOneInPlace shifts x left by one bit in place and reports whether a
// bit was carried out past the top of the 256-bit width.
func shlOneInPlace(x *Int) bool {
	carry := uint64(0)
	for i := 0; i < 4; i++ {
		nextCarry := x.limbs[i] >> 63
		x.limbs[i] = (x.limbs[i] << 1) | carry
		carry = nextCarry
	}
	return carry == 1
}

// Div sets z = x / y (unsigned). Per EVM semantics, division by zero
// yields zero rather than an error.
func (z *Int) Div(x, y *Int) *Int {
	q, _ := quoRem(x, y)
	z.Set(q)
	return z
}

// Mod sets z = x % y (unsigned). Per EVM semantics, modulo by zero
// yields zero rather than an error.
func (z *Int) Mod(x, y *Int) *Int {
	_, r := quoRem(x, y)
	z.Set(r)
	return z
}

// sign returns true if bit 255 (the sign bit under two's-complement
// interpretation) is set.
func sign(x *Int) bool {
	return x.limbs[3]>>63 == 1
}

// absSigned returns the two's-complement absolute value of x along with
// whether x was originally negative.
func absSigned(x *Int) (*Int, bool) {
	if !sign(x) {
		return x.Clone(), false
	}
	return Zero().Neg(x), true
}

// SDiv sets z = x / y using two's-complement signed division. Division
// by zero yields zero. math.MinInt256 / -1 wraps back to math.MinInt256,
// matching EVM's modular semantics.
func (z *Int) SDiv(x, y *Int) *Int {
	if y.IsZero() {
		return z.Set(Zero())
	}
	ax, xNeg := absSigned(x)
	ay, yNeg := absSigned(y)
	q := Zero().Div(ax, ay)
	if xNeg != yNeg {
		q = Zero().Neg(q)
	}
	return z.Set(q)
}

// SMod sets z = x % y using two's-complement signed modulo, sign
// following the dividend. Modulo by zero yields zero.
func (z *Int) SMod(x, y *Int) *Int {
	if y.IsZero() {
		return z.Set(Zero())
	}
	ax, xNeg := absSigned(x)
	ay, _ := absSigned(y)
	r := Zero().Mod(ax, ay)
	if xNeg && !r.IsZero() {
		r = Zero().Neg(r)
	}
	return z.Set(r)
}

// AddMod sets z = (x + y) % m, computed without intermediate overflow
// loss, per EIP ADDMOD semantics. Modulo by zero yields zero.
func (z *Int) AddMod(x, y, m *Int) *Int {
	if m.IsZero() {
		return z.Set(Zero())
	}
	sum, carryOut := addWithCarry(x, y)
	if carryOut {
		// Reduce the 257-bit sum (carry, sum) mod m via one more
		// division step: (carry<<256 + sum) mod m.
		rem := mod257(carryOut, sum, m)
		return z.Set(rem)
	}
	return z.Mod(sum, m)
}

func addWithCarry(x, y *Int) (*Int, bool) {
	var carry uint64
	var r [4]uint64
	r[0], carry = bits.Add64(x.limbs[0], y.limbs[0], 0)
	r[1], carry = bits.Add64(x.limbs[1], y.limbs[1], carry)
	r[2], carry = bits.Add64(x.limbs[2], y.limbs[2], carry)
	r[3], carry = bits.Add64(x.limbs[3], y.limbs[3], carry)
	return &Int{limbs: r}, carry == 1
}

// mod257 reduces a 257-bit value (carryBit, low) modulo m (m != 0) using
// the same bit-by-bit division as quoRem, extended by one bit.
func mod257(carryBit bool, low *Int, m *Int) *Int {
	remainder := Zero()
	bitsTotal := 257
	get := func(i int) bool {
		if i == 256 {
			return carryBit
		}
		return bitAt(low, i)
	}
	for i := bitsTotal - 1; i >= 0; i-- {
		overflow := shlOneInPlace(remainder)
		if get(i) {
			remainder.limbs[0] |= 1
		}
		if overflow || remainder.Cmp(m) >= 0 {
			remainder.Sub(remainder, m)
		}
	}
	return remainder
}

// MulMod sets z = (x * y) % m, computed via a double-width product so
// that intermediate overflow never loses precision. Modulo by zero
// yields zero.
func (z *Int) MulMod(x, y, m *Int) *Int {
	if m.IsZero() {
		return z.Set(Zero())
	}
	hi, lo := mul512(x, y)
	return z.Set(mod512(hi, lo, m))
}

// mul512 computes the full 512-bit product of two 256-bit values,
// returned as (high 256 bits, low 256 bits).
func mul512(x, y *Int) (*Int, *Int) {
	var acc [8]uint64
	for i := 0; i < 4; i++ {
		var carry uint64
		for j := 0; j < 4; j++ {
			hi, lo := bits.Mul64(x.limbs[i], y.limbs[j])
			sum1, c0 := bits.Add64(acc[i+j], lo, 0)
			sum2, c1 := bits.Add64(sum1, carry, 0)
			acc[i+j] = sum2
			carry = hi + c0 + c1
		}
		acc[i+4] += carry
	}
	lo := &Int{limbs: [4]uint64{acc[0], acc[1], acc[2], acc[3]}}
	hi := &Int{limbs: [4]uint64{acc[4], acc[5], acc[6], acc[7]}}
	return hi, lo
}

// mod512 reduces a 512-bit value (hi, lo) modulo m (m != 0) bit by bit.
func mod512(hi, lo *Int, m *Int) *Int {
	remainder := Zero()
	get := func(i int) bool {
		if i < 256 {
			return bitAt(lo, i)
		}
		return bitAt(hi, i-256)
	}
	for i := 511; i >= 0; i-- {
		overflow := shlOneInPlace(remainder)
		if get(i) {
			remainder.limbs[0] |= 1
		}
		if overflow || remainder.Cmp(m) >= 0 {
			remainder.Sub(remainder, m)
		}
	}
	return remainder
}

// Exp sets z = base^exp mod 2^256 using binary exponentiation.
func (z *Int) Exp(base, exp *Int) *Int {
	result := One()
	b := base.Clone()
	e := exp.Clone()
	for !e.IsZero() {
		if e.limbs[0]&1 == 1 {
			result = Zero().Mul(result, b)
		}
		b = Zero().Mul(b, b)
		e = Zero().Rsh(e, 1)
	}
	return z.Set(result)
}

// SignExtend sets z to the sign-extension of the low (byteNum+1) bytes of
// x, interpreting byte byteNum (0 = least significant) as the sign byte.
// If byteNum >= 31, z is set to x unchanged (already full width).
func (z *Int) SignExtend(byteNum *Int, x *Int) *Int {
	if !byteNum.FitsUint64() || byteNum.Uint64() >= 31 {
		return z.Set(x)
	}
	n := int(byteNum.Uint64())
	signBitIndex := n*8 + 7
	negative := bitAt(x, signBitIndex)
	result := x.Clone()
	for i := signBitIndex + 1; i < 256; i++ {
		if negative {
			setBit(result, i)
		} else {
			clearBit(result, i)
		}
	}
	return z.Set(result)
}

func clearBit(x *Int, i int) {
	x.limbs[i/64] &^= 1 << (uint(i) % 64)
}

// Byte sets z to the i-th byte of x (0 = most significant byte), or zero
// if i >= 32.
func (z *Int) Byte(i *Int, x *Int) *Int {
	if !i.FitsUint64() || i.Uint64() >= 32 {
		return z.Set(Zero())
	}
	n := int(i.Uint64())
	// Byte 0 is the most significant; convert to a bit-position count
	// from the least significant bit.
	bitIndex := (31-n)*8
	var v byte
	for b := 0; b < 8; b++ {
		if bitAt(x, bitIndex+b) {
			v |= 1 << uint(b)
		}
	}
	return z.Set(NewFromUint64(uint64(v)))
}

// Lsh sets z = x << n (logical shift left, mod 2^256) and returns z.
func (z *Int) Lsh(x *Int, n uint) *Int {
	if n >= 256 {
		return z.Set(Zero())
	}
	limbShift := n / 64
	bitShift := n % 64
	var r [4]uint64
	for i := 3; i >= 0; i-- {
		srcIdx := i - int(limbShift)
		if srcIdx < 0 {
			r[i] = 0
			continue
		}
		var v uint64 = x.limbs[srcIdx] << bitShift
		if bitShift > 0 && srcIdx > 0 {
			v |= x.limbs[srcIdx-1] >> (64 - bitShift)
		}
		r[i] = v
	}
	z.limbs = r
	return z
}

// Rsh sets z = x >> n (logical shift right) and returns z.
func (z *Int) Rsh(x *Int, n uint) *Int {
	if n >= 256 {
		return z.Set(Zero())
	}
	limbShift := n / 64
	bitShift := n % 64
	var r [4]uint64
	for i := 0; i < 4; i++ {
		srcIdx := i + int(limbShift)
		if srcIdx > 3 {
			r[i] = 0
			continue
		}
		var v uint64 = x.limbs[srcIdx] >> bitShift
		if bitShift > 0 && srcIdx < 3 {
			v |= x.limbs[srcIdx+1] << (64 - bitShift)
		}
		r[i] = v
	}
	z.limbs = r
	return z
}

// Sar sets z = x >> n using arithmetic (sign-extending) shift right,
// per the EVM SAR opcode.
func (z *Int) Sar(x *Int, n uint) *Int {
	if !sign(x) {
		return z.Rsh(x, n)
	}
	if n >= 256 {
		return z.Set(allOnes())
	}
	shifted := Zero().Rsh(x, n)
	for i := 256 - int(n); i < 256; i++ {
		setBit(shifted, i)
	}
	return z.Set(shifted)
}

func allOnes() *Int {
	return &Int{limbs: [4]uint64{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}}
}

// FromBytesBE constructs an Int from a big-endian byte slice. If shorter
// than 32 bytes, the value is zero-padded on the left; longer inputs are
// truncated to the low 32 bytes.
func FromBytesBE(data []byte) *Int {
	if len(data) > 32 {
		data = data[len(data)-32:]
	}
	var buf [32]byte
	copy(buf[32-len(data):], data)
	var r Int
	r.limbs[0] = beUint64(buf[24:32])
	r.limbs[1] = beUint64(buf[16:24])
	r.limbs[2] = beUint64(buf[8:16])
	r.limbs[3] = beUint64(buf[0:8])
	return &r
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Bytes32 returns the 32-byte big-endian representation of z.
func (z *Int) Bytes32() [32]byte {
	var out [32]byte
	putBE(out[0:8], z.limbs[3])
	putBE(out[8:16], z.limbs[2])
	putBE(out[16:24], z.limbs[1])
	putBE(out[24:32], z.limbs[0])
	return out
}

// Bytes returns the minimal big-endian byte representation of z, with no
// leading zero bytes. Returns an empty slice for zero.
func (z *Int) Bytes() []byte {
	full := z.Bytes32()
	i := 0
	for i < 32 && full[i] == 0 {
		i++
	}
	out := make([]byte, 32-i)
	copy(out, full[i:])
	return out
}

func putBE(dst []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

// FromBig converts a non-negative big integer, reporting overflow for
// values of 257 or more bits.
func FromBig(b *big.Int) (*Int, bool) {
	if b == nil {
		return Zero(), false
	}
	if b.Sign() < 0 || b.BitLen() > 256 {
		return Zero(), true
	}
	return FromBytesBE(b.Bytes()), false
}

// ToBig converts z to a big integer.
func (z *Int) ToBig() *big.Int {
	return new(big.Int).SetBytes(z.Bytes())
}

// String renders z as a 0x-prefixed hex string with no leading zeros
// (except for zero itself, rendered as "0x0").
func (z *Int) String() string {
	if z.IsZero() {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", z.Bytes())
}

// FromHex parses a hex string (optionally "0x"-prefixed) into an Int.
// Per spec, the string must contain exactly 64 hex digits.
func FromHex(s string) (*Int, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 64 {
		return nil, fmt.Errorf("uint256: hex string must be exactly 64 digits, got %d", len(s))
	}
	buf := make([]byte, 32)
	for i := 0; i < 32; i++ {
		hi, err := hexVal(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexVal(s[i*2+1])
		if err != nil {
			return nil, err
		}
		buf[i] = hi<<4 | lo
	}
	return FromBytesBE(buf), nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("uint256: invalid hex digit %q", c)
	}
}
