package types

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// BloomBitLength is the number of bits in a bloom filter (2048).
const BloomBitLength = 8 * BloomLength

// Bloom represents a 2048-bit bloom filter over an address and a set of
// log topics, used to let clients skip fetching receipts that cannot
// possibly match a filter query.
type Bloom [BloomLength]byte

func (b Bloom) Bytes() []byte  { return b[:] }
func (b Bloom) Hex() string    { return hexPrefix(b[:]) }
func (b Bloom) String() string { return b.Hex() }

func hexPrefix(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 2+len(b)*2)
	out[0], out[1] = '0', 'x'
	for i, c := range b {
		out[2+i*2] = hextable[c>>4]
		out[3+i*2] = hextable[c&0x0f]
	}
	return string(out)
}

// bloom9 computes the 3 bit positions a bloom entry sets: the first 6
// bytes of keccak256(data), split into 3 big-endian uint16s mod 2048.
func bloom9(data []byte) [3]uint {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	h := d.Sum(nil)
	var bits [3]uint
	for i := 0; i < 3; i++ {
		bits[i] = uint(binary.BigEndian.Uint16(h[2*i:])) & 0x7FF
	}
	return bits
}

// BloomAdd sets the 3 bloom bits derived from data.
func BloomAdd(bloom *Bloom, data []byte) {
	for _, bit := range bloom9(data) {
		byteIdx := BloomLength - 1 - bit/8
		bitIdx := bit % 8
		bloom[byteIdx] |= 1 << bitIdx
	}
}

// BloomContains reports whether all 3 bits derived from data are set in
// bloom. A false positive rate is inherent to bloom filters; a false
// negative is not possible.
func BloomContains(bloom Bloom, data []byte) bool {
	for _, bit := range bloom9(data) {
		byteIdx := BloomLength - 1 - bit/8
		bitIdx := bit % 8
		if bloom[byteIdx]&(1<<bitIdx) == 0 {
			return false
		}
	}
	return true
}

// LogsBloom computes the combined bloom filter for a set of logs: every
// log's address and topics are folded in.
func LogsBloom(logs []*Log) Bloom {
	var bloom Bloom
	for _, lg := range logs {
		BloomAdd(&bloom, lg.Address.Bytes())
		for _, topic := range lg.Topics {
			BloomAdd(&bloom, topic.Bytes())
		}
	}
	return bloom
}
