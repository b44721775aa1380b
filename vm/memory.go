package vm

import (
	"github.com/daniellehrner/ethexec/arena"
	"github.com/daniellehrner/ethexec/uint256"
)

// Memory is the EVM's byte-addressable, word-aligned-growth scratch space.
// It only ever grows during a call frame's execution; MSIZE reports its
// current length. An arena-bound Memory draws its backing buffers from
// the arena so a whole block's memory churn is reclaimed in one reset.
type Memory struct {
	store []byte
	arena *arena.Arena
}

func NewMemory() *Memory {
	return &Memory{}
}

func newArenaMemory(a *arena.Arena) *Memory {
	return &Memory{arena: a}
}

// Set writes data into the memory region [offset, offset+len(data)). The
// caller must have already resized the memory to fit.
func (m *Memory) Set(offset, size uint64, data []byte) {
	if size == 0 {
		return
	}
	copy(m.store[offset:offset+size], data)
}

// Set32 writes the 32-byte big-endian representation of val at offset.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	b := val.Bytes32()
	copy(m.store[offset:offset+32], b[:])
}

// Resize grows the memory to exactly size bytes, zero-filling the new
// region. It never shrinks. Capacity doubles on growth so repeated
// small expansions don't re-copy every time.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) >= size {
		return
	}
	if uint64(cap(m.store)) < size {
		newCap := uint64(cap(m.store)) * 2
		if newCap < size {
			newCap = size
		}
		var grown []byte
		if m.arena != nil {
			grown = m.arena.AllocAligned(int(newCap), 32)[:len(m.store)]
		} else {
			grown = make([]byte, len(m.store), newCap)
		}
		copy(grown, m.store)
		m.store = grown
	}
	prev := len(m.store)
	m.store = m.store[:size]
	for i := prev; i < int(size); i++ {
		m.store[i] = 0
	}
}

// clear empties the memory for frame reuse, keeping the buffer.
func (m *Memory) clear() {
	m.store = m.store[:0]
}

// Get returns a copy of the region [offset, offset+size).
func (m *Memory) Get(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	copy(out, m.store[offset:offset+size])
	return out
}

// GetPtr returns a slice referencing the region [offset, offset+size)
// directly, without copying. Callers must not retain it across writes.
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

func (m *Memory) Len() int {
	return len(m.store)
}

func (m *Memory) Data() []byte {
	return m.store
}
