package vm

import (
	"testing"

	"github.com/daniellehrner/ethexec/uint256"
)

func TestPoolReusesSlotsPerDepth(t *testing.T) {
	p := newExecPools()
	s1, m1 := p.borrow(0)
	s1.Push(uint256.One())
	m1.Resize(64)
	p.release(0)

	s2, m2 := p.borrow(0)
	if s2 != s1 || m2 != m1 {
		t.Fatal("same depth must reuse the same slot")
	}
	if s2.Len() != 0 || m2.Len() != 0 {
		t.Fatalf("borrowed slot not reset: stack %d, mem %d", s2.Len(), m2.Len())
	}

	s3, _ := p.borrow(1)
	if s3 == s2 {
		t.Fatal("different depths must not share a slot")
	}
}

func TestMemoryResizeZeroFillsReusedBuffer(t *testing.T) {
	p := newExecPools()
	_, m := p.borrow(0)
	m.Resize(32)
	m.Set32(0, uint256.NewFromUint64(0xdeadbeef))
	p.release(0)

	_, m = p.borrow(0)
	m.Resize(32)
	for i, b := range m.Data() {
		if b != 0 {
			t.Fatalf("stale byte %x at offset %d after reuse", b, i)
		}
	}
}

func TestMemoryResizeGrowsAndNeverShrinks(t *testing.T) {
	m := NewMemory()
	m.Resize(32)
	if m.Len() != 32 {
		t.Fatalf("len = %d", m.Len())
	}
	m.Set32(0, uint256.NewFromUint64(7))
	m.Resize(1024)
	if m.Len() != 1024 {
		t.Fatalf("len = %d", m.Len())
	}
	if got := m.Get(0, 32); got[31] != 7 {
		t.Fatalf("growth lost contents: %x", got)
	}
	// Shrinking is a no-op.
	m.Resize(64)
	if m.Len() != 1024 {
		t.Fatalf("memory shrank to %d", m.Len())
	}
}
