package vm

import "github.com/daniellehrner/ethexec/arena"

// execPools hands out the stack and memory for each call depth from
// pre-positioned slots instead of allocating per call. Borrow and return
// are strictly LIFO because call frames unwind LIFO, so the depth alone
// identifies the slot. Memory buffers grow out of a shared arena that
// the executor resets between blocks.
type execPools struct {
	arena    *arena.Arena
	stacks   [stackLimit + 1]*Stack
	memories [stackLimit + 1]*Memory
}

func newExecPools() *execPools {
	return &execPools{arena: arena.New()}
}

// borrow returns the stack and memory slot for the given depth,
// allocating it on first use and resetting it otherwise.
func (p *execPools) borrow(depth int) (*Stack, *Memory) {
	if p.stacks[depth] == nil {
		p.stacks[depth] = NewStack()
		p.memories[depth] = newArenaMemory(p.arena)
	} else {
		p.stacks[depth].clear()
		p.memories[depth].clear()
	}
	return p.stacks[depth], p.memories[depth]
}

// release marks the slot reusable. The backing buffers are kept for the
// next frame at this depth.
func (p *execPools) release(depth int) {
	p.stacks[depth].clear()
	p.memories[depth].clear()
}

// resetArena rewinds the memory arena. Only valid between blocks, when
// no frame is live: every pooled memory's buffer points into the arena
// and is invalidated by the rewind.
func (p *execPools) resetArena() {
	p.arena.Reset()
	for _, m := range p.memories {
		if m != nil {
			m.store = nil
		}
	}
}
