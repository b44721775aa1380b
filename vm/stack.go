package vm

import "github.com/daniellehrner/ethexec/uint256"

const stackLimit = 1024

// Stack is the EVM's 256-bit-word operand stack, bounded at 1024 items.
type Stack struct {
	data []*uint256.Int
}

// NewStack returns an empty stack with its backing array pre-sized to the
// maximum depth, so normal execution never reallocates.
func NewStack() *Stack {
	return &Stack{data: make([]*uint256.Int, 0, stackLimit)}
}

func (st *Stack) Push(v *uint256.Int) {
	st.data = append(st.data, v)
}

func (st *Stack) Pop() *uint256.Int {
	v := st.data[len(st.data)-1]
	st.data = st.data[:len(st.data)-1]
	return v
}

// Peek returns the top item without removing it.
func (st *Stack) Peek() *uint256.Int {
	return st.data[len(st.data)-1]
}

// PeekN returns the item n positions below the top (0 is the top itself)
// without removing it.
func (st *Stack) PeekN(n int) *uint256.Int {
	return st.data[len(st.data)-1-n]
}

// Back is an alias for PeekN, matching the naming used by dynamic gas
// functions that inspect operands below the top of the stack.
func (st *Stack) Back(n int) *uint256.Int {
	return st.PeekN(n)
}

// Swap exchanges the top item with the item n positions below it.
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup pushes a copy of the item n positions below the top (1-indexed, as
// in DUP1..DUP16: Dup(1) duplicates the current top).
func (st *Stack) Dup(n int) {
	st.Push(st.data[len(st.data)-n].Clone())
}

func (st *Stack) Len() int {
	return len(st.data)
}

// clear empties the stack for reuse, keeping the backing array.
func (st *Stack) clear() {
	st.data = st.data[:0]
}

func (st *Stack) Data() []*uint256.Int {
	return st.data
}
