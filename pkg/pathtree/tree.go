// Package pathtree stores search trees as a flat arena of uint32 records.
// A record is addressed by the index of its first word; predecessor links are
// indices into the same arena, with NoPointer marking a root.
package pathtree

import "math"

// NoPointer is the predecessor of a root record.
const NoPointer uint32 = math.MaxUint32

// Tree is an append-only arena of variable-length records.
type Tree struct {
	data []uint32
}

// New returns an empty tree with room for capacity words.
func New(capacity int) *Tree {
	return &Tree{data: make([]uint32, 0, capacity)}
}

// Add appends a record and returns its pointer.
func (t *Tree) Add(values ...uint32) uint32 {
	p := uint32(len(t.data))
	t.data = append(t.data, values...)
	return p
}

// Add3 appends a three-word record without allocating a variadic slice.
func (t *Tree) Add3(a, b, c uint32) uint32 {
	p := uint32(len(t.data))
	t.data = append(t.data, a, b, c)
	return p
}

// Get returns word i of the record at pointer.
func (t *Tree) Get(pointer uint32, i int) uint32 {
	return t.data[int(pointer)+i]
}

// Len returns the number of words in use.
func (t *Tree) Len() int { return len(t.data) }

// Clear drops every record but keeps the allocation.
func (t *Tree) Clear() { t.data = t.data[:0] }
