package decompress

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// LazyPostOrder is a view whose nodes are decompressed on first visit.
//
// Stored subtree sizes give every node its post-order rank before it is
// visited: the children of i occupy consecutive ranges starting at LLD(i).
// Decompressing i's children only writes their slots.
type LazyPostOrder struct {
	arrays
	expanded *bitset.BitSet
}

// NewLazyPostOrder creates a view of root where only the root is known.
func NewLazyPostOrder(src Source, root store.NodeID) *LazyPostOrder {
	n := src.Size(root)
	t := &LazyPostOrder{
		arrays: arrays{
			src:     src,
			ids:     make([]store.NodeID, n),
			llds:    make([]uint32, n),
			parents: make([]uint32, n),
		},
		expanded: bitset.New(uint(n)),
	}
	t.ids[n-1] = root
	t.llds[n-1] = 0
	t.parents[n-1] = noParent
	return t
}

func (t *LazyPostOrder) known(i int) {
	if t.ids[i] == 0 {
		panic(fmt.Sprintf("decompress: index %d was not decompressed", i))
	}
}

// IsDecompressed reports whether i was reached.
func (t *LazyPostOrder) IsDecompressed(i int) bool {
	return t.ids[i] != 0
}

func (t *LazyPostOrder) Original(i int) store.NodeID {
	t.known(i)
	return t.ids[i]
}

func (t *LazyPostOrder) LLD(i int) int {
	t.known(i)
	return int(t.llds[i])
}

func (t *LazyPostOrder) Parent(i int) (int, bool) {
	t.known(i)
	p := t.parents[i]
	if p == noParent {
		return 0, false
	}
	return int(p), true
}

// Children decompresses the children of i if needed.
func (t *LazyPostOrder) Children(i int) []int {
	return t.DecompressChildren(i)
}

// DecompressChildren writes the slots of i's children and returns them.
func (t *LazyPostOrder) DecompressChildren(i int) []int {
	t.known(i)
	if t.expanded.Test(uint(i)) {
		return childrenFromLLD(t, i)
	}
	t.expanded.Set(uint(i))
	cs := t.src.Children(t.ids[i])
	if len(cs) == 0 {
		return nil
	}
	out := make([]int, 0, len(cs))
	offset := t.llds[i]
	for _, c := range cs {
		size := uint32(t.src.Size(c))
		idx := offset + size - 1
		t.ids[idx] = c
		t.llds[idx] = offset
		t.parents[idx] = uint32(i)
		out = append(out, int(idx))
		offset += size
	}
	return out
}

// DecompressDescendants decompresses the whole subtree of i.
func (t *LazyPostOrder) DecompressDescendants(i int) {
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, t.DecompressChildren(n)...)
	}
}

// Complete decompresses everything and returns an eager view sharing the
// same indices. t must not be used afterwards.
func (t *LazyPostOrder) Complete() *CompletePostOrder {
	t.DecompressDescendants(t.Root())
	return complete(&SimplePostOrder{arrays: t.arrays})
}
