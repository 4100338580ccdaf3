package decompress

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// arrays is the storage shared by the post-order views.
type arrays struct {
	src     Source
	ids     []store.NodeID
	llds    []uint32
	parents []uint32
}

func (a *arrays) Source() Source { return a.src }
func (a *arrays) Len() int       { return len(a.ids) }
func (a *arrays) Root() int      { return len(a.ids) - 1 }

// SimplePostOrder is an eagerly decompressed view.
type SimplePostOrder struct {
	arrays
}

// NewSimplePostOrder decompresses the whole subtree of root.
func NewSimplePostOrder(src Source, root store.NodeID) *SimplePostOrder {
	n := src.Size(root)
	t := &SimplePostOrder{arrays{
		src:     src,
		ids:     make([]store.NodeID, 0, n),
		llds:    make([]uint32, 0, n),
		parents: make([]uint32, 0, n),
	}}
	t.fill(root)
	return t
}

type dfsFrame struct {
	id       store.NodeID
	children []store.NodeID
	next     int
	kids     []uint32
}

// fill assigns post-order ranks with an explicit stack, so deep trees do not
// grow the goroutine stack.
func (t *SimplePostOrder) fill(root store.NodeID) {
	stack := []*dfsFrame{{id: root, children: t.src.Children(root)}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next < len(f.children) {
			c := f.children[f.next]
			f.next++
			stack = append(stack, &dfsFrame{id: c, children: t.src.Children(c)})
			continue
		}
		stack = stack[:len(stack)-1]

		idx := uint32(len(t.ids))
		t.ids = append(t.ids, f.id)
		t.parents = append(t.parents, noParent)
		lld := idx
		if len(f.kids) > 0 {
			lld = t.llds[f.kids[0]]
		}
		t.llds = append(t.llds, lld)
		for _, k := range f.kids {
			t.parents[k] = idx
		}
		if len(stack) > 0 {
			p := stack[len(stack)-1]
			p.kids = append(p.kids, idx)
		}
	}
}

func (t *SimplePostOrder) Original(i int) store.NodeID {
	return t.ids[i]
}

func (t *SimplePostOrder) LLD(i int) int {
	return int(t.llds[i])
}

func (t *SimplePostOrder) Parent(i int) (int, bool) {
	p := t.parents[i]
	if p == noParent {
		return 0, false
	}
	return int(p), true
}

func (t *SimplePostOrder) Children(i int) []int {
	checkIndex(len(t.ids), i)
	return childrenFromLLD(t, i)
}

// CompletePostOrder is an eagerly decompressed view that also knows its key
// roots.
type CompletePostOrder struct {
	*SimplePostOrder
	keyRoots *bitset.BitSet
}

// NewCompletePostOrder decompresses the whole subtree of root.
func NewCompletePostOrder(src Source, root store.NodeID) *CompletePostOrder {
	return complete(NewSimplePostOrder(src, root))
}

func complete(t *SimplePostOrder) *CompletePostOrder {
	c := &CompletePostOrder{SimplePostOrder: t, keyRoots: bitset.New(uint(t.Len()))}
	for _, kr := range KeyRoots(t) {
		c.keyRoots.Set(uint(kr))
	}
	return c
}

// IsKeyRoot reports whether i is the highest index of its leftmost leaf
// group.
func (t *CompletePostOrder) IsKeyRoot(i int) bool {
	return t.keyRoots.Test(uint(i))
}

// KeyRoots returns the key roots in increasing order.
func (t *CompletePostOrder) KeyRoots() []int {
	krs := make([]int, 0, t.keyRoots.Count())
	for i, ok := t.keyRoots.NextSet(0); ok; i, ok = t.keyRoots.NextSet(i + 1) {
		krs = append(krs, int(i))
	}
	return krs
}
