package decompress

import (
	"sort"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// HidingMapper is a view over another view where the descendants of some
// nodes are hidden, so those nodes appear as leaves. Front indices are a
// post-order numbering of the visible nodes; Back converts them to indices of
// the backing view.
type HidingMapper struct {
	back    Tree
	toBack  []int
	llds    []uint32
	parents []uint32
}

// NewHidingMapper hides the descendants of every node of back for which
// collapse returns true. The backing view must be fully decompressed.
func NewHidingMapper(back Tree, collapse func(i int) bool) *HidingMapper {
	var rev []int
	for i := back.Root(); i >= 0; {
		rev = append(rev, i)
		if collapse(i) {
			i = back.LLD(i) - 1
		} else {
			i--
		}
	}
	n := len(rev)
	h := &HidingMapper{
		back:    back,
		toBack:  make([]int, n),
		llds:    make([]uint32, n),
		parents: make([]uint32, n),
	}
	for k, b := range rev {
		h.toBack[n-1-k] = b
	}
	for f, b := range h.toBack {
		lld := b
		if !collapse(b) {
			lld = back.LLD(b)
		}
		// first visible node at or after the backing leftmost leaf
		h.llds[f] = uint32(sort.SearchInts(h.toBack, lld))
		h.parents[f] = noParent
	}
	for f := range h.toBack {
		for _, c := range childrenFromLLD(h, f) {
			h.parents[c] = uint32(f)
		}
	}
	return h
}

func (h *HidingMapper) Source() Source { return h.back.Source() }
func (h *HidingMapper) Len() int       { return len(h.toBack) }
func (h *HidingMapper) Root() int      { return len(h.toBack) - 1 }

// Back returns the backing index of front index f.
func (h *HidingMapper) Back(f int) int {
	return h.toBack[f]
}

// Front returns the front index of backing index b, false when b is hidden.
func (h *HidingMapper) Front(b int) (int, bool) {
	f := sort.SearchInts(h.toBack, b)
	if f < len(h.toBack) && h.toBack[f] == b {
		return f, true
	}
	return 0, false
}

func (h *HidingMapper) Original(f int) store.NodeID {
	return h.back.Original(h.toBack[f])
}

func (h *HidingMapper) LLD(f int) int {
	return int(h.llds[f])
}

func (h *HidingMapper) Parent(f int) (int, bool) {
	p := h.parents[f]
	if p == noParent {
		return 0, false
	}
	return int(p), true
}

func (h *HidingMapper) Children(f int) []int {
	checkIndex(len(h.toBack), f)
	return childrenFromLLD(h, f)
}
