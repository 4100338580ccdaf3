// Package decompress materializes per-query tree views over the HyperAST.
//
// The store is a DAG: a subtree shared by several parents exists once. Diff
// algorithms need the opposite, an indexable tree where every occurrence has
// its own index. A view numbers the nodes under a root in post-order, so the
// root is always Len()-1 and the descendants of i are exactly the indices in
// [LLD(i), i).
//
// Views are built for one diff query and are not safe for concurrent use.
// Indexing a view out of bounds, or before a lazy view decompressed the
// index, panics.
package decompress

import (
	"iter"
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

const noParent = math.MaxUint32

// Source selects how a view sees stored nodes.
type Source struct {
	Stores *store.Stores
	// IgnoreSpaces hides spacing leaves.
	IgnoreSpaces bool
}

// Children returns the children of id as seen by the view.
func (s Source) Children(id store.NodeID) []store.NodeID {
	v := s.Stores.Resolve(id)
	if s.IgnoreSpaces {
		return v.NoSpaceChildren()
	}
	return v.Children()
}

// Size returns the number of view nodes in the subtree of id.
func (s Source) Size(id store.NodeID) int {
	v := s.Stores.Resolve(id)
	if s.IgnoreSpaces {
		return int(v.SizeNoSpaces())
	}
	return int(v.Size())
}

// Tree is a post-order view.
type Tree interface {
	Source() Source
	Len() int
	Root() int
	// Original returns the stored node behind index i.
	Original(i int) store.NodeID
	Children(i int) []int
	Parent(i int) (int, bool)
	// LLD returns the leftmost leaf descendant of i, i itself for leaves.
	LLD(i int) int
}

// DescendantsCount returns the number of strict descendants of i.
func DescendantsCount(t Tree, i int) int {
	return i - t.LLD(i)
}

// IsDescendant reports whether d is a strict descendant of a.
func IsDescendant(t Tree, d, a int) bool {
	return d < a && d >= t.LLD(a)
}

// PositionInParent returns the offset of i among its parent's children, 0
// for the root.
func PositionInParent(t Tree, i int) int {
	p, ok := t.Parent(i)
	if !ok {
		return 0
	}
	for o, c := range t.Children(p) {
		if c == i {
			return o
		}
	}
	panic("decompress: node missing from its parent's children")
}

// Child follows path, a list of child offsets, from i.
func Child(t Tree, i int, path ...int) int {
	for _, o := range path {
		i = t.Children(i)[o]
	}
	return i
}

// Path returns the child offsets leading from the root to i.
func Path(t Tree, i int) []int {
	var path []int
	for {
		p, ok := t.Parent(i)
		if !ok {
			break
		}
		path = append(path, PositionInParent(t, i))
		i = p
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// Ancestors iterates over the strict ancestors of i, nearest first.
func Ancestors(t Tree, i int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for {
			p, ok := t.Parent(i)
			if !ok || !yield(p) {
				return
			}
			i = p
		}
	}
}

// LCA returns the lowest common ancestor of a and b.
func LCA(t Tree, a, b int) int {
	if a > b {
		a, b = b, a
	}
	// climb from the lower index until its range covers the other one
	for a != b && !IsDescendant(t, b, a) {
		p, ok := t.Parent(a)
		if !ok {
			return a
		}
		a = p
	}
	return a
}

// childrenFromLLD lists the children of i using post-order ranges only: the
// last child is i-1 and each previous sibling ends right before the leftmost
// leaf of the next one.
func childrenFromLLD(t Tree, i int) []int {
	lld := t.LLD(i)
	if lld == i {
		return nil
	}
	var cs []int
	for c := i - 1; c >= lld; c = t.LLD(c) - 1 {
		cs = append(cs, c)
	}
	for l, r := 0, len(cs)-1; l < r; l, r = l+1, r-1 {
		cs[l], cs[r] = cs[r], cs[l]
	}
	return cs
}

// KeyRoots returns, in increasing order, the indices that are the highest of
// their leftmost leaf descendant group.
func KeyRoots(t Tree) []int {
	n := t.Len()
	seen := bitset.New(uint(n))
	marked := bitset.New(uint(n))
	for i := n - 1; i >= 0; i-- {
		l := uint(t.LLD(i))
		if !seen.Test(l) {
			seen.Set(l)
			marked.Set(uint(i))
		}
	}
	krs := make([]int, 0, marked.Count())
	for i, ok := marked.NextSet(0); ok; i, ok = marked.NextSet(i + 1) {
		krs = append(krs, int(i))
	}
	return krs
}

// BreadthFirst returns the indices of t in breadth-first order from the root.
func BreadthFirst(t Tree) []int {
	order := make([]int, 0, t.Len())
	order = append(order, t.Root())
	for k := 0; k < len(order); k++ {
		order = append(order, t.Children(order[k])...)
	}
	return order
}

// PreOrder returns the indices of the subtree of i in pre-order.
func PreOrder(t Tree, i int) []int {
	order := make([]int, 0, DescendantsCount(t, i)+1)
	stack := []int{i}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, n)
		cs := t.Children(n)
		for j := len(cs) - 1; j >= 0; j-- {
			stack = append(stack, cs[j])
		}
	}
	return order
}

func checkIndex(n, i int) {
	if i < 0 || i >= n {
		panic("decompress: index out of range")
	}
}
