package decompress

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

type tree struct {
	label    string
	children []tree
}

func n(label string, children ...tree) tree {
	return tree{label, children}
}

func build(s *store.Stores, t tree) store.NodeID {
	kind := s.Types.Intern("test", "node", types.Named)
	cs := make([]store.NodeID, len(t.children))
	for i, c := range t.children {
		cs[i] = build(s, c)
	}
	return s.Build(kind, t.label, true, cs)
}

// a[e[f], b[c, d], g[h], i, j[k]]
//
// post order: f0 e1 c2 d3 b4 h5 g6 i7 k8 j9 a10
func sample(t *testing.T) (Source, store.NodeID) {
	t.Helper()
	s := store.NewStores()
	root := build(s, n("a",
		n("e", n("f")),
		n("b", n("c"), n("d")),
		n("g", n("h")),
		n("i"),
		n("j", n("k")),
	))
	return Source{Stores: s}, root
}

func labels(t Tree) []string {
	out := make([]string, t.Len())
	for i := range out {
		out[i] = t.Source().Stores.LabelOf(t.Original(i))
	}
	return out
}

func llds(t Tree) []int {
	out := make([]int, t.Len())
	for i := range out {
		out[i] = t.LLD(i)
	}
	return out
}

func TestSimplePostOrder(t *testing.T) {
	src, root := sample(t)
	po := NewSimplePostOrder(src, root)

	require.Equal(t, 11, po.Len())
	assert.Equal(t, 10, po.Root())
	assert.Equal(t, root, po.Original(po.Root()))
	assert.Equal(t, []string{"f", "e", "c", "d", "b", "h", "g", "i", "k", "j", "a"}, labels(po))
	assert.Equal(t, []int{0, 0, 2, 3, 2, 5, 5, 7, 8, 8, 0}, llds(po))

	assert.Equal(t, []int{1, 4, 6, 7, 9}, po.Children(10))
	assert.Equal(t, []int{2, 3}, po.Children(4))
	assert.Empty(t, po.Children(7))

	p, ok := po.Parent(3)
	assert.True(t, ok)
	assert.Equal(t, 4, p)
	_, ok = po.Parent(10)
	assert.False(t, ok)
}

func TestNavigation(t *testing.T) {
	src, root := sample(t)
	po := NewSimplePostOrder(src, root)

	assert.Equal(t, 3, Child(po, po.Root(), 1, 1))
	assert.Equal(t, []int{1, 1}, Path(po, 3))
	assert.Empty(t, Path(po, po.Root()))
	assert.Equal(t, 3, PositionInParent(po, 7))
	assert.Equal(t, []int{4, 10}, slices.Collect(Ancestors(po, 3)))

	assert.Equal(t, 10, LCA(po, 0, 3))
	assert.Equal(t, 4, LCA(po, 2, 3))
	assert.Equal(t, 4, LCA(po, 4, 2))
	assert.Equal(t, 9, LCA(po, 9, 9))

	assert.True(t, IsDescendant(po, 2, 4))
	assert.False(t, IsDescendant(po, 4, 4))
	assert.False(t, IsDescendant(po, 5, 4))
	assert.Equal(t, 10, DescendantsCount(po, po.Root()))

	assert.Equal(t, []int{10, 1, 4, 6, 7, 9, 0, 2, 3, 5, 8}, BreadthFirst(po))
	assert.Equal(t, []int{10, 1, 0, 4, 2, 3, 6, 5, 7, 9, 8}, PreOrder(po, po.Root()))
	assert.Equal(t, []int{4, 2, 3}, PreOrder(po, 4))
}

func TestKeyRoots(t *testing.T) {
	src, root := sample(t)
	po := NewCompletePostOrder(src, root)

	krs := po.KeyRoots()
	assert.Equal(t, []int{3, 4, 6, 7, 9, 10}, krs)
	assert.Equal(t, KeyRoots(po), krs)
	assert.True(t, po.IsKeyRoot(po.Root()))
	assert.False(t, po.IsKeyRoot(1))

	// every leftmost leaf group has exactly one key root, its highest index
	groups := map[int]int{}
	for _, kr := range krs {
		groups[po.LLD(kr)]++
	}
	for i := 0; i < po.Len(); i++ {
		assert.Equal(t, 1, groups[po.LLD(i)], "group of %d", i)
		if po.IsKeyRoot(i) {
			continue
		}
		found := false
		for j := i + 1; j < po.Len(); j++ {
			if po.LLD(j) == po.LLD(i) {
				found = true
			}
		}
		assert.True(t, found, "%d is not a key root but is the highest of its group", i)
	}
}

func TestSharedSubtrees(t *testing.T) {
	s := store.NewStores()
	root := build(s, n("r", n("x", n("y")), n("x", n("y"))))
	po := NewSimplePostOrder(Source{Stores: s}, root)

	require.Equal(t, 5, po.Len())
	assert.Equal(t, po.Original(1), po.Original(3))
	assert.Equal(t, []int{1, 3}, po.Children(4))
	p0, _ := po.Parent(0)
	p2, _ := po.Parent(2)
	assert.Equal(t, 1, p0)
	assert.Equal(t, 3, p2)
}

func TestSource_IgnoreSpaces(t *testing.T) {
	s := store.NewStores()
	kind := s.Types.Intern("test", "node", types.Named)
	sp := s.Build(types.Spaces, " ", true, nil)
	x := s.Build(kind, "x", true, nil)
	y := s.Build(kind, "y", true, nil)
	root := s.Build(kind, "r", true, []store.NodeID{sp, x, sp, y})

	full := NewSimplePostOrder(Source{Stores: s}, root)
	assert.Equal(t, 5, full.Len())

	bare := NewSimplePostOrder(Source{Stores: s, IgnoreSpaces: true}, root)
	assert.Equal(t, 3, bare.Len())
	assert.Equal(t, []string{"x", "y", "r"}, labels(bare))
}

func TestLazyPostOrder(t *testing.T) {
	src, root := sample(t)
	lazy := NewLazyPostOrder(src, root)

	require.Equal(t, 11, lazy.Len())
	assert.False(t, lazy.IsDecompressed(0))
	assert.Panics(t, func() { lazy.Original(0) })

	assert.Equal(t, []int{1, 4, 6, 7, 9}, lazy.Children(lazy.Root()))
	assert.True(t, lazy.IsDecompressed(4))
	assert.False(t, lazy.IsDecompressed(2))
	assert.Equal(t, 2, lazy.LLD(4))
	assert.Equal(t, "b", src.Stores.LabelOf(lazy.Original(4)))

	// a second call does not rewrite anything
	assert.Equal(t, []int{1, 4, 6, 7, 9}, lazy.DecompressChildren(lazy.Root()))

	lazy.DecompressDescendants(4)
	assert.Equal(t, []int{2, 3}, lazy.Children(4))
	assert.False(t, lazy.IsDecompressed(0))
}

func TestLazyPostOrder_MatchesEager(t *testing.T) {
	src, root := sample(t)
	eager := NewSimplePostOrder(src, root)
	lazy := NewLazyPostOrder(src, root)
	lazy.DecompressDescendants(lazy.Root())

	assert.Equal(t, labels(eager), labels(lazy))
	assert.Equal(t, llds(eager), llds(lazy))
	for i := 0; i < eager.Len(); i++ {
		ep, eok := eager.Parent(i)
		lp, lok := lazy.Parent(i)
		assert.Equal(t, eok, lok)
		assert.Equal(t, ep, lp)
	}

	complete := NewLazyPostOrder(src, root).Complete()
	assert.Equal(t, labels(eager), labels(complete))
	assert.Equal(t, []int{3, 4, 6, 7, 9, 10}, complete.KeyRoots())
}

func TestHidingMapper(t *testing.T) {
	src, root := sample(t)
	po := NewSimplePostOrder(src, root)

	// hide below b and j
	h := NewHidingMapper(po, func(i int) bool { return i == 4 || i == 9 })

	require.Equal(t, 8, h.Len())
	assert.Equal(t, []string{"f", "e", "b", "h", "g", "i", "j", "a"}, labels(h))
	assert.Equal(t, []int{1, 2, 4, 5, 6}, h.Children(h.Root()))
	assert.Empty(t, h.Children(2))
	assert.Equal(t, 2, h.LLD(2))
	assert.Equal(t, 0, h.LLD(h.Root()))

	assert.Equal(t, 4, h.Back(2))
	f, ok := h.Front(9)
	assert.True(t, ok)
	assert.Equal(t, 6, f)
	_, ok = h.Front(2)
	assert.False(t, ok)

	p, ok := h.Parent(2)
	assert.True(t, ok)
	assert.Equal(t, 7, p)
}

func TestHidingMapper_CollapseRoot(t *testing.T) {
	src, root := sample(t)
	po := NewSimplePostOrder(src, root)

	h := NewHidingMapper(po, func(i int) bool { return i == po.Root() })
	require.Equal(t, 1, h.Len())
	assert.Equal(t, root, h.Original(0))
	assert.Empty(t, h.Children(0))
}

func TestSlice(t *testing.T) {
	src, root := sample(t)
	lazy := NewLazyPostOrder(src, root)
	lazy.Children(lazy.Root())

	s := NewSlice(lazy, 4)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Root())
	assert.Equal(t, []string{"c", "d", "b"}, labels(s))
	assert.Equal(t, []int{0, 1}, s.Children(s.Root()))
	assert.Equal(t, 3, s.Back(1))

	_, ok := s.Parent(s.Root())
	assert.False(t, ok)
	p, ok := s.Parent(0)
	assert.True(t, ok)
	assert.Equal(t, 2, p)
	assert.Panics(t, func() { s.Original(3) })
}

func TestOutOfRangePanics(t *testing.T) {
	src, root := sample(t)
	po := NewSimplePostOrder(src, root)
	assert.Panics(t, func() { po.Children(11) })
	assert.Panics(t, func() { po.Original(-1) })
}
