package matchers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

type tree struct {
	kind     string
	label    string
	labeled  bool
	children []tree
}

// l is a labeled node of kind "t0".
func l(label string, children ...tree) tree {
	return tree{kind: "t0", label: label, labeled: true, children: children}
}

// k is a labeled node of the given kind.
func k(kind, label string, children ...tree) tree {
	return tree{kind: kind, label: label, labeled: true, children: children}
}

// u is an unlabeled node of the given kind.
func u(kind string, children ...tree) tree {
	return tree{kind: kind, children: children}
}

func build(s *store.Stores, t tree) store.NodeID {
	typ := s.Types.Intern("test", t.kind, types.Named)
	cs := make([]store.NodeID, len(t.children))
	for i, c := range t.children {
		cs[i] = build(s, c)
	}
	return s.Build(typ, t.label, t.labeled, cs)
}

type fixture struct {
	stores   *store.Stores
	src, dst *decompress.CompletePostOrder
}

func newFixture(t *testing.T, src, dst tree) fixture {
	t.Helper()
	s := store.NewStores()
	source := decompress.Source{Stores: s}
	return fixture{
		stores: s,
		src:    decompress.NewCompletePostOrder(source, build(s, src)),
		dst:    decompress.NewCompletePostOrder(source, build(s, dst)),
	}
}

func (f fixture) mappings() *mapping.Store {
	return mapping.New(f.src.Len(), f.dst.Len())
}

func (f fixture) s(path ...int) int { return decompress.Child(f.src, f.src.Root(), path...) }
func (f fixture) d(path ...int) int { return decompress.Child(f.dst, f.dst.Root(), path...) }

// a[e[f], b[c, d], g] -> z[b[c, d], h:t1[e[y]], g]
func gumtreeExample(t *testing.T) fixture {
	return newFixture(t,
		l("a", l("e", l("f")), l("b", l("c"), l("d")), l("g")),
		l("z", l("b", l("c"), l("d")), k("t1", "h", l("e", l("y"))), l("g")),
	)
}

func TestGreedySubtree_MinHeight(t *testing.T) {
	f := gumtreeExample(t)

	m := f.mappings()
	GreedySubtree{MinHeight: 0, LabelAware: true}.Match(f.src, f.dst, m)
	assert.True(t, m.Has(f.s(1), f.d(0)))
	assert.True(t, m.Has(f.s(1, 0), f.d(0, 0)))
	assert.True(t, m.Has(f.s(1, 1), f.d(0, 1)))
	assert.True(t, m.Has(f.s(2), f.d(2)))
	assert.Equal(t, 4, m.Len())

	m = f.mappings()
	GreedySubtree{MinHeight: 1, LabelAware: true}.Match(f.src, f.dst, m)
	assert.True(t, m.Has(f.s(1), f.d(0)))
	assert.True(t, m.Has(f.s(1, 0), f.d(0, 0)))
	assert.True(t, m.Has(f.s(1, 1), f.d(0, 1)))
	assert.Equal(t, 3, m.Len())
}

func TestGreedySubtree_Lazy(t *testing.T) {
	f := gumtreeExample(t)
	eager := f.mappings()
	GreedySubtree{MinHeight: 0, LabelAware: true}.Match(f.src, f.dst, eager)

	source := decompress.Source{Stores: f.stores}
	ls := decompress.NewLazyPostOrder(source, f.src.Original(f.src.Root()))
	ld := decompress.NewLazyPostOrder(source, f.dst.Original(f.dst.Root()))
	lazy := f.mappings()
	GreedySubtree{MinHeight: 0, LabelAware: true}.Match(ls, ld, lazy)

	assert.Equal(t, eager.String(), lazy.String())
}

func TestGreedySubtree_Ambiguous(t *testing.T) {
	// both src b subtrees are isomorphic to the dst one, the one under a
	// parent with the same label wins
	f := newFixture(t,
		l("r", l("p", l("b", l("c"), l("d"))), l("q", l("b", l("c"), l("d")))),
		l("r", l("q", l("b", l("c"), l("d")), l("e"))),
	)
	m := f.mappings()
	GreedySubtree{MinHeight: 1, LabelAware: true}.Match(f.src, f.dst, m)

	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Has(f.s(1, 0), f.d(0, 0)))
	assert.True(t, m.Has(f.s(1, 0, 0), f.d(0, 0, 0)))
	assert.True(t, m.Has(f.s(1, 0, 1), f.d(0, 0, 1)))
	assert.False(t, m.IsSrc(f.s(0, 0)))
}

func TestGreedySubtree_LabelUnaware(t *testing.T) {
	f := newFixture(t,
		l("a", l("b", l("c"), l("d"))),
		l("a", l("x", l("y"), l("z")), l("w")),
	)

	m := f.mappings()
	GreedySubtree{MinHeight: 1, LabelAware: true}.Match(f.src, f.dst, m)
	assert.Equal(t, 0, m.Len())

	m = f.mappings()
	GreedySubtree{MinHeight: 1, LabelAware: false}.Match(f.src, f.dst, m)
	assert.True(t, m.Has(f.s(0), f.d(0)))
	assert.True(t, m.Has(f.s(0, 0), f.d(0, 0)))
	assert.True(t, m.Has(f.s(0, 1), f.d(0, 1)))
	assert.Equal(t, 3, m.Len())
}

// td[md[vis "public", name "foo", block[s1..s4]]]
// td[md[vis "private", name "bar", block[s1..s5]]]
func bottomUpExample(t *testing.T) (fixture, *mapping.Store) {
	t.Helper()
	stmts := func(n int) []tree {
		out := make([]tree, n)
		for i := range out {
			out[i] = k("s", "s"+string(rune('1'+i)))
		}
		return out
	}
	f := newFixture(t,
		u("td", u("md", k("vis", "public"), k("name", "foo"), u("block", stmts(4)...))),
		u("td", u("md", k("vis", "private"), k("name", "bar"), u("block", stmts(5)...))),
	)
	m := f.mappings()
	for i := range 4 {
		m.Link(f.s(0, 2, i), f.d(0, 2, i))
	}
	return f, m
}

func TestGreedyBottomUp_Thresholds(t *testing.T) {
	f, seeds := bottomUpExample(t)

	t.Run("strict similarity", func(t *testing.T) {
		m := seeds.Clone()
		GreedyBottomUp{SimThreshold: 1, SizeThreshold: 0}.Match(f.src, f.dst, m)
		assert.Equal(t, 5, m.Len())
		assert.True(t, m.Has(f.src.Root(), f.dst.Root()))
		for s, d := range seeds.Pairs() {
			assert.True(t, m.Has(s, d))
		}
	})

	t.Run("half similarity", func(t *testing.T) {
		m := seeds.Clone()
		GreedyBottomUp{SimThreshold: 0.5, SizeThreshold: 0}.Match(f.src, f.dst, m)
		assert.Equal(t, 7, m.Len())
		assert.True(t, m.Has(f.src.Root(), f.dst.Root()))
		assert.True(t, m.Has(f.s(0), f.d(0)))
		assert.True(t, m.Has(f.s(0, 2), f.d(0, 2)))
	})

	for _, hide := range []bool{false, true} {
		name := "last chance"
		if hide {
			name += " hiding mapped"
		}
		t.Run(name, func(t *testing.T) {
			m := seeds.Clone()
			GreedyBottomUp{SimThreshold: 0.5, SizeThreshold: 10, HideMapped: hide}.Match(f.src, f.dst, m)
			assert.Equal(t, 9, m.Len())
			assert.True(t, m.Has(f.src.Root(), f.dst.Root()))
			assert.True(t, m.Has(f.s(0), f.d(0)))
			assert.True(t, m.Has(f.s(0, 0), f.d(0, 0)))
			assert.True(t, m.Has(f.s(0, 1), f.d(0, 1)))
			assert.True(t, m.Has(f.s(0, 2), f.d(0, 2)))
			for s, d := range seeds.Pairs() {
				assert.True(t, m.Has(s, d))
			}
		})
	}
}

func TestZhangShasha_Paper(t *testing.T) {
	// f[d[q, c[b]], e] -> f[c[d[a, b:t1]], e]
	f := newFixture(t,
		l("f", l("d", l("q"), l("c", l("b"))), l("e")),
		l("f", l("c", l("d", l("a"), k("t1", "b"))), l("e")),
	)
	require.Equal(t, []int{2, 4, 5}, decompress.KeyRoots(f.src))
	require.Equal(t, []int{1, 4, 5}, decompress.KeyRoots(f.dst))

	m := ZhangShasha(f.src, f.dst)
	assert.Equal(t, "{1->0 2->3 4->4 5->5}", m.String())
}

func TestZhangShasha_UpdatesLabels(t *testing.T) {
	f, _ := bottomUpExample(t)
	md := decompress.NewSlice(f.src, f.s(0))
	mdDst := decompress.NewSlice(f.dst, f.d(0))

	m := ZhangShasha(md, mdDst)
	// vis, name, s1..s4, block, md; s5 is an insertion
	assert.Equal(t, "{0->0 1->1 2->2 3->3 4->4 5->5 6->7 7->8}", m.String())
}

func TestQGramDistance(t *testing.T) {
	assert.Zero(t, QGramDistance("abc", "abc"))
	assert.Equal(t, 1.0, QGramDistance("", "abc"))
	assert.Equal(t, 1.0, QGramDistance("foo", "bar"))
	assert.InDelta(t, 0.6, QGramDistance("abc", "abd"), 1e-6)
	assert.InDelta(t, 15.0/17, QGramDistance("public", "private"), 1e-6)
	assert.Equal(t, QGramDistance("abc", "abd"), QGramDistance("abd", "abc"))
}

func TestSimilarity(t *testing.T) {
	f, seeds := bottomUpExample(t)

	block := Measure(f.src, f.s(0, 2), f.dst, f.d(0, 2), seeds)
	assert.Equal(t, Similarity{Common: 4, Src: 4, Dst: 5}, block)
	assert.InDelta(t, 8.0/9, block.Dice(), 1e-9)
	assert.InDelta(t, 4.0/5, block.Jaccard(), 1e-9)
	assert.InDelta(t, 4.0/5, block.Chawathe(), 1e-9)
	assert.InDelta(t, 1.0, block.Overlap(), 1e-9)

	leaf := Measure(f.src, f.s(0, 0), f.dst, f.d(0, 0), seeds)
	assert.Zero(t, leaf.Dice())
	assert.Zero(t, leaf.Jaccard())
}

func TestDefaultOptions_MatchConfigDefaults(t *testing.T) {
	opts := DefaultOptions()
	def := config.Default()

	assert.True(t, opts.LabelAware)
	assert.Equal(t, def.Matcher.LabelAware, opts.LabelAware)
	assert.Equal(t, def.Matcher.MinHeight, opts.MinHeight)
	assert.Equal(t, def.Matcher.SimThreshold, opts.SimThreshold)
	assert.Equal(t, def.Matcher.SizeThreshold, opts.SizeThreshold)
	assert.Equal(t, def.Diff.IgnoreSpaces, opts.IgnoreSpaces)
	assert.Equal(t, def.Diff.Lazy, opts.Lazy)
}

func TestMatch_Identical(t *testing.T) {
	for _, lazy := range []bool{false, true} {
		s := store.NewStores()
		root := build(s, l("a", l("e", l("f")), l("b", l("c"), l("d")), l("g")))
		opts := DefaultOptions()
		opts.Lazy = lazy

		res := Match(s, root, root, opts)
		require.Equal(t, 7, res.Src.Len())
		assert.Equal(t, 7, res.Mappings.Len())
		for i := range res.Src.Len() {
			assert.True(t, res.Mappings.Has(i, i))
		}
	}
}

func TestMatch_Injective(t *testing.T) {
	s := store.NewStores()
	src := build(s, l("a", l("e", l("f")), l("b", l("c"), l("d")), l("g", l("h")), l("i"), l("j", l("k"))))
	dst := build(s, l("Z", l("b", l("c"), l("d")), l("h", l("e", l("y"))), l("x", l("w")), l("j", l("u", l("v", l("k"))))))

	var phases []Phase
	hooks := Hooks{Start: func(p Phase) { phases = append(phases, p) }}
	for _, lazy := range []bool{false, true} {
		phases = phases[:0]
		opts := DefaultOptions()
		opts.Lazy = lazy
		res := MatchWithHooks(s, src, dst, opts, hooks)

		assert.Equal(t, []Phase{PhaseDecompress, PhaseTopDown, PhaseBottomUp}, phases)
		assert.True(t, res.Mappings.Has(res.Src.Root(), res.Dst.Root()))
		seen := map[int]bool{}
		for a, b := range res.Mappings.Pairs() {
			assert.False(t, seen[b], "dst %d mapped twice", b)
			seen[b] = true
			back, ok := res.Mappings.GetSrc(b)
			assert.True(t, ok)
			assert.Equal(t, a, back)
		}
	}
}
