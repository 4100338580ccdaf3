package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

type fixture struct {
	*Stores
	ident, call, block types.Type
}

func newFixture() *fixture {
	s := NewStores()
	return &fixture{
		Stores: s,
		ident:  s.Types.Intern("go", "identifier", types.Named|types.Identifier),
		call:   s.Types.Intern("go", "call_expression", types.Named),
		block:  s.Types.Intern("go", "block", types.Named),
	}
}

func (f *fixture) leaf(label string) NodeID {
	return f.Build(f.ident, label, true, nil)
}

func (f *fixture) space(text string) NodeID {
	return f.Build(types.Spaces, text, true, nil)
}

func TestLabelStore(t *testing.T) {
	ls := NewLabelStore()

	a := ls.GetOrInsert("foo")
	b := ls.GetOrInsert("bar")
	empty := ls.GetOrInsert("")

	assert.Equal(t, a, ls.GetOrInsert("foo"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, NoLabel, empty)
	assert.Equal(t, "bar", ls.Resolve(b))
	assert.Equal(t, "", ls.Resolve(NoLabel))
	assert.Equal(t, 3, ls.Len())

	_, ok := ls.Get("baz")
	assert.False(t, ok)
}

func TestBuild_Deduplicates(t *testing.T) {
	f := newFixture()

	x1 := f.leaf("x")
	x2 := f.leaf("x")
	require.Equal(t, x1, x2)

	c1 := f.Build(f.call, "", false, []NodeID{f.leaf("print"), x1})
	before := f.Nodes.Len()
	c2 := f.Build(f.call, "", false, []NodeID{f.leaf("print"), x2})

	assert.Equal(t, c1, c2)
	assert.Equal(t, before, f.Nodes.Len())

	// order of children is part of the signature
	c3 := f.Build(f.call, "", false, []NodeID{x1, f.leaf("print")})
	assert.NotEqual(t, c1, c3)
}

func TestBuild_NodeCountMatchesDistinctSignatures(t *testing.T) {
	f := newFixture()

	a, b := f.leaf("a"), f.leaf("b")
	inner := f.Build(f.call, "", false, []NodeID{a, b})
	f.Build(f.block, "", false, []NodeID{inner, inner, a})

	// a, b, call(a b), block(...)
	assert.Equal(t, 4, f.Nodes.Len())
}

func TestBuild_MetricsAdditivity(t *testing.T) {
	f := newFixture()

	a, b := f.leaf("a"), f.leaf("b")
	sp := f.space(" ")
	inner := f.Build(f.call, "", false, []NodeID{a, sp, b})
	root := f.Build(f.block, "", false, []NodeID{inner, f.space("\n"), a})

	for _, id := range []NodeID{a, inner, root} {
		v := f.Resolve(id)
		if !v.HasChildren() {
			assert.Equal(t, uint32(1), v.Size())
			assert.Equal(t, uint32(1), v.Height())
			continue
		}
		var size, noSpaces, height uint32
		for _, c := range v.Children() {
			cv := f.Resolve(c)
			size += cv.Size()
			noSpaces += cv.SizeNoSpaces()
			height = max(height, cv.Height())
		}
		assert.Equal(t, size+1, v.Size())
		assert.Equal(t, noSpaces+1, v.SizeNoSpaces())
		assert.Equal(t, height+1, v.Height())
	}

	rv := f.Resolve(root)
	assert.Equal(t, uint32(7), rv.Size())
	assert.Equal(t, uint32(5), rv.SizeNoSpaces())
	assert.Equal(t, uint32(3), rv.Height())
	assert.Equal(t, uint16(1), rv.LineCount())
	assert.Equal(t, []NodeID{inner, a}, rv.NoSpaceChildren())
	assert.Len(t, rv.Children(), 3)
}

func TestBuild_SpacingMetrics(t *testing.T) {
	f := newFixture()

	sp := f.space("\n\n  ")
	v := f.Resolve(sp)

	assert.Equal(t, uint32(1), v.Size())
	assert.Equal(t, uint32(0), v.SizeNoSpaces())
	assert.Equal(t, uint32(0), v.Height())
	assert.Equal(t, uint16(2), v.LineCount())
	assert.Equal(t, uint32(0), v.Hashes().Struct)
	assert.Equal(t, uint32(0), v.Hashes().Label)
	assert.NotZero(t, v.Hashes().Syntax)
	assert.Equal(t, sp, f.space("\n\n  "))
}

func TestBuild_StructuralHashIgnoresLabels(t *testing.T) {
	f := newFixture()

	c1 := f.Build(f.call, "", false, []NodeID{f.leaf("f"), f.leaf("x")})
	c2 := f.Build(f.call, "", false, []NodeID{f.leaf("g"), f.leaf("y")})

	h1, h2 := f.Resolve(c1).Hashes(), f.Resolve(c2).Hashes()
	assert.Equal(t, h1.Struct, h2.Struct)
	assert.NotEqual(t, h1.Label, h2.Label)
	assert.NotEqual(t, c1, c2)
}

func TestPrepareInsertion_Collision(t *testing.T) {
	ns := NewNodeStore()

	ins := ns.PrepareInsertion(42, func(NodeView) bool { return true })
	_, ok := ins.Occupied()
	require.False(t, ok)
	first := ns.InsertAfterPrepare(ins, Node{Type: 1})

	// same hash, rejected by the predicate
	ins = ns.PrepareInsertion(42, func(v NodeView) bool { return v.Type() == 2 })
	_, ok = ins.Occupied()
	require.False(t, ok)
	second := ns.InsertAfterPrepare(ins, Node{Type: 2})
	assert.NotEqual(t, first, second)

	ins = ns.PrepareInsertion(42, func(v NodeView) bool { return v.Type() == 2 })
	got, ok := ins.Occupied()
	require.True(t, ok)
	assert.Equal(t, second, got)

	assert.Panics(t, func() { ns.InsertAfterPrepare(ins, Node{}) })
}

func TestNodeStore_ChunkBoundaries(t *testing.T) {
	ns := NewNodeStore()
	var ids []NodeID
	for i := 0; i < chunkSize*2+3; i++ {
		ins := ns.PrepareInsertion(uint32(i), func(NodeView) bool { return false })
		ids = append(ids, ns.InsertAfterPrepare(ins, Node{BytesLen: uint32(i)}))
	}

	for i, id := range ids {
		assert.Equal(t, uint32(i), ns.Resolve(id).BytesLen())
	}
	assert.Equal(t, len(ids), ns.Len())
	assert.Panics(t, func() { ns.Resolve(0) })
	assert.Panics(t, func() { ns.Resolve(NodeID(len(ids) + 1)) })
}

func TestNodeStore_ConcurrentReaders(t *testing.T) {
	f := newFixture()
	root := f.Build(f.block, "", false, []NodeID{f.leaf("a"), f.leaf("b")})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			f.leaf(string(rune('c' + i%20)))
			f.Build(f.call, "", false, []NodeID{f.leaf("a"), f.leaf(string(rune('c' + i%20)))})
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v := f.Resolve(root)
				assert.Equal(t, uint32(3), v.Size())
			}
		}()
	}
	wg.Wait()
}

func TestBloom(t *testing.T) {
	var b Bloom
	assert.True(t, b.Empty())

	b.Add("foo")
	b.Add("bar")
	assert.True(t, b.MayContain("foo"))
	assert.True(t, b.MayContain("bar"))
	assert.False(t, b.Empty())

	var o Bloom
	o.Add("baz")
	b.Union(&o)
	assert.True(t, b.MayContain("baz"))
}

func TestBuild_References(t *testing.T) {
	f := newFixture()
	kw := f.Types.Intern("go", "return", 0)

	call := f.Build(f.call, "", false, []NodeID{f.leaf("println"), f.Build(kw, "return", true, nil)})
	root := f.Build(f.block, "", false, []NodeID{call})

	v := f.Resolve(root)
	assert.True(t, v.MayReference("println"))
	assert.NotNil(t, v.Refs())
	assert.Nil(t, f.Resolve(f.leaf("println")).Refs())
}

func TestFormat(t *testing.T) {
	f := newFixture()
	root := f.Build(f.call, "", false, []NodeID{f.leaf("f"), f.space(" "), f.leaf("x")})

	assert.Equal(t, `call_expression (identifier "f" identifier "x")`, f.Format(root))
	assert.Equal(t, "go:call_expression", f.TypeName(root))
	assert.Equal(t, "x", f.LabelOf(f.leaf("x")))
}
