package actions

import (
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/lcs"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// Generate computes an edit script turning src into dst given the mappings
// between their indices (Chawathe et al.). The script is built against an
// intermediate forest that starts as a copy of src and is edited along the
// way, so the Mid paths of each action are valid right after the previous
// action applied.
//
// Both views must be fully decompressed. The roots are expected to be mapped;
// when they are not, the dst root is inserted as a new root of the forest
// and the src root is deleted once its mapped descendants moved out.
func Generate(src, dst decompress.Tree, m *mapping.Store) []Action {
	g := newGenerator(src, dst, m)
	g.insMovUpd()
	g.del()
	return g.actions
}

type midNode struct {
	// parent is the node itself for roots.
	parent   int
	children []int
	node     store.NodeID
}

type generator struct {
	stores   *store.Stores
	src, dst decompress.Tree
	ori      *mapping.Store
	// cpy also maps the inserted nodes, numbered after the src nodes.
	cpy   *mapping.Store
	mid   []midNode
	roots []int

	srcInOrder *bitset.BitSet
	dstInOrder *bitset.BitSet

	actions []Action
}

func newGenerator(src, dst decompress.Tree, m *mapping.Store) *generator {
	n := src.Len()
	g := &generator{
		stores:     src.Source().Stores,
		src:        src,
		dst:        dst,
		ori:        m,
		cpy:        mapping.New(n+dst.Len(), dst.Len()),
		mid:        make([]midNode, n, n+dst.Len()),
		roots:      []int{src.Root()},
		srcInOrder: bitset.New(uint(n + dst.Len())),
		dstInOrder: bitset.New(uint(dst.Len())),
	}
	for s, d := range m.Pairs() {
		g.cpy.Link(s, d)
	}
	for i := range n {
		p, ok := src.Parent(i)
		if !ok {
			p = i
		}
		g.mid[i] = midNode{
			parent:   p,
			children: slices.Clone(src.Children(i)),
			node:     src.Original(i),
		}
	}
	return g
}

func (g *generator) insMovUpd() {
	for _, x := range decompress.BreadthFirst(g.dst) {
		y, hasParent := g.dst.Parent(x)
		z := -1
		if hasParent {
			z, _ = g.cpy.GetSrc(y)
		}

		w, mapped := g.cpy.GetSrc(x)
		if !mapped {
			w = g.insert(x, y, hasParent, z)
		} else {
			g.moveOrUpdate(w, x, y, hasParent, z)
		}

		g.srcInOrder.Set(uint(w))
		g.dstInOrder.Set(uint(x))
		g.alignChildren(w, x)
	}
}

func (g *generator) insert(x, y int, hasParent bool, z int) int {
	k := 0
	if hasParent {
		k = g.findPos(x, y)
	}
	w := len(g.mid)
	parent := w
	if z >= 0 {
		parent = z
	}
	g.mid = append(g.mid, midNode{parent: parent, node: g.dst.Original(x)})
	g.cpy.Link(w, x)

	var mid []int
	switch {
	case z >= 0:
		mid = append(g.path(z), k)
	case hasParent:
		mid = []int{k}
	default:
		mid = []int{len(g.roots)}
	}
	g.actions = append(g.actions, Action{
		Kind: Insert,
		Path: Path{Ori: decompress.Path(g.dst, x), Mid: mid},
		Node: g.dst.Original(x),
	})
	if z >= 0 {
		g.mid[z].children = slices.Insert(g.mid[z].children, k, w)
	} else {
		g.roots = append(g.roots, w)
	}
	return w
}

func (g *generator) moveOrUpdate(w, x, y int, hasParent bool, z int) {
	v := g.mid[w].parent
	if v == w {
		v = -1
	}
	changed := g.differs(g.mid[w].node, g.dst.Original(x))

	if z != v {
		from := Path{Ori: g.origSrc(w), Mid: g.path(w)}
		moved := g.mid[w].node
		if v >= 0 {
			g.removeChild(v, w)
		}
		k := 0
		if hasParent {
			k = g.findPos(x, y)
		}
		if z >= 0 {
			g.mid[z].children = slices.Insert(g.mid[z].children, k, w)
			g.mid[w].parent = z
		} else {
			g.mid[w].parent = w
		}
		a := Action{
			Kind: Move,
			Path: Path{Ori: decompress.Path(g.dst, x), Mid: g.path(w)},
			From: &from,
			Node: moved,
		}
		if changed {
			a.Kind = MoveUpdate
			a.Node = g.dst.Original(x)
			g.mid[w].node = g.dst.Original(x)
		}
		g.actions = append(g.actions, a)
		return
	}
	if changed {
		g.actions = append(g.actions, Action{
			Kind: Update,
			Path: Path{Ori: g.origSrc(w), Mid: g.path(w)},
			Node: g.dst.Original(x),
		})
		g.mid[w].node = g.dst.Original(x)
	}
}

// differs reports whether replacing a by b needs an update: labels or types
// differ.
func (g *generator) differs(a, b store.NodeID) bool {
	av := g.stores.Resolve(a)
	bv := g.stores.Resolve(b)
	al, aok := av.Label()
	bl, bok := bv.Label()
	return aok != bok || al != bl || av.Type() != bv.Type()
}

// alignChildren moves the mapped children of w that are out of order with
// the children of x, keeping a longest common subsequence in place.
func (g *generator) alignChildren(w, x int) {
	wc := g.mid[w].children
	xc := g.dst.Children(x)
	for _, c := range wc {
		g.srcInOrder.Clear(uint(c))
	}
	for _, c := range xc {
		g.dstInOrder.Clear(uint(c))
	}

	var s1, s2 []int
	for _, c := range wc {
		if d, ok := g.cpy.GetDst(c); ok && slices.Contains(xc, d) {
			s1 = append(s1, c)
		}
	}
	for _, c := range xc {
		if s, ok := g.cpy.GetSrc(c); ok && slices.Contains(wc, s) {
			s2 = append(s2, c)
		}
	}

	inLCS := map[[2]int]bool{}
	for _, p := range lcs.Pairs(s1, s2, g.cpy.Has) {
		a, b := s1[p.A], s2[p.B]
		inLCS[[2]int{a, b}] = true
		g.srcInOrder.Set(uint(a))
		g.dstInOrder.Set(uint(b))
	}

	for _, a := range s1 {
		for _, b := range s2 {
			if !g.ori.Has(a, b) || inLCS[[2]int{a, b}] {
				continue
			}
			from := Path{Ori: g.origSrc(a), Mid: g.path(a)}
			g.removeChild(w, a)
			k := g.findPos(b, x)
			cs := g.mid[w].children
			if k > len(cs) {
				k = len(cs)
			}
			g.mid[w].children = slices.Insert(cs, k, a)
			g.mid[a].parent = w
			g.actions = append(g.actions, Action{
				Kind: Move,
				Path: Path{Ori: decompress.Path(g.dst, b), Mid: g.path(a)},
				From: &from,
				Node: g.mid[a].node,
			})
			g.srcInOrder.Set(uint(a))
			g.dstInOrder.Set(uint(b))
		}
	}
}

// findPos returns where the partner of dst node x goes among the children
// of the partner of its parent y: right after the partner of its closest
// in-order left sibling.
func (g *generator) findPos(x, y int) int {
	siblings := g.dst.Children(y)
	for _, c := range siblings {
		if g.dstInOrder.Test(uint(c)) {
			if c == x {
				return 0
			}
			break
		}
	}
	v := -1
	for _, c := range siblings {
		if c == x {
			break
		}
		if g.dstInOrder.Test(uint(c)) {
			v = c
		}
	}
	if v < 0 {
		return 0
	}
	u, _ := g.cpy.GetSrc(v)
	p := g.mid[u].parent
	return slices.Index(g.mid[p].children, u) + 1
}

// del removes every node without partner, children before parents. Roots
// are swept last to first so the Mid index of the roots left to visit stays
// valid when a root is deleted.
func (g *generator) del() {
	for i := len(g.roots) - 1; i >= 0; i-- {
		g.delUnder(i)
	}
}

func (g *generator) delUnder(root int) {
	type frame struct{ id, idx int }
	stack := []frame{{g.roots[root], 0}}
	for {
		w := -1
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cs := g.mid[f.id].children
			if f.idx == len(cs) {
				w = f.id
				break
			}
			stack = append(stack, frame{f.id, f.idx + 1}, frame{cs[f.idx], 0})
		}
		if w < 0 {
			return
		}
		if g.cpy.IsSrc(w) {
			continue
		}
		g.actions = append(g.actions, Action{
			Kind: Delete,
			Path: Path{Ori: g.origSrc(w), Mid: g.path(w)},
			Node: g.mid[w].node,
		})
		if v := g.mid[w].parent; v != w {
			g.removeChild(v, w)
			stack[len(stack)-1].idx--
		} else {
			g.roots = slices.Delete(g.roots, root, root+1)
		}
	}
}

func (g *generator) removeChild(p, c int) {
	cs := g.mid[p].children
	i := slices.Index(cs, c)
	if i < 0 {
		panic("actions: node missing from its parent in the intermediate tree")
	}
	g.mid[p].children = slices.Delete(cs, i, i+1)
}

// path returns the Mid path of a node of the intermediate forest.
func (g *generator) path(z int) []int {
	var r []int
	for {
		p := g.mid[z].parent
		if p == z {
			i := slices.Index(g.roots, z)
			if i < 0 {
				panic("actions: root missing from the intermediate forest")
			}
			r = append(r, i)
			break
		}
		r = append(r, slices.Index(g.mid[p].children, z))
		z = p
	}
	slices.Reverse(r)
	return r
}

// origSrc returns the path of w in src, nil for inserted nodes.
func (g *generator) origSrc(w int) []int {
	if w >= g.src.Len() {
		return nil
	}
	return decompress.Path(g.src, w)
}
