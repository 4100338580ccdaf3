package matchers

import (
	"cmp"
	"math"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/hashed"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/lcs"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// GreedySubtree is the top-down phase: it maps the highest isomorphic
// subtrees first, with all their descendants. Subtrees isomorphic to several
// candidates are ranked by the similarity of their surroundings.
type GreedySubtree struct {
	// MinHeight excludes lower subtrees, a leaf has height 0.
	MinHeight int
	// LabelAware requires equal labels; otherwise only shapes and types are
	// compared.
	LabelAware bool
}

type link struct{ src, dst int }

// Match adds the mappings it finds to m.
func (g GreedySubtree) Match(src, dst decompress.Tree, m *mapping.Store) {
	mm := mapping.NewMulti()
	g.candidates(src, dst, mm)
	g.filter(src, dst, mm, m)
}

func (g GreedySubtree) candidates(src, dst decompress.Tree, mm *mapping.MultiStore) {
	srcTrees := newPriorityList(src, g.MinHeight)
	dstTrees := newPriorityList(dst, g.MinHeight)
	for srcTrees.peek() != -1 && dstTrees.peek() != -1 {
		for srcTrees.peek() != dstTrees.peek() {
			if srcTrees.peek() > dstTrees.peek() {
				srcTrees.open()
			} else {
				dstTrees.open()
			}
		}
		ss := srcTrees.pop()
		ds := dstTrees.pop()
		if ss == nil || ds == nil {
			break
		}

		srcMarks := make([]bool, len(ss))
		dstMarks := make([]bool, len(ds))
		for i, s := range ss {
			for j, d := range ds {
				if g.isomorphic(src, s, dst, d) {
					mm.Link(s, d)
					srcMarks[i] = true
					dstMarks[j] = true
				}
			}
		}
		for i, s := range ss {
			if !srcMarks[i] {
				srcTrees.openTree(s)
			}
		}
		for j, d := range ds {
			if !dstMarks[j] {
				dstTrees.openTree(d)
			}
		}
		srcTrees.updateHeight()
		dstTrees.updateHeight()
	}
}

func (g GreedySubtree) filter(src, dst decompress.Tree, mm *mapping.MultiStore, m *mapping.Store) {
	var ambiguous []link
	ignored := bitset.New(uint(src.Len()))
	for _, s := range mm.AllSrcs() {
		ds := mm.Dsts(s)
		if len(ds) == 1 && len(mm.Srcs(ds[0])) == 1 {
			addRecursively(src, s, dst, ds[0], m)
			continue
		}
		if ignored.Test(uint(s)) {
			continue
		}
		srcs := mm.Srcs(ds[0])
		for _, as := range srcs {
			for _, ad := range ds {
				ambiguous = append(ambiguous, link{as, ad})
			}
			ignored.Set(uint(as))
		}
	}

	r := &ranker{src: src, dst: dst, m: m}
	slices.SortStableFunc(ambiguous, r.compare)

	srcIgnored := bitset.New(uint(src.Len()))
	dstIgnored := bitset.New(uint(dst.Len()))
	for _, l := range ambiguous {
		if srcIgnored.Test(uint(l.src)) || dstIgnored.Test(uint(l.dst)) {
			continue
		}
		addRecursively(src, l.src, dst, l.dst, m)
		for i := src.LLD(l.src); i <= l.src; i++ {
			srcIgnored.Set(uint(i))
		}
		for i := dst.LLD(l.dst); i <= l.dst; i++ {
			dstIgnored.Set(uint(i))
		}
	}
}

// addRecursively maps two isomorphic subtrees node by node.
func addRecursively(src decompress.Tree, s int, dst decompress.Tree, d int, m *mapping.Store) {
	expand(src, s)
	expand(dst, d)
	m.Link(s, d)
	ls, ld := src.LLD(s), dst.LLD(d)
	for k := 0; ls+k < s && ld+k < d; k++ {
		m.Link(ls+k, ld+k)
	}
}

// expand makes the whole subtree of i available in lazy views.
func expand(t decompress.Tree, i int) {
	if l, ok := t.(*decompress.LazyPostOrder); ok {
		l.DecompressDescendants(i)
	}
}

func (g GreedySubtree) isomorphic(src decompress.Tree, s int, dst decompress.Tree, d int) bool {
	return g.isoAux(src.Source(), src.Original(s), dst.Source(), dst.Original(d), true)
}

func (g GreedySubtree) isoAux(ssrc decompress.Source, a store.NodeID, dsrc decompress.Source, b store.NodeID, checkHash bool) bool {
	if a == b {
		return true
	}
	av := ssrc.Stores.Resolve(a)
	bv := dsrc.Stores.Resolve(b)
	kind := hashed.Label
	if !g.LabelAware {
		kind = hashed.Struct
	}
	if checkHash && av.Hashes().Get(kind) != bv.Hashes().Get(kind) {
		return false
	}
	if av.Type() != bv.Type() {
		return false
	}
	if g.LabelAware {
		al, aok := av.Label()
		bl, bok := bv.Label()
		if aok != bok || al != bl {
			return false
		}
	}
	ac := ssrc.Children(a)
	bc := dsrc.Children(b)
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !g.isoAux(ssrc, ac[i], dsrc, bc[i], false) {
			return false
		}
	}
	return true
}

// priorityList buckets subtrees by height, highest first.
type priorityList struct {
	t         decompress.Tree
	stores    *store.Stores
	minHeight int
	maxHeight int
	trees     [][]int
	current   int
}

func newPriorityList(t decompress.Tree, minHeight int) *priorityList {
	p := &priorityList{
		t:         t,
		stores:    t.Source().Stores,
		minHeight: minHeight,
		current:   -1,
	}
	h := p.height(t.Root())
	p.maxHeight = h
	if h >= minHeight {
		p.trees = make([][]int, h+1-minHeight)
		p.current = 0
	}
	p.add(t.Root())
	return p
}

func (p *priorityList) height(i int) int {
	return int(p.stores.Resolve(p.t.Original(i)).Height()) - 1
}

func (p *priorityList) add(i int) {
	h := p.height(i)
	if h < p.minHeight {
		return
	}
	idx := p.maxHeight - h
	p.trees[idx] = append(p.trees[idx], i)
}

func (p *priorityList) peek() int {
	if p.current == -1 {
		return -1
	}
	return p.maxHeight - p.current
}

func (p *priorityList) pop() []int {
	if p.current == -1 {
		return nil
	}
	out := p.trees[p.current]
	p.trees[p.current] = nil
	return out
}

func (p *priorityList) open() {
	for _, i := range p.pop() {
		p.openTree(i)
	}
	p.updateHeight()
}

func (p *priorityList) openTree(i int) {
	for _, c := range p.t.Children(i) {
		p.add(c)
	}
}

func (p *priorityList) updateHeight() {
	p.current = -1
	for i, ts := range p.trees {
		if len(ts) > 0 {
			p.current = i
			return
		}
	}
}

// ranker orders ambiguous candidates: similar siblings first, then similar
// ancestors, then close relative positions, then close indices.
type ranker struct {
	src, dst decompress.Tree
	m        *mapping.Store
	sib      map[link]float64
	parent   map[link]float64
	pos      map[link]float64
}

func (r *ranker) compare(a, b link) int {
	if r.sib == nil {
		r.sib = map[link]float64{}
		r.parent = map[link]float64{}
		r.pos = map[link]float64{}
	}
	if !r.sameParents(a, b) {
		if c := cmp.Compare(r.cached(r.sib, b, r.coefSib), r.cached(r.sib, a, r.coefSib)); c != 0 {
			return c
		}
		if c := cmp.Compare(r.cached(r.parent, b, r.coefParent), r.cached(r.parent, a, r.coefParent)); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(r.cached(r.pos, a, r.coefPosInParent), r.cached(r.pos, b, r.coefPosInParent)); c != 0 {
		return c
	}
	return cmp.Compare(absDiff(a.src, a.dst), absDiff(b.src, b.dst))
}

func (r *ranker) cached(cache map[link]float64, l link, f func(link) float64) float64 {
	if v, ok := cache[l]; ok {
		return v
	}
	v := f(l)
	cache[l] = v
	return v
}

func (r *ranker) sameParents(a, b link) bool {
	as, aok := r.src.Parent(a.src)
	bs, bok := r.src.Parent(b.src)
	if aok != bok || as != bs {
		return false
	}
	ad, aok := r.dst.Parent(a.dst)
	bd, bok := r.dst.Parent(b.dst)
	return aok == bok && ad == bd
}

// coefSib is the dice similarity of the parents.
func (r *ranker) coefSib(l link) float64 {
	ps, ok := r.src.Parent(l.src)
	if !ok {
		return 0
	}
	pd, ok := r.dst.Parent(l.dst)
	if !ok {
		return 0
	}
	return Measure(r.src, ps, r.dst, pd, r.m).Dice()
}

// coefParent compares the chains of ancestors by type and label.
func (r *ranker) coefParent(l link) float64 {
	s1 := slices.Collect(decompress.Ancestors(r.src, l.src))
	s2 := slices.Collect(decompress.Ancestors(r.dst, l.dst))
	if len(s1)+len(s2) == 0 {
		return 0
	}
	ss := r.src.Source().Stores
	ds := r.dst.Source().Stores
	common := lcs.Len(s1, s2, func(a, b int) bool {
		av := ss.Resolve(r.src.Original(a))
		bv := ds.Resolve(r.dst.Original(b))
		al, aok := av.Label()
		bl, bok := bv.Label()
		return av.Type() == bv.Type() && aok == bok && al == bl
	})
	return 2 * float64(common) / float64(len(s1)+len(s2))
}

// coefPosInParent is the distance between the relative positions of both
// nodes and their ancestors.
func (r *ranker) coefPosInParent(l link) float64 {
	sp := relativePositions(r.src, l.src)
	dp := relativePositions(r.dst, l.dst)
	sum := 0.0
	for i := 0; i < len(sp) && i < len(dp); i++ {
		d := sp[i] - dp[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func relativePositions(t decompress.Tree, i int) []float64 {
	var out []float64
	for {
		p, ok := t.Parent(i)
		if !ok {
			return out
		}
		out = append(out, float64(decompress.PositionInParent(t, i))/float64(len(t.Children(p))))
		i = p
	}
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
