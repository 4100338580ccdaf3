package matchers

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
)

// GreedyBottomUp is the bottom-up phase. Every unmapped inner src node is
// paired with the dst node of the same type whose descendants share the most
// mappings with its own, then the pair's subtrees are repaired with an
// optimal matching when they are small enough. Both views must be fully
// decompressed.
type GreedyBottomUp struct {
	// SimThreshold is the minimal dice similarity of a candidate.
	SimThreshold float64
	// SizeThreshold bounds the last-chance matching: it only runs when one
	// side has fewer descendants.
	SizeThreshold int
	// HideMapped collapses already mapped subtrees before the last-chance
	// matching.
	HideMapped bool
}

// Match adds the mappings it finds to m.
func (g GreedyBottomUp) Match(src, dst decompress.Tree, m *mapping.Store) {
	for a := 0; a < src.Len(); a++ {
		if _, ok := src.Parent(a); !ok {
			break
		}
		if m.IsSrc(a) || src.LLD(a) == a {
			continue
		}
		best, bestSim := -1, -1.0
		for _, cand := range candidates(src, a, dst, m) {
			sim := Measure(src, a, dst, cand, m).Dice()
			if sim > bestSim && sim >= g.SimThreshold {
				bestSim = sim
				best = cand
			}
		}
		if best >= 0 {
			g.lastChance(src, a, dst, best, m)
			m.Link(a, best)
		}
	}
	m.Link(src.Root(), dst.Root())
	g.lastChance(src, src.Root(), dst, dst.Root(), m)
}

// candidates returns the unmapped dst ancestors of the partners of the
// mapped descendants of s that have the type of s, the dst root excluded.
func candidates(src decompress.Tree, s int, dst decompress.Tree, m *mapping.Store) []int {
	stores := src.Source().Stores
	t := stores.Resolve(src.Original(s)).Type()
	var out []int
	visited := bitset.New(uint(dst.Len()))
	for c := src.LLD(s); c < s; c++ {
		seed, ok := m.GetDst(c)
		if !ok {
			continue
		}
		for {
			p, ok := dst.Parent(seed)
			if !ok || visited.Test(uint(p)) {
				break
			}
			visited.Set(uint(p))
			if stores.Resolve(dst.Original(p)).Type() == t && !m.IsDst(p) && p != dst.Root() {
				out = append(out, p)
			}
			seed = p
		}
	}
	return out
}

// lastChance runs Zhang-Shasha on the subtrees of s and d and keeps the
// mappings between unmapped nodes of equal types.
func (g GreedyBottomUp) lastChance(src decompress.Tree, s int, dst decompress.Tree, d int, m *mapping.Store) {
	if !(decompress.DescendantsCount(src, s) < g.SizeThreshold || decompress.DescendantsCount(dst, d) < g.SizeThreshold) {
		return
	}
	ss := decompress.NewSlice(src, s)
	ds := decompress.NewSlice(dst, d)
	var st, dt decompress.Tree = ss, ds
	srcBack, dstBack := ss.Back, ds.Back
	if g.HideMapped {
		sh := decompress.NewHidingMapper(ss, func(i int) bool { return i != ss.Root() && m.IsSrc(ss.Back(i)) })
		dh := decompress.NewHidingMapper(ds, func(i int) bool { return i != ds.Root() && m.IsDst(ds.Back(i)) })
		st, dt = sh, dh
		srcBack = func(i int) int { return ss.Back(sh.Back(i)) }
		dstBack = func(i int) int { return ds.Back(dh.Back(i)) }
	}

	stores := src.Source().Stores
	for i, j := range ZhangShasha(st, dt).Pairs() {
		a, b := srcBack(i), dstBack(j)
		if m.IsSrc(a) || m.IsDst(b) {
			continue
		}
		if stores.Resolve(src.Original(a)).Type() == stores.Resolve(dst.Original(b)).Type() {
			m.Link(a, b)
		}
	}
}
