package matchers

import (
	"math"

	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// ZhangShasha maps two trees along an optimal edit script of the Zhang-Shasha
// tree edit distance. Insertions and deletions cost 1; updates cost the
// q-gram distance of the labels and are forbidden between different types.
//
// Time is quadratic in the product of the sizes, callers bound the inputs.
func ZhangShasha(src, dst decompress.Tree) *mapping.Store {
	z := newZS(src, dst)
	z.computeDist()
	m := mapping.New(src.Len(), dst.Len())
	z.computeMappings(m)
	return m
}

type zs struct {
	src, dst decompress.Tree
	stores   *store.Stores
	w        int
	tree     []float64
	forest   []float64
}

func newZS(src, dst decompress.Tree) *zs {
	w := dst.Len() + 1
	n := (src.Len() + 1) * w
	return &zs{
		src:    src,
		dst:    dst,
		stores: src.Source().Stores,
		w:      w,
		tree:   make([]float64, n),
		forest: make([]float64, n),
	}
}

func (z *zs) f(row, col int) float64 { return z.forest[row*z.w+col] }

func (z *zs) updateCost(s, d int) float64 {
	sv := z.stores.Resolve(z.src.Original(s))
	dv := z.stores.Resolve(z.dst.Original(d))
	if sv.Type() != dv.Type() {
		return math.MaxFloat64
	}
	sl, ok := sv.Label()
	if !ok {
		return 1
	}
	dl, ok := dv.Label()
	if !ok {
		return 1
	}
	if sl == dl {
		return 0
	}
	return QGramDistance(z.stores.Labels.Resolve(sl), z.stores.Labels.Resolve(dl))
}

func (z *zs) computeDist() {
	srcKR := decompress.KeyRoots(z.src)
	dstKR := decompress.KeyRoots(z.dst)
	for _, i := range srcKR {
		for _, j := range dstKR {
			z.forestDist(i, j)
		}
	}
}

func (z *zs) forestDist(i, j int) {
	const costDel, costIns = 1.0, 1.0
	w := z.w
	li := z.src.LLD(i)
	lj := z.dst.LLD(j)
	z.forest[li*w+lj] = 0
	for di := li; di <= i; di++ {
		ldi := z.src.LLD(di)
		z.forest[(di+1)*w+lj] = z.forest[di*w+lj] + costDel
		for dj := lj; dj <= j; dj++ {
			ldj := z.dst.LLD(dj)
			z.forest[li*w+dj+1] = z.forest[li*w+dj] + costIns
			del := z.forest[di*w+dj+1] + costDel
			ins := z.forest[(di+1)*w+dj] + costIns
			if ldi == li && ldj == lj {
				upd := z.forest[di*w+dj] + z.updateCost(di, dj)
				z.forest[(di+1)*w+dj+1] = min(del, ins, upd)
				z.tree[(di+1)*w+dj+1] = z.forest[(di+1)*w+dj+1]
			} else {
				sub := z.f(ldi, ldj) + z.tree[(di+1)*w+dj+1]
				z.forest[(di+1)*w+dj+1] = min(del, ins, sub)
			}
		}
	}
}

// computeMappings walks the distance tables back from the roots. Rows and
// columns are shifted by one: row r stands for the forest ending at r-1.
func (z *zs) computeMappings(m *mapping.Store) {
	type pair struct{ row, col int }
	rootPair := true
	pairs := []pair{{z.src.Root() + 1, z.dst.Root() + 1}}
	for len(pairs) > 0 {
		p := pairs[len(pairs)-1]
		pairs = pairs[:len(pairs)-1]
		lastRow, lastCol := p.row, p.col
		if !rootPair {
			z.forestDist(lastRow-1, lastCol-1)
		}
		rootPair = false

		firstRow := z.src.LLD(lastRow - 1)
		firstCol := z.dst.LLD(lastCol - 1)
		row, col := lastRow, lastCol
		for row > firstRow || col > firstCol {
			switch {
			case row > firstRow && z.f(row-1, col)+1 == z.f(row, col):
				row--
			case col > firstCol && z.f(row, col-1)+1 == z.f(row, col):
				col--
			case z.src.LLD(row-1) == z.src.LLD(lastRow-1) && z.dst.LLD(col-1) == z.dst.LLD(lastCol-1):
				s, d := row-1, col-1
				if z.stores.Resolve(z.src.Original(s)).Type() != z.stores.Resolve(z.dst.Original(d)).Type() {
					panic("matchers: zhang-shasha mapped nodes of different types")
				}
				m.Link(s, d)
				row--
				col--
			default:
				pairs = append(pairs, pair{row, col})
				if row > 0 {
					row = z.src.LLD(row - 1)
				}
				if col > 0 {
					col = z.dst.LLD(col - 1)
				}
			}
		}
	}
}
