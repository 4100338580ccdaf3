package matchers

import (
	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
)

// Similarity counts how much two subtrees share through a mapping.
type Similarity struct {
	// Common is the number of src descendants mapped to a dst descendant.
	Common int
	Src    int
	Dst    int
}

// Measure compares the descendants of s and d.
func Measure(src decompress.Tree, s int, dst decompress.Tree, d int, m *mapping.Store) Similarity {
	dLo := dst.LLD(d)
	common := 0
	for i := src.LLD(s); i < s; i++ {
		if t, ok := m.GetDst(i); ok && t >= dLo && t < d {
			common++
		}
	}
	return Similarity{
		Common: common,
		Src:    decompress.DescendantsCount(src, s),
		Dst:    decompress.DescendantsCount(dst, d),
	}
}

// Dice is 2*common / (|src|+|dst|).
func (s Similarity) Dice() float64 {
	if s.Src+s.Dst == 0 {
		return 0
	}
	return 2 * float64(s.Common) / float64(s.Src+s.Dst)
}

// Jaccard is common / |src ∪ dst|.
func (s Similarity) Jaccard() float64 {
	u := s.Src + s.Dst - s.Common
	if u == 0 {
		return 0
	}
	return float64(s.Common) / float64(u)
}

// Chawathe is common / max(|src|, |dst|).
func (s Similarity) Chawathe() float64 {
	m := max(s.Src, s.Dst)
	if m == 0 {
		return 0
	}
	return float64(s.Common) / float64(m)
}

// Overlap is common / min(|src|, |dst|).
func (s Similarity) Overlap() float64 {
	m := min(s.Src, s.Dst)
	if m == 0 {
		return 0
	}
	return float64(s.Common) / float64(m)
}
