package decompress

import "github.com/HyperAST/HyperAST-sub006/internal/store"

// Slice is the subtree of one node of a view, renumbered from 0.
type Slice struct {
	t      Tree
	offset int
	root   int
}

// NewSlice returns the subtree rooted at i. A lazy view is decompressed
// below i first.
func NewSlice(t Tree, i int) *Slice {
	if l, ok := t.(*LazyPostOrder); ok {
		l.DecompressDescendants(i)
	}
	return &Slice{t: t, offset: t.LLD(i), root: i}
}

func (s *Slice) Source() Source { return s.t.Source() }
func (s *Slice) Len() int       { return s.root - s.offset + 1 }
func (s *Slice) Root() int      { return s.root - s.offset }

// Back returns the index of j in the sliced view.
func (s *Slice) Back(j int) int {
	return j + s.offset
}

func (s *Slice) Original(j int) store.NodeID {
	checkIndex(s.Len(), j)
	return s.t.Original(j + s.offset)
}

func (s *Slice) LLD(j int) int {
	checkIndex(s.Len(), j)
	return s.t.LLD(j+s.offset) - s.offset
}

func (s *Slice) Parent(j int) (int, bool) {
	checkIndex(s.Len(), j)
	if j+s.offset == s.root {
		return 0, false
	}
	p, _ := s.t.Parent(j + s.offset)
	return p - s.offset, true
}

func (s *Slice) Children(j int) []int {
	checkIndex(s.Len(), j)
	cs := s.t.Children(j + s.offset)
	out := make([]int, len(cs))
	for k, c := range cs {
		out[k] = c - s.offset
	}
	return out
}
