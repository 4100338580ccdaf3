package mapping

import "slices"

// MultiStore holds candidate pairs where a node may have several
// counterparts. Top-down matching collects isomorphic candidates here
// before choosing among them.
type MultiStore struct {
	src map[int][]int
	dst map[int][]int
}

// NewMulti creates an empty multi mapping.
func NewMulti() *MultiStore {
	return &MultiStore{
		src: make(map[int][]int),
		dst: make(map[int][]int),
	}
}

// Link adds a candidate pair. Adding the same pair twice is a no-op.
func (m *MultiStore) Link(src, dst int) {
	if slices.Contains(m.src[src], dst) {
		return
	}
	m.src[src] = append(m.src[src], dst)
	m.dst[dst] = append(m.dst[dst], src)
}

// Dsts returns the candidates of src.
func (m *MultiStore) Dsts(src int) []int { return m.src[src] }

// Srcs returns the candidates of dst.
func (m *MultiStore) Srcs(dst int) []int { return m.dst[dst] }

// IsSrcUnique reports whether src has exactly one candidate that has no
// other candidate.
func (m *MultiStore) IsSrcUnique(src int) bool {
	ds := m.src[src]
	return len(ds) == 1 && len(m.dst[ds[0]]) == 1
}

// AllSrcs returns the srcs having at least one candidate, sorted.
func (m *MultiStore) AllSrcs() []int {
	out := make([]int, 0, len(m.src))
	for s := range m.src {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of candidate pairs.
func (m *MultiStore) Len() int {
	n := 0
	for _, ds := range m.src {
		n += len(ds)
	}
	return n
}
