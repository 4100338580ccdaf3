// Package mapping records which nodes of a source view correspond to which
// nodes of a destination view.
//
// Indices are those of decompress views. A Store is always a partial
// injection: linking a pair first cuts whatever either side was mapped to.
package mapping

import (
	"fmt"
	"iter"
)

// Store is a one-to-one mapping between src and dst indices.
type Store struct {
	// index+1, 0 when unmapped
	srcToDst []uint32
	dstToSrc []uint32
	count    int
}

// New creates an empty mapping for views of the given lengths.
func New(srcLen, dstLen int) *Store {
	return &Store{
		srcToDst: make([]uint32, srcLen),
		dstToSrc: make([]uint32, dstLen),
	}
}

// SrcLen returns the length of the source view.
func (m *Store) SrcLen() int { return len(m.srcToDst) }

// DstLen returns the length of the destination view.
func (m *Store) DstLen() int { return len(m.dstToSrc) }

// Len returns the number of linked pairs.
func (m *Store) Len() int { return m.count }

// Link maps src to dst, cutting previous links of both.
func (m *Store) Link(src, dst int) {
	if d, ok := m.GetDst(src); ok {
		m.Cut(src, d)
	}
	if s, ok := m.GetSrc(dst); ok {
		m.Cut(s, dst)
	}
	m.srcToDst[src] = uint32(dst) + 1
	m.dstToSrc[dst] = uint32(src) + 1
	m.count++
}

// LinkIfBothUnmapped links src and dst only when neither is mapped.
func (m *Store) LinkIfBothUnmapped(src, dst int) bool {
	if m.IsSrc(src) || m.IsDst(dst) {
		return false
	}
	m.Link(src, dst)
	return true
}

// Cut removes the link between src and dst. It panics if they are not linked
// together.
func (m *Store) Cut(src, dst int) {
	if !m.Has(src, dst) {
		panic(fmt.Sprintf("mapping: cut of unlinked pair (%d, %d)", src, dst))
	}
	m.srcToDst[src] = 0
	m.dstToSrc[dst] = 0
	m.count--
}

// IsSrc reports whether src is mapped.
func (m *Store) IsSrc(src int) bool { return m.srcToDst[src] != 0 }

// IsDst reports whether dst is mapped.
func (m *Store) IsDst(dst int) bool { return m.dstToSrc[dst] != 0 }

// GetDst returns the dst mapped to src.
func (m *Store) GetDst(src int) (int, bool) {
	d := m.srcToDst[src]
	return int(d) - 1, d != 0
}

// GetSrc returns the src mapped to dst.
func (m *Store) GetSrc(dst int) (int, bool) {
	s := m.dstToSrc[dst]
	return int(s) - 1, s != 0
}

// Has reports whether src and dst are linked together.
func (m *Store) Has(src, dst int) bool {
	return m.srcToDst[src] == uint32(dst)+1
}

// Pairs iterates over linked pairs in increasing src order.
func (m *Store) Pairs() iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		for s, d := range m.srcToDst {
			if d != 0 && !yield(s, int(d)-1) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (m *Store) Clone() *Store {
	return &Store{
		srcToDst: append([]uint32(nil), m.srcToDst...),
		dstToSrc: append([]uint32(nil), m.dstToSrc...),
		count:    m.count,
	}
}

// String is meant for debugging small mappings.
func (m *Store) String() string {
	s := "{"
	first := true
	for src, dst := range m.Pairs() {
		if !first {
			s += " "
		}
		first = false
		s += fmt.Sprintf("%d->%d", src, dst)
	}
	return s + "}"
}
