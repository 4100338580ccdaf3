package store

import (
	"math"

	"github.com/HyperAST/HyperAST-sub006/internal/hashed"
)

// SubTreeMetrics are the bottom-up aggregates stored with every node.
type SubTreeMetrics struct {
	Hashes       hashed.NodeHashes `json:"hashes"`
	Size         uint32            `json:"size"`
	Height       uint32            `json:"height"`
	SizeNoSpaces uint32            `json:"size_no_spaces"`
	LineCount    uint16            `json:"line_count"`
}

// Acc folds the metrics of a finalized child into m.
func (m *SubTreeMetrics) Acc(child SubTreeMetrics) {
	m.Height = max(m.Height, child.Height)
	m.Size += child.Size
	m.SizeNoSpaces += child.SizeNoSpaces
	m.Hashes.Acc(child.Hashes)
	m.LineCount = addLines(m.LineCount, child.LineCount)
}

// Finalize turns accumulated children metrics into the metrics of their
// parent. The returned builder still has to produce the parent hashes, which
// lets callers probe the store with the syntax hash first.
func (m SubTreeMetrics) Finalize(kind uint32, label string, ownLines uint16) (SubTreeMetrics, hashed.Builder) {
	sizeNoSpaces := m.SizeNoSpaces + 1
	b := hashed.NewBuilder(m.Hashes, kind, label, sizeNoSpaces)
	return SubTreeMetrics{
		Size:         m.Size + 1,
		Height:       m.Height + 1,
		SizeNoSpaces: sizeNoSpaces,
		LineCount:    addLines(m.LineCount, ownLines),
	}, b
}

// SpacingMetrics returns the metrics of a spacing leaf. Spacing does not
// count toward heights nor no-space sizes, and only its syntax hash is set.
func SpacingMetrics(kind uint32, text string) SubTreeMetrics {
	b := hashed.NewBuilder(hashed.NodeHashes{}, kind, text, 1)
	return SubTreeMetrics{
		Hashes:    hashed.NodeHashes{Syntax: b.MostDiscriminating()},
		Size:      1,
		LineCount: CountLines(text),
	}
}

// CountLines counts line feeds, saturating at math.MaxUint16.
func CountLines(s string) uint16 {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	return uint16(min(n, math.MaxUint16))
}

func addLines(a, b uint16) uint16 {
	s := uint32(a) + uint32(b)
	if s > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(s)
}
