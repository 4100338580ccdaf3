package treegen

import "fmt"

// Global is the traversal state shared by every accumulator of one file.
type Global struct {
	// depth starts at 1 for the root and is decremented unconditionally by
	// Up. Nodes suppressed with PreResultIgnore never call Up, so the counter
	// over-reports depth below them. It is kept as observed state only;
	// nothing in generation branches on it.
	depth    int
	position int
	sum      int
	text     []byte
}

func newGlobal(text []byte) *Global {
	return &Global{depth: 1, text: text}
}

// Down records a step to a first child or a sibling.
func (g *Global) Down() {
	g.position++
	g.depth++
}

// Right records a sibling produced outside the cursor, such as spacing.
func (g *Global) Right() {
	g.position++
}

// Up records leaving a node.
func (g *Global) Up() {
	g.depth--
}

// Depth returns the current depth counter.
func (g *Global) Depth() int { return g.depth }

// Position returns the pre-order position of the last entered node.
func (g *Global) Position() int { return g.position }

// SumByteLength is the offset up to which the text is covered by reduced
// nodes.
func (g *Global) SumByteLength() int { return g.sum }

// SetSumByteLength advances the covered offset. Going backwards means the
// parser reported overlapping siblings and panics.
func (g *Global) SetSumByteLength(n int) {
	if n < g.sum {
		panic(fmt.Sprintf("treegen: new byte offset is smaller: %d > %d", g.sum, n))
	}
	g.sum = n
}

// Text returns the source being generated.
func (g *Global) Text() []byte { return g.text }
