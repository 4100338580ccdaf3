// Package treegen turns parser output into interned HyperAST nodes.
//
// A Generator walks a Cursor in pre-order, keeps one accumulator per open
// ancestor and reduces each node in post-order: the whitespace preceding a
// node becomes a spacing leaf of its parent, then the node itself is interned
// through the store. Children metrics bubble up incrementally so a parent is
// hashed without walking its finalized descendants again.
package treegen

// Visibility classifies the node a cursor stepped to.
type Visibility uint8

const (
	// Visible nodes appear in the logical tree.
	Visible Visibility = iota
	// Hidden nodes are grammar artifacts: they are still traversed and
	// interned, but a hidden parent may absorb zero-width hidden children.
	Hidden
)

func (v Visibility) String() string {
	if v == Hidden {
		return "hidden"
	}
	return "visible"
}

// Node is the parser node under a cursor.
type Node interface {
	Kind() string
	StartByte() int
	EndByte() int
	ChildCount() int
	IsNamed() bool
	// IsMissing reports a zero-width token inserted by error recovery.
	IsMissing() bool
	IsError() bool
}

// Cursor walks a parse tree. Steps report the visibility of the node they
// land on.
type Cursor interface {
	Node() Node
	// FieldName is the grammar field of the current node within its parent,
	// or "".
	FieldName() string
	GotoFirstChild() (Visibility, bool)
	GotoNextSibling() (Visibility, bool)
	GotoParent() bool
}
