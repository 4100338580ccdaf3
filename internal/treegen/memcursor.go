package treegen

// SimpleNode is an in-memory parse tree node. It lets trees produced without
// a parser library, or written by hand in tests, go through a Generator.
type SimpleNode struct {
	Type     string
	Start    int
	End      int
	Named    bool
	Missing  bool
	Error    bool
	Hidden   bool
	Field    string
	Children []*SimpleNode
}

// Leaf returns a named leaf spanning [start, end).
func Leaf(kind string, start, end int) *SimpleNode {
	return &SimpleNode{Type: kind, Start: start, End: end, Named: true}
}

// Inner returns a named node spanning its children. Without children it is
// empty at offset 0.
func Inner(kind string, children ...*SimpleNode) *SimpleNode {
	n := &SimpleNode{Type: kind, Named: true, Children: children}
	if len(children) > 0 {
		n.Start = children[0].Start
		n.End = children[len(children)-1].End
	}
	return n
}

// WithField sets the field name of n within its parent and returns n.
func (n *SimpleNode) WithField(field string) *SimpleNode {
	n.Field = field
	return n
}

type simpleView struct{ n *SimpleNode }

func (v simpleView) Kind() string    { return v.n.Type }
func (v simpleView) StartByte() int  { return v.n.Start }
func (v simpleView) EndByte() int    { return v.n.End }
func (v simpleView) ChildCount() int { return len(v.n.Children) }
func (v simpleView) IsNamed() bool   { return v.n.Named }
func (v simpleView) IsMissing() bool { return v.n.Missing }
func (v simpleView) IsError() bool   { return v.n.Error }

// SimpleCursor walks a SimpleNode tree.
type SimpleCursor struct {
	path []*SimpleNode
	idx  []int
}

// NewSimpleCursor returns a cursor on root.
func NewSimpleCursor(root *SimpleNode) *SimpleCursor {
	return &SimpleCursor{path: []*SimpleNode{root}, idx: []int{0}}
}

func (c *SimpleCursor) top() *SimpleNode { return c.path[len(c.path)-1] }

func visibility(n *SimpleNode) Visibility {
	if n.Hidden {
		return Hidden
	}
	return Visible
}

func (c *SimpleCursor) Node() Node        { return simpleView{c.top()} }
func (c *SimpleCursor) FieldName() string { return c.top().Field }

func (c *SimpleCursor) GotoFirstChild() (Visibility, bool) {
	n := c.top()
	if len(n.Children) == 0 {
		return Visible, false
	}
	c.path = append(c.path, n.Children[0])
	c.idx = append(c.idx, 0)
	return visibility(n.Children[0]), true
}

func (c *SimpleCursor) GotoNextSibling() (Visibility, bool) {
	d := len(c.path) - 1
	if d == 0 {
		return Visible, false
	}
	siblings := c.path[d-1].Children
	i := c.idx[d] + 1
	if i >= len(siblings) {
		return Visible, false
	}
	c.path[d] = siblings[i]
	c.idx[d] = i
	return visibility(siblings[i]), true
}

func (c *SimpleCursor) GotoParent() bool {
	d := len(c.path) - 1
	if d == 0 {
		return false
	}
	c.path = c.path[:d]
	c.idx = c.idx[:d]
	return true
}
