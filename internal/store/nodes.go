// Package store holds the interned HyperAST: labels, nodes and the metrics
// attached to them.
//
// Nodes are content addressed. A (type, label, children) signature is stored
// at most once; parents reference children by NodeID, so the structure is a
// DAG shared by every file and revision generated into the same store.
//
// Insertion is a two step protocol, PrepareInsertion then
// InsertAfterPrepare, that is only correct under a single writer. Reads
// through Resolve may run concurrently with that writer.
package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/HyperAST/HyperAST-sub006/internal/hashed"
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

// NodeID identifies an interned node. The zero value is never a valid node.
type NodeID uint32

const (
	chunkBits = 12
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

// Node is the payload of an interned subtree. Stored nodes are immutable.
type Node struct {
	Type     types.Type
	Label    LabelID
	Children []NodeID
	// NoSpace lists children that are not spacing leaves. It is nil when no
	// child is a spacing leaf.
	NoSpace     []NodeID
	Metrics     SubTreeMetrics
	BytesLen    uint32
	Roles       []types.Role
	RoleOffsets []uint8
	Precomp     uint16
	Refs        *Bloom
}

// NodeStore is an arena of interned nodes indexed by syntax hash.
type NodeStore struct {
	mu     sync.RWMutex
	chunks [][]Node
	count  int
	index  map[uint32][]NodeID
}

// NewNodeStore creates an empty node store.
func NewNodeStore() *NodeStore {
	return &NodeStore{
		index: make(map[uint32][]NodeID),
	}
}

// Insertion is the outcome of PrepareInsertion.
type Insertion struct {
	hash uint32
	id   NodeID
}

// Occupied returns the existing node matching the probe, if any.
func (i Insertion) Occupied() (NodeID, bool) {
	return i.id, i.id != 0
}

// Hash returns the probed hash.
func (i Insertion) Hash() uint32 {
	return i.hash
}

// PrepareInsertion looks for a stored node with the given syntax hash that
// satisfies eq. eq resolves hash collisions and is expected to compare type,
// label and children.
func (s *NodeStore) PrepareInsertion(hash uint32, eq func(NodeView) bool) Insertion {
	s.mu.RLock()
	candidates := s.index[hash]
	s.mu.RUnlock()

	for _, id := range candidates {
		if eq(s.Resolve(id)) {
			return Insertion{hash: hash, id: id}
		}
	}
	return Insertion{hash: hash}
}

// InsertAfterPrepare stores n under the hash probed by ins. It panics when
// ins found an existing node.
func (s *NodeStore) InsertAfterPrepare(ins Insertion, n Node) NodeID {
	if ins.id != 0 {
		panic(fmt.Sprintf("store: insertion slot already occupied by %d", ins.id))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// id 0 is reserved, so slot i holds NodeID i
	if s.count == 0 {
		s.chunks = append(s.chunks, make([]Node, 1, chunkSize))
		s.count = 1
	}
	c := s.count >> chunkBits
	if c == len(s.chunks) {
		s.chunks = append(s.chunks, make([]Node, 0, chunkSize))
	}
	s.chunks[c] = append(s.chunks[c], n)
	id := NodeID(s.count)
	s.count++
	s.index[ins.hash] = append(s.index[ins.hash], id)
	return id
}

// Resolve returns a read-only view of an interned node. It panics on ids
// that were never returned by InsertAfterPrepare.
func (s *NodeStore) Resolve(id NodeID) NodeView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == 0 || int(id) >= s.count {
		panic(fmt.Sprintf("store: unknown node %d", id))
	}
	return NodeView{id: id, n: &s.chunks[id>>chunkBits][id&chunkMask]}
}

// Has reports whether id was returned by InsertAfterPrepare.
func (s *NodeStore) Has(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return id != 0 && int(id) < s.count
}

// Len returns the number of stored nodes.
func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return max(s.count-1, 0)
}

// NodeView is a read-only projection of a stored node.
type NodeView struct {
	id NodeID
	n  *Node
}

func (v NodeView) ID() NodeID              { return v.id }
func (v NodeView) Type() types.Type        { return v.n.Type }
func (v NodeView) Metrics() SubTreeMetrics { return v.n.Metrics }
func (v NodeView) Hashes() hashed.NodeHashes {
	return v.n.Metrics.Hashes
}
func (v NodeView) Size() uint32         { return v.n.Metrics.Size }
func (v NodeView) SizeNoSpaces() uint32 { return v.n.Metrics.SizeNoSpaces }
func (v NodeView) Height() uint32       { return v.n.Metrics.Height }
func (v NodeView) LineCount() uint16    { return v.n.Metrics.LineCount }
func (v NodeView) BytesLen() uint32     { return v.n.BytesLen }
func (v NodeView) Precomp() uint16      { return v.n.Precomp }

// Label returns the label id and whether the node has one.
func (v NodeView) Label() (LabelID, bool) {
	return v.n.Label, v.n.Label != NoLabel
}

// HasChildren reports whether the node is an inner node.
func (v NodeView) HasChildren() bool {
	return len(v.n.Children) > 0
}

// Children returns the children, spacing leaves included. The slice is
// shared with the store and must not be modified.
func (v NodeView) Children() []NodeID {
	return v.n.Children
}

// NoSpaceChildren returns the children without spacing leaves. The slice is
// shared with the store and must not be modified.
func (v NodeView) NoSpaceChildren() []NodeID {
	if v.n.NoSpace == nil {
		return v.n.Children
	}
	return v.n.NoSpace
}

// ChildCount returns the number of children, spacing included.
func (v NodeView) ChildCount() int {
	return len(v.n.Children)
}

// Child returns the i-th child.
func (v NodeView) Child(i int) (NodeID, bool) {
	if i < 0 || i >= len(v.n.Children) {
		return 0, false
	}
	return v.n.Children[i], true
}

// RoleAt returns the role of the i-th child.
func (v NodeView) RoleAt(i int) (types.Role, bool) {
	for j, o := range v.n.RoleOffsets {
		if int(o) == i {
			return v.n.Roles[j], true
		}
	}
	return types.NoRole, false
}

// ChildByRole returns the first child playing role r.
func (v NodeView) ChildByRole(r types.Role) (NodeID, bool) {
	for j, role := range v.n.Roles {
		if role == r {
			return v.n.Children[v.n.RoleOffsets[j]], true
		}
	}
	return 0, false
}

// MayReference reports whether name may appear as an identifier in the
// subtree. Leaves answer exactly through their own label by the caller.
func (v NodeView) MayReference(name string) bool {
	if v.n.Refs == nil {
		return false
	}
	return v.n.Refs.MayContain(name)
}

// Refs returns the reference filter of the subtree, nil for leaves.
func (v NodeView) Refs() *Bloom {
	return v.n.Refs
}

// Same reports whether the view has exactly the given signature.
func (v NodeView) Same(t types.Type, label LabelID, children []NodeID) bool {
	return v.n.Type == t && v.n.Label == label && slices.Equal(v.n.Children, children)
}
