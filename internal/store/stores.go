package store

import (
	"fmt"
	"strings"

	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

// Stores bundles the registries a HyperAST is made of.
type Stores struct {
	Types  *types.Registry
	Labels *LabelStore
	Nodes  *NodeStore
}

// NewStores creates empty stores.
func NewStores() *Stores {
	return &Stores{
		Types:  types.NewRegistry(),
		Labels: NewLabelStore(),
		Nodes:  NewNodeStore(),
	}
}

// Resolve is shorthand for s.Nodes.Resolve.
func (s *Stores) Resolve(id NodeID) NodeView {
	return s.Nodes.Resolve(id)
}

// LabelOf returns the label string of a node, "" when it has none.
func (s *Stores) LabelOf(id NodeID) string {
	l, ok := s.Nodes.Resolve(id).Label()
	if !ok {
		return ""
	}
	return s.Labels.Resolve(l)
}

// TypeName returns the qualified type name of a node.
func (s *Stores) TypeName(id NodeID) string {
	return s.Types.Name(s.Nodes.Resolve(id).Type())
}

// Stats summarizes store occupancy.
type Stats struct {
	Nodes  int `json:"nodes"`
	Labels int `json:"labels"`
	Types  int `json:"types"`
}

// Stats returns current store occupancy.
func (s *Stores) Stats() Stats {
	return Stats{
		Nodes:  s.Nodes.Len(),
		Labels: s.Labels.Len(),
		Types:  s.Types.Len(),
	}
}

// Build interns a node from its parts, computing metrics from the stored
// children. It produces the same node the generator would for the same
// signature, which makes it usable both for fixtures and for replaying edit
// scripts.
func (s *Stores) Build(t types.Type, label string, labeled bool, children []NodeID) NodeID {
	info := s.Types.Info(t)
	labelID := NoLabel
	if labeled {
		labelID = s.Labels.GetOrInsert(label)
	}

	if info.Is(types.Spacing) {
		m := SpacingMetrics(info.Hash, label)
		ins := s.Nodes.PrepareInsertion(m.Hashes.Syntax, func(v NodeView) bool {
			return v.Same(t, labelID, nil)
		})
		if id, ok := ins.Occupied(); ok {
			return id
		}
		return s.Nodes.InsertAfterPrepare(ins, Node{
			Type:     t,
			Label:    labelID,
			Metrics:  m,
			BytesLen: uint32(len(label)),
		})
	}

	var acc SubTreeMetrics
	var refs Bloom
	var bytesLen uint32
	noSpace := make([]NodeID, 0, len(children))
	for _, c := range children {
		cv := s.Nodes.Resolve(c)
		acc.Acc(cv.Metrics())
		bytesLen += cv.BytesLen()
		if cv.SizeNoSpaces() > 0 {
			noSpace = append(noSpace, c)
		}
		s.CollectRefs(&refs, cv)
	}
	if len(noSpace) == len(children) {
		noSpace = nil
	}

	var own uint16
	if labeled {
		own = CountLines(label)
	}
	m, b := acc.Finalize(info.Hash, label, own)

	ins := s.Nodes.PrepareInsertion(b.MostDiscriminating(), func(v NodeView) bool {
		return v.Same(t, labelID, children)
	})
	if id, ok := ins.Occupied(); ok {
		return id
	}
	m.Hashes = b.Build()
	if len(children) == 0 {
		bytesLen = uint32(len(label))
	}
	n := Node{
		Type:     t,
		Label:    labelID,
		Children: children,
		NoSpace:  noSpace,
		Metrics:  m,
		BytesLen: bytesLen,
	}
	if !refs.Empty() {
		n.Refs = &refs
	}
	return s.Nodes.InsertAfterPrepare(ins, n)
}

// CollectRefs adds what a child contributes to its parent reference filter.
func (s *Stores) CollectRefs(dst *Bloom, child NodeView) {
	if child.HasChildren() {
		dst.Union(child.Refs())
		return
	}
	if !s.Types.Is(child.Type(), types.Identifier) {
		return
	}
	if l, ok := child.Label(); ok {
		dst.Add(s.Labels.Resolve(l))
	}
}

// Format renders a subtree as an S-expression, mostly for tests and logs.
// Spacing leaves are skipped.
func (s *Stores) Format(id NodeID) string {
	var sb strings.Builder
	s.format(&sb, id)
	return sb.String()
}

func (s *Stores) format(sb *strings.Builder, id NodeID) {
	v := s.Nodes.Resolve(id)
	sb.WriteString(s.Types.Info(v.Type()).Kind)
	if l, ok := v.Label(); ok {
		fmt.Fprintf(sb, " %q", s.Labels.Resolve(l))
	}
	cs := v.NoSpaceChildren()
	if len(cs) == 0 {
		return
	}
	sb.WriteString(" (")
	for i, c := range cs {
		if i > 0 {
			sb.WriteString(" ")
		}
		s.format(sb, c)
	}
	sb.WriteString(")")
}
