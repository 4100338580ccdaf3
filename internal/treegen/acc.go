package treegen

import (
	"math"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

// FullNode is a reduced subtree: its interned id plus what bubbles up to the
// parent.
type FullNode struct {
	ID       store.NodeID         `json:"id"`
	Metrics  store.SubTreeMetrics `json:"metrics"`
	Role     types.Role           `json:"role,omitempty"`
	Precomp  uint16               `json:"precomp,omitempty"`
	Depth    int                  `json:"depth"`
	Position int                  `json:"position"`
}

// RoleAcc collects the field roles of children. Offsets are stored on a
// byte, so roles of children past index 255 cannot be recorded.
type RoleAcc struct {
	Current types.Role
	Roles   []types.Role
	Offsets []uint8
}

// add records role r for the child at offset o. It reports false when the
// offset does not fit.
func (r *RoleAcc) add(role types.Role, o int) bool {
	if o > math.MaxUint8 {
		return false
	}
	r.Roles = append(r.Roles, role)
	r.Offsets = append(r.Offsets, uint8(o))
	return true
}

// Acc is the accumulator of a node whose children are being reduced.
type Acc struct {
	Type         types.Type
	Kind         string
	Labeled      bool
	StartByte    int
	EndByte      int
	PaddingStart int
	Indentation  string

	Children []store.NodeID
	NoSpace  []store.NodeID
	Metrics  store.SubTreeMetrics
	Role     RoleAcc
	Precomp  uint16

	bytesLen uint32
	refs     store.Bloom
}

// HasChildren reports whether any child was pushed.
func (a *Acc) HasChildren() bool {
	return len(a.Children) > 0
}

// RoleAt returns the role recorded for child o.
func (a *Acc) RoleAt(o int) (types.Role, bool) {
	for i, off := range a.Role.Offsets {
		if int(off) == o {
			return a.Role.Roles[i], true
		}
	}
	return types.NoRole, false
}

// frameState tags the entries of the ancestor stack.
type frameState uint8

const (
	frameVisible frameState = iota
	frameHidden
	// frameBothHidden: neither the node nor its subtree contributes.
	frameBothHidden
	// frameManuallyHidden: the node is dropped and its children are folded
	// into the nearest accumulating ancestor.
	frameManuallyHidden
)

type frame struct {
	state frameState
	acc   *Acc
}

type stack []frame

func (s *stack) push(f frame) { *s = append(*s, f) }

func (s *stack) pop() frame {
	old := *s
	f := old[len(old)-1]
	*s = old[:len(old)-1]
	return f
}

// parent returns the nearest accumulating frame.
func (s stack) parent() (frame, bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].acc != nil {
			return s[i], true
		}
	}
	return frame{}, false
}
