// Package actions turns a mapping between two trees into an edit script and
// replays edit scripts over the store.
package actions

import (
	"fmt"
	"strings"

	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// Kind is the type of an edit action.
type Kind uint8

const (
	Insert Kind = iota
	Delete
	Update
	Move
	MoveUpdate
)

var kindNames = [...]string{"insert", "delete", "update", "move", "move-update"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, n := range kindNames {
		if n == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("actions: unknown kind %q", b)
}

// Path locates a node twice. Ori is the child offsets from the root of the
// tree the node comes from: src for deletions, dst otherwise. Mid is the
// position in the intermediate forest at the time the action applies; its
// first element selects a root of the forest.
type Path struct {
	Ori []int `json:"ori"`
	Mid []int `json:"mid"`
}

func (p Path) String() string {
	return fmt.Sprintf("%v@%v", p.Ori, p.Mid)
}

// Action is one edit. Path is where the affected node ends up, or where the
// deleted node was.
type Action struct {
	Kind Kind `json:"kind"`
	Path Path `json:"path"`
	// From is where a moved node was, for Move and MoveUpdate.
	From *Path `json:"from,omitempty"`
	// Node is the inserted dst node for Insert, the dst node carrying the
	// new label for Update and MoveUpdate, and the src node otherwise.
	Node store.NodeID `json:"node"`
}

// Format renders an action with the labels of s.
func (a Action) Format(s *store.Stores) string {
	var sb strings.Builder
	sb.WriteString(a.Kind.String())
	fmt.Fprintf(&sb, " %s", s.TypeName(a.Node))
	if l, ok := s.Resolve(a.Node).Label(); ok {
		fmt.Fprintf(&sb, " %q", s.Labels.Resolve(l))
	}
	if a.From != nil {
		fmt.Fprintf(&sb, " from %s", a.From)
	}
	fmt.Fprintf(&sb, " at %s", a.Path)
	return sb.String()
}

// Summary counts actions per kind.
type Summary struct {
	Inserts     int `json:"inserts"`
	Deletes     int `json:"deletes"`
	Updates     int `json:"updates"`
	Moves       int `json:"moves"`
	MoveUpdates int `json:"move_updates"`
}

// Summarize counts the actions of a script.
func Summarize(as []Action) Summary {
	var s Summary
	for _, a := range as {
		switch a.Kind {
		case Insert:
			s.Inserts++
		case Delete:
			s.Deletes++
		case Update:
			s.Updates++
		case Move:
			s.Moves++
		case MoveUpdate:
			s.MoveUpdates++
		}
	}
	return s
}

// Total returns the number of actions.
func (s Summary) Total() int {
	return s.Inserts + s.Deletes + s.Updates + s.Moves + s.MoveUpdates
}

func (s Summary) String() string {
	return fmt.Sprintf("ins:%d del:%d upd:%d mov:%d mou:%d", s.Inserts, s.Deletes, s.Updates, s.Moves, s.MoveUpdates)
}
