package diff

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/HyperAST/HyperAST-sub006/internal/actions"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// Entry is an action resolved against the store, for display and JSON
// output.
type Entry struct {
	Kind  actions.Kind  `json:"kind"`
	Type  string        `json:"type"`
	Label string        `json:"label,omitempty"`
	Old   string        `json:"old,omitempty"`
	At    actions.Path  `json:"at"`
	From  *actions.Path `json:"from,omitempty"`
	Node  store.NodeID  `json:"node"`
}

// Describe resolves the actions of res. Old holds the previous label of
// updated nodes.
func Describe(stores *store.Stores, res *Result) []Entry {
	out := make([]Entry, len(res.Actions))
	for i, a := range res.Actions {
		e := Entry{
			Kind: a.Kind,
			Type: stores.TypeName(a.Node),
			At:   a.Path,
			From: a.From,
			Node: a.Node,
		}
		if l, ok := stores.Resolve(a.Node).Label(); ok {
			e.Label = stores.Labels.Resolve(l)
		}
		var ori []int
		switch a.Kind {
		case actions.Update:
			ori = a.Path.Ori
		case actions.MoveUpdate:
			ori = a.From.Ori
		}
		if ori != nil {
			if id, ok := nodeAt(stores, res.Src, ori, res.Options.IgnoreSpaces); ok {
				e.Old = stores.LabelOf(id)
			}
		}
		out[i] = e
	}
	return out
}

// Render writes one line per action. Label changes are shown inline as
// [-removed-]{+added+}.
func Render(w io.Writer, stores *store.Stores, res *Result) error {
	for _, e := range Describe(stores, res) {
		var sb strings.Builder
		fmt.Fprintf(&sb, "%-11s %s", e.Kind, e.Type)
		switch e.Kind {
		case actions.Update, actions.MoveUpdate:
			fmt.Fprintf(&sb, " %s", inline(e.Old, e.Label))
		default:
			if e.Label != "" {
				fmt.Fprintf(&sb, " %q", e.Label)
			}
		}
		if e.From != nil {
			fmt.Fprintf(&sb, " from %v", e.From.Ori)
		}
		fmt.Fprintf(&sb, " at %v\n", e.At.Ori)
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%s (%d mapped, %d -> %d nodes)\n", res.Summary, res.Mapped, res.SrcSize, res.DstSize)
	return err
}

func inline(old, new string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(old, new, false))
	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+" + d.Text + "+}")
		default:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

// UnifiedText returns a line-based unified diff of two texts.
func UnifiedText(oldName, newName, old, new string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: oldName,
		ToFile:   newName,
		Context:  3,
	})
}

func nodeAt(stores *store.Stores, root store.NodeID, p []int, ignoreSpaces bool) (store.NodeID, bool) {
	id := root
	for _, o := range p {
		v := stores.Resolve(id)
		cs := v.Children()
		if ignoreSpaces {
			cs = v.NoSpaceChildren()
		}
		if o < 0 || o >= len(cs) {
			return 0, false
		}
		id = cs[o]
	}
	return id, true
}
