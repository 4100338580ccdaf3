package actions

import (
	"fmt"
	"slices"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// Apply replays a script over the tree rooted at src and returns the last
// root of the resulting forest. Stored nodes are never modified: every edit
// interns new versions of the edited node and its ancestors.
//
// ignoreSpaces must match the views the script was computed on. When set,
// the replay starts from StripSpaces(src) and produces StripSpaces(dst).
func Apply(stores *store.Stores, src store.NodeID, as []Action, ignoreSpaces bool) (store.NodeID, error) {
	if ignoreSpaces {
		src = StripSpaces(stores, src)
	}
	f := &forest{stores: stores, roots: []store.NodeID{src}, ignoreSpaces: ignoreSpaces}
	for i, a := range as {
		if err := f.apply(a); err != nil {
			return 0, errors.DiffError("cannot apply edit script", err).
				WithDetail("action", fmt.Sprint(i)).
				WithDetail("kind", a.Kind.String())
		}
	}
	return f.roots[len(f.roots)-1], nil
}

// StripSpaces returns the version of id without spacing leaves.
func StripSpaces(stores *store.Stores, id store.NodeID) store.NodeID {
	v := stores.Resolve(id)
	if v.Size() == v.SizeNoSpaces() {
		return id
	}
	cs := v.NoSpaceChildren()
	out := make([]store.NodeID, len(cs))
	for i, c := range cs {
		out[i] = StripSpaces(stores, c)
	}
	return rebuild(stores, id, out)
}

// rebuild interns a node with the type and label of like and the given
// children.
func rebuild(stores *store.Stores, like store.NodeID, children []store.NodeID) store.NodeID {
	v := stores.Resolve(like)
	l, ok := v.Label()
	label := ""
	if ok {
		label = stores.Labels.Resolve(l)
	}
	return stores.Build(v.Type(), label, ok, children)
}

type forest struct {
	stores       *store.Stores
	roots        []store.NodeID
	ignoreSpaces bool
}

func (f *forest) children(id store.NodeID) []store.NodeID {
	v := f.stores.Resolve(id)
	if f.ignoreSpaces {
		return v.NoSpaceChildren()
	}
	return v.Children()
}

func (f *forest) apply(a Action) error {
	switch a.Kind {
	case Insert:
		leaf := rebuild(f.stores, a.Node, nil)
		return f.insert(a.Path.Mid, leaf)
	case Delete:
		return f.remove(a.Path.Mid)
	case Update:
		id, err := f.get(a.Path.Mid)
		if err != nil {
			return err
		}
		return f.replace(a.Path.Mid, rebuild(f.stores, a.Node, f.children(id)))
	case Move, MoveUpdate:
		if a.From == nil {
			return fmt.Errorf("%s without origin", a.Kind)
		}
		id, err := f.get(a.From.Mid)
		if err != nil {
			return err
		}
		if err := f.remove(a.From.Mid); err != nil {
			return err
		}
		if a.Kind == MoveUpdate {
			id = rebuild(f.stores, a.Node, f.children(id))
		}
		return f.insert(a.Path.Mid, id)
	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}

func (f *forest) get(p []int) (store.NodeID, error) {
	if len(p) == 0 || p[0] < 0 || p[0] >= len(f.roots) {
		return 0, fmt.Errorf("no root at %v", p)
	}
	id := f.roots[p[0]]
	for _, o := range p[1:] {
		cs := f.children(id)
		if o < 0 || o >= len(cs) {
			return 0, fmt.Errorf("no node at %v", p)
		}
		id = cs[o]
	}
	return id, nil
}

// edit rebuilds the node at p with the children returned by fn, then its
// ancestors.
func (f *forest) edit(p []int, fn func([]store.NodeID) ([]store.NodeID, error)) error {
	if len(p) == 0 || p[0] < 0 || p[0] > len(f.roots) {
		return fmt.Errorf("no root at %v", p)
	}
	if p[0] == len(f.roots) {
		f.roots = append(f.roots, f.roots[len(f.roots)-1])
	}
	var rec func(id store.NodeID, rest []int) (store.NodeID, error)
	rec = func(id store.NodeID, rest []int) (store.NodeID, error) {
		cs := slices.Clone(f.children(id))
		if len(rest) == 0 {
			cs, err := fn(cs)
			if err != nil {
				return 0, err
			}
			return rebuild(f.stores, id, cs), nil
		}
		o := rest[0]
		if o < 0 || o >= len(cs) {
			return 0, fmt.Errorf("no child %d", o)
		}
		c, err := rec(cs[o], rest[1:])
		if err != nil {
			return 0, err
		}
		cs[o] = c
		return rebuild(f.stores, id, cs), nil
	}
	id, err := rec(f.roots[p[0]], p[1:])
	if err != nil {
		return fmt.Errorf("at %v: %w", p, err)
	}
	f.roots[p[0]] = id
	return nil
}

func (f *forest) insert(p []int, id store.NodeID) error {
	if len(p) == 1 {
		switch {
		case p[0] == len(f.roots):
			f.roots = append(f.roots, id)
		case p[0] >= 0 && p[0] < len(f.roots):
			f.roots[p[0]] = id
		default:
			return fmt.Errorf("no root at %v", p)
		}
		return nil
	}
	k := p[len(p)-1]
	return f.edit(p[:len(p)-1], func(cs []store.NodeID) ([]store.NodeID, error) {
		if k < 0 || k > len(cs) {
			return nil, fmt.Errorf("cannot insert at %d among %d children", k, len(cs))
		}
		return slices.Insert(cs, k, id), nil
	})
}

func (f *forest) remove(p []int) error {
	switch {
	case len(p) == 0:
		return fmt.Errorf("cannot remove at %v", p)
	case len(p) == 1:
		// the forest keeps at least one root
		if p[0] < 0 || p[0] >= len(f.roots) || len(f.roots) == 1 {
			return fmt.Errorf("cannot remove the root at %v", p)
		}
		f.roots = slices.Delete(f.roots, p[0], p[0]+1)
		return nil
	}
	k := p[len(p)-1]
	return f.edit(p[:len(p)-1], func(cs []store.NodeID) ([]store.NodeID, error) {
		if k < 0 || k >= len(cs) {
			return nil, fmt.Errorf("cannot remove child %d among %d", k, len(cs))
		}
		return slices.Delete(cs, k, k+1), nil
	})
}

func (f *forest) replace(p []int, id store.NodeID) error {
	if len(p) == 1 {
		return f.insert(p, id)
	}
	k := p[len(p)-1]
	return f.edit(p[:len(p)-1], func(cs []store.NodeID) ([]store.NodeID, error) {
		if k < 0 || k >= len(cs) {
			return nil, fmt.Errorf("cannot replace child %d among %d", k, len(cs))
		}
		cs[k] = id
		return cs, nil
	})
}
