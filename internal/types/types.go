// Package types interns node kinds and field roles.
//
// Grammars name kinds with strings; the rest of the system works on dense
// Type and Role values so that nodes stay small and comparisons are cheap.
package types

import (
	"fmt"
	"sync"

	"github.com/HyperAST/HyperAST-sub006/internal/hashed"
)

// Type is an interned (language, kind) pair.
type Type uint16

// Role is an interned field name, e.g. "name" or "body".
type Role uint16

// Spaces is the builtin type of synthetic spacing leaves.
const Spaces Type = 0

// NoRole marks children without a field name.
const NoRole Role = 0

// Flags classify a type.
type Flags uint16

const (
	Named Flags = 1 << iota
	Supertype
	Ignored
	Leaf
	Spacing
	Identifier
	Directory
	File
)

// Info describes an interned type.
type Info struct {
	Lang  string `json:"lang"`
	Kind  string `json:"kind"`
	Flags Flags  `json:"flags"`
	Hash  uint32 `json:"-"`
}

// Name returns "lang:kind", or just the kind for builtins.
func (i Info) Name() string {
	if i.Lang == "" {
		return i.Kind
	}
	return i.Lang + ":" + i.Kind
}

// Is reports whether all of f are set.
func (i Info) Is(f Flags) bool {
	return i.Flags&f == f
}

type key struct {
	lang string
	kind string
	file bool
}

// Registry interns types and roles. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	byKey map[key]Type
	infos []Info

	roleIDs   map[string]Role
	roleNames []string
}

// NewRegistry returns a registry holding the builtin Spaces type.
func NewRegistry() *Registry {
	r := &Registry{
		byKey:     make(map[key]Type),
		roleIDs:   make(map[string]Role),
		roleNames: []string{""},
	}
	r.Intern("", "spaces", Spacing)
	return r
}

// Intern returns the type of (lang, kind), creating it if needed. Flags are
// merged into an existing entry. A File flag selects a separate entry for
// file roots, so it never spreads to inner nodes of the same kind.
func (r *Registry) Intern(lang, kind string, flags Flags) Type {
	k := key{lang, kind, flags&File != 0}

	r.mu.RLock()
	t, ok := r.byKey[k]
	if ok && r.infos[t].Flags&flags == flags {
		r.mu.RUnlock()
		return t
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byKey[k]; ok {
		r.infos[t].Flags |= flags
		return t
	}
	if len(r.infos) > int(^Type(0)) {
		panic(fmt.Sprintf("types: registry full, cannot intern %s:%s", lang, kind))
	}
	t = Type(len(r.infos))
	info := Info{Lang: lang, Kind: kind, Flags: flags}
	info.Hash = hashed.Prepare(info.Name())
	r.infos = append(r.infos, info)
	r.byKey[k] = t
	return t
}

// Lookup finds an already interned type. File root types are not returned.
func (r *Registry) Lookup(lang, kind string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byKey[key{lang, kind, false}]
	return t, ok
}

// Info returns the description of t. It panics on unknown types.
func (r *Registry) Info(t Type) Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.infos[t]
}

// Name is shorthand for Info(t).Name().
func (r *Registry) Name(t Type) string {
	return r.Info(t).Name()
}

// Is reports whether t carries all of f.
func (r *Registry) Is(t Type, f Flags) bool {
	return r.Info(t).Is(f)
}

// Len returns the number of interned types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.infos)
}

// InternRole returns the role for a field name. The empty name is NoRole.
func (r *Registry) InternRole(name string) Role {
	if name == "" {
		return NoRole
	}
	r.mu.RLock()
	role, ok := r.roleIDs[name]
	r.mu.RUnlock()
	if ok {
		return role
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roleIDs[name]; ok {
		return role
	}
	role = Role(len(r.roleNames))
	r.roleNames = append(r.roleNames, name)
	r.roleIDs[name] = role
	return role
}

// RoleName returns the field name of a role.
func (r *Registry) RoleName(role Role) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roleNames[role]
}
