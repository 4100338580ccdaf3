package ast

import (
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

// Grammar classifies the node kinds of one language for tree generation.
// It implements treegen.Language.
type Grammar struct {
	name        string
	identifiers map[string]bool
	leaves      map[string]bool
	supertypes  map[string]bool
	ignored     map[string]bool
}

// Name returns the language name, used to qualify kinds.
func (g *Grammar) Name() string { return g.name }

// Flags returns the classification of kind.
func (g *Grammar) Flags(kind string, named bool) types.Flags {
	var f types.Flags
	if named {
		f |= types.Named
	}
	if g.identifiers[kind] {
		f |= types.Identifier
	}
	if g.leaves[kind] {
		f |= types.Leaf
	}
	if g.supertypes[kind] {
		f |= types.Supertype
	}
	if g.ignored[kind] {
		f |= types.Ignored
	}
	return f
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// String literals are kept whole: their inner structure (escapes,
// interpolations) is noise for structural diffs.
var grammars = map[string]*Grammar{
	LangGo: {
		name:        LangGo,
		identifiers: set("identifier", "field_identifier", "type_identifier", "package_identifier", "label_name"),
		leaves:      set("interpreted_string_literal", "raw_string_literal", "rune_literal"),
	},
	LangPython: {
		name:        LangPython,
		identifiers: set("identifier"),
		leaves:      set("string", "concatenated_string"),
	},
	LangTypeScript: {
		name:        LangTypeScript,
		identifiers: set("identifier", "property_identifier", "type_identifier", "shorthand_property_identifier"),
		leaves:      set("string", "template_string", "regex"),
	},
	LangJavaScript: {
		name:        LangJavaScript,
		identifiers: set("identifier", "property_identifier", "shorthand_property_identifier"),
		leaves:      set("string", "template_string", "regex"),
	},
	LangJava: {
		name:        LangJava,
		identifiers: set("identifier", "type_identifier"),
		leaves:      set("string_literal", "character_literal"),
	},
	LangRust: {
		name:        LangRust,
		identifiers: set("identifier", "field_identifier", "type_identifier"),
		leaves:      set("string_literal", "raw_string_literal", "char_literal"),
	},
	LangText: {
		name:        LangText,
		identifiers: set(kindWord),
		leaves:      set(kindString),
	},
}

// GrammarFor returns the classification tables of language.
func GrammarFor(language string) (*Grammar, bool) {
	g, ok := grammars[language]
	return g, ok
}

// Ignoring returns a copy of g that also drops the given kinds, folding
// their children into the parent.
func (g *Grammar) Ignoring(kinds ...string) *Grammar {
	if len(kinds) == 0 {
		return g
	}
	c := *g
	c.ignored = make(map[string]bool, len(g.ignored)+len(kinds))
	for k := range g.ignored {
		c.ignored[k] = true
	}
	for _, k := range kinds {
		c.ignored[k] = true
	}
	return &c
}
