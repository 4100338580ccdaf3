package ast

import (
	"context"

	"github.com/HyperAST/HyperAST-sub006/internal/treegen"
)

// Tree is a parse result ready to be fed to a treegen.Generator.
type Tree interface {
	// Cursor returns a fresh cursor on the root.
	Cursor() treegen.Cursor
	// Grammar classifies the kinds found in this tree.
	Grammar() *Grammar
	// HasErrors reports whether error recovery produced ERROR or missing
	// nodes.
	HasErrors() bool
	// Close releases parser resources. Cursors must not be used afterwards.
	Close()
}

// Parser parses source code into trees
type Parser interface {
	// Parse parses content as language.
	Parse(ctx context.Context, content []byte, language string) (Tree, error)

	// SupportsLanguage returns true if a grammar is available
	SupportsLanguage(language string) bool
}
