//go:build !cgo

package ast

import (
	"context"
	"log/slog"
	"slices"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
)

// fallbackParser tokenizes every supported language lexically when
// tree-sitter is not compiled in. Trees are shallower than real syntax trees
// but still round-trip the source.
type fallbackParser struct{}

func NewParser() Parser {
	slog.Warn("Tree-Sitter not available (CGO disabled), using lexical fallback parser")
	return &fallbackParser{}
}

func (p *fallbackParser) Parse(ctx context.Context, content []byte, language string) (Tree, error) {
	if !p.SupportsLanguage(language) {
		return nil, errors.UnsupportedLanguageError(language)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return lexParse(content, language), nil
}

func (p *fallbackParser) SupportsLanguage(language string) bool {
	return language == LangText || slices.Contains(SupportedLanguages, language)
}
