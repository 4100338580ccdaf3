//go:build cgo

package ast

import (
	"context"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/treegen"
)

// A sitter.Parser is not safe for concurrent use, so each one carries its
// own lock.
type lockedParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

type treeSitterParser struct {
	parsers map[string]*lockedParser
	mu      sync.Mutex
}

func NewParser() Parser {
	return &treeSitterParser{
		parsers: make(map[string]*lockedParser),
	}
}

func (p *treeSitterParser) getParser(language string) *lockedParser {
	p.mu.Lock()
	defer p.mu.Unlock()

	if parser, ok := p.parsers[language]; ok {
		return parser
	}

	var lang *sitter.Language
	switch language {
	case LangGo:
		lang = golang.GetLanguage()
	case LangPython:
		lang = python.GetLanguage()
	case LangTypeScript:
		lang = typescript.GetLanguage()
	case LangJavaScript:
		lang = javascript.GetLanguage()
	case LangJava:
		lang = java.GetLanguage()
	case LangRust:
		lang = rust.GetLanguage()
	default:
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	lp := &lockedParser{parser: parser}
	p.parsers[language] = lp
	return lp
}

func (p *treeSitterParser) Parse(ctx context.Context, content []byte, language string) (Tree, error) {
	if language == LangText {
		return lexParse(content, language), nil
	}
	lp := p.getParser(language)
	if lp == nil {
		return nil, errors.UnsupportedLanguageError(language)
	}

	lp.mu.Lock()
	tree, err := lp.parser.ParseCtx(ctx, nil, content)
	lp.mu.Unlock()
	if err != nil {
		return nil, errors.ParseError(language, err)
	}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return nil, errors.ParseError(language, nil)
	}
	return &tsTree{tree: tree, root: root, grammar: grammars[language]}, nil
}

func (p *treeSitterParser) SupportsLanguage(language string) bool {
	return language == LangText || p.getParser(language) != nil
}

type tsTree struct {
	tree    *sitter.Tree
	root    *sitter.Node
	grammar *Grammar

	mu      sync.Mutex
	cursors []*sitter.TreeCursor
}

func (t *tsTree) Cursor() treegen.Cursor {
	c := sitter.NewTreeCursor(t.root)
	t.mu.Lock()
	t.cursors = append(t.cursors, c)
	t.mu.Unlock()
	return &tsCursor{c: c}
}

func (t *tsTree) Grammar() *Grammar { return t.grammar }
func (t *tsTree) HasErrors() bool   { return t.root.HasError() }

func (t *tsTree) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.cursors {
		c.Close()
	}
	t.cursors = nil
	t.tree.Close()
}

type tsNode struct{ n *sitter.Node }

func (n tsNode) Kind() string    { return n.n.Type() }
func (n tsNode) StartByte() int  { return int(n.n.StartByte()) }
func (n tsNode) EndByte() int    { return int(n.n.EndByte()) }
func (n tsNode) ChildCount() int { return int(n.n.ChildCount()) }
func (n tsNode) IsNamed() bool   { return n.n.IsNamed() }
func (n tsNode) IsMissing() bool { return n.n.IsMissing() }
func (n tsNode) IsError() bool   { return n.n.IsError() }

// tsCursor adapts a tree-sitter cursor. Tree-sitter never stops on hidden
// rules, so every step is Visible.
type tsCursor struct{ c *sitter.TreeCursor }

func (c *tsCursor) Node() treegen.Node { return tsNode{c.c.CurrentNode()} }
func (c *tsCursor) FieldName() string  { return c.c.CurrentFieldName() }

func (c *tsCursor) GotoFirstChild() (treegen.Visibility, bool) {
	return treegen.Visible, c.c.GoToFirstChild()
}

func (c *tsCursor) GotoNextSibling() (treegen.Visibility, bool) {
	return treegen.Visible, c.c.GoToNextSibling()
}

func (c *tsCursor) GotoParent() bool { return c.c.GoToParent() }
