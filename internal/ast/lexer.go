package ast

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"github.com/HyperAST/HyperAST-sub006/internal/treegen"
)

// Kinds produced by the lexical tokenizer.
const (
	kindFile    = "source_file"
	kindLine    = "line"
	kindGroup   = "group"
	kindWord    = "word"
	kindNumber  = "number"
	kindString  = "string"
	kindComment = "comment"
	kindError   = "ERROR"
)

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

// lineComments lists the line comment markers per language.
var lineComments = map[string][]string{
	LangGo:         {"//"},
	LangTypeScript: {"//"},
	LangJavaScript: {"//"},
	LangJava:       {"//"},
	LangRust:       {"//"},
	LangPython:     {"#"},
	LangText:       {"#", "//"},
}

type container struct {
	node *treegen.SimpleNode
	line *treegen.SimpleNode
}

// lexer builds a shallow tree out of tokens: files and bracket groups hold
// lines, lines hold tokens and groups. It never fails; unbalanced brackets
// become missing or ERROR nodes.
type lexer struct {
	text     []byte
	comments [][]byte
	stack    []*container
	errors   bool
}

func lex(text []byte, language string) (*treegen.SimpleNode, bool) {
	l := &lexer{text: text}
	for _, c := range lineComments[language] {
		l.comments = append(l.comments, []byte(c))
	}
	root := &treegen.SimpleNode{Type: kindFile, Named: true}
	l.stack = []*container{{node: root}}
	l.run()
	if len(root.Children) > 0 {
		root.Start = root.Children[0].Start
		root.End = root.Children[len(root.Children)-1].End
	}
	return root, l.errors
}

func (l *lexer) top() *container { return l.stack[len(l.stack)-1] }

func (l *lexer) add(n *treegen.SimpleNode) {
	c := l.top()
	if c.line == nil {
		c.line = &treegen.SimpleNode{Type: kindLine, Named: true, Start: n.Start}
		c.node.Children = append(c.node.Children, c.line)
	}
	c.line.Children = append(c.line.Children, n)
	c.line.End = n.End
}

func (l *lexer) run() {
	text := l.text
	for i := 0; i < len(text); {
		b := text[i]
		switch {
		case b == '\n':
			l.top().line = nil
			i++
		case b == ' ' || b == '\t' || b == '\r' || b == '\f':
			i++
		case l.commentAt(i):
			end := bytes.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text)
			} else {
				end += i
			}
			l.add(&treegen.SimpleNode{Type: kindComment, Named: true, Start: i, End: end})
			i = end
		case b == '"' || b == '\'' || b == '`':
			end := l.scanString(i)
			l.add(&treegen.SimpleNode{Type: kindString, Named: true, Start: i, End: end})
			i = end
		case b == '(' || b == '[' || b == '{':
			g := &treegen.SimpleNode{Type: kindGroup, Named: true, Start: i, End: i + 1}
			g.Children = append(g.Children, &treegen.SimpleNode{Type: string(b), Start: i, End: i + 1})
			l.add(g)
			l.stack = append(l.stack, &container{node: g})
			i++
		case b == ')' || b == ']' || b == '}':
			l.close(b, i)
			i++
		default:
			i = l.scanWord(i)
		}
	}
	for len(l.stack) > 1 {
		l.closeTop(len(text), true)
	}
}

func (l *lexer) commentAt(i int) bool {
	for _, c := range l.comments {
		if bytes.HasPrefix(l.text[i:], c) {
			return true
		}
	}
	return false
}

// scanString returns the end of the quoted string starting at i. Only
// backquoted strings span lines; other unterminated strings end at the line
// break.
func (l *lexer) scanString(i int) int {
	q := l.text[i]
	for j := i + 1; j < len(l.text); j++ {
		switch c := l.text[j]; {
		case c == '\\':
			j++
		case c == q:
			return j + 1
		case c == '\n' && q != '`':
			l.errors = true
			return j
		}
	}
	l.errors = true
	return len(l.text)
}

func (l *lexer) scanWord(i int) int {
	r, size := utf8.DecodeRune(l.text[i:])
	kind := ""
	switch {
	case unicode.IsDigit(r):
		kind = kindNumber
	case unicode.IsLetter(r) || r == '_':
		kind = kindWord
	default:
		l.add(&treegen.SimpleNode{Type: string(l.text[i : i+size]), Start: i, End: i + size})
		return i + size
	}
	j := i + size
	for j < len(l.text) {
		r, size := utf8.DecodeRune(l.text[j:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || (kind == kindNumber && r == '.')) {
			break
		}
		j += size
	}
	l.add(&treegen.SimpleNode{Type: kind, Named: true, Start: i, End: j})
	return j
}

// close handles the closing bracket b at offset i.
func (l *lexer) close(b byte, i int) {
	depth := -1
	for d := len(l.stack) - 1; d > 0; d-- {
		opener := l.stack[d].node.Children[0].Type[0]
		if closers[opener] == b {
			depth = d
			break
		}
	}
	if depth < 0 {
		l.errors = true
		tok := &treegen.SimpleNode{Type: string(b), Start: i, End: i + 1}
		l.add(&treegen.SimpleNode{Type: kindError, Named: true, Error: true, Start: i, End: i + 1,
			Children: []*treegen.SimpleNode{tok}})
		return
	}
	for len(l.stack)-1 > depth {
		l.closeTop(i, true)
	}
	l.closeTop(i, false)
}

// closeTop pops the innermost group, closing it with the bracket found at
// offset i or with a missing token.
func (l *lexer) closeTop(i int, missing bool) {
	c := l.top()
	g := c.node
	closer := closers[g.Children[0].Type[0]]
	tok := &treegen.SimpleNode{Type: string(closer), Start: i, End: i + 1}
	if missing {
		// zero width, right after the last token of the group
		l.errors = true
		end := g.Children[len(g.Children)-1].End
		tok.Start, tok.End, tok.Missing = end, end, true
	}
	g.Children = append(g.Children, tok)
	g.End = max(g.End, tok.End)
	l.stack = l.stack[:len(l.stack)-1]

	// propagate the new end to the enclosing line
	if p := l.top().line; p != nil {
		p.End = max(p.End, g.End)
	}
}

type lexTree struct {
	root    *treegen.SimpleNode
	grammar *Grammar
	errors  bool
}

func (t *lexTree) Cursor() treegen.Cursor { return treegen.NewSimpleCursor(t.root) }
func (t *lexTree) Grammar() *Grammar      { return t.grammar }
func (t *lexTree) HasErrors() bool        { return t.errors }
func (t *lexTree) Close()                 {}

// lexGrammar classifies lexer kinds. Types stay qualified by the source
// language so lexed and parsed trees of one language never share types.
func lexGrammar(language string) *Grammar {
	text := grammars[LangText]
	return &Grammar{
		name:        language,
		identifiers: text.identifiers,
		leaves:      text.leaves,
	}
}

func lexParse(content []byte, language string) Tree {
	root, errs := lex(content, language)
	return &lexTree{root: root, grammar: lexGrammar(language), errors: errs}
}
