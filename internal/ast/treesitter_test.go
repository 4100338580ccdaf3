//go:build cgo

package ast

import (
	"context"
	"testing"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/treegen"
)

func TestTreeSitter_RoundTrip(t *testing.T) {
	tests := []struct {
		lang  string
		input string
	}{
		{LangGo, "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"},
		{LangGo, "package p\n\n// A doc comment.\nvar x, y = 1, 2\n"},
		{LangPython, "def f(a, b=2):\n    return a + b\n\nprint(f(1))\n"},
		{LangJavaScript, "const f = (x) => x * 2;\nconsole.log(f(3));\n"},
		{LangTypeScript, "function id<T>(x: T): T {\n  return x;\n}\n"},
		{LangJava, "class A {\n  int f() { return 1; }\n}\n"},
		{LangRust, "fn main() {\n    let v = vec![1, 2];\n}\n"},
	}

	s := store.NewStores()
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			if !p.SupportsLanguage(tt.lang) {
				t.Fatalf("SupportsLanguage(%s) = false", tt.lang)
			}
			tree, err := p.Parse(context.Background(), []byte(tt.input), tt.lang)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			defer tree.Close()
			if tree.HasErrors() {
				t.Errorf("HasErrors() = true for valid %s input", tt.lang)
			}

			g := treegen.New(s, tree.Grammar(), treegen.WithLogger(logger.Discard()))
			full, err := g.GenerateFile(context.Background(), "input", []byte(tt.input), tree.Cursor())
			if err != nil {
				t.Fatalf("GenerateFile() error: %v", err)
			}
			if got := treegen.Serialize(s, full.ID); got != tt.input {
				t.Errorf("Serialize() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestTreeSitter_RoundTripInvalid(t *testing.T) {
	tests := []struct {
		lang  string
		input string
	}{
		{LangGo, "(/*aa##"},
		{LangGo, "func {"},
		{LangGo, "package p\n\nvar x = [}\n"},
		{LangPython, "def (:\n  ##\n"},
	}

	s := store.NewStores()
	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tree, err := p.Parse(context.Background(), []byte(tt.input), tt.lang)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			defer tree.Close()

			g := treegen.New(s, tree.Grammar(), treegen.WithLogger(logger.Discard()))
			full, err := g.GenerateFile(context.Background(), "input", []byte(tt.input), tree.Cursor())
			if err != nil {
				t.Fatalf("GenerateFile() error: %v", err)
			}
			if got := treegen.Serialize(s, full.ID); got != tt.input {
				t.Errorf("Serialize() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestTreeSitter_Dedup(t *testing.T) {
	s := store.NewStores()
	p := NewParser()
	gen := func(src string) treegen.FullNode {
		t.Helper()
		tree, err := p.Parse(context.Background(), []byte(src), LangGo)
		if err != nil {
			t.Fatalf("Parse() error: %v", err)
		}
		defer tree.Close()
		full, err := treegen.New(s, tree.Grammar(), treegen.WithLogger(logger.Discard())).
			GenerateFile(context.Background(), "a.go", []byte(src), tree.Cursor())
		if err != nil {
			t.Fatalf("GenerateFile() error: %v", err)
		}
		return full
	}

	a := gen("package p\n\nfunc f() int { return 1 }\n")
	nodes := s.Stats().Nodes
	b := gen("package p\n\nfunc f() int { return 1 }\n")
	if a.ID != b.ID {
		t.Errorf("identical files interned as %d and %d", a.ID, b.ID)
	}
	if got := s.Stats().Nodes; got != nodes {
		t.Errorf("regenerating an identical file added %d nodes", got-nodes)
	}
}

func TestTreeSitter_Errors(t *testing.T) {
	p := NewParser()
	tree, err := p.Parse(context.Background(), []byte("func {"), LangGo)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	defer tree.Close()
	if !tree.HasErrors() {
		t.Error("HasErrors() = false for invalid input")
	}
}
