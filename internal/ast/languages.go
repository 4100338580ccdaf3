package ast

import (
	"path/filepath"
	"strings"
)

// Language constants used throughout the AST package
const (
	LangGo         = "go"
	LangPython     = "python"
	LangTypeScript = "typescript"
	LangJavaScript = "javascript"
	LangJava       = "java"
	LangRust       = "rust"
	// LangText is served by the lexical tokenizer in every build.
	LangText = "text"
)

// SupportedLanguages returns the list of languages we officially support via Tree-Sitter
var SupportedLanguages = []string{
	LangGo,
	LangPython,
	LangTypeScript,
	LangJavaScript,
	LangJava,
	LangRust,
}

var languageExtensions = map[string]string{
	".go":   LangGo,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".mts":  LangTypeScript,
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".py":   LangPython,
	".pyi":  LangPython,
	".rs":   LangRust,
	".java": LangJava,
}

// DetectLanguage detects the grammar to use from a file extension. Files
// without a known grammar are handled as LangText.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageExtensions[ext]; ok {
		return lang
	}
	return LangText
}
