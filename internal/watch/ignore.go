package watch

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// ignoreFiles are read from the watched root, in order.
var ignoreFiles = []string{".gitignore", ".hyperastignore"}

var defaultPatterns = []string{
	".git",
	"node_modules",
	"__pycache__",
	"*.pyc",
	".DS_Store",
	"*.lock",
	"*.log",
	"vendor",
	"dist",
	"build",
	"target",
	".idea",
	".vscode",
}

// IgnoreMatcher decides which paths under a root are not watched, using
// gitignore syntax.
type IgnoreMatcher struct {
	root    string
	matcher gitignore.Matcher
}

func NewIgnoreMatcher(root string) (*IgnoreMatcher, error) {
	var patterns []gitignore.Pattern
	for _, p := range defaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	for _, name := range ignoreFiles {
		ps, err := readPatterns(filepath.Join(root, name))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, ps...)
	}
	return &IgnoreMatcher{
		root:    root,
		matcher: gitignore.NewMatcher(patterns),
	}, nil
}

func readPatterns(path string) ([]gitignore.Pattern, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, scanner.Err()
}

// ShouldIgnore reports whether path is excluded. Paths outside the root are
// never ignored.
func (f *IgnoreMatcher) ShouldIgnore(path string) bool {
	relPath, err := filepath.Rel(f.root, path)
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return false
	}
	isDir := false
	if info, err := os.Stat(path); err == nil {
		isDir = info.IsDir()
	}
	return f.matcher.Match(strings.Split(relPath, string(filepath.Separator)), isDir)
}
