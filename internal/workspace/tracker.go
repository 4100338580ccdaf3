package workspace

import (
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/hash"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// Revision is one generated version of a file.
type Revision struct {
	ID          string       `json:"id"`
	Number      int          `json:"number"`
	Path        string       `json:"path"`
	Language    string       `json:"language"`
	Hash        string       `json:"hash"` // content hash
	Root        store.NodeID `json:"root"`
	Size        uint32       `json:"size"`
	Height      uint32       `json:"height"`
	GeneratedAt time.Time    `json:"generated_at"`
	// Unchanged is set when the content matched the latest revision and
	// nothing was generated.
	Unchanged bool `json:"unchanged,omitempty"`
}

// Tracker records the revisions of each file path. Roots are only
// meaningful for the stores they were generated into.
type Tracker struct {
	mu    sync.RWMutex
	files map[string][]Revision // path -> revisions, oldest first
	limit int
}

// NewTracker creates a tracker keeping at most limit revisions per path,
// all of them when limit <= 0.
func NewTracker(limit int) *Tracker {
	return &Tracker{
		files: make(map[string][]Revision),
		limit: limit,
	}
}

// HasHash checks if the latest revision of path has the given content hash.
func (t *Tracker) HasHash(path, contentHash string) bool {
	rev, ok := t.Latest(path)
	return ok && rev.Hash == contentHash
}

// Add appends a revision to path, numbering it and returning the stored
// value.
func (t *Tracker) Add(rev Revision) Revision {
	t.mu.Lock()
	defer t.mu.Unlock()

	revs := t.files[rev.Path]
	rev.Number = 1
	if len(revs) > 0 {
		rev.Number = revs[len(revs)-1].Number + 1
	}
	rev.ID = hash.RevisionID(rev.Path, rev.Hash)
	if rev.GeneratedAt.IsZero() {
		rev.GeneratedAt = time.Now()
	}
	revs = append(revs, rev)
	if t.limit > 0 && len(revs) > t.limit {
		revs = slices.Clone(revs[len(revs)-t.limit:])
	}
	t.files[rev.Path] = revs
	return rev
}

// Latest returns the newest revision of path.
func (t *Tracker) Latest(path string) (Revision, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	revs := t.files[path]
	if len(revs) == 0 {
		return Revision{}, false
	}
	return revs[len(revs)-1], true
}

// LastTwo returns the two newest revisions of path, older first.
func (t *Tracker) LastTwo(path string) (Revision, Revision, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	revs := t.files[path]
	if len(revs) < 2 {
		return Revision{}, Revision{}, false
	}
	return revs[len(revs)-2], revs[len(revs)-1], true
}

// Revision returns revision number n of path.
func (t *Tracker) Revision(path string, n int) (Revision, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rev := range t.files[path] {
		if rev.Number == n {
			return rev, true
		}
	}
	return Revision{}, false
}

// Revisions returns a copy of the revisions of path, oldest first.
func (t *Tracker) Revisions(path string) []Revision {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.files[path])
}

// RemovePath removes a path from tracking. It reports whether the path was
// tracked.
func (t *Tracker) RemovePath(path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.files[path]
	delete(t.files, path)
	return ok
}

// RemoveByPrefix removes all paths with the given prefix and returns them.
func (t *Tracker) RemoveByPrefix(prefix string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for path := range t.files {
		if strings.HasPrefix(path, prefix) {
			delete(t.files, path)
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)
	return removed
}

// Paths returns all tracked paths, sorted.
func (t *Tracker) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	paths := make([]string, 0, len(t.files))
	for path := range t.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// TrackerStats contains tracker statistics.
type TrackerStats struct {
	Files     int `json:"files"`
	Revisions int `json:"revisions"`
}

// Stats returns statistics about tracked files.
func (t *Tracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := TrackerStats{Files: len(t.files)}
	for _, revs := range t.files {
		s.Revisions += len(revs)
	}
	return s
}

// FileInfo summarizes a tracked file.
type FileInfo struct {
	Path      string    `json:"path"`
	Language  string    `json:"language"`
	Revisions int       `json:"revisions"`
	Latest    Revision  `json:"latest"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFiles returns one page of tracked files sorted by path, and the total
// number of files. Pages start at 1.
func (t *Tracker) ListFiles(page, pageSize int) ([]FileInfo, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	files := make([]FileInfo, 0, len(t.files))
	for path, revs := range t.files {
		latest := revs[len(revs)-1]
		files = append(files, FileInfo{
			Path:      path,
			Language:  latest.Language,
			Revisions: len(revs),
			Latest:    latest,
			UpdatedAt: latest.GeneratedAt,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	total := len(files)
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start >= total {
		return []FileInfo{}, total
	}
	end := min(start+pageSize, total)
	return files[start:end], total
}
