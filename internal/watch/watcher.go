// Package watch regenerates files of a directory tree as they change and
// diffs each new revision against the previous one.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HyperAST/HyperAST-sub006/internal/diff"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/workspace"
)

// Target is what the watcher feeds. *workspace.Workspace implements it.
type Target interface {
	GenerateFile(ctx context.Context, path string) (workspace.Revision, error)
	LatestPair(path string) (workspace.Pair, bool)
	DiffAll(ctx context.Context, pairs []workspace.Pair) ([]*diff.Result, error)
	Remove(ctx context.Context, path string) bool
}

// BatchResult reports one processed batch of changes.
type BatchResult struct {
	Generated []workspace.Revision
	Removed   []string
	Diffs     []*diff.Result
	Failed    int
}

type Watcher struct {
	path       string
	target     Target
	ignore     *IgnoreMatcher
	extensions []string
	onBatch    func(BatchResult)

	// Batch processing
	pendingMu    sync.Mutex
	pendingFiles map[string]struct{}
	batchTimer   *time.Timer
	batchDelay   time.Duration
	batchTimeout time.Duration

	// Stats
	statsMu   sync.Mutex
	fileCount int
	lastSync  time.Time

	// Lifecycle
	done     chan struct{}
	stopOnce sync.Once
	log      *logger.Logger
}

type WatcherConfig struct {
	Path   string
	Target Target
	// Extensions restricts watching to files with these extensions, all
	// files when empty.
	Extensions   []string
	BatchDelay   time.Duration // Default: 200ms
	BatchTimeout time.Duration // Default: 30s
	// OnBatch is called after each batch, including the initial sync.
	OnBatch func(BatchResult)
	Log     *logger.Logger
}

func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Target == nil {
		return nil, errors.ValidationError("watcher needs a target")
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = 200 * time.Millisecond
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 30 * time.Second
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid watch path", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, errors.NotFoundError("directory: " + cfg.Path)
	}
	if !info.IsDir() {
		return nil, errors.ValidationError(cfg.Path + " is not a directory")
	}

	ignore, err := NewIgnoreMatcher(absPath)
	if err != nil {
		return nil, err
	}

	exts := make([]string, 0, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}

	return &Watcher{
		path:         absPath,
		target:       cfg.Target,
		ignore:       ignore,
		extensions:   exts,
		onBatch:      cfg.OnBatch,
		pendingFiles: make(map[string]struct{}),
		batchDelay:   cfg.BatchDelay,
		batchTimeout: cfg.BatchTimeout,
		done:         make(chan struct{}),
		log:          logger.OrDefault(cfg.Log).WithComponent("watcher"),
	}, nil
}

// Start generates every file once, then processes changes until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info("Starting watcher", "path", w.path)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "creating file watcher", err)
	}
	defer fsWatcher.Close()

	// Add directories recursively
	err = filepath.WalkDir(w.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Warn("Error walking path", "path", path, "error", err)
			return filepath.SkipDir
		}
		if d.IsDir() {
			if path != w.path && w.ignore.ShouldIgnore(path) {
				return filepath.SkipDir
			}
			return fsWatcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "watching directories", err)
	}

	w.initialSync(ctx)
	w.log.Info("Watching for changes", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return ctx.Err()
		case <-w.done:
			w.stopTimer()
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, fsWatcher)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "error", err)
		}
	}
}

// accepts reports whether path is a file the watcher cares about.
func (w *Watcher) accepts(path string) bool {
	if w.ignore.ShouldIgnore(path) {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return slices.Contains(w.extensions, strings.ToLower(filepath.Ext(path)))
}

func (w *Watcher) handleEvent(event fsnotify.Event, fsWatcher *fsnotify.Watcher) {
	path := event.Name
	if w.ignore.ShouldIgnore(path) {
		return
	}

	// New directories are watched too
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := fsWatcher.Add(path); err != nil {
				w.log.Warn("Failed to watch directory", "path", path, "error", err)
			}
			return
		}
	}
	if !w.accepts(path) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pendingFiles[path] = struct{}{}

	// Reset batch timer
	if w.batchTimer != nil {
		w.batchTimer.Stop()
	}
	w.batchTimer = time.AfterFunc(w.batchDelay, w.processBatch)
}

func (w *Watcher) stopTimer() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.batchTimer != nil {
		w.batchTimer.Stop()
	}
}

func (w *Watcher) processBatch() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for path := range w.pendingFiles {
		files = append(files, path)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 {
		return
	}
	sort.Strings(files)
	w.log.Info("Processing batch", "count", len(files))

	ctx, cancel := context.WithTimeout(context.Background(), w.batchTimeout)
	defer cancel()
	w.process(ctx, files, true)
}

// process generates the existing files among paths, forgets the missing
// ones and diffs every new revision against the previous one.
func (w *Watcher) process(ctx context.Context, paths []string, diffs bool) BatchResult {
	var res BatchResult
	var pairs []workspace.Pair
	for _, path := range paths {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			if w.target.Remove(ctx, path) {
				res.Removed = append(res.Removed, path)
			}
			continue
		case err != nil:
			w.log.Warn("Failed to stat file", "path", path, "error", err)
			res.Failed++
			continue
		case info.IsDir():
			continue
		}

		rev, err := w.target.GenerateFile(ctx, path)
		if err != nil {
			w.log.WithFile(path).Warn("Failed to generate file", "error", err)
			res.Failed++
			continue
		}
		if rev.Unchanged {
			continue
		}
		res.Generated = append(res.Generated, rev)
		if !diffs {
			continue
		}
		if p, ok := w.target.LatestPair(path); ok {
			pairs = append(pairs, p)
		}
	}

	if len(pairs) > 0 {
		results, err := w.target.DiffAll(ctx, pairs)
		if err != nil {
			w.log.Error("Failed to diff batch", "error", err)
			res.Failed += len(pairs)
		} else {
			res.Diffs = results
			for _, r := range results {
				w.log.Info("File changed", "src", r.Src, "dst", r.Dst, "actions", r.Summary.String())
			}
		}
	}

	w.statsMu.Lock()
	w.fileCount += len(res.Generated)
	w.lastSync = time.Now()
	w.statsMu.Unlock()

	if w.onBatch != nil {
		w.onBatch(res)
	}
	return res
}

func (w *Watcher) initialSync(ctx context.Context) {
	w.log.Info("Performing initial sync...")

	var files []string
	_ = filepath.WalkDir(w.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // finish walk even if some errors
		}
		if d.IsDir() {
			if path != w.path && w.ignore.ShouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.accepts(path) {
			files = append(files, path)
		}
		return nil
	})

	res := w.process(ctx, files, false)
	w.log.Info("Initial sync finished", "files", len(res.Generated), "failed", res.Failed)
}

// Stop stops a running watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Stats returns the number of generated revisions and the time of the last
// batch.
func (w *Watcher) Stats() (int, time.Time) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.fileCount, w.lastSync
}
