// Package workspace drives generation and diffing over one set of stores:
// it tracks the revisions of each file, serializes writers, caches diff
// outcomes and publishes what happened on the event bus.
package workspace

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/HyperAST/HyperAST-sub006/internal/ast"
	"github.com/HyperAST/HyperAST-sub006/internal/bus"
	"github.com/HyperAST/HyperAST-sub006/internal/cache"
	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/diff"
	"github.com/HyperAST/HyperAST-sub006/internal/matchers"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/hash"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/treegen"
)

const eventSource = "workspace"

// Config configures a Workspace.
type Config struct {
	Generator config.GeneratorConfig
	Matcher   config.MatcherConfig
	Diff      config.DiffConfig
	// MaxRevisions bounds the revisions kept per path, 0 keeps all.
	MaxRevisions int
}

// ConfigFrom extracts the workspace settings of cfg.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Generator:    cfg.Generator,
		Matcher:      cfg.Matcher,
		Diff:         cfg.Diff,
		MaxRevisions: cfg.Generator.MaxRevisions,
	}
}

// Options returns the matcher options of c.
func (c Config) Options() matchers.Options {
	return matchers.Options{
		MinHeight:     c.Matcher.MinHeight,
		SimThreshold:  c.Matcher.SimThreshold,
		SizeThreshold: c.Matcher.SizeThreshold,
		LabelAware:    c.Matcher.LabelAware,
		HideMapped:    c.Matcher.HideMapped,
		IgnoreSpaces:  c.Diff.IgnoreSpaces,
		Lazy:          c.Diff.Lazy,
	}
}

// Workspace owns a set of stores. Generation is serialized, diffs run
// concurrently with each other and with generation.
type Workspace struct {
	cfg     Config
	opts    matchers.Options
	stores  *store.Stores
	parser  ast.Parser
	cache   cache.Cache // nil disables caching
	bus     bus.Bus     // nil disables events
	tracker *Tracker
	log     *logger.Logger
	// instance scopes cache keys: node ids only mean something within
	// these stores, and a Redis cache may be shared between processes.
	instance string

	// writeMu is held by whoever mutates the stores: generation and script
	// verification.
	writeMu sync.Mutex

	statsMu  sync.Mutex
	genStats treegen.Stats
}

// New creates a workspace over stores. The cache and the bus are optional.
func New(cfg Config, stores *store.Stores, parser ast.Parser, c cache.Cache, eventBus bus.Bus, log *logger.Logger) *Workspace {
	if stores == nil {
		stores = store.NewStores()
	}
	if parser == nil {
		parser = ast.NewParser()
	}
	return &Workspace{
		cfg:      cfg,
		opts:     cfg.Options(),
		stores:   stores,
		parser:   parser,
		cache:    c,
		bus:      eventBus,
		tracker:  NewTracker(cfg.MaxRevisions),
		log:      logger.OrDefault(log),
		instance: uuid.NewString(),
	}
}

// Stores returns the stores of the workspace.
func (w *Workspace) Stores() *store.Stores { return w.stores }

// Tracker returns the revision tracker.
func (w *Workspace) Tracker() *Tracker { return w.tracker }

// MatcherOptions returns the options diffs run with.
func (w *Workspace) MatcherOptions() matchers.Options { return w.opts }

// GenerateRequest is the input of Generate.
type GenerateRequest struct {
	Path     string
	Language string // detected from Path when empty
	Content  []byte
	// Force generates even when the content matches the latest revision.
	Force bool
}

// Generate parses and interns one file and records it as a new revision of
// its path.
func (w *Workspace) Generate(ctx context.Context, req GenerateRequest) (Revision, error) {
	start := time.Now()
	if req.Path == "" {
		return Revision{}, errors.ValidationError("path is required")
	}
	if req.Language == "" {
		req.Language = ast.DetectLanguage(req.Path)
	}
	log := w.log.WithContext(ctx).WithFile(req.Path)

	if limit := w.cfg.Generator.MaxFileSize; limit > 0 && int64(len(req.Content)) > limit {
		err := errors.ValidationError(fmt.Sprintf("file is %d bytes, the limit is %d", len(req.Content), limit)).
			WithDetail("file", req.Path)
		w.publishGeneration(ctx, bus.GenerationCompleted{Path: req.Path, Language: req.Language}, start, err)
		return Revision{}, err
	}

	contentHash := hash.SHA256(req.Content)
	if !req.Force {
		if latest, ok := w.tracker.Latest(req.Path); ok && latest.Hash == contentHash {
			log.Debug("Content unchanged, skipping generation", "revision", latest.Number)
			latest.Unchanged = true
			return latest, nil
		}
	}

	full, stats, err := w.generate(ctx, req)
	if err != nil {
		log.Warn("Generation failed", "error", err)
		w.publishGeneration(ctx, bus.GenerationCompleted{Path: req.Path, Language: req.Language}, start, err)
		return Revision{}, err
	}

	rev := w.tracker.Add(Revision{
		Path:     req.Path,
		Language: req.Language,
		Hash:     contentHash,
		Root:     full.ID,
		Size:     full.Metrics.Size,
		Height:   full.Metrics.Height,
	})
	log.Info("Generated revision",
		"revision", rev.Number,
		"root", rev.Root,
		"size", rev.Size,
		"interned", stats.Interned,
		"reused", stats.Reused,
	)
	w.publishGeneration(ctx, bus.GenerationCompleted{
		Path:     req.Path,
		Language: req.Language,
		Revision: rev.Number,
		Root:     uint32(rev.Root),
		Size:     rev.Size,
		Height:   rev.Height,
		Interned: stats.Interned,
		Reused:   stats.Reused,
	}, start, nil)
	return rev, nil
}

// GenerateFile reads path from disk and generates it.
func (w *Workspace) GenerateFile(ctx context.Context, path string) (Revision, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Revision{}, errors.NotFoundError("file: " + path)
		}
		return Revision{}, errors.Wrap(errors.CodeInternal, "stat "+path, err)
	}
	if limit := w.cfg.Generator.MaxFileSize; limit > 0 && info.Size() > limit {
		return Revision{}, errors.ValidationError(fmt.Sprintf("file is %d bytes, the limit is %d", info.Size(), limit)).
			WithDetail("file", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Revision{}, errors.Wrap(errors.CodeInternal, "read "+path, err)
	}
	return w.Generate(ctx, GenerateRequest{Path: path, Content: content})
}

// Intern generates content into the stores without recording a revision.
// The root is labeled with name, which also selects the language when
// language is empty.
func (w *Workspace) Intern(ctx context.Context, name, language string, content []byte) (treegen.FullNode, error) {
	if language == "" {
		language = ast.DetectLanguage(name)
	}
	if limit := w.cfg.Generator.MaxFileSize; limit > 0 && int64(len(content)) > limit {
		return treegen.FullNode{}, errors.ValidationError(fmt.Sprintf("content is %d bytes, the limit is %d", len(content), limit))
	}
	full, _, err := w.generate(ctx, GenerateRequest{Path: name, Language: language, Content: content})
	return full, err
}

// generate runs the parser and the tree generator. Parsing happens outside
// the write lock.
func (w *Workspace) generate(ctx context.Context, req GenerateRequest) (treegen.FullNode, treegen.Stats, error) {
	tree, err := w.parser.Parse(ctx, req.Content, req.Language)
	if err != nil {
		return treegen.FullNode{}, treegen.Stats{}, err
	}
	defer tree.Close()
	if tree.HasErrors() {
		w.log.WithFile(req.Path).Debug("Parse tree has errors, error nodes are skipped")
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	gen := treegen.New(w.stores, tree.Grammar().Ignoring(w.cfg.Generator.IgnoreKinds...), treegen.WithLogger(w.log))
	full, err := gen.GenerateFile(ctx, req.Path, req.Content, tree.Cursor())
	if err != nil {
		return treegen.FullNode{}, treegen.Stats{}, err
	}
	stats := gen.Stats()
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.genStats.Files += stats.Files
	w.genStats.Visited += stats.Visited
	w.genStats.Interned += stats.Interned
	w.genStats.Reused += stats.Reused
	w.genStats.Skipped += stats.Skipped
	w.genStats.ErrorNodes += stats.ErrorNodes
	w.genStats.DroppedRoles += stats.DroppedRoles
	return full, stats, nil
}

// Diff computes the edit script from src to dst. Results are cached per
// pair of nodes and matcher options.
func (w *Workspace) Diff(ctx context.Context, src, dst store.NodeID) (*diff.Result, error) {
	return w.diff(ctx, "", src, dst)
}

// DiffPath diffs the two newest revisions of path.
func (w *Workspace) DiffPath(ctx context.Context, path string) (*diff.Result, error) {
	old, cur, ok := w.tracker.LastTwo(path)
	if !ok {
		return nil, errors.NotFoundError("previous revision of " + path)
	}
	return w.diff(ctx, path, old.Root, cur.Root)
}

// DiffRevisions diffs revisions from and to of path.
func (w *Workspace) DiffRevisions(ctx context.Context, path string, from, to int) (*diff.Result, error) {
	a, ok := w.tracker.Revision(path, from)
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("revision %d of %s", from, path))
	}
	b, ok := w.tracker.Revision(path, to)
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("revision %d of %s", to, path))
	}
	return w.diff(ctx, path, a.Root, b.Root)
}

// Pair names two nodes to diff.
type Pair struct {
	Path string       `json:"path,omitempty"`
	Src  store.NodeID `json:"src"`
	Dst  store.NodeID `json:"dst"`
}

// LatestPair returns the pair of the two newest revisions of path.
func (w *Workspace) LatestPair(path string) (Pair, bool) {
	old, cur, ok := w.tracker.LastTwo(path)
	if !ok {
		return Pair{}, false
	}
	return Pair{Path: path, Src: old.Root, Dst: cur.Root}, true
}

// DiffAll diffs the pairs concurrently, at most Diff.Workers at a time. The
// results are in the order of pairs. The first failure cancels the others.
func (w *Workspace) DiffAll(ctx context.Context, pairs []Pair) ([]*diff.Result, error) {
	results := make([]*diff.Result, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(w.cfg.Diff.Workers, 1))
	for i, p := range pairs {
		g.Go(func() error {
			res, err := w.diff(gctx, p.Path, p.Src, p.Dst)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (w *Workspace) diff(ctx context.Context, path string, src, dst store.NodeID) (*diff.Result, error) {
	start := time.Now()
	event := bus.DiffCompleted{Path: path, Src: uint32(src), Dst: uint32(dst)}

	key := hash.DiffKey(uint32(src), uint32(dst), w.variant())
	if res, ok := w.cached(ctx, key, src, dst); ok {
		event.Summary = res.Summary
		event.Mapped = res.Mapped
		event.Cached = true
		w.publishDiff(ctx, event, start, nil)
		return res, nil
	}

	res, err := w.compute(ctx, src, dst)
	if err == nil && w.cfg.Diff.Verify {
		err = w.verify(res)
	}
	if err != nil {
		w.log.WithContext(ctx).Warn("Diff failed", "src", src, "dst", dst, "error", err)
		w.publishDiff(ctx, event, start, err)
		return nil, err
	}

	w.store(ctx, key, res)
	event.Summary = res.Summary
	event.Mapped = res.Mapped
	event.Phases = res.Phases
	w.publishDiff(ctx, event, start, nil)
	w.log.WithQuery(res.ID).Debug("Computed diff",
		"src", src,
		"dst", dst,
		"actions", res.Summary.Total(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// compute runs the diff under the configured timeout. The algorithms cannot
// be interrupted: on timeout the query is abandoned and its goroutine runs
// to completion in the background.
func (w *Workspace) compute(ctx context.Context, src, dst store.NodeID) (*diff.Result, error) {
	if w.cfg.Diff.Timeout <= 0 {
		return diff.Safe(ctx, w.stores, src, dst, w.opts)
	}
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Diff.Timeout)
	defer cancel()

	type outcome struct {
		res *diff.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := diff.Safe(context.WithoutCancel(ctx), w.stores, src, dst, w.opts)
		done <- outcome{res, err}
	}()
	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return nil, errors.TimeoutError("diff")
	}
}

// verify replays the script of res. Replaying interns nodes, so it takes
// the write lock.
func (w *Workspace) verify(res *diff.Result) (err error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = errors.DiffError("replaying edit script failed", fmt.Errorf("%v", r))
		}
	}()
	return diff.Verify(w.stores, res)
}

func (w *Workspace) variant() string {
	o := w.opts
	return fmt.Sprintf("%s/h%d/s%g/z%d/l%t/m%t/sp%t", w.instance, o.MinHeight, o.SimThreshold, o.SizeThreshold, o.LabelAware, o.HideMapped, o.IgnoreSpaces)
}

func (w *Workspace) cached(ctx context.Context, key string, src, dst store.NodeID) (*diff.Result, bool) {
	if w.cache == nil {
		return nil, false
	}
	e, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		w.log.Warn("Diff cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &diff.Result{
		Src:     src,
		Dst:     dst,
		SrcSize: e.SrcSize,
		DstSize: e.DstSize,
		Mapped:  e.Mapped,
		Actions: e.Actions,
		Summary: e.Summary,
		Options: w.opts,
		Cached:  true,
	}, true
}

func (w *Workspace) store(ctx context.Context, key string, res *diff.Result) {
	if w.cache == nil {
		return
	}
	err := w.cache.Set(ctx, key, cache.Entry{
		Summary: res.Summary,
		Mapped:  res.Mapped,
		SrcSize: res.SrcSize,
		DstSize: res.DstSize,
		Actions: res.Actions,
	})
	if err != nil {
		w.log.Warn("Diff cache write failed", "error", err)
	}
}

// Remove forgets the revisions of path. The nodes stay interned.
func (w *Workspace) Remove(ctx context.Context, path string) bool {
	if !w.tracker.RemovePath(path) {
		return false
	}
	w.publish(ctx, bus.TopicRevisionRemoved, bus.RevisionRemoved{Path: path})
	return true
}

// Stats summarizes the workspace.
type Stats struct {
	Store     store.Stats   `json:"store"`
	Files     int           `json:"files"`
	Revisions int           `json:"revisions"`
	Generator treegen.Stats `json:"generator"`
	Cache     *cache.Stats  `json:"cache,omitempty"`
}

// Stats returns current statistics.
func (w *Workspace) Stats() Stats {
	ts := w.tracker.Stats()
	s := Stats{
		Store:     w.stores.Stats(),
		Files:     ts.Files,
		Revisions: ts.Revisions,
	}
	w.statsMu.Lock()
	s.Generator = w.genStats
	w.statsMu.Unlock()
	if w.cache != nil {
		cs := w.cache.Stats()
		s.Cache = &cs
	}
	return s
}

func (w *Workspace) publishGeneration(ctx context.Context, p bus.GenerationCompleted, start time.Time, err error) {
	p.Millis = time.Since(start).Milliseconds()
	p.Code, p.Error = failure(err)
	w.publish(ctx, bus.TopicGenerationCompleted, p)
}

func (w *Workspace) publishDiff(ctx context.Context, p bus.DiffCompleted, start time.Time, err error) {
	p.Millis = time.Since(start).Milliseconds()
	p.Code, p.Error = failure(err)
	w.publish(ctx, bus.TopicDiffCompleted, p)
}

func (w *Workspace) publish(ctx context.Context, topic string, payload any) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, topic, bus.NewEvent(topic, eventSource, payload)); err != nil {
		w.log.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}

func failure(err error) (code, msg string) {
	if err == nil {
		return "", ""
	}
	code = errors.CodeOf(err)
	if code == "" {
		code = errors.CodeInternal
	}
	return code, err.Error()
}
