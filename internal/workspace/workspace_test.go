package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HyperAST/HyperAST-sub006/internal/actions"
	"github.com/HyperAST/HyperAST-sub006/internal/ast"
	"github.com/HyperAST/HyperAST-sub006/internal/bus"
	"github.com/HyperAST/HyperAST-sub006/internal/cache"
	"github.com/HyperAST/HyperAST-sub006/internal/config"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
)

func testConfig() Config {
	cfg := config.Default()
	return ConfigFrom(cfg)
}

func newWorkspace(t *testing.T, cfg Config, b bus.Bus) *Workspace {
	t.Helper()
	return New(cfg, nil, ast.NewParser(), cache.NewLRU(16), b, logger.Discard())
}

// recorder collects the events of some topics.
type recorder struct {
	mu     sync.Mutex
	events map[string][]bus.Event
}

func record(t *testing.T, b bus.Bus, topics ...string) *recorder {
	t.Helper()
	r := &recorder{events: map[string][]bus.Event{}}
	for _, topic := range topics {
		require.NoError(t, b.Subscribe(context.Background(), topic, func(_ context.Context, e bus.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[topic] = append(r.events[topic], e)
			return nil
		}))
	}
	return r
}

func (r *recorder) get(topic string) []bus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Event(nil), r.events[topic]...)
}

func TestGenerate_Revisions(t *testing.T) {
	w := newWorkspace(t, testConfig(), nil)
	ctx := context.Background()

	first, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("x = 1\n")})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, ast.LangText, first.Language)
	assert.NotEmpty(t, first.ID)
	assert.NotZero(t, first.Size)
	assert.False(t, first.Unchanged)

	same, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("x = 1\n")})
	require.NoError(t, err)
	assert.True(t, same.Unchanged)
	assert.Equal(t, 1, same.Number)

	forced, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("x = 1\n"), Force: true})
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Number)
	assert.Equal(t, first.Root, forced.Root, "identical content must intern to the same root")

	stats := w.Stats()
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 2, stats.Revisions)
	assert.Equal(t, 2, stats.Generator.Files)
	assert.Positive(t, stats.Generator.Reused)
	require.NotNil(t, stats.Cache)
}

func TestGenerate_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.Generator.MaxFileSize = 4
	b := bus.NewMemoryBus(logger.Discard())
	defer b.Close()
	rec := record(t, b, bus.TopicGenerationCompleted)
	w := newWorkspace(t, cfg, b)

	_, err := w.Generate(context.Background(), GenerateRequest{Content: []byte("x")})
	assert.True(t, errors.IsValidation(err))

	_, err = w.Generate(context.Background(), GenerateRequest{Path: "big.txt", Content: []byte("too large")})
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))

	_, err = w.Generate(context.Background(), GenerateRequest{Path: "a.cob", Language: "cobol", Content: []byte("x")})
	assert.Equal(t, errors.CodeUnsupportedLanguage, errors.CodeOf(err))

	require.True(t, b.DrainTimeout(time.Second))
	events := rec.get(bus.TopicGenerationCompleted)
	require.Len(t, events, 2)
	codes := map[string]string{}
	for _, e := range events {
		p, err := bus.Decode[bus.GenerationCompleted](e)
		require.NoError(t, err)
		codes[p.Path] = p.Code
	}
	assert.Equal(t, map[string]string{
		"big.txt": errors.CodeValidation,
		"a.cob":   errors.CodeUnsupportedLanguage,
	}, codes)
}

func TestGenerate_InvalidUTF8(t *testing.T) {
	w := newWorkspace(t, testConfig(), nil)
	_, err := w.Generate(context.Background(), GenerateRequest{Path: "a.txt", Content: []byte{'a', 0xff}})
	assert.Equal(t, errors.CodeEncoding, errors.CodeOf(err))
	assert.Empty(t, w.Tracker().Paths())
}

func TestGenerateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("a b c\n"), 0o644))

	w := newWorkspace(t, testConfig(), nil)
	rev, err := w.GenerateFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, rev.Path)

	_, err = w.GenerateFile(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.IsNotFound(err))
}

func TestDiffPath(t *testing.T) {
	b := bus.NewMemoryBus(logger.Discard())
	defer b.Close()
	rec := record(t, b, bus.TopicDiffCompleted)
	w := newWorkspace(t, testConfig(), b)
	ctx := context.Background()

	_, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("x = 1\n")})
	require.NoError(t, err)

	_, err = w.DiffPath(ctx, "a.txt")
	assert.True(t, errors.IsNotFound(err))

	_, err = w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("x = 2\n")})
	require.NoError(t, err)

	res, err := w.DiffPath(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, actions.Summary{Updates: 1}, res.Summary)
	assert.False(t, res.Cached)

	again, err := w.DiffPath(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, res.Summary, again.Summary)
	assert.Len(t, again.Actions, 1)

	byNumber, err := w.DiffRevisions(ctx, "a.txt", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, byNumber.Summary)

	_, err = w.DiffRevisions(ctx, "a.txt", 1, 9)
	assert.True(t, errors.IsNotFound(err))

	require.True(t, b.DrainTimeout(time.Second))
	events := rec.get(bus.TopicDiffCompleted)
	require.Len(t, events, 3)
	cached := 0
	for _, e := range events {
		p, err := bus.Decode[bus.DiffCompleted](e)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", p.Path)
		assert.Empty(t, p.Code)
		if p.Cached {
			cached++
		} else {
			assert.Contains(t, p.Phases, "script")
		}
	}
	assert.Equal(t, 2, cached)
}

func TestDiff_Verify(t *testing.T) {
	cfg := testConfig()
	cfg.Diff.Verify = true
	w := New(cfg, nil, ast.NewParser(), nil, nil, logger.Discard())
	ctx := context.Background()

	src, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("f(x, y)\n")})
	require.NoError(t, err)
	dst, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("f(x, y, z)\n")})
	require.NoError(t, err)

	res, err := w.Diff(ctx, src.Root, dst.Root)
	require.NoError(t, err)
	assert.NotZero(t, res.Summary.Total())
	assert.Nil(t, w.Stats().Cache)
}

func TestDiff_UnknownNode(t *testing.T) {
	w := newWorkspace(t, testConfig(), nil)
	_, err := w.Diff(context.Background(), 4096, 4097)
	assert.True(t, errors.IsValidation(err))
}

func TestDiffAll(t *testing.T) {
	w := newWorkspace(t, testConfig(), nil)
	ctx := context.Background()

	var pairs []Pair
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		old, err := w.Generate(ctx, GenerateRequest{Path: name, Content: []byte("v = 1\n" + name + "\n")})
		require.NoError(t, err)
		cur, err := w.Generate(ctx, GenerateRequest{Path: name, Content: []byte("v = 2\n" + name + "\n")})
		require.NoError(t, err)
		pairs = append(pairs, Pair{Path: name, Src: old.Root, Dst: cur.Root})
	}
	pairs = append(pairs, Pair{Src: pairs[0].Src, Dst: pairs[0].Src})

	results, err := w.DiffAll(ctx, pairs)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i := range 3 {
		assert.Equal(t, pairs[i].Src, results[i].Src)
		assert.Equal(t, actions.Summary{Updates: 1}, results[i].Summary)
	}
	assert.Empty(t, results[3].Actions)

	_, err = w.DiffAll(ctx, []Pair{{Src: 4096, Dst: 4097}})
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	b := bus.NewMemoryBus(logger.Discard())
	defer b.Close()
	rec := record(t, b, bus.TopicRevisionRemoved)
	w := newWorkspace(t, testConfig(), b)
	ctx := context.Background()

	_, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte("x\n")})
	require.NoError(t, err)

	assert.True(t, w.Remove(ctx, "a.txt"))
	assert.False(t, w.Remove(ctx, "a.txt"))
	assert.Empty(t, w.Tracker().Paths())

	require.True(t, b.DrainTimeout(time.Second))
	events := rec.get(bus.TopicRevisionRemoved)
	require.Len(t, events, 1)
	p, err := bus.Decode[bus.RevisionRemoved](events[0])
	require.NoError(t, err)
	assert.Equal(t, "a.txt", p.Path)
}

func TestConfigOptions(t *testing.T) {
	opts := testConfig().Options()
	assert.Equal(t, 1, opts.MinHeight)
	assert.Equal(t, 0.5, opts.SimThreshold)
	assert.True(t, opts.LabelAware)
	assert.True(t, opts.IgnoreSpaces)
}

func TestGenerate_MaxRevisionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.MaxRevisions = 2
	wcfg := ConfigFrom(cfg)
	require.Equal(t, 2, wcfg.MaxRevisions)

	w := newWorkspace(t, wcfg, nil)
	ctx := context.Background()
	for _, content := range []string{"x = 1\n", "x = 2\n", "x = 3\n"} {
		_, err := w.Generate(ctx, GenerateRequest{Path: "a.txt", Content: []byte(content)})
		require.NoError(t, err)
	}

	revs := w.tracker.Revisions("a.txt")
	require.Len(t, revs, 2)
	assert.Equal(t, 2, revs[0].Number)
	assert.Equal(t, 3, revs[1].Number)
	assert.Equal(t, 2, w.Stats().Revisions)
}

func TestIntern(t *testing.T) {
	w := newWorkspace(t, testConfig(), nil)
	ctx := context.Background()

	a, err := w.Intern(ctx, "a.txt", "", []byte("x = 1\n"))
	require.NoError(t, err)
	again, err := w.Intern(ctx, "a.txt", "", []byte("x = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Empty(t, w.Tracker().Paths())

	b, err := w.Intern(ctx, "a.txt", "", []byte("x = 2\n"))
	require.NoError(t, err)
	res, err := w.Diff(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, actions.Summary{Updates: 1}, res.Summary)

	cfg := testConfig()
	cfg.Generator.MaxFileSize = 4
	small := newWorkspace(t, cfg, nil)
	_, err = small.Intern(ctx, "a.txt", "", []byte("x = 1\n"))
	assert.True(t, errors.IsValidation(err))
}
