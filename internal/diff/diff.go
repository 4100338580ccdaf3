// Package diff is the entry point of tree differencing: it decompresses two
// stored trees, maps them and derives the edit script.
package diff

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HyperAST/HyperAST-sub006/internal/actions"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
	"github.com/HyperAST/HyperAST-sub006/internal/matchers"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

var tracer = otel.Tracer("hyperast.diff")

// Result is the outcome of a diff query.
type Result struct {
	ID       string             `json:"id"`
	Src      store.NodeID       `json:"src"`
	Dst      store.NodeID       `json:"dst"`
	SrcSize  int                `json:"src_size"`
	DstSize  int                `json:"dst_size"`
	Mapped   int                `json:"mapped"`
	Actions  []actions.Action   `json:"actions"`
	Summary  actions.Summary    `json:"summary"`
	Options  matchers.Options   `json:"-"`
	Duration time.Duration      `json:"duration_ns"`
	Phases   map[string]float64 `json:"phases_ms,omitempty"`
	// Cached is set when the result was served from a cache.
	Cached bool `json:"cached,omitempty"`
}

// ComputeActions maps the trees rooted at src and dst and returns the edit
// script from src to dst.
//
// The algorithms are synchronous and not cancellable: ctx is only checked
// before starting and carries the trace. Invariant violations panic, callers
// serving requests should use Safe.
func ComputeActions(ctx context.Context, stores *store.Stores, src, dst store.NodeID, opts matchers.Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.TimeoutError("diff")
	}
	if !stores.Nodes.Has(src) || !stores.Nodes.Has(dst) {
		return nil, errors.ValidationError(fmt.Sprintf("unknown node in diff %d -> %d", src, dst))
	}

	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "diff.ComputeActions", trace.WithAttributes(
		attribute.String("diff.id", id),
		attribute.Int64("diff.src", int64(src)),
		attribute.Int64("diff.dst", int64(dst)),
	))
	defer span.End()

	start := time.Now()
	phases := map[string]float64{}
	var phaseSpan trace.Span
	var phaseStart time.Time
	hooks := matchers.Hooks{
		Start: func(p matchers.Phase) {
			_, phaseSpan = tracer.Start(ctx, string(p))
			phaseStart = time.Now()
		},
		End: func(p matchers.Phase, m *mapping.Store) {
			phaseSpan.SetAttributes(attribute.Int("mappings", m.Len()))
			phaseSpan.End()
			phases[string(p)] = ms(time.Since(phaseStart))
		},
	}
	res := matchers.MatchWithHooks(stores, src, dst, opts, hooks)

	_, scriptSpan := tracer.Start(ctx, "script")
	scriptStart := time.Now()
	as := actions.Generate(res.Src, res.Dst, res.Mappings)
	scriptSpan.SetAttributes(attribute.Int("actions", len(as)))
	scriptSpan.End()
	phases["script"] = ms(time.Since(scriptStart))

	out := &Result{
		ID:       id,
		Src:      src,
		Dst:      dst,
		SrcSize:  res.Src.Len(),
		DstSize:  res.Dst.Len(),
		Mapped:   res.Mappings.Len(),
		Actions:  as,
		Summary:  actions.Summarize(as),
		Options:  opts,
		Duration: time.Since(start),
		Phases:   phases,
	}
	span.SetAttributes(
		attribute.Int("diff.src_size", out.SrcSize),
		attribute.Int("diff.dst_size", out.DstSize),
		attribute.Int("diff.mapped", out.Mapped),
		attribute.Int("diff.actions", len(as)),
	)
	return out, nil
}

// Safe is ComputeActions turning panics into DIFF_ERROR errors.
func Safe(ctx context.Context, stores *store.Stores, src, dst store.NodeID, opts matchers.Options) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.DiffError("diff failed", fmt.Errorf("%v", r)).
				WithDetail("src", fmt.Sprint(src)).
				WithDetail("dst", fmt.Sprint(dst))
			trace.SpanFromContext(ctx).SetStatus(codes.Error, "panic")
		}
	}()
	return ComputeActions(ctx, stores, src, dst, opts)
}

// Verify replays the script of res over its src tree and checks that it
// yields its dst tree.
func Verify(stores *store.Stores, res *Result) error {
	got, err := actions.Apply(stores, res.Src, res.Actions, res.Options.IgnoreSpaces)
	if err != nil {
		return err
	}
	want := res.Dst
	if res.Options.IgnoreSpaces {
		want = actions.StripSpaces(stores, want)
	}
	if got != want {
		return errors.DiffError("edit script does not reproduce the destination", nil).
			WithDetail("got", stores.Format(got)).
			WithDetail("want", stores.Format(want))
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
