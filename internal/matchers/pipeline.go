// Package matchers maps the nodes of two decompressed trees.
//
// The default pipeline is GumTree's: a greedy top-down phase mapping large
// identical subtrees, then a greedy bottom-up phase mapping their containers
// and repairing small leftovers with Zhang-Shasha.
package matchers

import (
	"github.com/HyperAST/HyperAST-sub006/internal/decompress"
	"github.com/HyperAST/HyperAST-sub006/internal/mapping"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
)

// Options configures the pipeline.
type Options struct {
	MinHeight     int
	SimThreshold  float64
	SizeThreshold int
	// LabelAware makes top-down isomorphism compare labels as well as
	// shapes. It defaults to true, as in HyperAST's greedy subtree matcher,
	// rather than GumTree's label-blind structural hash.
	LabelAware bool
	HideMapped bool
	// IgnoreSpaces hides spacing leaves from both views.
	IgnoreSpaces bool
	// Lazy decompresses during the top-down phase only what it visits.
	Lazy bool
}

// DefaultOptions returns the usual GumTree thresholds.
func DefaultOptions() Options {
	return Options{
		MinHeight:     1,
		SimThreshold:  0.5,
		SizeThreshold: 1000,
		LabelAware:    true,
		IgnoreSpaces:  true,
		Lazy:          true,
	}
}

// Result holds both views and the mappings between their indices.
type Result struct {
	Src      *decompress.CompletePostOrder
	Dst      *decompress.CompletePostOrder
	Mappings *mapping.Store
}

// Phase names a step of Match, see Hooks.
type Phase string

const (
	PhaseDecompress Phase = "decompress"
	PhaseTopDown    Phase = "match.top_down"
	PhaseBottomUp   Phase = "match.bottom_up"
)

// Hooks observes the phases of Match. Both fields may be nil.
type Hooks struct {
	Start func(Phase)
	End   func(Phase, *mapping.Store)
}

func (h Hooks) start(p Phase) {
	if h.Start != nil {
		h.Start(p)
	}
}

func (h Hooks) end(p Phase, m *mapping.Store) {
	if h.End != nil {
		h.End(p, m)
	}
}

// Match maps the trees rooted at src and dst.
func Match(stores *store.Stores, src, dst store.NodeID, opts Options) Result {
	return MatchWithHooks(stores, src, dst, opts, Hooks{})
}

// MatchWithHooks is Match with phase callbacks.
func MatchWithHooks(stores *store.Stores, src, dst store.NodeID, opts Options, hooks Hooks) Result {
	source := decompress.Source{Stores: stores, IgnoreSpaces: opts.IgnoreSpaces}
	srcLen, dstLen := source.Size(src), source.Size(dst)
	m := mapping.New(srcLen, dstLen)
	topDown := GreedySubtree{MinHeight: opts.MinHeight, LabelAware: opts.LabelAware}

	var res Result
	if opts.Lazy {
		hooks.start(PhaseDecompress)
		ls := decompress.NewLazyPostOrder(source, src)
		ld := decompress.NewLazyPostOrder(source, dst)
		hooks.end(PhaseDecompress, m)

		hooks.start(PhaseTopDown)
		topDown.Match(ls, ld, m)
		hooks.end(PhaseTopDown, m)

		res = Result{Src: ls.Complete(), Dst: ld.Complete(), Mappings: m}
	} else {
		hooks.start(PhaseDecompress)
		res = Result{
			Src:      decompress.NewCompletePostOrder(source, src),
			Dst:      decompress.NewCompletePostOrder(source, dst),
			Mappings: m,
		}
		hooks.end(PhaseDecompress, m)

		hooks.start(PhaseTopDown)
		topDown.Match(res.Src, res.Dst, m)
		hooks.end(PhaseTopDown, m)
	}

	hooks.start(PhaseBottomUp)
	GreedyBottomUp{
		SimThreshold:  opts.SimThreshold,
		SizeThreshold: opts.SizeThreshold,
		HideMapped:    opts.HideMapped,
	}.Match(res.Src, res.Dst, m)
	hooks.end(PhaseBottomUp, m)
	return res
}
