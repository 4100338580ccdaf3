package treegen

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/HyperAST/HyperAST-sub006/internal/pkg/errors"
	"github.com/HyperAST/HyperAST-sub006/internal/pkg/logger"
	"github.com/HyperAST/HyperAST-sub006/internal/store"
	"github.com/HyperAST/HyperAST-sub006/internal/types"
)

var tracer = otel.Tracer("hyperast.treegen")

// cancelCheckInterval is how many cursor steps run between context checks.
const cancelCheckInterval = 1024

// Language classifies the node kinds of one grammar.
type Language interface {
	Name() string
	// Flags returns the classification of kind. Ignored kinds are dropped
	// with their children folded into the parent, Leaf kinds are labeled
	// with their text and not descended into.
	Flags(kind string, named bool) types.Flags
}

// Precomputer computes bits stored with each new node, typically whether a
// precompiled query matches it. Bits of children are OR'ed into parents.
type Precomputer func(s *store.Stores, acc *Acc, label string) uint16

// preResult is the outcome of entering a node.
type preResult uint8

const (
	preOk preResult = iota
	// preSkip drops the node and its subtree, e.g. missing tokens.
	preSkip
	// preIgnore drops the node but keeps its children.
	preIgnore
	// preSkipChildren keeps the node as a labeled leaf.
	preSkipChildren
)

// Stats counts what a generator did since it was created.
type Stats struct {
	Files        int `json:"files"`
	Visited      int `json:"visited"`
	Interned     int `json:"interned"`
	Reused       int `json:"reused"`
	Skipped      int `json:"skipped"`
	ErrorNodes   int `json:"error_nodes"`
	DroppedRoles int `json:"dropped_roles"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(g *Generator) { g.log = log }
}

// WithPrecomputer installs a hook run on every new node.
func WithPrecomputer(p Precomputer) Option {
	return func(g *Generator) { g.precomp = p }
}

// Generator builds HyperAST nodes for one language into shared stores.
// A Generator is the single writer of its stores while GenerateFile runs and
// must not be used concurrently.
type Generator struct {
	stores   *store.Stores
	lang     Language
	log      *logger.Logger
	precomp  Precomputer
	roleWarn rate.Sometimes
	stats    Stats

	// onStep observes the traversal state, for tests.
	onStep func(*Global)
}

// New creates a generator writing into stores.
func New(stores *store.Stores, lang Language, opts ...Option) *Generator {
	g := &Generator{
		stores:   stores,
		lang:     lang,
		roleWarn: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logger.OrDefault(g.log)
	return g
}

// Stats returns the counters accumulated so far.
func (g *Generator) Stats() Stats {
	return g.stats
}

// GenerateFile interns the tree under cursor, which must be positioned on
// the root of the parse of text. The root is labeled with name. Text outside
// the root range becomes spacing of the root, so serializing the result
// gives back text.
func (g *Generator) GenerateFile(ctx context.Context, name string, text []byte, cursor Cursor) (full FullNode, err error) {
	ctx, span := tracer.Start(ctx, "treegen.GenerateFile", trace.WithAttributes(
		attribute.String("file", name),
		attribute.String("language", g.lang.Name()),
		attribute.Int("bytes", len(text)),
	))
	defer span.End()

	if !utf8.Valid(text) {
		err := errors.EncodingError(name, invalidOffset(text))
		span.SetStatus(codes.Error, err.Message)
		return FullNode{}, err
	}

	before := g.stats
	defer func() {
		if r := recover(); r != nil {
			err = errors.GenerationError("generation of "+name+" failed", fmt.Errorf("%v", r))
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			g.log.WithFile(name).Error("Tree generation aborted", "panic", r)
		}
	}()

	global := newGlobal(text)
	root := cursor.Node()
	flags := g.lang.Flags(root.Kind(), root.IsNamed()) | types.File
	acc := &Acc{
		Type:        g.stores.Types.Intern(g.lang.Name(), root.Kind(), flags),
		Kind:        root.Kind(),
		Labeled:     true,
		StartByte:   root.StartByte(),
		EndByte:     root.EndByte(),
		Indentation: indentation(text, root.StartByte(), 0, ""),
	}
	if sp, ok := spacingBetween(text, 0, acc.StartByte); ok {
		global.SetSumByteLength(acc.StartByte)
		g.push(acc, g.makeSpacing(global, sp))
		global.Right()
	}

	st := stack{{state: frameVisible, acc: acc}}
	if err := g.walk(ctx, cursor, &st, global); err != nil {
		span.RecordError(err)
		return FullNode{}, err
	}
	global.Up()
	if len(st) != 1 {
		panic(fmt.Sprintf("treegen: %d frames left open", len(st)))
	}

	if global.SumByteLength() < len(text) {
		if sp, ok := spacingBetween(text, global.SumByteLength(), len(text)); ok {
			global.Right()
			g.push(acc, g.makeSpacing(global, sp))
		}
	}
	full = g.make(global, acc, name)
	g.stats.Files++

	span.SetAttributes(
		attribute.Int("nodes.interned", g.stats.Interned-before.Interned),
		attribute.Int("nodes.reused", g.stats.Reused-before.Reused),
	)
	g.log.WithFile(name).Debug("Generated file",
		"size", full.Metrics.Size,
		"height", full.Metrics.Height,
		"interned", g.stats.Interned-before.Interned,
		"reused", g.stats.Reused-before.Reused,
	)
	return full, nil
}

// walk drives the cursor in pre-order, entering nodes on the way down and
// reducing them when the cursor moves past them. The root frame is left on
// the stack.
func (g *Generator) walk(ctx context.Context, cursor Cursor, st *stack, global *Global) error {
	down := true
	for steps := 1; ; steps++ {
		if steps%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if down {
			if vis, ok := cursor.GotoFirstChild(); ok {
				down = g.enter(cursor, st, global, vis)
				g.observe(global)
				continue
			}
		}
		if vis, ok := cursor.GotoNextSibling(); ok {
			g.leave(st, global)
			down = g.enter(cursor, st, global, vis)
			g.observe(global)
			continue
		}
		if !cursor.GotoParent() {
			return nil
		}
		g.leave(st, global)
		g.observe(global)
		down = false
	}
}

func (g *Generator) observe(global *Global) {
	if g.onStep != nil {
		g.onStep(global)
	}
}

// enter pushes a frame for the node under cursor and reports whether its
// children should be visited.
func (g *Generator) enter(cursor Cursor, st *stack, global *Global, vis Visibility) bool {
	global.Down()
	g.stats.Visited++
	res, acc := g.pre(cursor, *st, global)
	switch res {
	case preSkip:
		g.stats.Skipped++
		st.push(frame{state: frameBothHidden})
		global.Up()
		return false
	case preIgnore:
		if vis == Visible {
			st.push(frame{state: frameManuallyHidden})
		} else {
			st.push(frame{state: frameBothHidden})
		}
		return true
	case preSkipChildren:
		st.push(frame{state: stateOf(vis), acc: acc})
		return false
	default:
		global.SetSumByteLength(acc.StartByte)
		st.push(frame{state: stateOf(vis), acc: acc})
		return true
	}
}

func stateOf(vis Visibility) frameState {
	if vis == Hidden {
		return frameHidden
	}
	return frameVisible
}

func (g *Generator) pre(cursor Cursor, st stack, global *Global) (preResult, *Acc) {
	node := cursor.Node()
	if node.IsMissing() {
		return preSkip, nil
	}
	if node.IsError() {
		g.stats.ErrorNodes++
	}
	flags := g.lang.Flags(node.Kind(), node.IsNamed())
	if flags&types.Ignored != 0 {
		return preIgnore, nil
	}

	parent, _ := st.parent()
	acc := &Acc{
		Type:         g.stores.Types.Intern(g.lang.Name(), node.Kind(), flags),
		Kind:         node.Kind(),
		Labeled:      node.ChildCount() == 0,
		StartByte:    node.StartByte(),
		EndByte:      node.EndByte(),
		PaddingStart: global.SumByteLength(),
		Indentation:  indentation(global.Text(), node.StartByte(), global.SumByteLength(), parent.acc.Indentation),
	}
	if !g.stores.Types.Is(parent.acc.Type, types.Supertype) {
		if field := cursor.FieldName(); field != "" {
			acc.Role.Current = g.stores.Types.InternRole(field)
		}
	}
	if flags&types.Leaf != 0 && node.ChildCount() > 0 {
		acc.Labeled = true
		return preSkipChildren, acc
	}
	return preOk, acc
}

// leave reduces the top frame into its nearest accumulating ancestor.
func (g *Generator) leave(st *stack, global *Global) {
	f := st.pop()
	parent, ok := st.parent()
	if !ok {
		panic("treegen: left the root through the cursor")
	}
	if f.acc == nil {
		return
	}
	acc := f.acc
	if !acc.HasChildren() {
		global.SetSumByteLength(acc.EndByte)
	}
	if parent.state == frameHidden {
		switch {
		case f.state == frameVisible && parent.acc.EndByte <= acc.StartByte:
			panic(fmt.Sprintf("treegen: %s at %d is past its hidden parent %s ending at %d",
				acc.Kind, acc.StartByte, parent.acc.Kind, parent.acc.EndByte))
		case parent.acc.EndByte < acc.StartByte:
			panic(fmt.Sprintf("treegen: hidden %s at %d is past its hidden parent ending at %d",
				acc.Kind, acc.StartByte, parent.acc.EndByte))
		case parent.acc.EndByte == acc.StartByte:
			// a zero-width hidden node trailing a hidden parent
			if acc.HasChildren() {
				panic(fmt.Sprintf("treegen: trailing hidden %s has children", acc.Kind))
			}
			global.Up()
			return
		}
	}
	global.Up()
	g.push(parent.acc, g.post(parent.acc, global, acc))
}

// post emits the spacing preceding acc into parent and interns acc.
func (g *Generator) post(parent *Acc, global *Global, acc *Acc) FullNode {
	if sp, ok := spacingBetween(global.Text(), acc.PaddingStart, acc.StartByte); ok {
		g.push(parent, g.makeSpacing(global, sp))
	}
	label := ""
	if acc.Labeled {
		label = string(global.Text()[acc.StartByte:acc.EndByte])
	}
	return g.make(global, acc, label)
}

// push folds a reduced child into acc.
func (g *Generator) push(acc *Acc, child FullNode) {
	if child.Metrics.SizeNoSpaces > 0 {
		acc.NoSpace = append(acc.NoSpace, child.ID)
	}
	if child.Role != types.NoRole {
		o := len(acc.Children)
		if !acc.Role.add(child.Role, o) {
			g.stats.DroppedRoles++
			g.roleWarn.Do(func() {
				g.log.Warn("Dropping role past the last storable offset",
					"kind", acc.Kind,
					"role", g.stores.Types.RoleName(child.Role),
					"offset", o,
				)
			})
		}
	}
	acc.Children = append(acc.Children, child.ID)
	acc.Metrics.Acc(child.Metrics)
	acc.Precomp |= child.Precomp
	v := g.stores.Resolve(child.ID)
	acc.bytesLen += v.BytesLen()
	g.stores.CollectRefs(&acc.refs, v)
}

func (g *Generator) makeSpacing(global *Global, text string) FullNode {
	if !isBlank(text) {
		g.log.Debug("Non blank text between tokens", "offset", global.SumByteLength(), "text", text)
	}
	id := g.stores.Build(types.Spaces, text, true, nil)
	return FullNode{
		ID:       id,
		Metrics:  g.stores.Resolve(id).Metrics(),
		Depth:    global.Depth(),
		Position: global.Position(),
	}
}

// make interns acc labeled with label. Nodes that already exist keep their
// stored metrics and precomputed bits.
func (g *Generator) make(global *Global, acc *Acc, label string) FullNode {
	info := g.stores.Types.Info(acc.Type)
	var own uint16
	if acc.Labeled {
		own = store.CountLines(label)
	}
	metrics, hb := acc.Metrics.Finalize(info.Hash, label, own)

	labelID := store.NoLabel
	if acc.Labeled {
		labelID = g.stores.Labels.GetOrInsert(label)
	}
	ins := g.stores.Nodes.PrepareInsertion(hb.MostDiscriminating(), func(v store.NodeView) bool {
		return v.Same(acc.Type, labelID, acc.Children)
	})
	full := FullNode{
		Role:     acc.Role.Current,
		Depth:    global.Depth(),
		Position: global.Position(),
	}
	if id, ok := ins.Occupied(); ok {
		v := g.stores.Resolve(id)
		g.stats.Reused++
		full.ID = id
		full.Metrics = v.Metrics()
		full.Precomp = v.Precomp()
		return full
	}

	metrics.Hashes = hb.Build()
	precomp := acc.Precomp
	if g.precomp != nil {
		precomp |= g.precomp(g.stores, acc, label)
	}
	n := store.Node{
		Type:     acc.Type,
		Label:    labelID,
		Metrics:  metrics,
		BytesLen: acc.bytesLen,
		Precomp:  precomp,
	}
	if len(acc.Children) > 0 {
		n.Children = acc.Children
		if len(acc.NoSpace) != len(acc.Children) {
			// non-nil even when every child is spacing
			n.NoSpace = append(make([]store.NodeID, 0, len(acc.NoSpace)), acc.NoSpace...)
		}
		if len(acc.Role.Roles) > 0 {
			n.Roles = acc.Role.Roles
			n.RoleOffsets = acc.Role.Offsets
		}
		if !acc.refs.Empty() {
			refs := acc.refs
			n.Refs = &refs
		}
	} else {
		n.BytesLen = uint32(len(label))
	}
	full.ID = g.stores.Nodes.InsertAfterPrepare(ins, n)
	full.Metrics = metrics
	full.Precomp = precomp
	g.stats.Interned++
	return full
}

func invalidOffset(text []byte) int {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(text)
}
