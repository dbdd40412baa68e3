package predicate

import (
	"math"

	"github.com/nickng/looppred/internal/logging"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
)

// TemplateFactory builds template assertion predicates for one counted
// loop. The template checks scale*iv + offset u< range at two symbolic
// points, the first and the last iteration value, with the iteration value
// hidden behind opaque placeholders so later loop transformations can
// rewrite it.
type TemplateFactory struct {
	g    *ir.Graph
	loop *looptree.Loop
	log  *logging.Logger
}

// NewTemplateFactory returns a factory for loop, which must be counted.
func NewTemplateFactory(g *ir.Graph, loop *looptree.Loop) *TemplateFactory {
	ir.Assert(loop.IsCounted(), "template factory needs a counted loop")
	return &TemplateFactory{g: g, loop: loop}
}

// SetLogger sets logger for the factory.
func (f *TemplateFactory) SetLogger(l *logging.Logger) {
	f.log = l.Named("template")
}

// Create builds a template node with entry as its control input, without
// wiring it onto a chain. testOp is OpRangeCheck for a hoistable range
// check and OpIf otherwise. When the formula may exceed the 32-bit value
// range the returned template is downgraded to OpIf and flagged, and the
// second result is true.
func (f *TemplateFactory) Create(entry *ir.Node, scale int64, offset, rng *ir.Node, testOp ir.Op) (TemplateAssertionPredicate, bool) {
	g := f.g
	opqInit := g.NewNode(ir.OpOpaqueLoopInit, f.loop.Init())
	g.RegisterNode(opqInit, entry)
	initBool := f.formulaBool(entry, opqInit, scale, offset, rng)

	// Last value: init + (stride placeholder - stride). At creation time the
	// placeholder holds the loop's own stride so the difference is zero;
	// stride updates rewrite the placeholder and shift the last value with
	// it. The cast pins the recomputed value to the int range.
	opqStride := g.NewNode(ir.OpOpaqueLoopStride, f.loop.Stride())
	g.RegisterNode(opqStride, entry)
	diff := g.NewNode(ir.OpSubI, opqStride, f.loop.Stride())
	g.RegisterNode(diff, entry)
	last := g.NewNode(ir.OpAddI, opqInit, diff)
	g.RegisterNode(last, entry)
	cast := g.NewNode(ir.OpCastII, last)
	g.RegisterNode(cast, entry)
	lastBool := f.formulaBool(entry, cast, scale, offset, rng)

	node := g.NewNode(ir.OpTemplateAssertionPred, entry, initBool, lastBool)
	node.PredOp = testOp
	overflow := f.mayOverflow(scale, offset, rng)
	if overflow {
		node.PredOp = ir.OpIf
		node.MarkOverflow()
		if f.log != nil {
			f.log.Debugf("downgrading template %s to plain branch (may overflow)", node)
		}
	}
	return TemplateAssertionPredicate{g: g, node: node}, overflow
}

// formulaBool builds Bool(u<, CmpU(scale*v + offset, rng)) anchored at
// entry. Scale 1 and nil offset elide their nodes.
func (f *TemplateFactory) formulaBool(entry, v *ir.Node, scale int64, offset, rng *ir.Node) *ir.Node {
	g := f.g
	expr := v
	if scale != 1 {
		expr = g.NewNode(ir.OpMulI, g.NewConI(scale), expr)
		g.RegisterNode(expr, entry)
	}
	if offset != nil {
		expr = g.NewNode(ir.OpAddI, expr, offset)
		g.RegisterNode(expr, entry)
	}
	cmp := g.NewNode(ir.OpCmpU, expr, rng)
	g.RegisterNode(cmp, entry)
	return g.NewBool(ir.TestLt, cmp, entry)
}

// mayOverflow evaluates scale*v + offset in 64 bits at the extreme
// iteration values and reports whether any result leaves the 32-bit range.
// Non-constant operands widen to the full int range, so the check can only
// be pessimistic, never unsound.
func (f *TemplateFactory) mayOverflow(scale int64, offset, rng *ir.Node) bool {
	lo, hi := int64(math.MinInt32), int64(math.MaxInt32)
	if init := f.loop.Init(); init != nil && init.Op == ir.OpConI {
		if limit := f.loop.Limit(); limit != nil && limit.Op == ir.OpConI {
			lo, hi = init.Val, limit.Val
			if lo > hi {
				lo, hi = hi, lo
			}
			// The last recomputed value may step one stride past the limit.
			s := f.loop.StrideCon()
			if s < 0 {
				s = -s
			}
			hi += s
		}
	} else if rng != nil && rng.Op == ir.OpConI {
		// Unsigned check bounds the value by the range length.
		lo, hi = 0, rng.Val
	}
	var off int64
	if offset != nil {
		if offset.Op != ir.OpConI {
			return true
		}
		off = offset.Val
	}
	for _, v := range [2]int64{lo, hi} {
		e := scale*v + off
		if e < math.MinInt32 || e > math.MaxInt32 {
			return true
		}
	}
	return false
}

// CloneTo clones the template with newEntry as control input, transforming
// the opaque placeholders per tr. Data nodes hanging off the old template
// that belong to the loop copy identified by inTarget are rewired onto the
// clone; pass nil to leave all users on the original.
func (t TemplateAssertionPredicate) CloneTo(newEntry *ir.Node, tr OpaqueTransform, inTarget NodeInTargetLoop) TemplateAssertionPredicate {
	g := t.g
	fc := newFormulaCloner(g, newEntry, tr)
	newInit := fc.clone(t.InitBool())
	newLast := fc.clone(t.LastBool())
	c := g.Clone(t.node)
	if inTarget != nil {
		for _, out := range append([]*ir.Node(nil), t.node.Outs()...) {
			if out.IsCFG() || !inTarget.Contains(out) {
				continue
			}
			for i := 0; i < out.NumIn(); i++ {
				if out.In(i) == t.node {
					g.ReplaceInput(out, i, c)
				}
			}
		}
	}
	g.ReplaceInput(c, 0, newEntry)
	g.ReplaceInput(c, 1, newInit)
	g.ReplaceInput(c, 2, newLast)
	return TemplateAssertionPredicate{g: g, node: c}
}

// Initialize instantiates the template into two initialized assertion
// predicates on chain, first the check for the initial value and above it
// the check for the last value. The placeholders are folded away, so the
// concrete values are whatever the opaques currently hold.
func (t TemplateAssertionPredicate) Initialize(chain *Chain) (InitializedAssertionPredicate, InitializedAssertionPredicate) {
	pInit := t.initializeBool(chain, t.InitBool())
	pLast := t.initializeBool(chain, t.LastBool())
	return pInit, pLast
}

func (t TemplateAssertionPredicate) initializeBool(chain *Chain, formula *ir.Node) InitializedAssertionPredicate {
	g := t.g
	ctrl := chain.Entry()
	fc := newFormulaCloner(g, ctrl, FoldOpaque())
	b := fc.clone(formula)
	opq := g.NewNode(ir.OpOpaqueAssertionPred, b)
	g.RegisterNode(opq, ctrl)
	op := t.node.PredOp
	if op == ir.OpInvalid {
		op = ir.OpIf
	}
	iff := g.NewNode(op, ctrl, opq)
	succ := g.NewNode(ir.OpIfTrue, iff)
	fail := g.NewNode(ir.OpIfFalse, iff)
	g.MakeHalt(fail)
	p := InitializedAssertionPredicate{succ: succ}
	chain.InsertNew(p)
	return p
}

// UpdateStride rewires the stride placeholder of the last value formula to
// newStride. The initial value formula has no stride placeholder, so only
// the last value check moves.
func (t TemplateAssertionPredicate) UpdateStride(newStride *ir.Node) {
	opq := findOpaque(t.LastBool(), ir.OpOpaqueLoopStride)
	ir.Assert(opq != nil, "template last value formula lost its stride placeholder")
	ir.Assert(findOpaque(t.InitBool(), ir.OpOpaqueLoopStride) == nil,
		"template initial value formula must not use the stride placeholder")
	if opq != nil {
		t.g.ReplaceInput(opq, 0, newStride)
	}
}

// findOpaque returns the first placeholder of kind op reachable from n
// through formula ops, or nil.
func findOpaque(n *ir.Node, op ir.Op) *ir.Node {
	if n == nil || !validFormulaOp(n.Op) {
		return nil
	}
	if n.Op == op {
		return n
	}
	for i := 0; i < n.NumIn(); i++ {
		if found := findOpaque(n.In(i), op); found != nil {
			return found
		}
	}
	return nil
}
