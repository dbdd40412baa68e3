package predicate

import (
	"github.com/nickng/looppred/internal/logging"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
)

// AssertionPredicates bundles the template maintenance every loop splitting
// transformation performs: cloning templates to a loop copy, moving them,
// creating fresh ones, and refreshing them after a stride change.
type AssertionPredicates struct {
	g    *ir.Graph
	loop *looptree.Loop
	log  *logging.Logger
}

// NewAssertionPredicates returns the maintenance ops for the templates
// above loop.
func NewAssertionPredicates(g *ir.Graph, loop *looptree.Loop) *AssertionPredicates {
	return &AssertionPredicates{g: g, loop: loop}
}

// SetLogger sets logger for the maintenance ops.
func (a *AssertionPredicates) SetLogger(l *logging.Logger) {
	a.log = l.Named("assertion")
}

// chainAnchor is the node predicates for l are inserted above: the outer
// wrapper when the loop is strip mined, the head otherwise.
func chainAnchor(l *looptree.Loop) *ir.Node {
	if w := l.StripMinedWrapper(); w != nil {
		return w
	}
	return l.Head()
}

// HasAny reports whether at least one template sits above the loop.
func (a *AssertionPredicates) HasAny() bool {
	return len(ForLoop(a.g, a.loop.Entry()).AssertionBlock().Templates()) > 0
}

// CreateAtLoop builds a fresh template for the loop's own trip values,
// wires it directly above the loop and instantiates it. Returns the
// template and whether the formula was downgraded for possible overflow.
func (a *AssertionPredicates) CreateAtLoop(scale int64, offset, rng *ir.Node, testOp ir.Op) (TemplateAssertionPredicate, bool) {
	f := NewTemplateFactory(a.g, a.loop)
	if a.log != nil {
		f.SetLogger(a.log)
	}
	chain := NewChain(a.g, chainAnchor(a.loop))
	t, overflow := f.Create(chain.Entry(), scale, offset, rng, testOp)
	chain.InsertNew(t)
	t.Initialize(chain)
	return t, overflow
}

// cloneAndInit clones each visited template to the target loop and
// instantiates the clone there. Killing the source, when wanted, is layered
// on top by moveAndInit.
type cloneAndInit struct {
	BaseVisitor
	g        *ir.Graph
	oldEntry *ir.Node // target loop entry before any insertion
	newInit  *ir.Node // initial trip value of the target loop
	inTarget NodeInTargetLoop
	chain    *Chain
}

func (v *cloneAndInit) VisitTemplate(t TemplateAssertionPredicate) {
	tr := CloneWithNewInit(v.g, v.oldEntry, v.newInit)
	c := t.CloneTo(v.oldEntry, tr, v.inTarget)
	v.chain.InsertNew(c)
	c.Initialize(v.chain)
}

// CloneToLoop copies every template above the source loop to target and
// instantiates the copies with target's initial trip value. inTarget
// selects which data users of each old template move to its copy; nil
// moves none.
func (a *AssertionPredicates) CloneToLoop(target *looptree.Loop, inTarget NodeInTargetLoop) {
	ir.Assert(target.IsCounted(), "clone target must be a counted loop")
	chain := NewChain(a.g, chainAnchor(target))
	v := &cloneAndInit{
		g:        a.g,
		oldEntry: chain.Entry(),
		newInit:  target.Init(),
		inTarget: inTarget,
		chain:    chain,
	}
	Walk(a.g, a.loop.Entry(), v)
}

type moveAndInit struct {
	cloneAndInit
}

func (v *moveAndInit) VisitTemplate(t TemplateAssertionPredicate) {
	v.cloneAndInit.VisitTemplate(t)
	t.Kill()
}

// MoveToLoop is CloneToLoop followed by killing each source template, for
// transformations where the source loop ceases to exist in its old form.
func (a *AssertionPredicates) MoveToLoop(target *looptree.Loop, inTarget NodeInTargetLoop) {
	ir.Assert(target.IsCounted(), "move target must be a counted loop")
	chain := NewChain(a.g, chainAnchor(target))
	v := &moveAndInit{cloneAndInit{
		g:        a.g,
		oldEntry: chain.Entry(),
		newInit:  target.Init(),
		inTarget: inTarget,
		chain:    chain,
	}}
	Walk(a.g, a.loop.Entry(), v)
}

// updateAndInit rewrites the stride placeholder of each template in place
// and re-instantiates it. The fresh instantiations stack between the chain
// bottom and the loop head. Initialized predicates allocated before the
// pass check the old stride and are killed; ones the pass just created are
// recognized by node index and left alone.
type updateAndInit struct {
	BaseVisitor
	g         *ir.Graph
	newStride *ir.Node
	chain     *Chain
	threshold int // first node index allocated by this pass
}

func (v *updateAndInit) VisitTemplate(t TemplateAssertionPredicate) {
	t.UpdateStride(v.newStride)
	t.Initialize(v.chain)
}

func (v *updateAndInit) VisitInitialized(p InitializedAssertionPredicate) {
	if p.Head().ID() < v.threshold {
		p.Kill(v.g)
	}
}

// UpdateStride rewrites every template above the loop for a new stride
// constant and replaces the stale initialized predicates with fresh ones.
// Used after unrolling doubles the stride.
func (a *AssertionPredicates) UpdateStride(newStrideCon int64) {
	newStride := a.g.NewConI(newStrideCon)
	chain := NewChain(a.g, chainAnchor(a.loop))
	v := &updateAndInit{
		g:         a.g,
		newStride: newStride,
		chain:     chain,
		threshold: a.g.Unique(),
	}
	Walk(a.g, a.loop.Entry(), v)
	if a.log != nil {
		a.log.Debugf("updated templates above %s for stride %d", a.loop, newStrideCon)
	}
}
