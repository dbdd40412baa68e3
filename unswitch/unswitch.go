package unswitch

import (
	"github.com/nickng/looppred/internal/logging"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
	"github.com/nickng/looppred/predicate"
)

// State tracks the phases of one unswitching application.
type State int

const (
	// CandidateSearch looks for an invariant non-exiting test.
	CandidateSearch State = iota
	// LoopCloned has the slow copy in place behind the selector.
	LoopCloned
	// PredicatesRedistributed has templates and placeholders moved into
	// both copies.
	PredicatesRedistributed
	// Finalized has both tests hardwired and depths recomputed.
	Finalized
)

// Unswitcher applies loop unswitching to loops of one graph.
type Unswitcher struct {
	g     *ir.Graph
	log   *logging.Logger
	state State
}

// New returns an unswitcher over g.
func New(g *ir.Graph) *Unswitcher {
	return &Unswitcher{g: g}
}

// SetLogger sets logger for the unswitcher.
func (u *Unswitcher) SetLogger(l *logging.Logger) {
	u.log = l.Named("unswitch")
}

// advance moves the state machine to next, which must be the phase directly
// following the current one.
func (u *Unswitcher) advance(next State) {
	ir.Assert(next == u.state+1, "unswitch phase out of order")
	u.state = next
}

// FindCandidate returns the invariant non-exiting If to unswitch l on, or
// nil. Walking the dominator chain up from the back edge, a merge point
// dominated by a suitable If marks a candidate; the last one found is the
// first in body order and wins.
func (u *Unswitcher) FindCandidate(l *looptree.Loop) *ir.Node {
	var candidate *ir.Node
	n := l.BackEdge()
	for n != nil && n != l.Head() {
		dom := u.g.Idom(n)
		if n.Op == ir.OpRegion && dom != nil && dom.Op.IsIf() {
			iff := dom
			if bol := iff.In(1); bol != nil && bol.Op == ir.OpBool {
				if cmp := bol.In(0); cmp != nil && (cmp.Op == ir.OpCmpI || cmp.Op == ir.OpCmpU) {
					if l.IsInvariant(bol) && !l.IsLoopExit(iff) {
						candidate = iff
					}
				}
			}
		}
		n = dom
	}
	return candidate
}

// Policy reports whether l should be unswitched at all: the per-loop count
// must be below its maximum, a candidate must exist, and the clone must fit
// the node budget.
func (u *Unswitcher) Policy(l *looptree.Loop) bool {
	if l.UnswitchCount()+1 > l.UnswitchMax() {
		return false
	}
	if u.FindCandidate(l) == nil {
		return false
	}
	return u.g.MayRequireNodes(l.EstCloneSize(2))
}

// Unswitch clones l into a fast and a slow copy selected by its invariant
// test and returns the slow copy's head. ok is false when no candidate
// exists or policy refuses; the graph is untouched in that case.
//
// The loop forest is stale afterwards; rebuild it before further loop work.
func (u *Unswitcher) Unswitch(l *looptree.Loop) (slowHead *ir.Node, ok bool) {
	if !u.Policy(l) {
		return nil, false
	}
	candidate := u.FindCandidate(l)
	g := u.g
	u.state = CandidateSearch

	anchor := chainAnchor(l)
	entry := anchor.In(0)

	// Selector: same test as the candidate, placed below the chain and
	// above both copies. A range check selector keeps its op so later
	// passes still recognize it.
	selOp := ir.OpIf
	if candidate.Op == ir.OpRangeCheck {
		selOp = ir.OpRangeCheck
	}
	selector := g.NewNode(selOp, entry, candidate.In(1))
	fastProj := g.NewNode(ir.OpIfTrue, selector)
	slowProj := g.NewNode(ir.OpIfFalse, selector)

	firstCloneIdx := g.Unique()
	oldNew := u.cloneLoop(l)
	u.advance(LoopCloned)

	// Fix entries: the original becomes the fast loop, the copy the slow
	// loop.
	g.ReplaceInput(anchor, 0, fastProj)
	slowAnchor := oldNew[anchor]
	g.ReplaceInput(slowAnchor, 0, slowProj)

	u.redistributePredicates(l, entry, fastProj, slowProj, anchor, slowAnchor, firstCloneIdx, oldNew)
	u.advance(PredicatesRedistributed)

	// Hardwire: the fast loop keeps the true path, the slow loop the false
	// path. The worklist folds the branches away.
	g.ReplaceInput(candidate, 1, g.NewConI(1))
	g.Worklist.Push(candidate)
	slowCandidate := oldNew[candidate]
	g.ReplaceInput(slowCandidate, 1, g.NewConI(0))
	g.Worklist.Push(slowCandidate)

	// Both bodies get another simplification round: hardwiring leaves a
	// foldable branch and a dead diamond in each copy.
	for _, n := range g.Nodes() {
		if c := oldNew[n]; c != nil {
			g.Worklist.Push(n)
			g.Worklist.Push(c)
		}
	}

	g.RecomputeDomDepth()
	count := l.UnswitchCount() + 1
	l.SetUnswitchCount(count)
	slowHead = oldNew[l.Head()]
	slowHead.Unswitch = count
	u.advance(Finalized)
	if u.log != nil {
		u.log.Debugf("unswitched %s on %s, slow head %s (count %d)", l, candidate, slowHead, count)
	}
	return slowHead, true
}

// chainAnchor is the node predicates for l sit above: the outer wrapper
// when the loop is strip mined, the head otherwise.
func chainAnchor(l *looptree.Loop) *ir.Node {
	if w := l.StripMinedWrapper(); w != nil {
		return w
	}
	return l.Head()
}

// redistributePredicates walks the chain above the selector. Templates are
// cloned below both selector projections and the originals killed; parse
// predicate placeholders likewise, unless data nodes from outside the two
// copies hang off the old entry, in which case they are left for the
// eliminator. Runtime predicates stay where they are, shared above the
// selector.
func (u *Unswitcher) redistributePredicates(l *looptree.Loop, entry, fastProj, slowProj, fastAnchor, slowAnchor *ir.Node, firstCloneIdx int, oldNew map[*ir.Node]*ir.Node) {
	v := &clonePredicates{
		g:             u.g,
		fastChain:     predicate.NewChain(u.g, fastAnchor),
		slowChain:     predicate.NewChain(u.g, slowAnchor),
		inFast:        predicate.InOriginalLoop{FirstCloneIndex: firstCloneIdx, OldNew: oldNew},
		inSlow:        predicate.InClonedLoop{FirstCloneIndex: firstCloneIdx},
		canCloneParse: entryHasNoOutsideDependencies(entry, firstCloneIdx),
	}
	ir.Assert(v.fastChain.Entry() == fastProj, "fast chain must start at the selector projection")
	ir.Assert(v.slowChain.Entry() == slowProj, "slow chain must start at the selector projection")
	predicate.Walk(u.g, entry, v)
}

// entryHasNoOutsideDependencies reports whether everything hanging off the
// old loop entry besides the selector pairs up one fast node with one slow
// node. An unpaired node came from outside the loop, typically pinned there
// by an earlier peel, and blocks parse predicate cloning: checks hoisted
// above it could trap after its side effect already ran.
func entryHasNoOutsideDependencies(entry *ir.Node, firstCloneIdx int) bool {
	outcnt := entry.OutCount()
	if outcnt <= 1 {
		return true
	}
	slow := 0
	for _, o := range entry.Outs() {
		if o.ID() >= firstCloneIdx {
			slow++
		}
	}
	return slow*2 == outcnt-1
}

type clonePredicates struct {
	predicate.BaseVisitor
	g             *ir.Graph
	fastChain     *predicate.Chain
	slowChain     *predicate.Chain
	inFast        predicate.NodeInTargetLoop
	inSlow        predicate.NodeInTargetLoop
	canCloneParse bool
}

func (v *clonePredicates) VisitTemplate(t predicate.TemplateAssertionPredicate) {
	slow := t.CloneTo(v.slowChain.Entry(), predicate.CloneOpaque(v.g, v.slowChain.Entry()), v.inSlow)
	v.slowChain.InsertNew(slow)
	fast := t.CloneTo(v.fastChain.Entry(), predicate.CloneOpaque(v.g, v.fastChain.Entry()), v.inFast)
	v.fastChain.InsertNew(fast)
	t.Kill()
}

func (v *clonePredicates) VisitParse(p predicate.ParsePredicate) {
	if !v.canCloneParse {
		return
	}
	slow := predicate.MakeParsePredicate(v.g, v.slowChain.Entry(), p.Reason())
	v.slowChain.InsertNew(slow)
	fast := predicate.MakeParsePredicate(v.g, v.fastChain.Entry(), p.Reason())
	v.fastChain.InsertNew(fast)
	p.Kill(v.g)
}
