package unswitch_test

import (
	"testing"

	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/internal/logging"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
	"github.com/nickng/looppred/predicate"
	"github.com/nickng/looppred/ssaloop"
	"github.com/nickng/looppred/unswitch"
)

func invariantLoop() (*ssaloop.Fixture, *looptree.Loop) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, Limit: 100, ArrayLen: 100,
		InvariantTest:   true,
		ParsePredicates: true,
	})
	return f, looptree.Build(f.G).ByHead(f.Head)
}

func TestFindCandidate(t *testing.T) {
	f, l := invariantLoop()
	u := unswitch.New(f.G)
	if got := u.FindCandidate(l); got != f.InvariantIf {
		t.Errorf("candidate, want %s got %s", f.InvariantIf, got)
	}
}

func TestFindCandidateNoneWithoutInvariantTest(t *testing.T) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, Limit: 100, ArrayLen: 100,
	})
	l := looptree.Build(f.G).ByHead(f.Head)
	u := unswitch.New(f.G)
	if got := u.FindCandidate(l); got != nil {
		t.Errorf("loop without invariant test must have no candidate, got %s", got)
	}
	if u.Policy(l) {
		t.Error("policy must refuse a loop without candidate")
	}
}

func TestPolicyLimits(t *testing.T) {
	f, l := invariantLoop()
	u := unswitch.New(f.G)
	if !u.Policy(l) {
		t.Fatal("fresh loop with candidate should pass policy")
	}

	l.SetUnswitchCount(l.UnswitchMax())
	if u.Policy(l) {
		t.Error("policy must refuse once the unswitch count is exhausted")
	}
	l.SetUnswitchCount(0)

	f.G.SetNodeBudget(f.G.Unique() + 1)
	if u.Policy(l) {
		t.Error("policy must refuse when the clone does not fit the budget")
	}
}

func TestUnswitchRedistributesPredicates(t *testing.T) {
	f, l := invariantLoop()
	g := f.G
	ap := predicate.NewAssertionPredicates(g, l)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	u := unswitch.New(g)
	slowHead, ok := u.Unswitch(l)
	if !ok {
		t.Fatal("unswitch refused")
	}
	if expect, got := 1, l.UnswitchCount(); expect != got {
		t.Errorf("unswitch count, want %d got %d", expect, got)
	}
	g.Worklist.Simplify()
	g.RecomputeDomDepth()

	tree := looptree.Build(g)
	fast := tree.ByHead(f.Head)
	slow := tree.ByHead(slowHead)
	if fast == nil || slow == nil {
		t.Fatal("both loop versions must survive")
	}
	if expect, got := 1, slow.UnswitchCount(); expect != got {
		t.Errorf("slow copy inherits the count, want %d got %d", expect, got)
	}

	fastPreds := predicate.ForLoop(g, fast.Entry())
	slowPreds := predicate.ForLoop(g, slow.Entry())
	for name, p := range map[string]*predicate.Predicates{"fast": fastPreds, "slow": slowPreds} {
		if expect, got := 1, len(p.AssertionBlock().Templates()); expect != got {
			t.Errorf("%s loop templates, want %d got %d", name, expect, got)
		}
		for _, r := range deopt.Reasons() {
			if !p.BlockFor(r).HasParsePredicate() {
				t.Errorf("%s loop missing %s placeholder", name, r)
			}
		}
	}

	// Both chains end at the selector projections, which share one branch.
	fastTop := fastPreds.Entry()
	slowTop := slowPreds.Entry()
	if fastTop.Op != ir.OpIfTrue || slowTop.Op != ir.OpIfFalse {
		t.Fatalf("chain tops must be the selector projections, got %s and %s", fastTop, slowTop)
	}
	if fastTop.Control() != slowTop.Control() {
		t.Error("selector projections must share one branch")
	}
	if sel := fastTop.Control(); sel.In(1) != f.InvariantBool {
		t.Error("selector must test the invariant condition")
	}

	// Initialized assertion predicates are not cloned; they keep guarding
	// both copies from above the selector.
	shared := predicate.AssertionBlockAbove(g, fastTop.Control().In(0))
	if expect, got := 2, len(shared.Initialized()); expect != got {
		t.Errorf("shared initialized assertions, want %d got %d", expect, got)
	}
	if got := len(shared.Templates()); got != 0 {
		t.Errorf("no template may stay above the selector, got %d", got)
	}
}

func TestUnswitchFoldsBothCopies(t *testing.T) {
	f, l := invariantLoop()
	g := f.G

	u := unswitch.New(g)
	slowHead, ok := u.Unswitch(l)
	if !ok {
		t.Fatal("unswitch refused")
	}
	g.Worklist.Simplify()
	g.RecomputeDomDepth()

	if !f.InvariantIf.Dead() {
		t.Error("fast copy must fold its invariant test away")
	}

	// The condition is true on the fast path, so the fast copy keeps its
	// guarded store unconditionally. In the slow copy the guard folds the
	// other way and the store loses its control.
	reachable := 0
	for _, n := range g.Nodes() {
		if n.Dead() || n.Op != ir.OpStore {
			continue
		}
		if c := g.Ctrl(n); c != nil && !c.Dead() {
			reachable++
		}
	}
	if expect := 1; reachable != expect {
		t.Errorf("anchored stores, want %d got %d", expect, reachable)
	}
	if c := g.Ctrl(f.BodyStore); c == nil || c.Dead() {
		t.Error("fast copy must keep its store on live control")
	}

	// Each copy is again a plain counted loop.
	tree := looptree.Build(g)
	for _, head := range []*ir.Node{f.Head, slowHead} {
		l := tree.ByHead(head)
		if l == nil {
			t.Fatalf("loop %s lost after folding", head)
		}
		if !l.IsCounted() {
			t.Errorf("loop %s must stay counted", head)
		}
	}
}

func TestUnswitchKeepsParsePredicatesSharedWhenPinned(t *testing.T) {
	f, l := invariantLoop()
	g := f.G
	ap := predicate.NewAssertionPredicates(g, l)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	// Pin a store on the chain bottom: a leftover from an earlier peel that
	// belongs to neither copy.
	bottom := f.Head.In(0)
	pinned := g.NewNode(ir.OpStore, bottom, f.Base)
	g.RegisterNode(pinned, bottom)

	u := unswitch.New(g)
	_, ok := u.Unswitch(l)
	if !ok {
		t.Fatal("unswitch refused")
	}
	g.Worklist.Simplify()
	g.RecomputeDomDepth()

	tree := looptree.Build(g)
	fast := tree.ByHead(f.Head)
	fastPreds := predicate.ForLoop(g, fast.Entry())
	if fastPreds.HasAnyParsePredicate() {
		t.Error("pinned outside dependency must block placeholder cloning")
	}
	if expect, got := 1, len(fastPreds.AssertionBlock().Templates()); expect != got {
		t.Errorf("templates are still cloned, want %d got %d", expect, got)
	}
	for _, pp := range g.ParsePredicates() {
		if pp.Dead() {
			t.Errorf("original placeholder %s must stay when cloning is blocked", pp)
		}
	}
}

func TestPipelineWithLogger(t *testing.T) {
	f, l := invariantLoop()
	g := f.G
	lg := logging.New()
	// Sync error ignored. See https://github.com/uber-go/zap/issues/328
	defer lg.Sync()

	ap := predicate.NewAssertionPredicates(g, l)
	ap.SetLogger(lg)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	u := unswitch.New(g)
	u.SetLogger(lg)
	slowHead, ok := u.Unswitch(l)
	if !ok {
		t.Fatal("unswitch refused")
	}
	g.Worklist.Simplify()

	el := predicate.NewEliminator(g)
	el.SetLogger(lg)
	el.Eliminate(looptree.Build(g))
	g.Worklist.Simplify()

	// Logging must not change the outcome.
	tree := looptree.Build(g)
	for _, head := range []*ir.Node{f.Head, slowHead} {
		sl := tree.ByHead(head)
		if sl == nil {
			t.Fatalf("loop %s lost", head)
		}
		if got := len(predicate.ForLoop(g, sl.Entry()).AssertionBlock().Templates()); got != 1 {
			t.Errorf("templates above %s, want 1 got %d", head, got)
		}
	}
}
