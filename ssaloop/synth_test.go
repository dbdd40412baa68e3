package ssaloop_test

import (
	"testing"

	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
	"github.com/nickng/looppred/predicate"
	"github.com/nickng/looppred/ssaloop"
)

func TestSynthesiseCountedShape(t *testing.T) {
	f := ssaloop.Synthesise(ssaloop.Params{Init: 2, Stride: 3, Limit: 50, ArrayLen: 50})
	l := looptree.Build(f.G).ByHead(f.Head)
	if l == nil {
		t.Fatal("synthesized loop not found")
	}
	if !l.IsCounted() {
		t.Fatal("synthesized loop not counted")
	}
	if got := l.IV(); got != f.IV {
		t.Errorf("induction phi, want %s got %s", f.IV, got)
	}
	if expect, got := int64(2), l.Init().Val; expect != got {
		t.Errorf("init, want %d got %d", expect, got)
	}
	if expect, got := int64(3), l.StrideCon(); expect != got {
		t.Errorf("stride, want %d got %d", expect, got)
	}
	if got := l.Limit(); got != f.Limit {
		t.Errorf("limit, want %s got %s", f.Limit, got)
	}
	if got := l.Entry(); got != f.LoopEntry() {
		t.Errorf("entry, want %s got %s", f.LoopEntry(), got)
	}
	if !l.Contains(f.BodyStore) {
		t.Error("body store must be inside the loop")
	}
	if l.Contains(f.After) {
		t.Error("after region must be outside the loop")
	}
}

func TestSynthesisePlaceholderOrder(t *testing.T) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, Limit: 10, ArrayLen: 10,
		ParsePredicates: true,
	})
	preds := predicate.ForLoop(f.G, f.LoopEntry())
	for _, r := range []deopt.Reason{deopt.Loop, deopt.ProfiledLoop, deopt.LoopLimitCheck} {
		if !preds.BlockFor(r).HasParsePredicate() {
			t.Errorf("missing %s placeholder", r)
		}
	}
	if got := preds.Entry(); got != f.Entry {
		t.Errorf("predicate chain entry, want %s got %s", f.Entry, got)
	}
	// Walking up from the loop the blocks come in the fixed order: loop limit
	// check closest to the loop, then profiled, then loop.
	var order []deopt.Reason
	v := &reasonCollector{order: &order}
	predicate.Walk(f.G, f.LoopEntry(), v)
	expect := []deopt.Reason{deopt.LoopLimitCheck, deopt.ProfiledLoop, deopt.Loop}
	if len(order) != len(expect) {
		t.Fatalf("placeholder count, want %d got %d", len(expect), len(order))
	}
	for i := range expect {
		if order[i] != expect[i] {
			t.Errorf("placeholder %d, want %s got %s", i, expect[i], order[i])
		}
	}
}

type reasonCollector struct {
	predicate.BaseVisitor
	order *[]deopt.Reason
}

func (v *reasonCollector) VisitParse(p predicate.ParsePredicate) {
	*v.order = append(*v.order, p.Reason())
}

func TestSynthesiseStripMined(t *testing.T) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, Limit: 10, ArrayLen: 10,
		StripMined:      true,
		ParsePredicates: true,
	})
	if f.Wrapper == nil || f.Wrapper.Op != ir.OpStripMinedLoop {
		t.Fatal("strip mined wrapper missing")
	}
	l := looptree.Build(f.G).ByHead(f.Head)
	if got := l.StripMinedWrapper(); got != f.Wrapper {
		t.Errorf("wrapper, want %s got %s", f.Wrapper, got)
	}
	// Entry and the placeholder chain sit above the wrapper, not between
	// wrapper and head.
	if got := l.Entry(); got != f.Wrapper.In(0) {
		t.Errorf("entry must skip the wrapper, want %s got %s", f.Wrapper.In(0), got)
	}
	if f.Head.In(0) != f.Wrapper {
		t.Error("head must hang off the wrapper")
	}
	preds := predicate.ForLoop(f.G, f.LoopEntry())
	if !preds.HasAnyParsePredicate() {
		t.Error("placeholders must be parsed above the wrapper")
	}
}

func TestSynthesiseInvariantTest(t *testing.T) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, Limit: 10, ArrayLen: 20,
		InvariantTest: true,
	})
	l := looptree.Build(f.G).ByHead(f.Head)
	if f.InvariantIf == nil {
		t.Fatal("invariant test missing")
	}
	if !l.Contains(f.InvariantIf) {
		t.Error("invariant test must be inside the loop")
	}
	if !l.IsInvariant(f.InvariantBool) {
		t.Error("test condition must be loop invariant")
	}
	if l.IsLoopExit(f.InvariantIf) {
		t.Error("both arms rejoin, the test must not be an exit")
	}
	// The rejoin region is the back edge.
	if got := l.BackEdge(); got.Op != ir.OpRegion {
		t.Errorf("back edge, want region got %s", got)
	}
}

func TestSynthesiseSymbolicLimit(t *testing.T) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, LimitIsParam: true, ArrayLen: 10,
	})
	if f.Limit.Op != ir.OpParam {
		t.Fatalf("limit, want param got %s", f.Limit)
	}
	l := looptree.Build(f.G).ByHead(f.Head)
	if !l.IsCounted() {
		t.Error("symbolic bound still counts")
	}
	if got := l.Limit(); got != f.Limit {
		t.Errorf("limit, want %s got %s", f.Limit, got)
	}
}
