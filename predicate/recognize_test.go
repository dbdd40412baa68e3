package predicate_test

import (
	"testing"

	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
	"github.com/nickng/looppred/predicate"
	"github.com/nickng/looppred/ssaloop"
)

func counted() (*ssaloop.Fixture, *looptree.Loop) {
	f := ssaloop.Synthesise(ssaloop.Params{
		Init: 0, Stride: 1, Limit: 100, ArrayLen: 100,
		ParsePredicates: true,
	})
	return f, looptree.Build(f.G).ByHead(f.Head)
}

func TestRecognizeParsePredicates(t *testing.T) {
	f, l := counted()
	g := f.G

	cur := l.Entry()
	for _, expect := range []deopt.Reason{deopt.LoopLimitCheck, deopt.ProfiledLoop, deopt.Loop} {
		if kind := predicate.Recognize(cur); kind != predicate.KindParse {
			t.Fatalf("chain position should be a parse predicate, got %s", kind)
		}
		pp := predicate.AsParsePredicate(cur)
		if got := pp.Reason(); got != expect {
			t.Errorf("parse predicate reason, want %s got %s", expect, got)
		}
		cur = pp.Entry()
	}
	if kind := predicate.Recognize(cur); kind != predicate.KindNone {
		t.Errorf("above the chain, want no predicate, got %s", kind)
	}
	if got := predicate.EntryAbovePredicates(g, l.Entry()); got != f.Entry {
		t.Errorf("chain entry, want %s got %s", f.Entry, got)
	}
}

func TestRecognizeRuntimePredicate(t *testing.T) {
	f, l := counted()
	g := f.G

	// Hoist a guard above the whole chain: its failing path traps with the
	// reason of the block it extends.
	p := predicate.ForLoop(g, l.Entry())
	top := p.BlockFor(deopt.Loop).ParsePredicate()
	cmp := g.NewNode(ir.OpCmpU, f.Limit, f.Range)
	g.RegisterNode(cmp, f.Entry)
	bol := g.NewBool(ir.TestLt, cmp, f.Entry)
	guard := g.NewNode(ir.OpIf, top.Entry(), bol)
	succ := g.NewNode(ir.OpIfTrue, guard)
	fail := g.NewNode(ir.OpIfFalse, guard)
	g.MakeTrap(fail, deopt.Loop)
	g.ReplaceInput(top.Head(), 0, succ)

	if kind := predicate.Recognize(succ); kind != predicate.KindRuntime {
		t.Fatalf("hoisted guard projection, want runtime predicate, got %s", kind)
	}
	rp := predicate.AsRuntimePredicate(succ)
	if got := rp.Reason(); got != deopt.Loop {
		t.Errorf("runtime predicate reason, want %s got %s", deopt.Loop, got)
	}

	p = predicate.ForLoop(g, l.Entry())
	loopBlock := p.BlockFor(deopt.Loop)
	if expect, got := 1, len(loopBlock.RuntimePredicates()); expect != got {
		t.Fatalf("runtime predicates in loop block, want %d got %d", expect, got)
	}
	if !loopBlock.HasParsePredicate() {
		t.Error("loop block must keep its placeholder below the guard")
	}
	if got := p.Entry(); got != f.Entry {
		t.Errorf("chain entry, want %s got %s", f.Entry, got)
	}
}

func TestRecognizeTemplateAndInitialized(t *testing.T) {
	f, l := counted()
	g := f.G

	ap := predicate.NewAssertionPredicates(g, l)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	cur := l.Entry()
	if kind := predicate.Recognize(cur); kind != predicate.KindTemplateAssertion {
		t.Fatalf("chain bottom, want template, got %s", kind)
	}
	tmpl := predicate.AsTemplate(g, cur)
	cur = tmpl.Entry()
	for i := 0; i < 2; i++ {
		if kind := predicate.Recognize(cur); kind != predicate.KindInitializedAssertion {
			t.Fatalf("position %d above template, want initialized assertion, got %s", i, kind)
		}
		ip := predicate.AsInitialized(cur)
		if !ir.HasHalt(ip.Tail().OtherProj()) {
			t.Error("failing path of an initialized assertion must halt")
		}
		if op := ip.Head().In(1).Op; op != ir.OpOpaqueAssertionPred {
			t.Errorf("initialized assertion condition, want opaque wrapper, got %s", op)
		}
		cur = ip.Entry()
	}
	if kind := predicate.Recognize(cur); kind != predicate.KindParse {
		t.Errorf("above the assertion block, want parse predicate, got %s", kind)
	}
}

func TestBlocksParseFullChain(t *testing.T) {
	f, l := counted()
	g := f.G
	ap := predicate.NewAssertionPredicates(g, l)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	p := predicate.ForLoop(g, l.Entry())
	if !p.HasAny() {
		t.Fatal("chain must hold predicates")
	}
	if !p.HasAnyParsePredicate() {
		t.Fatal("placeholders must be found")
	}
	ab := p.AssertionBlock()
	if expect, got := 1, len(ab.Templates()); expect != got {
		t.Errorf("templates, want %d got %d", expect, got)
	}
	if expect, got := 2, len(ab.Initialized()); expect != got {
		t.Errorf("initialized assertions, want %d got %d", expect, got)
	}
	for _, r := range deopt.Reasons() {
		b := p.BlockFor(r)
		if !b.HasParsePredicate() {
			t.Errorf("%s block missing its placeholder", r)
		}
		if got := b.ParsePredicate().Reason(); got != r {
			t.Errorf("placeholder reason, want %s got %s", r, got)
		}
	}
	if got := p.Entry(); got != f.Entry {
		t.Errorf("chain entry, want %s got %s", f.Entry, got)
	}
}

func TestChainLinesTopDown(t *testing.T) {
	f, l := counted()
	g := f.G
	ap := predicate.NewAssertionPredicates(g, l)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	lines := predicate.ChainLines(g, l.Entry())
	if expect, got := 6, len(lines); expect != got {
		t.Fatalf("chain length, want %d got %d: %v", expect, got, lines)
	}
}
