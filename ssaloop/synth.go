package ssaloop

import (
	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/predicate"
	"golang.org/x/tools/go/ssa"
)

// Params describes the counted loop to materialize as a graph.
type Params struct {
	Init   int64
	Stride int64
	Limit  int64
	// LimitIsParam leaves the bound symbolic (a function parameter) instead
	// of a constant.
	LimitIsParam bool
	// ArrayLen is the length of the array indexed in the body, 0 for a
	// symbolic length.
	ArrayLen int64
	// InvariantTest adds a loop-invariant, non-exiting test around the body
	// store, the shape unswitching looks for.
	InvariantTest bool
	// ParsePredicates places the standard placeholder chain above the loop.
	ParsePredicates bool
	// StripMined wraps the loop in an outer strip mined loop node.
	StripMined bool
}

// FromCounted translates a detected SSA loop into synthesis parameters.
func FromCounted(cl CountedLoop) Params {
	p := Params{Init: cl.Init, Stride: cl.Step, ParsePredicates: true}
	if limit, ok := cl.Limit.(*ssa.Const); ok {
		if v, err := getIntConst(limit); err == nil {
			p.Limit = v
			return p
		}
	}
	p.LimitIsParam = true
	return p
}

// Fixture is a synthesized loop graph with its interesting nodes exposed.
type Fixture struct {
	G     *ir.Graph
	Entry *ir.Node // start region below root

	Head    *ir.Node // loop head
	Wrapper *ir.Node // strip mined wrapper, nil unless requested
	IV      *ir.Node // induction phi
	Init    *ir.Node
	Stride  *ir.Node
	Limit   *ir.Node
	Range   *ir.Node // array length the body store indexes into
	Base    *ir.Node // array base parameter

	ExitProj *ir.Node // projection leaving the loop
	After    *ir.Node // region following the loop

	InvariantIf   *ir.Node // the invariant test, nil unless requested
	InvariantBool *ir.Node
	BodyStore     *ir.Node // the store guarded by the invariant test
}

// LoopEntry is the control input above the loop (and below any predicates).
func (f *Fixture) LoopEntry() *ir.Node {
	if f.Wrapper != nil {
		return f.Wrapper.In(0)
	}
	return f.Head.In(0)
}

// Synthesise builds a fresh graph holding one counted loop per p.
//
// The shape mirrors what a front end would emit: an entry region, the
// placeholder predicates when requested, the loop head with its induction
// phi and exit test, a body store indexing an array, and a region joining
// control after the exit.
func Synthesise(p Params) *Fixture {
	g := ir.New()
	f := &Fixture{G: g}

	f.Entry = g.NewNode(ir.OpRegion, g.Root())
	f.Init = g.NewConI(p.Init)
	f.Stride = g.NewConI(p.Stride)
	if p.LimitIsParam {
		f.Limit = newParam(g, 0)
	} else {
		f.Limit = g.NewConI(p.Limit)
	}
	if p.ArrayLen > 0 {
		f.Range = g.NewConI(p.ArrayLen)
	} else {
		f.Range = newParam(g, 1)
	}
	f.Base = newParam(g, 2)

	entry := f.Entry
	if p.StripMined {
		f.Wrapper = g.NewNode(ir.OpStripMinedLoop, entry)
		entry = f.Wrapper
	}
	f.Head = g.NewNode(ir.OpLoop, entry, nil)

	f.IV = g.NewNode(ir.OpPhi, f.Head, f.Init, nil)
	g.RegisterNode(f.IV, f.Head)

	// Exit test: keep looping while iv < limit (or > for a down count).
	test := ir.TestLt
	if p.Stride < 0 {
		test = ir.TestGt
	}
	exitCmp := g.NewNode(ir.OpCmpI, f.IV, f.Limit)
	g.RegisterNode(exitCmp, f.Head)
	exitBool := g.NewBool(test, exitCmp, f.Head)
	exitIf := g.NewNode(ir.OpIf, f.Head, exitBool)
	stay := g.NewNode(ir.OpIfTrue, exitIf)
	f.ExitProj = g.NewNode(ir.OpIfFalse, exitIf)

	backCtrl := stay
	if p.InvariantTest {
		// The test compares two values defined before the loop, so it is
		// invariant, and both paths rejoin inside the body, so it never
		// exits.
		invCmp := g.NewNode(ir.OpCmpI, f.Limit, f.Range)
		g.RegisterNode(invCmp, f.Entry)
		f.InvariantBool = g.NewBool(ir.TestLe, invCmp, f.Entry)
		f.InvariantIf = g.NewNode(ir.OpIf, stay, f.InvariantBool)
		tProj := g.NewNode(ir.OpIfTrue, f.InvariantIf)
		fProj := g.NewNode(ir.OpIfFalse, f.InvariantIf)
		f.BodyStore = g.NewNode(ir.OpStore, f.Base, f.IV)
		g.RegisterNode(f.BodyStore, tProj)
		backCtrl = g.NewNode(ir.OpRegion, tProj, fProj)
	} else {
		f.BodyStore = g.NewNode(ir.OpStore, f.Base, f.IV)
		g.RegisterNode(f.BodyStore, stay)
	}

	incr := g.NewNode(ir.OpAddI, f.IV, f.Stride)
	g.RegisterNode(incr, backCtrl)
	g.ReplaceInput(f.IV, 2, incr)
	g.ReplaceInput(f.Head, 1, backCtrl)

	f.After = g.NewNode(ir.OpRegion, f.ExitProj)

	if p.ParsePredicates {
		anchor := f.Head
		if f.Wrapper != nil {
			anchor = f.Wrapper
		}
		chain := predicate.NewChain(g, anchor)
		chain.InsertNew(predicate.MakeParsePredicate(g, chain.Entry(), deopt.LoopLimitCheck))
		chain.InsertNew(predicate.MakeParsePredicate(g, chain.Entry(), deopt.ProfiledLoop))
		chain.InsertNew(predicate.MakeParsePredicate(g, chain.Entry(), deopt.Loop))
	}

	g.RecomputeDomDepth()
	return f
}

func newParam(g *ir.Graph, ordinal int64) *ir.Node {
	p := g.NewNode(ir.OpParam)
	p.Val = ordinal
	g.RegisterNode(p, g.Root())
	return p
}
