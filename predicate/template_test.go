package predicate_test

import (
	"math"
	"testing"

	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
	"github.com/nickng/looppred/predicate"
	"github.com/nickng/looppred/ssaloop"
)

func TestTemplateFormulas(t *testing.T) {
	f, l := counted()
	g := f.G

	fac := predicate.NewTemplateFactory(g, l)
	tmpl, overflow := fac.Create(l.Entry(), 1, nil, f.Range, ir.OpRangeCheck)
	if overflow {
		t.Fatal("i < 100 over a 100 element array must not overflow")
	}
	if got := tmpl.Node().PredOp; got != ir.OpRangeCheck {
		t.Errorf("template branch op, want %s got %s", ir.OpRangeCheck, got)
	}

	// Initial value: Bool(u<, CmpU(OpaqueLoopInit(init), range)).
	initBool := tmpl.InitBool()
	if initBool.Op != ir.OpBool || initBool.Test != ir.TestLt {
		t.Fatalf("initial value formula root, got %s", initBool)
	}
	cmp := initBool.In(0)
	if cmp.Op != ir.OpCmpU {
		t.Fatalf("initial value comparison, want CmpU got %s", cmp.Op)
	}
	opq := cmp.In(0)
	if opq.Op != ir.OpOpaqueLoopInit {
		t.Fatalf("initial value operand, want init placeholder got %s", opq.Op)
	}
	if opq.In(0) != l.Init() {
		t.Error("init placeholder must wrap the loop's initial value")
	}
	if cmp.In(1) != f.Range {
		t.Error("initial value formula must compare against the range")
	}

	// Last value: the placeholder chain init + (stride' - stride).
	lastCmp := tmpl.LastBool().In(0)
	cast := lastCmp.In(0)
	if cast.Op != ir.OpCastII {
		t.Fatalf("last value must be pinned by a cast, got %s", cast.Op)
	}
	add := cast.In(0)
	if add.Op != ir.OpAddI || add.In(0) != opq {
		t.Error("last value must reuse the shared init placeholder")
	}
	sub := add.In(1)
	if sub.Op != ir.OpSubI || sub.In(0).Op != ir.OpOpaqueLoopStride {
		t.Error("last value must subtract the stride from its placeholder")
	}
	if sub.In(0).In(0) != l.Stride() {
		t.Error("stride placeholder must wrap the loop's stride")
	}
}

func TestTemplateScaleAndOffset(t *testing.T) {
	f, l := counted()
	g := f.G

	offset := g.NewConI(4)
	fac := predicate.NewTemplateFactory(g, l)
	tmpl, overflow := fac.Create(l.Entry(), 8, offset, f.Range, ir.OpRangeCheck)
	if overflow {
		t.Fatal("8*i + 4 over i < 100 must not overflow")
	}
	cmp := tmpl.InitBool().In(0)
	add := cmp.In(0)
	if add.Op != ir.OpAddI || add.In(1) != offset {
		t.Fatalf("offset not applied, got %s", add)
	}
	mul := add.In(0)
	if mul.Op != ir.OpMulI || mul.In(0).Val != 8 {
		t.Fatalf("scale not applied, got %s", mul)
	}
}

func TestTemplateOverflow(t *testing.T) {
	tests := []struct {
		name     string
		init     int64
		stride   int64
		limit    int64
		scale    int64
		offset   int64 // applied only when non-zero
		overflow bool
	}{
		{name: "small positive", init: 0, stride: 1, limit: 100, scale: 1},
		{name: "scale pushes past int max", init: 0, stride: 1, limit: 1 << 20, scale: 1 << 12, overflow: true},
		{name: "offset pushes past int max", init: 0, stride: 1, limit: 100, scale: 1, offset: math.MaxInt32, overflow: true},
		{name: "at int max boundary", init: 0, stride: 1, limit: math.MaxInt32 - 1, scale: 1},
		{name: "negative scale", init: 0, stride: 1, limit: 100, scale: -1},
		{name: "negative scale past int min", init: 0, stride: 1, limit: 1 << 20, scale: -(1 << 12), overflow: true},
		{name: "down count", init: 100, stride: -1, limit: 0, scale: 1},
	}
	for _, test := range tests {
		f := ssaloop.Synthesise(ssaloop.Params{
			Init: test.init, Stride: test.stride, Limit: test.limit,
			ArrayLen: 100,
		})
		l := looptree.Build(f.G).ByHead(f.Head)
		var offset *ir.Node
		if test.offset != 0 {
			offset = f.G.NewConI(test.offset)
		}
		fac := predicate.NewTemplateFactory(f.G, l)
		tmpl, overflow := fac.Create(l.Entry(), test.scale, offset, f.Range, ir.OpRangeCheck)
		if overflow != test.overflow {
			t.Errorf("%s: overflow, want %v got %v", test.name, test.overflow, overflow)
			continue
		}
		if test.overflow {
			if got := tmpl.Node().PredOp; got != ir.OpIf {
				t.Errorf("%s: overflowing template must downgrade to a plain branch, got %s", test.name, got)
			}
			if !tmpl.Node().Overflow() {
				t.Errorf("%s: overflow must be flagged on the node", test.name)
			}
		} else if got := tmpl.Node().PredOp; got != ir.OpRangeCheck {
			t.Errorf("%s: non-overflowing template keeps its branch op, got %s", test.name, got)
		}
	}
}

func TestTemplateOverflowSymbolicOffset(t *testing.T) {
	f, l := counted()
	fac := predicate.NewTemplateFactory(f.G, l)
	_, overflow := fac.Create(l.Entry(), 1, f.Base, f.Range, ir.OpRangeCheck)
	if !overflow {
		t.Error("a symbolic offset cannot be proven in range")
	}
}

func TestInitializeFoldsPlaceholders(t *testing.T) {
	f, l := counted()
	g := f.G

	ap := predicate.NewAssertionPredicates(g, l)
	ap.CreateAtLoop(1, nil, f.Range, ir.OpRangeCheck)

	p := predicate.ForLoop(g, l.Entry())
	for _, ip := range p.AssertionBlock().Initialized() {
		b := ip.Head().In(1).In(0) // strip the opaque wrapper
		var walk func(n *ir.Node) bool
		walk = func(n *ir.Node) bool {
			if n == nil {
				return false
			}
			if n.Op == ir.OpOpaqueLoopInit || n.Op == ir.OpOpaqueLoopStride {
				return true
			}
			for i := 0; i < n.NumIn(); i++ {
				if walk(n.In(i)) {
					return true
				}
			}
			return false
		}
		if walk(b) {
			t.Errorf("initialized formula %s still holds loop placeholders", b)
		}
	}
}

// evalInt interprets a folded assertion formula operand with 32-bit
// arithmetic.
func evalInt(t *testing.T, n *ir.Node) int64 {
	t.Helper()
	switch n.Op {
	case ir.OpConI:
		return n.Val
	case ir.OpAddI:
		return int64(int32(evalInt(t, n.In(0)) + evalInt(t, n.In(1))))
	case ir.OpSubI:
		return int64(int32(evalInt(t, n.In(0)) - evalInt(t, n.In(1))))
	case ir.OpMulI:
		return int64(int32(evalInt(t, n.In(0)) * evalInt(t, n.In(1))))
	case ir.OpCastII, ir.OpConvI2L,
		ir.OpOpaqueLoopInit, ir.OpOpaqueLoopStride:
		return evalInt(t, n.In(0))
	}
	t.Fatalf("cannot evaluate %s", n)
	return 0
}

func evalBool(t *testing.T, b *ir.Node) bool {
	t.Helper()
	if b.Op != ir.OpBool {
		t.Fatalf("formula root must be a bool, got %s", b)
	}
	cmp := b.In(0)
	x, y := evalInt(t, cmp.In(0)), evalInt(t, cmp.In(1))
	switch cmp.Op {
	case ir.OpCmpU:
		x, y = int64(uint32(int32(x))), int64(uint32(int32(y)))
	case ir.OpCmpI:
	default:
		t.Fatalf("formula comparison, got %s", cmp.Op)
	}
	switch {
	case x < y:
		return b.Test.Eval(-1)
	case x > y:
		return b.Test.Eval(1)
	}
	return b.Test.Eval(0)
}

// initAndLastChecks returns the formulas of the two initialized assertions
// above the loop, first the initial value check, then the last value check.
// The last value check is the one computing its value through the pinning
// cast.
func initAndLastChecks(t *testing.T, g *ir.Graph, loopEntry *ir.Node) (initBool, lastBool *ir.Node) {
	t.Helper()
	for _, ip := range predicate.ForLoop(g, loopEntry).AssertionBlock().Initialized() {
		b := ip.Head().In(1).In(0) // strip the opaque wrapper
		if b.In(0).In(0).Op == ir.OpCastII {
			lastBool = b
		} else {
			initBool = b
		}
	}
	if initBool == nil || lastBool == nil {
		t.Fatal("expected one initial and one last value check")
	}
	return initBool, lastBool
}

func TestInitializedChecksMatchLoopBounds(t *testing.T) {
	lengths := []int64{0, 1, 2, 100, 10000}
	inits := []int64{-10000, -3, -1, 0, 1, 57, 9999, 10000}
	strides := []int64{-10000, -7, -2, -1, 1, 2, 3, 9999, 10000}
	for _, length := range lengths {
		for _, init := range inits {
			for _, stride := range strides {
				// Three iterations: init, init+stride, init+2*stride.
				f := ssaloop.Synthesise(ssaloop.Params{
					Init: init, Stride: stride, Limit: init + 3*stride,
					ArrayLen: 100,
				})
				g := f.G
				l := looptree.Build(g).ByHead(f.Head)
				rng := g.NewConI(length)
				inBounds := func(v int64) bool { return 0 <= v && v < length }

				ap := predicate.NewAssertionPredicates(g, l)
				_, overflow := ap.CreateAtLoop(1, nil, rng, ir.OpRangeCheck)
				if overflow {
					t.Fatalf("len=%d init=%d stride=%d: formula must not overflow", length, init, stride)
				}

				// Freshly instantiated, both checks cover the initial value.
				ib, lb := initAndLastChecks(t, g, l.Entry())
				if expect, got := inBounds(init), evalBool(t, ib); expect != got {
					t.Errorf("len=%d init=%d stride=%d: initial value check, want %v got %v", length, init, stride, expect, got)
				}
				if expect, got := inBounds(init), evalBool(t, lb); expect != got {
					t.Errorf("len=%d init=%d stride=%d: last value check, want %v got %v", length, init, stride, expect, got)
				}

				// Unrolling doubles the stride; the re-instantiated last value
				// check now covers the second iteration value.
				ap.UpdateStride(2 * stride)
				g.Worklist.Simplify()
				ib, lb = initAndLastChecks(t, g, l.Entry())
				if expect, got := inBounds(init), evalBool(t, ib); expect != got {
					t.Errorf("len=%d init=%d stride=%d: initial value check after stride update, want %v got %v", length, init, stride, expect, got)
				}
				if expect, got := inBounds(init+stride), evalBool(t, lb); expect != got {
					t.Errorf("len=%d init=%d stride=%d: last value check after stride update, want %v got %v", length, init, stride, expect, got)
				}
			}
		}
	}
}
