package looptree

import (
	"fmt"

	"github.com/nickng/looppred/ir"
)

// DefaultUnswitchMax bounds how often a single loop may be unswitched.
const DefaultUnswitchMax = 3

// cloneSlack is the fixed node overhead added to every clone estimate
// (selector, projections, new predicate scaffolding).
const cloneSlack = 24

// Tree is the loop nesting forest of one graph.
type Tree struct {
	g      *ir.Graph
	loops  []*Loop
	byHead map[*ir.Node]*Loop
}

// Loop is one natural loop: a head node plus the body between head and back
// edge, data nodes anchored inside included.
type Loop struct {
	tree    *Tree
	head    *ir.Node // OpLoop
	wrapper *ir.Node // OpStripMinedLoop directly above head, or nil

	parent   *Loop
	children []*Loop

	body map[*ir.Node]bool

	unswitchMax int

	// Counted-loop shape; nil when the loop is not counted.
	iv, init, stride, limit *ir.Node
}

// Build discovers every loop in the graph and arranges them into a forest.
func Build(g *ir.Graph) *Tree {
	t := &Tree{g: g, byHead: make(map[*ir.Node]*Loop)}
	for _, n := range g.Nodes() {
		if n.Dead() || n.Op != ir.OpLoop || n.NumIn() < 2 || n.In(1) == nil {
			continue
		}
		l := &Loop{tree: t, head: n, unswitchMax: DefaultUnswitchMax}
		if entry := n.In(0); entry != nil && entry.Op == ir.OpStripMinedLoop {
			l.wrapper = entry
		}
		l.collectBody(g)
		l.detectCounted()
		t.loops = append(t.loops, l)
		t.byHead[n] = l
	}
	// Nesting: a loop is a child of the innermost loop containing its head.
	for _, l := range t.loops {
		var best *Loop
		for _, outer := range t.loops {
			if outer == l || !outer.body[l.head] {
				continue
			}
			if best == nil || len(outer.body) < len(best.body) {
				best = outer
			}
		}
		l.parent = best
		if best != nil {
			best.children = append(best.children, l)
		}
	}
	return t
}

// collectBody walks backward from the back edge to the head over control
// predecessors, then pulls in the data nodes anchored on that control.
func (l *Loop) collectBody(g *ir.Graph) {
	cfg := map[*ir.Node]bool{l.head: true}
	if l.wrapper != nil {
		cfg[l.wrapper] = true
	}
	stack := []*ir.Node{l.head.In(1)}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil || cfg[n] {
			continue
		}
		cfg[n] = true
		for i := 0; i < n.NumIn(); i++ {
			if p := n.In(i); p != nil && p.IsCFG() && !cfg[p] {
				stack = append(stack, p)
			}
		}
	}
	l.body = cfg
	for _, n := range g.Nodes() {
		if n.Dead() || n.IsCFG() {
			continue
		}
		if anchor := g.Ctrl(n); anchor != nil && cfg[anchor] {
			l.body[n] = true
		}
	}
}

// detectCounted recognizes the counted-loop shape: an induction-variable phi
// on the head whose back-edge value adds a constant stride, compared against
// a limit by the exit test.
func (l *Loop) detectCounted() {
	for _, o := range l.head.Outs() {
		if o.Op != ir.OpPhi || o.In(0) != l.head || o.NumIn() != 3 {
			continue
		}
		// Decrementing loops use an AddI with a negative stride constant.
		incr := o.In(2)
		if incr == nil || incr.Op != ir.OpAddI {
			continue
		}
		if incr.In(0) != o || incr.In(1) == nil || incr.In(1).Op != ir.OpConI {
			continue
		}
		l.iv = o
		l.init = o.In(1)
		l.stride = incr.In(1)
		// The limit is the other side of the comparison in the exit test.
		for _, s := range l.tree.g.CFGSuccs(l.head) {
			if !s.Op.IsIf() || s.NumIn() < 2 || s.In(1) == nil || s.In(1).Op != ir.OpBool {
				continue
			}
			cmp := s.In(1).In(0)
			if cmp == nil || (cmp.Op != ir.OpCmpI && cmp.Op != ir.OpCmpU) {
				continue
			}
			switch {
			case cmp.In(0) == o:
				l.limit = cmp.In(1)
			case cmp.In(1) == o:
				l.limit = cmp.In(0)
			}
		}
		return
	}
}

// Graph returns the owning graph.
func (t *Tree) Graph() *ir.Graph { return t.g }

// Loops returns every loop in the forest.
func (t *Tree) Loops() []*Loop { return t.loops }

// ByHead returns the loop with the given head node, or nil.
func (t *Tree) ByHead(head *ir.Node) *Loop { return t.byHead[head] }

// Walk applies fn to every loop, outermost first.
func (t *Tree) Walk(fn func(*Loop)) {
	var walk func(l *Loop)
	walk = func(l *Loop) {
		fn(l)
		for _, c := range l.children {
			walk(c)
		}
	}
	for _, l := range t.loops {
		if l.parent == nil {
			walk(l)
		}
	}
}

// Head returns the loop head node.
func (l *Loop) Head() *ir.Node { return l.head }

// StripMinedWrapper returns the outer strip-mined loop node, or nil.
func (l *Loop) StripMinedWrapper() *ir.Node { return l.wrapper }

// entryNode is the node whose first input is the loop entry control: the
// strip-mined wrapper when present, the head otherwise.
func (l *Loop) entryNode() *ir.Node {
	if l.wrapper != nil {
		return l.wrapper
	}
	return l.head
}

// Entry returns the control entering the loop from outside, above any
// strip-mined wrapper.
func (l *Loop) Entry() *ir.Node { return l.entryNode().In(0) }

// BackEdge returns the control node feeding the loop's back edge.
func (l *Loop) BackEdge() *ir.Node { return l.head.In(1) }

// Parent returns the enclosing loop, or nil for a top-level loop.
func (l *Loop) Parent() *Loop { return l.parent }

// Children returns the directly nested loops.
func (l *Loop) Children() []*Loop { return l.children }

// Contains reports whether n belongs to the loop body.
func (l *Loop) Contains(n *ir.Node) bool { return l.body[n] }

// Body returns the loop membership set. The caller must not mutate it.
func (l *Loop) Body() map[*ir.Node]bool { return l.body }

// IsInvariant reports whether n's value does not change across iterations:
// neither the node nor its control anchor is part of the body.
func (l *Loop) IsInvariant(n *ir.Node) bool {
	if l.body[n] {
		return false
	}
	anchor := l.tree.g.Ctrl(n)
	return anchor == nil || !l.body[anchor]
}

// IsLoopExit reports whether one of the branch's projections leaves the loop.
func (l *Loop) IsLoopExit(iff *ir.Node) bool {
	for _, proj := range iff.Outs() {
		if !proj.Op.IsProj() {
			continue
		}
		if !l.body[proj] {
			return true
		}
		for _, s := range l.tree.g.CFGSuccs(proj) {
			if !l.body[s] {
				return true
			}
		}
	}
	return false
}

// EstCloneSize estimates the node cost of cloning the body factor times.
func (l *Loop) EstCloneSize(factor int) int {
	return len(l.body)*factor + cloneSlack
}

// UnswitchCount returns how often this loop has been unswitched. The count
// lives on the head node so it survives tree rebuilds and is inherited by
// cloned loops.
func (l *Loop) UnswitchCount() int { return l.head.Unswitch }

// SetUnswitchCount records the unswitch count on the head node.
func (l *Loop) SetUnswitchCount(c int) { l.head.Unswitch = c }

// UnswitchMax returns the per-loop unswitch limit.
func (l *Loop) UnswitchMax() int { return l.unswitchMax }

// SetCounted records the counted-loop shape of this loop.
func (l *Loop) SetCounted(iv, init, stride, limit *ir.Node) {
	l.iv, l.init, l.stride, l.limit = iv, init, stride, limit
}

// IsCounted reports whether the counted-loop shape is known.
func (l *Loop) IsCounted() bool { return l.iv != nil }

// IV returns the induction-variable phi of a counted loop.
func (l *Loop) IV() *ir.Node { return l.iv }

// Init returns the initial induction-variable value node.
func (l *Loop) Init() *ir.Node { return l.init }

// Stride returns the stride constant node.
func (l *Loop) Stride() *ir.Node { return l.stride }

// StrideCon returns the stride constant value.
func (l *Loop) StrideCon() int64 {
	ir.Assert(l.stride != nil && l.stride.Op == ir.OpConI, "stride must be a constant")
	return l.stride.Val
}

// Limit returns the loop limit node.
func (l *Loop) Limit() *ir.Node { return l.limit }

func (l *Loop) String() string {
	return fmt.Sprintf("loop@%d{%d nodes}", l.head.ID(), len(l.body))
}
