package ir

import (
	"fmt"

	"github.com/nickng/looppred/deopt"
)

type nodeFlags uint8

const (
	flagUseless nodeFlags = 1 << iota
	flagDead
	flagZeroTripGuard
	flagOverflow
)

// Node is a single operation in the graph. Nodes are created through a Graph
// and identified by their arena index.
type Node struct {
	id int
	Op Op

	in   []*Node
	outs []*Node

	// Payload, meaningful only for some ops.
	Val      int64        // ConI value, Param ordinal.
	Test     BoolTest     // Bool comparison.
	Reason   deopt.Reason // ParsePredicate and TrapCall tag.
	PredOp   Op           // TemplateAssertionPred: branch op for initialization.
	Unswitch int          // Loop: times this loop has been unswitched.

	flags nodeFlags
}

// ID returns the arena index of the node.
func (n *Node) ID() int { return n.id }

// NumIn returns the number of inputs.
func (n *Node) NumIn() int { return len(n.in) }

// In returns input i, which may be nil.
func (n *Node) In(i int) *Node { return n.in[i] }

// Control returns the control input of a control node (input 0). For a loop
// head this is the entry control.
func (n *Node) Control() *Node {
	if len(n.in) == 0 {
		return nil
	}
	return n.in[0]
}

// Outs returns the use list. The returned slice is owned by the graph; do not
// mutate while iterating uses that are being rewired.
func (n *Node) Outs() []*Node { return n.outs }

// OutCount returns the number of uses.
func (n *Node) OutCount() int { return len(n.outs) }

// UniqueOut returns the single use of the node, or nil if the node has zero
// or more than one use.
func (n *Node) UniqueOut() *Node {
	if len(n.outs) == 1 {
		return n.outs[0]
	}
	return nil
}

// OutWithOp returns the first use with the given op, or nil.
func (n *Node) OutWithOp(op Op) *Node {
	for _, o := range n.outs {
		if o.Op == op {
			return o
		}
	}
	return nil
}

// OtherProj returns the sibling projection of an IfTrue or IfFalse node.
func (n *Node) OtherProj() *Node {
	Assert(n.Op.IsProj(), "OtherProj on non-projection")
	want := OpIfFalse
	if n.Op == OpIfFalse {
		want = OpIfTrue
	}
	return n.Control().OutWithOp(want)
}

// ProjOut returns the true (t) or false (!t) projection of a branch node.
func (n *Node) ProjOut(t bool) *Node {
	if t {
		return n.OutWithOp(OpIfTrue)
	}
	return n.OutWithOp(OpIfFalse)
}

// IsCFG reports whether the node is a control-flow node.
func (n *Node) IsCFG() bool { return n.Op.IsCFG() }

// MarkUseless flags the node for removal by the simplification worklist.
func (n *Node) MarkUseless() { n.flags |= flagUseless }

// MarkUseful clears the useless flag.
func (n *Node) MarkUseful() { n.flags &^= flagUseless }

// Useless reports whether the node is flagged for removal.
func (n *Node) Useless() bool { return n.flags&flagUseless != 0 }

// Dead reports whether the node has been removed from the graph.
func (n *Node) Dead() bool { return n.flags&flagDead != 0 }

// MarkZeroTripGuard tags an If as a zero-trip guard so it is never taken for
// a predicate.
func (n *Node) MarkZeroTripGuard() { n.flags |= flagZeroTripGuard }

// ZeroTripGuard reports whether the If is a zero-trip guard.
func (n *Node) ZeroTripGuard() bool { return n.flags&flagZeroTripGuard != 0 }

// MarkOverflow tags a template whose formula could overflow 32-bit
// arithmetic. The flag forces a plain branch op on initialization.
func (n *Node) MarkOverflow() { n.flags |= flagOverflow }

// Overflow reports whether the overflow flag is set.
func (n *Node) Overflow() bool { return n.flags&flagOverflow != 0 }

func (n *Node) String() string {
	switch n.Op {
	case OpConI:
		return fmt.Sprintf("%s#%d(%d)", n.Op, n.id, n.Val)
	case OpBool:
		return fmt.Sprintf("%s#%d(%s)", n.Op, n.id, n.Test)
	case OpParsePredicate, OpTrapCall:
		return fmt.Sprintf("%s#%d(%s)", n.Op, n.id, n.Reason)
	}
	return fmt.Sprintf("%s#%d", n.Op, n.id)
}

// controlIns returns the indices of n's inputs that are control predecessors.
func (n *Node) controlIns() []int {
	switch n.Op {
	case OpRoot:
		return nil
	case OpLoop, OpStripMinedLoop:
		// Entry and back edge.
		if len(n.in) > 1 {
			return []int{0, 1}
		}
		return []int{0}
	case OpRegion:
		idx := make([]int, len(n.in))
		for i := range n.in {
			idx[i] = i
		}
		return idx
	default:
		if len(n.in) > 0 {
			return []int{0}
		}
		return nil
	}
}
