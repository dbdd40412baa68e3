package ir

import "github.com/nickng/looppred/deopt"

// Bailout plumbing. The failing projection of a hoisted guard ends in a trap
// call tagged with a deopt reason; the failing projection of an assertion
// predicate ends in a Halt because that path must be unreachable.

// MakeTrap hangs a trap call with the given reason off a failing branch
// projection. The call is kept alive as a root input until its path dies.
func (g *Graph) MakeTrap(proj *Node, reason deopt.Reason) *Node {
	call := g.NewNode(OpTrapCall, proj)
	call.Reason = reason
	g.AddInput(g.root, call)
	return call
}

// MakeHalt hangs a Halt off a failing branch projection. Reaching it aborts
// the program; assertion predicates use it for their provably dead path.
func (g *Graph) MakeHalt(proj *Node) *Node {
	halt := g.NewNode(OpHalt, proj)
	g.AddInput(g.root, halt)
	return halt
}

// TrapReason returns the bailout reason of the trap call that is the sole
// user of proj, or deopt.None if proj does not end in a trap.
func TrapReason(proj *Node) deopt.Reason {
	if proj == nil {
		return deopt.None
	}
	for _, o := range proj.Outs() {
		if o.Op == OpTrapCall {
			return o.Reason
		}
		if o.IsCFG() {
			// Some other control continues here; not a bailout path.
			return deopt.None
		}
	}
	return deopt.None
}

// HasHalt reports whether proj's only control user is a Halt node.
func HasHalt(proj *Node) bool {
	if proj == nil {
		return false
	}
	for _, o := range proj.Outs() {
		if o.Op == OpHalt {
			return true
		}
		if o.IsCFG() {
			return false
		}
	}
	return false
}
