package predicate

import (
	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/ir"
)

// Kind classifies the predicate found at a chain position.
type Kind int

const (
	KindNone Kind = iota
	KindParse
	KindRuntime
	KindTemplateAssertion
	KindInitializedAssertion
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindParse:
		return "parse"
	case KindRuntime:
		return "runtime"
	case KindTemplateAssertion:
		return "template assertion"
	case KindInitializedAssertion:
		return "initialized assertion"
	}
	return "unknown"
}

// Recognize classifies n, a node reached while walking up a predicate chain.
//
// Classification is purely structural: n is the node a predicate leaves on
// the chain, the success projection for branch-shaped predicates and the
// template node itself for templates. Pattern checks are ordered from most
// to least specific since a runtime predicate's shape subsumes nothing but
// is itself the loosest match.
func Recognize(n *ir.Node) Kind {
	if n == nil {
		return KindNone
	}
	if n.Op == ir.OpTemplateAssertionPred {
		return KindTemplateAssertion
	}
	if n.Op == ir.OpIfTrue {
		if iff := n.Control(); iff != nil && iff.Op == ir.OpParsePredicate {
			return KindParse
		}
	}
	if isInitializedProj(n) {
		return KindInitializedAssertion
	}
	if isRuntimeProj(n, deopt.None) {
		return KindRuntime
	}
	return KindNone
}

// isInitializedProj reports whether n is the success projection of an
// initialized assertion predicate: an IfTrue whose branch tests an
// OpaqueAssertionPred (or a constant, once folding has started) and whose
// sibling projection leads to a Halt.
func isInitializedProj(n *ir.Node) bool {
	if n.Op != ir.OpIfTrue {
		return false
	}
	iff := n.Control()
	if iff == nil || !iff.Op.IsIf() || iff.NumIn() < 2 {
		return false
	}
	cond := iff.In(1)
	if cond == nil || (cond.Op != ir.OpOpaqueAssertionPred && cond.Op != ir.OpConI) {
		return false
	}
	other := n.OtherProj()
	return other != nil && ir.HasHalt(other)
}

// isRuntimeProj reports whether n is the success projection of a runtime
// predicate. With reason deopt.None any predicate reason is accepted,
// otherwise the trap on the failing projection must carry exactly reason.
func isRuntimeProj(n *ir.Node, reason deopt.Reason) bool {
	if n == nil || !n.Op.IsProj() {
		return false
	}
	iff := n.Control()
	if iff == nil || !iff.Op.IsIf() || iff.ZeroTripGuard() {
		return false
	}
	other := n.OtherProj()
	if other == nil {
		// Half-folded branch: the failing projection is already gone but the
		// node still sits on the chain until the worklist reaches it.
		return iff.NumIn() > 1 && iff.In(1) != nil && iff.In(1).Op == ir.OpConI
	}
	r := ir.TrapReason(other)
	if reason == deopt.None {
		return r.IsPredicateReason()
	}
	return r == reason
}
