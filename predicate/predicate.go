package predicate

import (
	"fmt"

	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/ir"
)

// Predicate is a typed view over the nodes of one predicate on a chain.
//
// Head is the topmost node of the predicate (the branch node, or the
// template node itself), Tail the bottommost (the success projection, or
// again the template node), and Entry the control input above the predicate.
type Predicate interface {
	Entry() *ir.Node
	Head() *ir.Node
	Tail() *ir.Node
}

// ParsePredicate wraps a parse predicate placeholder and its success
// projection.
type ParsePredicate struct {
	node *ir.Node // OpParsePredicate
	succ *ir.Node // its IfTrue
}

// AsParsePredicate builds the view for a success projection already
// classified as KindParse.
func AsParsePredicate(proj *ir.Node) ParsePredicate {
	ir.Assert(Recognize(proj) == KindParse, "not a parse predicate projection")
	return ParsePredicate{node: proj.Control(), succ: proj}
}

func (p ParsePredicate) Entry() *ir.Node      { return p.node.In(0) }
func (p ParsePredicate) Head() *ir.Node       { return p.node }
func (p ParsePredicate) Tail() *ir.Node       { return p.succ }
func (p ParsePredicate) Reason() deopt.Reason { return p.node.Reason }

// Kill marks the placeholder useless and hands it to the worklist, which
// splices it out of the chain.
func (p ParsePredicate) Kill(g *ir.Graph) {
	p.node.MarkUseless()
	g.Worklist.Push(p.node)
}

func (p ParsePredicate) String() string {
	return fmt.Sprintf("parse predicate %s (%s)", p.node, p.Reason())
}

// MakeParsePredicate creates a new parse predicate for reason with entry as
// control input and returns its view. The failing projection traps with the
// same reason so the placeholder survives classification.
func MakeParsePredicate(g *ir.Graph, entry *ir.Node, reason deopt.Reason) ParsePredicate {
	node := g.NewNode(ir.OpParsePredicate, entry, g.NewConI(1))
	node.Reason = reason
	succ := g.NewNode(ir.OpIfTrue, node)
	fail := g.NewNode(ir.OpIfFalse, node)
	g.MakeTrap(fail, reason)
	return ParsePredicate{node: node, succ: succ}
}

// RuntimePredicate wraps a hoisted guard through its success projection.
type RuntimePredicate struct {
	succ *ir.Node
}

// AsRuntimePredicate builds the view for a success projection already
// classified as KindRuntime.
func AsRuntimePredicate(proj *ir.Node) RuntimePredicate {
	ir.Assert(Recognize(proj) == KindRuntime, "not a runtime predicate projection")
	return RuntimePredicate{succ: proj}
}

func (p RuntimePredicate) Entry() *ir.Node { return p.Head().In(0) }
func (p RuntimePredicate) Head() *ir.Node  { return p.succ.Control() }
func (p RuntimePredicate) Tail() *ir.Node  { return p.succ }

// Reason is the bailout reason of the trap on the failing projection.
func (p RuntimePredicate) Reason() deopt.Reason {
	other := p.succ.OtherProj()
	if other == nil {
		return deopt.None
	}
	return ir.TrapReason(other)
}

func (p RuntimePredicate) String() string {
	return fmt.Sprintf("runtime predicate %s (%s)", p.Head(), p.Reason())
}

// TemplateAssertionPredicate wraps a template node. Unlike the other kinds
// it is a single node on the chain carrying two bool formulas: the check for
// the first iteration value and the check for the last.
type TemplateAssertionPredicate struct {
	g    *ir.Graph
	node *ir.Node
}

// AsTemplate builds the view for a template node.
func AsTemplate(g *ir.Graph, node *ir.Node) TemplateAssertionPredicate {
	ir.Assert(node.Op == ir.OpTemplateAssertionPred, "not a template assertion predicate")
	return TemplateAssertionPredicate{g: g, node: node}
}

func (t TemplateAssertionPredicate) Entry() *ir.Node { return t.node.In(0) }
func (t TemplateAssertionPredicate) Head() *ir.Node  { return t.node }
func (t TemplateAssertionPredicate) Tail() *ir.Node  { return t.node }
func (t TemplateAssertionPredicate) Node() *ir.Node  { return t.node }

// InitBool is the check formula for the first iteration value.
func (t TemplateAssertionPredicate) InitBool() *ir.Node { return t.node.In(1) }

// LastBool is the check formula for the last iteration value.
func (t TemplateAssertionPredicate) LastBool() *ir.Node { return t.node.In(2) }

// Kill marks the template useless and hands it to the worklist.
func (t TemplateAssertionPredicate) Kill() {
	t.node.MarkUseless()
	t.g.Worklist.Push(t.node)
}

func (t TemplateAssertionPredicate) String() string {
	return fmt.Sprintf("template assertion predicate %s", t.node)
}

// InitializedAssertionPredicate wraps an instantiated assertion check
// through its success projection. The failing projection halts.
type InitializedAssertionPredicate struct {
	succ *ir.Node
}

// AsInitialized builds the view for a success projection already classified
// as KindInitializedAssertion.
func AsInitialized(proj *ir.Node) InitializedAssertionPredicate {
	ir.Assert(Recognize(proj) == KindInitializedAssertion, "not an initialized assertion projection")
	return InitializedAssertionPredicate{succ: proj}
}

func (p InitializedAssertionPredicate) Entry() *ir.Node { return p.Head().In(0) }
func (p InitializedAssertionPredicate) Head() *ir.Node  { return p.succ.Control() }
func (p InitializedAssertionPredicate) Tail() *ir.Node  { return p.succ }

// Kill marks the branch useless and hands it to the worklist, which folds
// it to its success projection and removes the halting path.
func (p InitializedAssertionPredicate) Kill(g *ir.Graph) {
	iff := p.Head()
	iff.MarkUseless()
	g.Worklist.Push(iff)
}

func (p InitializedAssertionPredicate) String() string {
	return fmt.Sprintf("initialized assertion predicate %s", p.Head())
}
