package predicate

import "github.com/nickng/looppred/ir"

// Visitor receives each predicate found while walking a chain.
type Visitor interface {
	VisitParse(ParsePredicate)
	VisitRuntime(RuntimePredicate)
	VisitTemplate(TemplateAssertionPredicate)
	VisitInitialized(InitializedAssertionPredicate)
}

// BaseVisitor ignores every predicate. Embed it to handle only some kinds.
type BaseVisitor struct{}

func (BaseVisitor) VisitParse(ParsePredicate)                      {}
func (BaseVisitor) VisitRuntime(RuntimePredicate)                  {}
func (BaseVisitor) VisitTemplate(TemplateAssertionPredicate)       {}
func (BaseVisitor) VisitInitialized(InitializedAssertionPredicate) {}

// Walk visits every predicate above loopEntry from the loop outward and
// returns the first non-predicate control node. The next chain position is
// captured before each visit, so a visitor may rewire or kill the predicate
// it is handed without derailing the walk.
func Walk(g *ir.Graph, loopEntry *ir.Node, v Visitor) *ir.Node {
	cur := loopEntry
	for {
		switch Recognize(cur) {
		case KindTemplateAssertion:
			t := AsTemplate(g, cur)
			next := t.Entry()
			v.VisitTemplate(t)
			cur = next
		case KindInitializedAssertion:
			p := AsInitialized(cur)
			next := p.Entry()
			v.VisitInitialized(p)
			cur = next
		case KindParse:
			p := AsParsePredicate(cur)
			next := p.Entry()
			v.VisitParse(p)
			cur = next
		case KindRuntime:
			p := AsRuntimePredicate(cur)
			next := p.Entry()
			v.VisitRuntime(p)
			cur = next
		default:
			return cur
		}
	}
}

// EntryAbovePredicates returns the first control node above the chain
// without visiting anything.
func EntryAbovePredicates(g *ir.Graph, loopEntry *ir.Node) *ir.Node {
	return Walk(g, loopEntry, BaseVisitor{})
}
