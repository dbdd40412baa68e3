package predicate

import (
	"github.com/nickng/looppred/internal/logging"
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
)

// Eliminator removes predicate placeholders and templates that no live loop
// can still use. Runtime and initialized assertion predicates are real
// checks and are never removed here.
type Eliminator struct {
	g   *ir.Graph
	log *logging.Logger
}

// NewEliminator returns an eliminator over g.
func NewEliminator(g *ir.Graph) *Eliminator {
	return &Eliminator{g: g}
}

// SetLogger sets logger for the eliminator.
func (e *Eliminator) SetLogger(l *logging.Logger) {
	e.log = l.Named("eliminate")
}

// usefulMarker clears the useless mark on placeholders and templates still
// reachable from a live loop's chain.
type usefulMarker struct {
	BaseVisitor
}

func (usefulMarker) VisitParse(p ParsePredicate) { p.Head().MarkUseful() }

func (usefulMarker) VisitTemplate(t TemplateAssertionPredicate) { t.Head().MarkUseful() }

// Eliminate marks every parse predicate and template useless, walks the
// chains of all loops in t to rescue the ones still in use, and pushes the
// rest onto the worklist for removal. Running it twice in a row leaves the
// graph unchanged.
func (e *Eliminator) Eliminate(t *looptree.Tree) {
	for _, pp := range e.g.ParsePredicates() {
		if !pp.Dead() {
			pp.MarkUseless()
		}
	}
	for _, tm := range e.g.Templates() {
		if !tm.Dead() {
			tm.MarkUseless()
		}
	}
	marker := usefulMarker{}
	t.Walk(func(l *looptree.Loop) {
		Walk(e.g, l.Entry(), marker)
	})
	removed := 0
	for _, pp := range e.g.ParsePredicates() {
		if !pp.Dead() && pp.Useless() {
			e.g.Worklist.Push(pp)
			removed++
		}
	}
	for _, tm := range e.g.Templates() {
		if !tm.Dead() && tm.Useless() {
			e.g.Worklist.Push(tm)
			removed++
		}
	}
	if e.log != nil && removed > 0 {
		e.log.Debugf("queued %d unused predicates for removal", removed)
	}
}
