package predicate

import "github.com/nickng/looppred/ir"

// Chain inserts predicates above a fixed anchor node. The anchor's entry
// input at construction time stays the entry for every predicate created
// afterwards; each insertion rewires the current tail onto the new
// predicate, stacking later insertions further from the anchor.
type Chain struct {
	g     *ir.Graph
	tail  *ir.Node // node whose entry input receives the next insertion
	entry *ir.Node // fixed control input for newly created predicates
}

// NewChain anchors a chain at anchor, typically a loop head or its outer
// wrapper.
func NewChain(g *ir.Graph, anchor *ir.Node) *Chain {
	return &Chain{g: g, tail: anchor, entry: anchor.In(0)}
}

// Entry is the control input new predicates must be created with.
func (c *Chain) Entry() *ir.Node { return c.entry }

// InsertNew wires a freshly created predicate into the chain. The predicate
// must have been created with c.Entry() as its entry input.
func (c *Chain) InsertNew(p Predicate) {
	ir.Assert(p.Entry() == c.entry, "predicate not created at chain entry")
	c.g.ReplaceInput(c.tail, 0, p.Tail())
	c.tail = p.Head()
}
