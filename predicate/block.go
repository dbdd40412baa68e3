package predicate

import (
	"github.com/nickng/looppred/deopt"
	"github.com/nickng/looppred/ir"
)

// Block is the chain section for one deopt reason: at most one parse
// predicate closest to the loop, with the runtime predicates of the same
// reason stacked above it.
type Block struct {
	reason  deopt.Reason
	tail    *ir.Node // node the block was entered from (below the block)
	entry   *ir.Node // control input above the block
	parse   *ParsePredicate
	runtime []RuntimePredicate // in bottom-up chain order
}

// BlockAbove walks the chain section for reason starting at tail, the node
// directly below the block (the entry of the section below, or the loop
// itself). It stops at the first node that is neither the reason's parse
// predicate nor one of its runtime predicates.
func BlockAbove(tail *ir.Node, reason deopt.Reason) *Block {
	b := &Block{reason: reason, tail: tail}
	cur := tail
	if Recognize(cur) == KindParse {
		pp := AsParsePredicate(cur)
		if pp.Reason() == reason {
			b.parse = &pp
			cur = pp.Entry()
		}
	}
	for isRuntimeProj(cur, reason) {
		rp := AsRuntimePredicate(cur)
		b.runtime = append(b.runtime, rp)
		cur = rp.Entry()
	}
	b.entry = cur
	return b
}

// Entry is the control input above the whole block.
func (b *Block) Entry() *ir.Node { return b.entry }

// IsEmpty reports whether the block holds no predicate at all.
func (b *Block) IsEmpty() bool { return b.entry == b.tail }

func (b *Block) HasParsePredicate() bool { return b.parse != nil }

// ParsePredicate returns the block's parse predicate. Only valid when
// HasParsePredicate reports true.
func (b *Block) ParsePredicate() ParsePredicate { return *b.parse }

// RuntimePredicates returns the hoisted guards of the block in bottom-up
// chain order.
func (b *Block) RuntimePredicates() []RuntimePredicate { return b.runtime }

func (b *Block) Reason() deopt.Reason { return b.reason }

// AssertionBlock is the chain section directly above a loop head holding
// template and initialized assertion predicates. The two kinds may
// interleave freely within the section.
type AssertionBlock struct {
	tail        *ir.Node
	entry       *ir.Node
	templates   []TemplateAssertionPredicate
	initialized []InitializedAssertionPredicate
}

// AssertionBlockAbove walks the assertion section starting at tail, the
// loop entry projection point.
func AssertionBlockAbove(g *ir.Graph, tail *ir.Node) *AssertionBlock {
	b := &AssertionBlock{tail: tail}
	cur := tail
	for {
		switch Recognize(cur) {
		case KindTemplateAssertion:
			t := AsTemplate(g, cur)
			b.templates = append(b.templates, t)
			cur = t.Entry()
		case KindInitializedAssertion:
			p := AsInitialized(cur)
			b.initialized = append(b.initialized, p)
			cur = p.Entry()
		default:
			b.entry = cur
			return b
		}
	}
}

func (b *AssertionBlock) Entry() *ir.Node { return b.entry }
func (b *AssertionBlock) IsEmpty() bool   { return b.entry == b.tail }

func (b *AssertionBlock) Templates() []TemplateAssertionPredicate { return b.templates }

func (b *AssertionBlock) Initialized() []InitializedAssertionPredicate { return b.initialized }

// Predicates is the parsed view of the whole chain above one loop entry:
// the assertion block, then the loop limit check, profiled loop and loop
// blocks in that order walking upward.
type Predicates struct {
	loopEntry      *ir.Node
	assertion      *AssertionBlock
	loopLimitCheck *Block
	profiledLoop   *Block
	loop           *Block
	entry          *ir.Node
}

// ForLoop parses the entire chain above loopEntry, the control input of the
// loop head (or of its outer wrapper).
func ForLoop(g *ir.Graph, loopEntry *ir.Node) *Predicates {
	p := &Predicates{loopEntry: loopEntry}
	p.assertion = AssertionBlockAbove(g, loopEntry)
	p.loopLimitCheck = BlockAbove(p.assertion.Entry(), deopt.LoopLimitCheck)
	p.profiledLoop = BlockAbove(p.loopLimitCheck.Entry(), deopt.ProfiledLoop)
	p.loop = BlockAbove(p.profiledLoop.Entry(), deopt.Loop)
	p.entry = p.loop.Entry()
	return p
}

// Entry is the first control node above all predicates of the chain.
func (p *Predicates) Entry() *ir.Node { return p.entry }

// HasAny reports whether the chain holds at least one predicate.
func (p *Predicates) HasAny() bool { return p.entry != p.loopEntry }

// HasAnyParsePredicate reports whether at least one reason block still has
// its placeholder.
func (p *Predicates) HasAnyParsePredicate() bool {
	return p.loopLimitCheck.HasParsePredicate() ||
		p.profiledLoop.HasParsePredicate() ||
		p.loop.HasParsePredicate()
}

func (p *Predicates) AssertionBlock() *AssertionBlock { return p.assertion }

// BlockFor returns the reason block for one of the three predicate reasons.
func (p *Predicates) BlockFor(reason deopt.Reason) *Block {
	switch reason {
	case deopt.LoopLimitCheck:
		return p.loopLimitCheck
	case deopt.ProfiledLoop:
		return p.profiledLoop
	case deopt.Loop:
		return p.loop
	}
	return nil
}
