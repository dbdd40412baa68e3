package predicate

import "github.com/nickng/looppred/ir"

// validFormulaOp reports whether op may appear between an assertion bool
// and the opaque placeholders feeding it. Anything else terminates the
// formula subgraph and is shared rather than cloned.
func validFormulaOp(op ir.Op) bool {
	switch op {
	case ir.OpBool, ir.OpCmpI, ir.OpCmpU,
		ir.OpAddI, ir.OpSubI, ir.OpMulI,
		ir.OpCastII, ir.OpConvI2L,
		ir.OpOpaqueLoopInit, ir.OpOpaqueLoopStride:
		return true
	}
	return false
}

// OpaqueTransform decides what happens to the opaque placeholder nodes when
// an assertion formula is cloned.
type OpaqueTransform interface {
	TransformInit(opaque *ir.Node) *ir.Node
	TransformStride(opaque *ir.Node) *ir.Node
}

// cloneOpaque clones both placeholder kinds. Clones are cached so the init
// and last value formulas of one template keep sharing their placeholders
// after cloning.
type cloneOpaque struct {
	g            *ir.Graph
	ctrl         *ir.Node
	newInit      *ir.Node // replaces the init placeholder's input when set
	cachedInit   *ir.Node
	cachedStride *ir.Node
}

// CloneOpaque clones placeholders unchanged, anchoring the clones at ctrl.
func CloneOpaque(g *ir.Graph, ctrl *ir.Node) OpaqueTransform {
	return &cloneOpaque{g: g, ctrl: ctrl}
}

// CloneWithNewInit clones placeholders, wiring newInit as the input of the
// cloned init placeholder. Used when a template is copied to another loop
// whose trip count starts elsewhere.
func CloneWithNewInit(g *ir.Graph, ctrl, newInit *ir.Node) OpaqueTransform {
	return &cloneOpaque{g: g, ctrl: ctrl, newInit: newInit}
}

func (c *cloneOpaque) TransformInit(opaque *ir.Node) *ir.Node {
	if c.cachedInit == nil {
		c.cachedInit = c.g.CloneRegister(opaque, c.ctrl)
		if c.newInit != nil {
			c.g.ReplaceInput(c.cachedInit, 0, c.newInit)
		}
	}
	return c.cachedInit
}

func (c *cloneOpaque) TransformStride(opaque *ir.Node) *ir.Node {
	if c.cachedStride == nil {
		c.cachedStride = c.g.CloneRegister(opaque, c.ctrl)
	}
	return c.cachedStride
}

// foldOpaque strips the placeholders, substituting their concrete inputs.
// Instantiating a template uses this to produce a checkable formula.
type foldOpaque struct{}

// FoldOpaque replaces each placeholder by its input.
func FoldOpaque() OpaqueTransform { return foldOpaque{} }

func (foldOpaque) TransformInit(opaque *ir.Node) *ir.Node   { return opaque.In(0) }
func (foldOpaque) TransformStride(opaque *ir.Node) *ir.Node { return opaque.In(0) }

// formulaCloner clones a bool formula up to, and transforming, its opaque
// placeholders. Nodes that do not reach a placeholder are structurally
// shared with the source formula. Memoized per template so a node feeding
// both formulas is cloned once.
type formulaCloner struct {
	g       *ir.Graph
	ctrl    *ir.Node
	tr      OpaqueTransform
	reaches map[*ir.Node]bool
	clones  map[*ir.Node]*ir.Node
}

func newFormulaCloner(g *ir.Graph, ctrl *ir.Node, tr OpaqueTransform) *formulaCloner {
	return &formulaCloner{
		g:       g,
		ctrl:    ctrl,
		tr:      tr,
		reaches: make(map[*ir.Node]bool),
		clones:  make(map[*ir.Node]*ir.Node),
	}
}

// reachesOpaque reports whether n transitively uses a placeholder through
// formula ops only.
func (fc *formulaCloner) reachesOpaque(n *ir.Node) bool {
	if n == nil || !validFormulaOp(n.Op) {
		return false
	}
	if n.Op == ir.OpOpaqueLoopInit || n.Op == ir.OpOpaqueLoopStride {
		return true
	}
	if r, ok := fc.reaches[n]; ok {
		return r
	}
	r := false
	for i := 0; i < n.NumIn(); i++ {
		if fc.reachesOpaque(n.In(i)) {
			r = true
			break
		}
	}
	fc.reaches[n] = r
	return r
}

func (fc *formulaCloner) clone(n *ir.Node) *ir.Node {
	switch n.Op {
	case ir.OpOpaqueLoopInit:
		return fc.tr.TransformInit(n)
	case ir.OpOpaqueLoopStride:
		return fc.tr.TransformStride(n)
	}
	if !fc.reachesOpaque(n) {
		return n
	}
	if c, ok := fc.clones[n]; ok {
		return c
	}
	c := fc.g.CloneRegister(n, fc.ctrl)
	fc.clones[n] = c
	for i := 0; i < n.NumIn(); i++ {
		if in := n.In(i); in != nil && fc.reachesOpaque(in) {
			fc.g.ReplaceInput(c, i, fc.clone(in))
		}
	}
	return c
}

// NodeInTargetLoop answers whether a node belongs to the copy of a loop a
// template is being cloned toward. Data nodes hanging off the old template
// are rewired to the clone exactly when they do.
type NodeInTargetLoop interface {
	Contains(n *ir.Node) bool
}

// InClonedLoop matches nodes created by a loop body clone, recognized by
// node index: every clone was allocated at or after FirstCloneIndex.
type InClonedLoop struct {
	FirstCloneIndex int
}

func (t InClonedLoop) Contains(n *ir.Node) bool {
	return n.ID() >= t.FirstCloneIndex
}

// InOriginalLoop matches nodes of the original body of a cloned loop: the
// node predates the clone pass and has a counterpart in the old-to-new map.
type InOriginalLoop struct {
	FirstCloneIndex int
	OldNew          map[*ir.Node]*ir.Node
}

func (t InOriginalLoop) Contains(n *ir.Node) bool {
	return n.ID() < t.FirstCloneIndex && t.OldNew[n] != nil
}
