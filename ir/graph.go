package ir

import "fmt"

// DefaultNodeBudget is the node limit for one compilation unit.
const DefaultNodeBudget = 80000

// Graph is the arena of a single compilation unit. It owns every node, the
// def-use edges between them, the simplification worklist and the dominator
// information.
//
// A Graph is confined to the optimization pass that created it; there is no
// internal locking.
type Graph struct {
	nodes []*Node
	root  *Node

	ctrl map[*Node]*Node // anchor control of data nodes

	// Registries for mark-and-sweep of stale predicates.
	parsePredicates []*Node
	templates       []*Node

	Worklist *Worklist

	budget int

	idom     map[*Node]*Node
	domDepth map[*Node]int
}

// New returns an empty graph with a root node.
func New() *Graph {
	g := &Graph{
		ctrl:   make(map[*Node]*Node),
		budget: DefaultNodeBudget,
	}
	g.Worklist = newWorklist(g)
	g.root = g.NewNode(OpRoot)
	return g
}

// Root returns the root node. Halt nodes are attached to it so dead branch
// paths stay reachable until swept.
func (g *Graph) Root() *Node { return g.root }

// Unique returns the index the next created node will get.
func (g *Graph) Unique() int { return len(g.nodes) }

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	live := 0
	for _, n := range g.nodes {
		if !n.Dead() {
			live++
		}
	}
	return live
}

// SetNodeBudget overrides the node limit for this compilation unit.
func (g *Graph) SetNodeBudget(max int) { g.budget = max }

// MayRequireNodes reports whether an estimated allocation of est more nodes
// fits the remaining budget. Transformations must check this before cloning.
func (g *Graph) MayRequireNodes(est int) bool {
	return len(g.nodes)+est <= g.budget
}

// NewNode allocates a node with the given inputs and registers its uses.
func (g *Graph) NewNode(op Op, in ...*Node) *Node {
	n := &Node{id: len(g.nodes), Op: op, in: in}
	g.nodes = append(g.nodes, n)
	for _, def := range in {
		if def != nil {
			def.outs = append(def.outs, n)
		}
	}
	switch op {
	case OpParsePredicate:
		g.parsePredicates = append(g.parsePredicates, n)
	case OpTemplateAssertionPred:
		g.templates = append(g.templates, n)
	}
	return n
}

// NewConI returns a new integer constant. Constants are anchored at root.
func (g *Graph) NewConI(v int64) *Node {
	c := g.NewNode(OpConI)
	c.Val = v
	g.RegisterNode(c, g.root)
	return c
}

// NewBool returns a Bool node testing cmp.
func (g *Graph) NewBool(test BoolTest, cmp, ctrl *Node) *Node {
	b := g.NewNode(OpBool, cmp)
	b.Test = test
	g.RegisterNode(b, ctrl)
	return b
}

// Node returns the node at arena index id.
func (g *Graph) Node(id int) *Node { return g.nodes[id] }

// Nodes returns the arena, including dead nodes. Callers filter on Dead.
func (g *Graph) Nodes() []*Node { return g.nodes }

// RegisterNode anchors a data node at a control node. Control nodes anchor
// themselves.
func (g *Graph) RegisterNode(n, ctrl *Node) {
	if !n.IsCFG() {
		g.ctrl[n] = ctrl
	}
}

// Ctrl returns the control anchor of a node: the node itself for control
// nodes, the registered anchor otherwise.
func (g *Graph) Ctrl(n *Node) *Node {
	if n.IsCFG() {
		return n
	}
	return g.ctrl[n]
}

// Clone returns a shallow copy of n sharing its inputs. The clone has a fresh
// index and no uses; the caller anchors it with RegisterNode.
func (g *Graph) Clone(n *Node) *Node {
	c := g.NewNode(n.Op, append([]*Node(nil), n.in...)...)
	c.Val, c.Test, c.Reason, c.PredOp = n.Val, n.Test, n.Reason, n.PredOp
	c.Unswitch = n.Unswitch
	c.flags = n.flags &^ flagDead
	return c
}

// CloneRegister clones n and anchors the clone at ctrl.
func (g *Graph) CloneRegister(n, ctrl *Node) *Node {
	c := g.Clone(n)
	g.RegisterNode(c, ctrl)
	return c
}

// ReplaceInput sets input i of n to def, maintaining use lists.
func (g *Graph) ReplaceInput(n *Node, i int, def *Node) {
	old := n.in[i]
	if old == def {
		return
	}
	if old != nil {
		old.removeOut(n)
	}
	n.in[i] = def
	if def != nil {
		def.outs = append(def.outs, n)
	}
}

// SetControl sets the control input (input 0) of n.
func (g *Graph) SetControl(n, ctrl *Node) {
	g.ReplaceInput(n, 0, ctrl)
}

// AddInput appends an input to n (used for root/region edges).
func (g *Graph) AddInput(n, def *Node) {
	n.in = append(n.in, def)
	if def != nil {
		def.outs = append(def.outs, n)
	}
}

// RemoveInput removes input i of n, shifting later inputs down.
func (g *Graph) RemoveInput(n *Node, i int) {
	if old := n.in[i]; old != nil {
		old.removeOut(n)
	}
	n.in = append(n.in[:i], n.in[i+1:]...)
}

// RewireUses redirects every use of old to point at new instead.
func (g *Graph) RewireUses(old, new *Node) {
	for len(old.outs) > 0 {
		use := old.outs[0]
		for i, in := range use.in {
			if in == old {
				g.ReplaceInput(use, i, new)
			}
		}
	}
}

// ParsePredicates returns every parse predicate node ever created, including
// dead ones. Callers filter on Dead.
func (g *Graph) ParsePredicates() []*Node { return g.parsePredicates }

// Templates returns every template assertion predicate node ever created.
func (g *Graph) Templates() []*Node { return g.templates }

// reanchor moves data nodes anchored at old onto ctrl. Folding control away
// must not leave anchors dangling on dead nodes.
func (g *Graph) reanchor(old, ctrl *Node) {
	for n, a := range g.ctrl {
		if a == old {
			g.ctrl[n] = ctrl
		}
	}
}

func (n *Node) removeOut(use *Node) {
	for i, o := range n.outs {
		if o == use {
			n.outs[i] = n.outs[len(n.outs)-1]
			n.outs = n.outs[:len(n.outs)-1]
			return
		}
	}
}

// kill detaches the node from the graph and marks it dead. Inputs whose last
// use disappears are swept recursively if they are data nodes.
func (g *Graph) kill(n *Node) {
	if n.Dead() {
		return
	}
	n.flags |= flagDead
	ins := n.in
	n.in = nil
	for _, def := range ins {
		if def == nil {
			continue
		}
		def.removeOut(n)
		if !def.Dead() && !def.IsCFG() && def.OutCount() == 0 {
			g.kill(def)
		}
	}
	delete(g.ctrl, n)
}

func (g *Graph) String() string {
	return fmt.Sprintf("graph{%d nodes}", len(g.nodes))
}
