package ir

// Dominator information for the control subgraph. Computed with the simple
// iterative algorithm over a reverse postorder (Cooper, Harvey, Kennedy);
// chain walks only need immediate dominators and depths, not frontier sets.

// cfgSuccs returns the control successors of n: control nodes that name n as
// one of their control inputs.
func (g *Graph) cfgSuccs(n *Node) []*Node {
	var succs []*Node
	for _, m := range n.outs {
		if !m.IsCFG() || m.Dead() {
			continue
		}
		for _, i := range m.controlIns() {
			if m.In(i) == n {
				succs = append(succs, m)
				break
			}
		}
	}
	return succs
}

// CFGSuccs returns the control successors of n.
func (g *Graph) CFGSuccs(n *Node) []*Node { return g.cfgSuccs(n) }

// cfgPreds returns the control predecessors of n.
func (g *Graph) cfgPreds(n *Node) []*Node {
	var preds []*Node
	for _, i := range n.controlIns() {
		if p := n.In(i); p != nil && !p.Dead() {
			preds = append(preds, p)
		}
	}
	return preds
}

// RecomputeDomDepth rebuilds immediate dominators and dominator depths for
// all control nodes reachable from root. Loop transformations that change
// control flow must call this before relying on Idom or DomDepth again.
func (g *Graph) RecomputeDomDepth() {
	// Postorder over the control subgraph.
	var postorder []*Node
	seen := make(map[*Node]bool)
	var walk func(n *Node)
	walk = func(n *Node) {
		seen[n] = true
		for _, s := range g.cfgSuccs(n) {
			if !seen[s] {
				walk(s)
			}
		}
		postorder = append(postorder, n)
	}
	walk(g.root)

	rpo := make(map[*Node]int, len(postorder))
	for i, n := range postorder {
		rpo[n] = len(postorder) - 1 - i
	}

	idom := make(map[*Node]*Node, len(postorder))
	idom[g.root] = g.root

	intersect := func(a, b *Node) *Node {
		for a != b {
			for rpo[a] > rpo[b] {
				a = idom[a]
			}
			for rpo[b] > rpo[a] {
				b = idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for i := len(postorder) - 1; i >= 0; i-- {
			n := postorder[i]
			if n == g.root {
				continue
			}
			var newIdom *Node
			for _, p := range g.cfgPreds(n) {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p)
				}
			}
			if newIdom != nil && idom[n] != newIdom {
				idom[n] = newIdom
				changed = true
			}
		}
	}

	depth := make(map[*Node]int, len(idom))
	var depthOf func(n *Node) int
	depthOf = func(n *Node) int {
		if n == g.root {
			return 0
		}
		if d, ok := depth[n]; ok {
			return d
		}
		d := depthOf(idom[n]) + 1
		depth[n] = d
		return d
	}
	for n := range idom {
		depthOf(n)
	}

	g.idom, g.domDepth = idom, depth
}

// Idom returns the immediate dominator of a control node, or nil if the node
// was unreachable at the last recompute.
func (g *Graph) Idom(n *Node) *Node {
	Assert(g.idom != nil, "dominators not computed")
	if d := g.idom[n]; d != n {
		return d
	}
	return nil
}

// DomDepth returns the dominator-tree depth of a control node.
func (g *Graph) DomDepth(n *Node) int {
	Assert(g.domDepth != nil, "dominators not computed")
	return g.domDepth[n]
}
