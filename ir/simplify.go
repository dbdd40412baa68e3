package ir

// Worklist is the simplification queue. Killing a predicate only marks it and
// pushes it here; the structural removal happens when the queue is drained.
// This is the buffer-then-apply discipline: traversals over the predicate
// chain never observe a half-removed node.
type Worklist struct {
	g     *Graph
	queue []*Node
	inQ   map[*Node]bool
}

func newWorklist(g *Graph) *Worklist {
	return &Worklist{g: g, inQ: make(map[*Node]bool)}
}

// Push enqueues a node for simplification.
func (w *Worklist) Push(n *Node) {
	if n == nil || w.inQ[n] {
		return
	}
	w.inQ[n] = true
	w.queue = append(w.queue, n)
}

// Len returns the number of queued nodes.
func (w *Worklist) Len() int { return len(w.queue) }

// Simplify drains the queue, folding constant branches and removing
// predicates that were marked useless.
func (w *Worklist) Simplify() {
	for len(w.queue) > 0 {
		n := w.queue[0]
		w.queue = w.queue[1:]
		delete(w.inQ, n)
		if n.Dead() {
			continue
		}
		switch {
		case n.Op == OpTemplateAssertionPred && n.Useless():
			w.g.spliceTemplate(n)
		case n.Op == OpParsePredicate && n.Useless():
			w.g.foldBranch(n, true)
		case n.Op.IsIf() && n.Useless():
			// A killed initialized assertion predicate: the check is always
			// true, fold towards the success path.
			w.g.foldBranch(n, true)
		case n.Op.IsIf() && n.NumIn() > 1 && n.In(1) != nil && n.In(1).Op == OpConI:
			w.g.foldBranch(n, n.In(1).Val != 0)
		}
	}
}

// foldBranch replaces a two-way branch by its taken side. Users of the taken
// projection move up to the branch's control input; the untaken path is
// removed.
func (g *Graph) foldBranch(iff *Node, taken bool) {
	entry := iff.Control()
	takenProj := iff.ProjOut(taken)
	untakenProj := iff.ProjOut(!taken)
	if takenProj != nil {
		g.RewireUses(takenProj, entry)
		g.reanchor(takenProj, entry)
		g.kill(takenProj)
	}
	if untakenProj != nil {
		g.killPath(untakenProj)
	}
	g.kill(iff)
}

// spliceTemplate removes a template assertion predicate from the control
// chain. Control users and pinned data users both move up to its entry; the
// formula subgraphs die with their last use.
func (g *Graph) spliceTemplate(t *Node) {
	entry := t.Control()
	g.RewireUses(t, entry)
	g.reanchor(t, entry)
	g.kill(t)
}

// killPath removes the control node n and everything reachable below it on
// the same dead path. Region-like merge points lose the dead edge instead and
// collapse when a single edge remains.
func (g *Graph) killPath(n *Node) {
	if n == nil || n.Dead() {
		return
	}
	outs := append([]*Node(nil), n.outs...)
	for _, m := range outs {
		if m.Dead() {
			continue
		}
		switch {
		case m.Op == OpRoot:
			for i := m.NumIn() - 1; i >= 0; i-- {
				if m.In(i) == n {
					g.RemoveInput(m, i)
				}
			}
		case m.Op == OpRegion || m.Op == OpLoop || m.Op == OpStripMinedLoop:
			g.removeMergeInput(m, n)
		case m.IsCFG():
			g.killPath(m)
		default:
			if m.OutCount() == 0 {
				g.kill(m)
			} else {
				g.ReplaceInput(m, 0, nil)
			}
		}
	}
	g.kill(n)
}

// removeMergeInput deletes the control edge pred -> merge together with the
// matching phi edges. A plain region left with one predecessor is collapsed.
func (g *Graph) removeMergeInput(merge, pred *Node) {
	idx := -1
	for i := 0; i < merge.NumIn(); i++ {
		if merge.In(i) == pred {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	var phis []*Node
	for _, o := range merge.outs {
		if o.Op == OpPhi && o.In(0) == merge {
			phis = append(phis, o)
		}
	}
	g.RemoveInput(merge, idx)
	for _, phi := range phis {
		g.RemoveInput(phi, idx+1)
	}
	if merge.Op == OpRegion && merge.NumIn() == 1 {
		for _, phi := range phis {
			g.RewireUses(phi, phi.In(1))
			g.kill(phi)
		}
		g.RewireUses(merge, merge.In(0))
		g.reanchor(merge, merge.In(0))
		g.kill(merge)
	}
}
