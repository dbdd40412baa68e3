package unswitch

import (
	"github.com/nickng/looppred/ir"
	"github.com/nickng/looppred/looptree"
)

// cloneLoop copies the whole loop body, the strip mined wrapper included,
// and returns the old to new mapping. Uses of loop values after the loop
// are merged: each exit projection gets a Region joining the original and
// the copy, and each escaping value a Phi on that Region.
func (u *Unswitcher) cloneLoop(l *looptree.Loop) map[*ir.Node]*ir.Node {
	g := u.g
	oldNew := make(map[*ir.Node]*ir.Node)

	// Arena order keeps the copy deterministic.
	var order []*ir.Node
	for _, n := range g.Nodes() {
		if !n.Dead() && l.Contains(n) {
			order = append(order, n)
		}
	}
	// Exit projections live outside the body but belong to the copy: the
	// slow loop needs its own way out.
	var exits []*ir.Node
	for _, n := range order {
		if !n.Op.IsIf() {
			continue
		}
		for _, proj := range n.Outs() {
			if proj.Op.IsProj() && !l.Contains(proj) {
				exits = append(exits, proj)
			}
		}
	}
	order = append(order, exits...)

	for _, n := range order {
		oldNew[n] = g.Clone(n)
	}
	for _, n := range order {
		c := oldNew[n]
		for i := 0; i < n.NumIn(); i++ {
			if in := n.In(i); in != nil && oldNew[in] != nil {
				g.ReplaceInput(c, i, oldNew[in])
			}
		}
		if !n.IsCFG() {
			anchor := g.Ctrl(n)
			if a := oldNew[anchor]; a != nil {
				g.RegisterNode(c, a)
			} else {
				g.RegisterNode(c, anchor)
			}
		}
	}

	u.mergeExits(l, exits, oldNew)
	return oldNew
}

// mergeExits rejoins control and escaping values after the two loop copies.
func (u *Unswitcher) mergeExits(l *looptree.Loop, exits []*ir.Node, oldNew map[*ir.Node]*ir.Node) {
	g := u.g
	var merge *ir.Node
	for _, exit := range exits {
		region := g.NewNode(ir.OpRegion)
		g.RewireUses(exit, region)
		g.AddInput(region, exit)
		g.AddInput(region, oldNew[exit])
		if merge == nil {
			merge = region
		}
	}
	if merge == nil {
		return
	}
	// Escaping values merge at the first exit. Phi input order matches the
	// region: original copy first, then the clone.
	for _, n := range g.Nodes() {
		clone, cloned := oldNew[n], oldNew[n] != nil
		if !cloned || n.IsCFG() {
			continue
		}
		var outside []*ir.Node
		for _, use := range n.Outs() {
			if use == clone || l.Contains(use) || oldNew[use] != nil {
				continue
			}
			outside = append(outside, use)
		}
		if len(outside) == 0 {
			continue
		}
		phi := g.NewNode(ir.OpPhi, merge, n, clone)
		g.RegisterNode(phi, merge)
		for _, use := range outside {
			for i := 0; i < use.NumIn(); i++ {
				if use.In(i) == n {
					g.ReplaceInput(use, i, phi)
				}
			}
		}
	}
}
