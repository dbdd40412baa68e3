package predicate

import "github.com/nickng/looppred/ir"

type chainCollector struct {
	lines []string
}

func (c *chainCollector) VisitParse(p ParsePredicate)     { c.lines = append(c.lines, p.String()) }
func (c *chainCollector) VisitRuntime(p RuntimePredicate) { c.lines = append(c.lines, p.String()) }
func (c *chainCollector) VisitTemplate(t TemplateAssertionPredicate) {
	c.lines = append(c.lines, t.String())
}
func (c *chainCollector) VisitInitialized(p InitializedAssertionPredicate) {
	c.lines = append(c.lines, p.String())
}

// ChainLines renders the chain above loopEntry as one line per predicate,
// topmost first.
func ChainLines(g *ir.Graph, loopEntry *ir.Node) []string {
	c := &chainCollector{}
	Walk(g, loopEntry, c)
	for i, j := 0, len(c.lines)-1; i < j; i, j = i+1, j-1 {
		c.lines[i], c.lines[j] = c.lines[j], c.lines[i]
	}
	return c.lines
}
