// Package structure turns a control-flow graph into a structured-program tree.
//
// The driver repeatedly walks the graph in depth-first post-order and, at
// each node, tries to collapse the region it heads into a single node
// carrying an ast.Node: a loop for nodes that are targets of back edges, a
// switch for nodes that dispatch on one variable, otherwise an acyclic
// single-entry single-exit region guarded by reaching conditions. The graph
// is rewritten in place until one node remains.
package structure

import (
	"fmt"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/graph"
)

// CFG is the graph the engine rewrites: nodes carry the partially structured
// program, edges carry the condition under which they are taken.
type CFG = graph.Graph[ast.Node, cond.Condition]

// NewCFG returns an empty engine graph.
func NewCFG() *CFG {
	return graph.New[ast.Node, cond.Condition]()
}

// Structurer owns a graph while it is being structured. It is not safe for
// concurrent use; distinct Structurers over distinct graphs are independent.
type Structurer struct {
	g         *CFG
	entry     graph.NodeID
	log       Logger
	verify    bool
	observers []func(Collapse)

	pass int
	// loops maps the header of every loop seen by the current pass to its
	// natural loop body. Headers are dropped once their loop is collapsed.
	loops map[graph.NodeID]graph.NodeSet
	// post is the post-order position of every node at the start of the pass.
	post map[graph.NodeID]int
	// flags counts the exit variables introduced for loops with several
	// exits; vars holds the switch variables of the input they must avoid.
	flags int
	vars  map[cond.Variable]bool
}

// New prepares g for structuring. g is consumed: Run rewrites it in place.
func New(g *CFG, opts ...Option) (*Structurer, error) {
	if g == nil || g.Len() == 0 {
		return nil, malformed(0, "empty graph")
	}
	entry, ok := g.Entry()
	if !ok {
		return nil, malformed(g.Len(), "graph has no entry")
	}
	s := &Structurer{g: g, entry: entry, log: nopLogger{}, vars: map[cond.Variable]bool{}}
	for _, e := range g.Edges() {
		for _, a := range cond.Atoms(g.Label(e)) {
			if c, ok := a.(cond.Case); ok {
				s.vars[c.Var] = true
			}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Structure structures g and returns the resulting tree. g is consumed.
func Structure(g *CFG, opts ...Option) (ast.Node, error) {
	s, err := New(g, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run()
}

// Graph returns the graph being rewritten. After Run fails with
// ErrStructuringStuck it holds the unstructured remainder.
func (s *Structurer) Graph() *CFG { return s.g }

// Run structures the graph until a single node without edges remains.
func (s *Structurer) Run() (ast.Node, error) {
	for s.pass = 0; ; s.pass++ {
		if s.g.Len() == 1 && s.g.EdgeLen() == 0 {
			return s.g.Node(s.entry), nil
		}

		cls := graph.Classify(s.g, s.entry)
		if len(cls.PostOrder) != s.g.Len() {
			if s.pass == 0 {
				return nil, malformed(s.g.Len(), "%d of %d nodes unreachable from entry",
					s.g.Len()-len(cls.PostOrder), s.g.Len())
			}
			panic(fmt.Sprintf("structure: pass %d lost reachability of %d nodes",
				s.pass, s.g.Len()-len(cls.PostOrder)))
		}
		s.loops = naturalLoops(s.g, cls)
		s.post = make(map[graph.NodeID]int, len(cls.PostOrder))
		for i, n := range cls.PostOrder {
			s.post[n] = i
		}

		progress := false
		for _, n := range cls.PostOrder {
			if !s.g.Contains(n) {
				continue
			}
			if s.step(n, cls) {
				progress = true
			}
		}
		if !progress {
			return nil, s.stuck(cls)
		}
	}
}

func (s *Structurer) step(n graph.NodeID, cls graph.Classification) bool {
	if cls.IsBackEdgeTarget(n) {
		if back := s.liveBackEdges(n, cls); len(back) > 0 {
			return s.structureLoop(n, back)
		}
	}
	if s.structureSwitch(n) {
		return true
	}
	return s.structureAcyclic(n)
}

func (s *Structurer) liveBackEdges(n graph.NodeID, cls graph.Classification) []graph.EdgeID {
	var live []graph.EdgeID
	for _, e := range cls.BackEdges[n] {
		if s.g.HasEdge(e) {
			live = append(live, e)
		}
	}
	return live
}

func (s *Structurer) stuck(cls graph.Classification) *Error {
	err := &Error{Kind: KindStuck, Remaining: s.g.Len(), Detail: "no region could be collapsed"}
	for _, n := range cls.PostOrder {
		if s.g.Contains(n) {
			err.Nodes = append(err.Nodes, ast.Format(s.g.Node(n)))
		}
	}
	return err
}

// collapsed records a rewrite of region, headed by header: it logs it,
// verifies the graph against snap when asked to and notifies the observers.
func (s *Structurer) collapsed(kind RegionKind, header graph.NodeID, region []graph.NodeID, snap snapshot) {
	result := s.g.Node(header)
	removed := len(region) - 1
	s.log.Debug("collapsed region",
		"pass", s.pass,
		"kind", string(kind),
		"header", header.String(),
		"removed", removed,
		"remaining", s.g.Len(),
	)
	if s.verify {
		s.checkInvariants(header, snap)
	}
	c := Collapse{
		Pass:    s.pass,
		Kind:    kind,
		Header:  header,
		Region:  append([]graph.NodeID(nil), region...),
		Removed: removed,
		Result:  result,
	}
	for _, fn := range s.observers {
		fn(c)
	}
}

// size is the progress measure: every collapse strictly decreases it.
func (s *Structurer) size() int {
	return s.g.Len() + s.g.EdgeLen()
}

// naturalLoops computes the natural loop body of every back-edge target.
func naturalLoops(g *CFG, cls graph.Classification) map[graph.NodeID]graph.NodeSet {
	loops := make(map[graph.NodeID]graph.NodeSet, len(cls.BackEdges))
	for h, back := range cls.BackEdges {
		loops[h] = loopBody(g, h, back)
	}
	return loops
}

// loopBody returns h plus every node that reaches one of the back edges'
// sources without passing through h.
func loopBody(g *CFG, h graph.NodeID, back []graph.EdgeID) graph.NodeSet {
	body := graph.NewNodeSet(h)
	var stack []graph.NodeID
	for _, e := range back {
		stack = append(stack, g.Source(e))
	}
	for len(stack) > 0 {
		m := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if body.Has(m) {
			continue
		}
		body.Add(m)
		stack = append(stack, g.Predecessors(m)...)
	}
	return body
}

// sameLoops reports whether every node of r belongs to exactly the same
// loops of the current pass as h.
func (s *Structurer) sameLoops(h graph.NodeID, r []graph.NodeID) bool {
	for _, body := range s.loops {
		in := body.Has(h)
		for _, m := range r {
			if body.Has(m) != in {
				return false
			}
		}
	}
	return true
}

// successorsOutside returns the successors of the nodes in order that are
// not in set, in first-seen order.
func (s *Structurer) successorsOutside(order []graph.NodeID, set graph.NodeSet) []graph.NodeID {
	var out []graph.NodeID
	seen := graph.NewNodeSet()
	for _, u := range order {
		for _, v := range s.g.Successors(u) {
			if set.Has(v) || seen.Has(v) {
				continue
			}
			seen.Add(v)
			out = append(out, v)
		}
	}
	return out
}

// regionOrder returns the nodes of set reachable from h without following
// edges that leave set or enter h, in reverse post-order.
func (s *Structurer) regionOrder(h graph.NodeID, set graph.NodeSet) []graph.NodeID {
	order := graph.PostOrderFrom(s.g, h, func(_ graph.EdgeID, to graph.NodeID) bool {
		return to != h && set.Has(to)
	})
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// take removes the payloads of order from the graph. The header keeps its
// node, with a placeholder payload, and loses its out-edges; every other node
// is removed along with its edges.
func (s *Structurer) take(h graph.NodeID, order []graph.NodeID) map[graph.NodeID]ast.Node {
	payloads := make(map[graph.NodeID]ast.Node, len(order))
	for _, n := range order {
		if n == h {
			payloads[n] = s.g.Replace(n, &ast.Seq{})
			continue
		}
		p, ok := s.g.RemoveNode(n)
		if !ok {
			panic(fmt.Sprintf("structure: region node %s already removed", n))
		}
		payloads[n] = p
	}
	for _, e := range s.g.OutEdges(h) {
		s.g.RemoveEdge(e)
	}
	return payloads
}
