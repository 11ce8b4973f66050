package structure

import (
	"fmt"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/graph"
)

// region is an acyclic single-entry region headed by header. When hasExit is
// set every edge leaving nodes goes to exit; otherwise no edge leaves it.
type region struct {
	header  graph.NodeID
	nodes   graph.NodeSet
	order   []graph.NodeID
	exit    graph.NodeID
	hasExit bool
}

func (s *Structurer) structureAcyclic(n graph.NodeID) bool {
	r, ok := s.findAcyclicRegion(n)
	if !ok {
		return false
	}
	s.collapseAcyclic(r)
	return true
}

// findAcyclicRegion looks for the smallest single-exit region headed by h
// inside the set of nodes h dominates. If there is none and the dominated set
// has no successors at all, the whole set is returned as a terminal region.
func (s *Structurer) findAcyclicRegion(h graph.NodeID) (region, bool) {
	dom := graph.Dominators(s.g, s.entry)
	dominated := dom.DominatesSet(h)
	if dominated.Len() <= 1 {
		return region{}, false
	}
	inner := s.regionOrder(h, dominated)
	outside := s.successorsOutside(inner, dominated)

	var best region
	found := false
	candidates := append(append([]graph.NodeID{}, inner[1:]...), outside...)
	for _, p := range candidates {
		if p == h {
			continue
		}
		nodes := graph.Reachable(s.g, h, func(_ graph.EdgeID, to graph.NodeID) bool {
			return to != p && dominated.Has(to)
		})
		if nodes.Len() <= 1 || (found && nodes.Len() >= best.nodes.Len()) {
			continue
		}
		order := s.regionOrder(h, nodes)
		exits := s.successorsOutside(order, nodes)
		if len(exits) != 1 || exits[0] != p {
			continue
		}
		if !s.singleEntryAcyclic(h, nodes, order) {
			continue
		}
		best = region{header: h, nodes: nodes, order: order, exit: p, hasExit: true}
		found = true
	}
	if found {
		return best, true
	}

	if len(outside) == 0 && s.singleEntryAcyclic(h, dominated, inner) {
		return region{header: h, nodes: dominated, order: inner}, true
	}
	return region{}, false
}

// singleEntryAcyclic reports whether only h is entered from outside nodes, no
// edge inside nodes returns to h, the subgraph is acyclic and it stays within
// the loops h belongs to.
func (s *Structurer) singleEntryAcyclic(h graph.NodeID, nodes graph.NodeSet, order []graph.NodeID) bool {
	if len(order) != nodes.Len() {
		return false
	}
	for _, m := range order {
		for _, p := range s.g.Predecessors(m) {
			if m == h {
				if nodes.Has(p) {
					return false
				}
				continue
			}
			if !nodes.Has(p) {
				return false
			}
		}
	}
	if !graph.Acyclic(s.g, h, func(_ graph.EdgeID, to graph.NodeID) bool { return nodes.Has(to) }) {
		return false
	}
	return s.sameLoops(h, order)
}

// reachingConditions computes, for each node of order (a topological order
// of an acyclic region starting at h), the condition under which control
// reaches it from h. Edges into h are ignored. override replaces the label
// of individual edges.
func (s *Structurer) reachingConditions(h graph.NodeID, order []graph.NodeID, override map[graph.EdgeID]cond.Condition) map[graph.NodeID]cond.Condition {
	reach := map[graph.NodeID]cond.Condition{h: cond.True{}}
	for _, m := range order {
		if m == h {
			continue
		}
		var terms []cond.Condition
		for _, e := range s.g.InEdges(m) {
			rp, ok := reach[s.g.Source(e)]
			if !ok {
				continue
			}
			label, ok := override[e]
			if !ok {
				label = s.g.Label(e)
			}
			terms = append(terms, cond.NewAnd(rp, label))
		}
		if len(terms) == 0 {
			panic(fmt.Sprintf("structure: region node %s has no predecessor in the region", m))
		}
		reach[m] = cond.NewOr(terms...)
	}
	return reach
}

// exitCondition is the condition under which control leaves the region
// through its exit. It is True unless some path ends inside the region.
func (s *Structurer) exitCondition(r region, reach map[graph.NodeID]cond.Condition) cond.Condition {
	terminal := false
	for _, u := range r.order {
		if s.g.OutDegree(u) == 0 {
			terminal = true
			break
		}
	}
	if !terminal {
		return cond.True{}
	}
	var terms []cond.Condition
	for _, u := range r.order {
		for _, e := range s.g.OutEdges(u) {
			if s.g.Target(e) == r.exit {
				terms = append(terms, cond.NewAnd(reach[u], s.g.Label(e)))
			}
		}
	}
	return cond.NewOr(terms...)
}

func (s *Structurer) collapseAcyclic(r region) {
	snap := s.snapshot(r.order)
	reach := s.reachingConditions(r.header, r.order, nil)
	var exitCond cond.Condition
	if r.hasExit {
		exitCond = s.exitCondition(r, reach)
	}

	payloads := s.take(r.header, r.order)
	elems := make([]ast.Node, 0, len(r.order))
	for _, u := range r.order {
		elems = append(elems, ast.Guard(reach[u], payloads[u]))
	}
	s.g.Replace(r.header, ast.NewSeq(elems...))

	kind := RegionTerminal
	if r.hasExit {
		s.g.AddEdge(r.header, r.exit, exitCond)
		kind = RegionAcyclic
	}
	s.collapsed(kind, r.header, r.order, snap)
}
