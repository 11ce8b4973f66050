package structure

import (
	"fmt"
	"strconv"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/graph"
)

// loop is a natural loop ready to be collapsed. exits holds the targets
// control may leave to; with more than one, the loop records the exit taken
// in a flag variable.
type loop struct {
	header  graph.NodeID
	latches []graph.NodeID
	body    graph.NodeSet
	order   []graph.NodeID
	exits   []graph.NodeID
}

func (s *Structurer) structureLoop(n graph.NodeID, back []graph.EdgeID) bool {
	l, ok := s.findLoop(n, back)
	if !ok {
		return false
	}
	s.collapseLoop(l)
	return true
}

// findLoop builds the natural loop of n and absorbs exit targets into it
// until one is left or nothing more can be absorbed.
func (s *Structurer) findLoop(n graph.NodeID, back []graph.EdgeID) (loop, bool) {
	l := loop{header: n}
	for _, e := range back {
		l.latches = appendNode(l.latches, s.g.Source(e))
	}
	l.body = loopBody(s.g, n, back)

	dom := graph.Dominators(s.g, s.entry)
	for m := range l.body {
		if !dom.Dominates(n, m) {
			s.log.Debug("skipping irreducible loop", "header", n.String(), "node", m.String())
			return loop{}, false
		}
	}
	if !graph.Acyclic(s.g, n, func(_ graph.EdgeID, to graph.NodeID) bool {
		return to != n && l.body.Has(to)
	}) {
		// An inner loop has not been collapsed yet.
		return loop{}, false
	}

	l.order = s.regionOrder(n, l.body)
	exits := s.successorsOutside(l.order, l.body)
	for len(exits) > 1 {
		x, ok := s.absorbable(l, exits, dom, true)
		if !ok {
			x, ok = s.absorbable(l, exits, dom, false)
		}
		if !ok {
			s.log.Debug("loop keeps several exits", "header", n.String(), "exits", len(exits))
			break
		}
		l.body.Add(x)
		l.order = s.regionOrder(n, l.body)
		exits = s.successorsOutside(l.order, l.body)
	}
	if len(l.order) != l.body.Len() {
		return loop{}, false
	}
	l.exits = exits
	return l, true
}

// absorbable picks an exit target that can be moved into the loop body: it is
// dominated by the header, entered only from the body and only leads to other
// exit targets. With keepFollow set, the target the header or a latch leaves
// to is kept as the loop follow. Fewer edges from the body win, then the
// target deepest in post-order.
func (s *Structurer) absorbable(l loop, exits []graph.NodeID, dom *graph.DomTree, keepFollow bool) (graph.NodeID, bool) {
	follow, hasFollow := s.naturalExit(l)
	hasFollow = hasFollow && keepFollow
	var best graph.NodeID
	bestIn := -1
	for _, x := range exits {
		if (hasFollow && x == follow) || !dom.Dominates(l.header, x) {
			continue
		}
		in := 0
		ok := true
		for _, e := range s.g.InEdges(x) {
			if !l.body.Has(s.g.Source(e)) {
				ok = false
				break
			}
			in++
		}
		if !ok {
			continue
		}
		for _, v := range s.g.Successors(x) {
			if v == x || !containsNode(exits, v) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if bestIn < 0 || in < bestIn || (in == bestIn && s.post[x] < s.post[best]) {
			best, bestIn = x, in
		}
	}
	return best, bestIn >= 0
}

// naturalExit returns the exit target of the header, or failing that of the
// first latch that leaves the loop.
func (s *Structurer) naturalExit(l loop) (graph.NodeID, bool) {
	for _, u := range append([]graph.NodeID{l.header}, l.latches...) {
		for _, v := range s.g.Successors(u) {
			if !l.body.Has(v) {
				return v, true
			}
		}
	}
	return graph.NodeID{}, false
}

// exitEdge is the condition under which a body node leaves to exits[target].
type exitEdge struct {
	target int
	cond   cond.Condition
}

func (s *Structurer) collapseLoop(l loop) {
	snap := s.snapshot(l.order)
	n := l.header

	exiting := map[graph.NodeID][]exitEdge{}
	var exitingOrder []graph.NodeID
	for _, u := range l.order {
		for i, x := range l.exits {
			var terms []cond.Condition
			for _, e := range s.g.OutEdges(u) {
				if s.g.Target(e) == x {
					terms = append(terms, s.g.Label(e))
				}
			}
			if len(terms) > 0 {
				exiting[u] = append(exiting[u], exitEdge{target: i, cond: cond.NewOr(terms...)})
			}
		}
		if len(exiting[u]) > 0 {
			exitingOrder = append(exitingOrder, u)
		}
	}

	var flag cond.Variable
	if len(l.exits) > 1 {
		flag = s.exitFlag()
	}

	var typ ast.LoopType = ast.Endless{}
	override := map[graph.EdgeID]cond.Condition{}
	skipHeader := false
	if len(l.exits) == 1 {
		if c, bodyEdge, ok := s.preChecked(l, exitingOrder); ok {
			typ = ast.PreChecked{Cond: c}
			override[bodyEdge] = cond.True{}
			skipHeader = true
		} else if c, ok := s.postChecked(l, exitingOrder); ok {
			typ = ast.PostChecked{Cond: c}
		}
	}
	_, endless := typ.(ast.Endless)

	reach := s.reachingConditions(n, l.order, override)
	payloads := s.take(n, l.order)

	var elems []ast.Node
	for _, u := range l.order {
		if u == n && skipHeader {
			continue
		}
		elems = append(elems, ast.Guard(reach[u], payloads[u]))
		if !endless {
			continue
		}
		for _, x := range exiting[u] {
			brk := &ast.Break{}
			if flag != "" {
				brk.Var, brk.Value = flag, strconv.Itoa(x.target)
			}
			elems = append(elems, ast.Guard(cond.NewAnd(reach[u], x.cond), brk))
		}
	}
	s.g.Replace(n, &ast.Loop{Type: typ, Body: ast.NewSeq(elems...)})
	delete(s.loops, n)
	for i, x := range l.exits {
		var c cond.Condition = cond.True{}
		if flag != "" {
			c = cond.Case{Var: flag, Values: cond.NewValueSet(strconv.Itoa(i))}
		}
		s.g.AddEdge(n, x, c)
	}
	s.collapsed(RegionLoop, n, l.order, snap)
}

// exitFlag returns a fresh variable name that no switch in the input uses.
func (s *Structurer) exitFlag() cond.Variable {
	for {
		s.flags++
		v := cond.Variable(fmt.Sprintf("exit%d", s.flags))
		if !s.vars[v] {
			return v
		}
	}
}

// preChecked recognises a while loop: the header is a pure branch block whose
// only job is to choose between one body edge and the loop exit.
func (s *Structurer) preChecked(l loop, exiting []graph.NodeID) (cond.Condition, graph.EdgeID, bool) {
	n := l.header
	if len(exiting) != 1 || exiting[0] != n || containsNode(l.latches, n) || len(l.order) < 2 {
		return nil, graph.EdgeID{}, false
	}
	b, ok := s.g.Node(n).(*ast.BasicBlock)
	if !ok || !b.Pure {
		return nil, graph.EdgeID{}, false
	}
	out := s.g.OutEdges(n)
	if len(out) != 2 {
		return nil, graph.EdgeID{}, false
	}
	var bodyEdge graph.EdgeID
	bodyEdges := 0
	for _, e := range out {
		if t := s.g.Target(e); l.body.Has(t) {
			bodyEdge = e
			bodyEdges++
		}
	}
	if bodyEdges != 1 {
		return nil, graph.EdgeID{}, false
	}
	return s.g.Label(bodyEdge), bodyEdge, true
}

// postChecked recognises a do-while loop: a single latch at the end of the
// body that either jumps back to the header or leaves the loop.
func (s *Structurer) postChecked(l loop, exiting []graph.NodeID) (cond.Condition, bool) {
	if len(l.latches) != 1 || len(exiting) != 1 {
		return nil, false
	}
	latch := l.latches[0]
	if exiting[0] != latch || l.order[len(l.order)-1] != latch {
		return nil, false
	}
	out := s.g.OutEdges(latch)
	if len(out) != 2 {
		return nil, false
	}
	var c cond.Condition
	for _, e := range out {
		switch s.g.Target(e) {
		case l.header:
			c = s.g.Label(e)
		case l.exits[0]:
		default:
			return nil, false
		}
	}
	if c == nil {
		return nil, false
	}
	return c, true
}

func appendNode(ids []graph.NodeID, id graph.NodeID) []graph.NodeID {
	if containsNode(ids, id) {
		return ids
	}
	return append(ids, id)
}

func containsNode(ids []graph.NodeID, id graph.NodeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
