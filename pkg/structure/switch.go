package structure

import (
	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/graph"
)

// arm collects the case edges from a dispatch node to one target.
type arm struct {
	target graph.NodeID
	values cond.ValueSet
}

// dispatch is the decoded out-edge set of a switch head.
type dispatch struct {
	variable   cond.Variable
	arms       []arm
	def        graph.NodeID
	hasDefault bool
}

// decodeDispatch reports whether every out-edge of n carries a case
// condition on one variable and returns the arms grouped by target.
func (s *Structurer) decodeDispatch(n graph.NodeID) (dispatch, bool) {
	var d dispatch
	out := s.g.OutEdges(n)
	if len(out) < 2 {
		return d, false
	}
	for i, e := range out {
		c, ok := s.g.Label(e).(cond.Case)
		if !ok {
			return d, false
		}
		if i == 0 {
			d.variable = c.Var
		} else if c.Var != d.variable {
			return d, false
		}
		t := s.g.Target(e)
		if c.Default {
			if d.hasDefault && d.def != t {
				return d, false
			}
			d.def, d.hasDefault = t, true
			continue
		}
		merged := false
		for j := range d.arms {
			if d.arms[j].target == t {
				d.arms[j].values = d.arms[j].values.Union(c.Values)
				merged = true
				break
			}
		}
		if !merged {
			d.arms = append(d.arms, arm{target: t, values: cond.NewValueSet(c.Values...)})
		}
	}

	// Explicit values routed to the default target are covered by default.
	if d.hasDefault {
		kept := d.arms[:0]
		for _, a := range d.arms {
			if a.target != d.def {
				kept = append(kept, a)
			}
		}
		d.arms = kept
	}
	for i := range d.arms {
		for j := i + 1; j < len(d.arms); j++ {
			if !d.arms[i].values.Disjoint(d.arms[j].values) {
				return d, false
			}
		}
	}
	return d, len(d.targets()) >= 2
}

func (d dispatch) targets() []graph.NodeID {
	var ts []graph.NodeID
	for _, a := range d.arms {
		ts = appendNode(ts, a.target)
	}
	if d.hasDefault {
		ts = appendNode(ts, d.def)
	}
	return ts
}

func (s *Structurer) structureSwitch(n graph.NodeID) bool {
	d, ok := s.decodeDispatch(n)
	if !ok {
		return false
	}
	dom := graph.Dominators(s.g, s.entry)

	var bodies, follows []graph.NodeID
	for _, t := range d.targets() {
		if t == n {
			return false
		}
		preds := s.g.Predecessors(t)
		if len(preds) == 1 && preds[0] == n && dom.Dominates(n, t) {
			bodies = append(bodies, t)
			continue
		}
		follows = appendNode(follows, t)
	}
	for _, b := range bodies {
		for _, v := range s.g.Successors(b) {
			if v == n || containsNode(bodies, v) {
				return false
			}
			follows = appendNode(follows, v)
		}
	}
	if len(follows) > 1 || len(bodies) == 0 {
		return false
	}
	if !s.sameLoops(n, bodies) {
		return false
	}

	region := append([]graph.NodeID{n}, bodies...)
	snap := s.snapshot(region)
	payloads := s.take(n, region)
	body := func(t graph.NodeID) ast.Node {
		if p, ok := payloads[t]; ok {
			return p
		}
		return &ast.Seq{}
	}
	sw := &ast.Switch{Var: d.variable}
	for _, a := range d.arms {
		sw.Cases = append(sw.Cases, ast.Case{Values: a.values, Body: body(a.target)})
	}
	if d.hasDefault && containsNode(bodies, d.def) {
		sw.Default = payloads[d.def]
	}
	s.g.Replace(n, ast.NewSeq(payloads[n], sw))
	if len(follows) == 1 {
		s.g.AddEdge(n, follows[0], cond.True{})
	}
	s.collapsed(RegionSwitch, n, region, snap)
	return true
}
