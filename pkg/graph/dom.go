package graph

// DomTree holds the immediate dominators of every node reachable from a root.
// It describes one snapshot of a graph; any structural change to the graph
// invalidates it.
type DomTree struct {
	root  NodeID
	idom  map[NodeID]NodeID
	order map[NodeID]int // reverse post-order number
	nodes []NodeID       // reachable nodes in reverse post-order
}

// Dominators computes the dominator tree of g rooted at root using Cooper,
// Harvey and Kennedy's "A Simple, Fast Dominance Algorithm".
func Dominators[N, E any](g *Graph[N, E], root NodeID) *DomTree {
	rpo := ReversePostOrder(g, root)
	t := &DomTree{
		root:  root,
		idom:  make(map[NodeID]NodeID, len(rpo)),
		order: make(map[NodeID]int, len(rpo)),
		nodes: rpo,
	}
	for i, n := range rpo {
		t.order[n] = i
	}

	// The root is its own sentinel dominator while iterating.
	t.idom[root] = root

	intersect := func(b1, b2 NodeID) NodeID {
		for b1 != b2 {
			for t.order[b1] > t.order[b2] {
				b1 = t.idom[b1]
			}
			for t.order[b2] > t.order[b1] {
				b2 = t.idom[b2]
			}
		}
		return b1
	}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom NodeID
			found := false
			for _, p := range g.Predecessors(b) {
				if _, ok := t.idom[p]; !ok {
					continue
				}
				if !found {
					newIdom = p
					found = true
					continue
				}
				newIdom = intersect(p, newIdom)
			}
			if !found {
				continue
			}
			if cur, ok := t.idom[b]; !ok || cur != newIdom {
				t.idom[b] = newIdom
				changed = true
			}
		}
	}
	return t
}

// Root returns the node the tree was computed from.
func (t *DomTree) Root() NodeID { return t.root }

// Reachable reports whether n was reachable from the root.
func (t *DomTree) Reachable(n NodeID) bool {
	_, ok := t.order[n]
	return ok
}

// Idom returns the immediate dominator of n. The boolean is false for the
// root and for unreachable nodes.
func (t *DomTree) Idom(n NodeID) (NodeID, bool) {
	if n == t.root {
		return NodeID{}, false
	}
	d, ok := t.idom[n]
	return d, ok
}

// Dominates reports whether a dominates b. Every reachable node dominates
// itself; unreachable nodes dominate nothing and are dominated by nothing.
func (t *DomTree) Dominates(a, b NodeID) bool {
	if !t.Reachable(a) || !t.Reachable(b) {
		return false
	}
	for {
		if b == a {
			return true
		}
		if b == t.root {
			return false
		}
		b = t.idom[b]
	}
}

// Dominators returns the dominators of n from n up to the root.
func (t *DomTree) Dominators(n NodeID) []NodeID {
	if !t.Reachable(n) {
		return nil
	}
	out := []NodeID{n}
	for n != t.root {
		n = t.idom[n]
		out = append(out, n)
	}
	return out
}

// DominatesSet returns every node dominated by h, h included.
func (t *DomTree) DominatesSet(h NodeID) NodeSet {
	set := make(NodeSet)
	if !t.Reachable(h) {
		return set
	}
	// Reverse post-order visits every dominator before the nodes it
	// dominates, so one forward sweep suffices.
	set.Add(h)
	for _, n := range t.nodes[t.order[h]+1:] {
		if set.Has(t.idom[n]) {
			set.Add(n)
		}
	}
	return set
}

// DominatesSet computes the dominator tree of g from root and returns every
// node dominated by h.
func DominatesSet[N, E any](g *Graph[N, E], root, h NodeID) NodeSet {
	return Dominators(g, root).DominatesSet(h)
}
