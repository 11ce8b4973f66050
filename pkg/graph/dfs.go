package graph

// Classification is the result of a depth-first walk from the entry.
type Classification struct {
	// BackEdges maps a node to the edges that reach it from a node still on
	// the DFS path, i.e. the edges closing a cycle through it.
	BackEdges map[NodeID][]EdgeID

	// PostOrder lists reachable nodes in the order they finished.
	PostOrder []NodeID
}

// IsBackEdgeTarget reports whether n was the target of at least one back edge.
func (c Classification) IsBackEdgeTarget(n NodeID) bool {
	return len(c.BackEdges[n]) > 0
}

const (
	undiscovered uint8 = iota
	discovered
	finished
)

type dfsFrame struct {
	node NodeID
	next int
}

// Classify runs one depth-first walk from entry and records both the
// post-order trace and the back edges, keyed by their target.
//
// The walk keeps an explicit stack of (node, next out-edge) frames so its
// stack usage does not depend on the length of paths in the graph. Out-edges
// are visited in insertion order, which makes the result deterministic.
func Classify[N, E any](g *Graph[N, E], entry NodeID) Classification {
	res := Classification{BackEdges: make(map[NodeID][]EdgeID)}
	mark := make(map[NodeID]uint8, g.Len())

	stack := []dfsFrame{{node: entry}}
	mark[entry] = discovered
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := g.node(top.node).out
		if top.next < len(out) {
			e := out[top.next]
			top.next++
			v := g.edges[e.index].dst
			switch mark[v] {
			case undiscovered:
				mark[v] = discovered
				stack = append(stack, dfsFrame{node: v})
			case discovered:
				res.BackEdges[v] = append(res.BackEdges[v], e)
			}
			continue
		}
		mark[top.node] = finished
		res.PostOrder = append(res.PostOrder, top.node)
		stack = stack[:len(stack)-1]
	}
	return res
}

// PostOrderFrom returns the post-order of nodes reachable from start. An
// edge is followed only when follow returns true for it; a nil follow
// accepts every edge.
//
// Out-edges are visited newest first, so the reverse of the result lists
// sibling branches in the order their edges were added.
func PostOrderFrom[N, E any](g *Graph[N, E], start NodeID, follow func(e EdgeID, to NodeID) bool) []NodeID {
	var order []NodeID
	seen := NewNodeSet(start)
	stack := []dfsFrame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := g.node(top.node).out
		if top.next < len(out) {
			e := out[len(out)-1-top.next]
			top.next++
			v := g.edges[e.index].dst
			if seen.Has(v) {
				continue
			}
			if follow != nil && !follow(e, v) {
				continue
			}
			seen.Add(v)
			stack = append(stack, dfsFrame{node: v})
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// ReversePostOrder returns the nodes reachable from root in reverse
// post-order.
func ReversePostOrder[N, E any](g *Graph[N, E], root NodeID) []NodeID {
	order := PostOrderFrom(g, root, nil)
	reverse(order)
	return order
}

// Reachable returns the set of nodes reachable from start through edges
// accepted by follow.
func Reachable[N, E any](g *Graph[N, E], start NodeID, follow func(e EdgeID, to NodeID) bool) NodeSet {
	return NewNodeSet(PostOrderFrom(g, start, follow)...)
}

func reverse(ids []NodeID) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// Acyclic reports whether the subgraph reachable from start through edges
// accepted by follow contains no cycle.
func Acyclic[N, E any](g *Graph[N, E], start NodeID, follow func(e EdgeID, to NodeID) bool) bool {
	mark := map[NodeID]uint8{start: discovered}
	stack := []dfsFrame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		out := g.node(top.node).out
		if top.next < len(out) {
			e := out[top.next]
			top.next++
			v := g.edges[e.index].dst
			if follow != nil && !follow(e, v) {
				continue
			}
			switch mark[v] {
			case undiscovered:
				mark[v] = discovered
				stack = append(stack, dfsFrame{node: v})
			case discovered:
				return false
			}
			continue
		}
		mark[top.node] = finished
		stack = stack[:len(stack)-1]
	}
	return true
}
