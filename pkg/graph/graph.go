// Package graph provides a mutable directed graph with stable node and edge
// identities, together with the traversals the structuring engine needs:
// dominators and a depth-first classifier.
//
// Nodes and edges live in arenas addressed by generation-checked IDs.
// Removing a node or edge invalidates only that ID; every other ID stays
// valid, so callers can hold on to a region while rewriting its neighbours.
package graph

import "fmt"

// NodeID identifies a node slot and the generation it was allocated in.
type NodeID struct {
	index uint32
	gen   uint32
}

// Index returns the arena slot of the node. Slots are reused after removal,
// so the index alone is not a stable identity.
func (id NodeID) Index() int { return int(id.index) }

func (id NodeID) String() string { return fmt.Sprintf("n%d.%d", id.index, id.gen) }

// EdgeID identifies an edge slot and the generation it was allocated in.
type EdgeID struct {
	index uint32
	gen   uint32
}

func (id EdgeID) String() string { return fmt.Sprintf("e%d.%d", id.index, id.gen) }

type nodeSlot[N any] struct {
	gen     uint32
	alive   bool
	payload N
	out     []EdgeID
	in      []EdgeID
}

type edgeSlot[E any] struct {
	gen   uint32
	alive bool
	src   NodeID
	dst   NodeID
	label E
}

// Graph is a directed multigraph with node payloads of type N and edge labels
// of type E. It is not safe for concurrent use.
type Graph[N, E any] struct {
	nodes     []nodeSlot[N]
	edges     []edgeSlot[E]
	freeNodes []uint32
	freeEdges []uint32
	nodeCount int
	edgeCount int
	entry     NodeID
	hasEntry  bool
}

// New creates an empty graph.
func New[N, E any]() *Graph[N, E] {
	return &Graph[N, E]{}
}

// AddNode inserts a node and returns its ID.
func (g *Graph[N, E]) AddNode(payload N) NodeID {
	var idx uint32
	if n := len(g.freeNodes); n > 0 {
		idx = g.freeNodes[n-1]
		g.freeNodes = g.freeNodes[:n-1]
	} else {
		idx = uint32(len(g.nodes))
		g.nodes = append(g.nodes, nodeSlot[N]{})
	}
	slot := &g.nodes[idx]
	slot.alive = true
	slot.payload = payload
	slot.out = nil
	slot.in = nil
	g.nodeCount++
	return NodeID{index: idx, gen: slot.gen}
}

// Contains reports whether id refers to a live node.
func (g *Graph[N, E]) Contains(id NodeID) bool {
	if int(id.index) >= len(g.nodes) {
		return false
	}
	slot := &g.nodes[id.index]
	return slot.alive && slot.gen == id.gen
}

// HasEdge reports whether id refers to a live edge.
func (g *Graph[N, E]) HasEdge(id EdgeID) bool {
	if int(id.index) >= len(g.edges) {
		return false
	}
	slot := &g.edges[id.index]
	return slot.alive && slot.gen == id.gen
}

func (g *Graph[N, E]) node(id NodeID) *nodeSlot[N] {
	if !g.Contains(id) {
		panic(fmt.Sprintf("graph: use of removed node %s", id))
	}
	return &g.nodes[id.index]
}

func (g *Graph[N, E]) edge(id EdgeID) *edgeSlot[E] {
	if !g.HasEdge(id) {
		panic(fmt.Sprintf("graph: use of removed edge %s", id))
	}
	return &g.edges[id.index]
}

// RemoveNode deletes a node together with all its incident edges and returns
// its payload. The boolean is false when id was already removed.
func (g *Graph[N, E]) RemoveNode(id NodeID) (N, bool) {
	var zero N
	if !g.Contains(id) {
		return zero, false
	}
	slot := &g.nodes[id.index]
	for len(slot.out) > 0 {
		g.RemoveEdge(slot.out[len(slot.out)-1])
	}
	for len(slot.in) > 0 {
		g.RemoveEdge(slot.in[len(slot.in)-1])
	}
	payload := slot.payload
	slot.payload = zero
	slot.alive = false
	slot.gen++
	g.freeNodes = append(g.freeNodes, id.index)
	g.nodeCount--
	if g.hasEntry && g.entry == id {
		g.hasEntry = false
	}
	return payload, true
}

// AddEdge inserts an edge from src to dst. Both nodes must be live.
func (g *Graph[N, E]) AddEdge(src, dst NodeID, label E) EdgeID {
	s := g.node(src)
	g.node(dst)

	var idx uint32
	if n := len(g.freeEdges); n > 0 {
		idx = g.freeEdges[n-1]
		g.freeEdges = g.freeEdges[:n-1]
	} else {
		idx = uint32(len(g.edges))
		g.edges = append(g.edges, edgeSlot[E]{})
	}
	slot := &g.edges[idx]
	slot.alive = true
	slot.src = src
	slot.dst = dst
	slot.label = label
	id := EdgeID{index: idx, gen: slot.gen}

	s.out = append(s.out, id)
	d := &g.nodes[dst.index]
	d.in = append(d.in, id)
	g.edgeCount++
	return id
}

// RemoveEdge deletes an edge and returns its label. The boolean is false when
// id was already removed.
func (g *Graph[N, E]) RemoveEdge(id EdgeID) (E, bool) {
	var zero E
	if !g.HasEdge(id) {
		return zero, false
	}
	slot := &g.edges[id.index]
	src := &g.nodes[slot.src.index]
	src.out = removeEdgeID(src.out, id)
	dst := &g.nodes[slot.dst.index]
	dst.in = removeEdgeID(dst.in, id)

	label := slot.label
	slot.label = zero
	slot.alive = false
	slot.gen++
	g.freeEdges = append(g.freeEdges, id.index)
	g.edgeCount--
	return label, true
}

// removeEdgeID deletes id from ids preserving order.
func removeEdgeID(ids []EdgeID, id EdgeID) []EdgeID {
	for i, e := range ids {
		if e == id {
			copy(ids[i:], ids[i+1:])
			return ids[:len(ids)-1]
		}
	}
	return ids
}

// Replace swaps the payload of a live node and returns the previous one.
// Edges are left untouched.
func (g *Graph[N, E]) Replace(id NodeID, payload N) N {
	slot := g.node(id)
	old := slot.payload
	slot.payload = payload
	return old
}

// Node returns the payload of a live node.
func (g *Graph[N, E]) Node(id NodeID) N {
	return g.node(id).payload
}

// Edge returns the endpoints and label of a live edge.
func (g *Graph[N, E]) Edge(id EdgeID) (src, dst NodeID, label E) {
	slot := g.edge(id)
	return slot.src, slot.dst, slot.label
}

// Source returns the source node of a live edge.
func (g *Graph[N, E]) Source(id EdgeID) NodeID { return g.edge(id).src }

// Target returns the target node of a live edge.
func (g *Graph[N, E]) Target(id EdgeID) NodeID { return g.edge(id).dst }

// Label returns the label of a live edge.
func (g *Graph[N, E]) Label(id EdgeID) E { return g.edge(id).label }

// OutEdges returns the outgoing edges of a node in insertion order.
// The returned slice is a copy.
func (g *Graph[N, E]) OutEdges(id NodeID) []EdgeID {
	return append([]EdgeID(nil), g.node(id).out...)
}

// InEdges returns the incoming edges of a node in insertion order.
// The returned slice is a copy.
func (g *Graph[N, E]) InEdges(id NodeID) []EdgeID {
	return append([]EdgeID(nil), g.node(id).in...)
}

// OutDegree returns the number of outgoing edges of a node.
func (g *Graph[N, E]) OutDegree(id NodeID) int { return len(g.node(id).out) }

// InDegree returns the number of incoming edges of a node.
func (g *Graph[N, E]) InDegree(id NodeID) int { return len(g.node(id).in) }

// Successors returns the distinct targets of a node's outgoing edges in
// first-seen order.
func (g *Graph[N, E]) Successors(id NodeID) []NodeID {
	slot := g.node(id)
	out := make([]NodeID, 0, len(slot.out))
	for _, e := range slot.out {
		out = appendUnique(out, g.edges[e.index].dst)
	}
	return out
}

// Predecessors returns the distinct sources of a node's incoming edges in
// first-seen order.
func (g *Graph[N, E]) Predecessors(id NodeID) []NodeID {
	slot := g.node(id)
	out := make([]NodeID, 0, len(slot.in))
	for _, e := range slot.in {
		out = appendUnique(out, g.edges[e.index].src)
	}
	return out
}

func appendUnique(ids []NodeID, id NodeID) []NodeID {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

// Nodes returns all live nodes ordered by slot index.
func (g *Graph[N, E]) Nodes() []NodeID {
	out := make([]NodeID, 0, g.nodeCount)
	for i := range g.nodes {
		if g.nodes[i].alive {
			out = append(out, NodeID{index: uint32(i), gen: g.nodes[i].gen})
		}
	}
	return out
}

// Edges returns all live edges ordered by slot index.
func (g *Graph[N, E]) Edges() []EdgeID {
	out := make([]EdgeID, 0, g.edgeCount)
	for i := range g.edges {
		if g.edges[i].alive {
			out = append(out, EdgeID{index: uint32(i), gen: g.edges[i].gen})
		}
	}
	return out
}

// Len returns the number of live nodes.
func (g *Graph[N, E]) Len() int { return g.nodeCount }

// EdgeLen returns the number of live edges.
func (g *Graph[N, E]) EdgeLen() int { return g.edgeCount }

// SetEntry marks a live node as the graph entry.
func (g *Graph[N, E]) SetEntry(id NodeID) {
	g.node(id)
	g.entry = id
	g.hasEntry = true
}

// Entry returns the entry node. The boolean is false when no entry is set or
// the entry was removed.
func (g *Graph[N, E]) Entry() (NodeID, bool) {
	if !g.hasEntry || !g.Contains(g.entry) {
		return NodeID{}, false
	}
	return g.entry, true
}

// NodeSet is a set of node IDs.
type NodeSet map[NodeID]struct{}

// NewNodeSet returns a set holding ids.
func NewNodeSet(ids ...NodeID) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s NodeSet) Add(id NodeID) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s NodeSet) Has(id NodeID) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of members.
func (s NodeSet) Len() int { return len(s) }
