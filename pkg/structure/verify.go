package structure

import (
	"fmt"

	"github.com/l3aro/restruct/pkg/graph"
)

// snapshot is the state a collapse is checked against: the graph size and,
// in verify mode, the edges crossing the region's border seen from outside.
type snapshot struct {
	size   int
	region graph.NodeSet
	// in counts the edges entering the region per outside source.
	in map[graph.NodeID]int
	// out holds the outside targets of edges leaving the region.
	out graph.NodeSet
}

func (s *Structurer) snapshot(region []graph.NodeID) snapshot {
	snap := snapshot{size: s.size()}
	if !s.verify {
		return snap
	}
	snap.region = graph.NewNodeSet(region...)
	snap.in = map[graph.NodeID]int{}
	snap.out = graph.NewNodeSet()
	for _, m := range region {
		for _, e := range s.g.InEdges(m) {
			if p := s.g.Source(e); !snap.region.Has(p) {
				snap.in[p]++
			}
		}
		for _, v := range s.g.Successors(m) {
			if !snap.region.Has(v) {
				snap.out.Add(v)
			}
		}
	}
	return snap
}

// checkInvariants panics if the graph is no longer well formed after the
// collapse headed by header, if the collapse did not shrink it, or if it
// changed an edge crossing the region border. Edges entering the region keep
// their sources and count; edges leaving it keep their targets, with
// parallel edges to one target merged.
func (s *Structurer) checkInvariants(header graph.NodeID, snap snapshot) {
	if after := s.size(); after >= snap.size {
		panic(fmt.Sprintf("structure: collapse did not shrink the graph (%d -> %d)", snap.size, after))
	}
	if !s.g.Contains(s.entry) {
		panic("structure: entry node removed")
	}
	for _, e := range s.g.Edges() {
		src, dst, label := s.g.Edge(e)
		if !s.g.Contains(src) || !s.g.Contains(dst) {
			panic(fmt.Sprintf("structure: edge %s has a removed endpoint", e))
		}
		if label == nil {
			panic(fmt.Sprintf("structure: edge %s has no condition", e))
		}
	}
	for _, n := range s.g.Nodes() {
		if s.g.Node(n) == nil {
			panic(fmt.Sprintf("structure: node %s has no payload", n))
		}
	}
	reach := graph.Reachable(s.g, s.entry, nil)
	if reach.Len() != s.g.Len() {
		panic(fmt.Sprintf("structure: %d nodes unreachable after collapse", s.g.Len()-reach.Len()))
	}
	s.checkBoundary(header, snap)
}

func (s *Structurer) checkBoundary(header graph.NodeID, snap snapshot) {
	for m := range snap.region {
		if m != header && s.g.Contains(m) {
			panic(fmt.Sprintf("structure: region node %s survived the collapse", m))
		}
	}
	in := map[graph.NodeID]int{}
	for _, e := range s.g.InEdges(header) {
		if p := s.g.Source(e); p != header {
			in[p]++
		}
	}
	if len(in) != len(snap.in) {
		panic(fmt.Sprintf("structure: region %s has %d outside predecessors, want %d", header, len(in), len(snap.in)))
	}
	for p, n := range snap.in {
		if in[p] != n {
			panic(fmt.Sprintf("structure: %d edges %s -> %s after collapse, want %d", in[p], p, header, n))
		}
	}
	out := graph.NewNodeSet()
	for _, v := range s.g.Successors(header) {
		if v == header {
			panic(fmt.Sprintf("structure: region %s kept an internal edge", header))
		}
		out.Add(v)
	}
	if out.Len() != snap.out.Len() {
		panic(fmt.Sprintf("structure: region %s leaves to %d targets, want %d", header, out.Len(), snap.out.Len()))
	}
	for v := range snap.out {
		if !out.Has(v) {
			panic(fmt.Sprintf("structure: region %s lost its edge to %s", header, v))
		}
	}
}
