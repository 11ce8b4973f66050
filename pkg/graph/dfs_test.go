package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build creates a graph with nodes named by labels and edges given as
// "from>to" pairs; the first label is the entry.
func build(t *testing.T, labels []string, edges ...[2]string) (*Graph[string, string], map[string]NodeID) {
	t.Helper()
	g := New[string, string]()
	ids := make(map[string]NodeID)
	for _, l := range labels {
		ids[l] = g.AddNode(l)
	}
	g.SetEntry(ids[labels[0]])
	for _, e := range edges {
		from, ok := ids[e[0]]
		require.True(t, ok)
		to, ok := ids[e[1]]
		require.True(t, ok)
		g.AddEdge(from, to, e[0]+">"+e[1])
	}
	return g, ids
}

func names(g *Graph[string, string], ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.Node(id)
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		labels    []string
		edges     [][2]string
		wantOrder []string
		wantBack  map[string][]string
	}{
		{
			name:      "straight line",
			labels:    []string{"A", "B", "C"},
			edges:     [][2]string{{"A", "B"}, {"B", "C"}},
			wantOrder: []string{"C", "B", "A"},
			wantBack:  map[string][]string{},
		},
		{
			name:      "diamond",
			labels:    []string{"H", "A", "B", "S"},
			edges:     [][2]string{{"H", "A"}, {"H", "B"}, {"A", "S"}, {"B", "S"}},
			wantOrder: []string{"S", "A", "B", "H"},
			wantBack:  map[string][]string{},
		},
		{
			name:      "loop",
			labels:    []string{"E", "H", "B", "X"},
			edges:     [][2]string{{"E", "H"}, {"H", "B"}, {"B", "H"}, {"H", "X"}},
			wantOrder: []string{"B", "X", "H", "E"},
			wantBack:  map[string][]string{"H": {"B>H"}},
		},
		{
			name:      "self loop",
			labels:    []string{"A"},
			edges:     [][2]string{{"A", "A"}},
			wantOrder: []string{"A"},
			wantBack:  map[string][]string{"A": {"A>A"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ids := build(t, tt.labels, tt.edges...)
			cls := Classify(g, ids[tt.labels[0]])
			assert.Equal(t, tt.wantOrder, names(g, cls.PostOrder))

			got := map[string][]string{}
			for target, edges := range cls.BackEdges {
				for _, e := range edges {
					got[g.Node(target)] = append(got[g.Node(target)], g.Label(e))
				}
			}
			assert.Equal(t, tt.wantBack, got)
			for target := range tt.wantBack {
				assert.True(t, cls.IsBackEdgeTarget(ids[target]))
			}
		})
	}
}

func TestClassifyDeepChain(t *testing.T) {
	g := New[int, struct{}]()
	const n = 200000
	prev := g.AddNode(0)
	g.SetEntry(prev)
	for i := 1; i < n; i++ {
		next := g.AddNode(i)
		g.AddEdge(prev, next, struct{}{})
		prev = next
	}
	entry, _ := g.Entry()
	cls := Classify(g, entry)
	assert.Len(t, cls.PostOrder, n)
	assert.Equal(t, n-1, g.Node(cls.PostOrder[0]))
}

func TestPostOrderFrom(t *testing.T) {
	g, ids := build(t, []string{"H", "A", "B", "S"},
		[2]string{"H", "A"}, [2]string{"H", "B"}, [2]string{"A", "S"}, [2]string{"B", "S"})

	order := PostOrderFrom(g, ids["H"], func(_ EdgeID, to NodeID) bool { return to != ids["S"] })
	reverse(order)
	assert.Equal(t, []string{"H", "A", "B"}, names(g, order))

	rpo := ReversePostOrder(g, ids["H"])
	require.Len(t, rpo, 4)
	assert.Equal(t, ids["H"], rpo[0])
	assert.Equal(t, ids["S"], rpo[3])
	assert.Equal(t, 4, Reachable(g, ids["H"], nil).Len())
	assert.Equal(t, 1, Reachable(g, ids["B"], func(_ EdgeID, to NodeID) bool { return false }).Len())
}

func TestAcyclic(t *testing.T) {
	g, ids := build(t, []string{"H", "A", "B"},
		[2]string{"H", "A"}, [2]string{"A", "B"}, [2]string{"B", "H"})

	assert.False(t, Acyclic(g, ids["H"], nil))
	assert.True(t, Acyclic(g, ids["H"], func(_ EdgeID, to NodeID) bool { return to != ids["H"] }))
}
