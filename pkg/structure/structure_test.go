package structure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/graph"
)

type testEdge struct {
	from, to string
	c        cond.Condition
}

func edge(from, to string) testEdge { return testEdge{from: from, to: to, c: cond.True{}} }

func when(from, to, label string) testEdge {
	return testEdge{from: from, to: to, c: cond.NewSimple(label)}
}

func unless(from, to, label string) testEdge {
	return testEdge{from: from, to: to, c: cond.Negate(cond.NewSimple(label))}
}

func caseOf(from, to, v string, values ...string) testEdge {
	return testEdge{from: from, to: to, c: cond.Case{Var: cond.Variable(v), Values: cond.NewValueSet(values...)}}
}

func defaultOf(from, to, v string) testEdge {
	return testEdge{from: from, to: to, c: cond.Case{Var: cond.Variable(v), Default: true}}
}

// block is a test block. Pure blocks only evaluate their branch and may be
// folded into a while condition.
type block struct {
	label string
	pure  bool
}

// buildGraph creates a graph whose first block is the entry.
func buildGraph(t *testing.T, blocks []block, edges ...testEdge) (*CFG, map[string]graph.NodeID) {
	t.Helper()
	g := NewCFG()
	ids := make(map[string]graph.NodeID, len(blocks))
	for i, b := range blocks {
		n := ast.NewBlock(b.label)
		n.Pure = b.pure
		ids[b.label] = g.AddNode(n)
		if i == 0 {
			g.SetEntry(ids[b.label])
		}
	}
	for _, e := range edges {
		from, ok := ids[e.from]
		require.True(t, ok, "unknown block %s", e.from)
		to, ok := ids[e.to]
		require.True(t, ok, "unknown block %s", e.to)
		g.AddEdge(from, to, e.c)
	}
	return g, ids
}

func blocks(labels ...string) []block {
	out := make([]block, len(labels))
	for i, l := range labels {
		out[i] = block{label: l}
	}
	return out
}

func branch(label string) block { return block{label: label, pure: true} }

func TestStructureScenarios(t *testing.T) {
	tests := []struct {
		name   string
		blocks []block
		edges  []testEdge
		want   string
	}{
		{
			name:   "single block",
			blocks: blocks("A"),
			want:   "A",
		},
		{
			name:   "straight line",
			blocks: blocks("A", "B", "C"),
			edges:  []testEdge{edge("A", "B"), edge("B", "C")},
			want:   "Seq[A, B, C]",
		},
		{
			name:   "if/else diamond",
			blocks: blocks("H", "A", "B", "S"),
			edges: []testEdge{
				when("H", "A", "c"), unless("H", "B", "c"),
				edge("A", "S"), edge("B", "S"),
			},
			want: "Seq[H, Cond(c, A), Cond(!c, B), S]",
		},
		{
			name:   "if without else",
			blocks: blocks("H", "A", "S"),
			edges: []testEdge{
				when("H", "A", "c"), unless("H", "S", "c"),
				edge("A", "S"),
			},
			want: "Seq[H, Cond(c, A), S]",
		},
		{
			name:   "early return",
			blocks: blocks("H", "R", "A", "S"),
			edges: []testEdge{
				when("H", "R", "c"), unless("H", "A", "c"),
				edge("A", "S"),
			},
			want: "Seq[H, Cond(!c, Seq[A, S]), Cond(c, R)]",
		},
		{
			name:   "while loop",
			blocks: []block{{label: "E"}, branch("H"), {label: "B"}, {label: "X"}},
			edges: []testEdge{
				edge("E", "H"),
				when("H", "B", "c"), unless("H", "X", "c"),
				edge("B", "H"),
			},
			want: "Seq[E, Loop(while c, B), X]",
		},
		{
			name:   "while loop with opaque header",
			blocks: blocks("E", "H", "B", "X"),
			edges: []testEdge{
				edge("E", "H"),
				when("H", "B", "c"), unless("H", "X", "c"),
				edge("B", "H"),
			},
			want: "Seq[E, Loop(endless, Seq[H, Cond(!c, Break), Cond(c, B)]), X]",
		},
		{
			name:   "do-while loop",
			blocks: blocks("E", "A", "B", "X"),
			edges: []testEdge{
				edge("E", "A"), edge("A", "B"),
				when("B", "A", "c"), unless("B", "X", "c"),
			},
			want: "Seq[E, Loop(do-while c, Seq[A, B]), X]",
		},
		{
			name:   "self loop",
			blocks: blocks("E", "L", "X"),
			edges: []testEdge{
				edge("E", "L"),
				when("L", "L", "c"), unless("L", "X", "c"),
			},
			want: "Seq[E, Loop(do-while c, L), X]",
		},
		{
			name:   "endless loop with break",
			blocks: blocks("E", "H", "A", "B", "X"),
			edges: []testEdge{
				edge("E", "H"), edge("H", "A"),
				when("A", "X", "b"), unless("A", "B", "b"),
				edge("B", "H"),
			},
			want: "Seq[E, Loop(endless, Seq[H, A, Cond(b, Break), Cond(!b, B)]), X]",
		},
		{
			name:   "endless loop without exit",
			blocks: blocks("E", "H", "A"),
			edges:  []testEdge{edge("E", "H"), edge("H", "A"), edge("A", "H")},
			want:   "Seq[E, Loop(endless, Seq[H, A])]",
		},
		{
			name: "nested loops",
			blocks: []block{
				{label: "E"}, {label: "H1"}, branch("H2"), {label: "B"}, {label: "L"}, {label: "X"},
			},
			edges: []testEdge{
				edge("E", "H1"), edge("H1", "H2"),
				when("H2", "B", "c2"), edge("B", "H2"),
				unless("H2", "L", "c2"),
				when("L", "H1", "c1"), unless("L", "X", "c1"),
			},
			want: "Seq[E, Loop(do-while c1, Seq[H1, Loop(while c2, B), L]), X]",
		},
		{
			name:   "return inside loop",
			blocks: []block{{label: "E"}, branch("H"), {label: "A"}, {label: "R"}, {label: "B"}, {label: "X"}},
			edges: []testEdge{
				edge("E", "H"),
				when("H", "A", "c"), unless("H", "X", "c"),
				when("A", "R", "r"), unless("A", "B", "r"),
				edge("B", "H"),
			},
			want: "Seq[E, Loop(while c, Seq[A, Cond(r, R), Cond(!r, B)]), X]",
		},
		{
			name:   "switch with default",
			blocks: blocks("H", "A", "B", "C", "S"),
			edges: []testEdge{
				caseOf("H", "A", "x", "1"),
				caseOf("H", "B", "x", "2", "3"),
				defaultOf("H", "C", "x"),
				edge("A", "S"), edge("B", "S"), edge("C", "S"),
			},
			want: "Seq[H, Switch(x, {1}: A, {2, 3}: B, default: C), S]",
		},
		{
			name:   "switch case jumping to follow",
			blocks: blocks("H", "A", "S"),
			edges: []testEdge{
				caseOf("H", "A", "x", "1"),
				caseOf("H", "S", "x", "2"),
				edge("A", "S"),
			},
			want: "Seq[H, Switch(x, {1}: A, {2}: Seq[]), S]",
		},
		{
			name:   "switch merging edges to one target",
			blocks: blocks("H", "A", "B", "S"),
			edges: []testEdge{
				caseOf("H", "A", "x", "1"),
				caseOf("H", "B", "x", "2"),
				caseOf("H", "A", "x", "3"),
				defaultOf("H", "S", "x"),
				edge("A", "S"), edge("B", "S"),
			},
			want: "Seq[H, Switch(x, {1, 3}: A, {2}: B), S]",
		},
		{
			name:   "switch with overlapping values stays conditional",
			blocks: blocks("H", "A", "B", "S"),
			edges: []testEdge{
				caseOf("H", "A", "x", "1"),
				caseOf("H", "B", "x", "1", "2"),
				edge("A", "S"), edge("B", "S"),
			},
			want: "Seq[H, Cond(x in {1}, A), Cond(x in {1, 2}, B), S]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := buildGraph(t, tt.blocks, tt.edges...)
			n, err := Structure(g, WithVerify(true))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.Format(n))
			assert.Equal(t, 1, g.Len())
			assert.Equal(t, 0, g.EdgeLen())
		})
	}
}

func TestStructureDiamondCollapsesHeaderFirst(t *testing.T) {
	g, ids := buildGraph(t, blocks("H", "A", "B", "S"),
		when("H", "A", "c"), unless("H", "B", "c"),
		edge("A", "S"), edge("B", "S"),
	)

	var steps []Collapse
	_, err := Structure(g, WithObserver(func(c Collapse) { steps = append(steps, c) }))
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, RegionAcyclic, steps[0].Kind)
	assert.Equal(t, ids["H"], steps[0].Header)
	assert.Equal(t, 2, steps[0].Removed)
	assert.Equal(t, "Seq[H, Cond(c, A), Cond(!c, B)]", ast.Format(steps[0].Result))

	assert.Equal(t, RegionTerminal, steps[1].Kind)
	assert.Equal(t, "Seq[H, Cond(c, A), Cond(!c, B), S]", ast.Format(steps[1].Result))
}

func TestStructureReachingConditions(t *testing.T) {
	// H branches on c; A then branches on d; everything meets at S.
	g, _ := buildGraph(t, blocks("H", "A", "B", "C", "S"),
		when("H", "A", "c"), unless("H", "C", "c"),
		when("A", "B", "d"), unless("A", "C", "d"),
		edge("B", "S"), edge("C", "S"),
	)
	n, err := Structure(g, WithVerify(true))
	require.NoError(t, err)
	assert.Equal(t, "Seq[H, Cond(c, A), Cond(c && d, B), Cond(!c || (c && !d), C), S]", ast.Format(n))
}

func TestStructureIrreducibleLoopIsStuck(t *testing.T) {
	g, _ := buildGraph(t, blocks("E", "A", "B"),
		when("E", "A", "c"), unless("E", "B", "c"),
		edge("A", "B"), edge("B", "A"),
	)

	s, err := New(g, WithVerify(true))
	require.NoError(t, err)
	n, err := s.Run()
	assert.Nil(t, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStructuringStuck))
	assert.False(t, errors.Is(err, ErrMalformedInput))

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, KindStuck, serr.Kind)
	assert.Equal(t, 3, serr.Remaining)
	assert.Len(t, serr.Nodes, 3)
	assert.Equal(t, 3, s.Graph().Len())
	assert.Contains(t, err.Error(), "3 nodes remaining")
}

func TestStructureMalformedInput(t *testing.T) {
	t.Run("unreachable block", func(t *testing.T) {
		g, _ := buildGraph(t, blocks("A", "B", "C"), edge("A", "B"))
		_, err := Structure(g)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedInput))
		assert.Contains(t, err.Error(), "1 of 3 nodes unreachable")
	})

	t.Run("no entry", func(t *testing.T) {
		g := NewCFG()
		g.AddNode(ast.NewBlock("A"))
		_, err := Structure(g)
		assert.True(t, errors.Is(err, ErrMalformedInput))
	})

	t.Run("empty graph", func(t *testing.T) {
		_, err := Structure(NewCFG())
		assert.True(t, errors.Is(err, ErrMalformedInput))
	})
}

func TestStructureShrinksGraphEveryCollapse(t *testing.T) {
	g, _ := buildGraph(t, blocks("E", "H", "A", "B", "C", "X"),
		edge("E", "H"),
		when("H", "A", "a"), unless("H", "B", "a"),
		edge("A", "C"), edge("B", "C"),
		when("C", "H", "loop"), unless("C", "X", "loop"),
	)
	total := g.Len()

	prev := g.Len() + g.EdgeLen()
	removed := 0
	_, err := Structure(g, WithVerify(true), WithObserver(func(c Collapse) {
		size := g.Len() + g.EdgeLen()
		assert.Less(t, size, prev, "collapse %s at %s did not shrink the graph", c.Kind, c.Header)
		assert.Positive(t, c.Removed)
		prev = size
		removed += c.Removed
	}))
	require.NoError(t, err)
	assert.Equal(t, total-1, removed)
}

func TestStructureKeepsEveryBlock(t *testing.T) {
	tests := []struct {
		name   string
		blocks []block
		edges  []testEdge
		want   []string
	}{
		{
			name:   "opaque while header",
			blocks: blocks("E", "H", "A", "R", "B", "X"),
			edges: []testEdge{
				edge("E", "H"),
				when("H", "A", "c"), unless("H", "X", "c"),
				when("A", "R", "r"), unless("A", "B", "r"),
				edge("B", "H"),
			},
			want: []string{"E", "H", "A", "R", "B", "X"},
		},
		{
			name:   "pure while header folds into the condition",
			blocks: []block{{label: "E"}, branch("H"), {label: "A"}, {label: "R"}, {label: "B"}, {label: "X"}},
			edges: []testEdge{
				edge("E", "H"),
				when("H", "A", "c"), unless("H", "X", "c"),
				when("A", "R", "r"), unless("A", "B", "r"),
				edge("B", "H"),
			},
			want: []string{"E", "A", "R", "B", "X"},
		},
		{
			name:   "nested loops with a two-level exit",
			blocks: blocks("E", "H1", "H2", "I", "J", "P", "D"),
			edges:  breakOuterEdges(),
			want:   []string{"E", "H1", "H2", "I", "J", "P", "D"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := buildGraph(t, tt.blocks, tt.edges...)
			n, err := Structure(g, WithVerify(true))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, ast.Blocks(n))
		})
	}
}

// breakOuterEdges is a loop H2 nested in H1 where I leaves both loops at
// once, as in a labelled break.
func breakOuterEdges() []testEdge {
	return []testEdge{
		edge("E", "H1"),
		when("H1", "H2", "c1"), unless("H1", "D", "c1"),
		when("H2", "I", "c2"), unless("H2", "P", "c2"),
		when("I", "D", "neg"), unless("I", "J", "neg"),
		edge("J", "H2"),
		edge("P", "H1"),
	}
}

func TestStructureLoopAbsorbsHeaderExit(t *testing.T) {
	// B3 is where the header leaves the loop, but it flows into B5 which the
	// body also reaches, so B3 has to move into the loop.
	g, _ := buildGraph(t, blocks("B0", "B1", "B2", "B3", "B4", "B5"),
		when("B0", "B1", "c0"), unless("B0", "B3", "c0"),
		when("B1", "B2", "c1"), unless("B1", "B5", "c1"),
		when("B2", "B3", "c2"), unless("B2", "B4", "c2"),
		edge("B3", "B5"),
		when("B4", "B5", "c4"), unless("B4", "B0", "c4"),
	)
	n, err := Structure(g, WithVerify(true))
	require.NoError(t, err)
	assert.Equal(t, "Seq[Loop(endless, Seq[B0, Cond(c0, B1), Cond(c0 && !c1, Break), "+
		"Cond(c0 && c1, B2), Cond(c0 && c1 && !c2, B4), Cond(c0 && c1 && !c2 && c4, Break), "+
		"Cond(!c0 || (c0 && c1 && c2), B3), Cond(!c0 || (c0 && c1 && c2), Break)]), B5]",
		ast.Format(n))
}

func TestStructureMultiLevelExit(t *testing.T) {
	g, ids := buildGraph(t,
		[]block{{label: "E"}, branch("H1"), branch("H2"), {label: "I"}, {label: "J"}, {label: "P"}, {label: "D"}},
		breakOuterEdges()...,
	)

	var loops []Collapse
	n, err := Structure(g, WithVerify(true), WithObserver(func(c Collapse) {
		if c.Kind == RegionLoop {
			loops = append(loops, c)
		}
	}))
	require.NoError(t, err)

	inner := "Loop(endless, Seq[H2, Cond(!c2, Break(exit1 = 0)), Cond(c2, I), " +
		"Cond(c2 && neg, Break(exit1 = 1)), Cond(c2 && !neg, J)])"
	assert.Equal(t, "Seq[E, Loop(endless, Seq[H1, Cond(!c1, Break), Cond(c1, "+inner+"), "+
		"Cond(c1 && exit1 in {1}, Break), Cond(c1 && exit1 in {0}, P)]), D]",
		ast.Format(n))

	require.Len(t, loops, 2)
	assert.Equal(t, ids["H2"], loops[0].Header)
	assert.Equal(t, []graph.NodeID{ids["H2"], ids["I"], ids["J"]}, loops[0].Region)
	assert.Equal(t, ids["H1"], loops[1].Header)
}

func TestExitFlagAvoidsInputVariables(t *testing.T) {
	g, _ := buildGraph(t, blocks("A", "B", "C"),
		caseOf("A", "B", "exit1", "1"), defaultOf("A", "C", "exit1"),
		edge("B", "C"),
	)
	s, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, cond.Variable("exit2"), s.exitFlag())
	assert.Equal(t, cond.Variable("exit3"), s.exitFlag())
}

type crossing struct {
	from, to graph.NodeID
}

func crossings(g *CFG) []crossing {
	var out []crossing
	for _, e := range g.Edges() {
		src, dst, _ := g.Edge(e)
		out = append(out, crossing{from: src, to: dst})
	}
	return out
}

func TestStructureConservesBoundaryEdges(t *testing.T) {
	// H has three outside predecessors, two of them through parallel edges
	// from Q, and closes a loop through S.
	g, _ := buildGraph(t, blocks("E", "P", "Q", "H", "A", "B", "S", "X"),
		when("E", "P", "a"), unless("E", "Q", "a"),
		edge("P", "H"),
		when("Q", "H", "q"), unless("Q", "H", "q"),
		when("H", "A", "c"), unless("H", "B", "c"),
		edge("A", "S"), edge("B", "S"),
		when("S", "H", "l"), unless("S", "X", "l"),
	)

	prev := crossings(g)
	collapses := 0
	_, err := Structure(g, WithVerify(true), WithObserver(func(c Collapse) {
		collapses++
		region := graph.NewNodeSet(c.Region...)
		wantIn := map[graph.NodeID]int{}
		wantOut := graph.NewNodeSet()
		for _, e := range prev {
			switch {
			case !region.Has(e.from) && region.Has(e.to):
				assert.Equal(t, c.Header, e.to, "%s region entered below its header", c.Kind)
				wantIn[e.from]++
			case region.Has(e.from) && !region.Has(e.to):
				wantOut.Add(e.to)
			}
		}

		now := crossings(g)
		gotIn := map[graph.NodeID]int{}
		gotOut := graph.NewNodeSet()
		for _, e := range now {
			assert.False(t, region.Has(e.from) && region.Has(e.to) && e.from != c.Header,
				"%s collapse left an internal edge", c.Kind)
			if e.to == c.Header && e.from != c.Header {
				gotIn[e.from]++
			}
			if e.from == c.Header {
				assert.NotEqual(t, c.Header, e.to, "%s collapse kept a back edge", c.Kind)
				gotOut.Add(e.to)
			}
		}
		assert.Equal(t, wantIn, gotIn, "%s collapse at %s changed its in-edges", c.Kind, c.Header)
		assert.Equal(t, wantOut, gotOut, "%s collapse at %s changed its exits", c.Kind, c.Header)
		prev = now
	}))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, collapses, 3)
}

type recordingLogger struct {
	msgs []string
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) {
	l.msgs = append(l.msgs, msg)
}

func TestStructureLogsCollapses(t *testing.T) {
	g, _ := buildGraph(t, blocks("A", "B"), edge("A", "B"))
	logger := &recordingLogger{}
	_, err := Structure(g, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, []string{"collapsed region"}, logger.msgs)
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "stuck", KindStuck.String())
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "ErrorKind(7)", ErrorKind(7).String())
}
