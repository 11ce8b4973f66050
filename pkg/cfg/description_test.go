package cfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/structure"
)

func diamond() *Description {
	return &Description{
		Name:  "diamond",
		Entry: 0,
		Blocks: []Block{
			{Label: "H", Stmts: []string{"x := read()"}},
			{Label: "A", Stmts: []string{"a()"}},
			{Label: "B", Stmts: []string{"b()"}},
			{Label: "S", Stmts: []string{"return"}},
		},
		Edges: []Edge{
			{From: 0, To: 1, Cond: "c"},
			{From: 0, To: 2, Cond: "c", Negate: true},
			{From: 1, To: 3},
			{From: 2, To: 3},
		},
	}
}

func TestDescriptionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Description)
		wantErr string
	}{
		{name: "valid", mutate: func(d *Description) {}},
		{
			name:    "no blocks",
			mutate:  func(d *Description) { d.Blocks = nil },
			wantErr: "no blocks",
		},
		{
			name:    "entry out of range",
			mutate:  func(d *Description) { d.Entry = 4 },
			wantErr: "entry 4 out of range",
		},
		{
			name:    "negative source",
			mutate:  func(d *Description) { d.Edges[0].From = -1 },
			wantErr: "source -1 out of range",
		},
		{
			name:    "dangling target",
			mutate:  func(d *Description) { d.Edges[2].To = 9 },
			wantErr: "target 9 out of range",
		},
		{
			name: "cond and case",
			mutate: func(d *Description) {
				d.Edges[0].Case = &Case{Var: "x", Values: []string{"1"}}
			},
			wantErr: "both cond and case set",
		},
		{
			name: "case without var",
			mutate: func(d *Description) {
				d.Edges[2].Case = &Case{Values: []string{"1"}}
			},
			wantErr: "case without var",
		},
		{
			name: "case without values",
			mutate: func(d *Description) {
				d.Edges[2].Case = &Case{Var: "x"}
			},
			wantErr: "either values or default",
		},
		{
			name:    "negate without cond",
			mutate:  func(d *Description) { d.Edges[2].Negate = true },
			wantErr: "negate without cond",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diamond()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, errors.Is(err, structure.ErrMalformedInput))
		})
	}
}

func TestEdgeCondition(t *testing.T) {
	tests := []struct {
		name string
		edge Edge
		want string
	}{
		{name: "unconditional", edge: Edge{}, want: "true"},
		{name: "simple", edge: Edge{Cond: "x > 0"}, want: "x > 0"},
		{name: "negated", edge: Edge{Cond: "c", Negate: true}, want: "!c"},
		{name: "case", edge: Edge{Case: &Case{Var: "x", Values: []string{"1", "2"}}}, want: "x in {1, 2}"},
		{name: "default", edge: Edge{Case: &Case{Var: "x", Default: true}}, want: "x default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.edge.Condition().String())
		})
	}
}

func TestDescriptionBuild(t *testing.T) {
	g, ids, err := diamond().Build()
	require.NoError(t, err)
	require.Len(t, ids, 4)

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 4, g.EdgeLen())
	entry, ok := g.Entry()
	require.True(t, ok)
	assert.Equal(t, ids[0], entry)

	h, ok := g.Node(ids[0]).(*ast.BasicBlock)
	require.True(t, ok)
	assert.Equal(t, "H", h.Label)
	assert.Equal(t, []string{"x := read()"}, h.Stmts)

	out := g.OutEdges(ids[0])
	require.Len(t, out, 2)
	assert.True(t, cond.Equal(cond.NewSimple("c"), g.Label(out[0])))
	assert.True(t, cond.Equal(cond.Negate(cond.NewSimple("c")), g.Label(out[1])))

	node, err := structure.Structure(g, structure.WithVerify(true))
	require.NoError(t, err)
	assert.Equal(t, "Seq[H, Cond(c, A), Cond(!c, B), S]", ast.Format(node))
}

func TestDescriptionBuildWhileHeader(t *testing.T) {
	loop := func(pure bool) *Description {
		return &Description{
			Blocks: []Block{{Label: "E"}, {Label: "H", Pure: pure}, {Label: "B"}, {Label: "X"}},
			Edges: []Edge{
				{From: 0, To: 1},
				{From: 1, To: 2, Cond: "c"},
				{From: 1, To: 3, Cond: "c", Negate: true},
				{From: 2, To: 1},
			},
		}
	}

	tests := []struct {
		name   string
		pure   bool
		want   string
		blocks []string
	}{
		{
			name:   "opaque header stays in the body",
			want:   "Seq[E, Loop(endless, Seq[H, Cond(!c, Break), Cond(c, B)]), X]",
			blocks: []string{"E", "H", "B", "X"},
		},
		{
			name:   "pure header becomes the loop condition",
			pure:   true,
			want:   "Seq[E, Loop(while c, B), X]",
			blocks: []string{"E", "B", "X"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, err := loop(tt.pure).Build()
			require.NoError(t, err)
			node, err := structure.Structure(g, structure.WithVerify(true))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ast.Format(node))
			assert.Equal(t, tt.blocks, ast.Blocks(node))
		})
	}
}

func TestDescriptionBuildRejectsInvalid(t *testing.T) {
	d := diamond()
	d.Entry = -1
	_, _, err := d.Build()
	assert.ErrorIs(t, err, structure.ErrMalformedInput)
}

func TestFingerprint(t *testing.T) {
	a, err := diamond().Fingerprint()
	require.NoError(t, err)
	b, err := diamond().Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := diamond()
	changed.Edges[0].Cond = "d"
	c, err := changed.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestCFGInfoDescription(t *testing.T) {
	info := &CFGInfo{
		FunctionName: "pick",
		EntryBlockID: "block_1",
		Blocks: map[string]CFGBlock{
			"block_1":  {ID: "block_1", Type: BlockTypeEntry, Statements: []string{"x := f()"}},
			"block_2":  {ID: "block_2", Type: BlockTypeBranch},
			"block_10": {ID: "block_10", Type: BlockTypePlain},
			"block_3":  {ID: "block_3", Type: BlockTypeReturn, Statements: []string{"return x"}},
		},
		Edges: []CFGEdge{
			{SourceID: "block_1", TargetID: "block_2", EdgeType: EdgeTypeCase, CaseVar: "x", CaseValues: []string{"1"}},
			{SourceID: "block_1", TargetID: "block_10", EdgeType: EdgeTypeDefault, CaseVar: "x"},
			{SourceID: "block_2", TargetID: "block_3", EdgeType: EdgeTypeTrue, Condition: "ok"},
			{SourceID: "block_2", TargetID: "block_10", EdgeType: EdgeTypeFalse, Condition: "ok"},
			{SourceID: "block_10", TargetID: "block_3", EdgeType: EdgeTypeUnconditional},
		},
	}

	d, err := info.Description()
	require.NoError(t, err)

	assert.Equal(t, "pick", d.Name)
	assert.Equal(t, 0, d.Entry)
	labels := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		labels[i] = b.Label
	}
	assert.Equal(t, []string{"block_1", "block_2", "block_3", "block_10"}, labels)
	assert.True(t, d.Blocks[1].Pure)
	assert.False(t, d.Blocks[0].Pure)
	assert.False(t, d.Blocks[3].Pure)

	assert.Equal(t, []Edge{
		{From: 0, To: 1, Case: &Case{Var: "x", Values: []string{"1"}}},
		{From: 0, To: 3, Case: &Case{Var: "x", Default: true}},
		{From: 1, To: 2, Cond: "ok"},
		{From: 1, To: 3, Cond: "ok", Negate: true},
		{From: 3, To: 2},
	}, d.Edges)
}

func TestCFGInfoDescriptionMissingBlock(t *testing.T) {
	info := &CFGInfo{
		EntryBlockID: "block_1",
		Blocks:       map[string]CFGBlock{"block_1": {ID: "block_1"}},
		Edges:        []CFGEdge{{SourceID: "block_1", TargetID: "block_7"}},
	}
	_, err := info.Description()
	assert.ErrorIs(t, err, structure.ErrMalformedInput)

	info.EntryBlockID = "block_0"
	_, err = info.Description()
	assert.ErrorIs(t, err, structure.ErrMalformedInput)
}
