package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/restruct/pkg/cond"
)

func sample() Node {
	c := cond.NewSimple("c")
	return NewSeq(
		NewBlock("H", "x := read()"),
		&Loop{
			Type: PreChecked{Cond: c},
			Body: NewSeq(NewBlock("A"), Guard(cond.NewSimple("d"), &Break{})),
		},
		&Cond{Cond: cond.Negate(c), Then: NewBlock("B"), Else: NewBlock("C")},
		&Switch{
			Var: "x",
			Cases: []Case{
				{Values: cond.NewValueSet("1", "2"), Body: NewBlock("D")},
				{Values: cond.NewValueSet("3"), Body: &Seq{}},
			},
			Default: NewBlock("E"),
		},
		&Loop{Type: PostChecked{Cond: c}, Body: NewBlock("F")},
		&Loop{Type: Endless{}, Body: NewBlock("G")},
	)
}

func TestNewSeq(t *testing.T) {
	a, b, c := NewBlock("A"), NewBlock("B"), NewBlock("C")

	assert.Same(t, a, NewSeq(a))
	assert.Equal(t, "Seq[A, B, C]", Format(NewSeq(NewSeq(a, b), c)))
	assert.Equal(t, "Seq[]", Format(NewSeq()))
}

func TestGuard(t *testing.T) {
	a := NewBlock("A")
	assert.Same(t, a, Guard(cond.True{}, a))
	assert.Equal(t, "Cond(c, A)", Format(Guard(cond.NewSimple("c"), a)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t,
		"Seq[H, Loop(while c, Seq[A, Cond(d, Break)]), Cond(!c, B, C), "+
			"Switch(x, {1, 2}: D, {3}: Seq[], default: E), Loop(do-while c, F), Loop(endless, G)]",
		Format(sample()))
	assert.Equal(t, "<block>", Format(NewBlock("")))
}

func TestLines(t *testing.T) {
	got := Lines(NewSeq(
		NewBlock("H", "x := 1"),
		&Loop{Type: PostChecked{Cond: cond.NewSimple("c")}, Body: NewBlock("A")},
	))
	want := []Line{
		{Depth: 0, Kind: LineBlock, Text: "H:"},
		{Depth: 1, Kind: LineStmt, Text: "x := 1"},
		{Depth: 0, Kind: LineKeyword, Text: "do"},
		{Depth: 1, Kind: LineBlock, Text: "A:"},
		{Depth: 0, Kind: LineKeyword, Text: "while c"},
	}
	assert.Equal(t, want, got)
}

func TestBlocksAndCount(t *testing.T) {
	n := sample()
	assert.Equal(t, []string{"H", "A", "B", "C", "D", "E", "F", "G"}, Blocks(n))
	// Seq, H, Loop, Seq, A, Cond, Break, Cond, B, C, Switch, D, Seq, E,
	// Loop, F, Loop, G.
	assert.Equal(t, 18, Count(n))
}

func TestTreeRoundTrip(t *testing.T) {
	n := sample()
	back, err := FromTree(ToTree(n))
	require.NoError(t, err)
	assert.Equal(t, Format(n), Format(back))
	assert.Equal(t, Blocks(n), Blocks(back))
}

func TestFromTreeErrors(t *testing.T) {
	tests := []struct {
		name string
		tree *Tree
		want string
	}{
		{"unknown kind", &Tree{Kind: "goto"}, "unknown node kind"},
		{"cond without branch", &Tree{Kind: KindCond, Cond: &cond.Tree{Op: cond.OpTrue}}, "want 1 child"},
		{"cond without condition", &Tree{Kind: KindCond, Children: []*Tree{{Kind: KindBreak}}}, "nil condition"},
		{"loop type", &Tree{Kind: KindLoop, Loop: "forever", Children: []*Tree{{Kind: KindBreak}}}, "unknown loop type"},
		{"nil seq element", &Tree{Kind: KindSeq, Children: []*Tree{nil}}, "missing seq element"},
		{"nil case body", &Tree{Kind: KindSwitch, Cases: []CaseTree{{Values: []string{"1"}}}}, "missing switch case"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromTree(tt.tree)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExitFlagBreak(t *testing.T) {
	n := NewSeq(NewBranch("H"), &Break{Var: "exit1", Value: "1"})
	assert.Equal(t, "Seq[H, Break(exit1 = 1)]", Format(n))
	assert.Equal(t, []Line{
		{Depth: 0, Kind: LineBlock, Text: "H:"},
		{Depth: 0, Kind: LineStmt, Text: "exit1 = 1"},
		{Depth: 0, Kind: LineKeyword, Text: "break"},
	}, Lines(n))

	back, err := FromTree(ToTree(n))
	require.NoError(t, err)
	assert.Equal(t, n, back)
	assert.True(t, back.(*Seq).Nodes[0].(*BasicBlock).Pure)
}
