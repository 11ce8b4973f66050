// Package ast defines the structured-program tree produced by the
// structuring engine.
//
// Node is a closed sum type. Its variants are BasicBlock, Seq, Cond, Loop,
// Switch and Break; LoopType is closed over PreChecked, PostChecked and
// Endless. Every node exclusively owns its children.
package ast

import "github.com/l3aro/restruct/pkg/cond"

// Node is a structured-program tree node.
type Node interface {
	isNode()
}

// BasicBlock is an unstructured leaf supplied by the caller. The engine never
// looks inside Stmts. Pure is set by front ends on blocks that only evaluate
// the branch carried by their out-edges; a pure loop header may be folded
// into a while condition.
type BasicBlock struct {
	Label string
	Stmts []string
	Pure  bool
}

// Seq is sequential composition.
type Seq struct {
	Nodes []Node
}

// Cond runs Then when Cond holds and Else (which may be nil) otherwise.
type Cond struct {
	Cond cond.Condition
	Then Node
	Else Node
}

// Loop repeats Body according to Type.
type Loop struct {
	Type LoopType
	Body Node
}

// Case is one arm of a Switch.
type Case struct {
	Values cond.ValueSet
	Body   Node
}

// Switch dispatches on Var. Default may be nil.
type Switch struct {
	Var     cond.Variable
	Cases   []Case
	Default Node
}

// Break leaves the innermost enclosing loop. When Var is set the break first
// assigns Value to it, so the code after the loop can tell which exit was
// taken.
type Break struct {
	Var   cond.Variable
	Value string
}

func (*BasicBlock) isNode() {}
func (*Seq) isNode()        {}
func (*Cond) isNode()       {}
func (*Loop) isNode()       {}
func (*Switch) isNode()     {}
func (*Break) isNode()      {}

// LoopType says where a loop tests its exit condition.
type LoopType interface {
	isLoopType()
}

// PreChecked tests Cond before each iteration and runs the body while it
// holds.
type PreChecked struct {
	Cond cond.Condition
}

// PostChecked runs the body, then repeats while Cond holds.
type PostChecked struct {
	Cond cond.Condition
}

// Endless has no loop test; it is left through Break nodes or by blocks that
// end the function.
type Endless struct{}

func (PreChecked) isLoopType()  {}
func (PostChecked) isLoopType() {}
func (Endless) isLoopType()     {}

// NewBlock returns a basic block leaf. Use NewBranch for pure branch blocks.
func NewBlock(label string, stmts ...string) *BasicBlock {
	return &BasicBlock{Label: label, Stmts: stmts}
}

// NewBranch returns a pure branch block.
func NewBranch(label string) *BasicBlock {
	return &BasicBlock{Label: label, Pure: true}
}

// NewSeq builds a sequence. Nested sequences are spliced in, so a sequence
// never directly contains another one, and a single element is returned as
// is.
func NewSeq(nodes ...Node) Node {
	var flat []Node
	for _, n := range nodes {
		if s, ok := n.(*Seq); ok {
			flat = append(flat, s.Nodes...)
			continue
		}
		flat = append(flat, n)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Seq{Nodes: flat}
}

// Guard wraps n in a conditional on c, or returns n unchanged when c always
// holds.
func Guard(c cond.Condition, n Node) Node {
	if cond.IsTrue(c) {
		return n
	}
	return &Cond{Cond: c, Then: n}
}

// Walk calls fn for n and every descendant in pre-order. Returning false from
// fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Seq:
		for _, c := range n.Nodes {
			Walk(c, fn)
		}
	case *Cond:
		Walk(n.Then, fn)
		Walk(n.Else, fn)
	case *Loop:
		Walk(n.Body, fn)
	case *Switch:
		for _, c := range n.Cases {
			Walk(c.Body, fn)
		}
		Walk(n.Default, fn)
	}
}

// Blocks returns the labels of all basic blocks under n in pre-order.
func Blocks(n Node) []string {
	var out []string
	Walk(n, func(n Node) bool {
		if b, ok := n.(*BasicBlock); ok {
			out = append(out, b.Label)
		}
		return true
	})
	return out
}

// Count returns the number of nodes in the tree rooted at n.
func Count(n Node) int {
	total := 0
	Walk(n, func(Node) bool {
		total++
		return true
	})
	return total
}
