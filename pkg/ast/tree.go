package ast

import (
	"fmt"

	"github.com/l3aro/restruct/pkg/cond"
)

// Kind names a node variant in serialized form.
type Kind string

const (
	KindBlock  Kind = "block"
	KindSeq    Kind = "seq"
	KindCond   Kind = "cond"
	KindLoop   Kind = "loop"
	KindSwitch Kind = "switch"
	KindBreak  Kind = "break"
)

// Loop kinds in serialized form.
const (
	LoopPreChecked  = "pre_checked"
	LoopPostChecked = "post_checked"
	LoopEndless     = "endless"
)

// Tree is the serializable form of a Node, used for JSON, YAML and msgpack
// output and for the result cache.
type Tree struct {
	Kind     Kind       `json:"kind" yaml:"kind" msgpack:"kind"`
	Label    string     `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
	Stmts    []string   `json:"stmts,omitempty" yaml:"stmts,omitempty" msgpack:"stmts,omitempty"`
	Pure     bool       `json:"pure,omitempty" yaml:"pure,omitempty" msgpack:"pure,omitempty"`
	Cond     *cond.Tree `json:"cond,omitempty" yaml:"cond,omitempty" msgpack:"cond,omitempty"`
	Loop     string     `json:"loop,omitempty" yaml:"loop,omitempty" msgpack:"loop,omitempty"`
	Var      string     `json:"var,omitempty" yaml:"var,omitempty" msgpack:"var,omitempty"`
	Value    string     `json:"value,omitempty" yaml:"value,omitempty" msgpack:"value,omitempty"`
	Children []*Tree    `json:"children,omitempty" yaml:"children,omitempty" msgpack:"children,omitempty"`
	Else     *Tree      `json:"else,omitempty" yaml:"else,omitempty" msgpack:"else,omitempty"`
	Cases    []CaseTree `json:"cases,omitempty" yaml:"cases,omitempty" msgpack:"cases,omitempty"`
	Default  *Tree      `json:"default,omitempty" yaml:"default,omitempty" msgpack:"default,omitempty"`
}

// CaseTree is the serializable form of a switch arm.
type CaseTree struct {
	Values []string `json:"values" yaml:"values" msgpack:"values"`
	Body   *Tree    `json:"body" yaml:"body" msgpack:"body"`
}

// ToTree converts n to its serializable form. A nil node yields nil.
func ToTree(n Node) *Tree {
	switch n := n.(type) {
	case nil:
		return nil
	case *BasicBlock:
		return &Tree{Kind: KindBlock, Label: n.Label, Stmts: n.Stmts, Pure: n.Pure}
	case *Seq:
		t := &Tree{Kind: KindSeq, Children: make([]*Tree, len(n.Nodes))}
		for i, c := range n.Nodes {
			t.Children[i] = ToTree(c)
		}
		return t
	case *Cond:
		return &Tree{
			Kind:     KindCond,
			Cond:     cond.ToTree(n.Cond),
			Children: []*Tree{ToTree(n.Then)},
			Else:     ToTree(n.Else),
		}
	case *Loop:
		t := &Tree{Kind: KindLoop, Children: []*Tree{ToTree(n.Body)}}
		switch lt := n.Type.(type) {
		case PreChecked:
			t.Loop = LoopPreChecked
			t.Cond = cond.ToTree(lt.Cond)
		case PostChecked:
			t.Loop = LoopPostChecked
			t.Cond = cond.ToTree(lt.Cond)
		case Endless:
			t.Loop = LoopEndless
		default:
			panic(fmt.Sprintf("ast: unknown loop type %T", lt))
		}
		return t
	case *Switch:
		t := &Tree{Kind: KindSwitch, Var: string(n.Var), Default: ToTree(n.Default)}
		for _, c := range n.Cases {
			t.Cases = append(t.Cases, CaseTree{Values: []string(c.Values), Body: ToTree(c.Body)})
		}
		return t
	case *Break:
		return &Tree{Kind: KindBreak, Var: string(n.Var), Value: n.Value}
	}
	panic(fmt.Sprintf("ast: unknown node %T", n))
}

// FromTree rebuilds a Node from its serialized form.
func FromTree(t *Tree) (Node, error) {
	if t == nil {
		return nil, nil
	}
	switch t.Kind {
	case KindBlock:
		return &BasicBlock{Label: t.Label, Stmts: t.Stmts, Pure: t.Pure}, nil
	case KindSeq:
		s := &Seq{Nodes: make([]Node, 0, len(t.Children))}
		for _, c := range t.Children {
			n, err := requireNode(c, "seq element")
			if err != nil {
				return nil, err
			}
			s.Nodes = append(s.Nodes, n)
		}
		return s, nil
	case KindCond:
		c, err := cond.FromTree(t.Cond)
		if err != nil {
			return nil, fmt.Errorf("cond: %w", err)
		}
		if len(t.Children) != 1 {
			return nil, fmt.Errorf("cond: want 1 child, got %d", len(t.Children))
		}
		then, err := requireNode(t.Children[0], "cond branch")
		if err != nil {
			return nil, err
		}
		els, err := FromTree(t.Else)
		if err != nil {
			return nil, err
		}
		return &Cond{Cond: c, Then: then, Else: els}, nil
	case KindLoop:
		if len(t.Children) != 1 {
			return nil, fmt.Errorf("loop: want 1 child, got %d", len(t.Children))
		}
		body, err := requireNode(t.Children[0], "loop body")
		if err != nil {
			return nil, err
		}
		var lt LoopType
		switch t.Loop {
		case LoopEndless:
			lt = Endless{}
		case LoopPreChecked, LoopPostChecked:
			c, err := cond.FromTree(t.Cond)
			if err != nil {
				return nil, fmt.Errorf("loop condition: %w", err)
			}
			if t.Loop == LoopPreChecked {
				lt = PreChecked{Cond: c}
			} else {
				lt = PostChecked{Cond: c}
			}
		default:
			return nil, fmt.Errorf("unknown loop type %q", t.Loop)
		}
		return &Loop{Type: lt, Body: body}, nil
	case KindSwitch:
		sw := &Switch{Var: cond.Variable(t.Var)}
		for _, c := range t.Cases {
			body, err := requireNode(c.Body, "switch case")
			if err != nil {
				return nil, err
			}
			sw.Cases = append(sw.Cases, Case{Values: cond.ValueSet(c.Values), Body: body})
		}
		def, err := FromTree(t.Default)
		if err != nil {
			return nil, err
		}
		sw.Default = def
		return sw, nil
	case KindBreak:
		return &Break{Var: cond.Variable(t.Var), Value: t.Value}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", t.Kind)
	}
}

func requireNode(t *Tree, what string) (Node, error) {
	if t == nil {
		return nil, fmt.Errorf("missing %s", what)
	}
	return FromTree(t)
}
