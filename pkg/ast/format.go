package ast

import (
	"fmt"
	"strings"
)

// Format renders n in the compact single-line notation used in logs and
// tests, e.g. Seq[H, Cond(c, A), Loop(while d, B)].
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch n := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *BasicBlock:
		if n.Label == "" {
			sb.WriteString("<block>")
		} else {
			sb.WriteString(n.Label)
		}
	case *Seq:
		sb.WriteString("Seq[")
		for i, c := range n.Nodes {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, c)
		}
		sb.WriteString("]")
	case *Cond:
		sb.WriteString("Cond(")
		sb.WriteString(n.Cond.String())
		sb.WriteString(", ")
		format(sb, n.Then)
		if n.Else != nil {
			sb.WriteString(", ")
			format(sb, n.Else)
		}
		sb.WriteString(")")
	case *Loop:
		sb.WriteString("Loop(")
		sb.WriteString(LoopHeader(n.Type))
		sb.WriteString(", ")
		format(sb, n.Body)
		sb.WriteString(")")
	case *Switch:
		sb.WriteString("Switch(")
		sb.WriteString(string(n.Var))
		for _, c := range n.Cases {
			sb.WriteString(", ")
			sb.WriteString(c.Values.String())
			sb.WriteString(": ")
			format(sb, c.Body)
		}
		if n.Default != nil {
			sb.WriteString(", default: ")
			format(sb, n.Default)
		}
		sb.WriteString(")")
	case *Break:
		sb.WriteString("Break")
		if n.Var != "" {
			fmt.Fprintf(sb, "(%s = %s)", n.Var, n.Value)
		}
	default:
		panic(fmt.Sprintf("ast: unknown node %T", n))
	}
}

// LoopHeader describes a loop type, e.g. "while x < n".
func LoopHeader(t LoopType) string {
	switch t := t.(type) {
	case PreChecked:
		return "while " + t.Cond.String()
	case PostChecked:
		return "do-while " + t.Cond.String()
	case Endless:
		return "endless"
	}
	panic(fmt.Sprintf("ast: unknown loop type %T", t))
}

// LineKind classifies a line of an indented dump.
type LineKind string

const (
	LineBlock   LineKind = "block"
	LineStmt    LineKind = "stmt"
	LineKeyword LineKind = "keyword"
)

// Line is one line of an indented tree dump.
type Line struct {
	Depth int
	Kind  LineKind
	Text  string
}

// Lines renders n as an indented outline: one line per block label,
// statement and construct header. It is a view of the tree, not source code.
func Lines(n Node) []Line {
	var out []Line
	lines(&out, n, 0)
	return out
}

func lines(out *[]Line, n Node, depth int) {
	add := func(kind LineKind, text string) {
		*out = append(*out, Line{Depth: depth, Kind: kind, Text: text})
	}
	switch n := n.(type) {
	case nil:
	case *BasicBlock:
		label := n.Label
		if label == "" {
			label = "<block>"
		}
		add(LineBlock, label+":")
		for _, s := range n.Stmts {
			*out = append(*out, Line{Depth: depth + 1, Kind: LineStmt, Text: s})
		}
	case *Seq:
		for _, c := range n.Nodes {
			lines(out, c, depth)
		}
	case *Cond:
		add(LineKeyword, "if "+n.Cond.String())
		lines(out, n.Then, depth+1)
		if n.Else != nil {
			add(LineKeyword, "else")
			lines(out, n.Else, depth+1)
		}
	case *Loop:
		if pc, ok := n.Type.(PostChecked); ok {
			add(LineKeyword, "do")
			lines(out, n.Body, depth+1)
			add(LineKeyword, "while "+pc.Cond.String())
			return
		}
		add(LineKeyword, "loop "+LoopHeader(n.Type))
		lines(out, n.Body, depth+1)
	case *Switch:
		add(LineKeyword, "switch "+string(n.Var))
		for _, c := range n.Cases {
			*out = append(*out, Line{Depth: depth + 1, Kind: LineKeyword, Text: "case " + c.Values.String()})
			lines(out, c.Body, depth+2)
		}
		if n.Default != nil {
			*out = append(*out, Line{Depth: depth + 1, Kind: LineKeyword, Text: "default"})
			lines(out, n.Default, depth+2)
		}
	case *Break:
		if n.Var != "" {
			add(LineStmt, fmt.Sprintf("%s = %s", n.Var, n.Value))
		}
		add(LineKeyword, "break")
	default:
		panic(fmt.Sprintf("ast: unknown node %T", n))
	}
}
