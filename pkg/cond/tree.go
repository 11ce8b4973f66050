package cond

import "fmt"

// Op names a condition variant in serialized form.
type Op string

const (
	OpTrue   Op = "true"
	OpSimple Op = "simple"
	OpNot    Op = "not"
	OpAnd    Op = "and"
	OpOr     Op = "or"
	OpCase   Op = "case"
)

// Tree is the serializable form of a Condition.
type Tree struct {
	Op      Op       `json:"op" yaml:"op" msgpack:"op"`
	Label   string   `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
	Args    []*Tree  `json:"args,omitempty" yaml:"args,omitempty" msgpack:"args,omitempty"`
	Var     string   `json:"var,omitempty" yaml:"var,omitempty" msgpack:"var,omitempty"`
	Values  []string `json:"values,omitempty" yaml:"values,omitempty" msgpack:"values,omitempty"`
	Default bool     `json:"default,omitempty" yaml:"default,omitempty" msgpack:"default,omitempty"`
}

// ToTree converts c to its serializable form.
func ToTree(c Condition) *Tree {
	switch c := c.(type) {
	case True:
		return &Tree{Op: OpTrue}
	case Simple:
		return &Tree{Op: OpSimple, Label: c.Label}
	case Not:
		return &Tree{Op: OpNot, Args: []*Tree{ToTree(c.X)}}
	case And:
		return &Tree{Op: OpAnd, Args: toTrees(c.Terms)}
	case Or:
		return &Tree{Op: OpOr, Args: toTrees(c.Terms)}
	case Case:
		return &Tree{Op: OpCase, Var: string(c.Var), Values: []string(c.Values), Default: c.Default}
	}
	panic(fmt.Sprintf("cond: unknown condition %T", c))
}

func toTrees(terms []Condition) []*Tree {
	out := make([]*Tree, len(terms))
	for i, t := range terms {
		out[i] = ToTree(t)
	}
	return out
}

// FromTree rebuilds a Condition from its serialized form.
func FromTree(t *Tree) (Condition, error) {
	if t == nil {
		return nil, fmt.Errorf("nil condition")
	}
	switch t.Op {
	case OpTrue:
		return True{}, nil
	case OpSimple:
		if t.Label == "" {
			return nil, fmt.Errorf("simple condition without label")
		}
		return Simple{Label: t.Label}, nil
	case OpNot:
		if len(t.Args) != 1 {
			return nil, fmt.Errorf("not: want 1 argument, got %d", len(t.Args))
		}
		x, err := FromTree(t.Args[0])
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	case OpAnd, OpOr:
		if len(t.Args) < 2 {
			return nil, fmt.Errorf("%s: want at least 2 arguments, got %d", t.Op, len(t.Args))
		}
		terms := make([]Condition, len(t.Args))
		for i, a := range t.Args {
			x, err := FromTree(a)
			if err != nil {
				return nil, err
			}
			terms[i] = x
		}
		if t.Op == OpAnd {
			return And{Terms: terms}, nil
		}
		return Or{Terms: terms}, nil
	case OpCase:
		return Case{Var: Variable(t.Var), Values: ValueSet(t.Values), Default: t.Default}, nil
	default:
		return nil, fmt.Errorf("unknown condition op %q", t.Op)
	}
}
