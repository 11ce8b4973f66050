// Package cond defines the boolean conditions attached to control-flow edges
// and synthesized for structured nodes.
//
// Condition is a closed sum type: True, Simple, Not, And, Or and Case are its
// only variants. Atomic predicates (Simple, Case) are opaque; they are only
// combined and compared, never interpreted. The constructors in this package
// apply structural simplification only, so conditions stay small across
// nested collapses without any semantic reasoning.
package cond

import (
	"strings"
)

// Condition is a boolean expression over opaque edge predicates.
type Condition interface {
	String() string
	isCondition()
}

// True is the condition that always holds. Unconditional edges carry it.
type True struct{}

// Simple is one edge's branch predicate, supplied by the caller.
type Simple struct {
	Label string
}

// Not negates a condition.
type Not struct {
	X Condition
}

// And is the conjunction of two or more terms.
type And struct {
	Terms []Condition
}

// Or is the disjunction of two or more terms.
type Or struct {
	Terms []Condition
}

// Case is a switch-dispatch predicate: Var holds one of Values. A Default
// case holds when none of the sibling cases on the same dispatch node do.
type Case struct {
	Var     Variable
	Values  ValueSet
	Default bool
}

func (True) isCondition()   {}
func (Simple) isCondition() {}
func (Not) isCondition()    {}
func (And) isCondition()    {}
func (Or) isCondition()     {}
func (Case) isCondition()   {}

func (True) String() string     { return "true" }
func (c Simple) String() string { return c.Label }

func (c Not) String() string {
	switch c.X.(type) {
	case Simple, True, Case:
		return "!" + c.X.String()
	default:
		return "!(" + c.X.String() + ")"
	}
}

func (c And) String() string { return joinTerms(c.Terms, " && ") }
func (c Or) String() string  { return joinTerms(c.Terms, " || ") }

func (c Case) String() string {
	if c.Default {
		return string(c.Var) + " default"
	}
	return string(c.Var) + " in " + c.Values.String()
}

func joinTerms(terms []Condition, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		switch t.(type) {
		case And, Or:
			parts[i] = "(" + t.String() + ")"
		default:
			parts[i] = t.String()
		}
	}
	return strings.Join(parts, sep)
}

// NewSimple returns the atomic predicate with the given label. An empty label
// means the edge is unconditional.
func NewSimple(label string) Condition {
	if label == "" {
		return True{}
	}
	return Simple{Label: label}
}

// IsTrue reports whether c is the constant True.
func IsTrue(c Condition) bool {
	_, ok := c.(True)
	return ok
}

// NewAnd returns the conjunction of terms. True terms are dropped, nested
// conjunctions flattened and duplicates removed. With no remaining terms the
// result is True; with one it is that term.
func NewAnd(terms ...Condition) Condition {
	var flat []Condition
	for _, t := range terms {
		switch t := t.(type) {
		case nil:
			panic("cond: nil term in And")
		case True:
		case And:
			for _, x := range t.Terms {
				flat = appendDistinct(flat, x)
			}
		default:
			flat = appendDistinct(flat, t)
		}
	}
	switch len(flat) {
	case 0:
		return True{}
	case 1:
		return flat[0]
	}
	return And{Terms: flat}
}

// NewOr returns the disjunction of terms. Any True term, or a term next to
// its own negation, makes the result True; nested disjunctions are flattened
// and duplicates removed. One remaining term is returned as is. Calling NewOr
// without terms is a programmer error.
func NewOr(terms ...Condition) Condition {
	if len(terms) == 0 {
		panic("cond: Or with no terms")
	}
	var flat []Condition
	for _, t := range terms {
		switch t := t.(type) {
		case nil:
			panic("cond: nil term in Or")
		case True:
			return True{}
		case Or:
			for _, x := range t.Terms {
				flat = appendDistinct(flat, x)
			}
		default:
			flat = appendDistinct(flat, t)
		}
	}
	for i, a := range flat {
		for _, b := range flat[i+1:] {
			if Complement(a, b) {
				return True{}
			}
		}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return Or{Terms: flat}
}

// Negate returns the negation of c, removing double negation.
func Negate(c Condition) Condition {
	if n, ok := c.(Not); ok {
		return n.X
	}
	return Not{X: c}
}

// Complement reports whether a and b are structural negations of each other.
func Complement(a, b Condition) bool {
	if n, ok := a.(Not); ok && Equal(n.X, b) {
		return true
	}
	if n, ok := b.(Not); ok && Equal(n.X, a) {
		return true
	}
	return false
}

func appendDistinct(terms []Condition, c Condition) []Condition {
	for _, t := range terms {
		if Equal(t, c) {
			return terms
		}
	}
	return append(terms, c)
}

// Equal reports structural equality. Term order matters.
func Equal(a, b Condition) bool {
	switch a := a.(type) {
	case True:
		_, ok := b.(True)
		return ok
	case Simple:
		bb, ok := b.(Simple)
		return ok && a.Label == bb.Label
	case Not:
		bb, ok := b.(Not)
		return ok && Equal(a.X, bb.X)
	case And:
		bb, ok := b.(And)
		return ok && equalTerms(a.Terms, bb.Terms)
	case Or:
		bb, ok := b.(Or)
		return ok && equalTerms(a.Terms, bb.Terms)
	case Case:
		bb, ok := b.(Case)
		return ok && a.Var == bb.Var && a.Default == bb.Default && a.Values.Equal(bb.Values)
	}
	return false
}

func equalTerms(a, b []Condition) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Atoms returns the atomic predicates of c in first-seen order.
func Atoms(c Condition) []Condition {
	var out []Condition
	var walk func(Condition)
	walk = func(c Condition) {
		switch c := c.(type) {
		case Simple, Case:
			out = appendDistinct(out, c)
		case Not:
			walk(c.X)
		case And:
			for _, t := range c.Terms {
				walk(t)
			}
		case Or:
			for _, t := range c.Terms {
				walk(t)
			}
		}
	}
	walk(c)
	return out
}
