package cond

import "strings"

// Variable names the value a switch dispatches on. It is opaque to the
// engine and only compared for equality.
type Variable string

// ValueSet is an ordered set of opaque case values. Values are compared by
// string equality; the caller decides what a value means.
type ValueSet []string

// NewValueSet returns the set of values with duplicates removed.
func NewValueSet(values ...string) ValueSet {
	var vs ValueSet
	for _, v := range values {
		if !vs.Has(v) {
			vs = append(vs, v)
		}
	}
	return vs
}

// Has reports whether v is a member.
func (vs ValueSet) Has(v string) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

// Equal reports whether both sets hold the same values, ignoring order.
func (vs ValueSet) Equal(other ValueSet) bool {
	if len(vs) != len(other) {
		return false
	}
	for _, v := range vs {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// Disjoint reports whether the sets share no value.
func (vs ValueSet) Disjoint(other ValueSet) bool {
	for _, v := range vs {
		if other.Has(v) {
			return false
		}
	}
	return true
}

// Union returns the values of vs followed by the values of other not already
// present.
func (vs ValueSet) Union(other ValueSet) ValueSet {
	out := append(ValueSet(nil), vs...)
	for _, v := range other {
		if !out.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

func (vs ValueSet) String() string {
	return "{" + strings.Join(vs, ", ") + "}"
}
