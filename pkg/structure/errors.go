package structure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructuringStuck is returned when a full pass over the graph
	// collapsed nothing, typically because of an irreducible loop.
	ErrStructuringStuck = errors.New("structuring stuck")

	// ErrMalformedInput is returned for graphs the engine cannot start on:
	// no entry, or nodes that are not reachable from the entry.
	ErrMalformedInput = errors.New("malformed input")
)

// ErrorKind classifies an Error.
type ErrorKind int

const (
	KindStuck ErrorKind = iota
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindStuck:
		return "stuck"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the error returned by the driver. It matches ErrStructuringStuck
// or ErrMalformedInput with errors.Is according to Kind.
type Error struct {
	Kind ErrorKind

	// Remaining is the number of nodes left in the graph when the driver
	// gave up.
	Remaining int

	// Nodes holds the compact rendering of every remaining node for stuck
	// errors, in post-order.
	Nodes []string

	Detail string
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.sentinel().Error())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Kind == KindStuck {
		fmt.Fprintf(&sb, " (%d nodes remaining)", e.Remaining)
	}
	return sb.String()
}

func (e *Error) sentinel() error {
	if e.Kind == KindMalformed {
		return ErrMalformedInput
	}
	return ErrStructuringStuck
}

// Is reports whether target is the sentinel matching e's kind.
func (e *Error) Is(target error) bool {
	return target == e.sentinel()
}

func malformed(remaining int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformed, Remaining: remaining, Detail: fmt.Sprintf(format, args...)}
}
