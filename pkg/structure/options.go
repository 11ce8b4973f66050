package structure

import (
	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/graph"
)

// Logger is the subset of the application logger the engine uses.
type Logger interface {
	Debug(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}

// RegionKind names the rule that produced a collapse.
type RegionKind string

const (
	RegionAcyclic  RegionKind = "acyclic"
	RegionTerminal RegionKind = "terminal"
	RegionLoop     RegionKind = "loop"
	RegionSwitch   RegionKind = "switch"
)

// Collapse describes one region rewrite. Region lists the collapsed nodes,
// header first; all but the header are gone from the graph.
type Collapse struct {
	Pass    int
	Kind    RegionKind
	Header  graph.NodeID
	Region  []graph.NodeID
	Removed int
	Result  ast.Node
}

// Option configures a Structurer.
type Option func(*Structurer)

// WithLogger sets the logger that receives one debug line per collapse.
func WithLogger(l Logger) Option {
	return func(s *Structurer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithVerify makes the driver re-check the graph invariants after every
// collapse. A violation panics.
func WithVerify(on bool) Option {
	return func(s *Structurer) {
		s.verify = on
	}
}

// WithObserver registers fn to be called after every collapse.
func WithObserver(fn func(Collapse)) Option {
	return func(s *Structurer) {
		s.observers = append(s.observers, fn)
	}
}
