package cfg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/restruct/pkg/ast"
	"github.com/l3aro/restruct/pkg/cond"
	"github.com/l3aro/restruct/pkg/graph"
	"github.com/l3aro/restruct/pkg/structure"
)

// Description is the serializable input of the structuring engine: a list of
// blocks and the conditional edges between them, addressed by index.
type Description struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name"`
	Entry  int     `json:"entry" yaml:"entry" msgpack:"entry"`
	Blocks []Block `json:"blocks" yaml:"blocks" msgpack:"blocks"`
	Edges  []Edge  `json:"edges,omitempty" yaml:"edges,omitempty" msgpack:"edges"`
}

// Block is a basic block: an opaque label and its statements. Pure marks a
// block that only evaluates the branch on its out-edges.
type Block struct {
	Label string   `json:"label" yaml:"label" msgpack:"label"`
	Stmts []string `json:"stmts,omitempty" yaml:"stmts,omitempty" msgpack:"stmts"`
	Pure  bool     `json:"pure,omitempty" yaml:"pure,omitempty" msgpack:"pure,omitempty"`
}

// Edge is a control transfer between blocks. An edge with neither Cond nor
// Case is unconditional. Negate inverts Cond.
type Edge struct {
	From   int    `json:"from" yaml:"from" msgpack:"from"`
	To     int    `json:"to" yaml:"to" msgpack:"to"`
	Cond   string `json:"cond,omitempty" yaml:"cond,omitempty" msgpack:"cond"`
	Negate bool   `json:"negate,omitempty" yaml:"negate,omitempty" msgpack:"negate"`
	Case   *Case  `json:"case,omitempty" yaml:"case,omitempty" msgpack:"case"`
}

// Case marks a switch edge taken when Var holds one of Values, or, for the
// default edge, none of the values of its sibling edges.
type Case struct {
	Var     string   `json:"var" yaml:"var" msgpack:"var"`
	Values  []string `json:"values,omitempty" yaml:"values,omitempty" msgpack:"values"`
	Default bool     `json:"default,omitempty" yaml:"default,omitempty" msgpack:"default"`
}

// Validate checks that the description can be turned into a graph. Every
// error wraps structure.ErrMalformedInput.
func (d *Description) Validate() error {
	if len(d.Blocks) == 0 {
		return fmt.Errorf("%w: no blocks", structure.ErrMalformedInput)
	}
	if d.Entry < 0 || d.Entry >= len(d.Blocks) {
		return fmt.Errorf("%w: entry %d out of range [0, %d)", structure.ErrMalformedInput, d.Entry, len(d.Blocks))
	}
	for i, e := range d.Edges {
		if e.From < 0 || e.From >= len(d.Blocks) {
			return fmt.Errorf("%w: edge %d: source %d out of range", structure.ErrMalformedInput, i, e.From)
		}
		if e.To < 0 || e.To >= len(d.Blocks) {
			return fmt.Errorf("%w: edge %d: target %d out of range", structure.ErrMalformedInput, i, e.To)
		}
		if e.Case != nil {
			if e.Cond != "" || e.Negate {
				return fmt.Errorf("%w: edge %d: both cond and case set", structure.ErrMalformedInput, i)
			}
			if e.Case.Var == "" {
				return fmt.Errorf("%w: edge %d: case without var", structure.ErrMalformedInput, i)
			}
			if e.Case.Default == (len(e.Case.Values) > 0) {
				return fmt.Errorf("%w: edge %d: case needs either values or default", structure.ErrMalformedInput, i)
			}
		}
		if e.Negate && e.Cond == "" {
			return fmt.Errorf("%w: edge %d: negate without cond", structure.ErrMalformedInput, i)
		}
	}
	return nil
}

// Condition returns the engine condition carried by e.
func (e Edge) Condition() cond.Condition {
	if e.Case != nil {
		return cond.Case{
			Var:     cond.Variable(e.Case.Var),
			Values:  cond.NewValueSet(e.Case.Values...),
			Default: e.Case.Default,
		}
	}
	c := cond.NewSimple(e.Cond)
	if e.Negate {
		return cond.Negate(c)
	}
	return c
}

// Build validates d and returns the engine graph along with the node created
// for each block, in block order.
func (d *Description) Build() (*structure.CFG, []graph.NodeID, error) {
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}
	g := structure.NewCFG()
	ids := make([]graph.NodeID, len(d.Blocks))
	for i, b := range d.Blocks {
		n := ast.NewBlock(b.Label, b.Stmts...)
		n.Pure = b.Pure
		ids[i] = g.AddNode(n)
	}
	g.SetEntry(ids[d.Entry])
	for _, e := range d.Edges {
		g.AddEdge(ids[e.From], ids[e.To], e.Condition())
	}
	return g, ids, nil
}

// Fingerprint returns a stable hex digest of the description, used as the
// result cache key.
func (d *Description) Fingerprint() (string, error) {
	data, err := msgpack.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding description: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Description converts an extracted CFG into the engine input format. The
// entry block comes first; the rest keep their creation order.
func (c *CFGInfo) Description() (*Description, error) {
	if _, ok := c.Blocks[c.EntryBlockID]; !ok {
		return nil, fmt.Errorf("%w: entry block %q missing", structure.ErrMalformedInput, c.EntryBlockID)
	}
	ids := make([]string, 0, len(c.Blocks))
	for id := range c.Blocks {
		if id != c.EntryBlockID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return blockNumber(ids[i]) < blockNumber(ids[j])
	})
	ids = append([]string{c.EntryBlockID}, ids...)

	d := &Description{Name: c.FunctionName}
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
		b := c.Blocks[id]
		d.Blocks = append(d.Blocks, Block{
			Label: id,
			Stmts: b.Statements,
			Pure:  b.Type == BlockTypeBranch && len(b.Statements) == 0,
		})
	}
	for _, e := range c.Edges {
		from, ok := index[e.SourceID]
		if !ok {
			return nil, fmt.Errorf("%w: edge source %q missing", structure.ErrMalformedInput, e.SourceID)
		}
		to, ok := index[e.TargetID]
		if !ok {
			return nil, fmt.Errorf("%w: edge target %q missing", structure.ErrMalformedInput, e.TargetID)
		}
		edge := Edge{From: from, To: to}
		switch e.EdgeType {
		case EdgeTypeTrue:
			edge.Cond = e.Condition
		case EdgeTypeFalse:
			edge.Cond = e.Condition
			edge.Negate = true
		case EdgeTypeCase:
			edge.Case = &Case{Var: e.CaseVar, Values: e.CaseValues}
		case EdgeTypeDefault:
			edge.Case = &Case{Var: e.CaseVar, Default: true}
		}
		d.Edges = append(d.Edges, edge)
	}
	return d, d.Validate()
}

func blockNumber(id string) int {
	var n int
	if _, err := fmt.Sscanf(id, "block_%d", &n); err != nil {
		return -1
	}
	return n
}
