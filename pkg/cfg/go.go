package cfg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// ErrUnsupported is returned for Go constructs the extractor cannot express
// as a CFG description, such as goto.
var ErrUnsupported = errors.New("unsupported construct")

// jumpScope is an enclosing loop, switch or select that break and continue
// statements can target.
type jumpScope struct {
	label      string
	breakTo    *CFGBlock
	continueTo *CFGBlock // nil for switch and select
}

type goCFGExtractor struct {
	content  []byte
	tree     *sitter.Tree
	blocks   map[string]*CFGBlock
	edges    []CFGEdge
	blockID  int
	funcName string

	scopes  []jumpScope
	returns []*CFGBlock
	err     error
}

func newGoCFGExtractor(content []byte, funcName string) *goCFGExtractor {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree := parser.Parse(nil, content)

	return &goCFGExtractor{
		content:  content,
		tree:     tree,
		blocks:   make(map[string]*CFGBlock),
		edges:    make([]CFGEdge, 0),
		funcName: funcName,
	}
}

// ExtractGoCFG extracts the Control Flow Graph of a function or method from a
// Go file. Methods may be named either "Method" or "Type.Method".
func ExtractGoCFG(filePath string, functionName string) (*CFGInfo, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}
	info, err := ParseGoCFG(content, functionName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return info, nil
}

// ParseGoCFG extracts the Control Flow Graph of a function from Go source.
func ParseGoCFG(content []byte, functionName string) (*CFGInfo, error) {
	extractor := newGoCFGExtractor(content, functionName)
	defer extractor.tree.Close()

	funcNode := extractor.findFunction(extractor.tree.RootNode(), functionName)
	if funcNode == nil {
		return nil, fmt.Errorf("function %q not found", functionName)
	}
	body := funcNode.ChildByFieldName("body")
	if body == nil {
		return nil, fmt.Errorf("function %q has no body", functionName)
	}

	entry := extractor.newBlock(BlockTypeEntry, int(funcNode.StartPoint().Row)+1)
	last := extractor.processStatements(extractor.statements(body), entry)
	if extractor.err != nil {
		return nil, extractor.err
	}
	if last != nil {
		extractor.returns = append(extractor.returns, last)
	}
	extractor.prune(entry)

	return &CFGInfo{
		FunctionName:         functionName,
		Blocks:               extractor.blocksToMap(),
		Edges:                extractor.edges,
		EntryBlockID:         entry.ID,
		ExitBlockIDs:         extractor.exitIDs(),
		CyclomaticComplexity: extractor.calculateCyclomaticComplexity(body),
	}, nil
}

// ListGoFunctions returns the functions and methods declared in a Go file.
// Methods are listed as "Type.Method".
func ListGoFunctions(filePath string) ([]string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}
	return ParseGoFunctions(content), nil
}

// ParseGoFunctions returns the functions and methods declared in Go source,
// in declaration order. Declarations without a body are skipped.
func ParseGoFunctions(content []byte) []string {
	extractor := newGoCFGExtractor(content, "")
	defer extractor.tree.Close()

	var names []string
	root := extractor.tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.ChildByFieldName("body") == nil {
			continue
		}
		switch child.Type() {
		case "function_declaration":
			names = append(names, extractor.nodeText(child.ChildByFieldName("name")))
		case "method_declaration":
			names = append(names, extractor.methodName(child))
		}
	}
	return names
}

func (e *goCFGExtractor) findFunction(root *sitter.Node, funcName string) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration":
			if e.nodeText(child.ChildByFieldName("name")) == funcName {
				return child
			}
		case "method_declaration":
			if e.nodeText(child.ChildByFieldName("name")) == funcName || e.methodName(child) == funcName {
				return child
			}
		}
	}
	return nil
}

// methodName returns "Type.Method" for a method declaration.
func (e *goCFGExtractor) methodName(node *sitter.Node) string {
	name := e.nodeText(node.ChildByFieldName("name"))
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return name
	}
	for i := 0; i < int(recv.NamedChildCount()); i++ {
		param := recv.NamedChild(i)
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := e.nodeText(param.ChildByFieldName("type"))
		typ = strings.TrimPrefix(typ, "*")
		if idx := strings.Index(typ, "["); idx >= 0 {
			typ = typ[:idx]
		}
		return typ + "." + name
	}
	return name
}

// statements returns the statements of a block, flattening statement lists.
func (e *goCFGExtractor) statements(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "comment":
		case "statement_list":
			out = append(out, e.statements(child)...)
		default:
			out = append(out, child)
		}
	}
	return out
}

// processStatements adds stmts to the graph starting in cur and returns the
// block control falls out of, or nil when every path jumped away.
func (e *goCFGExtractor) processStatements(stmts []*sitter.Node, cur *CFGBlock) *CFGBlock {
	for _, stmt := range stmts {
		if cur == nil {
			// Dead code after a jump; its block is pruned later.
			cur = e.newBlock(BlockTypePlain, int(stmt.StartPoint().Row)+1)
		}
		cur = e.processStatement(stmt, cur, "")
	}
	return cur
}

func (e *goCFGExtractor) processStatement(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	switch node.Type() {
	case "block":
		return e.processStatements(e.statements(node), cur)

	case "if_statement":
		return e.processIfStatement(node, cur)

	case "for_statement":
		return e.processForStatement(node, cur, label)

	case "expression_switch_statement", "type_switch_statement", "select_statement":
		return e.processSwitchStatement(node, cur, label)

	case "return_statement":
		e.appendStatement(cur, node)
		if cur.Type == BlockTypePlain {
			cur.Type = BlockTypeReturn
		}
		e.returns = append(e.returns, cur)
		return nil

	case "break_statement":
		e.appendStatement(cur, node)
		scope := e.findScope(e.jumpLabel(node), false)
		if scope == nil {
			e.fail(node, "break outside loop, switch or select")
			return nil
		}
		e.addEdge(cur.ID, scope.breakTo.ID, EdgeTypeBreak)
		return nil

	case "continue_statement":
		e.appendStatement(cur, node)
		scope := e.findScope(e.jumpLabel(node), true)
		if scope == nil {
			e.fail(node, "continue outside loop")
			return nil
		}
		e.addEdge(cur.ID, scope.continueTo.ID, EdgeTypeContinue)
		return nil

	case "labeled_statement":
		name := e.nodeText(node.ChildByFieldName("label"))
		if inner := node.NamedChild(int(node.NamedChildCount()) - 1); inner != nil && inner.Type() != "label_name" {
			return e.processStatement(inner, cur, name)
		}
		return cur

	case "goto_statement":
		e.fail(node, "goto")
		return cur

	case "fallthrough_statement":
		// Handled by processSwitchStatement.
		return cur

	default:
		e.appendStatement(cur, node)
		return cur
	}
}

func (e *goCFGExtractor) processIfStatement(node *sitter.Node, cur *CFGBlock) *CFGBlock {
	if init := node.ChildByFieldName("initializer"); init != nil {
		e.appendStatement(cur, init)
	}
	condition := e.nodeText(node.ChildByFieldName("condition"))
	consequence := node.ChildByFieldName("consequence")

	thenBlock := e.newBlock(BlockTypePlain, int(consequence.StartPoint().Row)+1)
	e.addCondEdge(cur.ID, thenBlock.ID, EdgeTypeTrue, condition)
	thenEnd := e.processStatements(e.statements(consequence), thenBlock)

	join := e.newBlock(BlockTypePlain, int(node.EndPoint().Row)+1)
	if alt := node.ChildByFieldName("alternative"); alt != nil {
		elseBlock := e.newBlock(BlockTypePlain, int(alt.StartPoint().Row)+1)
		e.addCondEdge(cur.ID, elseBlock.ID, EdgeTypeFalse, condition)
		var elseEnd *CFGBlock
		if alt.Type() == "if_statement" {
			elseEnd = e.processIfStatement(alt, elseBlock)
		} else {
			elseEnd = e.processStatements(e.statements(alt), elseBlock)
		}
		e.jump(elseEnd, join)
	} else {
		e.addCondEdge(cur.ID, join.ID, EdgeTypeFalse, condition)
	}
	e.jump(thenEnd, join)
	return join
}

func (e *goCFGExtractor) processForStatement(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	body := node.ChildByFieldName("body")

	var condition string
	var post *sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if sameNode(child, body) {
			continue
		}
		switch child.Type() {
		case "for_clause":
			if init := child.ChildByFieldName("initializer"); init != nil {
				e.appendStatement(cur, init)
			}
			condition = e.nodeText(child.ChildByFieldName("condition"))
			post = child.ChildByFieldName("update")
		case "comment":
		default:
			// A range clause or a bare condition.
			condition = e.nodeText(child)
		}
	}

	header := e.newBlock(BlockTypeBranch, int(node.StartPoint().Row)+1)
	e.jump(cur, header)
	exit := e.newBlock(BlockTypePlain, int(node.EndPoint().Row)+1)
	loopBody := e.newBlock(BlockTypeLoopBody, int(body.StartPoint().Row)+1)
	if condition != "" {
		e.addCondEdge(header.ID, loopBody.ID, EdgeTypeTrue, condition)
		e.addCondEdge(header.ID, exit.ID, EdgeTypeFalse, condition)
	} else {
		e.addEdge(header.ID, loopBody.ID, EdgeTypeUnconditional)
	}

	continueTo := header
	var postBlock *CFGBlock
	if post != nil {
		postBlock = e.newBlock(BlockTypePlain, int(post.StartPoint().Row)+1)
		e.appendStatement(postBlock, post)
		continueTo = postBlock
	}

	e.scopes = append(e.scopes, jumpScope{label: label, breakTo: exit, continueTo: continueTo})
	end := e.processStatements(e.statements(body), loopBody)
	e.scopes = e.scopes[:len(e.scopes)-1]

	if postBlock != nil {
		e.jump(end, postBlock)
		e.addEdge(postBlock.ID, header.ID, EdgeTypeBackEdge)
	} else if end != nil {
		e.addEdge(end.ID, header.ID, EdgeTypeBackEdge)
	}
	return exit
}

// processSwitchStatement handles expression switches, type switches and
// selects. Each clause becomes a case edge on the switch subject; a switch
// without default gets a default edge to the join block.
func (e *goCFGExtractor) processSwitchStatement(node *sitter.Node, cur *CFGBlock, label string) *CFGBlock {
	if init := node.ChildByFieldName("initializer"); init != nil {
		e.appendStatement(cur, init)
	}
	subject := e.switchSubject(node)

	var clauses []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "expression_case", "type_case", "communication_case", "default_case":
			clauses = append(clauses, child)
		}
	}

	join := e.newBlock(BlockTypePlain, int(node.EndPoint().Row)+1)
	bodies := make([]*CFGBlock, len(clauses))
	hasDefault := false
	for i, clause := range clauses {
		head, _ := e.caseParts(clause)
		bodies[i] = e.newBlock(BlockTypePlain, int(clause.StartPoint().Row)+1)
		if clause.Type() == "default_case" {
			hasDefault = true
			e.addCaseEdge(cur.ID, bodies[i].ID, EdgeTypeDefault, subject, nil)
			continue
		}
		e.addCaseEdge(cur.ID, bodies[i].ID, EdgeTypeCase, subject, e.caseValues(head))
		if clause.Type() == "communication_case" {
			for _, h := range head {
				e.appendStatement(bodies[i], h)
			}
		}
	}
	if !hasDefault && node.Type() != "select_statement" {
		e.addCaseEdge(cur.ID, join.ID, EdgeTypeDefault, subject, nil)
	}

	e.scopes = append(e.scopes, jumpScope{label: label, breakTo: join})
	for i, clause := range clauses {
		_, stmts := e.caseParts(clause)
		end := e.processStatements(stmts, bodies[i])
		if end != nil && len(stmts) > 0 && stmts[len(stmts)-1].Type() == "fallthrough_statement" && i+1 < len(clauses) {
			e.addEdge(end.ID, bodies[i+1].ID, EdgeTypeUnconditional)
			continue
		}
		e.jump(end, join)
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
	return join
}

// switchSubject returns the text a switch dispatches on. A tagless switch
// dispatches on true; a select on the ready channel operation.
func (e *goCFGExtractor) switchSubject(node *sitter.Node) string {
	switch node.Type() {
	case "select_statement":
		return "select"
	case "type_switch_statement":
		subject := e.nodeText(node.ChildByFieldName("value")) + ".(type)"
		if alias := node.ChildByFieldName("alias"); alias != nil {
			subject = e.nodeText(alias) + " := " + subject
		}
		return subject
	}
	if value := node.ChildByFieldName("value"); value != nil {
		return e.nodeText(value)
	}
	return "true"
}

// caseParts splits a case clause into the named nodes before the colon (the
// case values, types or channel operation) and the statements after it.
func (e *goCFGExtractor) caseParts(clause *sitter.Node) (head, stmts []*sitter.Node) {
	afterColon := false
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		if child == nil {
			continue
		}
		if !child.IsNamed() {
			if child.Type() == ":" {
				afterColon = true
			}
			continue
		}
		switch {
		case child.Type() == "comment":
		case !afterColon:
			head = append(head, child)
		case child.Type() == "statement_list":
			stmts = append(stmts, e.statements(child)...)
		default:
			stmts = append(stmts, child)
		}
	}
	return head, stmts
}

func (e *goCFGExtractor) caseValues(head []*sitter.Node) []string {
	var values []string
	for _, h := range head {
		if h.Type() == "expression_list" {
			for i := 0; i < int(h.NamedChildCount()); i++ {
				values = append(values, e.nodeText(h.NamedChild(i)))
			}
			continue
		}
		values = append(values, e.nodeText(h))
	}
	return values
}

func (e *goCFGExtractor) jumpLabel(node *sitter.Node) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "label_name" {
			return e.nodeText(child)
		}
	}
	return ""
}

// findScope returns the innermost enclosing scope matching label, or the
// innermost one when label is empty. Continue only targets loops.
func (e *goCFGExtractor) findScope(label string, loopOnly bool) *jumpScope {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		s := &e.scopes[i]
		if loopOnly && s.continueTo == nil {
			if label != "" && s.label == label {
				return nil
			}
			continue
		}
		if label == "" || s.label == label {
			return s
		}
	}
	return nil
}

func (e *goCFGExtractor) fail(node *sitter.Node, what string) {
	if e.err == nil {
		e.err = fmt.Errorf("line %d: %w: %s", node.StartPoint().Row+1, ErrUnsupported, what)
	}
}

func (e *goCFGExtractor) newBlock(blockType BlockType, line int) *CFGBlock {
	e.blockID++
	block := &CFGBlock{
		ID:           fmt.Sprintf("block_%d", e.blockID),
		Type:         blockType,
		StartLine:    line,
		EndLine:      line,
		Statements:   make([]string, 0),
		Predecessors: make([]string, 0),
	}
	e.blocks[block.ID] = block
	return block
}

func (e *goCFGExtractor) appendStatement(block *CFGBlock, node *sitter.Node) {
	stmt := strings.TrimSpace(e.nodeText(node))
	if stmt == "" {
		return
	}
	block.Statements = append(block.Statements, stmt)
	block.EndLine = int(node.EndPoint().Row) + 1
}

func (e *goCFGExtractor) addEdge(sourceID, targetID string, edgeType EdgeType) {
	e.edges = append(e.edges, CFGEdge{
		SourceID: sourceID,
		TargetID: targetID,
		EdgeType: edgeType,
	})
}

func (e *goCFGExtractor) addCondEdge(sourceID, targetID string, edgeType EdgeType, condition string) {
	e.edges = append(e.edges, CFGEdge{
		SourceID:  sourceID,
		TargetID:  targetID,
		EdgeType:  edgeType,
		Condition: condition,
	})
}

func (e *goCFGExtractor) addCaseEdge(sourceID, targetID string, edgeType EdgeType, subject string, values []string) {
	e.edges = append(e.edges, CFGEdge{
		SourceID:   sourceID,
		TargetID:   targetID,
		EdgeType:   edgeType,
		CaseVar:    subject,
		CaseValues: values,
	})
}

// jump adds an unconditional edge unless control never reaches from.
func (e *goCFGExtractor) jump(from, to *CFGBlock) {
	if from != nil {
		e.addEdge(from.ID, to.ID, EdgeTypeUnconditional)
	}
}

// prune drops blocks that cannot be reached from entry, along with their
// edges, and fills in predecessor lists.
func (e *goCFGExtractor) prune(entry *CFGBlock) {
	succs := make(map[string][]string)
	for _, edge := range e.edges {
		succs[edge.SourceID] = append(succs[edge.SourceID], edge.TargetID)
	}
	reached := map[string]bool{entry.ID: true}
	stack := []string{entry.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range succs[id] {
			if !reached[next] {
				reached[next] = true
				stack = append(stack, next)
			}
		}
	}

	for id := range e.blocks {
		if !reached[id] {
			delete(e.blocks, id)
		}
	}
	kept := e.edges[:0]
	for _, edge := range e.edges {
		if reached[edge.SourceID] {
			kept = append(kept, edge)
			target := e.blocks[edge.TargetID]
			if !containsString(target.Predecessors, edge.SourceID) {
				target.Predecessors = append(target.Predecessors, edge.SourceID)
			}
		}
	}
	e.edges = kept
}

func (e *goCFGExtractor) exitIDs() []string {
	var ids []string
	for _, b := range e.returns {
		if _, ok := e.blocks[b.ID]; ok && !containsString(ids, b.ID) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func (e *goCFGExtractor) blocksToMap() map[string]CFGBlock {
	result := make(map[string]CFGBlock)
	for id, block := range e.blocks {
		result[id] = *block
	}
	return result
}

func (e *goCFGExtractor) calculateCyclomaticComplexity(node *sitter.Node) int {
	if node == nil {
		return 1
	}
	return e.countDecisionPoints(node) + 1
}

func (e *goCFGExtractor) countDecisionPoints(node *sitter.Node) int {
	if node == nil {
		return 0
	}

	count := 0
	switch node.Type() {
	case "if_statement", "for_statement":
		count++
	case "expression_case", "type_case", "communication_case":
		count++
	case "&&", "||":
		count++
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child != nil {
			count += e.countDecisionPoints(child)
		}
	}
	return count
}

func (e *goCFGExtractor) nodeText(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint32(len(e.content)) || end > uint32(len(e.content)) {
		return ""
	}
	return string(e.content[start:end])
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
