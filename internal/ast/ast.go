package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/google/grumpy-sub001/internal/token"
)

// Node is the base interface for all AST nodes
// Every node must provide a TokenLiteral (for debugging) and String (for printing)
type Node interface {
	TokenLiteral() string
	String() string
}

// Statement nodes don't produce values
// Examples: x = 5, return 10, del x
type Statement interface {
	Node
	statementNode() // Dummy method to distinguish statements from expressions
}

// Expression nodes produce values
// Examples: 5, x, add(2, 3), 5 + 3
type Expression interface {
	Node
	expressionNode() // Dummy method to distinguish expressions from statements
}

// Module is the root node of every AST: one source file's worth of
// top-level statements.
type Module struct {
	Statements []Statement
}

func (m *Module) TokenLiteral() string {
	if len(m.Statements) > 0 {
		return m.Statements[0].TokenLiteral()
	}
	return ""
}

// String builds the module back into source-ish text (useful for debugging)
func (m *Module) String() string {
	var out bytes.Buffer
	for _, s := range m.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// BlockStatement is an indented suite of statements.
type BlockStatement struct {
	Token      token.Token // The token introducing the suite
	Statements []Statement
}

func (bs *BlockStatement) statementNode()       {}
func (bs *BlockStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BlockStatement) String() string {
	var out bytes.Buffer
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Identifier represents a bare name
type Identifier struct {
	Token token.Token // The IDENT token
	Value string      // The actual name: "x", "foo"
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

// IntegerLiteral represents a number like 5 or 42
type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

// FloatLiteral represents a floating-point number like 3.14
type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

// StringLiteral represents a string like "hello"
type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return strconv.Quote(sl.Value) }

// NoneLiteral represents None.
type NoneLiteral struct {
	Token token.Token
}

func (nl *NoneLiteral) expressionNode()      {}
func (nl *NoneLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NoneLiteral) String() string       { return "None" }

// BooleanLiteral represents True or False
type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Literal }
func (bl *BooleanLiteral) String() string       { return bl.Token.Literal }

// TupleLiteral represents (a, b, c). A one-element tuple keeps its
// trailing comma: (a,).
type TupleLiteral struct {
	Token    token.Token
	Elements []Expression
}

func (tl *TupleLiteral) expressionNode()      {}
func (tl *TupleLiteral) TokenLiteral() string { return tl.Token.Literal }
func (tl *TupleLiteral) String() string {
	elems := make([]string, 0, len(tl.Elements))
	for _, e := range tl.Elements {
		elems = append(elems, e.String())
	}
	if len(elems) == 1 {
		return "(" + elems[0] + ",)"
	}
	return "(" + strings.Join(elems, ", ") + ")"
}

// ListLiteral represents [a, b, c]
type ListLiteral struct {
	Token    token.Token
	Elements []Expression
}

func (ll *ListLiteral) expressionNode()      {}
func (ll *ListLiteral) TokenLiteral() string { return ll.Token.Literal }
func (ll *ListLiteral) String() string {
	elems := make([]string, 0, len(ll.Elements))
	for _, e := range ll.Elements {
		elems = append(elems, e.String())
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// DictLiteral represents {k: v, ...}. Keys and Values run in parallel.
type DictLiteral struct {
	Token  token.Token
	Keys   []Expression
	Values []Expression
}

func (dl *DictLiteral) expressionNode()      {}
func (dl *DictLiteral) TokenLiteral() string { return dl.Token.Literal }
func (dl *DictLiteral) String() string {
	pairs := make([]string, 0, len(dl.Keys))
	for i := range dl.Keys {
		pairs = append(pairs, dl.Keys[i].String()+": "+dl.Values[i].String())
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// PrefixExpression represents -x or not x
type PrefixExpression struct {
	Token    token.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()      {}
func (pe *PrefixExpression) TokenLiteral() string { return pe.Token.Literal }
func (pe *PrefixExpression) String() string {
	sep := ""
	if pe.Operator == "not" {
		sep = " "
	}
	return "(" + pe.Operator + sep + pe.Right.String() + ")"
}

// InfixExpression represents left op right, covering arithmetic,
// comparisons, "and"/"or" and "is".
type InfixExpression struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()      {}
func (ie *InfixExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// KeywordArgument represents name=value in a call's argument list
type KeywordArgument struct {
	Token token.Token
	Name  string
	Value Expression
}

func (ka *KeywordArgument) expressionNode()      {}
func (ka *KeywordArgument) TokenLiteral() string { return ka.Token.Literal }
func (ka *KeywordArgument) String() string       { return ka.Name + "=" + ka.Value.String() }

// CallExpression represents f(a, b, k=v)
type CallExpression struct {
	Token     token.Token // The ( token
	Function  Expression
	Arguments []Expression
	Keywords  []*KeywordArgument
}

func (ce *CallExpression) expressionNode()      {}
func (ce *CallExpression) TokenLiteral() string { return ce.Token.Literal }
func (ce *CallExpression) String() string {
	args := make([]string, 0, len(ce.Arguments)+len(ce.Keywords))
	for _, a := range ce.Arguments {
		args = append(args, a.String())
	}
	for _, k := range ce.Keywords {
		args = append(args, k.String())
	}
	return ce.Function.String() + "(" + strings.Join(args, ", ") + ")"
}

// AttributeExpression represents obj.name
type AttributeExpression struct {
	Token  token.Token // The . token
	Object Expression
	Name   string
}

func (ae *AttributeExpression) expressionNode()      {}
func (ae *AttributeExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *AttributeExpression) String() string       { return ae.Object.String() + "." + ae.Name }

// IndexExpression represents obj[key]
type IndexExpression struct {
	Token token.Token // The [ token
	Left  Expression
	Index Expression
}

func (ie *IndexExpression) expressionNode()      {}
func (ie *IndexExpression) TokenLiteral() string { return ie.Token.Literal }
func (ie *IndexExpression) String() string {
	return ie.Left.String() + "[" + ie.Index.String() + "]"
}

// YieldExpression represents yield or yield x. It suspends the enclosing
// function and may produce a sent value when used in expression position.
type YieldExpression struct {
	Token token.Token
	Value Expression // may be nil for a bare yield
}

func (ye *YieldExpression) expressionNode()      {}
func (ye *YieldExpression) TokenLiteral() string { return ye.Token.Literal }
func (ye *YieldExpression) String() string {
	if ye.Value == nil {
		return "(yield)"
	}
	return "(yield " + ye.Value.String() + ")"
}

// ExpressionStatement wraps an expression used for its side effects
type ExpressionStatement struct {
	Token      token.Token
	Expression Expression
}

func (es *ExpressionStatement) statementNode()       {}
func (es *ExpressionStatement) TokenLiteral() string { return es.Token.Literal }
func (es *ExpressionStatement) String() string {
	if es.Expression == nil {
		return ""
	}
	return es.Expression.String()
}

// AssignStatement represents target = value where target is a name,
// attribute, subscript or tuple of targets.
type AssignStatement struct {
	Token  token.Token // The = token
	Target Expression
	Value  Expression
}

func (as *AssignStatement) statementNode()       {}
func (as *AssignStatement) TokenLiteral() string { return as.Token.Literal }
func (as *AssignStatement) String() string {
	return as.Target.String() + " = " + as.Value.String()
}

// ReturnStatement represents return or return x
type ReturnStatement struct {
	Token token.Token
	Value Expression // may be nil
}

func (rs *ReturnStatement) statementNode()       {}
func (rs *ReturnStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *ReturnStatement) String() string {
	if rs.Value == nil {
		return "return"
	}
	return "return " + rs.Value.String()
}

// PassStatement does nothing; it only exists so a suite can be empty.
type PassStatement struct {
	Token token.Token
}

func (ps *PassStatement) statementNode()       {}
func (ps *PassStatement) TokenLiteral() string { return ps.Token.Literal }
func (ps *PassStatement) String() string       { return "pass" }

// DelStatement represents del x, del x.a, del x[k] or a comma list of those
type DelStatement struct {
	Token   token.Token
	Targets []Expression
}

func (ds *DelStatement) statementNode()       {}
func (ds *DelStatement) TokenLiteral() string { return ds.Token.Literal }
func (ds *DelStatement) String() string {
	targets := make([]string, 0, len(ds.Targets))
	for _, t := range ds.Targets {
		targets = append(targets, t.String())
	}
	return "del " + strings.Join(targets, ", ")
}

// GlobalStatement represents global a, b
type GlobalStatement struct {
	Token token.Token
	Names []*Identifier
}

func (gs *GlobalStatement) statementNode()       {}
func (gs *GlobalStatement) TokenLiteral() string { return gs.Token.Literal }
func (gs *GlobalStatement) String() string {
	names := make([]string, 0, len(gs.Names))
	for _, n := range gs.Names {
		names = append(names, n.Value)
	}
	return "global " + strings.Join(names, ", ")
}

// NonlocalStatement represents nonlocal a, b
type NonlocalStatement struct {
	Token token.Token
	Names []*Identifier
}

func (ns *NonlocalStatement) statementNode()       {}
func (ns *NonlocalStatement) TokenLiteral() string { return ns.Token.Literal }
func (ns *NonlocalStatement) String() string {
	names := make([]string, 0, len(ns.Names))
	for _, n := range ns.Names {
		names = append(names, n.Value)
	}
	return "nonlocal " + strings.Join(names, ", ")
}

// IfStatement represents if/elif/else. The parser desugars elif chains
// into nested IfStatements inside Else.
type IfStatement struct {
	Token     token.Token
	Condition Expression
	Body      *BlockStatement
	Else      *BlockStatement // may be nil
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) String() string {
	out := "if " + is.Condition.String() + ": " + is.Body.String()
	if is.Else != nil {
		out += " else: " + is.Else.String()
	}
	return out
}

// WhileStatement represents while with an optional else clause that runs
// only on normal exhaustion (not on break).
type WhileStatement struct {
	Token     token.Token
	Condition Expression
	Body      *BlockStatement
	Else      *BlockStatement // may be nil
}

func (ws *WhileStatement) statementNode()       {}
func (ws *WhileStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WhileStatement) String() string {
	out := "while " + ws.Condition.String() + ": " + ws.Body.String()
	if ws.Else != nil {
		out += " else: " + ws.Else.String()
	}
	return out
}

// ForStatement represents for target in iter with an optional else clause.
type ForStatement struct {
	Token  token.Token
	Target Expression
	Iter   Expression
	Body   *BlockStatement
	Else   *BlockStatement // may be nil
}

func (fs *ForStatement) statementNode()       {}
func (fs *ForStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *ForStatement) String() string {
	out := "for " + fs.Target.String() + " in " + fs.Iter.String() + ": " + fs.Body.String()
	if fs.Else != nil {
		out += " else: " + fs.Else.String()
	}
	return out
}

// BreakStatement represents break
type BreakStatement struct {
	Token token.Token
}

func (bs *BreakStatement) statementNode()       {}
func (bs *BreakStatement) TokenLiteral() string { return bs.Token.Literal }
func (bs *BreakStatement) String() string       { return "break" }

// ContinueStatement represents continue
type ContinueStatement struct {
	Token token.Token
}

func (cs *ContinueStatement) statementNode()       {}
func (cs *ContinueStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *ContinueStatement) String() string       { return "continue" }

// Param is one declared parameter of a def. A parameter with a Default is
// optional; one without is required.
type Param struct {
	Name    *Identifier
	Default Expression // may be nil
}

func (p *Param) String() string {
	if p.Default == nil {
		return p.Name.Value
	}
	return p.Name.Value + "=" + p.Default.String()
}

// FunctionStatement represents def name(params): body
type FunctionStatement struct {
	Token  token.Token
	Name   *Identifier
	Params []*Param
	Body   *BlockStatement
}

func (fs *FunctionStatement) statementNode()       {}
func (fs *FunctionStatement) TokenLiteral() string { return fs.Token.Literal }
func (fs *FunctionStatement) String() string {
	params := make([]string, 0, len(fs.Params))
	for _, p := range fs.Params {
		params = append(params, p.String())
	}
	return "def " + fs.Name.Value + "(" + strings.Join(params, ", ") + "): " + fs.Body.String()
}

// ClassStatement represents class name(bases): body
type ClassStatement struct {
	Token token.Token
	Name  *Identifier
	Bases []Expression
	Body  *BlockStatement
}

func (cs *ClassStatement) statementNode()       {}
func (cs *ClassStatement) TokenLiteral() string { return cs.Token.Literal }
func (cs *ClassStatement) String() string {
	bases := make([]string, 0, len(cs.Bases))
	for _, b := range cs.Bases {
		bases = append(bases, b.String())
	}
	return "class " + cs.Name.Value + "(" + strings.Join(bases, ", ") + "): " + cs.Body.String()
}

// ExceptHandler is one except clause of a try statement. A nil Type means
// a bare except that catches everything.
type ExceptHandler struct {
	Token token.Token
	Type  Expression  // may be nil
	Name  *Identifier // may be nil
	Body  *BlockStatement
}

func (eh *ExceptHandler) String() string {
	out := "except"
	if eh.Type != nil {
		out += " " + eh.Type.String()
	}
	if eh.Name != nil {
		out += " as " + eh.Name.Value
	}
	return out + ": " + eh.Body.String()
}

// TryStatement represents try/except/finally. At least one handler or a
// finally clause is present.
type TryStatement struct {
	Token    token.Token
	Body     *BlockStatement
	Handlers []*ExceptHandler
	Finally  *BlockStatement // may be nil
}

func (ts *TryStatement) statementNode()       {}
func (ts *TryStatement) TokenLiteral() string { return ts.Token.Literal }
func (ts *TryStatement) String() string {
	out := "try: " + ts.Body.String()
	for _, h := range ts.Handlers {
		out += " " + h.String()
	}
	if ts.Finally != nil {
		out += " finally: " + ts.Finally.String()
	}
	return out
}

// RaiseStatement represents raise or raise exc
type RaiseStatement struct {
	Token token.Token
	Exc   Expression // nil re-raises the active exception
}

func (rs *RaiseStatement) statementNode()       {}
func (rs *RaiseStatement) TokenLiteral() string { return rs.Token.Literal }
func (rs *RaiseStatement) String() string {
	if rs.Exc == nil {
		return "raise"
	}
	return "raise " + rs.Exc.String()
}

// ImportStatement represents import a.b.c
type ImportStatement struct {
	Token token.Token
	Path  []string // the dotted components: ["a", "b", "c"]
}

func (is *ImportStatement) statementNode()       {}
func (is *ImportStatement) TokenLiteral() string { return is.Token.Literal }
func (is *ImportStatement) String() string       { return "import " + strings.Join(is.Path, ".") }

// WithStatement represents with ctx as name: body. The context manager's
// release always runs, even when the body fails.
type WithStatement struct {
	Token   token.Token
	Context Expression
	Name    *Identifier // may be nil
	Body    *BlockStatement
}

func (ws *WithStatement) statementNode()       {}
func (ws *WithStatement) TokenLiteral() string { return ws.Token.Literal }
func (ws *WithStatement) String() string {
	out := "with " + ws.Context.String()
	if ws.Name != nil {
		out += " as " + ws.Name.Value
	}
	return out + ": " + ws.Body.String()
}
