// Package resolver classifies every name in a module by how the generated
// code must access it. The classification runs before code generation so
// the generator can emit the right load and store form without revisiting
// enclosing scopes.
package resolver

import (
	"fmt"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/diag"
	"github.com/google/grumpy-sub001/internal/token"
)

// BindingKind says how a name is accessed within one scope.
type BindingKind int

const (
	// BindGlobal names live in the module dict.
	BindGlobal BindingKind = iota
	// BindLocal names are plain Go variables in the block function.
	BindLocal
	// BindCell names are locals captured by a nested function, so they
	// are boxed in a cell the closure can share.
	BindCell
	// BindFree names are cells owned by an enclosing function.
	BindFree
	// BindClassTransient names live in the class dict while the class
	// body runs and are resolved dynamically.
	BindClassTransient
)

func (k BindingKind) String() string {
	switch k {
	case BindGlobal:
		return "global"
	case BindLocal:
		return "local"
	case BindCell:
		return "cell"
	case BindFree:
		return "free"
	case BindClassTransient:
		return "class"
	}
	return "unknown"
}

// ScopeKind distinguishes the three binding environments of the language.
type ScopeKind int

const (
	ScopeModule ScopeKind = iota
	ScopeFunction
	ScopeClass
)

// Scope holds the resolved bindings of one module, function or class body.
type Scope struct {
	Kind     ScopeKind
	Name     string
	Node     ast.Node
	Parent   *Scope
	Children []*Scope

	// Bindings maps every name mentioned in this scope to its kind.
	Bindings map[string]BindingKind
	// Params are the declared parameter names, in declaration order.
	Params []string
	// Checked marks locals whose reads need an unbound check. Parameters
	// are bound on entry, so they only need the check once deleted.
	Checked map[string]bool
	// IsGenerator is set when the scope is a function containing yield.
	IsGenerator bool

	tok      token.Token
	assigned map[string]bool
	used     map[string]bool
	deleted  map[string]bool
	globals  map[string]bool
	frees    map[string]bool
	paramSet map[string]bool
}

// IsParam reports whether name is one of the scope's parameters.
func (s *Scope) IsParam(name string) bool {
	return s.paramSet[name]
}

// SortedLocals returns the scope's local and cell names. Parameters come
// first in declaration order, then the rest sorted, so generated
// prologues are deterministic.
func (s *Scope) SortedLocals() []string {
	names := append([]string(nil), s.Params...)
	var rest []string
	for name, kind := range s.Bindings {
		if kind != BindLocal && kind != BindCell {
			continue
		}
		if s.paramSet[name] {
			continue
		}
		rest = append(rest, name)
	}
	insertionSort(rest)
	return append(names, rest...)
}

func insertionSort(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// Table maps AST nodes that open scopes to their resolved Scope.
type Table struct {
	Module *Scope
	scopes map[ast.Node]*Scope
}

// ScopeFor returns the scope opened by node, or nil when node opens none.
func (t *Table) ScopeFor(node ast.Node) *Scope {
	return t.scopes[node]
}

// Resolve walks the module, builds its scope tree and classifies every
// name. Declaration conflicts are reported as diagnostics; resolution
// still completes so later passes can run.
func Resolve(moduleName string, mod *ast.Module) (*Table, []diag.Diagnostic) {
	r := &resolver{
		moduleName: moduleName,
		table:      &Table{scopes: map[ast.Node]*Scope{}},
	}
	root := r.newScope(ScopeModule, moduleName, mod, nil, token.Token{})
	r.table.Module = root
	r.collectBlock(root, mod.Statements)
	r.classify(root)
	diag.Sort(r.diags)
	return r.table, r.diags
}

type resolver struct {
	moduleName string
	table      *Table
	diags      []diag.Diagnostic
}

func (r *resolver) errorf(line, col int, format string, args ...interface{}) {
	r.diags = append(r.diags, diag.Diagnostic{
		Module:  r.moduleName,
		Line:    line,
		Column:  col,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *resolver) newScope(kind ScopeKind, name string, node ast.Node, parent *Scope, tok token.Token) *Scope {
	s := &Scope{
		Kind:     kind,
		Name:     name,
		Node:     node,
		Parent:   parent,
		tok:      tok,
		Bindings: map[string]BindingKind{},
		Checked:  map[string]bool{},
		assigned: map[string]bool{},
		used:     map[string]bool{},
		deleted:  map[string]bool{},
		globals:  map[string]bool{},
		frees:    map[string]bool{},
		paramSet: map[string]bool{},
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	r.table.scopes[node] = s
	return s
}

// collectBlock records assignments, reads and declarations for every
// statement in one suite, opening child scopes for nested definitions.
func (r *resolver) collectBlock(s *Scope, stmts []ast.Statement) {
	for _, stmt := range stmts {
		r.collectStatement(s, stmt)
	}
}

func (r *resolver) collectStatement(s *Scope, stmt ast.Statement) {
	switch st := stmt.(type) {
	case *ast.ExpressionStatement:
		r.collectExpr(s, st.Expression)
	case *ast.AssignStatement:
		r.collectExpr(s, st.Value)
		r.collectTarget(s, st.Target)
	case *ast.ReturnStatement:
		if st.Value != nil {
			r.collectExpr(s, st.Value)
		}
	case *ast.PassStatement:
	case *ast.DelStatement:
		for _, target := range st.Targets {
			switch t := target.(type) {
			case *ast.Identifier:
				s.assigned[t.Value] = true
				s.deleted[t.Value] = true
			case *ast.AttributeExpression:
				r.collectExpr(s, t.Object)
			case *ast.IndexExpression:
				r.collectExpr(s, t.Left)
				r.collectExpr(s, t.Index)
			}
		}
	case *ast.GlobalStatement:
		for _, name := range st.Names {
			if s.paramSet[name.Value] {
				r.errorf(name.Token.Line, name.Token.Column, "name %q is parameter and global", name.Value)
			}
			s.globals[name.Value] = true
		}
	case *ast.NonlocalStatement:
		for _, name := range st.Names {
			if s.paramSet[name.Value] {
				r.errorf(name.Token.Line, name.Token.Column, "name %q is parameter and nonlocal", name.Value)
			}
			if s.Kind == ScopeModule {
				r.errorf(name.Token.Line, name.Token.Column, "nonlocal declaration not allowed at module level")
				continue
			}
			s.frees[name.Value] = true
		}
	case *ast.IfStatement:
		r.collectExpr(s, st.Condition)
		r.collectBlock(s, st.Body.Statements)
		if st.Else != nil {
			r.collectBlock(s, st.Else.Statements)
		}
	case *ast.WhileStatement:
		r.collectExpr(s, st.Condition)
		r.collectBlock(s, st.Body.Statements)
		if st.Else != nil {
			r.collectBlock(s, st.Else.Statements)
		}
	case *ast.ForStatement:
		r.collectExpr(s, st.Iter)
		r.collectTarget(s, st.Target)
		r.collectBlock(s, st.Body.Statements)
		if st.Else != nil {
			r.collectBlock(s, st.Else.Statements)
		}
	case *ast.BreakStatement, *ast.ContinueStatement:
	case *ast.TryStatement:
		r.collectBlock(s, st.Body.Statements)
		for _, h := range st.Handlers {
			if h.Type != nil {
				r.collectExpr(s, h.Type)
			}
			if h.Name != nil {
				s.assigned[h.Name.Value] = true
			}
			r.collectBlock(s, h.Body.Statements)
		}
		if st.Finally != nil {
			r.collectBlock(s, st.Finally.Statements)
		}
	case *ast.RaiseStatement:
		if st.Exc != nil {
			r.collectExpr(s, st.Exc)
		}
	case *ast.ImportStatement:
		// "import a.b" binds the top-level package name.
		if len(st.Path) > 0 {
			s.assigned[st.Path[0]] = true
		}
	case *ast.WithStatement:
		r.collectExpr(s, st.Context)
		if st.Name != nil {
			s.assigned[st.Name.Value] = true
		}
		r.collectBlock(s, st.Body.Statements)
	case *ast.FunctionStatement:
		s.assigned[st.Name.Value] = true
		child := r.newScope(ScopeFunction, st.Name.Value, st, s, st.Token)
		for _, param := range st.Params {
			if param.Default != nil {
				// Defaults evaluate in the defining scope.
				r.collectExpr(s, param.Default)
			}
			child.Params = append(child.Params, param.Name.Value)
			child.paramSet[param.Name.Value] = true
			child.assigned[param.Name.Value] = true
		}
		r.collectBlock(child, st.Body.Statements)
	case *ast.ClassStatement:
		s.assigned[st.Name.Value] = true
		for _, base := range st.Bases {
			r.collectExpr(s, base)
		}
		child := r.newScope(ScopeClass, st.Name.Value, st, s, st.Token)
		r.collectBlock(child, st.Body.Statements)
	}
}

func (r *resolver) collectTarget(s *Scope, target ast.Expression) {
	switch t := target.(type) {
	case *ast.Identifier:
		s.assigned[t.Value] = true
	case *ast.TupleLiteral:
		for _, elem := range t.Elements {
			r.collectTarget(s, elem)
		}
	case *ast.ListLiteral:
		for _, elem := range t.Elements {
			r.collectTarget(s, elem)
		}
	case *ast.AttributeExpression:
		r.collectExpr(s, t.Object)
	case *ast.IndexExpression:
		r.collectExpr(s, t.Left)
		r.collectExpr(s, t.Index)
	}
}

func (r *resolver) collectExpr(s *Scope, expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Identifier:
		s.used[e.Value] = true
	case *ast.PrefixExpression:
		r.collectExpr(s, e.Right)
	case *ast.InfixExpression:
		r.collectExpr(s, e.Left)
		r.collectExpr(s, e.Right)
	case *ast.CallExpression:
		r.collectExpr(s, e.Function)
		for _, arg := range e.Arguments {
			r.collectExpr(s, arg)
		}
		for _, kw := range e.Keywords {
			r.collectExpr(s, kw.Value)
		}
	case *ast.AttributeExpression:
		r.collectExpr(s, e.Object)
	case *ast.IndexExpression:
		r.collectExpr(s, e.Left)
		r.collectExpr(s, e.Index)
	case *ast.TupleLiteral:
		for _, elem := range e.Elements {
			r.collectExpr(s, elem)
		}
	case *ast.ListLiteral:
		for _, elem := range e.Elements {
			r.collectExpr(s, elem)
		}
	case *ast.DictLiteral:
		for i := range e.Keys {
			r.collectExpr(s, e.Keys[i])
			r.collectExpr(s, e.Values[i])
		}
	case *ast.YieldExpression:
		if s.Kind == ScopeFunction {
			s.IsGenerator = true
		} else {
			r.errorf(e.Token.Line, e.Token.Column, "yield outside of function")
		}
		if e.Value != nil {
			r.collectExpr(s, e.Value)
		}
	}
}

// classify decides a binding kind for every name the scope mentions.
// Parents classify before children so free variable resolution can
// promote an enclosing local to a cell.
func (r *resolver) classify(s *Scope) {
	names := map[string]bool{}
	for name := range s.assigned {
		names[name] = true
	}
	for name := range s.used {
		names[name] = true
	}
	for name := range s.globals {
		names[name] = true
	}
	for name := range s.frees {
		names[name] = true
	}

	for name := range names {
		switch {
		case s.globals[name]:
			s.Bindings[name] = BindGlobal
		case s.frees[name]:
			if owner := s.enclosingBinder(name); owner != nil {
				owner.promoteToCell(name)
				s.Bindings[name] = BindFree
			} else {
				r.errorf(s.tok.Line, s.tok.Column, "no binding for nonlocal %q found", name)
				s.Bindings[name] = BindGlobal
			}
		case s.assigned[name]:
			switch s.Kind {
			case ScopeModule:
				s.Bindings[name] = BindGlobal
			case ScopeClass:
				s.Bindings[name] = BindClassTransient
			default:
				s.Bindings[name] = BindLocal
			}
		default:
			// Read without a local binding. Locals of enclosing
			// functions win over globals.
			if s.Kind == ScopeModule {
				s.Bindings[name] = BindGlobal
			} else if owner := s.enclosingBinder(name); owner != nil {
				owner.promoteToCell(name)
				s.Bindings[name] = BindFree
			} else if s.Kind == ScopeClass {
				s.Bindings[name] = BindClassTransient
			} else {
				s.Bindings[name] = BindGlobal
			}
		}
	}

	if s.Kind == ScopeFunction {
		for name, kind := range s.Bindings {
			if kind != BindLocal && kind != BindCell {
				continue
			}
			if s.deleted[name] || !s.paramSet[name] {
				s.Checked[name] = true
			}
		}
	}

	for _, child := range s.Children {
		r.classify(child)
	}
}

// enclosingBinder finds the nearest enclosing function scope that assigns
// name. Class scopes do not contribute bindings to nested scopes.
func (s *Scope) enclosingBinder(name string) *Scope {
	for p := s.Parent; p != nil; p = p.Parent {
		if p.Kind != ScopeFunction {
			continue
		}
		if p.globals[name] {
			return nil
		}
		if p.assigned[name] || p.frees[name] {
			return p
		}
	}
	return nil
}

func (s *Scope) promoteToCell(name string) {
	if s.frees[name] {
		// Already a free variable here; the cell lives further out.
		return
	}
	s.Bindings[name] = BindCell
}

