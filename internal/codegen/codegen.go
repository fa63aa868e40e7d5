// Package codegen lowers a parsed module into Go source text. Each
// source scope becomes one Go function whose body is a resumable state
// machine driven by the runtime frame, so exception unwinding and
// generator suspension re-enter the function and jump back to where
// execution left off.
package codegen

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/diag"
	"github.com/google/grumpy-sub001/internal/resolver"
	"github.com/google/grumpy-sub001/internal/token"
)

// DefaultRuntimePath is the import path of the runtime package emitted
// code calls into. It can be overridden for vendored runtimes.
const DefaultRuntimePath = "github.com/google/grumpy-sub001/runtime"

// GeneratedSource is the result of compiling one module.
type GeneratedSource struct {
	// Name is the dotted source-level module name.
	Name string
	// ImportPath is the Go import path of the generated package.
	ImportPath string
	// Text is the complete generated Go file.
	Text string
}

// ErrorList is the compile failure for one module. A failed compilation
// produces no partial output.
type ErrorList []diag.Diagnostic

func (e ErrorList) Error() string {
	if len(e) == 0 {
		return "compilation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", e[0].Error(), len(e)-1)
}

// CodeGen holds the state for compiling one module at a time.
type CodeGen struct {
	runtimePath string

	name       string
	importPath string
	importRoot string
	imports    *importSet
	table      *resolver.Table
	errors     []diag.Diagnostic
	hoisted    []string
	hoistSeq   map[string]int
	envSeq     int
}

// New creates a new code generator targeting the default runtime.
func New() *CodeGen {
	return &CodeGen{runtimePath: DefaultRuntimePath}
}

// SetRuntimePath overrides the import path of the runtime package.
func (cg *CodeGen) SetRuntimePath(p string) {
	cg.runtimePath = p
}

// Errors returns the diagnostics collected by the last compilation.
func (cg *CodeGen) Errors() []diag.Diagnostic {
	return cg.errors
}

// CompileModule compiles one module to Go source text. name is the
// dotted module name and importPath the Go import path the generated
// package will live at.
func CompileModule(mod *ast.Module, name, importPath string) (*GeneratedSource, error) {
	return New().CompileModule(mod, name, importPath)
}

// CompileModule compiles mod into a single generated Go file holding the
// module's initialization block and one hoisted function per top-level
// def and class.
func (cg *CodeGen) CompileModule(mod *ast.Module, name, importPath string) (*GeneratedSource, error) {
	cg.name = name
	cg.importPath = importPath
	cg.importRoot = importRoot(name, importPath)
	cg.imports = newImportSet()
	cg.errors = nil
	cg.hoisted = nil
	cg.hoistSeq = map[string]int{}
	cg.envSeq = 0

	table, diags := resolver.Resolve(name, mod)
	if len(diags) > 0 {
		return nil, ErrorList(diags)
	}
	cg.table = table
	cg.imports.add("πg", cg.runtimePath)

	b := cg.newBlock(blockModule, table.Module, 2)
	for _, stmt := range mod.Statements {
		cg.compileStatement(b, stmt)
	}
	b.w.Line("return nil, nil")

	if len(cg.errors) > 0 {
		diag.Sort(cg.errors)
		return nil, ErrorList(cg.errors)
	}

	out := NewWriter(0)
	out.Linef("// Code generated by grumpc from %s. DO NOT EDIT.", name)
	out.Line("")
	out.Linef("package %s", packageName(name))
	out.Line("")
	cg.imports.render(out)
	out.Line("")
	out.Line("// Code is the module's initialization block.")
	out.Linef("var Code = πg.NewCode(%q, func(πF *πg.Frame, πArgs πg.Args, πKwargs πg.KWArgs) (*πg.Object, *πg.BaseException) {", name)
	out.Raw(cg.blockText(b, 1, nil))
	out.Line("})")
	for _, h := range cg.hoisted {
		out.Line("")
		out.Raw(h)
	}
	return &GeneratedSource{Name: name, ImportPath: importPath, Text: out.String()}, nil
}

func (cg *CodeGen) errorf(tok token.Token, format string, args ...interface{}) {
	cg.errors = append(cg.errors, diag.Diagnostic{
		Module:  cg.name,
		Line:    tok.Line,
		Column:  tok.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

// blockText renders the full body of a lowered block at bodyIndent: the
// variable prologue, the dispatch loop with the buffered statements, and
// the unwind tail when anything can raise.
func (cg *CodeGen) blockText(b *Block, bodyIndent int, bind []string) string {
	out := NewWriter(bodyIndent)

	decl := func(name, typ string) {
		out.Linef("var %s %s", name, typ)
		out.Linef("_ = %s", name)
	}

	if b.kind == blockGenerator {
		decl("πE", "*πg.BaseException")
		if !b.usesSent {
			out.Line("_ = πSent")
		}
	} else {
		decl("πR", "*πg.Object")
		decl("πE", "*πg.BaseException")
		for _, t := range b.temps {
			decl(t.Name(), "*πg.Object")
		}
		for _, t := range b.sliceTemps {
			decl(t.Name(), "[]*πg.Object")
		}
		for _, p := range b.pendVars {
			decl(p, "int")
		}
		if b.kind == blockFunction {
			for _, name := range b.scope.SortedLocals() {
				v := b.varName(name)
				if b.scope.Bindings[name] == resolver.BindCell {
					if b.scope.IsParam(name) {
						decl("πA_"+name, "*πg.Object")
					}
					out.Linef("%s := πg.NewCell()", v)
					out.Linef("_ = %s", v)
				} else {
					decl(v, "*πg.Object")
				}
			}
		}
	}
	for _, line := range bind {
		out.Line(line)
	}

	out.Line("for {")
	out.In()
	out.Line("switch πF.State() {")
	out.Line("case 0:")
	for _, n := range b.resumable {
		out.Linef("case %d:", n)
		out.In()
		out.Linef("goto %s", labelName(n))
		out.Out()
	}
	out.Line("default:")
	out.In()
	out.Line(`panic("unexpected block state")`)
	out.Out()
	out.Line("}")
	out.Raw(b.w.String())
	if b.usesUnwind {
		out.Label("πUnwind")
		out.Line("if πF.Unwind(πE) {")
		out.In()
		out.Line("πE = nil")
		out.Line("continue")
		out.Out()
		out.Line("}")
		out.Line("return nil, πE")
	}
	out.Out()
	out.Line("}")
	return out.String()
}

// hoistName returns a unique package-level identifier for a hoisted
// function or class body.
func (cg *CodeGen) hoistName(prefix, name string) string {
	base := prefix + name
	cg.hoistSeq[base]++
	if n := cg.hoistSeq[base]; n > 1 {
		return fmt.Sprintf("%s%d", base, n)
	}
	return base
}

const blockSignature = "(πF *πg.Frame, πArgs πg.Args, πKwargs πg.KWArgs) (*πg.Object, *πg.BaseException)"

// compileFunction lowers a def statement and returns the new function
// object. Defaults evaluate now, in the defining block, and are baked
// into the emitted parameter spec.
func (cg *CodeGen) compileFunction(b *Block, st *ast.FunctionStatement) value {
	scope := cg.table.ScopeFor(st)
	if scope == nil {
		cg.errorf(st.Token, "internal error: no scope for function %q", st.Name.Value)
		return value{text: "nil"}
	}

	var parts []string
	var defaults []value
	for _, param := range st.Params {
		if param.Default == nil {
			parts = append(parts, fmt.Sprintf("πg.Param{Name: %q}", param.Name.Value))
			continue
		}
		dv := cg.compileExpr(b, param.Default)
		defaults = append(defaults, dv)
		parts = append(parts, fmt.Sprintf("πg.Param{Name: %q, Def: %s}", param.Name.Value, dv.text))
	}
	spec := fmt.Sprintf("πg.NewSpec(%q, πg.Params{%s})", st.Name.Value, strings.Join(parts, ", "))

	fnRef := cg.functionRef(b, st, scope, "πf_")

	t := b.tempValue()
	b.w.Linef("%s = πg.NewFunction(%s, %s).ToObject()", t.text, spec, fnRef)
	for _, dv := range defaults {
		b.free(dv)
	}
	return t
}

// functionRef renders the body of a def or class statement either as a
// hoisted package-level function (module scope) or an inline literal.
func (cg *CodeGen) functionRef(b *Block, st *ast.FunctionStatement, scope *resolver.Scope, prefix string) string {
	if b.kind == blockModule {
		name := cg.hoistName(prefix, st.Name.Value)
		out := NewWriter(0)
		out.Linef("func %s%s {", name, blockSignature)
		out.Raw(cg.renderFunctionBody(b, st, scope, 0))
		out.Line("}")
		cg.hoisted = append(cg.hoisted, out.String())
		return name
	}
	var sb strings.Builder
	sb.WriteString("func" + blockSignature + " {\n")
	sb.WriteString(cg.renderFunctionBody(b, st, scope, b.w.indent))
	for i := 0; i < b.w.indent; i++ {
		sb.WriteByte('\t')
	}
	sb.WriteString("}")
	return sb.String()
}

// renderFunctionBody lowers a function scope. Generators wrap the state
// machine in a generator object whose locals live in a captured
// environment so they survive suspension.
func (cg *CodeGen) renderFunctionBody(parent *Block, st *ast.FunctionStatement, scope *resolver.Scope, indent int) string {
	if scope.IsGenerator {
		return cg.renderGeneratorBody(parent, st, scope, indent)
	}

	fb := cg.newBlock(blockFunction, scope, indent+2)
	fb.parent = parent
	for _, stmt := range st.Body.Statements {
		cg.compileStatement(fb, stmt)
	}
	fb.w.Line("return πg.None, nil")

	var bind []string
	if len(st.Params) > 0 {
		targets := make([]string, len(st.Params))
		for i, param := range st.Params {
			name := param.Name.Value
			if scope.Bindings[name] == resolver.BindCell {
				targets[i] = "&πA_" + name
			} else {
				targets[i] = "&" + fb.varName(name)
			}
		}
		bind = append(bind,
			fmt.Sprintf("if πE = πg.BindArgs(πF, πArgs, πKwargs, %s); πE != nil {", strings.Join(targets, ", ")),
			"\treturn nil, πE",
			"}")
		for _, param := range st.Params {
			name := param.Name.Value
			if scope.Bindings[name] == resolver.BindCell {
				bind = append(bind, fmt.Sprintf("%s.Set(πA_%s)", fb.varName(name), name))
			}
		}
	}
	return cg.blockText(fb, indent+1, bind)
}

// renderGeneratorBody emits the shell that binds arguments into the
// environment struct and returns a generator over the state machine.
// The runtime's generator object enforces the send-before-start and
// reentrant-dispatch guards.
func (cg *CodeGen) renderGeneratorBody(parent *Block, st *ast.FunctionStatement, scope *resolver.Scope, indent int) string {
	cg.envSeq++
	env := "πEnv"
	if cg.envSeq > 1 {
		env = fmt.Sprintf("πEnv%d", cg.envSeq)
	}

	gb := cg.newBlock(blockGenerator, scope, indent+3)
	gb.parent = parent
	gb.varPrefix = env + "."
	for _, stmt := range st.Body.Statements {
		cg.compileStatement(gb, stmt)
	}
	gb.w.Line("return nil, nil")

	out := NewWriter(indent + 1)
	out.Linef("%s := &struct {", env)
	out.In()
	for _, name := range scope.SortedLocals() {
		typ := "*πg.Object"
		if scope.Bindings[name] == resolver.BindCell {
			typ = "*πg.Cell"
		}
		out.Linef("μ%s %s", name, typ)
	}
	for _, t := range gb.temps {
		out.Linef("πTemp%03d *πg.Object", t.index+1)
	}
	for _, t := range gb.sliceTemps {
		out.Linef("πSlice%03d []*πg.Object", t.index+1)
	}
	for i := range gb.pendVars {
		out.Linef("πPend%03d int", i+1)
	}
	out.Out()
	out.Line("}{}")
	out.Linef("_ = %s", env)
	for _, name := range scope.SortedLocals() {
		if scope.Bindings[name] == resolver.BindCell {
			out.Linef("%s.μ%s = πg.NewCell()", env, name)
		}
	}
	if len(st.Params) > 0 {
		targets := make([]string, len(st.Params))
		var cellParams []string
		for i, param := range st.Params {
			name := param.Name.Value
			if scope.Bindings[name] == resolver.BindCell {
				out.Linef("var πA_%s *πg.Object", name)
				targets[i] = "&πA_" + name
				cellParams = append(cellParams, name)
			} else {
				targets[i] = fmt.Sprintf("&%s.μ%s", env, name)
			}
		}
		out.Linef("if πE := πg.BindArgs(πF, πArgs, πKwargs, %s); πE != nil {", strings.Join(targets, ", "))
		out.In()
		out.Line("return nil, πE")
		out.Out()
		out.Line("}")
		for _, name := range cellParams {
			out.Linef("%s.μ%s.Set(πA_%s)", env, name, name)
		}
	}
	out.Line("return πg.NewGenerator(πF, func(πF *πg.Frame, πSent *πg.Object) (*πg.Object, *πg.BaseException) {")
	out.Raw(cg.blockText(gb, indent+2, nil))
	out.Line("}).ToObject(), nil")
	return out.String()
}

// compileClass lowers a class statement: bases evaluate in the defining
// block and the class body runs as its own block whose names land in the
// class dict.
func (cg *CodeGen) compileClass(b *Block, st *ast.ClassStatement) value {
	scope := cg.table.ScopeFor(st)
	if scope == nil {
		cg.errorf(st.Token, "internal error: no scope for class %q", st.Name.Value)
		return value{text: "nil"}
	}

	var bases []value
	var baseTexts []string
	for _, base := range st.Bases {
		bv := cg.compileExpr(b, base)
		bases = append(bases, bv)
		baseTexts = append(baseTexts, bv.text)
	}

	var bodyRef string
	if b.kind == blockModule {
		name := cg.hoistName("πc_", st.Name.Value)
		out := NewWriter(0)
		out.Linef("func %s%s {", name, blockSignature)
		out.Raw(cg.renderClassBody(b, st, scope, 0))
		out.Line("}")
		cg.hoisted = append(cg.hoisted, out.String())
		bodyRef = name
	} else {
		var sb strings.Builder
		sb.WriteString("func" + blockSignature + " {\n")
		sb.WriteString(cg.renderClassBody(b, st, scope, b.w.indent))
		for i := 0; i < b.w.indent; i++ {
			sb.WriteByte('\t')
		}
		sb.WriteString("}")
		bodyRef = sb.String()
	}

	t := b.tempValue()
	b.w.Linef("%s, πE = πg.NewClass(πF, %q, πg.Args{%s}, %s)", t.text, st.Name.Value, strings.Join(baseTexts, ", "), bodyRef)
	b.checkExc()
	for _, bv := range bases {
		b.free(bv)
	}
	return t
}

func (cg *CodeGen) renderClassBody(parent *Block, st *ast.ClassStatement, scope *resolver.Scope, indent int) string {
	cb := cg.newBlock(blockClass, scope, indent+2)
	cb.parent = parent
	for _, stmt := range st.Body.Statements {
		cg.compileStatement(cb, stmt)
	}
	cb.w.Line("return nil, nil")
	return cg.blockText(cb, indent+1, nil)
}

func importRoot(name, importPath string) string {
	suffix := "/" + strings.ReplaceAll(name, ".", "/")
	if strings.HasSuffix(importPath, suffix) {
		return strings.TrimSuffix(importPath, suffix)
	}
	return path.Dir(importPath)
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true,
	"continue": true, "default": true, "defer": true, "else": true,
	"fallthrough": true, "for": true, "func": true, "go": true,
	"goto": true, "if": true, "import": true, "interface": true,
	"map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true,
	"var": true,
}

// packageName derives a valid Go package identifier from the last
// component of a dotted module name.
func packageName(name string) string {
	base := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		base = name[i+1:]
	}
	var sb strings.Builder
	for i, r := range base {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	pkg := sb.String()
	if pkg == "" {
		return "module"
	}
	if goKeywords[pkg] {
		return pkg + "_"
	}
	return pkg
}
