package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/resolver"
	"github.com/google/grumpy-sub001/internal/token"
)

// compileExpr lowers one expression and returns the operand holding its
// result. The caller frees the operand once it has been consumed.
func (cg *CodeGen) compileExpr(b *Block, expr ast.Expression) value {
	switch e := expr.(type) {
	case *ast.Identifier:
		return cg.compileLoad(b, e)
	case *ast.IntegerLiteral:
		return value{text: fmt.Sprintf("πg.NewInt(%d).ToObject()", e.Value)}
	case *ast.FloatLiteral:
		return value{text: fmt.Sprintf("πg.NewFloat(%s).ToObject()", strconv.FormatFloat(e.Value, 'g', -1, 64))}
	case *ast.StringLiteral:
		return value{text: fmt.Sprintf("πg.NewStr(%q).ToObject()", e.Value)}
	case *ast.NoneLiteral:
		return value{text: "πg.None"}
	case *ast.BooleanLiteral:
		if e.Value {
			return value{text: "πg.True"}
		}
		return value{text: "πg.False"}
	case *ast.TupleLiteral:
		return cg.compileSequence(b, "πg.NewTuple", e.Elements)
	case *ast.ListLiteral:
		return cg.compileSequence(b, "πg.NewList", e.Elements)
	case *ast.DictLiteral:
		return cg.compileDict(b, e)
	case *ast.PrefixExpression:
		return cg.compilePrefix(b, e)
	case *ast.InfixExpression:
		return cg.compileInfix(b, e)
	case *ast.CallExpression:
		return cg.compileCall(b, e)
	case *ast.AttributeExpression:
		obj := cg.compileExpr(b, e.Object)
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.GetAttr(πF, %s, %q)", t.text, obj.text, e.Name)
		b.checkExc()
		b.free(obj)
		return t
	case *ast.IndexExpression:
		obj := cg.compileExpr(b, e.Left)
		idx := cg.compileExpr(b, e.Index)
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.GetItem(πF, %s, %s)", t.text, obj.text, idx.text)
		b.checkExc()
		b.free(obj)
		b.free(idx)
		return t
	case *ast.YieldExpression:
		return cg.compileYield(b, e)
	}
	cg.errorf(tokenOf(expr), "cannot compile expression: %s", expr.String())
	return value{text: "nil"}
}

// compileLoad emits the read form the resolver chose for a name. Local
// reads that might be unbound are checked so deleting a local and then
// reading it fails the way an unassigned local does, while module and
// class level misses report a plain missing name.
func (cg *CodeGen) compileLoad(b *Block, id *ast.Identifier) value {
	name := id.Value
	switch b.scope.Bindings[name] {
	case resolver.BindLocal:
		v := b.varName(name)
		if b.scope.Checked[name] {
			b.usesUnwind = true
			b.w.Linef("if πE = πg.CheckLocal(πF, %s, %q); πE != nil {", v, name)
			b.w.In()
			b.w.Line("goto πUnwind")
			b.w.Out()
			b.w.Line("}")
		}
		return value{text: v}
	case resolver.BindCell:
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.CellGet(πF, %s, %q)", t.text, b.varName(name), name)
		b.checkExc()
		return t
	case resolver.BindFree:
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.CellGet(πF, %s, %q)", t.text, b.freeVarName(name), name)
		b.checkExc()
		return t
	case resolver.BindClassTransient:
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.LoadName(πF, %q)", t.text, name)
		b.checkExc()
		return t
	default:
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.LoadGlobal(πF, %q)", t.text, name)
		b.checkExc()
		return t
	}
}

// compileStore emits the write form for a name. It does not consume v.
func (cg *CodeGen) compileStore(b *Block, name string, v value) {
	switch b.scope.Bindings[name] {
	case resolver.BindLocal:
		b.w.Linef("%s = %s", b.varName(name), v.text)
	case resolver.BindCell:
		b.w.Linef("%s.Set(%s)", b.varName(name), v.text)
	case resolver.BindFree:
		b.w.Linef("%s.Set(%s)", b.freeVarName(name), v.text)
	case resolver.BindClassTransient:
		b.w.Linef("πE = πg.StoreName(πF, %q, %s)", name, v.text)
		b.checkExc()
	default:
		b.w.Linef("πE = πg.StoreGlobal(πF, %q, %s)", name, v.text)
		b.checkExc()
	}
}

func (cg *CodeGen) compileDelName(b *Block, id *ast.Identifier) {
	name := id.Value
	switch b.scope.Bindings[name] {
	case resolver.BindLocal:
		// The unbound check on later reads reports the deletion.
		b.w.Linef("%s = nil", b.varName(name))
	case resolver.BindCell:
		b.w.Linef("%s.Del()", b.varName(name))
	case resolver.BindFree:
		b.w.Linef("%s.Del()", b.freeVarName(name))
	case resolver.BindClassTransient:
		b.w.Linef("πE = πg.DelName(πF, %q)", name)
		b.checkExc()
	default:
		b.w.Linef("πE = πg.DelGlobal(πF, %q)", name)
		b.checkExc()
	}
}

// compileTruth materializes the truth value of v as πg.True or πg.False.
func (cg *CodeGen) compileTruth(b *Block, v value) value {
	t := b.tempValue()
	b.w.Linef("%s, πE = πg.IsTrue(πF, %s)", t.text, v.text)
	b.checkExc()
	return t
}

func (cg *CodeGen) compileSequence(b *Block, ctor string, elems []ast.Expression) value {
	values := make([]value, len(elems))
	texts := make([]string, len(elems))
	for i, elem := range elems {
		values[i] = cg.compileExpr(b, elem)
		texts[i] = values[i].text
	}
	t := b.tempValue()
	b.w.Linef("%s = %s(%s).ToObject()", t.text, ctor, strings.Join(texts, ", "))
	for _, v := range values {
		b.free(v)
	}
	return t
}

func (cg *CodeGen) compileDict(b *Block, e *ast.DictLiteral) value {
	t := b.tempValue()
	b.w.Linef("%s = πg.NewDict().ToObject()", t.text)
	for i := range e.Keys {
		k := cg.compileExpr(b, e.Keys[i])
		v := cg.compileExpr(b, e.Values[i])
		b.w.Linef("πE = πg.SetItem(πF, %s, %s, %s)", t.text, k.text, v.text)
		b.checkExc()
		b.free(k)
		b.free(v)
	}
	return t
}

func (cg *CodeGen) compilePrefix(b *Block, e *ast.PrefixExpression) value {
	switch e.Operator {
	case "-":
		v := cg.compileExpr(b, e.Right)
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.Neg(πF, %s)", t.text, v.text)
		b.checkExc()
		b.free(v)
		return t
	case "not":
		v := cg.compileExpr(b, e.Right)
		t := cg.compileTruth(b, v)
		b.free(v)
		b.w.Linef("%s = πg.GetBool(%s == πg.False)", t.text, t.text)
		return t
	}
	cg.errorf(e.Token, "unknown prefix operator %q", e.Operator)
	return value{text: "nil"}
}

var binaryFuncs = map[string]string{
	"+": "πg.Add",
	"-": "πg.Sub",
	"*": "πg.Mul",
	"/": "πg.Div",
	"%": "πg.Mod",
}

// comparisons maps an operator to the reflected method pair tried first
// and the three-way fallback used when neither side implements it.
var comparisons = map[string]struct {
	method, reflected, fallback string
}{
	"<":  {"__lt__", "__gt__", "πg.CompareLt"},
	">":  {"__gt__", "__lt__", "πg.CompareGt"},
	"<=": {"__le__", "__ge__", "πg.CompareLe"},
	">=": {"__ge__", "__le__", "πg.CompareGe"},
	"==": {"__eq__", "__eq__", "πg.CompareEq"},
	"!=": {"__ne__", "__ne__", "πg.CompareNe"},
}

func (cg *CodeGen) compileInfix(b *Block, e *ast.InfixExpression) value {
	switch e.Operator {
	case "and", "or":
		return cg.compileShortCircuit(b, e)
	case "is", "is not":
		l := cg.compileExpr(b, e.Left)
		r := cg.compileExpr(b, e.Right)
		t := b.tempValue()
		op := "=="
		if e.Operator == "is not" {
			op = "!="
		}
		b.w.Linef("%s = πg.GetBool(%s %s %s)", t.text, l.text, op, r.text)
		b.free(l)
		b.free(r)
		return t
	case "in":
		l := cg.compileExpr(b, e.Left)
		r := cg.compileExpr(b, e.Right)
		t := b.tempValue()
		b.w.Linef("%s, πE = πg.Contains(πF, %s, %s)", t.text, r.text, l.text)
		b.checkExc()
		b.free(l)
		b.free(r)
		return t
	}
	if fn, ok := binaryFuncs[e.Operator]; ok {
		l := cg.compileExpr(b, e.Left)
		r := cg.compileExpr(b, e.Right)
		t := b.tempValue()
		b.w.Linef("%s, πE = %s(πF, %s, %s)", t.text, fn, l.text, r.text)
		b.checkExc()
		b.free(l)
		b.free(r)
		return t
	}
	if cmp, ok := comparisons[e.Operator]; ok {
		l := cg.compileExpr(b, e.Left)
		r := cg.compileExpr(b, e.Right)
		t := b.tempValue()
		// Reflected dispatch first; nil means neither operand handled
		// the comparison and the three-way ordering decides.
		b.w.Linef("%s, πE = πg.RichCompare(πF, %s, %s, %q, %q)", t.text, l.text, r.text, cmp.method, cmp.reflected)
		b.checkExc()
		b.w.Linef("if %s == nil {", t.text)
		b.w.In()
		b.w.Linef("%s, πE = πg.ThreeWayCompare(πF, %s, %s, %s)", t.text, l.text, r.text, cmp.fallback)
		b.checkExc()
		b.w.Out()
		b.w.Line("}")
		b.free(l)
		b.free(r)
		return t
	}
	cg.errorf(e.Token, "unknown operator %q", e.Operator)
	return value{text: "nil"}
}

// compileShortCircuit lowers "and" and "or" so the right operand only
// evaluates when the left one does not decide the result. The skip is a
// flat goto because the right operand may contain a yield, and Go does
// not allow jumping to a label inside a block.
func (cg *CodeGen) compileShortCircuit(b *Block, e *ast.InfixExpression) value {
	l := cg.compileExpr(b, e.Left)
	t := b.tempValue()
	b.w.Linef("%s = %s", t.text, l.text)
	b.free(l)
	cond := cg.compileTruth(b, value{text: t.text})
	decided := "πg.True"
	if e.Operator == "and" {
		decided = "πg.False"
	}
	done := b.newLabel()
	b.w.Linef("if %s == %s {", cond.text, decided)
	b.w.In()
	b.gotoLabel(done)
	b.w.Out()
	b.w.Line("}")
	b.free(cond)
	r := cg.compileExpr(b, e.Right)
	b.w.Linef("%s = %s", t.text, r.text)
	b.free(r)
	b.emitLabel(done)
	return t
}

// compileCall lowers a call. The emitted argument binding goes through
// the callee's parameter spec, so arity and keyword mistakes raise
// errors naming the callee.
func (cg *CodeGen) compileCall(b *Block, e *ast.CallExpression) value {
	fn := cg.compileExpr(b, e.Function)

	args := make([]value, len(e.Arguments))
	argTexts := make([]string, len(e.Arguments))
	for i, arg := range e.Arguments {
		args[i] = cg.compileExpr(b, arg)
		argTexts[i] = args[i].text
	}

	kwargText := "nil"
	var kwValues []value
	if len(e.Keywords) > 0 {
		parts := make([]string, len(e.Keywords))
		for i, kw := range e.Keywords {
			kv := cg.compileExpr(b, kw.Value)
			kwValues = append(kwValues, kv)
			parts[i] = fmt.Sprintf("{Name: %q, Value: %s}", kw.Name, kv.text)
		}
		kwargText = fmt.Sprintf("πg.KWArgs{%s}", strings.Join(parts, ", "))
	}

	t := b.tempValue()
	b.w.Linef("%s, πE = πg.Invoke(πF, %s, πg.Args{%s}, %s)", t.text, fn.text, strings.Join(argTexts, ", "), kwargText)
	b.checkExc()

	for _, kv := range kwValues {
		b.free(kv)
	}
	for _, av := range args {
		b.free(av)
	}
	b.free(fn)
	return t
}

// compileYield suspends the generator at a fresh state and resumes with
// the value the caller sent in.
func (cg *CodeGen) compileYield(b *Block, e *ast.YieldExpression) value {
	if b.kind != blockGenerator {
		cg.errorf(e.Token, "yield outside of generator")
		return value{text: "nil"}
	}
	yielded := "πg.None"
	var v value
	if e.Value != nil {
		v = cg.compileExpr(b, e.Value)
		yielded = v.text
	}
	state := b.newState()
	b.w.Linef("πF.SetState(%d)", state)
	b.w.Linef("return %s, nil", yielded)
	if v.valid() {
		b.free(v)
	}
	b.emitLabel(state)
	b.usesSent = true
	t := b.tempValue()
	b.w.Linef("%s = πSent", t.text)
	return t
}

// tokenOf recovers the position token of an expression node for
// diagnostics.
func tokenOf(expr ast.Expression) token.Token {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e.Token
	case *ast.IntegerLiteral:
		return e.Token
	case *ast.FloatLiteral:
		return e.Token
	case *ast.StringLiteral:
		return e.Token
	case *ast.NoneLiteral:
		return e.Token
	case *ast.BooleanLiteral:
		return e.Token
	case *ast.TupleLiteral:
		return e.Token
	case *ast.ListLiteral:
		return e.Token
	case *ast.DictLiteral:
		return e.Token
	case *ast.PrefixExpression:
		return e.Token
	case *ast.InfixExpression:
		return e.Token
	case *ast.CallExpression:
		return e.Token
	case *ast.AttributeExpression:
		return e.Token
	case *ast.IndexExpression:
		return e.Token
	case *ast.YieldExpression:
		return e.Token
	case *ast.KeywordArgument:
		return e.Token
	}
	return token.Token{}
}
