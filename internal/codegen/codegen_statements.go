package codegen

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/token"
)

func (cg *CodeGen) compileStatement(b *Block, stmt ast.Statement) {
	switch st := stmt.(type) {
	case *ast.ExpressionStatement:
		v := cg.compileExpr(b, st.Expression)
		b.free(v)
	case *ast.AssignStatement:
		v := cg.compileExpr(b, st.Value)
		cg.compileAssignTarget(b, st.Target, v)
		b.free(v)
	case *ast.ReturnStatement:
		cg.compileReturn(b, st)
	case *ast.PassStatement:
	case *ast.DelStatement:
		cg.compileDel(b, st)
	case *ast.GlobalStatement, *ast.NonlocalStatement:
		// Declarations were consumed by the resolver.
	case *ast.IfStatement:
		cg.compileIf(b, st)
	case *ast.WhileStatement:
		cg.compileWhile(b, st)
	case *ast.ForStatement:
		cg.compileFor(b, st)
	case *ast.BreakStatement:
		if !b.emitBreak() {
			cg.errorf(st.Token, "break outside loop")
		}
	case *ast.ContinueStatement:
		if !b.emitContinue() {
			cg.errorf(st.Token, "continue outside loop")
		}
	case *ast.TryStatement:
		cg.compileTry(b, st)
	case *ast.RaiseStatement:
		cg.compileRaise(b, st)
	case *ast.ImportStatement:
		cg.compileImport(b, st)
	case *ast.WithStatement:
		cg.compileWith(b, st)
	case *ast.FunctionStatement:
		v := cg.compileFunction(b, st)
		cg.compileStore(b, st.Name.Value, v)
		b.free(v)
	case *ast.ClassStatement:
		v := cg.compileClass(b, st)
		cg.compileStore(b, st.Name.Value, v)
		b.free(v)
	default:
		cg.errorf(tokenOfStmt(stmt), "cannot compile statement: %s", stmt.String())
	}
}

// compileAssignTarget stores v into one assignment target. Tuple and
// list targets unpack the value first; the element count must match at
// runtime. v is not consumed.
func (cg *CodeGen) compileAssignTarget(b *Block, target ast.Expression, v value) {
	switch t := target.(type) {
	case *ast.Identifier:
		cg.compileStore(b, t.Value, v)
	case *ast.AttributeExpression:
		obj := cg.compileExpr(b, t.Object)
		b.w.Linef("πE = πg.SetAttr(πF, %s, %q, %s)", obj.text, t.Name, v.text)
		b.checkExc()
		b.free(obj)
	case *ast.IndexExpression:
		obj := cg.compileExpr(b, t.Left)
		idx := cg.compileExpr(b, t.Index)
		b.w.Linef("πE = πg.SetItem(πF, %s, %s, %s)", obj.text, idx.text, v.text)
		b.checkExc()
		b.free(obj)
		b.free(idx)
	case *ast.TupleLiteral:
		cg.compileUnpack(b, t.Elements, v)
	case *ast.ListLiteral:
		cg.compileUnpack(b, t.Elements, v)
	default:
		cg.errorf(tokenOf(target), "cannot assign to %s", target.String())
	}
}

func (cg *CodeGen) compileUnpack(b *Block, targets []ast.Expression, v value) {
	sl := b.allocSliceTemp()
	b.w.Linef("%s, πE = πg.Unpack(πF, %s, %d)", sl.Name(), v.text, len(targets))
	b.checkExc()
	for i, target := range targets {
		cg.compileAssignTarget(b, target, value{text: fmt.Sprintf("%s[%d]", sl.Name(), i)})
	}
	b.releaseTemp(sl)
}

func (cg *CodeGen) compileReturn(b *Block, st *ast.ReturnStatement) {
	if b.kind == blockModule || b.kind == blockClass {
		cg.errorf(st.Token, "return outside function")
		return
	}
	if b.kind == blockGenerator && st.Value != nil {
		cg.errorf(st.Token, "return with value in generator")
		return
	}
	v := value{text: "πg.None"}
	if st.Value != nil {
		v = cg.compileExpr(b, st.Value)
	}
	b.emitReturn(v)
}

func (cg *CodeGen) compileDel(b *Block, st *ast.DelStatement) {
	for _, target := range st.Targets {
		switch t := target.(type) {
		case *ast.Identifier:
			cg.compileDelName(b, t)
		case *ast.AttributeExpression:
			obj := cg.compileExpr(b, t.Object)
			b.w.Linef("πE = πg.DelAttr(πF, %s, %q)", obj.text, t.Name)
			b.checkExc()
			b.free(obj)
		case *ast.IndexExpression:
			obj := cg.compileExpr(b, t.Left)
			idx := cg.compileExpr(b, t.Index)
			b.w.Linef("πE = πg.DelItem(πF, %s, %s)", obj.text, idx.text)
			b.checkExc()
			b.free(obj)
			b.free(idx)
		default:
			cg.errorf(tokenOf(target), "cannot delete %s", target.String())
		}
	}
}

func (cg *CodeGen) compileIf(b *Block, st *ast.IfStatement) {
	cond := cg.compileExpr(b, st.Condition)
	t := cg.compileTruth(b, cond)
	b.free(cond)

	done := b.newLabel()
	elseLabel := done
	if st.Else != nil {
		elseLabel = b.newLabel()
	}
	b.w.Linef("if %s == πg.False {", t.text)
	b.w.In()
	b.gotoLabel(elseLabel)
	b.w.Out()
	b.w.Line("}")
	b.free(t)

	for _, s := range st.Body.Statements {
		cg.compileStatement(b, s)
	}
	if st.Else != nil {
		b.gotoLabel(done)
		b.emitLabel(elseLabel)
		for _, s := range st.Else.Statements {
			cg.compileStatement(b, s)
		}
	}
	b.emitLabel(done)
}

// compileWhile lowers a while loop with an optional else clause. The
// else runs on normal exhaustion and is skipped by break, which jumps
// past it. The loop context is popped before the else clause lowers, so
// a break or continue inside the else binds to the enclosing loop.
func (cg *CodeGen) compileWhile(b *Block, st *ast.WhileStatement) {
	condLabel := b.newLabel()
	b.usedLabels[condLabel] = true
	done := b.newLabel()
	elseLabel := done
	if st.Else != nil {
		elseLabel = b.newLabel()
	}

	b.emitLabel(condLabel)
	cond := cg.compileExpr(b, st.Condition)
	t := cg.compileTruth(b, cond)
	b.free(cond)
	b.w.Linef("if %s == πg.False {", t.text)
	b.w.In()
	b.gotoLabel(elseLabel)
	b.w.Out()
	b.w.Line("}")
	b.free(t)

	b.pushContext(&blockContext{kind: ctxLoop, breakLabel: done, continueLabel: condLabel})
	for _, s := range st.Body.Statements {
		cg.compileStatement(b, s)
	}
	b.popContext()
	b.gotoLabel(condLabel)

	if st.Else != nil {
		b.emitLabel(elseLabel)
		for _, s := range st.Else.Statements {
			cg.compileStatement(b, s)
		}
	}
	b.emitLabel(done)
}

func (cg *CodeGen) compileFor(b *Block, st *ast.ForStatement) {
	iter := cg.compileExpr(b, st.Iter)
	it := b.tempValue()
	b.w.Linef("%s, πE = πg.Iter(πF, %s)", it.text, iter.text)
	b.checkExc()
	b.free(iter)

	condLabel := b.newLabel()
	b.usedLabels[condLabel] = true
	done := b.newLabel()
	elseLabel := done
	if st.Else != nil {
		elseLabel = b.newLabel()
	}

	b.emitLabel(condLabel)
	next := b.tempValue()
	b.w.Linef("%s, πE = πg.Next(πF, %s)", next.text, it.text)
	b.checkExc()
	b.w.Linef("if %s == nil {", next.text)
	b.w.In()
	b.gotoLabel(elseLabel)
	b.w.Out()
	b.w.Line("}")
	cg.compileAssignTarget(b, st.Target, next)
	b.free(next)

	b.pushContext(&blockContext{kind: ctxLoop, breakLabel: done, continueLabel: condLabel})
	for _, s := range st.Body.Statements {
		cg.compileStatement(b, s)
	}
	b.popContext()
	b.gotoLabel(condLabel)

	if st.Else != nil {
		b.emitLabel(elseLabel)
		for _, s := range st.Else.Statements {
			cg.compileStatement(b, s)
		}
	}
	b.emitLabel(done)
	b.free(it)
}

// compileTry lowers try statements. A finally clause wraps the guarded
// region in a checkpoint whose pending-action variable records how the
// region exited; the switch after the finally body resumes that exit.
func (cg *CodeGen) compileTry(b *Block, st *ast.TryStatement) {
	if st.Finally == nil {
		cg.compileTryExcept(b, st)
		return
	}

	pendVar := b.newPendVar()
	entry := b.newState()
	fLabel := b.newLabel()
	ctx := &blockContext{
		kind:         ctxFinally,
		pendVar:      pendVar,
		finallyLabel: fLabel,
		pendsUsed:    map[int]bool{},
	}

	b.w.Linef("πF.PushCheckpoint(%d)", entry)
	b.pushContext(ctx)
	cg.compileTryExcept(b, st)
	b.popContext()
	b.w.Line("πF.PopCheckpoint()")
	b.w.Linef("%s = %d", pendVar, pendNormal)
	b.gotoLabel(fLabel)

	b.emitLabel(entry)
	b.w.Linef("%s = %d", pendVar, pendReraise)
	b.emitLabel(fLabel)
	for _, s := range st.Finally.Statements {
		cg.compileStatement(b, s)
	}
	cg.emitFinallyExits(b, ctx)
}

// emitFinallyExits writes the dispatch on a finally's pending action.
// The context must already be popped so routed exits resolve against the
// loops and finallys that enclose this one.
func (cg *CodeGen) emitFinallyExits(b *Block, ctx *blockContext) {
	b.w.Linef("switch %s {", ctx.pendVar)
	if ctx.pendsUsed[pendBreak] {
		b.w.Linef("case %d:", pendBreak)
		b.w.In()
		b.routeLoopExit(len(b.contexts), pendBreak)
		b.w.Out()
	}
	if ctx.pendsUsed[pendContinue] {
		b.w.Linef("case %d:", pendContinue)
		b.w.In()
		b.routeLoopExit(len(b.contexts), pendContinue)
		b.w.Out()
	}
	if ctx.pendsUsed[pendReturn] {
		b.w.Linef("case %d:", pendReturn)
		b.w.In()
		b.routeReturnFrom(len(b.contexts))
		b.w.Out()
	}
	b.w.Linef("case %d:", pendReraise)
	b.w.In()
	b.w.Line("πE = πF.RaiseRecovered()")
	b.gotoUnwind()
	b.w.Out()
	b.w.Line("}")
}

// compileTryExcept lowers the guarded body and its handlers. Handlers
// match in source order; an unmatched exception re-raises outward.
func (cg *CodeGen) compileTryExcept(b *Block, st *ast.TryStatement) {
	if len(st.Handlers) == 0 {
		for _, s := range st.Body.Statements {
			cg.compileStatement(b, s)
		}
		return
	}

	handler := b.newState()
	done := b.newLabel()
	b.w.Linef("πF.PushCheckpoint(%d)", handler)
	// While the body runs its checkpoint is live, so break, continue
	// and return leaving the region must pop it.
	b.pushContext(&blockContext{kind: ctxHandler})
	for _, s := range st.Body.Statements {
		cg.compileStatement(b, s)
	}
	b.popContext()
	b.w.Line("πF.PopCheckpoint()")
	b.gotoLabel(done)

	b.emitLabel(handler)
	exc := b.tempValue()
	b.w.Linef("%s = πF.RecoveredException().ToObject()", exc.text)
	sawBare := false
	for _, h := range st.Handlers {
		if h.Type == nil {
			sawBare = true
			if h.Name != nil {
				cg.compileStore(b, h.Name.Value, exc)
			}
			for _, s := range h.Body.Statements {
				cg.compileStatement(b, s)
			}
			b.gotoLabel(done)
			break
		}
		// Handler bodies stay at loop level so any state labels in
		// them remain reachable from the dispatch switch.
		next := b.newLabel()
		tv := cg.compileExpr(b, h.Type)
		m := b.tempValue()
		b.w.Linef("%s, πE = πg.IsInstance(πF, %s, %s)", m.text, exc.text, tv.text)
		b.checkExc()
		b.free(tv)
		b.w.Linef("if %s != πg.True {", m.text)
		b.w.In()
		b.gotoLabel(next)
		b.w.Out()
		b.w.Line("}")
		b.free(m)
		if h.Name != nil {
			cg.compileStore(b, h.Name.Value, exc)
		}
		for _, s := range h.Body.Statements {
			cg.compileStatement(b, s)
		}
		b.gotoLabel(done)
		b.emitLabel(next)
	}
	if !sawBare {
		b.w.Line("πE = πF.RaiseRecovered()")
		b.gotoUnwind()
	}
	b.free(exc)
	b.emitLabel(done)
}

func (cg *CodeGen) compileRaise(b *Block, st *ast.RaiseStatement) {
	if st.Exc == nil {
		b.w.Line("πE = πg.Raise(πF, nil)")
		b.gotoUnwind()
		return
	}
	v := cg.compileExpr(b, st.Exc)
	b.w.Linef("πE = πg.Raise(πF, %s)", v.text)
	b.free(v)
	b.gotoUnwind()
}

// compileImport wires one source-level import to the generated package
// of the imported module and binds its top-level name.
func (cg *CodeGen) compileImport(b *Block, st *ast.ImportStatement) {
	modName := strings.Join(st.Path, ".")
	alias := "π_" + strings.Join(st.Path, "__")
	cg.imports.add(alias, path.Join(cg.importRoot, strings.Join(st.Path, "/")))

	t := b.tempValue()
	b.w.Linef("%s, πE = πg.ImportModule(πF, %q, %s.Code)", t.text, modName, alias)
	b.checkExc()
	cg.compileStore(b, st.Path[0], t)
	b.free(t)
}

// compileWith lowers a with statement as an enter call guarded by a
// finally region whose body releases the context manager.
func (cg *CodeGen) compileWith(b *Block, st *ast.WithStatement) {
	ctxVal := cg.compileExpr(b, st.Context)
	mgr := b.tempValue()
	b.w.Linef("%s = %s", mgr.text, ctxVal.text)
	b.free(ctxVal)

	enter := b.tempValue()
	b.w.Linef("%s, πE = πg.Enter(πF, %s)", enter.text, mgr.text)
	b.checkExc()
	if st.Name != nil {
		cg.compileStore(b, st.Name.Value, enter)
	}
	b.free(enter)

	pendVar := b.newPendVar()
	entry := b.newState()
	fLabel := b.newLabel()
	ctx := &blockContext{
		kind:         ctxFinally,
		pendVar:      pendVar,
		finallyLabel: fLabel,
		pendsUsed:    map[int]bool{},
	}

	b.w.Linef("πF.PushCheckpoint(%d)", entry)
	b.pushContext(ctx)
	for _, s := range st.Body.Statements {
		cg.compileStatement(b, s)
	}
	b.popContext()
	b.w.Line("πF.PopCheckpoint()")
	b.w.Linef("%s = %d", pendVar, pendNormal)
	b.gotoLabel(fLabel)

	b.emitLabel(entry)
	b.w.Linef("%s = %d", pendVar, pendReraise)
	b.emitLabel(fLabel)
	b.w.Linef("πE = πg.Exit(πF, %s)", mgr.text)
	b.checkExc()
	cg.emitFinallyExits(b, ctx)
	b.free(mgr)
}

// tokenOfStmt recovers the position token of a statement node for
// diagnostics.
func tokenOfStmt(stmt ast.Statement) token.Token {
	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		return s.Token
	case *ast.AssignStatement:
		return s.Token
	case *ast.ReturnStatement:
		return s.Token
	case *ast.PassStatement:
		return s.Token
	case *ast.DelStatement:
		return s.Token
	case *ast.IfStatement:
		return s.Token
	case *ast.WhileStatement:
		return s.Token
	case *ast.ForStatement:
		return s.Token
	case *ast.TryStatement:
		return s.Token
	case *ast.RaiseStatement:
		return s.Token
	case *ast.ImportStatement:
		return s.Token
	case *ast.WithStatement:
		return s.Token
	case *ast.FunctionStatement:
		return s.Token
	case *ast.ClassStatement:
		return s.Token
	}
	return token.Token{}
}
