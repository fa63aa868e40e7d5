package codegen

import (
	"fmt"

	"github.com/google/grumpy-sub001/internal/resolver"
)

type blockKind int

const (
	blockModule blockKind = iota
	blockFunction
	blockGenerator
	blockClass
)

// Pending-action codes routed through a finally clause. Zero means the
// guarded region completed normally and control falls through.
const (
	pendNormal   = 0
	pendBreak    = 1
	pendContinue = 2
	pendReturn   = 3
	pendReraise  = 4
)

// Temp is one pooled scratch variable in a generated function. Slots are
// reused as soon as they are released, so a block needs only as many
// temporaries as its deepest expression.
type Temp struct {
	block *Block
	index int
	slice bool
	inUse bool
}

// Name returns the Go identifier of the slot.
func (t *Temp) Name() string {
	if t.slice {
		return fmt.Sprintf("%sπSlice%03d", t.block.varPrefix, t.index+1)
	}
	return fmt.Sprintf("%sπTemp%03d", t.block.varPrefix, t.index+1)
}

// value is a generated operand in one of a closed set of shapes: a
// pooled temp (temp set, text is the slot name), a local variable or
// literal rendered directly into text (temp nil), or the zero value
// when nothing was produced. free touches only temp-backed values, so
// the other shapes can be dropped anywhere.
type value struct {
	text string
	temp *Temp
}

func (v value) valid() bool {
	return v.text != ""
}

type contextKind int

const (
	ctxLoop contextKind = iota
	ctxFinally
	ctxHandler
)

// blockContext is one entry of a block's lowering-time control stack.
// Loops record where break and continue jump; finally regions record the
// pending-action variable and which actions were routed into them. A
// handler context marks a try body whose checkpoint is live on the frame,
// so jumps out of the region know to pop it.
type blockContext struct {
	kind contextKind

	breakLabel    int
	continueLabel int

	pendVar      string
	finallyLabel int
	pendsUsed    map[int]bool
}

// Block lowers one source scope into one generated Go function body.
type Block struct {
	cg     *CodeGen
	scope  *resolver.Scope
	kind   blockKind
	parent *Block
	w      *Writer

	// varPrefix is "" for plain blocks and "πEnv." inside generator
	// bodies, where locals and temps live in the captured environment.
	varPrefix string

	labelCount int
	resumable  []int
	usedLabels map[int]bool

	temps      []*Temp
	sliceTemps []*Temp
	pendCount  int
	pendVars   []string

	contexts []*blockContext

	usesUnwind bool
	usesSent   bool
}

func (cg *CodeGen) newBlock(kind blockKind, scope *resolver.Scope, indent int) *Block {
	b := &Block{
		cg:         cg,
		scope:      scope,
		kind:       kind,
		w:          NewWriter(indent),
		usedLabels: map[int]bool{},
	}
	if kind == blockGenerator {
		b.varPrefix = "πEnv."
	}
	return b
}

// varName returns the Go identifier of a source-level local or cell.
func (b *Block) varName(name string) string {
	return b.varPrefix + "μ" + name
}

// freeVarName returns the Go identifier of the cell a free variable
// refers to. The cell is declared by the enclosing function block that
// owns the binding, so its name carries that block's prefix.
func (b *Block) freeVarName(name string) string {
	for pb := b.parent; pb != nil; pb = pb.parent {
		if pb.scope == nil || pb.scope.Kind != resolver.ScopeFunction {
			continue
		}
		switch pb.scope.Bindings[name] {
		case resolver.BindCell:
			return pb.varName(name)
		case resolver.BindFree:
			continue
		}
	}
	return b.varName(name)
}

func (b *Block) newLabel() int {
	b.labelCount++
	return b.labelCount
}

// newState allocates a label that doubles as a frame state: the dispatch
// switch jumps to it when the frame resumes there.
func (b *Block) newState() int {
	n := b.newLabel()
	b.resumable = append(b.resumable, n)
	b.usedLabels[n] = true
	return n
}

func labelName(n int) string {
	return fmt.Sprintf("Label%d", n)
}

// gotoLabel emits a jump and marks the label live so emitLabel knows to
// declare it. Go rejects declared-but-unused labels, so only labels with
// at least one jump are ever written.
func (b *Block) gotoLabel(n int) {
	b.usedLabels[n] = true
	b.w.Linef("goto %s", labelName(n))
}

func (b *Block) emitLabel(n int) {
	if !b.usedLabels[n] {
		return
	}
	b.w.Label(labelName(n))
}

// checkExc emits the standard failure edge after a fallible runtime
// call.
func (b *Block) checkExc() {
	b.usesUnwind = true
	b.w.Line("if πE != nil {")
	b.w.In()
	b.w.Line("goto πUnwind")
	b.w.Out()
	b.w.Line("}")
}

func (b *Block) gotoUnwind() {
	b.usesUnwind = true
	b.w.Line("goto πUnwind")
}

// allocTemp takes the lowest free object slot, growing the pool when
// every slot is live.
func (b *Block) allocTemp() *Temp {
	for _, t := range b.temps {
		if !t.inUse {
			t.inUse = true
			return t
		}
	}
	t := &Temp{block: b, index: len(b.temps), inUse: true}
	b.temps = append(b.temps, t)
	return t
}

// allocSliceTemp takes the lowest free unpack slot.
func (b *Block) allocSliceTemp() *Temp {
	for _, t := range b.sliceTemps {
		if !t.inUse {
			t.inUse = true
			return t
		}
	}
	t := &Temp{block: b, index: len(b.sliceTemps), slice: true, inUse: true}
	b.sliceTemps = append(b.sliceTemps, t)
	return t
}

// releaseTemp returns a slot to the pool. Releasing a slot twice is a
// lowering bug, not a user error, so it panics.
func (b *Block) releaseTemp(t *Temp) {
	if !t.inUse {
		panic(fmt.Sprintf("codegen: double release of %s", t.Name()))
	}
	t.inUse = false
}

// free releases the slot backing v, if any.
func (b *Block) free(v value) {
	if v.temp != nil {
		b.releaseTemp(v.temp)
		v.temp = nil
	}
}

// tempValue allocates a slot and wraps it as an operand.
func (b *Block) tempValue() value {
	t := b.allocTemp()
	return value{text: t.Name(), temp: t}
}

func (b *Block) newPendVar() string {
	b.pendCount++
	name := fmt.Sprintf("%sπPend%03d", b.varPrefix, b.pendCount)
	b.pendVars = append(b.pendVars, name)
	return name
}

func (b *Block) pushContext(ctx *blockContext) {
	b.contexts = append(b.contexts, ctx)
}

func (b *Block) popContext() *blockContext {
	ctx := b.contexts[len(b.contexts)-1]
	b.contexts = b.contexts[:len(b.contexts)-1]
	return ctx
}

// emitBreak routes a break to the nearest loop, running every finally
// between here and the loop first.
func (b *Block) emitBreak() bool {
	return b.routeLoopExit(len(b.contexts), pendBreak)
}

// emitContinue routes a continue to the nearest loop head.
func (b *Block) emitContinue() bool {
	return b.routeLoopExit(len(b.contexts), pendContinue)
}

// routeLoopExit scans the context stack below depth for the target loop.
// A finally on the way intercepts the jump: the pending action is stored
// and the finally's exit switch carries it onward. Every checkpoint
// between here and the jump target is popped, so the frame never keeps a
// handler for a region control has left.
func (b *Block) routeLoopExit(depth, pend int) bool {
	if !b.hasLoopBelow(depth) {
		return false
	}
	for i := depth - 1; i >= 0; i-- {
		ctx := b.contexts[i]
		switch ctx.kind {
		case ctxLoop:
			if pend == pendBreak {
				b.gotoLabel(ctx.breakLabel)
			} else {
				b.gotoLabel(ctx.continueLabel)
			}
			return true
		case ctxHandler:
			b.w.Line("πF.PopCheckpoint()")
		case ctxFinally:
			ctx.pendsUsed[pend] = true
			// The finally body runs with its own checkpoint gone,
			// same as on the normal fall-through path.
			b.w.Line("πF.PopCheckpoint()")
			b.w.Linef("%s = %d", ctx.pendVar, pend)
			b.gotoLabel(ctx.finallyLabel)
			return true
		}
	}
	return false
}

// hasLoopBelow reports whether a loop context exists below depth. A
// break or continue guarded only by try regions is still outside any
// loop and must be rejected before anything is emitted.
func (b *Block) hasLoopBelow(depth int) bool {
	for i := depth - 1; i >= 0; i-- {
		if b.contexts[i].kind == ctxLoop {
			return true
		}
	}
	return false
}

// emitReturn routes a return, running enclosing finally clauses first.
// The return value is parked in πR while finally bodies run. Checkpoints
// of try regions the return leaves are popped on the way out.
func (b *Block) emitReturn(v value) {
	for i := len(b.contexts) - 1; i >= 0; i-- {
		ctx := b.contexts[i]
		switch ctx.kind {
		case ctxHandler:
			b.w.Line("πF.PopCheckpoint()")
			continue
		case ctxLoop:
			continue
		}
		ctx.pendsUsed[pendReturn] = true
		if b.kind != blockGenerator {
			b.w.Linef("πR = %s", v.text)
		}
		b.free(v)
		b.w.Line("πF.PopCheckpoint()")
		b.w.Linef("%s = %d", ctx.pendVar, pendReturn)
		b.gotoLabel(ctx.finallyLabel)
		return
	}
	if b.kind == blockGenerator {
		// A return in a generator just ends the iteration.
		b.free(v)
		b.w.Line("return nil, nil")
		return
	}
	b.w.Linef("return %s, nil", v.text)
	b.free(v)
}

// routeReturnFrom continues a pending return from the exit switch of the
// finally at stack depth i, heading for the next finally out or the
// function's caller.
func (b *Block) routeReturnFrom(depth int) {
	for i := depth - 1; i >= 0; i-- {
		ctx := b.contexts[i]
		switch ctx.kind {
		case ctxHandler:
			b.w.Line("πF.PopCheckpoint()")
			continue
		case ctxLoop:
			continue
		}
		ctx.pendsUsed[pendReturn] = true
		b.w.Line("πF.PopCheckpoint()")
		b.w.Linef("%s = %d", ctx.pendVar, pendReturn)
		b.gotoLabel(ctx.finallyLabel)
		return
	}
	if b.kind == blockGenerator {
		b.w.Line("return nil, nil")
		return
	}
	b.w.Line("return πR, nil")
}
