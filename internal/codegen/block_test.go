package codegen

import (
	"strings"
	"testing"
)

func newTestBlock() *Block {
	return New().newBlock(blockFunction, nil, 1)
}

func TestTempPoolReusesLowestFreeSlot(t *testing.T) {
	b := newTestBlock()

	t1 := b.allocTemp()
	t2 := b.allocTemp()
	t3 := b.allocTemp()
	if t1.Name() != "πTemp001" || t2.Name() != "πTemp002" || t3.Name() != "πTemp003" {
		t.Fatalf("slot names = %s, %s, %s", t1.Name(), t2.Name(), t3.Name())
	}

	b.releaseTemp(t2)
	t4 := b.allocTemp()
	if t4.Name() != "πTemp002" {
		t.Fatalf("expected freed slot to be reused, got %s", t4.Name())
	}

	// Pool size reflects peak depth, not allocation count.
	if len(b.temps) != 3 {
		t.Fatalf("pool grew to %d slots, want 3", len(b.temps))
	}
}

func TestSliceTempsPoolSeparately(t *testing.T) {
	b := newTestBlock()

	_ = b.allocTemp()
	sl := b.allocSliceTemp()
	if sl.Name() != "πSlice001" {
		t.Fatalf("slice slot name = %s", sl.Name())
	}
	b.releaseTemp(sl)
	if got := b.allocSliceTemp(); got.Name() != "πSlice001" {
		t.Fatalf("freed slice slot not reused, got %s", got.Name())
	}
}

func TestGeneratorTempsCarryEnvPrefix(t *testing.T) {
	b := New().newBlock(blockGenerator, nil, 1)
	if got := b.allocTemp().Name(); got != "πEnv.πTemp001" {
		t.Fatalf("generator temp name = %s", got)
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	b := newTestBlock()
	tmp := b.allocTemp()
	b.releaseTemp(tmp)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on double release")
		}
		if !strings.Contains(r.(string), "double release") {
			t.Fatalf("unexpected panic message: %v", r)
		}
	}()
	b.releaseTemp(tmp)
}

func TestValueShapes(t *testing.T) {
	b := newTestBlock()

	if (value{}).valid() {
		t.Fatalf("zero value must read as absent")
	}
	lit := value{text: "πg.None"}
	if !lit.valid() || lit.temp != nil {
		t.Fatalf("literal operand carries a slot: %+v", lit)
	}
	tv := b.tempValue()
	if !tv.valid() || tv.temp == nil || tv.text != tv.temp.Name() {
		t.Fatalf("temp operand malformed: %+v", tv)
	}
	b.free(tv)
	b.free(lit)
}

func TestFreeIsIdempotentOnLiterals(t *testing.T) {
	b := newTestBlock()
	// Literal operands carry no slot, so freeing them is a no-op.
	b.free(value{text: "πg.None"})
	if len(b.temps) != 0 {
		t.Fatalf("freeing a literal touched the pool")
	}
}

func TestLabelsEmittedOnlyWhenJumpedTo(t *testing.T) {
	b := newTestBlock()
	used := b.newLabel()
	unused := b.newLabel()

	b.gotoLabel(used)
	b.emitLabel(used)
	b.emitLabel(unused)

	out := b.w.String()
	if !strings.Contains(out, "goto Label1") {
		t.Fatalf("missing jump:\n%s", out)
	}
	if !strings.Contains(out, "Label1:") {
		t.Fatalf("missing used label:\n%s", out)
	}
	if strings.Contains(out, "Label2") {
		t.Fatalf("unused label leaked into output:\n%s", out)
	}
}

func TestNewStateIsResumableAndLive(t *testing.T) {
	b := newTestBlock()
	n := b.newState()
	if len(b.resumable) != 1 || b.resumable[0] != n {
		t.Fatalf("state %d not recorded as resumable: %v", n, b.resumable)
	}
	// Dispatch jumps to state labels, so they are live without an
	// explicit goto.
	b.emitLabel(n)
	if !strings.Contains(b.w.String(), "Label1:") {
		t.Fatalf("state label not emitted:\n%s", b.w.String())
	}
}

func TestBreakOutsideLoopReportsFailure(t *testing.T) {
	b := newTestBlock()
	if b.emitBreak() {
		t.Fatalf("break with no enclosing loop should fail")
	}
	if b.emitContinue() {
		t.Fatalf("continue with no enclosing loop should fail")
	}
}

func TestBreakGuardedOnlyByTryReportsFailure(t *testing.T) {
	b := newTestBlock()
	fin := &blockContext{
		kind:         ctxFinally,
		pendVar:      b.newPendVar(),
		finallyLabel: b.newLabel(),
		pendsUsed:    map[int]bool{},
	}
	b.pushContext(fin)

	if b.emitBreak() {
		t.Fatalf("break with no loop below the finally should fail")
	}
	if len(fin.pendsUsed) != 0 {
		t.Fatalf("failed break routed a pending action: %v", fin.pendsUsed)
	}
	if out := b.w.String(); out != "" {
		t.Fatalf("failed break emitted code:\n%s", out)
	}
}

func TestBreakRoutesThroughFinally(t *testing.T) {
	b := newTestBlock()
	loopDone := b.newLabel()
	b.pushContext(&blockContext{kind: ctxLoop, breakLabel: loopDone, continueLabel: loopDone})

	fin := &blockContext{
		kind:         ctxFinally,
		pendVar:      b.newPendVar(),
		finallyLabel: b.newLabel(),
		pendsUsed:    map[int]bool{},
	}
	b.pushContext(fin)

	if !b.emitBreak() {
		t.Fatalf("break inside loop should succeed")
	}
	if !fin.pendsUsed[pendBreak] {
		t.Fatalf("finally did not record the pending break")
	}
	out := b.w.String()
	if !strings.Contains(out, "πF.PopCheckpoint()") {
		t.Fatalf("finally checkpoint not popped on the break path:\n%s", out)
	}
	if !strings.Contains(out, "πPend001 = 1") {
		t.Fatalf("pending action not stored:\n%s", out)
	}
	if !strings.Contains(out, "goto Label2") {
		t.Fatalf("jump does not target the finally body:\n%s", out)
	}
}

func TestBreakPopsEveryCrossedCheckpoint(t *testing.T) {
	b := newTestBlock()
	loopDone := b.newLabel()
	b.pushContext(&blockContext{kind: ctxLoop, breakLabel: loopDone, continueLabel: loopDone})
	b.pushContext(&blockContext{kind: ctxHandler})
	b.pushContext(&blockContext{kind: ctxHandler})

	if !b.emitBreak() {
		t.Fatalf("break inside loop should succeed")
	}
	out := b.w.String()
	if got := strings.Count(out, "πF.PopCheckpoint()"); got != 2 {
		t.Fatalf("popped %d checkpoints, want 2:\n%s", got, out)
	}
	if !strings.Contains(out, "goto Label1") {
		t.Fatalf("break does not reach the loop exit:\n%s", out)
	}
}

func TestReturnRoutesThroughFinally(t *testing.T) {
	b := newTestBlock()
	fin := &blockContext{
		kind:         ctxFinally,
		pendVar:      b.newPendVar(),
		finallyLabel: b.newLabel(),
		pendsUsed:    map[int]bool{},
	}
	b.pushContext(fin)

	b.emitReturn(value{text: "πg.None"})
	if !fin.pendsUsed[pendReturn] {
		t.Fatalf("finally did not record the pending return")
	}
	out := b.w.String()
	if !strings.Contains(out, "πR = πg.None") {
		t.Fatalf("return value not parked in πR:\n%s", out)
	}
	if !strings.Contains(out, "πF.PopCheckpoint()") {
		t.Fatalf("finally checkpoint not popped on the return path:\n%s", out)
	}
	if !strings.Contains(out, "πPend001 = 3") {
		t.Fatalf("pending action not stored:\n%s", out)
	}
}

func TestGeneratorReturnEndsIteration(t *testing.T) {
	b := New().newBlock(blockGenerator, nil, 1)
	b.emitReturn(value{text: "πg.None"})
	out := b.w.String()
	if !strings.Contains(out, "return nil, nil") {
		t.Fatalf("generator return should end iteration:\n%s", out)
	}
	if strings.Contains(out, "πR") {
		t.Fatalf("generator return must not touch πR:\n%s", out)
	}
}
