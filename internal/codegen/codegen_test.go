package codegen

import (
	"strings"
	"testing"

	"github.com/google/grumpy-sub001/internal/lexer"
	"github.com/google/grumpy-sub001/internal/parser"
)

func compileSource(t *testing.T, input string) string {
	t.Helper()
	p := parser.New(lexer.New(input))
	mod := p.ParseModule()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	gen, err := CompileModule(mod, "test", "pymodules/test")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return gen.Text
}

func compileError(t *testing.T, input, wantErr string) {
	t.Helper()
	p := parser.New(lexer.New(input))
	mod := p.ParseModule()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	_, err := CompileModule(mod, "test", "pymodules/test")
	if err == nil {
		t.Fatalf("expected compile error containing %q, got none", wantErr)
	}
	if !strings.Contains(err.Error(), wantErr) {
		t.Fatalf("error = %q, want it to contain %q", err, wantErr)
	}
}

func wantContains(t *testing.T, text string, subs ...string) {
	t.Helper()
	for _, sub := range subs {
		if !strings.Contains(text, sub) {
			t.Errorf("generated code missing %q\n--- generated ---\n%s", sub, text)
		}
	}
}

// wantLineSeq asserts that first and second appear as adjacent lines,
// ignoring indentation.
func wantLineSeq(t *testing.T, text, first, second string) {
	t.Helper()
	lines := strings.Split(text, "\n")
	for i := 0; i+1 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == first && strings.TrimSpace(lines[i+1]) == second {
			return
		}
	}
	t.Errorf("generated code missing line %q followed by %q\n--- generated ---\n%s", first, second, text)
}

func TestModuleShell(t *testing.T) {
	text := compileSource(t, "x = 1\n")
	wantContains(t, text,
		"// Code generated by grumpc from test. DO NOT EDIT.",
		"package test",
		`πg "github.com/google/grumpy-sub001/runtime"`,
		`var Code = πg.NewCode("test", func(πF *πg.Frame, πArgs πg.Args, πKwargs πg.KWArgs) (*πg.Object, *πg.BaseException) {`,
		"switch πF.State() {",
		"case 0:",
		`panic("unexpected block state")`,
		"return nil, nil",
	)
}

func TestRecompilationIsDeterministic(t *testing.T) {
	input := `
import os.path
import zlib

def f(a, b=1):
    try:
        return a + b
    finally:
        pass

class C(object):
    def m(self):
        for i in f(1):
            yield i
`
	first := compileSource(t, input)
	second := compileSource(t, input)
	if first != second {
		t.Fatalf("recompiling the same module changed the output")
	}
}

func TestModuleNamesUseGlobals(t *testing.T) {
	text := compileSource(t, "x = 1\ny = x\ndel x\n")
	wantContains(t, text,
		`πE = πg.StoreGlobal(πF, "x", πg.NewInt(1).ToObject())`,
		`πTemp001, πE = πg.LoadGlobal(πF, "x")`,
		`πE = πg.StoreGlobal(πF, "y", πTemp001)`,
		`πE = πg.DelGlobal(πF, "x")`,
	)
}

func TestLiterals(t *testing.T) {
	text := compileSource(t, `v = [1, 2.5, "s", None, True, (3,)]`+"\n")
	wantContains(t, text,
		"πg.NewInt(1).ToObject()",
		"πg.NewFloat(2.5).ToObject()",
		`πg.NewStr("s").ToObject()`,
		"πg.None",
		"πg.True",
		"πg.NewTuple(πg.NewInt(3).ToObject()).ToObject()",
		"= πg.NewList(",
	)
}

func TestDictLiteralBuildsIncrementally(t *testing.T) {
	text := compileSource(t, `d = {"a": 1, "b": 2}`+"\n")
	wantContains(t, text,
		"πTemp001 = πg.NewDict().ToObject()",
		`πE = πg.SetItem(πF, πTemp001, πg.NewStr("a").ToObject(), πg.NewInt(1).ToObject())`,
		`πE = πg.SetItem(πF, πTemp001, πg.NewStr("b").ToObject(), πg.NewInt(2).ToObject())`,
	)
}

func TestBinaryAndUnaryOperators(t *testing.T) {
	text := compileSource(t, "r = -a + b % c\n")
	wantContains(t, text,
		", πE = πg.Neg(πF, ",
		", πE = πg.Mod(πF, ",
		", πE = πg.Add(πF, ",
	)
}

func TestComparisonFallsBackToThreeWay(t *testing.T) {
	text := compileSource(t, "r = a < b\n")
	wantContains(t, text,
		`πE = πg.RichCompare(πF, πTemp001, πTemp002, "__lt__", "__gt__")`,
		"πE = πg.ThreeWayCompare(πF, πTemp001, πTemp002, πg.CompareLt)",
	)
}

func TestIdentityAndMembership(t *testing.T) {
	text := compileSource(t, "r = a is b\ns = a is not b\nt = a in b\n")
	wantContains(t, text,
		"= πg.GetBool(πTemp001 == πTemp002)",
		"= πg.GetBool(πTemp001 != πTemp002)",
		", πE = πg.Contains(πF, πTemp002, πTemp001)",
	)
}

func TestNotOperator(t *testing.T) {
	text := compileSource(t, "r = not a\n")
	wantContains(t, text,
		", πE = πg.IsTrue(πF, ",
		"= πg.GetBool(πTemp002 == πg.False)",
	)
}

func TestShortCircuitSkipsRightOperand(t *testing.T) {
	text := compileSource(t, "r = a and f()\n")
	wantContains(t, text,
		", πE = πg.IsTrue(πF, πTemp002)",
		"== πg.False {",
		"goto Label1",
		"Label1:",
		", πE = πg.Invoke(πF, ",
	)
}

func TestAttributeAndIndexAccess(t *testing.T) {
	text := compileSource(t, "r = a.b\ns = a[0]\na.b = 1\na[0] = 2\ndel a.b\ndel a[0]\n")
	wantContains(t, text,
		`, πE = πg.GetAttr(πF, πTemp001, "b")`,
		", πE = πg.GetItem(πF, ",
		`πE = πg.SetAttr(πF, πTemp001, "b", πg.NewInt(1).ToObject())`,
		"πE = πg.SetItem(πF, ",
		`πE = πg.DelAttr(πF, πTemp001, "b")`,
		"πE = πg.DelItem(πF, ",
	)
}

func TestCallWithKeywords(t *testing.T) {
	text := compileSource(t, "r = f(1, k=2)\n")
	wantContains(t, text,
		`, πE = πg.Invoke(πF, πTemp001, πg.Args{πg.NewInt(1).ToObject()}, πg.KWArgs{{Name: "k", Value: πg.NewInt(2).ToObject()}})`,
	)
}

func TestCallWithoutKeywordsPassesNil(t *testing.T) {
	text := compileSource(t, "r = f()\n")
	wantContains(t, text, ", πE = πg.Invoke(πF, πTemp001, πg.Args{}, nil)")
}

func TestTupleUnpack(t *testing.T) {
	text := compileSource(t, "a, b = pair\n")
	wantContains(t, text,
		"πSlice001, πE = πg.Unpack(πF, πTemp001, 2)",
		`πE = πg.StoreGlobal(πF, "a", πSlice001[0])`,
		`πE = πg.StoreGlobal(πF, "b", πSlice001[1])`,
	)
}

func TestFunctionSpecNamesCallee(t *testing.T) {
	text := compileSource(t, "def add(a, b=1):\n    return a + b\n")
	wantContains(t, text,
		`πg.NewSpec("add", πg.Params{πg.Param{Name: "a"}, πg.Param{Name: "b", Def: πg.NewInt(1).ToObject()}})`,
		"= πg.NewFunction(",
		", πf_add).ToObject()",
		`πE = πg.StoreGlobal(πF, "add", πTemp001)`,
		"func πf_add(πF *πg.Frame, πArgs πg.Args, πKwargs πg.KWArgs) (*πg.Object, *πg.BaseException) {",
		"if πE = πg.BindArgs(πF, πArgs, πKwargs, &μa, &μb); πE != nil {",
		", πE = πg.Add(πF, μa, μb)",
		"return πg.None, nil",
	)
}

func TestHoistedNamesStayUnique(t *testing.T) {
	text := compileSource(t, "def f():\n    pass\ndef f():\n    pass\n")
	wantContains(t, text, "func πf_f(", "func πf_f2(")
}

func TestCheckedLocalRead(t *testing.T) {
	input := `
def f():
    x = 1
    return x
`
	text := compileSource(t, input)
	wantContains(t, text,
		"var μx *πg.Object",
		`if πE = πg.CheckLocal(πF, μx, "x"); πE != nil {`,
		"return μx, nil",
	)
}

func TestParamReadSkipsUnboundCheck(t *testing.T) {
	text := compileSource(t, "def f(a):\n    return a\n")
	if strings.Contains(text, "CheckLocal") {
		t.Fatalf("parameter read should not be checked:\n%s", text)
	}
}

func TestDeletedParamBecomesChecked(t *testing.T) {
	input := `
def f(a):
    del a
    return a
`
	text := compileSource(t, input)
	wantContains(t, text,
		"μa = nil",
		`if πE = πg.CheckLocal(πF, μa, "a"); πE != nil {`,
	)
}

func TestClosureUsesCells(t *testing.T) {
	input := `
def outer(x):
    def inner():
        return x
    return inner
`
	text := compileSource(t, input)
	wantContains(t, text,
		"μx := πg.NewCell()",
		"var πA_x *πg.Object",
		"μx.Set(πA_x)",
		`, πE = πg.CellGet(πF, μx, "x")`,
	)
}

func TestGlobalDeclarationInFunction(t *testing.T) {
	input := `
def f():
    global g
    g = 1
`
	text := compileSource(t, input)
	wantContains(t, text, `πE = πg.StoreGlobal(πF, "g", πg.NewInt(1).ToObject())`)
}

func TestIfElseLowering(t *testing.T) {
	input := `
if c:
    a = 1
else:
    a = 2
`
	text := compileSource(t, input)
	wantContains(t, text,
		"if πTemp002 == πg.False {",
		"goto Label2",
		"goto Label1",
		"Label2:",
		"Label1:",
	)
}

func TestWhileElseSkippedByBreak(t *testing.T) {
	input := `
while c:
    break
else:
    x = 1
x = 2
`
	text := compileSource(t, input)
	wantContains(t, text,
		"Label1:",       // loop head
		"goto Label3",   // condition false enters the else clause
		"goto Label2",   // break jumps past the else clause
		"goto Label1",   // back edge
		"Label3:",
		"Label2:",
	)
}

func TestForLoopIterates(t *testing.T) {
	input := `
for i in xs:
    continue
`
	text := compileSource(t, input)
	wantContains(t, text,
		", πE = πg.Iter(πF, ",
		", πE = πg.Next(πF, ",
		"== nil {",
		`πE = πg.StoreGlobal(πF, "i", `,
		"goto Label1",
	)
}

func TestTryExceptMatchesInOrder(t *testing.T) {
	input := `
try:
    f()
except ValueError as e:
    g()
except:
    h()
`
	text := compileSource(t, input)
	wantContains(t, text,
		"πF.PushCheckpoint(1)",
		"πF.PopCheckpoint()",
		"case 1:",
		"= πF.RecoveredException().ToObject()",
		", πE = πg.IsInstance(πF, ",
		"!= πg.True {",
		`πE = πg.StoreGlobal(πF, "e", `,
	)
	if strings.Contains(text, "πF.RaiseRecovered()") {
		t.Fatalf("bare except should swallow unmatched re-raise:\n%s", text)
	}
}

func TestTryExceptUnmatchedReRaises(t *testing.T) {
	input := `
try:
    f()
except ValueError:
    pass
`
	text := compileSource(t, input)
	wantContains(t, text, "πE = πF.RaiseRecovered()", "goto πUnwind")
}

func TestTryFinallyPendingDispatch(t *testing.T) {
	input := `
def f():
    while c:
        try:
            break
        finally:
            g()
`
	text := compileSource(t, input)
	wantContains(t, text,
		"var πPend001 int",
		"πPend001 = 0",
		"πPend001 = 1",
		"πPend001 = 4",
		"switch πPend001 {",
		"case 1:",
		"case 4:",
		"πE = πF.RaiseRecovered()",
	)
	// No continue routed through this finally.
	if strings.Contains(text, "πPend001 = 2") {
		t.Fatalf("unused pending action stored:\n%s", text)
	}
}

func TestReturnRoutedThroughFinally(t *testing.T) {
	input := `
def f():
    try:
        return 1
    finally:
        g()
`
	text := compileSource(t, input)
	wantContains(t, text,
		"πR = πg.NewInt(1).ToObject()",
		"πPend001 = 3",
		"case 3:",
		"return πR, nil",
	)
	// The guarded region's checkpoint dies before the finally body runs.
	wantLineSeq(t, text, "πF.PopCheckpoint()", "πPend001 = 3")
}

func TestBreakOutOfTryExceptPopsCheckpoint(t *testing.T) {
	input := `
while a:
    try:
        break
    except E:
        pass
`
	text := compileSource(t, input)
	// One pop on the break path, one on normal fall-through.
	if got := strings.Count(text, "πF.PopCheckpoint()"); got != 2 {
		t.Fatalf("πF.PopCheckpoint() count = %d, want 2:\n%s", got, text)
	}
	// The break pops the handler checkpoint before leaving the loop.
	wantLineSeq(t, text, "πF.PopCheckpoint()", "goto Label2")
}

func TestContinueOutOfTryFinallyPopsCheckpoint(t *testing.T) {
	input := `
while a:
    try:
        continue
    finally:
        g()
`
	text := compileSource(t, input)
	wantLineSeq(t, text, "πF.PopCheckpoint()", "πPend001 = 2")
	// The finally's exit switch resumes the continue at the loop head.
	wantContains(t, text, "case 2:", "goto Label1")
}

func TestReturnOutOfTryExceptPopsCheckpoint(t *testing.T) {
	input := `
def f():
    try:
        return 1
    except E:
        pass
`
	text := compileSource(t, input)
	wantLineSeq(t, text, "πF.PopCheckpoint()", "return πg.NewInt(1).ToObject(), nil")
}

func TestBreakGuardedOnlyByTryIsAnError(t *testing.T) {
	compileError(t, "try:\n    break\nfinally:\n    pass\n", "break outside loop")
	compileError(t, "try:\n    continue\nfinally:\n    pass\n", "continue outside loop")
	compileError(t, "try:\n    break\nexcept E:\n    pass\n", "break outside loop")
}

func TestContinueInInnerLoopElseAdvancesOuterLoop(t *testing.T) {
	input := `
while a:
    while b:
        pass
    else:
        continue
`
	text := compileSource(t, input)
	// Inner exhaustion enters the else clause.
	wantContains(t, text, "goto Label5", "Label5:")
	// The else's continue targets the outer loop head, not the inner.
	wantLineSeq(t, text, "Label5:", "goto Label1")
}

func TestRaiseForms(t *testing.T) {
	text := compileSource(t, "raise\n")
	wantContains(t, text, "πE = πg.Raise(πF, nil)", "goto πUnwind")

	text = compileSource(t, "raise f()\n")
	wantContains(t, text, "πE = πg.Raise(πF, πTemp002)")
}

func TestWithStatementLowering(t *testing.T) {
	input := `
with open(name) as f:
    g()
`
	text := compileSource(t, input)
	wantContains(t, text,
		", πE = πg.Enter(πF, ",
		`πE = πg.StoreGlobal(πF, "f", `,
		"πF.PushCheckpoint(1)",
		", πE = πg.Exit(πF, ",
		"switch πPend001 {",
		"case 4:",
	)
}

func TestImportBindsTopLevelName(t *testing.T) {
	text := compileSource(t, "import os.path\n")
	wantContains(t, text,
		`π_os__path "pymodules/os/path"`,
		`, πE = πg.ImportModule(πF, "os.path", π_os__path.Code)`,
		`πE = πg.StoreGlobal(πF, "os", `,
	)
}

func TestClassLowering(t *testing.T) {
	input := `
class C(object):
    x = 1
`
	text := compileSource(t, input)
	wantContains(t, text,
		`, πE = πg.NewClass(πF, "C", πg.Args{πTemp001}, πc_C)`,
		`πE = πg.StoreGlobal(πF, "C", `,
		"func πc_C(πF *πg.Frame, πArgs πg.Args, πKwargs πg.KWArgs) (*πg.Object, *πg.BaseException) {",
		`πE = πg.StoreName(πF, "x", πg.NewInt(1).ToObject())`,
	)
}

func TestClassBodyReadsUseNameLookup(t *testing.T) {
	input := `
class C:
    x = 1
    y = x
`
	text := compileSource(t, input)
	wantContains(t, text, `, πE = πg.LoadName(πF, "x")`)
}

func TestGeneratorLowering(t *testing.T) {
	input := `
def gen(n):
    x = yield n
    yield x
`
	text := compileSource(t, input)
	wantContains(t, text,
		"πEnv := &struct {",
		"μn *πg.Object",
		"μx *πg.Object",
		"}{}",
		"if πE := πg.BindArgs(πF, πArgs, πKwargs, &πEnv.μn); πE != nil {",
		"return πg.NewGenerator(πF, func(πF *πg.Frame, πSent *πg.Object) (*πg.Object, *πg.BaseException) {",
		"πF.SetState(1)",
		"return πEnv.μn, nil",
		"= πSent",
		"}).ToObject(), nil",
	)
}

func TestBareYieldSendsNone(t *testing.T) {
	input := `
def gen():
    yield
`
	text := compileSource(t, input)
	wantContains(t, text, "return πg.None, nil")
}

func TestNestedGeneratorsGetDistinctEnvNames(t *testing.T) {
	input := `
def a():
    yield 1

def b():
    yield 2
`
	text := compileSource(t, input)
	wantContains(t, text, "πEnv := &struct {", "πEnv2 := &struct {")
}

func TestPackageNameSanitization(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"spam", "spam"},
		{"a.b.eggs", "eggs"},
		{"my-mod", "my_mod"},
		{"2to3", "_2to3"},
		{"select", "select_"},
	}
	for _, tt := range tests {
		if got := packageName(tt.name); got != tt.want {
			t.Errorf("packageName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestImportRoot(t *testing.T) {
	tests := []struct {
		name, importPath, want string
	}{
		{"test", "pymodules/test", "pymodules"},
		{"a.b", "pymodules/a/b", "pymodules"},
		{"test", "elsewhere/pkg", "elsewhere"},
	}
	for _, tt := range tests {
		if got := importRoot(tt.name, tt.importPath); got != tt.want {
			t.Errorf("importRoot(%q, %q) = %q, want %q", tt.name, tt.importPath, got, tt.want)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name, input, wantErr string
	}{
		{"break outside loop", "break\n", "break outside loop"},
		{"continue outside loop", "continue\n", "continue outside loop"},
		{"return at module level", "return 1\n", "return outside function"},
		{"return value in generator", "def f():\n    yield 1\n    return 2\n", "return with value in generator"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compileError(t, tt.input, tt.wantErr)
		})
	}
}

func TestErrorListMessage(t *testing.T) {
	p := parser.New(lexer.New("break\ncontinue\n"))
	mod := p.ParseModule()
	_, err := CompileModule(mod, "test", "pymodules/test")
	list, ok := err.(ErrorList)
	if !ok {
		t.Fatalf("expected ErrorList, got %T", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d: %v", len(list), list)
	}
	if !strings.Contains(err.Error(), "(and 1 more errors)") {
		t.Fatalf("aggregate message = %q", err.Error())
	}
}
