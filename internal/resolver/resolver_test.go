package resolver

import (
	"testing"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/lexer"
	"github.com/google/grumpy-sub001/internal/parser"
)

func resolveSource(t *testing.T, input string) (*Table, *ast.Module) {
	t.Helper()
	p := parser.New(lexer.New(input))
	mod := p.ParseModule()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	table, diags := Resolve("test", mod)
	if len(diags) != 0 {
		t.Fatalf("resolve diagnostics: %v", diags)
	}
	return table, mod
}

// funcScope finds the scope of the named function anywhere in the tree.
func funcScope(t *testing.T, s *Scope, name string) *Scope {
	t.Helper()
	if found := findScope(s, name); found != nil {
		return found
	}
	t.Fatalf("no scope named %q", name)
	return nil
}

func findScope(s *Scope, name string) *Scope {
	for _, child := range s.Children {
		if child.Name == name {
			return child
		}
		if found := findScope(child, name); found != nil {
			return found
		}
	}
	return nil
}

func TestResolveModuleNamesAreGlobal(t *testing.T) {
	table, _ := resolveSource(t, `
x = 1
y = x + z
`)
	mod := table.Module
	for _, name := range []string{"x", "y", "z"} {
		if got := mod.Bindings[name]; got != BindGlobal {
			t.Fatalf("module binding for %q = %v, want global", name, got)
		}
	}
}

func TestResolveFunctionLocals(t *testing.T) {
	table, _ := resolveSource(t, `
def f(a, b):
    c = a + b
    return c + g
`)
	f := funcScope(t, table.Module, "f")

	tests := []struct {
		name string
		want BindingKind
	}{
		{"a", BindLocal},
		{"b", BindLocal},
		{"c", BindLocal},
		{"g", BindGlobal},
	}
	for _, tt := range tests {
		if got := f.Bindings[tt.name]; got != tt.want {
			t.Fatalf("binding for %q = %v, want %v", tt.name, got, tt.want)
		}
	}

	if f.Checked["a"] {
		t.Fatalf("parameter a should not need an unbound check")
	}
	if !f.Checked["c"] {
		t.Fatalf("local c should need an unbound check")
	}
}

func TestResolveDeletedParameterIsChecked(t *testing.T) {
	table, _ := resolveSource(t, `
def f(a):
    del a
    return a
`)
	f := funcScope(t, table.Module, "f")
	if !f.Checked["a"] {
		t.Fatalf("deleted parameter should need an unbound check")
	}
}

func TestResolveClosureCapture(t *testing.T) {
	table, _ := resolveSource(t, `
def outer():
    x = 1
    def inner():
        return x
    return inner
`)
	outer := funcScope(t, table.Module, "outer")
	inner := funcScope(t, table.Module, "inner")

	if got := outer.Bindings["x"]; got != BindCell {
		t.Fatalf("outer binding for x = %v, want cell", got)
	}
	if got := inner.Bindings["x"]; got != BindFree {
		t.Fatalf("inner binding for x = %v, want free", got)
	}
}

func TestResolveGlobalDeclaration(t *testing.T) {
	table, _ := resolveSource(t, `
def f():
    global x
    x = 1
`)
	f := funcScope(t, table.Module, "f")
	if got := f.Bindings["x"]; got != BindGlobal {
		t.Fatalf("binding for declared global = %v, want global", got)
	}
}

func TestResolveNonlocal(t *testing.T) {
	table, _ := resolveSource(t, `
def outer():
    n = 0
    def bump():
        nonlocal n
        n = n + 1
    return bump
`)
	outer := funcScope(t, table.Module, "outer")
	bump := funcScope(t, table.Module, "bump")

	if got := outer.Bindings["n"]; got != BindCell {
		t.Fatalf("owner binding for n = %v, want cell", got)
	}
	if got := bump.Bindings["n"]; got != BindFree {
		t.Fatalf("nonlocal binding for n = %v, want free", got)
	}
}

func TestResolveNonlocalWithoutBinding(t *testing.T) {
	p := parser.New(lexer.New(`
def f():
    nonlocal q
    q = 1
`))
	mod := p.ParseModule()
	if errs := p.Errors(); len(errs) != 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	_, diags := Resolve("test", mod)
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %v", diags)
	}
	want := `no binding for nonlocal "q" found`
	if diags[0].Message != want {
		t.Fatalf("diagnostic = %q, want %q", diags[0].Message, want)
	}
}

func TestResolveClassBody(t *testing.T) {
	table, _ := resolveSource(t, `
class C:
    version = 1
    def m(self):
        return self
`)
	c := funcScope(t, table.Module, "C")

	if got := c.Bindings["version"]; got != BindClassTransient {
		t.Fatalf("class binding for version = %v, want class transient", got)
	}
	if got := c.Bindings["m"]; got != BindClassTransient {
		t.Fatalf("class binding for m = %v, want class transient", got)
	}
}

func TestResolveClassScopeIsSkippedByClosures(t *testing.T) {
	table, _ := resolveSource(t, `
def make():
    shared = 1
    class C:
        def m(self):
            return shared
    return C
`)
	make := funcScope(t, table.Module, "make")
	m := funcScope(t, table.Module, "m")
	c := funcScope(t, table.Module, "C")

	if got := make.Bindings["shared"]; got != BindCell {
		t.Fatalf("make binding for shared = %v, want cell", got)
	}
	if got := m.Bindings["shared"]; got != BindFree {
		t.Fatalf("method binding for shared = %v, want free", got)
	}
	if _, ok := c.Bindings["shared"]; ok {
		t.Fatalf("class scope should not bind shared")
	}
}

func TestResolveGeneratorDetection(t *testing.T) {
	table, _ := resolveSource(t, `
def gen():
    yield 1

def plain():
    return 1
`)
	if !funcScope(t, table.Module, "gen").IsGenerator {
		t.Fatalf("gen should be a generator")
	}
	if funcScope(t, table.Module, "plain").IsGenerator {
		t.Fatalf("plain should not be a generator")
	}
}

func TestResolveSortedLocalsOrder(t *testing.T) {
	table, _ := resolveSource(t, `
def f(b, a):
    z = 1
    y = 2
    return a + b + y + z
`)
	f := funcScope(t, table.Module, "f")
	got := f.SortedLocals()
	want := []string{"b", "a", "y", "z"}
	if len(got) != len(want) {
		t.Fatalf("locals = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("locals = %v, want %v", got, want)
		}
	}
}
