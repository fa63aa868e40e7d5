package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/grumpy-sub001/internal/codegen"
)

func writeSource(t *testing.T, root, rel, src string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

func TestRunCompilesModuleNameArgument(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	writeSource(t, root, "pkg/mod.py", "x = 1\n")

	if code := run([]string{"-srcroot", root, "-o", out, "pkg.mod"}); code != 0 {
		t.Fatalf("run returned %d, want 0", code)
	}

	data, err := os.ReadFile(filepath.Join(out, "pkg", "mod", "module.go"))
	if err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
	if !strings.Contains(string(data), `πg.NewCode("pkg.mod"`) {
		t.Fatalf("generated file does not name the module:\n%s", data)
	}
}

func TestRunCompilesFilePathArgument(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	file := writeSource(t, root, "mod.py", "x = 1\n")

	if code := run([]string{"-srcroot", root, "-o", out, file}); code != 0 {
		t.Fatalf("run returned %d, want 0", code)
	}
	if _, err := os.Stat(filepath.Join(out, "mod", "module.go")); err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
}

func TestRunReportsUnresolvableModule(t *testing.T) {
	root := t.TempDir()
	if code := run([]string{"-srcroot", root, "-o", t.TempDir(), "no.such.module"}); code != 1 {
		t.Fatalf("run returned %d, want 1", code)
	}
}

func TestRenderErrorAddsExcerpt(t *testing.T) {
	src := "x = = 1\n"
	_, err := compileSource(src, "m", "pymodules/m", codegen.DefaultRuntimePath)
	if err == nil {
		t.Fatalf("expected a compile error")
	}

	msg := renderError(src, err).Error()
	if !strings.Contains(msg, "m:1:5:") {
		t.Fatalf("rendered error missing position: %q", msg)
	}
	if !strings.Contains(msg, "x = = 1\n    ^") {
		t.Fatalf("rendered error missing source excerpt with caret: %q", msg)
	}
}
