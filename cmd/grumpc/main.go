package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/xyproto/env/v2"

	"github.com/google/grumpy-sub001/internal/codegen"
	"github.com/google/grumpy-sub001/internal/diag"
	"github.com/google/grumpy-sub001/internal/imports"
	"github.com/google/grumpy-sub001/internal/lexer"
	"github.com/google/grumpy-sub001/internal/parser"
)

const (
	appName     = "grumpc"
	historyFile = ".grumpc_history"
	promptMain  = ">>> "
	promptCont  = "... "
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	srcRoot := fs.String("srcroot", env.Str("GRUMPC_SRCROOT", "."), "root directory module names are derived from")
	outDir := fs.String("o", env.Str("GRUMPC_OUT", "gen"), "directory generated packages are written to")
	pkgRoot := fs.String("pkgroot", env.Str("GRUMPC_PKGROOT", "pymodules"), "Go import path prefix of generated packages")
	runtimePath := fs.String("runtime", env.Str("GRUMPC_RUNTIME", codegen.DefaultRuntimePath), "import path of the runtime package")
	repl := fs.Bool("repl", false, "read statements interactively and print the generated Go")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *repl {
		return runREPL(*runtimePath)
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file%s|module...\n", appName, imports.SourceExt)
		fs.PrintDefaults()
		return 2
	}

	loc := &imports.Locator{Root: *srcRoot}
	failed := 0
	for _, arg := range files {
		// Arguments without the source extension are dotted module
		// names resolved against the source root.
		file := arg
		if !strings.HasSuffix(arg, imports.SourceExt) {
			p, err := loc.SourcePath(arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", arg, err)
				failed++
				continue
			}
			file = p
		}
		// One bad module must not abort the rest of the build.
		if err := compileFile(loc, file, *outDir, *pkgRoot, *runtimePath); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func compileFile(loc *imports.Locator, file, outDir, pkgRoot, runtimePath string) error {
	src, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	name := loc.ModuleName(file)

	gen, err := compileSource(string(src), name, imports.ImportPath(pkgRoot, name), runtimePath)
	if err != nil {
		return renderError(string(src), err)
	}

	outPath := imports.OutputPath(outDir, name)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte(gen.Text), 0o644)
}

func compileSource(src, name, importPath, runtimePath string) (*codegen.GeneratedSource, error) {
	p := parser.New(lexer.New(src))
	mod := p.ParseModule()
	if diags := p.DetailedErrors(); len(diags) > 0 {
		for i := range diags {
			diags[i].Module = name
		}
		return nil, codegen.ErrorList(diags)
	}
	cg := codegen.New()
	cg.SetRuntimePath(runtimePath)
	return cg.CompileModule(mod, name, importPath)
}

// renderError attaches source excerpts to positioned compile failures.
// Other errors pass through untouched.
func renderError(src string, err error) error {
	var list codegen.ErrorList
	if !errors.As(err, &list) {
		return err
	}
	msgs := make([]string, len(list))
	for i, d := range list {
		msgs[i] = diag.Render(src, d)
	}
	return errors.New(strings.Join(msgs, "\n"))
}

func runREPL(runtimePath string) int {
	fmt.Printf("%s REPL. Ctrl+D exits. Type :quit to exit.\n", appName)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, env.Str("GRUMPC_HISTORY", historyFile))

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	for {
		code, ok := readStatement(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if strings.EqualFold(trimmed, ":quit") {
				return 0
			}
			fmt.Println("unknown command. Type :quit to exit.")
			continue
		}

		gen, err := compileSource(code+"\n", "__main__", "pymodules/__main__", runtimePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, renderError(code+"\n", err))
			continue
		}
		fmt.Println(gen.Text)
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readStatement collects one statement. A line opening a suite with ":"
// (or continued with a backslash) keeps prompting until a blank line
// closes the block.
func readStatement(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	block := false

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasSuffix(trimmed, "\\"):
			continue
		case strings.HasSuffix(trimmed, ":"):
			block = true
			continue
		case block && trimmed != "":
			continue
		}
		return b.String(), true
	}
}
