package codegen

import (
	"fmt"
	"sort"
	"strings"
)

// Writer accumulates generated Go source, tracking the current
// indentation depth so lowering code never concatenates tabs by hand.
type Writer struct {
	sb     strings.Builder
	indent int
}

// NewWriter returns a writer whose lines start at the given depth.
func NewWriter(indent int) *Writer {
	return &Writer{indent: indent}
}

// In increases the indentation depth for subsequent lines.
func (w *Writer) In() {
	w.indent++
}

// Out decreases the indentation depth.
func (w *Writer) Out() {
	if w.indent > 0 {
		w.indent--
	}
}

// Line writes one line at the current depth. An empty string writes a
// blank line with no indentation.
func (w *Writer) Line(text string) {
	if text == "" {
		w.sb.WriteByte('\n')
		return
	}
	for i := 0; i < w.indent; i++ {
		w.sb.WriteByte('\t')
	}
	w.sb.WriteString(text)
	w.sb.WriteByte('\n')
}

// Linef formats and writes one line at the current depth.
func (w *Writer) Linef(format string, args ...interface{}) {
	w.Line(fmt.Sprintf(format, args...))
}

// Label writes a Go label, outdented one level the way gofmt places
// them.
func (w *Writer) Label(name string) {
	for i := 1; i < w.indent; i++ {
		w.sb.WriteByte('\t')
	}
	w.sb.WriteString(name)
	w.sb.WriteString(":\n")
}

// Raw appends text verbatim. The text must carry its own indentation
// and trailing newline.
func (w *Writer) Raw(text string) {
	w.sb.WriteString(text)
}

func (w *Writer) String() string {
	return w.sb.String()
}

// Tmpl writes a multi-line template, substituting $name references from
// vars and indenting every line at the current depth.
func (w *Writer) Tmpl(tmpl string, vars map[string]string) {
	expanded := expandVars(tmpl, vars)
	for _, line := range strings.Split(strings.Trim(expanded, "\n"), "\n") {
		w.Line(line)
	}
}

func expandVars(tmpl string, vars map[string]string) string {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '$' {
			sb.WriteByte(tmpl[i])
			continue
		}
		j := i + 1
		for j < len(tmpl) && (isVarByte(tmpl[j])) {
			j++
		}
		if name := tmpl[i+1 : j]; name != "" {
			if v, ok := vars[name]; ok {
				sb.WriteString(v)
				i = j - 1
				continue
			}
		}
		sb.WriteByte('$')
	}
	return sb.String()
}

func isVarByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// importSet collects the import block of one generated file, keyed by
// the local identifier each path is bound to. Rendering sorts by
// identifier so recompiling a module yields byte-identical output.
type importSet struct {
	byAlias map[string]string
}

func newImportSet() *importSet {
	return &importSet{byAlias: map[string]string{}}
}

func (s *importSet) add(alias, path string) {
	s.byAlias[alias] = path
}

func (s *importSet) render(w *Writer) {
	if len(s.byAlias) == 0 {
		return
	}
	aliases := make([]string, 0, len(s.byAlias))
	for alias := range s.byAlias {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	w.Line("import (")
	w.In()
	for _, alias := range aliases {
		w.Linef("%s %q", alias, s.byAlias[alias])
	}
	w.Out()
	w.Line(")")
}
