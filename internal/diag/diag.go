// Package diag carries positioned diagnostics from the front end and the
// code generator and renders them with source context.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostic is a single error tied to a position in a module's source.
// Line and Column are 1-based; a zero Line means the position is unknown.
type Diagnostic struct {
	Module  string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) Error() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.Module, d.Message)
	}
	if d.Column == 0 {
		return fmt.Sprintf("%s:%d: %s", d.Module, d.Line, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.Module, d.Line, d.Column, d.Message)
}

// Sort orders diagnostics by position so output is stable regardless of
// the order passes recorded them in.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Excerpt returns the source line a diagnostic points at together with a
// caret marker under the offending column. Returns "" when the position
// does not land inside the source.
func Excerpt(source string, line, column int) string {
	if line < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	text := strings.TrimRight(lines[line-1], "\r")
	if column < 1 || column > len(text)+1 {
		return text
	}
	// Tabs keep their width in the marker line so the caret lines up.
	marker := make([]byte, 0, column)
	for _, ch := range text[:column-1] {
		if ch == '\t' {
			marker = append(marker, '\t')
		} else {
			marker = append(marker, ' ')
		}
	}
	return text + "\n" + string(marker) + "^"
}

// Render formats a diagnostic with its source excerpt when one is
// available.
func Render(source string, d Diagnostic) string {
	var sb strings.Builder
	sb.WriteString(d.Error())
	if ex := Excerpt(source, d.Line, d.Column); ex != "" {
		sb.WriteString("\n")
		sb.WriteString(ex)
	}
	return sb.String()
}
