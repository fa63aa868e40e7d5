// Package imports maps dotted module names to source files and the Go
// packages the compiler generates for them.
package imports

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SourceExt is the extension of source modules.
const SourceExt = ".py"

// Locator resolves dotted module names against a source root directory.
type Locator struct {
	Root string
}

// ModuleName derives the dotted module name of a source file relative to
// the locator's root. A path outside the root uses its base name.
func (l *Locator) ModuleName(srcPath string) string {
	rel, err := filepath.Rel(l.Root, srcPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(srcPath)
	}
	rel = strings.TrimSuffix(rel, SourceExt)
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
}

// SourcePath returns the file a dotted module name refers to, accepting
// both pkg/mod.py and pkg/mod/__init__.py layouts.
func (l *Locator) SourcePath(name string) (string, error) {
	base := filepath.Join(l.Root, filepath.FromSlash(strings.ReplaceAll(name, ".", "/")))
	if st, err := os.Stat(base + SourceExt); err == nil && !st.IsDir() {
		return base + SourceExt, nil
	}
	init := filepath.Join(base, "__init__"+SourceExt)
	if st, err := os.Stat(init); err == nil && !st.IsDir() {
		return init, nil
	}
	return "", fmt.Errorf("no source for module %q under %s", name, l.Root)
}

// OutputPath returns where the generated Go file for a module goes,
// below outDir, one directory per package.
func OutputPath(outDir, name string) string {
	parts := strings.Split(name, ".")
	dir := filepath.Join(append([]string{outDir}, parts...)...)
	return filepath.Join(dir, "module.go")
}

// ImportPath returns the Go import path of the generated package for a
// module, below the root import path used for generated code.
func ImportPath(rootImport, name string) string {
	return rootImport + "/" + strings.ReplaceAll(name, ".", "/")
}
