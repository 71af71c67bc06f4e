// Package testutil provides test helpers that enforce the repository's
// layering rules: the sketch model stays dependency-free and lower layers
// never import the adapters above them.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoDirectImports parses every non-test .go file in dir and fails the
// test when an import path satisfies the forbidden predicate. Build tags are
// not honoured; the scan covers every file regardless of constraints.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	reportViolations(t, "forbidden direct import", reason, viols)
}

// AssertNoTransitiveDependency runs `go list -deps` over the pattern
// (e.g. "." or "./...") and fails the test when any dependency path
// satisfies the forbidden predicate.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	viols, out, err := transitiveViolations(pattern, forbidden)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, out)
	}
	reportViolations(t, "forbidden transitive dependency", reason, viols)
}

// ThirdPartyImportForbidden matches import paths outside this module and the
// standard library. Module paths carry a dot in their first segment;
// standard library paths never do.
func ThirdPartyImportForbidden(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

// InternalImportForbidden matches imports of internal packages. Standard
// library paths such as crypto/internal/... also match, so keep it to
// direct-import scans rather than transitive dependency walks.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// AdaptersImportForbidden matches imports of the adapter packages. The
// engine and solver layers sit below the adapters and must not reach up.
func AdaptersImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/adapters/") || strings.HasSuffix(path, "/internal/adapters")
}

// goListDeps is a seam so tests can exercise the violation filter without
// invoking the toolchain.
var goListDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func transitiveViolations(pattern string, forbidden func(path string) bool) ([]string, []byte, error) {
	out, err := goListDeps(pattern)
	if err != nil {
		return nil, out, err
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && forbidden(line) {
			viols = append(viols, line)
		}
	}
	return viols, out, nil
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		parsed, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range parsed.Imports {
			if path := strings.Trim(imp.Path.Value, `"`); forbidden(path) {
				viols = append(viols, path+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

type fataler interface {
	Fatalf(format string, args ...any)
}

func reportViolations(t fataler, kind, reason string, viols []string) {
	if len(viols) == 0 {
		return
	}
	t.Fatalf("%s (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
}
