// Package testutil provides fixtures shared by hostcat package tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteList writes one hostname per line to path, creating parent
// directories as needed.
func WriteList(t testing.TB, path string, lines ...string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteTree creates a directory of "domains" lists under root. Keys are
// slash-separated category paths ("social/fake"); values are the lines of
// that category's list.
func WriteTree(t testing.TB, root string, lists map[string][]string) {
	t.Helper()
	for category, lines := range lists {
		WriteList(t, filepath.Join(root, filepath.FromSlash(category), "domains"), lines...)
	}
}
