package loader

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTempSource writes content to a file under t.TempDir and returns its
// path.
func writeTempSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp source: %v", err)
	}
	return path
}
