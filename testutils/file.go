package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

// WriteTempFile writes contents to a new file called name in a temporary directory that is
// removed with the test, and returns its path.
func WriteTempFile(tb testing.TB, name, contents string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	test.That(tb, os.WriteFile(path, []byte(contents), 0o600), test.ShouldBeNil)
	return path
}
