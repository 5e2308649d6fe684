package testutil

import "testing"

// TestTempDir creates a temporary directory removed at test end.
func TestTempDir(tb testing.TB) string {
	tb.Helper()
	return tb.TempDir()
}
