// Package testutil writes the executable shell stubs the analyzer tests use
// in place of real transformation tools.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteStubWithOutput writes an executable shell stub that prints output on stdout and exits successfully.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubWithOutput(t *testing.T, dir string, name string, output string) {
	t.Helper()
	path := filepath.Join(dir, name)
	content := []byte("#!/bin/sh\ncat <<'STUB_EOF'\n" + output + "\nSTUB_EOF\nexit 0\n")
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

// WriteStubStderr writes an executable shell stub that prints message on stderr and exits with exitCode.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubStderr(t *testing.T, dir string, name string, message string, exitCode int) {
	t.Helper()
	path := filepath.Join(dir, name)
	content := []byte(fmt.Sprintf("#!/bin/sh\necho %q >&2\nexit %d\n", message, exitCode))
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

// WriteStubSleep writes an executable shell stub that sleeps for seconds before exiting successfully.
// t is the active test; dir is the output directory; name is the executable file name.
func WriteStubSleep(t *testing.T, dir string, name string, seconds int) {
	t.Helper()
	path := filepath.Join(dir, name)
	content := []byte(fmt.Sprintf("#!/bin/sh\nsleep %d\nexit 0\n", seconds))
	if err := os.WriteFile(path, content, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}
