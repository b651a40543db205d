package dispatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestShellRunner_Dispatch(t *testing.T) {
	t.Parallel()

	marker := filepath.Join(t.TempDir(), "fired")
	r := &ShellRunner{}
	if err := r.Dispatch("touch " + marker); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// Dispatch returns before the command finishes; poll for the side
	// effect instead of waiting on the process.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(marker); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("dispatched command never ran")
}

func TestShellRunner_SpawnFailure(t *testing.T) {
	t.Parallel()

	r := &ShellRunner{Shell: "/nonexistent/shell"}
	if err := r.Dispatch("true"); err == nil {
		t.Fatal("expected spawn error for missing shell")
	}
}

func TestShellRunner_CommandFailureIsNotAnError(t *testing.T) {
	t.Parallel()

	// A command that starts but exits non-zero must not surface an error.
	r := &ShellRunner{}
	if err := r.Dispatch("exit 3"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
}
