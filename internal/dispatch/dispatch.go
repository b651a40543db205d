// Package dispatch runs trigger commands as detached child processes.
//
// Commands are handed to the shell and never waited on from the caller's
// perspective: a slow or hung command must not stall the listening
// pipeline, and a failing one must not crash it.
package dispatch

import (
	"fmt"
	"log/slog"
	"os/exec"
)

// Runner spawns a shell command without waiting for completion. A non-nil
// error means the process could not be started; it says nothing about the
// command's eventual exit status.
type Runner interface {
	Dispatch(command string) error
}

// Compile-time assertion that ShellRunner satisfies Runner.
var _ Runner = (*ShellRunner)(nil)

// ShellRunner executes commands via "/bin/sh -c". Each started process is
// reaped in the background so it cannot linger as a zombie.
type ShellRunner struct {
	// Shell overrides the shell binary. Empty means /bin/sh.
	Shell string
}

// Dispatch starts command and returns once the process is running. Output
// is not captured; the child inherits the daemon's stdout and stderr.
func (r *ShellRunner) Dispatch(command string) error {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell, "-c", command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("dispatch: start %q: %w", command, err)
	}
	slog.Debug("dispatched command", "command", command, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("dispatched command failed", "command", command, "error", err)
		}
	}()
	return nil
}
