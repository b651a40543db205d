// Package mock provides a recording test double for the dispatch package's
// Runner interface.
package mock

import (
	"sync"

	"github.com/voxhook/voxhook/internal/dispatch"
)

// Compile-time assertion that Runner satisfies dispatch.Runner.
var _ dispatch.Runner = (*Runner)(nil)

// Runner records every dispatched command instead of spawning processes.
type Runner struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every Dispatch call.
	Err error

	commands []string
}

// Dispatch records command and returns Err.
func (r *Runner) Dispatch(command string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	return r.Err
}

// Commands returns the dispatched commands in order.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}
