// Package gate holds the listening gate: the process-wide pause/resume
// switch governing whether the pipeline processes audio.
//
// The gate is an explicit injected object rather than a package-level
// singleton so the frame loop, segment worker and control plane can be tested
// in isolation. Writers are the control plane only; readers check the gate
// once per queue item before doing any work.
package gate

import (
	"log/slog"
	"sync/atomic"
)

// Gate is a concurrency-safe listening switch. The zero value is closed;
// use New to start in the listening state.
type Gate struct {
	listening atomic.Bool
}

// New returns a Gate in the listening state.
func New() *Gate {
	g := &Gate{}
	g.listening.Store(true)
	return g
}

// Listening reports whether audio should be processed.
func (g *Gate) Listening() bool {
	return g.listening.Load()
}

// Pause closes the gate and reports whether the gate was open. Queue
// draining continues while paused, but frames and segments are dropped
// before reaching the segmenter or matcher.
func (g *Gate) Pause() bool {
	if g.listening.CompareAndSwap(true, false) {
		slog.Info("listening paused")
		return true
	}
	return false
}

// Resume reopens the gate and reports whether the gate was closed.
func (g *Gate) Resume() bool {
	if g.listening.CompareAndSwap(false, true) {
		slog.Info("listening resumed")
		return true
	}
	return false
}

// Set moves the gate to the given state. Used by tests and by callers that
// already branched on the desired state.
func (g *Gate) Set(listening bool) {
	if listening {
		g.Resume()
	} else {
		g.Pause()
	}
}
