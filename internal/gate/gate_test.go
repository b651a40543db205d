package gate

import (
	"sync"
	"testing"
)

func TestGate_DefaultsToListening(t *testing.T) {
	t.Parallel()

	g := New()
	if !g.Listening() {
		t.Error("new gate should be listening")
	}
}

func TestGate_PauseResume(t *testing.T) {
	t.Parallel()

	g := New()
	g.Pause()
	if g.Listening() {
		t.Error("gate should be paused")
	}
	g.Resume()
	if !g.Listening() {
		t.Error("gate should be listening again")
	}
}

func TestGate_SetIsIdempotent(t *testing.T) {
	t.Parallel()

	g := New()
	g.Set(false)
	g.Set(false)
	if g.Listening() {
		t.Error("gate should stay paused")
	}
	g.Set(true)
	g.Set(true)
	if !g.Listening() {
		t.Error("gate should stay listening")
	}
}

func TestGate_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	g := New()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(pause bool) {
			defer wg.Done()
			if pause {
				g.Pause()
			} else {
				g.Resume()
			}
			_ = g.Listening()
		}(i%2 == 0)
	}
	wg.Wait()
}
