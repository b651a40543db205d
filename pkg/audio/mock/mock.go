// Package mock provides a scripted test double for the audio package's
// Source interface.
//
// Use Source to feed a fixed sequence of frames through the pipeline in
// tests. Frames are delivered on demand (no real-time pacing) unless an
// Interval is configured.
package mock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxhook/voxhook/pkg/audio"
)

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)

// Source is a mock implementation of audio.Source replaying scripted frames.
type Source struct {
	// Script is the sequence of frames delivered after Start.
	Script [][]byte

	// Interval, when non-zero, paces frame delivery to simulate a real-time
	// capture cadence.
	Interval time.Duration

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// Hold, when true, keeps the frame channel open after the script is
	// exhausted instead of closing it. Use this when the test drives
	// shutdown via context cancellation.
	Hold bool

	mu             sync.Mutex
	frames         chan []byte
	startCallCount int
	closeCallCount int
	closed         chan struct{}
	dropped        atomic.Uint64
}

// Start begins replaying the script on the Frames channel.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startCallCount++
	if s.StartErr != nil {
		return s.StartErr
	}

	s.frames = make(chan []byte, len(s.Script)+1)
	s.closed = make(chan struct{})

	go func() {
		for _, frame := range s.Script {
			if s.Interval > 0 {
				select {
				case <-time.After(s.Interval):
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				}
			}
			select {
			case s.frames <- frame:
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			}
		}
		if !s.Hold {
			close(s.frames)
		}
	}()
	return nil
}

// Frames returns the scripted frame channel. Returns nil before Start.
func (s *Source) Frames() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Dropped reports the scripted drop count (always zero unless set via AddDropped).
func (s *Source) Dropped() uint64 { return s.dropped.Load() }

// AddDropped increments the reported drop counter, for tests that assert on
// drop accounting.
func (s *Source) AddDropped(n uint64) { s.dropped.Add(n) }

// Close stops replay. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCallCount++
	if s.closed != nil {
		select {
		case <-s.closed:
		default:
			close(s.closed)
		}
	}
	return nil
}

// StartCalls reports how many times Start was called.
func (s *Source) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCallCount
}

// CloseCalls reports how many times Close was called.
func (s *Source) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCallCount
}
