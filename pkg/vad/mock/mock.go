// Package mock provides a scripted test double for the vad package's
// Detector interface.
//
// Use Detector to drive the segmenter through exact speech/silence
// sequences:
//
//	d := &mock.Detector{Script: []bool{true, true, false, false}}
package mock

import (
	"sync"

	"github.com/voxhook/voxhook/pkg/vad"
)

// Compile-time assertion that Detector satisfies vad.Detector.
var _ vad.Detector = (*Detector)(nil)

// Detector is a mock implementation of vad.Detector that replays a scripted
// sequence of classifications. After the script is exhausted it keeps
// returning the last value (or false for an empty script).
type Detector struct {
	mu sync.Mutex

	// Script is the sequence of classifications returned by successive
	// IsSpeech calls.
	Script []bool

	// Err, if non-nil, is returned by every IsSpeech call.
	Err error

	// Validate, when true, applies the standard frame validation before
	// consulting the script.
	Validate bool

	calls int
}

// IsSpeech returns the next scripted classification.
func (d *Detector) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Validate {
		if err := vad.ValidateFrame(frame, sampleRate); err != nil {
			return false, err
		}
	}
	if d.Err != nil {
		return false, d.Err
	}

	idx := d.calls
	d.calls++
	if len(d.Script) == 0 {
		return false, nil
	}
	if idx >= len(d.Script) {
		idx = len(d.Script) - 1
	}
	return d.Script[idx], nil
}

// Calls reports the number of IsSpeech invocations.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
