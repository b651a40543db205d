// Package mock provides a scripted test double for the asr package's Engine
// interface.
//
// Use Engine to return canned transcripts and inspect the sample buffers the
// pipeline submitted:
//
//	e := &mock.Engine{Results: []asr.Result{{Text: "please open browser now"}}}
package mock

import (
	"context"
	"sync"

	"github.com/voxhook/voxhook/pkg/asr"
)

// Compile-time assertion that Engine satisfies asr.Engine.
var _ asr.Engine = (*Engine)(nil)

// TranscribeCall records a single invocation of Engine.Transcribe.
type TranscribeCall struct {
	// SampleCount is the number of float32 samples submitted.
	SampleCount int
}

// Engine is a mock implementation of asr.Engine. Successive Transcribe calls
// return successive entries of Results; after the script is exhausted the
// last entry repeats. An empty Results returns the zero Result.
type Engine struct {
	mu sync.Mutex

	// Results is the scripted sequence of transcription outcomes.
	Results []asr.Result

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Transcribe records the call and returns the next scripted Result.
func (e *Engine) Transcribe(_ context.Context, samples []float32) (asr.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := len(e.TranscribeCalls)
	e.TranscribeCalls = append(e.TranscribeCalls, TranscribeCall{SampleCount: len(samples)})

	if e.Err != nil {
		return asr.Result{}, e.Err
	}
	if len(e.Results) == 0 {
		return asr.Result{}, nil
	}
	if idx >= len(e.Results) {
		idx = len(e.Results) - 1
	}
	return e.Results[idx], nil
}

// Close records the call and returns CloseErr.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCallCount++
	return e.CloseErr
}

// Calls reports the number of Transcribe invocations. Thread-safe.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.TranscribeCalls)
}
