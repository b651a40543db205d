// Package vad defines the frame-level voice activity detection boundary of
// the voxhook pipeline.
//
// A Detector classifies one fixed-duration PCM16 frame at a time as speech or
// non-speech. Detection is synchronous by design: IsSpeech returns
// immediately, making it suitable for the low-latency segmentation loop that
// gates transcription input.
//
// Frame durations follow the classical WebRTC VAD contract: 10, 20 or 30 ms
// at 8, 16, 32 or 48 kHz. A frame of any other length is a caller error, not
// a runtime expectation — implementations must reject it explicitly rather
// than truncate or pad.
package vad

import (
	"fmt"
	"slices"
)

// validSampleRates are the sample rates a Detector accepts.
var validSampleRates = []int{8000, 16000, 32000, 48000}

// validFrameMs are the frame durations a Detector accepts.
var validFrameMs = []int{10, 20, 30}

// Detector classifies single audio frames as speech or silence.
//
// Implementations may keep internal smoothing state; a single Detector must
// not be shared across goroutines unless documented otherwise.
type Detector interface {
	// IsSpeech reports whether the frame contains speech. frame must be
	// little-endian signed 16-bit mono PCM of a valid duration at sampleRate;
	// a frame of the wrong length returns an error.
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}

// ValidateFrame checks that frame is a well-formed PCM16 mono frame of an
// accepted duration at sampleRate. Implementations call this before
// classifying.
func ValidateFrame(frame []byte, sampleRate int) error {
	if !slices.Contains(validSampleRates, sampleRate) {
		return fmt.Errorf("vad: unsupported sample rate %d Hz", sampleRate)
	}
	if len(frame)%2 != 0 {
		return fmt.Errorf("vad: frame length %d is not 16-bit aligned", len(frame))
	}
	samples := len(frame) / 2
	for _, ms := range validFrameMs {
		if samples == sampleRate*ms/1000 {
			return nil
		}
	}
	return fmt.Errorf("vad: frame of %d samples is not 10, 20 or 30 ms at %d Hz",
		samples, sampleRate)
}
