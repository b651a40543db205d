// Package audio defines the capture boundary of the voxhook pipeline and the
// PCM conversion helpers shared by its backends.
//
// A Source produces a stream of fixed-size mono PCM16 frames on a bounded
// queue. The malgo subpackage implements it on the system microphone; the
// mock subpackage provides a scripted replacement for tests.
package audio

import "context"

// DefaultQueueSize is the frame queue capacity used when Config.QueueSize is
// zero. At 20 ms frames this buffers a little over a second of audio.
const DefaultQueueSize = 64

// Config describes the capture format.
type Config struct {
	// SampleRate in Hz (e.g. 16000).
	SampleRate int

	// FrameMs is the duration of one frame in milliseconds.
	FrameMs int

	// Device selects the capture device by case-insensitive name substring.
	// Empty selects the system default.
	Device string

	// QueueSize bounds the frame queue between the capture callback and the
	// consumer. Zero means DefaultQueueSize.
	QueueSize int
}

// FrameSamples returns the number of samples in one frame.
func (c Config) FrameSamples() int {
	return c.SampleRate * c.FrameMs / 1000
}

// FrameBytes returns the byte length of one frame: mono 16-bit samples at
// SampleRate for FrameMs.
func (c Config) FrameBytes() int {
	return c.FrameSamples() * 2
}

// Source is a stream of capture frames. Implementations must never block
// their producer: when the consumer falls behind, frames are dropped and
// counted rather than queued unboundedly.
type Source interface {
	// Start begins capture. Frames arrive on the Frames channel until Close.
	Start(ctx context.Context) error

	// Frames returns the frame queue. Each frame is exactly
	// [Config.FrameBytes] long and owned by the receiver.
	Frames() <-chan []byte

	// Dropped reports how many frames were discarded because the queue was
	// full.
	Dropped() uint64

	// Close stops capture and releases the device. Safe to call more than
	// once.
	Close() error
}
