// Package segment implements the voice-activity segmentation state machine.
//
// The Segmenter consumes one fixed-size PCM16 frame at a time, classifies it
// via a [vad.Detector], and emits a complete utterance buffer when an
// utterance ends — either because enough trailing silence accumulated or
// because the hard duration cutoff was reached. Emission is exact-once: the
// internal buffer, counters and start time are reset atomically with each
// emission, so no frame is ever attributed to two segments.
//
// The minimum-speech threshold is deliberately not enforced here; it is a
// cheap downstream reject applied before transcription (see MinFrames), which
// keeps the state machine's emission semantics independent of that knob.
package segment

import (
	"fmt"
	"time"

	"github.com/voxhook/voxhook/pkg/vad"
)

// Config holds the segmentation thresholds.
type Config struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int

	// FrameMs is the frame duration in milliseconds.
	FrameMs int

	// MaxSegment is the hard utterance duration cutoff. A speech run longer
	// than this is force-emitted to bound latency and memory.
	MaxSegment time.Duration

	// MinSpeech is the minimum utterance duration worth transcribing.
	// Applied downstream via MinFrames, not inside the state machine.
	MinSpeech time.Duration

	// SpeechPad is the trailing non-speech audio kept at the end of an
	// utterance, rounded down to whole frames.
	SpeechPad time.Duration
}

// Segment is one complete utterance: consecutive speech frames plus up to
// PadFrames trailing non-speech frames, as raw PCM16 bytes. Immutable once
// emitted.
type Segment struct {
	// PCM is the concatenated frame data.
	PCM []byte

	// Frames is the number of frames in PCM.
	Frames int

	// Start is when the first speech frame of the utterance was observed.
	Start time.Time
}

// Duration returns the audio duration of the segment.
func (s Segment) Duration(cfg Config) time.Duration {
	return time.Duration(s.Frames*cfg.FrameMs) * time.Millisecond
}

// Option is a functional option for configuring a Segmenter.
type Option func(*Segmenter)

// WithClock replaces the time source, for deterministic cutoff tests.
func WithClock(now func() time.Time) Option {
	return func(s *Segmenter) { s.now = now }
}

// Segmenter is the utterance segmentation state machine. Not safe for
// concurrent use; the pipeline drives it from the single frame-consumer loop.
type Segmenter struct {
	cfg        Config
	detector   vad.Detector
	frameBytes int
	padFrames  int
	now        func() time.Time

	// state
	frames   [][]byte
	trailing int
	inSpeech bool
	start    time.Time
}

// New creates a Segmenter over the given detector. Config values must be
// positive; FrameMs and SampleRate must form a valid VAD frame.
func New(cfg Config, detector vad.Detector, opts ...Option) (*Segmenter, error) {
	if cfg.SampleRate <= 0 || cfg.FrameMs <= 0 {
		return nil, fmt.Errorf("segment: sample rate %d and frame duration %d ms must be positive",
			cfg.SampleRate, cfg.FrameMs)
	}
	if cfg.MaxSegment <= 0 {
		return nil, fmt.Errorf("segment: max segment duration must be positive, got %s", cfg.MaxSegment)
	}
	if detector == nil {
		return nil, fmt.Errorf("segment: detector must not be nil")
	}

	s := &Segmenter{
		cfg:        cfg,
		detector:   detector,
		frameBytes: cfg.SampleRate * cfg.FrameMs / 1000 * 2,
		padFrames:  int(cfg.SpeechPad.Milliseconds()) / cfg.FrameMs,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// FrameBytes returns the expected byte length of one frame.
func (s *Segmenter) FrameBytes() int { return s.frameBytes }

// PadFrames returns the number of trailing non-speech frames kept per
// utterance.
func (s *Segmenter) PadFrames() int { return s.padFrames }

// MinFrames returns the minimum frame count an utterance must reach before
// transcription is worthwhile. Enforced by the segment worker, not here.
func (s *Segmenter) MinFrames() int {
	if s.cfg.FrameMs == 0 {
		return 0
	}
	return int(s.cfg.MinSpeech.Milliseconds()) / s.cfg.FrameMs
}

// ProcessFrame advances the state machine by one frame. When the frame
// completes an utterance, the emitted Segment is returned; otherwise the
// first return is nil. The second return reports whether the segmenter is
// inside an utterance after processing the frame.
//
// A frame of the wrong byte length is a contract violation and returns an
// error without mutating state.
func (s *Segmenter) ProcessFrame(frame []byte) (*Segment, bool, error) {
	if len(frame) != s.frameBytes {
		return nil, s.inSpeech, fmt.Errorf("segment: frame of %d bytes, expected %d",
			len(frame), s.frameBytes)
	}

	isSpeech, err := s.detector.IsSpeech(frame, s.cfg.SampleRate)
	if err != nil {
		return nil, s.inSpeech, fmt.Errorf("segment: classify frame: %w", err)
	}

	if isSpeech {
		if !s.inSpeech {
			s.inSpeech = true
			s.start = s.now()
		}
		s.frames = append(s.frames, frame)
		s.trailing = 0
	} else if s.inSpeech {
		s.trailing++
		if s.trailing <= s.padFrames {
			s.frames = append(s.frames, frame)
		}
		if s.trailing >= s.padFrames {
			return s.finalize(), false, nil
		}
	}

	// Hard cutoff, independent of the per-frame silence logic.
	if s.inSpeech && s.now().Sub(s.start) > s.cfg.MaxSegment {
		return s.finalize(), false, nil
	}

	return nil, s.inSpeech, nil
}

// Reset discards any partially accumulated utterance. The pipeline calls
// this when listening is paused so a mid-utterance pause drops that
// utterance entirely.
func (s *Segmenter) Reset() {
	s.frames = nil
	s.trailing = 0
	s.inSpeech = false
	s.start = time.Time{}
}

// finalize concatenates the buffered frames into a Segment and resets all
// state in the same step, guaranteeing exact-once emission.
func (s *Segmenter) finalize() *Segment {
	total := 0
	for _, f := range s.frames {
		total += len(f)
	}
	pcm := make([]byte, 0, total)
	for _, f := range s.frames {
		pcm = append(pcm, f...)
	}
	seg := &Segment{
		PCM:    pcm,
		Frames: len(s.frames),
		Start:  s.start,
	}
	s.Reset()
	return seg
}
