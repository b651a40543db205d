// Package energy implements a pure-Go [vad.Detector] based on RMS energy
// levels, with no model download or CGO dependency.
//
// The aggressiveness level (0..3) follows the WebRTC VAD convention: higher
// values are stricter about what counts as speech, trading missed quiet
// speech for fewer false positives from background noise.
package energy

import (
	"fmt"

	"github.com/voxhook/voxhook/pkg/audio"
	"github.com/voxhook/voxhook/pkg/vad"
)

// Compile-time assertion that Detector satisfies vad.Detector.
var _ vad.Detector = (*Detector)(nil)

// rmsThresholds maps aggressiveness 0..3 to the RMS level (in native 16-bit
// PCM units, full scale 32767) at or above which a frame counts as speech.
// Level 0 triggers on near-whispers; level 3 requires clear speech energy.
var rmsThresholds = [4]float64{150, 250, 400, 600}

// Detector classifies frames by RMS energy. It is stateless per frame and
// therefore safe for concurrent use.
type Detector struct {
	threshold float64
}

// New creates a Detector with the given aggressiveness (0..3). Out-of-range
// values are a configuration error.
func New(aggressiveness int) (*Detector, error) {
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("energy: aggressiveness %d out of range 0..3", aggressiveness)
	}
	return &Detector{threshold: rmsThresholds[aggressiveness]}, nil
}

// IsSpeech reports whether the frame's RMS energy reaches the speech
// threshold. Frames of invalid length are rejected per the vad contract.
func (d *Detector) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := vad.ValidateFrame(frame, sampleRate); err != nil {
		return false, err
	}
	return audio.RMS(frame) >= d.threshold, nil
}
