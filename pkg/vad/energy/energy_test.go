package energy

import (
	"testing"

	"github.com/voxhook/voxhook/pkg/audio"
)

// frame builds a 20 ms 16 kHz mono frame of constant amplitude.
func frame(amplitude float32) []byte {
	samples := make([]float32, 320)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.Float32ToPCM16(samples)
}

func TestNew_AggressivenessRange(t *testing.T) {
	t.Parallel()

	for _, level := range []int{0, 1, 2, 3} {
		if _, err := New(level); err != nil {
			t.Errorf("New(%d): unexpected error: %v", level, err)
		}
	}
	for _, level := range []int{-1, 4} {
		if _, err := New(level); err == nil {
			t.Errorf("New(%d): expected error for out-of-range aggressiveness", level)
		}
	}
}

func TestIsSpeech_EnergyThreshold(t *testing.T) {
	t.Parallel()

	d, err := New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	speech, err := d.IsSpeech(frame(0.5), 16000)
	if err != nil {
		t.Fatalf("IsSpeech(loud): %v", err)
	}
	if !speech {
		t.Error("loud frame classified as silence")
	}

	speech, err = d.IsSpeech(frame(0.001), 16000)
	if err != nil {
		t.Fatalf("IsSpeech(quiet): %v", err)
	}
	if speech {
		t.Error("near-silent frame classified as speech")
	}
}

func TestIsSpeech_AggressivenessOrdering(t *testing.T) {
	t.Parallel()

	// A moderately quiet frame should pass a lax detector and fail a strict one.
	quiet := frame(0.008) // RMS ≈ 262

	lax, _ := New(0)
	strict, _ := New(3)

	if speech, _ := lax.IsSpeech(quiet, 16000); !speech {
		t.Error("aggressiveness 0 rejected a quiet speech frame")
	}
	if speech, _ := strict.IsSpeech(quiet, 16000); speech {
		t.Error("aggressiveness 3 accepted a quiet frame")
	}
}

func TestIsSpeech_RejectsInvalidFrames(t *testing.T) {
	t.Parallel()

	d, _ := New(2)

	tests := []struct {
		name       string
		frame      []byte
		sampleRate int
	}{
		{"wrong duration", make([]byte, 100), 16000},
		{"odd byte count", make([]byte, 641), 16000},
		{"unsupported rate", make([]byte, 640), 44100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := d.IsSpeech(tc.frame, tc.sampleRate); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestIsSpeech_AcceptedDurations(t *testing.T) {
	t.Parallel()

	d, _ := New(2)
	for _, ms := range []int{10, 20, 30} {
		f := make([]byte, 16000*ms/1000*2)
		if _, err := d.IsSpeech(f, 16000); err != nil {
			t.Errorf("%d ms frame at 16 kHz rejected: %v", ms, err)
		}
	}
}
