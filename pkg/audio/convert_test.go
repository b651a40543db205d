package audio

import (
	"math"
	"testing"
)

func TestPCM16ToFloat32(t *testing.T) {
	t.Parallel()

	pcm := Float32ToPCM16([]float32{0, 0.5, -0.5, 1.0, -1.0})
	got := PCM16ToFloat32(pcm)

	want := []float32{0, 0.5, -0.5, 1.0 - 1.0/32768.0, -1.0}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1.0/32768.0 {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestPCM16ToFloat32_OddTrailingByte(t *testing.T) {
	t.Parallel()

	got := PCM16ToFloat32([]byte{0x00, 0x40, 0xff})
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
}

func TestFloat32ToPCM16_Clamps(t *testing.T) {
	t.Parallel()

	pcm := Float32ToPCM16([]float32{2.0, -2.0})
	got := PCM16ToFloat32(pcm)
	if got[0] < 0.99 {
		t.Errorf("positive overflow not clamped to full scale: %f", got[0])
	}
	if got[1] > -0.99 {
		t.Errorf("negative overflow not clamped to full scale: %f", got[1])
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	if got := RMS(nil); got != 0 {
		t.Errorf("RMS of empty input: got %f, want 0", got)
	}

	// A constant-amplitude signal has RMS equal to that amplitude.
	samples := make([]float32, 160)
	for i := range samples {
		samples[i] = 0.25
	}
	got := RMS(Float32ToPCM16(samples))
	want := 0.25 * 32768.0
	if math.Abs(got-want) > 1.0 {
		t.Errorf("RMS of constant signal: got %f, want %f", got, want)
	}
}

func TestConfigFrameMath(t *testing.T) {
	t.Parallel()

	cfg := Config{SampleRate: 16000, FrameMs: 20}
	if got := cfg.FrameSamples(); got != 320 {
		t.Errorf("FrameSamples: got %d, want 320", got)
	}
	if got := cfg.FrameBytes(); got != 640 {
		t.Errorf("FrameBytes: got %d, want 640", got)
	}
}
