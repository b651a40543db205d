package audio

import (
	"encoding/binary"
	"math"
)

// PCM16ToFloat32 converts 16-bit signed little-endian PCM audio to float32
// samples normalised to the range [-1.0, 1.0] (division by 32768, clamped).
// The input length must be even (two bytes per sample); any trailing odd byte
// is silently ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		f := float32(sample) / 32768.0
		if f > 1.0 {
			f = 1.0
		} else if f < -1.0 {
			f = -1.0
		}
		samples[i] = f
	}
	return samples
}

// Float32ToPCM16 converts normalised float32 samples to 16-bit signed
// little-endian PCM, clamping out-of-range values. Used by capture backends
// that receive float frames and by test fixtures that synthesise audio.
func Float32ToPCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768.0)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

// RMS returns the root-mean-square energy of 16-bit signed little-endian PCM
// audio, in native 16-bit units (0 to 32767). Used by the energy VAD and by
// capture diagnostics.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
