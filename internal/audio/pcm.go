package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodePCM16 converts a float frame in [-1, 1] to little-endian signed
// 16-bit PCM. Samples are clamped before scaling; negative values scale by
// 32768 and non-negative by 32767 so both rails map onto the int16 range.
// The output is always exactly 2x the input length in bytes.
func EncodePCM16(frame []float32) []byte {
	out := make([]byte, len(frame)*2)

	for i, sample := range frame {
		s := float64(sample)
		if s < -1 {
			s = -1
		} else if s > 1 {
			s = 1
		}

		var v int16
		if s < 0 {
			v = int16(math.Round(s * 32768))
		} else {
			v = int16(math.Round(s * 32767))
		}

		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}

	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM back to float samples
// in [-1, 1]. It is the inverse of EncodePCM16 within one quantization step
// and exists for the WAV import path and tests.
func DecodePCM16(data []byte) ([]float32, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("pcm data length must be even, got %d bytes", len(data))
	}

	out := make([]float32, len(data)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}

	return out, nil
}

// SamplesToPCM16 packs int16 samples as little-endian bytes. Used by the WAV
// import path, which already carries quantized samples.
func SamplesToPCM16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
