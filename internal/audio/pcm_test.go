package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestEncodePCM16Length(t *testing.T) {
	frame := make([]float32, 4096)

	out := EncodePCM16(frame)

	if len(out) != 8192 {
		t.Errorf("Expected 8192 bytes for 4096 samples, got %d", len(out))
	}
}

func TestEncodePCM16Rails(t *testing.T) {
	tests := []struct {
		name   string
		sample float32
		want   int16
	}{
		{"positive rail", 1.0, 32767},
		{"negative rail", -1.0, -32768},
		{"clamped above", 1.5, 32767},
		{"clamped below", -2.0, -32768},
		{"zero", 0, 0},
		{"half scale", 0.5, 16384}, // round(0.5 * 32767)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := EncodePCM16([]float32{tt.sample})
			got := int16(binary.LittleEndian.Uint16(out))
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestEncodePCM16LittleEndian(t *testing.T) {
	// 0x0102 = 258; 258/32767 with little-endian layout [0x02, 0x01].
	out := EncodePCM16([]float32{258.0 / 32767.0})

	if out[0] != 0x02 || out[1] != 0x01 {
		t.Errorf("Expected little-endian bytes [0x02 0x01], got [0x%02x 0x%02x]", out[0], out[1])
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	frame := make([]float32, 1000)
	for i := range frame {
		frame[i] = float32(math.Sin(float64(i) / 7))
	}

	decoded, err := DecodePCM16(EncodePCM16(frame))
	if err != nil {
		t.Fatalf("DecodePCM16 failed: %v", err)
	}

	if len(decoded) != len(frame) {
		t.Fatalf("Expected %d samples, got %d", len(frame), len(decoded))
	}

	maxErr := 1.0 / 32767.0
	for i := range frame {
		if math.Abs(float64(decoded[i]-frame[i])) > maxErr {
			t.Errorf("Sample %d outside quantization error: original %f, decoded %f", i, frame[i], decoded[i])
		}
	}
}

func TestDecodePCM16OddLength(t *testing.T) {
	if _, err := DecodePCM16([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("Expected error for odd-length PCM data")
	}
}
