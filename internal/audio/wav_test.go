package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i%200 - 100)
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}

	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("Sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("Expected error for empty samples")
	}
	if _, err := EncodeWAV([]int16{1, 2, 3}, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestDecodeWAVRejectsStereo(t *testing.T) {
	data, err := EncodeWAV([]int16{1, 2, 3, 4}, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// Patch NumChannels (offset 22) to 2.
	binary.LittleEndian.PutUint16(data[22:], 2)

	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("Expected error for stereo WAV")
	}
}

func TestDecodeWAVSkipsExtraChunks(t *testing.T) {
	samples := []int16{10, -10, 20, -20}
	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// Splice a LIST chunk between "fmt " and "data" the way external
	// recorders do.
	var buf bytes.Buffer
	buf.Write(data[:36]) // RIFF header + fmt chunk
	buf.WriteString("LIST")
	listPayload := []byte("INFOtest")
	binary.Write(&buf, binary.LittleEndian, uint32(len(listPayload)))
	buf.Write(listPayload)
	buf.Write(data[36:]) // data chunk onward

	spliced := buf.Bytes()
	binary.LittleEndian.PutUint32(spliced[4:], uint32(len(spliced)-8))

	decoded, rate, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV failed on file with LIST chunk: %v", err)
	}
	if rate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestDecodeWAVTruncated(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("RIFF")); err == nil {
		t.Error("Expected error for truncated data")
	}
}

func TestDecodeWAVRejectsOversizedDataChunk(t *testing.T) {
	data, err := EncodeWAV([]int16{1, 2, 3, 4}, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	// Forge the data chunk size (offset 40) to claim ~4 GB of samples the
	// file does not contain.
	binary.LittleEndian.PutUint32(data[40:], 0xFFFFFFF0)

	if _, _, err := DecodeWAV(data); err == nil {
		t.Error("Expected error for data chunk larger than the file")
	}
}
