package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// EncodeWAV wraps mono PCM-16 samples in a WAV container. The batch import
// command uses this to normalize captured or converted audio before upload.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.WriteString("data")
	if err := binary.Write(buf, binary.LittleEndian, dataSize); err != nil {
		return nil, fmt.Errorf("failed to write data chunk header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV extracts mono PCM-16 samples and the sample rate from a WAV file.
// Extra chunks between "fmt " and "data" (LIST, fact) are skipped, since
// files produced by external recorders commonly carry them.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < 44 {
		return nil, 0, fmt.Errorf("WAV data too short: need at least 44 bytes, got %d", len(data))
	}

	r := bytes.NewReader(data)
	var header wavHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE file")
	}
	if string(header.Subchunk1ID[:]) != "fmt " {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("unsupported audio format %d (want PCM)", header.AudioFormat)
	}
	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d (want mono)", header.NumChannels)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d (want 16)", header.BitsPerSample)
	}

	// Skip any non-audio chunks after "fmt " that weren't part of the
	// canonical 16-byte PCM layout.
	if header.Subchunk1Size > 16 {
		if _, err := r.Seek(int64(header.Subchunk1Size-16), 1); err != nil {
			return nil, 0, fmt.Errorf("failed to skip fmt extension: %w", err)
		}
	}

	for {
		var chunkID [4]byte
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			return nil, 0, fmt.Errorf("data chunk not found: %w", err)
		}
		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, 0, fmt.Errorf("failed to read chunk size: %w", err)
		}

		if string(chunkID[:]) == "data" {
			// The declared size is untrusted; cap it against the bytes
			// actually present so a forged header cannot demand a huge
			// allocation.
			if int64(chunkSize) > int64(r.Len()) {
				return nil, 0, fmt.Errorf("data chunk declares %d bytes but only %d remain", chunkSize, r.Len())
			}
			numSamples := int(chunkSize) / 2
			samples := make([]int16, numSamples)
			if err := binary.Read(r, binary.LittleEndian, samples); err != nil {
				return nil, 0, fmt.Errorf("failed to read audio data: %w", err)
			}
			return samples, int(header.SampleRate), nil
		}

		if _, err := r.Seek(int64(chunkSize), 1); err != nil {
			return nil, 0, fmt.Errorf("failed to skip chunk %q: %w", chunkID[:], err)
		}
	}
}
