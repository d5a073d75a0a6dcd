package capture

import (
	"context"
	"errors"
	"fmt"
)

// DefaultFrameSize is the number of samples delivered per frame.
const DefaultFrameSize = 4096

// Capture failure classes. Callers map these onto their own error taxonomy.
var (
	// ErrUnsupported means no audio host or input device exists on this
	// system. The condition is permanent for the process lifetime.
	ErrUnsupported = errors.New("audio capture not supported on this system")

	// ErrPermissionDenied means the input device exists but access to it was
	// refused.
	ErrPermissionDenied = errors.New("microphone access denied")
)

// Config describes one capture attempt.
type Config struct {
	// SampleRate is the requested device rate in Hz. Zero lets the device
	// default stand.
	SampleRate int

	// FrameSize is the number of samples per delivered frame. Zero selects
	// DefaultFrameSize.
	FrameSize int

	// Device selects an input by name substring. Empty selects the system
	// default input.
	Device string

	// EchoCancellation, NoiseSuppression and AutoGain record the processing
	// intent for the capture chain. PortAudio exposes no portable switches
	// for these, so they are advisory and surfaced through Describe.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool
}

func (c Config) frameSize() int {
	if c.FrameSize <= 0 {
		return DefaultFrameSize
	}
	return c.FrameSize
}

// Describe returns a short human-readable summary of the capture intent.
func (c Config) Describe() string {
	device := c.Device
	if device == "" {
		device = "default"
	}
	return fmt.Sprintf("device=%s rate=%d frame=%d echo_cancel=%t noise_suppress=%t auto_gain=%t",
		device, c.SampleRate, c.frameSize(), c.EchoCancellation, c.NoiseSuppression, c.AutoGain)
}

// FrameSource produces mono float32 frames from an audio input. A source is
// single-use: Start at most once, then Stop. The frames channel is closed
// when capture ends, whether by Stop or by a device fault.
type FrameSource interface {
	// Start begins capture. The context bounds device startup only, not the
	// capture lifetime.
	Start(ctx context.Context) error

	// Stop ends capture and releases the device. Safe to call more than once
	// and before Start.
	Stop()

	// Frames returns the delivery channel. Every frame is an owned copy,
	// never a view into the driver buffer.
	Frames() <-chan []float32

	// SampleRate returns the actual device rate in Hz, known after Start.
	SampleRate() int
}

// Device describes one audio input.
type Device struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate int
	IsDefault         bool
}
