package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// frameChannelDepth bounds in-flight frames between the audio thread and the
// consumer. At 4096 samples per frame this is roughly two seconds of audio.
const frameChannelDepth = 8

// Probe checks whether audio capture is possible at all: the PortAudio host
// must initialize and a default input device must exist. It classifies the
// failure so callers can distinguish a permanently unusable system from a
// transient fault.
func Probe() error {
	if err := portaudio.Initialize(); err != nil {
		return classify(err)
	}
	defer portaudio.Terminate()

	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("%w: no default input device: %v", ErrUnsupported, err)
	}
	if dev.MaxInputChannels < 1 {
		return fmt.Errorf("%w: default device has no input channels", ErrUnsupported)
	}

	return nil
}

// Devices enumerates the available audio inputs.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, classify(err)
	}
	defer portaudio.Terminate()

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	defaultDev, _ := portaudio.DefaultInputDevice()

	var devices []Device
	for _, d := range all {
		if d.MaxInputChannels < 1 {
			continue
		}
		devices = append(devices, Device{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: int(d.DefaultSampleRate),
			IsDefault:         defaultDev != nil && d.Name == defaultDev.Name,
		})
	}

	return devices, nil
}

// Open starts a capture source for the given configuration. The callback
// strategy is preferred; when the device rejects a callback stream for a
// reason other than a capability failure, the blocking-poll fallback is
// tried before giving up.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (FrameSource, error) {
	src := NewCallbackSource(cfg, logger)
	err := src.Start(ctx)
	if err == nil {
		return src, nil
	}
	if isCapabilityError(err) {
		return nil, err
	}

	logger.Warn("Callback capture unavailable, falling back to polling",
		slog.String("error", err.Error()),
	)

	fallback := NewPollSource(cfg, logger)
	if err := fallback.Start(ctx); err != nil {
		return nil, err
	}
	return fallback, nil
}

func isCapabilityError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), ErrUnsupported.Error()) ||
		strings.Contains(err.Error(), ErrPermissionDenied.Error()))
}

// classify maps a raw PortAudio error onto the capture failure classes.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access denied"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "host") || strings.Contains(msg, "no device") ||
		strings.Contains(msg, "initialize"):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	default:
		return fmt.Errorf("audio capture failed: %w", err)
	}
}

// resolveInput finds the requested input device. PortAudio must already be
// initialized.
func resolveInput(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", ErrUnsupported, err)
		}
		return dev, nil
	}

	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}
	for _, d := range all {
		if d.MaxInputChannels >= 1 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no input device matching %q", ErrUnsupported, name)
}

// streamRate picks the device rate: the configured rate when set, the device
// default otherwise.
func streamRate(cfg Config, dev *portaudio.DeviceInfo) int {
	if cfg.SampleRate > 0 {
		return cfg.SampleRate
	}
	return int(dev.DefaultSampleRate)
}

// CallbackSource captures audio with a PortAudio callback stream. Each
// invocation copies the driver buffer and hands the frame off without
// blocking the audio thread; frames that cannot be delivered in time are
// dropped and counted.
type CallbackSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	rate    int
	started bool
	stopped bool
	dropped uint64

	frames chan []float32
}

// NewCallbackSource creates an idle callback source.
func NewCallbackSource(cfg Config, logger *slog.Logger) *CallbackSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackSource{
		cfg:    cfg,
		logger: logger,
		frames: make(chan []float32, frameChannelDepth),
	}
}

// Start opens the device and begins callback delivery.
func (s *CallbackSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return fmt.Errorf("capture source already used")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return classify(err)
	}

	dev, err := resolveInput(s.cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	rate := streamRate(s.cfg, dev)
	frameSize := s.cfg.frameSize()

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = frameSize

	stream, err := portaudio.OpenStream(params, s.onAudio)
	if err != nil {
		portaudio.Terminate()
		return classify(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return classify(err)
	}

	s.stream = stream
	s.rate = rate
	s.started = true

	s.logger.Info("Capture started",
		slog.String("strategy", "callback"),
		slog.String("device", dev.Name),
		slog.Int("sample_rate", rate),
		slog.Int("frame_size", frameSize),
	)

	return nil
}

// onAudio runs on the PortAudio audio thread. It must never block.
func (s *CallbackSource) onAudio(in []float32) {
	frame := make([]float32, len(in))
	copy(frame, in)

	select {
	case s.frames <- frame:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Stop ends capture, closes the frame channel, and releases the device.
func (s *CallbackSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	stream := s.stream
	s.stream = nil
	wasStarted := s.started
	dropped := s.dropped
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if wasStarted {
		portaudio.Terminate()
	}

	close(s.frames)

	if dropped > 0 {
		s.logger.Warn("Capture frames dropped under backpressure", slog.Uint64("dropped", dropped))
	}
}

// Frames returns the delivery channel.
func (s *CallbackSource) Frames() <-chan []float32 { return s.frames }

// SampleRate returns the device rate negotiated at Start.
func (s *CallbackSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Dropped returns the number of frames discarded under backpressure.
func (s *CallbackSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// PollSource captures audio with a blocking-read PortAudio stream serviced by
// a dedicated goroutine. Used when the device rejects callback streams.
type PollSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	rate    int
	started bool
	stopped bool

	frames chan []float32
	done   chan struct{}
}

// NewPollSource creates an idle polling source.
func NewPollSource(cfg Config, logger *slog.Logger) *PollSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PollSource{
		cfg:    cfg,
		logger: logger,
		frames: make(chan []float32, frameChannelDepth),
		done:   make(chan struct{}),
	}
}

// Start opens the device and spawns the read loop.
func (s *PollSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return fmt.Errorf("capture source already used")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return classify(err)
	}

	dev, err := resolveInput(s.cfg.Device)
	if err != nil {
		portaudio.Terminate()
		return err
	}

	rate := streamRate(s.cfg, dev)
	frameSize := s.cfg.frameSize()
	buf := make([]float32, frameSize)

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(rate)
	params.FramesPerBuffer = frameSize

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return classify(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return classify(err)
	}

	s.stream = stream
	s.rate = rate
	s.started = true

	s.logger.Info("Capture started",
		slog.String("strategy", "poll"),
		slog.String("device", dev.Name),
		slog.Int("sample_rate", rate),
		slog.Int("frame_size", frameSize),
	)

	go s.readLoop(stream, buf)

	return nil
}

func (s *PollSource) readLoop(stream *portaudio.Stream, buf []float32) {
	defer close(s.frames)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Error("Capture read failed", slog.String("error", err.Error()))
			}
			return
		}

		frame := make([]float32, len(buf))
		copy(frame, buf)

		select {
		case s.frames <- frame:
		case <-s.done:
			return
		}
	}
}

// Stop ends capture and releases the device.
func (s *PollSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	stream := s.stream
	s.stream = nil
	wasStarted := s.started
	s.mu.Unlock()

	close(s.done)

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	if wasStarted {
		portaudio.Terminate()
	} else {
		// The read loop owns the channel close once running.
		close(s.frames)
	}
}

// Frames returns the delivery channel.
func (s *PollSource) Frames() <-chan []float32 { return s.frames }

// SampleRate returns the device rate negotiated at Start.
func (s *PollSource) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}
