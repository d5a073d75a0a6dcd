package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saligia28/meetstream/internal/audio"
	"github.com/saligia28/meetstream/internal/capture"
	"github.com/saligia28/meetstream/internal/metrics"
	"github.com/saligia28/meetstream/internal/protocol"
	"github.com/saligia28/meetstream/internal/session"
	"github.com/saligia28/meetstream/internal/transcript"
)

// TranscriptStore persists the accumulated transcript when recording stops.
type TranscriptStore interface {
	SaveTranscript(ctx context.Context, meetingID string, segments []transcript.Segment) error
}

// Config describes how the recorder captures and streams audio.
type Config struct {
	// StreamBaseURL is the backend base URL; the realtime path and query
	// parameters are derived per session.
	StreamBaseURL string

	// TargetSampleRate is the rate the backend prefers. The effective rate is
	// the lower of this and the device rate.
	TargetSampleRate int

	// FrameSize is the capture frame length in samples.
	FrameSize int

	// Device selects the input device by name substring.
	Device string

	// Detection is the optional server-side detection tuning, sent once per
	// session after negotiation.
	Detection *protocol.DetectionConfig

	// QueueCapacity bounds the pre-ready outbound queue.
	QueueCapacity int

	// SaveTimeout bounds the transcript reconcile on stop. Zero selects 10s.
	SaveTimeout time.Duration
}

// Callbacks are the caller-supplied notification hooks. All optional.
type Callbacks struct {
	OnSegments func([]transcript.Segment)
	OnError    func(*session.Error)
	OnState    func(session.State)
	OnLevel    func(float64)
}

// Recorder drives the capture-to-transcription pipeline. At most one attempt
// is active at a time; a second Start while active is ignored. Capability
// failures (no audio support, denied microphone) are sticky and short-circuit
// every later Start.
type Recorder struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	callbacks Callbacks
	store     TranscriptStore

	dial       session.Dialer
	openSource func(ctx context.Context, cfg capture.Config, logger *slog.Logger) (capture.FrameSource, error)
	probe      func() error

	mu          sync.Mutex
	probed      bool
	denied      bool
	unsupported bool
	active      bool
	sess        *session.Session
	source      capture.FrameSource
	meter       *audio.LevelMeter
	pumpDone    chan struct{}
}

// New creates an idle recorder.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics, store TranscriptStore, callbacks Callbacks) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	return &Recorder{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		callbacks:  callbacks,
		store:      store,
		dial:       session.DialWebSocket,
		openSource: capture.Open,
		probe:      capture.Probe,
	}
}

// State returns the recorder-level lifecycle state. Sticky capability states
// take precedence over the session state.
func (r *Recorder) State() session.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.denied {
		return session.StateDenied
	}
	if r.unsupported {
		return session.StateUnsupported
	}
	if r.sess == nil {
		return session.StateIdle
	}
	return r.sess.State()
}

// Segments returns the accumulated transcript of the current or most recent
// session.
func (r *Recorder) Segments() []transcript.Segment {
	r.mu.Lock()
	sess := r.sess
	r.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Segments()
}

// Start begins a recording attempt for the given meeting. A Start while an
// attempt is active is ignored. The returned error is already delivered to
// the error callback where the session is responsible for that delivery.
func (r *Recorder) Start(ctx context.Context, meetingID string) error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		r.logger.Debug("Ignoring start while a session is active")
		return nil
	}
	if r.denied {
		r.mu.Unlock()
		return session.NewError(session.KindPermissionDenied, "microphone access denied", nil)
	}
	if r.unsupported {
		r.mu.Unlock()
		return session.NewError(session.KindUnsupported, "audio capture not supported on this system", nil)
	}
	if meetingID == "" {
		r.mu.Unlock()
		return session.NewError(session.KindNoScopeSelected, "no meeting selected", nil)
	}
	needProbe := !r.probed
	r.active = true
	r.mu.Unlock()

	if needProbe {
		if err := r.runProbe(); err != nil {
			r.mu.Lock()
			r.active = false
			r.mu.Unlock()
			return err
		}
	}

	source, err := r.openSource(ctx, capture.Config{
		SampleRate:       r.cfg.TargetSampleRate,
		FrameSize:        r.cfg.FrameSize,
		Device:           r.cfg.Device,
		EchoCancellation: true,
	}, r.logger)
	if err != nil {
		return r.failStart(err)
	}

	deviceRate := source.SampleRate()
	negotiated := r.cfg.TargetSampleRate
	if negotiated <= 0 || deviceRate < negotiated {
		negotiated = deviceRate
	}
	if r.cfg.TargetSampleRate > deviceRate {
		// Upsampling is not supported; the stream runs at the device rate.
		r.logger.Warn("Device rate below target, streaming at device rate",
			slog.Int("target_sample_rate", r.cfg.TargetSampleRate),
			slog.Int("device_sample_rate", deviceRate),
		)
	}

	meter := audio.NewLevelMeter(r.callbacks.OnLevel)
	meter.Reset()

	sess := session.New(session.Config{
		MeetingID:        meetingID,
		SampleRate:       negotiated,
		SourceSampleRate: deviceRate,
		Detection:        r.cfg.Detection,
		QueueCapacity:    r.cfg.QueueCapacity,
	}, r.logger, r.metrics, session.Callbacks{
		OnSegments: r.callbacks.OnSegments,
		OnState:    r.onSessionState,
		OnError:    r.onSessionError,
	})

	url, err := protocol.StreamURL(r.cfg.StreamBaseURL, meetingID, negotiated, deviceRate)
	if err != nil {
		source.Stop()
		return r.failStart(fmt.Errorf("invalid stream URL: %w", err))
	}

	pumpDone := make(chan struct{})

	r.mu.Lock()
	r.sess = sess
	r.source = source
	r.meter = meter
	r.pumpDone = pumpDone
	r.mu.Unlock()

	if err := sess.Start(ctx, r.dial, url); err != nil {
		// The session already delivered the error callback.
		r.releaseCapture()
		close(pumpDone)
		return err
	}

	r.logger.Info("Recording pipeline started",
		slog.String("meeting_id", meetingID),
		slog.Int("device_sample_rate", deviceRate),
		slog.Int("negotiated_sample_rate", negotiated),
	)

	go r.pump(source, meter, sess, deviceRate, negotiated, pumpDone)

	return nil
}

// runProbe performs the one-time capability check and records sticky failures.
func (r *Recorder) runProbe() error {
	err := r.probe()

	r.mu.Lock()
	r.probed = true
	var failure *session.Error
	switch {
	case err == nil:
	case errors.Is(err, capture.ErrPermissionDenied):
		r.denied = true
		failure = session.NewError(session.KindPermissionDenied, "microphone access denied", err)
	case errors.Is(err, capture.ErrUnsupported):
		r.unsupported = true
		failure = session.NewError(session.KindUnsupported, "audio capture not supported on this system", err)
	default:
		failure = session.NewError(session.KindCaptureFailure, "audio capture check failed", err)
	}
	denied, unsupported := r.denied, r.unsupported
	r.mu.Unlock()

	if failure == nil {
		return nil
	}

	if denied {
		r.notifyState(session.StateDenied)
	} else if unsupported {
		r.notifyState(session.StateUnsupported)
	}
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(failure)
	}
	return failure
}

// failStart classifies a capture acquisition failure, delivers it, and
// returns the recorder to idle. Permission and capability failures become
// sticky.
func (r *Recorder) failStart(err error) error {
	r.mu.Lock()
	var failure *session.Error
	switch {
	case errors.Is(err, capture.ErrPermissionDenied):
		r.denied = true
		failure = session.NewError(session.KindPermissionDenied, "microphone access denied", err)
	case errors.Is(err, capture.ErrUnsupported):
		r.unsupported = true
		failure = session.NewError(session.KindUnsupported, "audio capture not supported on this system", err)
	default:
		failure = session.NewError(session.KindCaptureFailure, "failed to start audio capture", err)
	}
	denied, unsupported := r.denied, r.unsupported
	r.active = false
	r.mu.Unlock()

	r.logger.Error("Capture start failed",
		slog.String("kind", failure.Kind.String()),
		slog.String("error", err.Error()),
	)

	switch {
	case denied:
		r.notifyState(session.StateDenied)
	case unsupported:
		r.notifyState(session.StateUnsupported)
	default:
		r.notifyState(session.StateIdle)
	}
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(failure)
	}
	return failure
}

// pump moves frames from the capture source through the processing pipeline
// until the source closes its channel.
func (r *Recorder) pump(source capture.FrameSource, meter *audio.LevelMeter, sess *session.Session, deviceRate, negotiated int, done chan struct{}) {
	defer close(done)

	for frame := range source.Frames() {
		if r.metrics != nil {
			r.metrics.FramesCaptured.Inc()
		}
		r.processFrame(frame, meter, sess, deviceRate, negotiated)
	}
}

// processFrame runs the per-frame pipeline. A fault in any stage drops the
// frame, never the session.
func (r *Recorder) processFrame(frame []float32, meter *audio.LevelMeter, sess *session.Session, deviceRate, negotiated int) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.metrics != nil {
				r.metrics.FramesDropped.Inc()
			}
			r.logger.Error("Frame processing failed, dropping frame",
				slog.String("kind", session.KindProcessingFailure.String()),
				slog.Any("panic", rec),
				slog.Int("frame_samples", len(frame)),
			)
		}
	}()

	if len(frame) == 0 {
		return
	}

	meter.Observe(frame)
	if r.metrics != nil {
		r.metrics.AudioLevel.Set(meter.Value())
	}

	resampled := audio.Resample(frame, deviceRate, negotiated)
	sess.HandleChunk(audio.EncodePCM16(resampled))
}

// Stop tears down the active attempt: capture source first so the pipeline
// drains, then the session, then the transcript reconcile. Idempotent.
func (r *Recorder) Stop() {
	r.mu.Lock()
	sess := r.sess
	source := r.source
	meter := r.meter
	pumpDone := r.pumpDone
	r.sess = nil
	r.source = nil
	r.meter = nil
	r.pumpDone = nil
	r.active = false
	r.mu.Unlock()

	if sess == nil && source == nil {
		return
	}

	if source != nil {
		source.Stop()
	}
	if pumpDone != nil {
		<-pumpDone
	}
	if meter != nil {
		meter.Reset()
	}

	var segments []transcript.Segment
	meetingID := ""
	if sess != nil {
		segments = sess.Segments()
		meetingID = sess.MeetingID()
		sess.Stop()
	}

	r.reconcile(meetingID, segments)
}

// reconcile pushes the accumulated transcript to the persistence store.
// Failures are logged, not surfaced: the session itself ended cleanly.
func (r *Recorder) reconcile(meetingID string, segments []transcript.Segment) {
	if r.store == nil || len(segments) == 0 || meetingID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SaveTimeout)
	defer cancel()

	if err := r.store.SaveTranscript(ctx, meetingID, segments); err != nil {
		r.logger.Warn("Failed to persist transcript",
			slog.String("meeting_id", meetingID),
			slog.Int("segments", len(segments)),
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.Info("Transcript persisted",
		slog.String("meeting_id", meetingID),
		slog.Int("segments", len(segments)),
	)
}

// releaseCapture stops the capture side after a session-driven teardown. The
// session reference stays so state and segments remain queryable until the
// caller stops explicitly.
func (r *Recorder) releaseCapture() {
	r.mu.Lock()
	source := r.source
	meter := r.meter
	r.source = nil
	r.meter = nil
	r.active = false
	r.mu.Unlock()

	if source != nil {
		source.Stop()
	}
	if meter != nil {
		meter.Reset()
	}
}

// onSessionState forwards session state changes and releases the capture
// device when the session ends on its own.
func (r *Recorder) onSessionState(state session.State) {
	if state == session.StateIdle || state == session.StateError {
		r.mu.Lock()
		capturing := r.source != nil
		r.mu.Unlock()
		if capturing {
			go r.releaseCapture()
		}
	}
	r.notifyState(state)
}

func (r *Recorder) onSessionError(err *session.Error) {
	if r.callbacks.OnError != nil {
		r.callbacks.OnError(err)
	}
}

func (r *Recorder) notifyState(state session.State) {
	if r.callbacks.OnState != nil {
		r.callbacks.OnState(state)
	}
}
