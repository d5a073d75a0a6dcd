package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saligia28/meetstream/internal/capture"
	"github.com/saligia28/meetstream/internal/session"
	"github.com/saligia28/meetstream/internal/transcript"
)

// stubSource feeds test-provided frames through the FrameSource contract.
type stubSource struct {
	rate   int
	frames chan []float32

	mu      sync.Mutex
	stopped bool
}

func newStubSource(rate int) *stubSource {
	return &stubSource{rate: rate, frames: make(chan []float32, 16)}
}

func (s *stubSource) Start(ctx context.Context) error { return nil }

func (s *stubSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.frames)
}

func (s *stubSource) Frames() <-chan []float32 { return s.frames }
func (s *stubSource) SampleRate() int          { return s.rate }

func (s *stubSource) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// scriptTransport replays queued inbound messages and records outbound
// traffic.
type scriptTransport struct {
	inbound chan []byte

	mu     sync.Mutex
	binary [][]byte
	closed bool

	binaryCh chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

func newScriptTransport() *scriptTransport {
	return &scriptTransport{
		inbound:  make(chan []byte, 16),
		binaryCh: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

func (t *scriptTransport) push(msg string) { t.inbound <- []byte(msg) }

func (t *scriptTransport) WriteBinary(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	t.mu.Lock()
	t.binary = append(t.binary, buf)
	t.mu.Unlock()
	select {
	case t.binaryCh <- buf:
	default:
	}
	return nil
}

func (t *scriptTransport) WriteJSON(v interface{}) error { return nil }

func (t *scriptTransport) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-t.inbound:
		return websocket.TextMessage, msg, nil
	case <-t.done:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (t *scriptTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.doneOnce.Do(func() { close(t.done) })
	return nil
}

// fakeStore records the reconcile call.
type fakeStore struct {
	mu        sync.Mutex
	meetingID string
	segments  []transcript.Segment
	err       error
}

func (s *fakeStore) SaveTranscript(ctx context.Context, meetingID string, segments []transcript.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetingID = meetingID
	s.segments = segments
	return s.err
}

type harness struct {
	recorder  *Recorder
	source    *stubSource
	transport *scriptTransport
	states    chan session.State
	errs      chan *session.Error
	dialedURL string
}

func newHarness(t *testing.T, cfg Config, store TranscriptStore) *harness {
	t.Helper()

	h := &harness{
		source:    newStubSource(48000),
		transport: newScriptTransport(),
		states:    make(chan session.State, 32),
		errs:      make(chan *session.Error, 8),
	}

	h.recorder = New(cfg, nil, nil, store, Callbacks{
		OnState: func(s session.State) { h.states <- s },
		OnError: func(e *session.Error) { h.errs <- e },
	})
	h.recorder.probe = func() error { return nil }
	h.recorder.openSource = func(ctx context.Context, c capture.Config, _ *slog.Logger) (capture.FrameSource, error) {
		return h.source, nil
	}
	h.recorder.dial = func(ctx context.Context, url string) (session.Transport, error) {
		h.dialedURL = url
		return h.transport, nil
	}
	return h
}

func sessionStartedJSON(meetingID string, rate int) string {
	data, _ := json.Marshal(map[string]interface{}{
		"type":        "session_started",
		"meeting_id":  meetingID,
		"sample_rate": rate,
	})
	return string(data)
}

func waitForState(t *testing.T, states <-chan session.State, want session.State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-states:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for state %s", want)
		}
	}
}

func TestStartStreamsResampledFrames(t *testing.T) {
	h := newHarness(t, Config{
		StreamBaseURL:    "http://backend:8000",
		TargetSampleRate: 16000,
		FrameSize:        4096,
	}, nil)

	if err := h.recorder.Start(context.Background(), "m1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.recorder.Stop()

	if !strings.Contains(h.dialedURL, "sample_rate=16000") ||
		!strings.Contains(h.dialedURL, "source_sample_rate=48000") {
		t.Errorf("Unexpected stream URL: %s", h.dialedURL)
	}

	h.transport.push(sessionStartedJSON("m1", 16000))
	waitForState(t, h.states, session.StateRecording)

	// One 4800-sample frame at 48 kHz decimates 3:1 to 1600 samples,
	// 3200 bytes of PCM.
	h.source.frames <- make([]float32, 4800)

	select {
	case chunk := <-h.transport.binaryCh:
		if len(chunk) != 3200 {
			t.Errorf("Expected 3200-byte chunk, got %d", len(chunk))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for transmitted chunk")
	}
}

func TestStartRequiresMeeting(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)

	err := h.recorder.Start(context.Background(), "")
	if err == nil {
		t.Fatal("Expected error for missing meeting")
	}
	var sessErr *session.Error
	if !errors.As(err, &sessErr) || sessErr.Kind != session.KindNoScopeSelected {
		t.Errorf("Expected NoScopeSelected, got %v", err)
	}
}

func TestUnsupportedIsSticky(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)

	probeCalls := 0
	h.recorder.probe = func() error {
		probeCalls++
		return fmt.Errorf("%w: no host API", capture.ErrUnsupported)
	}

	err := h.recorder.Start(context.Background(), "m1")
	var sessErr *session.Error
	if !errors.As(err, &sessErr) || sessErr.Kind != session.KindUnsupported {
		t.Fatalf("Expected Unsupported, got %v", err)
	}
	waitForState(t, h.states, session.StateUnsupported)

	if len(h.errs) != 1 {
		t.Errorf("Expected 1 error callback, got %d", len(h.errs))
	}

	// Second start short-circuits without re-probing.
	err = h.recorder.Start(context.Background(), "m1")
	if !errors.As(err, &sessErr) || sessErr.Kind != session.KindUnsupported {
		t.Errorf("Expected sticky Unsupported, got %v", err)
	}
	if probeCalls != 1 {
		t.Errorf("Expected single probe, got %d", probeCalls)
	}
	if h.recorder.State() != session.StateUnsupported {
		t.Errorf("Expected unsupported state, got %s", h.recorder.State())
	}
}

func TestPermissionDeniedIsSticky(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)
	h.recorder.openSource = failingOpen(fmt.Errorf("%w: device refused", capture.ErrPermissionDenied))

	err := h.recorder.Start(context.Background(), "m1")
	var sessErr *session.Error
	if !errors.As(err, &sessErr) || sessErr.Kind != session.KindPermissionDenied {
		t.Fatalf("Expected PermissionDenied, got %v", err)
	}
	if h.recorder.State() != session.StateDenied {
		t.Errorf("Expected denied state, got %s", h.recorder.State())
	}

	err = h.recorder.Start(context.Background(), "m1")
	if !errors.As(err, &sessErr) || sessErr.Kind != session.KindPermissionDenied {
		t.Errorf("Expected sticky PermissionDenied, got %v", err)
	}
}

func TestCaptureFailureIsNotSticky(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)

	openCalls := 0
	h.recorder.openSource = func(ctx context.Context, c capture.Config, _ *slog.Logger) (capture.FrameSource, error) {
		openCalls++
		return nil, errors.New("device busy")
	}

	err := h.recorder.Start(context.Background(), "m1")
	var sessErr *session.Error
	if !errors.As(err, &sessErr) || sessErr.Kind != session.KindCaptureFailure {
		t.Fatalf("Expected CaptureFailure, got %v", err)
	}
	if h.recorder.State() != session.StateIdle {
		t.Errorf("Expected idle after plain capture failure, got %s", h.recorder.State())
	}

	// A later start tries the device again.
	h.recorder.Start(context.Background(), "m1")
	if openCalls != 2 {
		t.Errorf("Expected 2 open attempts, got %d", openCalls)
	}
}

func TestConcurrentStartIgnored(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)

	if err := h.recorder.Start(context.Background(), "m1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.recorder.Stop()

	opens := 0
	h.recorder.openSource = func(ctx context.Context, c capture.Config, _ *slog.Logger) (capture.FrameSource, error) {
		opens++
		return nil, errors.New("should not be called")
	}

	if err := h.recorder.Start(context.Background(), "m2"); err != nil {
		t.Errorf("Expected second start to be a silent no-op, got %v", err)
	}
	if opens != 0 {
		t.Errorf("Second start must not acquire a device, opened %d times", opens)
	}
}

func TestStopReconcilesTranscript(t *testing.T) {
	store := &fakeStore{}
	h := newHarness(t, Config{
		StreamBaseURL:    "http://backend:8000",
		TargetSampleRate: 16000,
	}, store)

	if err := h.recorder.Start(context.Background(), "m1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.transport.push(sessionStartedJSON("m1", 16000))
	waitForState(t, h.states, session.StateRecording)

	h.transport.push(`{"type":"transcription","segments":[{"start":0,"end":1,"text":"hello"}],"offset":0,"duration":1}`)

	// Wait until the segment lands in the accumulated list.
	deadline := time.After(2 * time.Second)
	for len(h.recorder.Segments()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for segment")
		case <-time.After(10 * time.Millisecond):
		}
	}

	h.recorder.Stop()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.meetingID != "m1" {
		t.Errorf("Expected reconcile for meeting m1, got %q", store.meetingID)
	}
	if len(store.segments) != 1 || store.segments[0].Text != "hello" {
		t.Errorf("Unexpected reconciled segments: %+v", store.segments)
	}

	if !h.source.isStopped() {
		t.Error("Expected capture source stopped")
	}
	if h.recorder.State() != session.StateIdle {
		t.Errorf("Expected idle after stop, got %s", h.recorder.State())
	}
}

func TestFrameFaultDropsFrameOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := New(Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, logger, nil, nil, Callbacks{})

	// A nil meter faults the level stage mid-pipeline; the frame must be
	// dropped and contained without touching the session.
	r.processFrame([]float32{0.1, 0.2}, nil, nil, 48000, 16000)

	if !strings.Contains(buf.String(), "processing_failure") {
		t.Errorf("Dropped frame not classified as a processing failure: %s", buf.String())
	}
}

func TestStopIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)

	h.recorder.Stop() // before any start

	if err := h.recorder.Start(context.Background(), "m1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	h.recorder.Stop()
	h.recorder.Stop()

	if h.recorder.State() != session.StateIdle {
		t.Errorf("Expected idle, got %s", h.recorder.State())
	}
}

func TestServerErrorReleasesCapture(t *testing.T) {
	h := newHarness(t, Config{StreamBaseURL: "http://backend:8000", TargetSampleRate: 16000}, nil)

	if err := h.recorder.Start(context.Background(), "m1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h.transport.push(sessionStartedJSON("m1", 16000))
	waitForState(t, h.states, session.StateRecording)

	h.transport.push(`{"type":"error","message":"decode failed"}`)
	waitForState(t, h.states, session.StateError)

	select {
	case e := <-h.errs:
		if e.Kind != session.KindServerError {
			t.Errorf("Expected server error kind, got %s", e.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for error callback")
	}

	deadline := time.After(2 * time.Second)
	for !h.source.isStopped() {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for capture release")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func failingOpen(err error) func(ctx context.Context, c capture.Config, _ *slog.Logger) (capture.FrameSource, error) {
	return func(ctx context.Context, c capture.Config, _ *slog.Logger) (capture.FrameSource, error) {
		return nil, err
	}
}
