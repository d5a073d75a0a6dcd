package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/saligia28/meetstream/internal/metrics"
	"github.com/saligia28/meetstream/internal/protocol"
	"github.com/saligia28/meetstream/internal/transcript"
)

// Callbacks are the caller-supplied notification hooks. All of them are
// optional. OnError fires at most once per session.
type Callbacks struct {
	OnSegments func([]transcript.Segment)
	OnError    func(*Error)
	OnState    func(State)
}

// Config describes one recording attempt.
type Config struct {
	// MeetingID scopes the session and participates in segment ids.
	MeetingID string

	// SampleRate is the negotiated rate the backend will receive.
	SampleRate int

	// SourceSampleRate is the device capture rate, advertised to the backend
	// alongside the negotiated rate.
	SourceSampleRate int

	// Detection is the pending side-payload of the two-phase handshake: held
	// until the server acknowledges session start, sent once, never resent.
	// Nil skips the config exchange entirely.
	Detection *protocol.DetectionConfig

	// QueueCapacity bounds the pre-ready chunk queue. Zero selects
	// DefaultQueueCapacity.
	QueueCapacity int
}

// Session is the state machine for one start-to-stop recording attempt. It is
// created fresh for every attempt and never reused; Stop releases everything
// it owns. Methods are safe for concurrent use by the capture pipeline, the
// transport reader, and the controlling caller.
type Session struct {
	id        string
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	callbacks Callbacks

	// sendMu serializes the outbound path: every transmit-or-queue decision
	// and the whole queue flush happen under it, so chunks reach the wire in
	// strict production order across the recording transition. Lock order is
	// sendMu before mu; mu is never held while acquiring sendMu.
	sendMu sync.Mutex

	mu            sync.Mutex
	state         State
	transport     Transport
	queue         *Queue
	assembler     *transcript.Assembler
	configSent    bool
	configApplied bool
	stopped       bool
	failed        bool
	startTime     time.Time
	bytesSent     uint64
	chunksSent    uint64

	readerDone chan struct{}
}

// New creates a session in the idle state.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics, callbacks Callbacks) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger.With(slog.String("session_id", id), slog.String("meeting_id", cfg.MeetingID)),
		metrics:   m,
		callbacks: callbacks,
		state:     StateIdle,
		queue:     NewQueue(cfg.QueueCapacity),
		assembler: transcript.NewAssembler(cfg.MeetingID),
	}
}

// ID returns the attempt identifier.
func (s *Session) ID() string { return s.id }

// MeetingID returns the meeting scope this session streams for.
func (s *Session) MeetingID() string { return s.cfg.MeetingID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Segments returns the accumulated, start-time-ordered transcript.
func (s *Session) Segments() []transcript.Segment {
	return s.assembler.Segments()
}

// Watermark returns the highest confirmed end-of-audio timestamp.
func (s *Session) Watermark() float64 {
	return s.assembler.Watermark()
}

// BytesSent returns the total PCM bytes transmitted so far.
func (s *Session) BytesSent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}

// QueueDepth returns the number of chunks waiting for session readiness.
func (s *Session) QueueDepth() int {
	return s.queue.Len()
}

// Start dials the transport and begins session negotiation. It transitions
// idle -> connecting -> connected and spawns the reader goroutine; the
// recording state is reached later, driven by server messages. Start returns
// the dial error (already classified) on failure.
func (s *Session) Start(ctx context.Context, dial Dialer, url string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return NewError(KindTransportError, fmt.Sprintf("cannot start from state %s", state), nil)
	}
	s.state = StateConnecting
	s.startTime = time.Now()
	s.mu.Unlock()
	s.notifyState(StateConnecting)

	if s.metrics != nil {
		s.metrics.SessionsStarted.Inc()
	}

	s.logger.Info("Connecting to transcription backend", slog.String("url", url))

	transport, err := dial(ctx, url)
	if err != nil {
		failure := NewError(KindTransportError, "failed to connect to transcription backend", err)
		s.fail(failure)
		return failure
	}

	s.mu.Lock()
	if s.stopped {
		// Stop raced the dial; tear the fresh connection down.
		s.mu.Unlock()
		transport.Close()
		return nil
	}
	s.transport = transport
	s.state = StateConnected
	s.readerDone = make(chan struct{})
	s.mu.Unlock()
	s.notifyState(StateConnected)

	s.logger.Info("Transport connected, awaiting session negotiation")

	go s.readLoop(transport)

	return nil
}

// HandleChunk accepts one encoded PCM chunk from the capture pipeline. Before
// the session is ready the chunk is queued (drop-oldest on overflow); once
// recording it is transmitted immediately in production order.
func (s *Session) HandleChunk(chunk []byte) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.stopped || s.failed {
		s.mu.Unlock()
		return
	}
	transport := s.transport
	ready := s.state == StateRecording && transport != nil
	s.mu.Unlock()

	if !ready {
		evicted := s.queue.Push(chunk)
		if s.metrics != nil {
			s.metrics.ChunksQueued.Inc()
			s.metrics.QueueDepth.Set(float64(s.queue.Len()))
			if evicted {
				s.metrics.ChunksDropped.WithLabelValues(metrics.DropReasonQueueFull).Inc()
			}
		}
		return
	}

	if err := transport.WriteBinary(chunk); err != nil {
		s.fail(NewError(KindTransportError, "failed to send audio chunk", err))
		return
	}

	s.mu.Lock()
	s.bytesSent += uint64(len(chunk))
	s.chunksSent++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ChunksSent.Inc()
		s.metrics.BytesSent.Add(float64(len(chunk)))
	}
}

// Stop tears the session down: closes the transport (fire-and-forget),
// discards buffered outbound chunks, and resets all session-scoped state.
// Idempotent, callable from any state, never blocks on the peer.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	transport := s.transport
	s.transport = nil
	wasActive := s.state == StateConnecting || s.state == StateConnected || s.state == StateRecording
	s.state = StateIdle
	s.configSent = false
	s.configApplied = false
	startTime := s.startTime
	chunksSent := s.chunksSent
	bytesSent := s.bytesSent
	s.mu.Unlock()

	s.queue.Clear()

	if transport != nil {
		transport.Close()
	}

	if s.metrics != nil {
		s.metrics.QueueDepth.Set(0)
		if wasActive && !startTime.IsZero() {
			s.metrics.SessionDuration.Observe(time.Since(startTime).Seconds())
		}
	}

	s.logger.Info("Session stopped",
		slog.Uint64("chunks_sent", chunksSent),
		slog.Uint64("bytes_sent", bytesSent),
		slog.Uint64("chunks_evicted", s.queue.Dropped()),
	)

	s.notifyState(StateIdle)
}

// readLoop pumps inbound messages until the transport dies or Stop is called.
func (s *Session) readLoop(transport Transport) {
	defer func() {
		s.mu.Lock()
		done := s.readerDone
		s.mu.Unlock()
		if done != nil {
			close(done)
		}
	}()

	for {
		msgType, data, err := transport.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		// Binary frames are client-to-server only; ignore anything else.
		if msgType != websocket.TextMessage {
			continue
		}

		s.handleMessage(data)
	}
}

// handleReadError classifies a reader failure. A close while actively
// recording returns the machine to idle with buffered state cleared (no
// auto-reconnect); any other fault during an active phase is a transport
// error.
func (s *Session) handleReadError(err error) {
	s.mu.Lock()
	if s.stopped || s.failed {
		s.mu.Unlock()
		return
	}
	wasRecording := s.state == StateRecording
	s.mu.Unlock()

	var closeErr *websocket.CloseError
	isClose := errors.As(err, &closeErr) || errors.Is(err, net.ErrClosed)

	if isClose && wasRecording {
		s.logger.Warn("Transport closed unexpectedly while recording, returning to idle",
			slog.String("error", err.Error()),
		)
		s.teardownToIdle()
		return
	}

	s.fail(NewError(KindTransportError, "transport read failed", err))
}

// handleMessage decodes and dispatches one control-plane message.
func (s *Session) handleMessage(data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		s.logger.Warn("Discarding malformed server message", slog.String("error", err.Error()))
		return
	}

	switch msg.Type {
	case protocol.TypeSessionStarted:
		s.onSessionStarted(msg)
	case protocol.TypeConfigApplied:
		s.onConfigApplied(msg)
	case protocol.TypeTranscription:
		s.onTranscription(msg)
	case protocol.TypeError:
		s.fail(NewError(KindServerError, msg.Message, nil))
	default:
		s.logger.Debug("Ignoring unknown server message type", slog.String("type", msg.Type))
	}
}

// onSessionStarted implements the two-phase establishment: if a detection
// config is pending it is sent exactly once and the machine stays in
// connected awaiting config_applied; otherwise recording begins immediately.
func (s *Session) onSessionStarted(msg *protocol.ServerMessage) {
	s.logger.Info("Session negotiated",
		slog.String("backend_meeting_id", msg.MeetingID),
		slog.Int("backend_sample_rate", msg.SampleRate),
	)

	s.mu.Lock()
	if s.stopped || s.failed || s.state != StateConnected {
		s.mu.Unlock()
		return
	}

	pending := s.cfg.Detection != nil && !s.configApplied && !s.configSent
	transport := s.transport
	if pending {
		s.configSent = true
	}
	s.mu.Unlock()

	if !pending {
		s.enterRecording()
		return
	}

	s.logger.Info("Sending detection config", slog.String("config", s.cfg.Detection.String()))
	if err := transport.WriteJSON(s.cfg.Detection.Message()); err != nil {
		s.fail(NewError(KindTransportError, "failed to send detection config", err))
	}
}

func (s *Session) onConfigApplied(msg *protocol.ServerMessage) {
	s.mu.Lock()
	if s.stopped || s.failed || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.configApplied = true
	s.mu.Unlock()

	s.logger.Info("Detection config acknowledged")
	s.enterRecording()
}

// enterRecording flips the machine to recording and flushes the pending
// queue in FIFO order. The flip and the flush run under sendMu, so a chunk
// arriving from the capture pipeline mid-transition waits for the flush and
// cannot overtake older queued audio. A flush failure means the transport is
// already dead: the remaining chunks are discarded (logged and counted, not
// retried) and the regular transport-error path handles the state transition.
func (s *Session) enterRecording() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.stopped || s.failed || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateRecording
	transport := s.transport
	s.mu.Unlock()
	s.notifyState(StateRecording)

	pending := s.queue.Drain()
	s.logger.Info("Recording started", slog.Int("flushing_chunks", len(pending)))

	for i, chunk := range pending {
		if err := transport.WriteBinary(chunk); err != nil {
			discarded := len(pending) - i
			s.logger.Warn("Flush aborted, discarding remaining queued chunks",
				slog.Int("discarded", discarded),
				slog.String("error", err.Error()),
			)
			if s.metrics != nil {
				for j := 0; j < discarded; j++ {
					s.metrics.ChunksDropped.WithLabelValues(metrics.DropReasonFlushAbort).Inc()
				}
			}
			s.fail(NewError(KindTransportError, "failed to flush queued audio", err))
			return
		}

		s.mu.Lock()
		s.bytesSent += uint64(len(chunk))
		s.chunksSent++
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.ChunksSent.Inc()
			s.metrics.BytesSent.Add(float64(len(chunk)))
		}
	}

	if s.metrics != nil {
		s.metrics.QueueDepth.Set(0)
	}
}

func (s *Session) onTranscription(msg *protocol.ServerMessage) {
	batch := s.assembler.Ingest(msg)
	if len(batch) == 0 {
		return
	}

	s.logger.Debug("Received transcript batch",
		slog.Int("segments", len(batch)),
		slog.Float64("watermark", s.assembler.Watermark()),
	)

	if s.metrics != nil {
		s.metrics.BatchesReceived.Inc()
		s.metrics.SegmentsReceived.Add(float64(len(batch)))
		s.metrics.WatermarkSeconds.Set(s.assembler.Watermark())
	}

	if s.callbacks.OnSegments != nil {
		s.callbacks.OnSegments(batch)
	}
}

// teardownToIdle releases resources after an unexpected close while
// recording. Not an error path: no error callback fires.
func (s *Session) teardownToIdle() {
	s.mu.Lock()
	if s.stopped || s.failed {
		s.mu.Unlock()
		return
	}
	transport := s.transport
	s.transport = nil
	s.state = StateIdle
	s.mu.Unlock()

	s.queue.Clear()
	if transport != nil {
		transport.Close()
	}

	s.notifyState(StateIdle)
}

// fail moves the machine to the error state, releases all resources, and
// delivers exactly one terminal notification.
func (s *Session) fail(failure *Error) {
	s.mu.Lock()
	if s.stopped || s.failed {
		s.mu.Unlock()
		return
	}
	s.failed = true
	s.state = StateError
	transport := s.transport
	s.transport = nil
	s.mu.Unlock()

	s.queue.Clear()
	if transport != nil {
		transport.Close()
	}

	s.logger.Error("Session failed",
		slog.String("kind", failure.Kind.String()),
		slog.String("message", failure.Message),
	)

	if s.metrics != nil {
		s.metrics.SessionsFailed.Inc()
		s.metrics.QueueDepth.Set(0)
	}

	s.notifyState(StateError)
	if s.callbacks.OnError != nil {
		s.callbacks.OnError(failure)
	}
}

func (s *Session) notifyState(state State) {
	if s.metrics != nil {
		s.metrics.SessionState.Set(float64(state))
	}
	if s.callbacks.OnState != nil {
		s.callbacks.OnState(state)
	}
}
