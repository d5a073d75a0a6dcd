// Package metrics exposes Prometheus instrumentation for the capture and
// streaming pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons for ChunksDropped.
const (
	DropReasonQueueFull  = "queue_full"
	DropReasonFlushAbort = "flush_abort"
)

// Metrics contains all Prometheus metrics for the streaming client
type Metrics struct {
	// Capture pipeline metrics
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
	AudioLevel     prometheus.Gauge

	// Outbound queue metrics
	ChunksSent    prometheus.Counter
	ChunksQueued  prometheus.Counter
	ChunksDropped *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	BytesSent     prometheus.Counter

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionState    prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Inbound transcript metrics
	SegmentsReceived prometheus.Counter
	BatchesReceived  prometheus.Counter
	WatermarkSeconds prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_frames_captured_total",
			Help: "Total number of audio frames delivered by the capture source",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_frames_dropped_total",
			Help: "Total number of frames dropped by processing failures",
		}),
		AudioLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meetstream_audio_level",
			Help: "Current smoothed input loudness (0..1)",
		}),

		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_chunks_sent_total",
			Help: "Total number of PCM chunks transmitted",
		}),
		ChunksQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_chunks_queued_total",
			Help: "Total number of PCM chunks queued before session readiness",
		}),
		ChunksDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meetstream_chunks_dropped_total",
			Help: "Total number of PCM chunks dropped, by reason",
		}, []string{"reason"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meetstream_queue_depth",
			Help: "Current number of chunks in the outbound queue",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_bytes_sent_total",
			Help: "Total PCM bytes transmitted to the backend",
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_sessions_failed_total",
			Help: "Total number of sessions terminated by an error",
		}),
		SessionState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meetstream_session_state",
			Help: "Current session state (0=idle 1=connecting 2=connected 3=recording 4=error)",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetstream_session_duration_seconds",
			Help:    "Duration of completed recording sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		SegmentsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_segments_received_total",
			Help: "Total number of transcript segments received",
		}),
		BatchesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meetstream_batches_received_total",
			Help: "Total number of transcription pushes received",
		}),
		WatermarkSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meetstream_watermark_seconds",
			Help: "Highest end-of-audio timestamp confirmed processed by the backend",
		}),
	}
}
