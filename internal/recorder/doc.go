// Package recorder orchestrates one live transcription attempt end to end:
// capability probing, microphone capture, the per-frame processing pipeline
// (level metering, resampling, PCM encoding), and the streaming session. It
// owns the capture device exclusively and allows at most one active attempt
// at a time.
package recorder
