// Package capture acquires microphone audio through PortAudio and delivers
// fixed-size mono float32 frames over a channel. Two source strategies exist:
// a callback-driven source fed from the audio thread and a blocking-poll
// fallback. Probe selects between them at session start; downstream consumers
// only see the FrameSource interface.
package capture
