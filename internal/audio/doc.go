// Package audio provides the sample-level stages of the capture pipeline:
// box-average downsampling, float to PCM-16 conversion, RMS level metering,
// and WAV framing for the batch import path.
package audio
