// Package transcript reconstructs ordered transcript segments from
// asynchronous transcription pushes: stable id assignment, speaker and end
// time defaulting, start-time ordering of the accumulated list, and the
// total-duration watermark.
package transcript
