// Package protocol defines the duplex wire contract with the transcription
// backend: the JSON control plane (session negotiation, detection config,
// transcription pushes, errors), the binary PCM data plane conventions, and
// the stream URL layout.
package protocol
