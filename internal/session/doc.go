// Package session owns the duplex connection lifecycle for one recording
// attempt: the state machine gating outbound transmission, the bounded
// pending-chunk queue, the two-phase config handshake, and the dispatch of
// server pushes to the transcript assembler.
package session
