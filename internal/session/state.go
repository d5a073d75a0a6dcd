package session

// State represents the lifecycle state of a recording attempt.
type State int

const (
	// StateIdle is the rest state; no transport or capture resources exist.
	StateIdle State = iota

	// StateConnecting means the transport dial is in flight.
	StateConnecting

	// StateConnected means the transport is open and session negotiation
	// (session_started, optional config exchange) is in progress. Outbound
	// frames are queued, not sent.
	StateConnected

	// StateRecording means the session is fully negotiated and frames are
	// transmitted as produced.
	StateRecording

	// StateError is a terminal state entered on any transport or server
	// fault; all resources have been released.
	StateError

	// StateDenied is entered when microphone access is refused. Sticky until
	// the user intervenes outside the app.
	StateDenied

	// StateUnsupported is entered when the runtime lacks the required audio
	// capabilities. Sticky for the process lifetime.
	StateUnsupported
)

// String returns a string representation of the session state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	case StateDenied:
		return "denied"
	case StateUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}
