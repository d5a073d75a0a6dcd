package session

import "fmt"

// Kind classifies a failure for the caller's error handling.
type Kind int

const (
	// KindPermissionDenied means device or API access was refused. Terminal
	// until the user intervenes outside the app.
	KindPermissionDenied Kind = iota

	// KindUnsupported means a required runtime capability is absent.
	KindUnsupported

	// KindNoScopeSelected means start was called without a meeting scope.
	KindNoScopeSelected

	// KindTransportError is a connection-level failure in any phase.
	KindTransportError

	// KindServerError is an explicit error message from the backend.
	KindServerError

	// KindProcessingFailure is an internal pipeline fault on a single frame;
	// the frame is dropped and the session continues.
	KindProcessingFailure

	// KindCaptureFailure is a device acquisition failure that is neither a
	// permission nor a capability problem.
	KindCaptureFailure
)

// String returns a string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindUnsupported:
		return "unsupported"
	case KindNoScopeSelected:
		return "no_scope_selected"
	case KindTransportError:
		return "transport_error"
	case KindServerError:
		return "server_error"
	case KindProcessingFailure:
		return "processing_failure"
	case KindCaptureFailure:
		return "capture_failure"
	default:
		return "unknown"
	}
}

// Error is a classified session failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
