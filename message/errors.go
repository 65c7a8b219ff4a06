package message

import "errors"

// Error kinds surfaced by the message package. Callers classify failures
// with errors.Is; every error returned by a codec wraps exactly one of these.
var (
	// ErrInvalidArgument reports bad construction parameters, such as a
	// ByteArray size outside the bounds of its backing storage.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownType reports a type tag character or byte that is not in
	// the registry.
	ErrUnknownType = errors.New("unknown message type")

	// ErrMalformedEncoding reports a structural violation in an encoded
	// frame: missing delimiter, truncated payload, length mismatch or
	// trailing garbage. Retrying with the same input cannot succeed.
	ErrMalformedEncoding = errors.New("malformed encoding")

	// ErrConcurrentMutation reports that the element sequence of a
	// composite changed while it was being encoded. This is a consistency
	// fault in the caller, not a recoverable condition.
	ErrConcurrentMutation = errors.New("concurrent mutation during encode")
)
