package socket

import "errors"

var (
	// ErrClosed is returned by operations on a closed socket or context.
	ErrClosed = errors.New("socket: closed")

	// ErrTransportFault wraps unrecoverable faults reported upward by a
	// transport. It is reported to listeners through OnError, never
	// generated by the message codec.
	ErrTransportFault = errors.New("socket: transport fault")

	// ErrListenerRegistered is returned when a listener is added twice
	// to the same source.
	ErrListenerRegistered = errors.New("socket: listener already registered")
)
