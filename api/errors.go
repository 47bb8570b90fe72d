// File: api/errors.go
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across the komorebi-link pipeline.

package api

import "errors"

var (
	// ErrPending reports that an operation could not complete yet and has
	// been (re-)armed with the poller. Callers never see it from Wait.
	ErrPending = errors.New("operation pending")

	// ErrClosed reports use of a listener, stream, or poller after Close.
	ErrClosed = errors.New("handle is closed")

	// ErrAlreadyRegistered reports a duplicate Register for a handle.
	ErrAlreadyRegistered = errors.New("handle already registered")

	// ErrNotRegistered reports an Arm or Unregister on an unknown handle.
	ErrNotRegistered = errors.New("handle not registered")

	// ErrOpInFlight reports a second Arm while an operation is outstanding
	// on the same token.
	ErrOpInFlight = errors.New("operation already in flight")

	// ErrNotSupported reports a backend missing on this platform.
	ErrNotSupported = errors.New("operation not supported on this platform")
)
