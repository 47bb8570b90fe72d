// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for completion-style event pollers used to
// multiplex socket operations across poll-mode backends (epoll, IOCP).

package api

import "time"

// OpKind identifies the type of a pending socket operation.
type OpKind int

const (
	// OpAccept is a pending accept on a listening socket.
	OpAccept OpKind = iota
	// OpRead is a pending receive on an accepted stream.
	OpRead
	// OpStop is a synthetic completion produced by Post, never armed.
	OpStop
)

// StopToken is the reserved correlation key carried by OpStop completions.
// It cannot collide with live tokens, which are OS socket handles.
const StopToken = ^uintptr(0)

// FinishFunc performs the non-blocking OS call for an operation once the
// poller reports readiness on its handle. It returns the number of bytes
// transferred, or ErrPending if the handle turned out not to be ready.
type FinishFunc func(op *Operation) (n int, err error)

// Operation is one in-flight asynchronous request. At most one operation may
// be armed per token at a time; the transport layer constructs operations
// and the poller owns them from Arm until the matching completion.
type Operation struct {
	Kind   OpKind
	Token  uintptr // correlation key, the socket handle that issued the op
	Fd     uintptr // handle the poller watches for readiness
	Buffer []byte  // receive target for OpRead, nil otherwise
	Finish FinishFunc
}

// Completion reports one finished operation from a Wait call.
type Completion struct {
	Token uintptr
	Bytes int
	Err   error
	Op    *Operation
}

// Poller is a completion-port style reactor: handles are registered once
// under a token, operations are armed against registered handles, and a
// dedicated worker blocks in Wait until one or more operations finish.
type Poller interface {
	// Register associates a socket handle with the poller under token.
	// Registering an already-registered handle is an error.
	Register(fd, token uintptr) error

	// Unregister removes a handle and discards any armed operation on it.
	Unregister(fd uintptr) error

	// Cancel removes a handle like Unregister and additionally delivers an
	// error completion carrying cause for the handle's token, waking the
	// Wait caller. Transport close hooks use it to make handle closure
	// observable to the worker.
	Cancel(fd uintptr, cause error) error

	// Arm queues op for completion delivery. Arming a second operation on a
	// token that already has one in flight returns ErrOpInFlight.
	Arm(op *Operation) error

	// Wait blocks until at least one completion is ready or timeout elapses,
	// writing completions into batch and returning how many were written.
	// A negative timeout blocks indefinitely. Returning n == 0 with a nil
	// error means the timeout elapsed.
	Wait(batch []Completion, timeout time.Duration) (int, error)

	// Post injects an OpStop completion, waking the Wait caller. Safe to
	// call from any goroutine.
	Post() error

	// Close releases the poller backend. Blocked Wait calls return an error.
	Close() error
}
