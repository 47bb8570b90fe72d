// File: api/handler.go
// Author: momentics <momentics@gmail.com>
//
// Handler contract for completed reads delivered by the stream sink.

package api

// NotificationHandler consumes the payload of one completed read. The sink
// invokes it serially on the worker goroutine; the payload slice is only
// valid for the duration of the call (the buffer returns to its pool
// afterwards), so implementations must copy anything they keep.
type NotificationHandler interface {
	Handle(payload []byte)
}

// HandlerFunc adapts a plain function to NotificationHandler.
type HandlerFunc func(payload []byte)

// Handle implements NotificationHandler.
func (f HandlerFunc) Handle(payload []byte) { f(payload) }
