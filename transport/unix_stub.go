//go:build !linux

// File: transport/unix_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without the unix domain socket backend.

package transport

import (
	"github.com/momentics/komorebi-link/api"
)

// Listener is a bound, passive unix domain socket.
type Listener struct{}

// Stream is one connected unix domain socket.
type Stream struct{}

// PendingAccept is one in-flight accept operation.
type PendingAccept struct{}

// PendingRead is one in-flight receive operation.
type PendingRead struct{}

// Listen reports that no socket backend exists on this platform.
func Listen(path string) (*Listener, error) { return nil, api.ErrNotSupported }

// Connect reports that no socket backend exists on this platform.
func Connect(path string) (*Stream, error) { return nil, api.ErrNotSupported }

// WriteMessage reports that no socket backend exists on this platform.
func WriteMessage(path string, msg []byte) error { return api.ErrNotSupported }

func (l *Listener) Fd() uintptr              { return 0 }
func (l *Listener) Token() uintptr           { return 0 }
func (l *Listener) Path() string             { return "" }
func (l *Listener) Accept() *PendingAccept   { return &PendingAccept{} }
func (l *Listener) OnClose(fn func())        {}
func (l *Listener) Close() error             { return api.ErrNotSupported }
func (pa *PendingAccept) Op() *api.Operation { return nil }
func (pa *PendingAccept) Stream() *Stream    { return nil }
func (s *Stream) Fd() uintptr                { return 0 }
func (s *Stream) Token() uintptr             { return 0 }
func (s *Stream) Read(buf []byte) *PendingRead {
	return &PendingRead{}
}
func (s *Stream) Write(buf []byte) (int, error) { return 0, api.ErrNotSupported }
func (s *Stream) OnClose(fn func())             {}
func (s *Stream) Close() error                  { return api.ErrNotSupported }
func (pr *PendingRead) Op() *api.Operation      { return nil }
