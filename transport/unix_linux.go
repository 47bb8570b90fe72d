//go:build linux

// File: transport/unix_linux.go
// Author: momentics <momentics@gmail.com>
//
// Raw-descriptor unix domain socket implementation. The reactor side issues
// pending accepts and reads against non-blocking descriptors; the peer side
// uses plain blocking connect and send.

package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/momentics/komorebi-link/api"
)

// listenBacklog marks the socket passive with a conventional queue depth.
const listenBacklog = 128

// maxSunPath is the sockaddr_un path capacity on Linux.
const maxSunPath = 108

// Listener is a bound, passive unix domain socket.
type Listener struct {
	fd   uintptr
	path string

	onClose   func()
	closeOnce sync.Once
	closeErr  error
}

// Listen removes a stale socket file at path if present, creates a
// non-blocking local stream socket, binds it, and marks it passive. Any
// failure other than the best-effort stale delete is returned to the caller.
func Listen(path string) (*Listener, error) {
	if len(path) >= maxSunPath {
		return nil, fmt.Errorf("socket path %q is too long", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket file: %w", err)
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %q: %w", path, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %q: %w", path, err)
	}
	return &Listener{fd: uintptr(fd), path: path}, nil
}

// Fd returns the raw listening descriptor for reactor registration.
func (l *Listener) Fd() uintptr { return l.fd }

// Token returns the correlation key for completions on this listener.
func (l *Listener) Token() uintptr { return l.fd }

// Path returns the bound socket file path.
func (l *Listener) Path() string { return l.path }

// Accept issues a non-blocking accept, returning immediately with a handle
// to a not-yet-connected peer. Arm the returned operation with the reactor;
// the accepted Stream is available once the completion is delivered.
func (l *Listener) Accept() *PendingAccept {
	pa := &PendingAccept{ln: l}
	pa.op = api.Operation{
		Kind:   api.OpAccept,
		Token:  l.Token(),
		Fd:     l.fd,
		Finish: pa.finish,
	}
	return pa
}

// OnClose registers fn to run when Close first executes, before the
// descriptor is released. The event loop wires it to the poller's Cancel so
// that closing the listener stops a worker blocked on it. Set it before
// handing the listener to other goroutines.
func (l *Listener) OnClose(fn func()) { l.onClose = fn }

// Close runs the close hook, closes the listening descriptor exactly once,
// and removes the socket file. With the hook wired to the poller, a worker
// waiting on this handle observes an error completion within one polling
// iteration.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		if l.onClose != nil {
			l.onClose()
		}
		l.closeErr = unix.Close(int(l.fd))
		os.Remove(l.path)
	})
	return l.closeErr
}

// PendingAccept is one in-flight accept operation.
type PendingAccept struct {
	ln     *Listener
	op     api.Operation
	stream *Stream
}

// Op returns the operation to arm with the reactor.
func (pa *PendingAccept) Op() *api.Operation { return &pa.op }

// Stream returns the accepted connection, or nil before the accept
// completion has been processed.
func (pa *PendingAccept) Stream() *Stream { return pa.stream }

func (pa *PendingAccept) finish(op *api.Operation) (int, error) {
	nfd, _, err := unix.Accept4(int(pa.ln.fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, api.ErrPending
		}
		return 0, fmt.Errorf("accept: %w", err)
	}
	pa.stream = &Stream{fd: uintptr(nfd)}
	return 0, nil
}

// Stream is one connected unix domain socket.
type Stream struct {
	fd uintptr

	onClose   func()
	closeOnce sync.Once
	closeErr  error
}

// Connect opens a blocking peer connection to the socket at path.
func Connect(path string) (*Stream, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("create socket: %w", err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connect %q: %w", path, err)
	}
	return &Stream{fd: uintptr(fd)}, nil
}

// Fd returns the raw descriptor for reactor registration.
func (s *Stream) Fd() uintptr { return s.fd }

// Token returns the correlation key for completions on this stream.
func (s *Stream) Token() uintptr { return s.fd }

// Read issues a non-blocking receive into buf. Arm the returned operation
// with the reactor; the completion carries the byte count.
func (s *Stream) Read(buf []byte) *PendingRead {
	pr := &PendingRead{s: s}
	pr.op = api.Operation{
		Kind:   api.OpRead,
		Token:  s.Token(),
		Fd:     s.fd,
		Buffer: buf,
		Finish: pr.finish,
	}
	return pr
}

// Write sends buf synchronously, looping until every byte is written. Used
// by peers producing traffic, not by the reactor side.
func (s *Stream) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(int(s.fd), buf[total:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total, fmt.Errorf("write: %w", err)
		}
		total += n
	}
	return total, nil
}

// OnClose registers fn to run when Close first executes, before the
// descriptor is released. The event loop wires it to the poller's Cancel.
func (s *Stream) OnClose(fn func()) { s.onClose = fn }

// Close runs the close hook and closes the descriptor exactly once. An
// in-flight operation surfaces as an error completion on the reactor's
// next wait only through the hook; a bare close leaves the poller silent
// about the handle.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		s.closeErr = unix.Close(int(s.fd))
	})
	return s.closeErr
}

// PendingRead is one in-flight receive operation.
type PendingRead struct {
	s  *Stream
	op api.Operation
}

// Op returns the operation to arm with the reactor.
func (pr *PendingRead) Op() *api.Operation { return &pr.op }

func (pr *PendingRead) finish(op *api.Operation) (int, error) {
	n, err := unix.Read(int(pr.s.fd), op.Buffer)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, api.ErrPending
		}
		return 0, fmt.Errorf("read: %w", err)
	}
	return n, nil
}

// WriteMessage connects to the socket at path, writes msg in full, and
// closes the connection. It is the peer-side convenience used by the
// subscribe side channel and diagnostic tooling.
func WriteMessage(path string, msg []byte) error {
	s, err := Connect(path)
	if err != nil {
		return err
	}
	defer s.Close()
	if _, err := s.Write(msg); err != nil {
		return err
	}
	return nil
}
