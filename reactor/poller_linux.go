//go:build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based completion poller. Readiness events are converted to
// completions by finishing the armed operation inside Wait, and a wakeup
// eventfd stands in for a posted stop packet.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/komorebi-link/api"
)

// epollPoller implements api.Poller over an epoll instance plus an eventfd
// wakeup handle.
type epollPoller struct {
	epfd   int
	wakeFd int

	mu     sync.Mutex
	tokens map[uintptr]uintptr        // fd -> token
	ops    map[uintptr]*api.Operation // fd -> armed operation
	queued []api.Completion           // injected by Post and Cancel
	closed bool
}

// NewPoller creates the completion poller. Failure here is fatal to the
// integration: without the event queue nothing can be accepted or read.
func NewPoller() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd create: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &epollPoller{
		epfd:   epfd,
		wakeFd: wakeFd,
		tokens: make(map[uintptr]uintptr),
		ops:    make(map[uintptr]*api.Operation),
	}, nil
}

// Register adds a socket handle to the epoll set, disarmed. Operations arm
// readiness one-shot per Arm call.
func (p *epollPoller) Register(fd, token uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	if _, ok := p.tokens[fd]; ok {
		return fmt.Errorf("register fd %d: %w", fd, api.ErrAlreadyRegistered)
	}
	ev := unix.EpollEvent{Events: 0, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	p.tokens[fd] = token
	return nil
}

// Unregister removes a handle and discards its armed operation, if any.
func (p *epollPoller) Unregister(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tokens[fd]; !ok {
		return fmt.Errorf("unregister fd %d: %w", fd, api.ErrNotRegistered)
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	delete(p.tokens, fd)
	delete(p.ops, fd)
	return nil
}

// Arm queues op for one-shot readiness on its handle. Level-triggered
// EPOLLONESHOT fires immediately when the handle is already ready, which
// preserves the "synchronous completion still reported via the queue"
// behavior of overlapped I/O.
func (p *epollPoller) Arm(op *api.Operation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	if _, ok := p.tokens[op.Fd]; !ok {
		return fmt.Errorf("arm fd %d: %w", op.Fd, api.ErrNotRegistered)
	}
	if _, ok := p.ops[op.Fd]; ok {
		return fmt.Errorf("arm token %d: %w", op.Token, api.ErrOpInFlight)
	}
	if err := p.armLocked(op.Fd); err != nil {
		return err
	}
	p.ops[op.Fd] = op
	return nil
}

func (p *epollPoller) armLocked(fd uintptr) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Wait blocks until readiness is reported, finishes each armed operation,
// and writes the resulting completions into batch, followed by any
// completions injected through Post or Cancel. Spurious readiness (the OS
// call still returns EAGAIN) re-arms silently, so Wait may return zero
// completions without an error.
func (p *epollPoller) Wait(batch []api.Completion, timeout time.Duration) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	p.mu.Lock()
	if n := copy(batch, p.queued); n > 0 {
		p.queued = p.queued[n:]
		p.mu.Unlock()
		return n, nil
	}
	if p.closed {
		p.mu.Unlock()
		return 0, api.ErrClosed
	}
	p.mu.Unlock()

	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	raw := make([]unix.EpollEvent, len(batch))
	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, api.ErrClosed
	}

	filled := 0
	for i := 0; i < n; i++ {
		fd := uintptr(raw[i].Fd)
		if fd == uintptr(p.wakeFd) {
			// Injected completions are collected below.
			p.drainWakeup()
			continue
		}

		p.mu.Lock()
		op, ok := p.ops[fd]
		p.mu.Unlock()
		if !ok {
			// Stale event for a handle whose operation was discarded.
			continue
		}

		bytes, ferr := op.Finish(op)
		if errors.Is(ferr, api.ErrPending) {
			p.mu.Lock()
			rearmErr := p.armLocked(fd)
			p.mu.Unlock()
			if rearmErr != nil {
				return filled, rearmErr
			}
			continue
		}

		p.mu.Lock()
		delete(p.ops, fd)
		p.mu.Unlock()

		batch[filled] = api.Completion{Token: op.Token, Bytes: bytes, Err: ferr, Op: op}
		filled++
	}
	if filled < len(batch) {
		filled += p.takeQueued(batch[filled:])
	}
	return filled, nil
}

// takeQueued moves injected completions into batch, preserving order.
func (p *epollPoller) takeQueued(batch []api.Completion) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(batch, p.queued)
	p.queued = p.queued[n:]
	return n
}

// drainWakeup resets the eventfd counter so the wakeup handle goes quiet
// until the next Post.
func (p *epollPoller) drainWakeup() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// Post wakes the Wait caller with an OpStop completion.
func (p *epollPoller) Post() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrClosed
	}
	p.queued = append(p.queued, api.Completion{
		Token: api.StopToken,
		Op:    &api.Operation{Kind: api.OpStop, Token: api.StopToken},
	})
	p.mu.Unlock()
	return p.wake()
}

// Cancel removes a handle like Unregister and delivers an error completion
// carrying cause for its token, waking the Wait caller. Transport close
// hooks call it before the descriptor is released, so closing a handle the
// worker is waiting on stops the worker within one polling iteration.
func (p *epollPoller) Cancel(fd uintptr, cause error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return api.ErrClosed
	}
	token, ok := p.tokens[fd]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("cancel fd %d: %w", fd, api.ErrNotRegistered)
	}
	// Best effort: the descriptor may already be gone.
	unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	op := p.ops[fd]
	delete(p.tokens, fd)
	delete(p.ops, fd)
	p.queued = append(p.queued, api.Completion{Token: token, Err: cause, Op: op})
	p.mu.Unlock()
	return p.wake()
}

func (p *epollPoller) wake() error {
	var buf [8]byte
	buf[0] = 1
	if _, err := unix.Write(p.wakeFd, buf[:]); err != nil {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close wakes any blocked Wait caller, which then observes ErrClosed, and
// releases the epoll instance and the wakeup handle.
func (p *epollPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	// The wakeup write lands before the descriptors close, so a waiter
	// blocked in the OS call is released first.
	var buf [8]byte
	buf[0] = 1
	unix.Write(p.wakeFd, buf[:])
	werr := unix.Close(p.wakeFd)
	eerr := unix.Close(p.epfd)
	if eerr != nil {
		return eerr
	}
	return werr
}
