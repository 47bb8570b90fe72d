// File: sink/sink.go
// Author: momentics <momentics@gmail.com>
//
// StreamSink is the pipeline's event loop: one dedicated goroutine that
// blocks on the completion poller, keeps exactly one accept outstanding on
// the listener, reads each accepted connection once, and hands completed
// payloads to the notification handler in delivery order.

package sink

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eapache/queue"

	"github.com/momentics/komorebi-link/api"
	"github.com/momentics/komorebi-link/transport"
)

const (
	// DefaultBatchSize bounds how many completions one wait may deliver.
	DefaultBatchSize = 8

	// DefaultRefreshInterval is how often the buffer pool is cleared to
	// bound long-run memory growth.
	DefaultRefreshInterval = 600 * time.Second
)

// flight is one accepted connection with its read in flight.
type flight struct {
	token  uintptr
	stream *transport.Stream
	buf    []byte
}

// StreamSink owns the poller wait loop. Construct with New, then call Run
// on a dedicated goroutine and Stop from anywhere.
type StreamSink struct {
	ln      *transport.Listener
	poller  api.Poller
	bufs    api.BytePool
	handler api.NotificationHandler
	logger  *log.Logger

	batchSize int
	refresh   time.Duration

	inflight *queue.Queue // of *flight, FIFO in accept order
	inCount  atomic.Int32

	done chan struct{}
}

// Option customizes a StreamSink.
type Option func(*StreamSink)

// WithBatchSize overrides the completion batch size.
func WithBatchSize(n int) Option {
	return func(s *StreamSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRefreshInterval overrides the buffer-pool refresh interval.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *StreamSink) { s.refresh = d }
}

// WithLogger overrides the sink's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *StreamSink) { s.logger = l }
}

// New builds a StreamSink over an already-bound listener. The sink registers
// the listener with the poller itself when Run starts.
func New(ln *transport.Listener, poller api.Poller, bufs api.BytePool, handler api.NotificationHandler, opts ...Option) *StreamSink {
	s := &StreamSink{
		ln:        ln,
		poller:    poller,
		bufs:      bufs,
		handler:   handler,
		logger:    log.Default(),
		batchSize: DefaultBatchSize,
		refresh:   DefaultRefreshInterval,
		inflight:  queue.New(),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// InFlight reports how many accepted connections currently have a read
// outstanding.
func (s *StreamSink) InFlight() int { return int(s.inCount.Load()) }

// Done is closed when the loop has exited.
func (s *StreamSink) Done() <-chan struct{} { return s.done }

// Stop posts a stop packet and waits for the loop to tear down its
// in-flight handles and exit.
func (s *StreamSink) Stop() {
	if err := s.poller.Post(); err != nil {
		s.logger.Error("could not post stop packet to poller", "err", err)
	}
	<-s.done
}

// Run executes the wait loop until a stop packet arrives, the listener is
// closed, or the poller fails. A nil return is a clean stop; any other exit
// reports its cause. The caller retains responsibility for closing the
// listener and the poller.
func (s *StreamSink) Run() error {
	defer close(s.done)

	if err := s.poller.Register(s.ln.Fd(), s.ln.Token()); err != nil {
		s.logger.Error("could not register listener with poller", "err", err)
		return err
	}
	// Closing the listener out from under the loop must wake it; the hook
	// turns the closure into an error completion on the listener's token.
	s.ln.OnClose(func() {
		if err := s.poller.Cancel(s.ln.Fd(), api.ErrClosed); err != nil && !errors.Is(err, api.ErrNotRegistered) {
			s.logger.Debug("could not cancel listener handle", "err", err)
		}
	})

	// Queue up the first accept. From here on exactly one accept stays
	// outstanding until the loop exits.
	pending := s.ln.Accept()
	if err := s.poller.Arm(pending.Op()); err != nil {
		s.logger.Error("could not arm initial accept", "err", err)
		return err
	}

	batch := make([]api.Completion, s.batchSize)
	lastRefresh := time.Now()

	for {
		if time.Since(lastRefresh) > s.refresh {
			s.logger.Debug("clearing receive buffer pool")
			s.bufs.Clear()
			lastRefresh = time.Now()
		}

		// Blocks until at least one operation has completed.
		n, err := s.poller.Wait(batch, -1)
		if err != nil {
			s.logger.Error("poller wait failed, stopping stream sink", "err", err)
			return err
		}

		stop := false
		for _, c := range batch[:n] {
			switch {
			case c.Op != nil && c.Op.Kind == api.OpStop:
				stop = true
			case c.Token == s.ln.Token():
				if errors.Is(c.Err, api.ErrClosed) {
					s.logger.Info("listener closed, stopping stream sink")
					s.teardown()
					return c.Err
				}
				next, err := s.onAccept(pending, c)
				if err != nil {
					return err
				}
				pending = next
			default:
				s.onRead(c)
			}
		}

		if stop {
			s.teardown()
			return nil
		}
	}
}

// onAccept processes one accept completion: arm a read on the new
// connection, then immediately re-arm the listener. A re-arm failure is
// fatal to the loop; everything else discards the connection and continues.
func (s *StreamSink) onAccept(pending *transport.PendingAccept, c api.Completion) (*transport.PendingAccept, error) {
	if c.Err != nil {
		s.logger.Warn("accept failed, discarding connection", "err", c.Err)
	} else if stream := pending.Stream(); stream != nil {
		if err := s.startRead(stream); err != nil {
			s.logger.Warn("could not start read on accepted connection", "err", err)
			stream.Close()
		}
	}

	next := s.ln.Accept()
	if err := s.poller.Arm(next.Op()); err != nil {
		s.logger.Error("could not re-arm accept, stopping stream sink", "err", err)
		return nil, err
	}
	return next, nil
}

// startRead checks out a buffer and puts the connection in flight.
func (s *StreamSink) startRead(stream *transport.Stream) error {
	if err := s.poller.Register(stream.Fd(), stream.Token()); err != nil {
		return err
	}
	stream.OnClose(func() {
		if err := s.poller.Cancel(stream.Fd(), api.ErrClosed); err != nil && !errors.Is(err, api.ErrNotRegistered) {
			s.logger.Debug("could not cancel stream handle", "err", err)
		}
	})
	buf := s.bufs.Acquire()
	pr := stream.Read(buf)
	if err := s.poller.Arm(pr.Op()); err != nil {
		s.poller.Unregister(stream.Fd())
		s.bufs.Release(buf)
		return err
	}
	s.inflight.Add(&flight{token: stream.Token(), stream: stream, buf: buf})
	s.inCount.Add(1)
	return nil
}

// onRead processes one read completion: locate the connection by token,
// hand the payload to the handler, then close the connection and recycle
// its buffer.
func (s *StreamSink) onRead(c api.Completion) {
	fl := s.take(c.Token)
	if fl == nil {
		s.logger.Debug("completion for unknown token", "token", c.Token)
		return
	}
	if err := s.poller.Unregister(fl.stream.Fd()); err != nil {
		s.logger.Debug("could not unregister stream", "err", err)
	}
	if c.Err != nil {
		s.logger.Warn("read failed, discarding connection", "err", c.Err)
	} else {
		s.handler.Handle(fl.buf[:c.Bytes])
	}
	fl.stream.Close()
	s.bufs.Release(fl.buf)
}

// take removes and returns the in-flight entry for token, preserving the
// relative order of the others.
func (s *StreamSink) take(token uintptr) *flight {
	var found *flight
	for i, length := 0, s.inflight.Length(); i < length; i++ {
		fl := s.inflight.Remove().(*flight)
		if found == nil && fl.token == token {
			found = fl
			continue
		}
		s.inflight.Add(fl)
	}
	if found != nil {
		s.inCount.Add(-1)
	}
	return found
}

// teardown closes every in-flight connection and returns its buffer. The
// listener stays open; its owner closes it.
func (s *StreamSink) teardown() {
	for s.inflight.Length() > 0 {
		fl := s.inflight.Remove().(*flight)
		if err := s.poller.Unregister(fl.stream.Fd()); err != nil {
			s.logger.Debug("could not unregister stream during teardown", "err", err)
		}
		fl.stream.Close()
		s.bufs.Release(fl.buf)
		s.inCount.Add(-1)
	}
}
