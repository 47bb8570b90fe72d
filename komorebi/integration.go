// File: komorebi/integration.go
// Author: momentics <momentics@gmail.com>
//
// Integration is the session object tying the pipeline together: it owns
// the listener, the completion poller, the buffer pool, the stream sink,
// and the focus tracker, and is constructed and destroyed with the
// integration's lifecycle. Collaborators receive it by reference; nothing
// here is a process-wide singleton.

package komorebi

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/momentics/komorebi-link/api"
	"github.com/momentics/komorebi-link/config"
	"github.com/momentics/komorebi-link/pool"
	"github.com/momentics/komorebi-link/reactor"
	"github.com/momentics/komorebi-link/sink"
	"github.com/momentics/komorebi-link/transport"
)

// ForegroundFunc reports the OS foreground window at reconciliation time.
// The query is owned by the rendering side, so it is injected.
type ForegroundFunc func() WindowID

// Integration is one live komorebi subscription. Start failures disable the
// integration only; the host process continues without it.
type Integration struct {
	cfg        *config.Config
	logger     *log.Logger
	tracker    *FocusTracker
	foreground ForegroundFunc

	ln     *transport.Listener
	poller api.Poller
	bufs   api.BytePool
	sink   *sink.StreamSink

	stopOnce sync.Once
}

// IntegrationOption customizes an Integration.
type IntegrationOption func(*Integration)

// WithForeground installs the foreground-window query.
func WithForeground(fn ForegroundFunc) IntegrationOption {
	return func(ig *Integration) { ig.foreground = fn }
}

// WithLogger overrides the integration's logger.
func WithLogger(l *log.Logger) IntegrationOption {
	return func(ig *Integration) { ig.logger = l }
}

// WithTracker substitutes a pre-configured focus tracker.
func WithTracker(t *FocusTracker) IntegrationOption {
	return func(ig *Integration) { ig.tracker = t }
}

// NewIntegration builds an idle session from cfg.
func NewIntegration(cfg *config.Config, opts ...IntegrationOption) *Integration {
	ig := &Integration{
		cfg:        cfg,
		logger:     log.Default(),
		foreground: func() WindowID { return 0 },
	}
	for _, o := range opts {
		o(ig)
	}
	if ig.tracker == nil {
		ig.tracker = NewFocusTracker(WithTrackerLogger(ig.logger))
	}
	return ig
}

// Tracker exposes the focus state to the rendering side.
func (ig *Integration) Tracker() *FocusTracker { return ig.tracker }

// Start binds the subscription socket fresh, subscribes with komorebi's
// CLI, and launches the sink's worker goroutine. On any error the partially
// started session is torn down and the error returned; nothing keeps
// running.
func (ig *Integration) Start() error {
	socketPath, err := ig.cfg.SocketPath()
	if err != nil {
		return fmt.Errorf("resolve socket path: %w", err)
	}

	ln, err := transport.Listen(socketPath)
	if err != nil {
		return fmt.Errorf("bind subscription socket: %w", err)
	}

	poller, err := reactor.NewPoller()
	if err != nil {
		ln.Close()
		return fmt.Errorf("create completion poller: %w", err)
	}

	if err := ig.subscribe(); err != nil {
		ln.Close()
		poller.Close()
		return err
	}

	ig.ln = ln
	ig.poller = poller
	ig.bufs = pool.New(ig.cfg.BufferSize)
	ig.sink = sink.New(ln, poller, ig.bufs, api.HandlerFunc(ig.handle),
		sink.WithBatchSize(ig.cfg.BatchSize),
		sink.WithRefreshInterval(ig.cfg.RefreshInterval.Std()),
		sink.WithLogger(ig.logger),
	)

	go func() {
		// Run logs its own exit reason; a failed loop simply means the
		// integration has stopped.
		_ = ig.sink.Run()
	}()

	ig.logger.Info("komorebi integration started", "socket", socketPath)
	return nil
}

// subscribe invokes the workspace manager's CLI to register the socket as a
// notification subscriber. A non-zero exit status aborts the integration.
func (ig *Integration) subscribe() error {
	argv := append([]string{}, ig.cfg.SubscribeCommand...)
	if len(argv) == 0 {
		return fmt.Errorf("subscribe command is empty")
	}
	argv = append(argv, ig.cfg.SocketName)

	out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("subscribe command %v failed: %w (output: %s)", argv, err, out)
	}
	ig.logger.Debug("subscribed to komorebi notifications", "command", argv)
	return nil
}

// handle consumes one completed read on the worker goroutine. A payload
// that fails to parse is logged and dropped without touching focus state.
func (ig *Integration) handle(payload []byte) {
	n, err := ParseNotification(payload)
	if err != nil {
		ig.logger.Error("could not parse notification payload", "err", err, "bytes", len(payload))
		return
	}
	ig.tracker.Apply(n, ig.foreground())
}

// Stop tears the session down exactly once: the sink drains its in-flight
// handles, then the listener and poller close.
func (ig *Integration) Stop() {
	ig.stopOnce.Do(func() {
		if ig.sink != nil {
			ig.sink.Stop()
		}
		if ig.ln != nil {
			ig.ln.Close()
		}
		if ig.poller != nil {
			ig.poller.Close()
		}
		ig.logger.Info("komorebi integration stopped")
	})
}
