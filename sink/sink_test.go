//go:build linux

package sink_test

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/komorebi-link/api"
	"github.com/momentics/komorebi-link/fake"
	"github.com/momentics/komorebi-link/reactor"
	"github.com/momentics/komorebi-link/sink"
	"github.com/momentics/komorebi-link/transport"
)

// recorder is a NotificationHandler that copies every payload it sees.
type recorder struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recorder) Handle(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.payloads = append(r.payloads, cp)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func (r *recorder) last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.payloads) == 0 {
		return nil
	}
	return r.payloads[len(r.payloads)-1]
}

type fixture struct {
	path   string
	ln     *transport.Listener
	poller *fake.Poller
	pool   *fake.Pool
	rec    *recorder
	sink   *sink.StreamSink
}

func newFixture(t *testing.T, opts ...sink.Option) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sink.sock")
	ln, err := transport.Listen(path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	f := &fixture{
		path:   path,
		ln:     ln,
		poller: fake.NewPoller(),
		pool:   fake.NewPool(1024),
		rec:    &recorder{},
	}
	f.sink = sink.New(ln, f.poller, f.pool, f.rec, opts...)
	go f.sink.Run()

	// The loop arms its first accept before waiting.
	require.Eventually(t, func() bool { return f.poller.Armed(ln.Token()) },
		2*time.Second, 5*time.Millisecond)
	return f
}

// streamToken returns the non-listener token once a read is armed.
func (f *fixture) streamToken(t *testing.T) uintptr {
	t.Helper()
	var token uintptr
	require.Eventually(t, func() bool {
		for _, tok := range f.poller.ArmedTokens() {
			if tok != f.ln.Token() {
				token = tok
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
	return token
}

// deliver runs one full accept-then-read cycle for payload.
func (f *fixture) deliver(t *testing.T, payload []byte) {
	t.Helper()
	before := f.rec.count()

	require.NoError(t, transport.WriteMessage(f.path, payload))
	f.poller.Fire(f.ln.Token())

	f.poller.Fire(f.streamToken(t))
	require.Eventually(t, func() bool { return f.rec.count() > before },
		2*time.Second, 5*time.Millisecond)
}

func TestDeliversPayloadToHandler(t *testing.T) {
	f := newFixture(t)
	defer f.sink.Stop()

	payload := []byte(`{"state":{"monitors":{"focused":0,"elements":[]}}}`)
	f.deliver(t, payload)

	assert.Equal(t, payload, f.rec.last())
}

func TestQueueDrainsAndOneAcceptRemains(t *testing.T) {
	f := newFixture(t)
	defer f.sink.Stop()

	for i := 0; i < 3; i++ {
		f.deliver(t, []byte(`{"cycle":true}`))
	}

	assert.Equal(t, 0, f.sink.InFlight(), "queue returns to empty after each cycle")
	assert.Equal(t, 1, f.poller.ArmedCount(), "exactly one accept outstanding")
	assert.True(t, f.poller.Armed(f.ln.Token()))
	assert.Equal(t, 3, f.rec.count())
}

func TestBufferIsRecycledAfterRead(t *testing.T) {
	f := newFixture(t)
	defer f.sink.Stop()

	f.deliver(t, []byte(`one`))
	stats := f.pool.Stats()
	assert.Equal(t, int64(1), stats.Allocated)
	assert.Equal(t, int64(1), stats.Returned)

	f.deliver(t, []byte(`two`))
	stats = f.pool.Stats()
	assert.Equal(t, int64(1), stats.Allocated, "second cycle reuses the pooled buffer")
	assert.Equal(t, int64(1), stats.Reused)
}

func TestRefreshIntervalClearsPool(t *testing.T) {
	f := newFixture(t, sink.WithRefreshInterval(0))
	defer f.sink.Stop()

	f.deliver(t, []byte(`x`))
	require.Eventually(t, func() bool { return f.pool.Stats().Cleared >= 1 },
		2*time.Second, 5*time.Millisecond)

	// Acquisitions after a clear still succeed via fresh allocation.
	f.deliver(t, []byte(`y`))
	assert.Equal(t, 2, f.rec.count())
}

func TestStopTearsDownInFlightConnections(t *testing.T) {
	f := newFixture(t)

	// Put one connection in flight without completing its read.
	require.NoError(t, transport.WriteMessage(f.path, []byte(`pending`)))
	f.poller.Fire(f.ln.Token())
	f.streamToken(t)
	require.Equal(t, 1, f.sink.InFlight())

	f.sink.Stop()

	select {
	case <-f.sink.Done():
	default:
		t.Fatal("sink not done after Stop")
	}
	assert.Equal(t, 0, f.sink.InFlight())
	assert.Equal(t, int64(1), f.pool.Stats().Returned, "in-flight buffer returned on teardown")
}

func TestListenerCloseStopsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "close.sock")
	ln, err := transport.Listen(path)
	require.NoError(t, err)

	p, err := reactor.NewPoller()
	require.NoError(t, err)
	defer p.Close()

	rec := &recorder{}
	s := sink.New(ln, p, fake.NewPool(1024), rec)
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run() }()

	// One full cycle against the real poller first, so the loop is known
	// to be live and blocked in its wait.
	require.NoError(t, transport.WriteMessage(path, []byte(`ping`)))
	require.Eventually(t, func() bool { return rec.count() == 1 },
		5*time.Second, 5*time.Millisecond)

	require.NoError(t, ln.Close())

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, api.ErrClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("worker still blocked after listener close")
	}
	assert.Equal(t, 0, s.InFlight())
}

func TestWaitErrorExitsLoop(t *testing.T) {
	f := newFixture(t)

	f.poller.FailWait(errors.New("completion queue torn down"))

	select {
	case <-f.sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not exit after wait error")
	}
	assert.Equal(t, 0, f.sink.InFlight())
}
