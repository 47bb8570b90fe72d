//go:build linux

package transport_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/komorebi-link/api"
	"github.com/momentics/komorebi-link/reactor"
	"github.com/momentics/komorebi-link/transport"
)

func sockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "link.sock")
}

// waitOne polls until one completion arrives or the deadline passes.
func waitOne(t *testing.T, p api.Poller) api.Completion {
	t.Helper()
	batch := make([]api.Completion, 8)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := p.Wait(batch, 100*time.Millisecond)
		require.NoError(t, err)
		if n > 0 {
			return batch[0]
		}
	}
	t.Fatal("no completion before deadline")
	return api.Completion{}
}

func TestListenRemovesStaleSocketFile(t *testing.T) {
	path := sockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	ln, err := transport.Listen(path)
	require.NoError(t, err)
	defer ln.Close()

	// The stale regular file was replaced by a socket we can connect to.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSocket)
}

func TestListenRejectsOverlongPath(t *testing.T) {
	long := filepath.Join(t.TempDir(), strings.Repeat("a", 120))
	_, err := transport.Listen(long)
	assert.Error(t, err)
}

func TestOverlappedAcceptReadRoundTrip(t *testing.T) {
	path := sockPath(t)

	ln, err := transport.Listen(path)
	require.NoError(t, err)
	defer ln.Close()

	p, err := reactor.NewPoller()
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Register(ln.Fd(), ln.Token()))
	pa := ln.Accept()
	require.NoError(t, p.Arm(pa.Op()))

	payload := []byte(`{"state":{"monitors":{"focused":0,"elements":[]}}}`)
	done := make(chan error, 1)
	go func() {
		done <- transport.WriteMessage(path, payload)
	}()

	// Accept completes with the listener's token.
	c := waitOne(t, p)
	require.NoError(t, c.Err)
	require.Equal(t, ln.Token(), c.Token)
	stream := pa.Stream()
	require.NotNil(t, stream)
	defer stream.Close()

	// Queue up the read and wait for its completion.
	require.NoError(t, p.Register(stream.Fd(), stream.Token()))
	buf := make([]byte, 1024)
	pr := stream.Read(buf)
	require.NoError(t, p.Arm(pr.Op()))

	c = waitOne(t, p)
	require.NoError(t, c.Err)
	assert.Equal(t, stream.Token(), c.Token)
	assert.Equal(t, payload, buf[:c.Bytes])

	require.NoError(t, <-done)
	require.NoError(t, p.Unregister(stream.Fd()))
}

func TestSynchronousWriteReportsFullLength(t *testing.T) {
	path := sockPath(t)

	ln, err := transport.Listen(path)
	require.NoError(t, err)
	defer ln.Close()

	p, err := reactor.NewPoller()
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Register(ln.Fd(), ln.Token()))
	pa := ln.Accept()
	require.NoError(t, p.Arm(pa.Op()))

	peer, err := transport.Connect(path)
	require.NoError(t, err)
	defer peer.Close()

	n, err := peer.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	path := sockPath(t)

	ln, err := transport.Listen(path)
	require.NoError(t, err)

	peer, err := transport.Connect(path)
	require.NoError(t, err)

	require.NoError(t, peer.Close())
	assert.NoError(t, peer.Close(), "second close must be a no-op")

	require.NoError(t, ln.Close())
	assert.NoError(t, ln.Close())
}

func TestConnectToMissingSocketFails(t *testing.T) {
	_, err := transport.Connect(sockPath(t))
	assert.Error(t, err)
}
