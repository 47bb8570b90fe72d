// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport implements the connection-oriented unix domain socket
// layer of the pipeline: non-blocking accept and read whose completion is
// reported through the reactor, plus synchronous connect and write for
// peers producing traffic. Tokens are the raw socket descriptors, which are
// unique among live handles.
package transport
