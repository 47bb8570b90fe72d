// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package sink implements the single-threaded event loop that drains the
// completion poller: accepts, one-shot reads, buffer-pool recycling, and
// ordered handler dispatch.
package sink
