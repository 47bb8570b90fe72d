// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the contracts shared by the komorebi-link pipeline:
// completion pollers, pending I/O operations, receive-buffer pools, and
// notification handlers. Implementations live in reactor, pool, transport,
// and fake; this package stays import-free.
package api
