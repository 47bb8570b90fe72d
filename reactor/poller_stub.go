//go:build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a completion poller backend.

package reactor

import (
	"github.com/momentics/komorebi-link/api"
)

// NewPoller reports that no poller backend exists on this platform.
func NewPoller() (api.Poller, error) {
	return nil, api.ErrNotSupported
}
