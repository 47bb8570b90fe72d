// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the completion poller backing the notification
// pipeline: a single OS event queue that socket handles register against and
// that a dedicated worker blocks on. The Linux backend emulates completion
// semantics over epoll by finishing armed operations at wait time, so
// callers see IOCP-style {token, bytes} completions regardless of backend.
package reactor
