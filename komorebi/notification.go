// File: komorebi/notification.go
// Author: momentics <momentics@gmail.com>
//
// Typed view of one komorebi state notification. Each completed socket read
// is assumed to hold exactly one self-delimiting JSON document; komorebi
// sends many more fields than modeled here, all of which are ignored.

package komorebi

import (
	"encoding/json"
	"errors"
	"fmt"
)

// WindowID is the stable OS-level window identifier, the join key between
// komorebi's payloads and the rendering side's tracked windows.
type WindowID int64

// ErrMalformed reports a payload that parsed as JSON but does not carry the
// workspace-state shape this package consumes.
var ErrMalformed = errors.New("malformed komorebi notification")

// Ring mirrors komorebi's ring collections: an element array plus the index
// of the focused element.
type Ring[T any] struct {
	Focused  int `json:"focused"`
	Elements []T `json:"elements"`
}

// FocusedElement returns the element at the focused index, if in bounds.
func (r *Ring[T]) FocusedElement() (T, bool) {
	if r.Focused < 0 || r.Focused >= len(r.Elements) {
		var zero T
		return zero, false
	}
	return r.Elements[r.Focused], true
}

// Notification is the transient parsed view of one incoming payload. It is
// never persisted past one reconciliation cycle.
type Notification struct {
	State State `json:"state"`
}

// State is the workspace topology snapshot.
type State struct {
	Monitors Ring[Monitor] `json:"monitors"`
}

// Monitor holds the workspaces of one physical display.
type Monitor struct {
	Workspaces Ring[Workspace] `json:"workspaces"`
}

// Workspace holds tiled containers, an optional monocle container, and
// floating windows.
type Workspace struct {
	MonocleContainer *Container      `json:"monocle_container"`
	Containers       Ring[Container] `json:"containers"`
	FloatingWindows  []Window        `json:"floating_windows"`
}

// Container is one tile holding a stack of windows.
type Container struct {
	Windows Ring[Window] `json:"windows"`
}

// Window carries the OS window handle.
type Window struct {
	Hwnd WindowID `json:"hwnd"`
}

// ParseNotification decodes one socket payload. It never panics on missing
// fields; a payload that is not valid JSON or does not carry a monitor list
// is a recoverable parse failure of that one message.
func ParseNotification(payload []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	if n.State.Monitors.Elements == nil {
		return nil, fmt.Errorf("%w: no monitors in payload", ErrMalformed)
	}
	return &n, nil
}
