// File: komorebi/focus.go
// Author: momentics <momentics@gmail.com>
//
// Focus-state reconciliation. The tracker holds the last-known window kind
// per window and turns each workspace snapshot into minimal, deduplicated
// change events for the rendering side.

package komorebi

import (
	"sync"

	"github.com/charmbracelet/log"
)

// WindowKind classifies a window's role in the current layout. Exactly one
// kind applies per tracked window at any time.
type WindowKind int

const (
	// Unfocused is the default for unknown and non-foreground windows.
	Unfocused WindowKind = iota
	// Single is a focused container holding one window.
	Single
	// Stack is a focused container holding more than one window.
	Stack
	// Monocle is the window of a maximized monocle container.
	Monocle
	// Floating is a foreground window outside the tiling tree.
	Floating
)

// String implements fmt.Stringer.
func (k WindowKind) String() string {
	switch k {
	case Single:
		return "single"
	case Stack:
		return "stack"
	case Monocle:
		return "monocle"
	case Floating:
		return "floating"
	default:
		return "unfocused"
	}
}

// plainKind reports whether k is in the {Single, Unfocused} pair, which the
// rendering side cannot distinguish; transitions within the pair are
// suppressed.
func plainKind(k WindowKind) bool { return k == Single || k == Unfocused }

// changeBuffer bounds the change event stream. The consumer redraws on each
// event, so dropping under backlog only delays a recolor by one snapshot.
const changeBuffer = 64

// FocusTracker is the diff engine. Apply runs on the sink's worker
// goroutine, the sole writer; Kind and Snapshot may be called from any
// goroutine. Updates are applied atomically per cycle, so readers never
// observe a partially-applied snapshot.
type FocusTracker struct {
	mu       sync.Mutex
	state    map[WindowID]WindowKind
	tracked  map[WindowID]struct{}
	trackAll bool

	changes chan WindowID
	notify  func(WindowID)
	logger  *log.Logger
}

// TrackerOption customizes a FocusTracker.
type TrackerOption func(*FocusTracker)

// WithNotify installs a callback invoked for each change event, in addition
// to the Changes stream. It runs on the worker goroutine; keep it short.
func WithNotify(fn func(WindowID)) TrackerOption {
	return func(t *FocusTracker) { t.notify = fn }
}

// WithTrackAll makes every window seen in a snapshot eligible for change
// events, without explicit Track calls. Diagnostic consumers use this.
func WithTrackAll() TrackerOption {
	return func(t *FocusTracker) { t.trackAll = true }
}

// WithTrackerLogger overrides the tracker's logger.
func WithTrackerLogger(l *log.Logger) TrackerOption {
	return func(t *FocusTracker) { t.logger = l }
}

// NewFocusTracker creates an empty tracker.
func NewFocusTracker(opts ...TrackerOption) *FocusTracker {
	t := &FocusTracker{
		state:   make(map[WindowID]WindowKind),
		tracked: make(map[WindowID]struct{}),
		changes: make(chan WindowID, changeBuffer),
		logger:  log.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Track registers windows the rendering side decorates; only tracked
// windows produce change events.
func (t *FocusTracker) Track(ids ...WindowID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		t.tracked[id] = struct{}{}
	}
}

// Untrack removes a window from the tracked set and drops its stored kind.
func (t *FocusTracker) Untrack(id WindowID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, id)
	delete(t.state, id)
}

// Kind returns the current kind for id, defaulting to Unfocused for
// unknown windows.
func (t *FocusTracker) Kind(id WindowID) WindowKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[id]
}

// Snapshot returns a copy of the full focus state.
func (t *FocusTracker) Snapshot() map[WindowID]WindowKind {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[WindowID]WindowKind, len(t.state))
	for id, k := range t.state {
		out[id] = k
	}
	return out
}

// Changes is the stream of windows whose kind changed. Events are dropped
// with a warning if the consumer falls more than changeBuffer events
// behind; the WithNotify callback is the lossless path.
func (t *FocusTracker) Changes() <-chan WindowID { return t.changes }

// Apply reconciles one workspace snapshot against the stored focus state
// and emits a change event per tracked window whose kind changed, skipping
// transitions strictly within the {Single, Unfocused} pair.
//
// Only the focused workspace of each monitor is inspected, and within each
// container only the currently-focused sub-window is reclassified; sibling
// windows keep their previous kind until they become focused. That matches
// komorebi's own border handling, surprising as the stale siblings are.
func (t *FocusTracker) Apply(n *Notification, foreground WindowID) {
	t.mu.Lock()

	next := make(map[WindowID]WindowKind, len(t.state))
	for id, k := range t.state {
		next[id] = k
	}
	classify(next, n, foreground)

	prev := t.state
	t.state = next

	var changed []WindowID
	if t.trackAll {
		for id := range union(prev, next) {
			if kindChanged(prev[id], next[id]) {
				changed = append(changed, id)
			}
		}
	} else {
		for id := range t.tracked {
			if kindChanged(prev[id], next[id]) {
				changed = append(changed, id)
			}
		}
	}
	t.mu.Unlock()

	for _, id := range changed {
		t.emit(id)
	}
}

// classify merges one snapshot's classifications into next. Only windows
// present in the snapshot are touched.
func classify(next map[WindowID]WindowKind, n *Notification, foreground WindowID) {
	focusedMonitor := n.State.Monitors.Focused

	for monitorIdx, m := range n.State.Monitors.Elements {
		ws, ok := m.Workspaces.FocusedElement()
		if !ok {
			continue
		}

		// The monocle container holds a single maximized window.
		if mc := ws.MonocleContainer; mc != nil && len(mc.Windows.Elements) > 0 {
			kind := Monocle
			if monitorIdx != focusedMonitor {
				kind = Unfocused
			}
			next[mc.Windows.Elements[0].Hwnd] = kind
		}

		for containerIdx, c := range ws.Containers.Elements {
			w, ok := c.Windows.FocusedElement()
			if !ok {
				continue
			}
			var kind WindowKind
			switch {
			case containerIdx != ws.Containers.Focused,
				monitorIdx != focusedMonitor,
				w.Hwnd != foreground:
				kind = Unfocused
			case len(c.Windows.Elements) > 1:
				kind = Stack
			default:
				kind = Single
			}
			next[w.Hwnd] = kind
		}

		for _, w := range ws.FloatingWindows {
			kind := Unfocused
			if w.Hwnd == foreground {
				kind = Floating
			}
			next[w.Hwnd] = kind
		}
	}
}

// kindChanged applies the suppression rule: a transition strictly within
// {Single, Unfocused} never notifies, any transition touching the other
// kinds does.
func kindChanged(prev, next WindowKind) bool {
	if prev == next {
		return false
	}
	if plainKind(prev) && plainKind(next) {
		return false
	}
	return true
}

func union(a, b map[WindowID]WindowKind) map[WindowID]struct{} {
	out := make(map[WindowID]struct{}, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

func (t *FocusTracker) emit(id WindowID) {
	if t.notify != nil {
		t.notify(id)
	}
	select {
	case t.changes <- id:
	default:
		t.logger.Warn("change stream full, dropping event", "hwnd", id)
	}
}
