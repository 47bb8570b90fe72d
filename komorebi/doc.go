// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package komorebi consumes workspace-state notifications from the komorebi
// window manager: it deserializes each socket payload into a workspace
// snapshot, reconciles it against the last-known focus state, and emits
// minimal window-kind change events for the rendering side.
package komorebi
