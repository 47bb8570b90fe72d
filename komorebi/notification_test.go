package komorebi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/komorebi-link/komorebi"
)

const sampleNotification = `{
  "state": {
    "monitors": {
      "focused": 0,
      "elements": [
        {
          "workspaces": {
            "focused": 0,
            "elements": [
              {
                "monocle_container": null,
                "containers": {
                  "focused": 0,
                  "elements": [
                    {"windows": {"focused": 0, "elements": [{"hwnd": 100}, {"hwnd": 101}]}}
                  ]
                },
                "floating_windows": [{"hwnd": 300}]
              }
            ]
          }
        }
      ]
    }
  }
}`

func TestParseNotification(t *testing.T) {
	n, err := komorebi.ParseNotification([]byte(sampleNotification))
	require.NoError(t, err)

	require.Len(t, n.State.Monitors.Elements, 1)
	assert.Equal(t, 0, n.State.Monitors.Focused)

	ws, ok := n.State.Monitors.Elements[0].Workspaces.FocusedElement()
	require.True(t, ok)
	assert.Nil(t, ws.MonocleContainer)
	require.Len(t, ws.Containers.Elements, 1)

	w, ok := ws.Containers.Elements[0].Windows.FocusedElement()
	require.True(t, ok)
	assert.Equal(t, komorebi.WindowID(100), w.Hwnd)

	require.Len(t, ws.FloatingWindows, 1)
	assert.Equal(t, komorebi.WindowID(300), ws.FloatingWindows[0].Hwnd)
}

func TestParseNotificationIgnoresUnknownFields(t *testing.T) {
	payload := `{"state": {"has_been_modified": true, "monitors": {"focused": 0, "elements": [{"name": "DISPLAY1", "workspaces": {"focused": 0, "elements": []}}]}}}`
	n, err := komorebi.ParseNotification([]byte(payload))
	require.NoError(t, err)
	assert.Len(t, n.State.Monitors.Elements, 1)
}

func TestParseNotificationRejectsInvalidJSON(t *testing.T) {
	_, err := komorebi.ParseNotification([]byte(`{"state": {`))
	assert.Error(t, err)

	_, err = komorebi.ParseNotification(nil)
	assert.Error(t, err)
}

func TestParseNotificationRejectsForeignSchema(t *testing.T) {
	_, err := komorebi.ParseNotification([]byte(`{"event": {"type": "FocusChange"}}`))
	assert.ErrorIs(t, err, komorebi.ErrMalformed)
}

func TestFocusedElementOutOfBounds(t *testing.T) {
	r := komorebi.Ring[komorebi.Window]{Focused: 3, Elements: []komorebi.Window{{Hwnd: 1}}}
	_, ok := r.FocusedElement()
	assert.False(t, ok)

	r = komorebi.Ring[komorebi.Window]{Focused: -1, Elements: []komorebi.Window{{Hwnd: 1}}}
	_, ok = r.FocusedElement()
	assert.False(t, ok)
}
