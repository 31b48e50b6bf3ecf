package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"welcome"}`, string(msg))
	return ws
}

func TestPublishReachesClient(t *testing.T) {
	hub := NewHub(nil)
	ws := dialHub(t, hub)
	assert.Equal(t, 1, hub.Stats().WSClients)

	hub.Publish(Event{Type: LoadFinished, RunID: "r1", Category: "recalls", Count: 12})

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, LoadFinished, ev.Type)
	assert.Equal(t, "r1", ev.RunID)
	assert.Equal(t, 12, ev.Count)
	assert.False(t, ev.At.IsZero())
}

func TestLastAndNilHub(t *testing.T) {
	var nilHub *Hub
	nilHub.Publish(Event{Type: RunStarted})

	hub := NewHub(nil)
	_, ok := hub.Last()
	assert.False(t, ok)

	hub.Publish(Event{Type: RunStarted, RunID: "a"})
	hub.Publish(Event{Type: RunFinished, RunID: "a", Status: "succeeded"})
	last, ok := hub.Last()
	require.True(t, ok)
	assert.Equal(t, RunFinished, last.Type)
	assert.Equal(t, "succeeded", last.Status)
}

func TestClientRemovedOnClose(t *testing.T) {
	hub := NewHub(nil)
	ws := dialHub(t, hub)
	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool { return hub.Stats().WSClients == 0 }, 2*time.Second, 10*time.Millisecond)
}
