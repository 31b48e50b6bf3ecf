package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"recallwatch/internal/logging"
)

const writeWait = 2 * time.Second

// Hub fans run events out to connected websocket clients. A client whose
// write fails is dropped.
type Hub struct {
	mu        sync.Mutex
	wsClients map[*websocket.Conn]struct{}
	last      *Event
	log       logrus.FieldLogger
}

type Stats struct {
	WSClients int `json:"ws_clients"`
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		wsClients: make(map[*websocket.Conn]struct{}),
		log:       logging.OrDiscard(log),
	}
}

// AddWS registers ws and sends it the welcome frame. Holding the lock across
// the write keeps it ahead of any published event.
func (h *Hub) AddWS(ws *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wsClients[ws] = struct{}{}
	return ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome"}`))
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish sends ev to every client. A nil Hub discards events.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &ev

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.WithError(err).Debug("dropping websocket client")
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

// Last returns the most recently published event, if any.
func (h *Hub) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Event{}, false
	}
	return *h.last, true
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{WSClients: len(h.wsClients)}
}
