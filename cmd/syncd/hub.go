package main

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/prudhvinik1/hoodsync/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsHub pushes change frames to every connected client. This is the
// server half of the change feed consumed by realtime.DialFeed.
type wsHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
	log     *logrus.Entry
}

func newWSHub(logger *logrus.Logger) *wsHub {
	return &wsHub{
		clients: make(map[*websocket.Conn]chan []byte),
		log:     logger.WithField("component", "ws-hub"),
	}
}

type changeFrame struct {
	ResourceType string          `json:"resourceType"`
	Type         string          `json:"type"`
	Data         models.Resource `json:"data"`
}

// Broadcast sends one change to all clients; slow clients are dropped.
func (h *wsHub) Broadcast(resourceType, eventType string, data models.Resource) {
	raw, err := json.Marshal(changeFrame{ResourceType: resourceType, Type: eventType, Data: data})
	if err != nil {
		h.log.WithError(err).Warn("failed to marshal change frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.clients {
		select {
		case send <- raw:
		default:
			close(send)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// Handle upgrades the request and streams broadcasts until the client
// disconnects.
func (h *wsHub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	send := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	h.log.Info("feed client connected")

	go func() {
		defer conn.Close()
		for raw := range send {
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}()

	// Drain reads to detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		close(send)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
	h.log.Info("feed client disconnected")
}
