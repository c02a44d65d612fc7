package handler

import (
	"log"
	"net/http"

	"boulder-catalog/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// WebSocketHandler upgrades feed subscribers. The feed is read-only and
// public, like the rest of the catalog API.
type WebSocketHandler struct {
	manager  *websocket.Manager
	upgrader ws.Upgrader
}

func NewWebSocketHandler(manager *websocket.Manager, readBufferSize, writeBufferSize int) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Failed to upgrade connection: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := websocket.NewClient(clientID, r.RemoteAddr, conn, h.manager)

	if !h.manager.Register(client) {
		log.Printf("[WebSocket] Feed stopped, dropping %s", r.RemoteAddr)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
