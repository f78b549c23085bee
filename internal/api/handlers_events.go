package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GetEvents handles GET /v1/events: a websocket stream of committed
// transitions. The stream is push-only; client frames are drained so close
// and ping frames keep being processed.
func (h *handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake so a commit racing the connect is
	// still delivered.
	events, cancel := h.hub.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
