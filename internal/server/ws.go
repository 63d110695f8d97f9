package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// PredictionsHandler pushes live predictions to websocket clients.
type PredictionsHandler struct {
	hub *Hub
}

// NewPredictionsHandler creates a PredictionsHandler reading from hub.
func NewPredictionsHandler(hub *Hub) *PredictionsHandler {
	return &PredictionsHandler{hub: hub}
}

// ServeHTTP upgrades the connection and writes one text message per
// prediction until the client disconnects.
func (h *PredictionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	preds, cancel := h.hub.subscribePredictions()
	defer cancel()

	// The reader only notices the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg := <-preds:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
