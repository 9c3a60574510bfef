package handlers

import (
	"net/http"

	"github.com/google/uuid"

	ws "github.com/biorecords/biorecords/internal/server/websocket"
)

// HandleWebSocket handles WebSocket connections at /updates/ws. Clients
// receive a record.created, record.updated or record.deleted message for
// every committed change.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(uuid.NewString(), h.wsHub, conn)
	h.logger.Debug().
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket client connected")
	client.Serve()
}

// HandleSSE handles Server-Sent Events at /updates/stream.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseBroadcaster.ServeHTTP(w, r)
}
