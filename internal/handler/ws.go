package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/efreitasn/papertrade/internal/stream"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades GET /ws and hands the connection to the hub.
type WSHandler struct {
	hub      *stream.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a WSHandler that accepts browser connections only
// from the given origins. "*" allows any origin.
func NewWSHandler(hub *stream.Hub, origins []string, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
		logger: logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	stream.NewConn(ws, h.hub, h.logger).Serve()
}
