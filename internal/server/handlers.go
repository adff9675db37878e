package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sachinkaru123/inventory-bridge/internal/errors"
	"github.com/sachinkaru123/inventory-bridge/internal/events"
)

// clientRequest is the only inbound frame clients send: a room membership
// change. Everything else the bridge pushes.
type clientRequest struct {
	Action string `json:"action"`
}

type roomAction struct {
	join bool
	room events.Room
}

var clientActions = map[string]roomAction{
	"join-inventory-updates":  {join: true, room: events.RoomInventoryUpdates},
	"join-inventory-alerts":   {join: true, room: events.RoomInventoryAlerts},
	"leave-inventory-updates": {join: false, room: events.RoomInventoryUpdates},
	"leave-inventory-alerts":  {join: false, room: events.RoomInventoryAlerts},
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is checked in the handler so rejections flow through the
	// structured error middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleWebSocket(c echo.Context) error {
	// Non-browser clients send no Origin header
	if origin := c.Request().Header.Get("Origin"); origin != "" && !s.config.AllowsOrigin(origin) {
		return errors.ForbiddenError("origin not allowed")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake failure response
		slog.InfoContext(c.Request().Context(), "WebSocket upgrade rejected", "error", err)
		return nil
	}

	clientID := uuid.New()
	if err := s.bridge.Register(clientID, conn); err != nil {
		// Connection already closed by the bridge
		slog.WarnContext(c.Request().Context(), "Failed to register client", "client_id", clientID.String(), "error", err)
		return nil
	}

	// Read pump (blocks until disconnect)
	s.readPump(clientID, conn)

	s.bridge.Unregister(clientID)
	return nil
}

// readPump handles inbound client frames until the connection drops.
// Malformed frames and unknown actions are logged and ignored; they never
// terminate the connection.
func (s *Server) readPump(clientID uuid.UUID, conn *websocket.Conn) {
	logger := slog.With("client_id", clientID.String())

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req clientRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			logger.Warn("Ignoring malformed client frame", "error", err)
			continue
		}

		action, ok := clientActions[req.Action]
		if !ok {
			logger.Warn("Ignoring unknown client action", "action", req.Action)
			continue
		}

		if action.join {
			s.bridge.Join(clientID, action.room)
		} else {
			s.bridge.Leave(clientID, action.room)
		}
	}
}
