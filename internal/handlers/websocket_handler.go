package handlers

import (
	"net/http"
	"slices"

	"quiz-session-service/internal/dto"
	"quiz-session-service/internal/game"
	"quiz-session-service/internal/middleware"
	ws "quiz-session-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	rooms    RoomService
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(hub *ws.Hub, rooms RoomService, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWebSocket attaches a member of the room to its live channel.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	roomID := c.Query("room_id")
	if roomID == "" {
		dto.JsonError(c, http.StatusBadRequest, "Missing room_id")
		return
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := room.Players[userID]; !ok {
		respondError(c, game.ErrNotAMember)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Str("player_id", userID).Msg("Failed to upgrade connection")
		return
	}

	h.hub.Attach(conn, roomID, userID)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
