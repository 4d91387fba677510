package handlers

import (
	"context"
	"net/http"

	"quiz-session-service/internal/dto"
	"quiz-session-service/internal/game"
	"quiz-session-service/internal/middleware"
	"quiz-session-service/internal/models"

	"github.com/gin-gonic/gin"
)

type RoomService interface {
	CreateRoom(ctx context.Context, cfg game.RoomConfig, hostID, hostName string) (*models.Room, error)
	JoinRoom(ctx context.Context, code, password, playerID, playerName string) (*models.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	ListOpenRooms(ctx context.Context) ([]*models.Room, error)
	ChatHistory(ctx context.Context, roomID, playerID string) ([]models.ChatMessage, error)
}

type RoomHandler struct {
	rooms RoomService
}

func NewRoomHandler(rooms RoomService) *RoomHandler {
	return &RoomHandler{
		rooms: rooms,
	}
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg := game.RoomConfig{
		QuizID:     req.QuizID,
		MaxPlayers: req.MaxPlayers,
		IsPrivate:  req.IsPrivate,
		Password:   req.Password,
	}
	if req.Settings != nil {
		cfg.Settings = *req.Settings
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), cfg, c.GetString(middleware.ContextUserID), playerName(c, req.PlayerName))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req dto.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.JsonError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	room, err := h.rooms.JoinRoom(c.Request.Context(), req.Code, req.Password, c.GetString(middleware.ContextUserID), playerName(c, req.PlayerName))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListOpenRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.RoomsResponse{Rooms: rooms})
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	if err := h.rooms.LeaveRoom(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Left room"})
}

func (h *RoomHandler) ChatHistory(c *gin.Context) {
	messages, err := h.rooms.ChatHistory(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ChatHistoryResponse{Messages: messages})
}

func playerName(c *gin.Context, requested string) string {
	if requested != "" {
		return requested
	}
	return c.GetString(middleware.ContextUserName)
}
