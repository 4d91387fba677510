package dto

import "quiz-session-service/internal/models"

type CreateRoomRequest struct {
	QuizID     string               `json:"quiz_id" binding:"required"`
	PlayerName string               `json:"player_name"`
	MaxPlayers int                  `json:"max_players"`
	IsPrivate  bool                 `json:"is_private"`
	Password   string               `json:"password"`
	Settings   *models.RoomSettings `json:"settings"`
}

type JoinRoomRequest struct {
	Code       string `json:"code" binding:"required"`
	Password   string `json:"password"`
	PlayerName string `json:"player_name"`
}

type RoomsResponse struct {
	Rooms []*models.Room `json:"rooms"`
}

type ChatHistoryResponse struct {
	Messages []models.ChatMessage `json:"messages"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
