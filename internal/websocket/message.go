package websocket

import (
	"encoding/json"

	"quiz-session-service/internal/game"
)

type MessageType string

const (
	// Client -> Server
	MessageTypeStartGame      MessageType = "start_game"
	MessageTypeSubmitAnswer   MessageType = "submit_answer"
	MessageTypeSetReady       MessageType = "set_ready"
	MessageTypePause          MessageType = "pause"
	MessageTypeResume         MessageType = "resume"
	MessageTypeSkipQuestion   MessageType = "skip_question"
	MessageTypeNextQuestion   MessageType = "next_question"
	MessageTypeEndGame        MessageType = "end_game"
	MessageTypeKickPlayer     MessageType = "kick_player"
	MessageTypeUpdateSettings MessageType = "update_settings"
	MessageTypeCloseRoom      MessageType = "close_room"
	MessageTypeLeaveRoom      MessageType = "leave_room"
	MessageTypeChat           MessageType = "chat"
	MessageTypePing           MessageType = "ping"

	// Server -> Client
	MessageTypeConnected          MessageType = "connected"
	MessageTypeRoomUpdated        MessageType = MessageType(game.EventRoomUpdated)
	MessageTypePhaseChanged       MessageType = MessageType(game.EventPhaseChanged)
	MessageTypeLeaderboardUpdated MessageType = MessageType(game.EventLeaderboardUpdated)
	MessageTypeChatMessage        MessageType = MessageType(game.EventChatMessage)
	MessageTypePresenceChanged    MessageType = MessageType(game.EventPresenceChanged)
	MessageTypeRoomClosed         MessageType = MessageType(game.EventRoomClosed)
	MessageTypeAnswerResult       MessageType = "answer_result"
	MessageTypeError              MessageType = "error"
	MessageTypePong               MessageType = "pong"
)

// Message is what the server sends. Version is set for room events.
type Message struct {
	Type    MessageType `json:"type"`
	Version int64       `json:"version,omitempty"`
	Payload any         `json:"payload,omitempty"`
}

// Command is what a client sends; the payload is decoded per type.
type Command struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SubmitAnswerPayload struct {
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
	TimeRemaining int    `json:"time_remaining"`
}

type SetReadyPayload struct {
	Ready bool `json:"ready"`
}

type KickPlayerPayload struct {
	PlayerID string `json:"player_id"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type ConnectedPayload struct {
	PlayerID string `json:"player_id"`
	*game.Resync
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
