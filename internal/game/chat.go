package game

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/models"

	"github.com/google/uuid"
)

// chatLog is append-only; only the newest limit messages are retained.
type chatLog struct {
	mu       sync.Mutex
	limit    int
	messages []models.ChatMessage
}

func newChatLog(limit int) *chatLog {
	return &chatLog{limit: limit}
}

// post appends and publishes under one lock so subscribers see log order.
func (c *chatLog) post(msg models.ChatMessage, publish func(models.ChatMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	if c.limit > 0 && len(c.messages) > c.limit {
		c.messages = append([]models.ChatMessage(nil), c.messages[len(c.messages)-c.limit:]...)
	}
	publish(msg)
}

func (c *chatLog) history() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

func (m *Manager) SendChatMessage(ctx context.Context, roomID, playerID, text string) (*models.ChatMessage, error) {
	rt, p, err := m.member(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > m.opts.ChatMaxLength {
		return nil, ErrInvalidMessage
	}

	msg := models.ChatMessage{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Message:    text,
		Type:       constants.ChatTypePlayer,
		Timestamp:  m.clock.Now(),
	}
	m.postChat(rt, msg)
	return &msg, nil
}

func (m *Manager) ChatHistory(ctx context.Context, roomID, playerID string) ([]models.ChatMessage, error) {
	rt, _, err := m.member(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}
	return rt.chat.history(), nil
}

func (m *Manager) member(ctx context.Context, roomID, playerID string) (*roomRuntime, *models.Player, error) {
	rt, err := m.runtime(roomID)
	if err != nil {
		return nil, nil, err
	}
	room, err := m.store.Read(ctx, roomID)
	if err != nil {
		return nil, nil, m.storeError(roomID, err)
	}
	if room.Closed {
		return nil, nil, ErrRoomClosed
	}
	p, ok := room.Players[playerID]
	if !ok {
		return nil, nil, ErrNotAMember
	}
	return rt, p, nil
}

func (m *Manager) postSystemMessage(rt *roomRuntime, text string) {
	m.postChat(rt, models.ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    rt.id,
		Message:   text,
		Type:      constants.ChatTypeSystem,
		Timestamp: m.clock.Now(),
	})
}

func (m *Manager) postChat(rt *roomRuntime, msg models.ChatMessage) {
	rt.chat.post(msg, func(msg models.ChatMessage) {
		rt.bus.Publish(Event{Type: EventChatMessage, RoomID: rt.id, Payload: msg})
	})
}
