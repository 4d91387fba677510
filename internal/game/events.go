package game

import (
	"sync"

	"quiz-session-service/internal/models"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventRoomUpdated        EventType = "room_updated"
	EventPhaseChanged       EventType = "phase_changed"
	EventLeaderboardUpdated EventType = "leaderboard_updated"
	EventChatMessage        EventType = "chat_message"
	EventPresenceChanged    EventType = "presence_changed"
	EventRoomClosed         EventType = "room_closed"
)

const subscriptionBuffer = 256

// Event is one message on a room's channel. Version is the room version the
// event was produced from; clients keep the highest version they have seen.
type Event struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id"`
	Version int64     `json:"version"`
	Payload any       `json:"payload,omitempty"`
}

type PhasePayload struct {
	Status         string `json:"status"`
	Phase          string `json:"phase"`
	QuestionIndex  int    `json:"question_index"`
	TotalQuestions int    `json:"total_questions"`
	TimeRemaining  int    `json:"time_remaining"`
	Paused         bool   `json:"paused"`
	Skipped        bool   `json:"skipped,omitempty"`
}

type LeaderboardPayload struct {
	Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
	Final       bool                      `json:"final,omitempty"`
}

type PresencePayload struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	Action   string `json:"action"`
	Online   bool   `json:"online"`
	HostID   string `json:"host_id"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type Subscription struct {
	C      <-chan Event
	cancel func()
}

func (s *Subscription) Close() {
	s.cancel()
}

// Broadcaster fans room events out to subscribers without blocking the publisher.
type Broadcaster struct {
	roomID string
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func NewBroadcaster(roomID string) *Broadcaster {
	return &Broadcaster{
		roomID: roomID,
		subs:   make(map[int]chan Event),
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			log.Warn().Str("room_id", b.roomID).Int("subscriber", id).Str("event", string(e.Type)).Msg("Subscriber buffer full, dropping event")
		}
	}
}

func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriptionBuffer)
	if b.closed {
		close(ch)
		return &Subscription{C: ch, cancel: func() {}}
	}

	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return &Subscription{
		C: ch,
		cancel: func() {
			once.Do(func() {
				b.mu.Lock()
				defer b.mu.Unlock()
				if c, ok := b.subs[id]; ok {
					delete(b.subs, id)
					close(c)
				}
			})
		},
	}
}

// Close ends every subscription; their channels are closed after pending events.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
