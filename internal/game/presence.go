package game

import (
	"context"
	"time"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/models"

	"github.com/rs/zerolog/log"
)

// Resync is everything a (re)connecting client needs to render the room.
type Resync struct {
	Room       *models.Room         `json:"room"`
	Chat       []models.ChatMessage `json:"chat"`
	ServerTime time.Time            `json:"server_time"`
}

// Connect marks the player online and cancels a pending grace expiry.
func (m *Manager) Connect(ctx context.Context, roomID, playerID string) (*Resync, error) {
	var runtime *roomRuntime

	room, err := m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		runtime = rt
		p, ok := r.Players[playerID]
		if !ok {
			return ErrNotAMember
		}
		fx.cancelGrace = append(fx.cancelGrace, playerID)
		if p.IsOnline {
			return errNoChange
		}

		returning := p.DisconnectedAt != nil
		p.IsOnline = true
		p.DisconnectedAt = nil

		fx.emit(EventPresenceChanged, PresencePayload{PlayerID: p.ID, Name: p.Name, Action: constants.ActionReconnected, Online: true, HostID: r.HostID})
		if returning {
			fx.notice("%s reconnected", p.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Resync{
		Room:       room,
		Chat:       runtime.chat.history(),
		ServerTime: m.clock.Now(),
	}, nil
}

// Disconnect marks the player offline. The player keeps their seat and score
// until the grace period runs out.
func (m *Manager) Disconnect(ctx context.Context, roomID, playerID string) error {
	_, err := m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		p, ok := r.Players[playerID]
		if !ok || !p.IsOnline {
			return errNoChange
		}

		now := m.clock.Now()
		p.IsOnline = false
		p.DisconnectedAt = &now

		fx.emit(EventPresenceChanged, PresencePayload{PlayerID: p.ID, Name: p.Name, Action: constants.ActionDisconnected, HostID: r.HostID})
		fx.notice("%s disconnected", p.Name)
		fx.startGrace = append(fx.startGrace, playerID)

		m.checkAllAnswered(rt, r, fx)
		return nil
	})
	return err
}

func (m *Manager) startGrace(rt *roomRuntime, playerID string) {
	t := m.clock.AfterFunc(m.opts.GracePeriod, func() {
		m.expireGrace(rt.id, playerID)
	})
	rt.setGrace(playerID, t)
}

func (m *Manager) expireGrace(roomID, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	_, err := m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		p, ok := r.Players[playerID]
		if !ok || p.IsOnline || p.DisconnectedAt == nil {
			return errNoChange
		}
		if m.clock.Now().Sub(*p.DisconnectedAt) < m.opts.GracePeriod {
			return errNoChange
		}
		m.removePlayer(rt, r, p, constants.ActionLeft, fx)
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("room_id", roomID).Str("player_id", playerID).Msg("Grace expiry skipped")
		return
	}

	log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("Grace period expired")
}
