package game

import (
	"context"
	"time"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/models"

	"github.com/rs/zerolog/log"
)

// RunJanitor periodically closes rooms nobody will come back to.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ctx); n > 0 {
				log.Info().Int("closed", n).Msg("Janitor closed idle rooms")
			}
		}
	}
}

// Sweep closes finished rooms older than the configured TTL and waiting rooms
// with nobody online, and forgets old tombstones. It returns the number of
// rooms closed.
func (m *Manager) Sweep(ctx context.Context) int {
	rooms, err := m.store.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Janitor failed to list rooms")
		return 0
	}

	now := m.clock.Now()
	closed := 0
	for _, r := range rooms {
		if !m.idle(r, now) {
			continue
		}
		_, err := m.mutate(ctx, r.ID, func(rt *roomRuntime, cur *models.Room, fx *effects) error {
			if !m.idle(cur, now) {
				return errNoChange
			}
			cur.Closed = true
			fx.closeReason = constants.CloseReasonIdle
			return nil
		})
		if err == nil {
			closed++
		}
	}

	m.mu.Lock()
	for id, at := range m.closed {
		if now.Sub(at) >= tombstoneTTL {
			delete(m.closed, id)
		}
	}
	m.mu.Unlock()

	return closed
}

func (m *Manager) idle(r *models.Room, now time.Time) bool {
	if r.Closed || m.opts.FinishedRoomTTL <= 0 {
		return false
	}
	switch r.Status {
	case constants.RoomStatusFinished:
		return r.EndedAt != nil && now.Sub(*r.EndedAt) >= m.opts.FinishedRoomTTL
	case constants.RoomStatusWaiting:
		for _, p := range r.Players {
			if p.IsOnline {
				return false
			}
		}
		return now.Sub(r.CreatedAt) >= m.opts.FinishedRoomTTL
	}
	return false
}
