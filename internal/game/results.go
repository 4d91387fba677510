package game

import (
	"context"
	"errors"
	"time"

	"quiz-session-service/internal/leaderboard"
	"quiz-session-service/internal/models"

	"github.com/rs/zerolog/log"
)

const archiveTimeout = 30 * time.Second

// ResultSink receives the final standings of every finished game.
type ResultSink interface {
	SaveResult(ctx context.Context, result *models.GameResult) error
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []ResultSink

func (s MultiSink) SaveResult(ctx context.Context, result *models.GameResult) error {
	var errs []error
	for _, sink := range s {
		if err := sink.SaveResult(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func BuildResult(room *models.Room) *models.GameResult {
	result := &models.GameResult{
		RoomID:    room.ID,
		Code:      room.Code,
		QuizID:    room.QuizID,
		QuizTitle: room.QuizTitle,
		HostID:    room.HostID,
		StartedAt: room.StartedAt,
		Standings: append([]models.LeaderboardEntry(nil), room.Results...),
		Answers:   append([]models.AnswerRecord(nil), room.AnswerLog...),
	}
	if room.EndedAt != nil {
		result.EndedAt = *room.EndedAt
	}

	if len(room.Departed) > 0 {
		departed := make([]models.Player, 0, len(room.Departed))
		for _, p := range room.Departed {
			departed = append(departed, *p)
		}
		result.Departed = leaderboard.Compute(departed, nil)
		// departed players are listed by score but hold no rank
		for i := range result.Departed {
			result.Departed[i].Rank = 0
		}
	}
	return result
}

func (m *Manager) archive(room *models.Room) {
	if m.sink == nil {
		return
	}
	result := BuildResult(room)

	m.archives.Add(1)
	go func() {
		defer m.archives.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := m.sink.SaveResult(ctx, result); err != nil {
			log.Error().Err(err).Str("room_id", result.RoomID).Msg("Failed to archive game result")
			return
		}
		log.Info().Str("room_id", result.RoomID).Int("players", len(result.Standings)).Msg("Game result archived")
	}()
}
