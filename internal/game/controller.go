package game

import (
	"context"
	"fmt"
	"time"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/leaderboard"
	"quiz-session-service/internal/models"

	"github.com/rs/zerolog/log"
)

func (m *Manager) StartGame(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if r.HostID != requesterID {
			return ErrNotAuthorized
		}
		switch r.Status {
		case constants.RoomStatusPlaying:
			return errNoChange
		case constants.RoomStatusFinished:
			return ErrGameAlreadyStarted
		}
		if len(r.Players) < m.opts.MinPlayersToStart {
			return ErrNotEnoughPlayers
		}
		return m.beginGame(rt, r, fx)
	})
}

func (m *Manager) beginGame(rt *roomRuntime, r *models.Room, fx *effects) error {
	if rt.quiz == nil || len(rt.quiz.Questions) == 0 {
		return ErrQuizUnavailable
	}

	now := m.clock.Now()
	r.Status = constants.RoomStatusPlaying
	r.StartedAt = &now
	for _, p := range r.Players {
		p.Score = 0
		p.CurrentQuestion = 0
		p.IsReady = false
	}

	baseline := leaderboard.Compute(r.PlayerList(), nil)
	r.Game = &models.GameState{
		TotalQuestions: len(rt.quiz.Questions),
		Answered:       make(map[string]bool),
		PlayerAnswers:  make(map[string]models.AnswerRecord),
		Leaderboard:    baseline,
		Baseline:       append([]models.LeaderboardEntry(nil), baseline...),
	}
	m.enterQuestion(rt, r, 0, fx)
	fx.startClock = true

	log.Info().Str("room_id", r.ID).Int("players", len(r.Players)).Int("questions", r.Game.TotalQuestions).Msg("Game started")
	return nil
}

func (m *Manager) Pause(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if err := requirePlaying(r, requesterID); err != nil {
			return err
		}
		if r.Game.Paused {
			return errNoChange
		}
		r.Game.Paused = true
		fx.emit(EventPhaseChanged, phasePayload(r))
		return nil
	})
}

func (m *Manager) Resume(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if err := requirePlaying(r, requesterID); err != nil {
			return err
		}
		if !r.Game.Paused {
			return errNoChange
		}
		r.Game.Paused = false
		fx.emit(EventPhaseChanged, phasePayload(r))
		m.checkAllAnswered(rt, r, fx)
		return nil
	})
}

// SkipQuestion closes the current question and jumps to its results.
// Answers submitted so far keep their points.
func (m *Manager) SkipQuestion(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if err := requirePlaying(r, requesterID); err != nil {
			return err
		}
		if r.Game.Phase == constants.PhaseResults {
			return errNoChange
		}
		r.Game.Skipped = true
		m.enterResults(rt, r, fx)
		return nil
	})
}

// NextQuestion ends the results phase early.
func (m *Manager) NextQuestion(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if err := requirePlaying(r, requesterID); err != nil {
			return err
		}
		if r.Game.Phase != constants.PhaseResults {
			return fmt.Errorf("%w: results are not shown yet", ErrPhase)
		}
		m.advance(rt, r, fx)
		return nil
	})
}

// EndGame finishes the game from any state. Ending a finished game is a no-op.
func (m *Manager) EndGame(ctx context.Context, roomID, requesterID string) (*models.Room, error) {
	return m.mutate(ctx, roomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if r.HostID != requesterID {
			return ErrNotAuthorized
		}
		if r.Status == constants.RoomStatusFinished {
			return errNoChange
		}
		m.finishGame(r, fx)
		return nil
	})
}

func requirePlaying(r *models.Room, requesterID string) error {
	if r.HostID != requesterID {
		return ErrNotAuthorized
	}
	if r.Status != constants.RoomStatusPlaying || r.Game == nil {
		return fmt.Errorf("%w: no game in progress", ErrPhase)
	}
	return nil
}

func (m *Manager) startClock(rt *roomRuntime) {
	rt.startTicker(m.clock, func(gen uint64) { m.tick(rt, gen) })
}

func (m *Manager) tick(rt *roomRuntime, gen uint64) {
	if !rt.tickCurrent(gen) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	_, err := m.mutate(ctx, rt.id, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		if r.Status != constants.RoomStatusPlaying || r.Game == nil {
			fx.stopClock = true
			return errNoChange
		}
		g := r.Game
		if g.Paused {
			return errNoChange
		}
		if g.TimeRemaining > 0 {
			g.TimeRemaining--
		}
		if g.TimeRemaining == 0 {
			m.onTimeout(rt, r, fx)
		}
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("room_id", rt.id).Msg("Clock tick stopped")
		return
	}

	rt.rearm(m.clock, gen, func(gen uint64) { m.tick(rt, gen) })
}

func (m *Manager) onTimeout(rt *roomRuntime, r *models.Room, fx *effects) {
	switch r.Game.Phase {
	case constants.PhaseQuestion:
		m.enterAnswer(r, fx)
	case constants.PhaseAnswer:
		m.enterResults(rt, r, fx)
	case constants.PhaseResults:
		m.advance(rt, r, fx)
	}
}

// checkAllAnswered closes the question early once every online player answered.
// The phase check makes the transition happen once even when the countdown
// expires in the same instant.
func (m *Manager) checkAllAnswered(rt *roomRuntime, r *models.Room, fx *effects) {
	g := r.Game
	if r.Status != constants.RoomStatusPlaying || g == nil || g.Phase != constants.PhaseQuestion || g.Paused {
		return
	}

	online := 0
	for _, p := range r.Players {
		if !p.IsOnline {
			continue
		}
		online++
		if !g.Answered[p.ID] {
			return
		}
	}
	if online > 0 {
		m.enterAnswer(r, fx)
	}
}

func (m *Manager) questionTime(r *models.Room, q models.Question) int {
	if q.TimeLimitSec > 0 {
		return q.TimeLimitSec
	}
	return r.Settings.TimePerQuestion
}

func (m *Manager) enterQuestion(rt *roomRuntime, r *models.Room, index int, fx *effects) {
	q := rt.quiz.Questions[index]
	g := r.Game

	view := q.View()
	view.TimeLimitSec = m.questionTime(r, q)

	g.CurrentQuestionIndex = index
	g.Phase = constants.PhaseQuestion
	g.TimeRemaining = view.TimeLimitSec
	g.Question = view
	g.CorrectAnswer = ""
	g.Reveal = nil
	g.Skipped = false
	g.Answered = make(map[string]bool)
	g.PlayerAnswers = make(map[string]models.AnswerRecord)
	for _, p := range r.Players {
		p.CurrentQuestion = index
	}

	fx.emit(EventPhaseChanged, phasePayload(r))
}

func (m *Manager) enterAnswer(r *models.Room, fx *effects) {
	g := r.Game
	g.Phase = constants.PhaseAnswer
	g.TimeRemaining = seconds(m.opts.AnswerPhaseDuration)
	fx.emit(EventPhaseChanged, phasePayload(r))
}

func (m *Manager) enterResults(rt *roomRuntime, r *models.Room, fx *effects) {
	g := r.Game
	g.Phase = constants.PhaseResults
	g.TimeRemaining = seconds(m.opts.ResultsPhaseDuration)

	entries := leaderboard.Compute(r.PlayerList(), g.Baseline)
	g.Leaderboard = entries
	g.Baseline = append([]models.LeaderboardEntry(nil), entries...)

	if r.Settings.ShowAnswers {
		g.CorrectAnswer = rt.quiz.Questions[g.CurrentQuestionIndex].CorrectAnswer
		g.Reveal = make(map[string]models.AnswerRecord, len(g.PlayerAnswers))
		for id, rec := range g.PlayerAnswers {
			g.Reveal[id] = rec
		}
	}

	fx.emit(EventLeaderboardUpdated, LeaderboardPayload{Leaderboard: entries})
	fx.emit(EventPhaseChanged, phasePayload(r))
}

func (m *Manager) advance(rt *roomRuntime, r *models.Room, fx *effects) {
	next := r.Game.CurrentQuestionIndex + 1
	if next >= r.Game.TotalQuestions {
		m.finishGame(r, fx)
		return
	}
	m.enterQuestion(rt, r, next, fx)
}

func (m *Manager) finishGame(r *models.Room, fx *effects) {
	var baseline []models.LeaderboardEntry
	if r.Game != nil {
		baseline = r.Game.Baseline
	}

	now := m.clock.Now()
	r.Results = leaderboard.Compute(r.PlayerList(), baseline)
	r.Status = constants.RoomStatusFinished
	r.EndedAt = &now
	r.Game = nil
	for _, p := range r.Players {
		p.IsReady = false
	}

	fx.stopClock = true
	fx.finished = r.StartedAt != nil
	fx.emit(EventLeaderboardUpdated, LeaderboardPayload{Leaderboard: r.Results, Final: true})
	fx.emit(EventPhaseChanged, phasePayload(r))

	log.Info().Str("room_id", r.ID).Int("players", len(r.Players)).Msg("Game finished")
}

func phasePayload(r *models.Room) PhasePayload {
	p := PhasePayload{Status: r.Status}
	if r.Game == nil {
		if r.Status == constants.RoomStatusFinished {
			p.Phase = constants.PhaseFinished
		}
		return p
	}
	g := r.Game
	p.Phase = g.Phase
	p.QuestionIndex = g.CurrentQuestionIndex
	p.TotalQuestions = g.TotalQuestions
	p.TimeRemaining = g.TimeRemaining
	p.Paused = g.Paused
	p.Skipped = g.Skipped
	return p
}

// seconds converts a phase duration to whole countdown ticks, at least one.
func seconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
