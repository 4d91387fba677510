package game

import (
	"context"
	"fmt"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/models"
	"quiz-session-service/internal/scoring"
)

type AnswerSubmission struct {
	RoomID        string
	QuestionIndex int
	PlayerID      string
	Answer        string
	TimeRemaining int
}

type AnswerResult struct {
	Record     models.AnswerRecord `json:"record"`
	Duplicate  bool                `json:"duplicate"`
	TotalScore int                 `json:"total_score"`
}

// SubmitAnswer records and scores a player's answer to the current question.
// A repeated submission returns the first record unchanged.
func (m *Manager) SubmitAnswer(ctx context.Context, sub AnswerSubmission) (*AnswerResult, error) {
	var result AnswerResult

	_, err := m.mutate(ctx, sub.RoomID, func(rt *roomRuntime, r *models.Room, fx *effects) error {
		p, ok := r.Players[sub.PlayerID]
		if !ok {
			return ErrNotAMember
		}
		g := r.Game
		if r.Status != constants.RoomStatusPlaying || g == nil {
			return fmt.Errorf("%w: no game in progress", ErrPhase)
		}
		if g.Phase != constants.PhaseQuestion && g.Phase != constants.PhaseAnswer {
			return fmt.Errorf("%w: answers are closed", ErrPhase)
		}
		if sub.QuestionIndex != g.CurrentQuestionIndex {
			return fmt.Errorf("%w: question %d is not the current question", ErrPhase, sub.QuestionIndex)
		}
		if prev, ok := g.PlayerAnswers[p.ID]; ok {
			result = AnswerResult{Record: prev, Duplicate: true, TotalScore: p.Score}
			return errNoChange
		}

		q := rt.quiz.Questions[g.CurrentQuestionIndex]
		limit := m.questionTime(r, q)

		// The client's clock is only trusted to report less time than the server has left.
		remaining := 0
		if g.Phase == constants.PhaseQuestion {
			remaining = min(max(sub.TimeRemaining, 0), g.TimeRemaining)
		}

		correct := scoring.IsCorrect(sub.Answer, q)
		rec := models.AnswerRecord{
			RoomID:         r.ID,
			QuestionID:     q.ID,
			QuestionIndex:  g.CurrentQuestionIndex,
			PlayerID:       p.ID,
			SelectedAnswer: sub.Answer,
			TimeRemaining:  remaining,
			IsCorrect:      correct,
			PointsAwarded:  m.opts.Scoring.Points(correct, q.Points, limit, remaining),
			SubmittedAt:    m.clock.Now(),
		}

		g.PlayerAnswers[p.ID] = rec
		g.Answered[p.ID] = true
		r.AnswerLog = append(r.AnswerLog, rec)
		p.Score += rec.PointsAwarded

		result = AnswerResult{Record: rec, TotalScore: p.Score}

		m.refreshLeaderboard(r, fx)
		m.checkAllAnswered(rt, r, fx)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
