package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-session-service/internal/models"
)

var ErrResultNotFound = errors.New("game result not found")

// ResultsRepository archives finished games in PostgreSQL.
type ResultsRepository struct {
	db *sql.DB
}

func NewResultsRepository(db *sql.DB) *ResultsRepository {
	return &ResultsRepository{db: db}
}

// SaveResult stores the result and its answers in one transaction. Saving the
// same room twice keeps the first copy.
func (r *ResultsRepository) SaveResult(ctx context.Context, result *models.GameResult) error {
	standings, err := json.Marshal(result.Standings)
	if err != nil {
		return fmt.Errorf("failed to encode standings: %w", err)
	}
	departed, err := json.Marshal(nonNil(result.Departed))
	if err != nil {
		return fmt.Errorf("failed to encode departed players: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO room_results (room_id, room_code, quiz_id, quiz_title, host_id, started_at, ended_at, standings, departed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, query,
		result.RoomID,
		result.Code,
		result.QuizID,
		result.QuizTitle,
		result.HostID,
		result.StartedAt,
		result.EndedAt,
		standings,
		departed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert room result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	answerQuery := `
		INSERT INTO answer_records (room_id, question_index, player_id, question_id, selected_answer, time_remaining, is_correct, points_awarded, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`
	for _, a := range result.Answers {
		if _, err := tx.ExecContext(ctx, answerQuery,
			result.RoomID,
			a.QuestionIndex,
			a.PlayerID,
			a.QuestionID,
			a.SelectedAnswer,
			a.TimeRemaining,
			a.IsCorrect,
			a.PointsAwarded,
			a.SubmittedAt,
		); err != nil {
			return fmt.Errorf("failed to insert answer record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

func (r *ResultsRepository) GetResult(ctx context.Context, roomID string) (*models.GameResult, error) {
	query := `
		SELECT room_id, room_code, quiz_id, quiz_title, host_id, started_at, ended_at, standings, departed
		FROM room_results
		WHERE room_id = $1
	`
	result := &models.GameResult{}
	var startedAt sql.NullTime
	var standings, departed []byte
	err := r.db.QueryRowContext(ctx, query, roomID).Scan(
		&result.RoomID,
		&result.Code,
		&result.QuizID,
		&result.QuizTitle,
		&result.HostID,
		&startedAt,
		&result.EndedAt,
		&standings,
		&departed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room result: %w", err)
	}
	if startedAt.Valid {
		result.StartedAt = &startedAt.Time
	}
	if err := json.Unmarshal(standings, &result.Standings); err != nil {
		return nil, fmt.Errorf("failed to decode standings: %w", err)
	}
	if err := json.Unmarshal(departed, &result.Departed); err != nil {
		return nil, fmt.Errorf("failed to decode departed players: %w", err)
	}

	answers, err := r.answers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	result.Answers = answers
	return result, nil
}

func (r *ResultsRepository) answers(ctx context.Context, roomID string) ([]models.AnswerRecord, error) {
	query := `
		SELECT question_index, player_id, question_id, selected_answer, time_remaining, is_correct, points_awarded, submitted_at
		FROM answer_records
		WHERE room_id = $1
		ORDER BY question_index, submitted_at, player_id
	`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answer records: %w", err)
	}
	defer rows.Close()

	var answers []models.AnswerRecord
	for rows.Next() {
		a := models.AnswerRecord{RoomID: roomID}
		if err := rows.Scan(
			&a.QuestionIndex,
			&a.PlayerID,
			&a.QuestionID,
			&a.SelectedAnswer,
			&a.TimeRemaining,
			&a.IsCorrect,
			&a.PointsAwarded,
			&a.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan answer record: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

func nonNil(entries []models.LeaderboardEntry) []models.LeaderboardEntry {
	if entries == nil {
		return []models.LeaderboardEntry{}
	}
	return entries
}
