package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"quiz-session-service/internal/models"
)

// StaticQuizProvider serves quizzes from memory.
type StaticQuizProvider struct {
	quizzes map[string]*models.QuizData
}

func NewStaticQuizProvider(quizzes ...*models.QuizData) *StaticQuizProvider {
	p := &StaticQuizProvider{quizzes: make(map[string]*models.QuizData, len(quizzes))}
	for _, q := range quizzes {
		p.quizzes[q.ID] = q
	}
	return p
}

// LoadQuizFile reads a JSON array of quizzes.
func LoadQuizFile(path string) (*StaticQuizProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quiz file: %w", err)
	}

	var quizzes []*models.QuizData
	if err := json.Unmarshal(data, &quizzes); err != nil {
		return nil, fmt.Errorf("failed to parse quiz file %s: %w", path, err)
	}
	for i, q := range quizzes {
		if q.ID == "" {
			return nil, fmt.Errorf("quiz %d in %s has no id", i, path)
		}
	}
	return NewStaticQuizProvider(quizzes...), nil
}

func (p *StaticQuizProvider) GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error) {
	q, ok := p.quizzes[quizID]
	if !ok {
		return nil, fmt.Errorf("quiz %s not found", quizID)
	}
	return q, nil
}
