package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz-session-service/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type QuizSource interface {
	GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// CachedQuizProvider keeps quiz content in Redis so rooms for the same quiz
// do not hit the quiz service again. Cache failures fall through to the source.
type CachedQuizProvider struct {
	source QuizSource
	cache  Cache
	ttl    time.Duration
}

func NewCachedQuizProvider(source QuizSource, cache Cache, ttl time.Duration) *CachedQuizProvider {
	return &CachedQuizProvider{source: source, cache: cache, ttl: ttl}
}

func quizCacheKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:data", quizID)
}

func (p *CachedQuizProvider) GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error) {
	key := quizCacheKey(quizID)

	cached, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		var quiz models.QuizData
		if err := json.Unmarshal([]byte(cached), &quiz); err == nil {
			return &quiz, nil
		}
		log.Warn().Str("quiz_id", quizID).Msg("Discarding unreadable cached quiz")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("Quiz cache read failed")
	}

	quiz, err := p.source.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		return quiz, nil
	}
	if err := p.cache.Set(ctx, key, string(data), p.ttl); err != nil {
		log.Warn().Err(err).Str("quiz_id", quizID).Msg("Failed to cache quiz data")
	}
	return quiz, nil
}
