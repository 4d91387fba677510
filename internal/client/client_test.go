package client

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error) {
	args := m.Called(ctx, quizID)
	if q := args.Get(0); q != nil {
		return q.(*models.QuizData), args.Error(1)
	}
	return nil, args.Error(1)
}

type memoryCache struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := c.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value.(string)
	c.ttls[key] = expiration
	return nil
}

func sampleQuiz() *models.QuizData {
	return &models.QuizData{
		ID:    "quiz-1",
		Title: "Capitals",
		Questions: []models.Question{
			{ID: "q1", Text: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectAnswer: `"Paris"`},
		},
	}
}

func TestCachedQuizProvider_CachesOnMiss(t *testing.T) {
	source := &mockSource{}
	source.On("GetQuiz", mock.Anything, "quiz-1").Return(sampleQuiz(), nil).Once()
	cache := newMemoryCache()
	p := NewCachedQuizProvider(source, cache, time.Hour)

	first, err := p.GetQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	second, err := p.GetQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, cache.data, "quiz:quiz-1:data")
	assert.Equal(t, time.Hour, cache.ttls["quiz:quiz-1:data"])
	source.AssertExpectations(t)
}

func TestCachedQuizProvider_FallsBackWhenCacheFails(t *testing.T) {
	source := &mockSource{}
	source.On("GetQuiz", mock.Anything, "quiz-1").Return(sampleQuiz(), nil).Twice()
	cache := newMemoryCache()
	cache.failGet = true
	p := NewCachedQuizProvider(source, cache, time.Hour)

	for range 2 {
		q, err := p.GetQuiz(context.Background(), "quiz-1")
		require.NoError(t, err)
		assert.Equal(t, "Capitals", q.Title)
	}
	source.AssertExpectations(t)
}

func TestCachedQuizProvider_SourceError(t *testing.T) {
	source := &mockSource{}
	source.On("GetQuiz", mock.Anything, "missing").Return(nil, errors.New("not found"))
	p := NewCachedQuizProvider(source, newMemoryCache(), time.Hour)

	_, err := p.GetQuiz(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLoadQuizFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizzes.json")
	content := `[{"id":"quiz-1","title":"Capitals","questions":[{"id":"q1","text":"Capital of France?","correct_answer":"\"Paris\"","points":200}]}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadQuizFile(path)
	require.NoError(t, err)

	q, err := p.GetQuiz(context.Background(), "quiz-1")
	require.NoError(t, err)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, `"Paris"`, q.Questions[0].CorrectAnswer)
	assert.Equal(t, 200, q.Questions[0].Points)

	_, err = p.GetQuiz(context.Background(), "other")
	assert.Error(t, err)

	_, err = LoadQuizFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestQuizFromStruct(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{
		"id":    "quiz-1",
		"title": "Mixed",
		"questions": []any{
			map[string]any{"id": "q1", "text": "Pick", "options": []any{"a", "b"}, "correct_answer": `"b"`, "max_score": 500, "time_limit_sec": 15, "order_index": 0},
			map[string]any{"id": "q2", "text": "Numbers", "correct_answer": []any{1, 2}, "order_index": 1},
		},
	})
	require.NoError(t, err)

	quiz, err := quizFromStruct(s)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, `"b"`, quiz.Questions[0].CorrectAnswer)
	assert.Equal(t, 500, quiz.Questions[0].Points)
	assert.Equal(t, 15, quiz.Questions[0].TimeLimitSec)
	assert.Equal(t, []string{"a", "b"}, quiz.Questions[0].Options)
	assert.Equal(t, `[1,2]`, quiz.Questions[1].CorrectAnswer)
}

func TestQuizClient_GetQuiz(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	var gotQuizID string
	server := grpc.NewServer(grpc.UnknownServiceHandler(func(srv any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		if method != getQuizContentMethod {
			return errors.New("unexpected method " + method)
		}
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		gotQuizID = req.GetFields()["quiz_id"].GetStringValue()

		resp, err := structpb.NewStruct(map[string]any{
			"id":    gotQuizID,
			"title": "Remote",
			"questions": []any{
				map[string]any{"id": "q1", "text": "Ready?", "correct_answer": `"yes"`},
			},
		})
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))
	go server.Serve(lis)
	defer server.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	c := NewQuizClientFromConn(conn)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	quiz, err := c.GetQuiz(ctx, "quiz-42")
	require.NoError(t, err)
	assert.Equal(t, "quiz-42", gotQuizID)
	assert.Equal(t, "Remote", quiz.Title)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, `"yes"`, quiz.Questions[0].CorrectAnswer)
}
