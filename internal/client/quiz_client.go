package client

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-session-service/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const getQuizContentMethod = "/quiz.QuizService/GetQuizContent"

// QuizClient fetches quiz content from the quiz service. Requests and
// responses travel as google.protobuf.Struct.
type QuizClient struct {
	conn *grpc.ClientConn
}

func NewQuizClient(host, port string) (*QuizClient, error) {
	addr := fmt.Sprintf("%s:%s", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to quiz service: %w", err)
	}
	return &QuizClient{conn: conn}, nil
}

func NewQuizClientFromConn(conn *grpc.ClientConn) *QuizClient {
	return &QuizClient{conn: conn}
}

func (c *QuizClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *QuizClient) GetQuiz(ctx context.Context, quizID string) (*models.QuizData, error) {
	req, err := structpb.NewStruct(map[string]any{"quiz_id": quizID})
	if err != nil {
		return nil, fmt.Errorf("failed to build quiz request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, getQuizContentMethod, req, resp); err != nil {
		return nil, fmt.Errorf("failed to get quiz %s: %w", quizID, err)
	}
	return quizFromStruct(resp)
}

type wireQuestion struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Type          string   `json:"type"`
	Options       []string `json:"options"`
	CorrectAnswer any      `json:"correct_answer"`
	OrderIndex    int      `json:"order_index"`
	MaxScore      int      `json:"max_score"`
	TimeLimitSec  int      `json:"time_limit_sec"`
}

type wireQuiz struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Questions []wireQuestion `json:"questions"`
}

func quizFromStruct(s *structpb.Struct) (*models.QuizData, error) {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to encode quiz response: %w", err)
	}

	var w wireQuiz
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("failed to decode quiz response: %w", err)
	}

	quiz := &models.QuizData{
		ID:        w.ID,
		Title:     w.Title,
		Questions: make([]models.Question, 0, len(w.Questions)),
	}
	for _, q := range w.Questions {
		correct, err := correctAnswerJSON(q.CorrectAnswer)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		quiz.Questions = append(quiz.Questions, models.Question{
			ID:            q.ID,
			Text:          q.Text,
			Type:          q.Type,
			Options:       q.Options,
			CorrectAnswer: correct,
			OrderIndex:    q.OrderIndex,
			Points:        q.MaxScore,
			TimeLimitSec:  q.TimeLimitSec,
		})
	}
	return quiz, nil
}

// correctAnswerJSON keeps string answers as they are stored upstream (already
// JSON encoded) and encodes structured answers.
func correctAnswerJSON(v any) (string, error) {
	switch a := v.(type) {
	case nil:
		return "", nil
	case string:
		return a, nil
	default:
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode correct answer: %w", err)
		}
		return string(b), nil
	}
}
