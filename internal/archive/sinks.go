package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"quiz-session-service/internal/constants"
	"quiz-session-service/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

type Uploader interface {
	UploadFile(ctx context.Context, bucketName, objectName string, reader io.Reader, size int64, contentType string) error
}

// ResultsReadyEvent is the message other services consume when a game ends.
type ResultsReadyEvent struct {
	RoomID    string                    `json:"room_id"`
	Code      string                    `json:"code"`
	QuizID    string                    `json:"quiz_id"`
	QuizTitle string                    `json:"quiz_title"`
	HostID    string                    `json:"host_id"`
	EndedAt   int64                     `json:"ended_at"`
	Standings []models.LeaderboardEntry `json:"standings"`
}

type QueueSink struct {
	publisher Publisher
	queue     string
}

func NewQueueSink(publisher Publisher) *QueueSink {
	return &QueueSink{publisher: publisher, queue: constants.QueueResultsReady}
}

func (s *QueueSink) SaveResult(ctx context.Context, result *models.GameResult) error {
	body, err := json.Marshal(ResultsReadyEvent{
		RoomID:    result.RoomID,
		Code:      result.Code,
		QuizID:    result.QuizID,
		QuizTitle: result.QuizTitle,
		HostID:    result.HostID,
		EndedAt:   result.EndedAt.Unix(),
		Standings: result.Standings,
	})
	if err != nil {
		return fmt.Errorf("failed to encode results event: %w", err)
	}
	if err := s.publisher.Publish(ctx, s.queue, body); err != nil {
		return fmt.Errorf("failed to publish results event: %w", err)
	}
	return nil
}

// ObjectSink uploads the full result, answers included, as one JSON document.
type ObjectSink struct {
	uploader Uploader
	bucket   string
}

func NewObjectSink(uploader Uploader, bucket string) *ObjectSink {
	return &ObjectSink{uploader: uploader, bucket: bucket}
}

func ObjectName(roomID string) string {
	return fmt.Sprintf("results/%s.json", roomID)
}

func (s *ObjectSink) SaveResult(ctx context.Context, result *models.GameResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result archive: %w", err)
	}
	err = s.uploader.UploadFile(ctx, s.bucket, ObjectName(result.RoomID), bytes.NewReader(data), int64(len(data)), "application/json")
	if err != nil {
		return fmt.Errorf("failed to upload result archive: %w", err)
	}
	return nil
}
