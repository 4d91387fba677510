package database

import (
	"context"
	"database/sql"
	"fmt"

	"quiz-session-service/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	db     *sql.DB
	config *config.DBConfig
}

func NewPostgresClient(cfg *config.DBConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
	client, err := Open(connStr)
	if err != nil {
		return nil, err
	}
	client.config = cfg
	return client, nil
}

// Open connects with a ready-made connection string.
func Open(connStr string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	createRoomResultsTable := `
		CREATE TABLE IF NOT EXISTS room_results (
			room_id VARCHAR(255) PRIMARY KEY,
			room_code VARCHAR(16) NOT NULL,
			quiz_id VARCHAR(255) NOT NULL,
			quiz_title VARCHAR(255) NOT NULL DEFAULT '',
			host_id VARCHAR(255) NOT NULL,
			started_at TIMESTAMP,
			ended_at TIMESTAMP NOT NULL,
			standings JSONB NOT NULL DEFAULT '[]',
			departed JSONB NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_room_results_quiz_id ON room_results(quiz_id);
	`

	createAnswerRecordsTable := `
		CREATE TABLE IF NOT EXISTS answer_records (
			room_id VARCHAR(255) NOT NULL REFERENCES room_results(room_id) ON DELETE CASCADE,
			question_index INTEGER NOT NULL,
			player_id VARCHAR(255) NOT NULL,
			question_id VARCHAR(255) NOT NULL,
			selected_answer TEXT NOT NULL,
			time_remaining INTEGER NOT NULL DEFAULT 0,
			is_correct BOOLEAN NOT NULL DEFAULT FALSE,
			points_awarded INTEGER NOT NULL DEFAULT 0,
			submitted_at TIMESTAMP NOT NULL,
			PRIMARY KEY (room_id, question_index, player_id)
		);
		CREATE INDEX IF NOT EXISTS idx_answer_records_player_id ON answer_records(player_id);
	`

	if _, err := c.db.ExecContext(ctx, createRoomResultsTable); err != nil {
		return fmt.Errorf("failed to create room_results table: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, createAnswerRecordsTable); err != nil {
		return fmt.Errorf("failed to create answer_records table: %w", err)
	}

	return nil
}
