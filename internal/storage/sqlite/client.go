package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

// Client keeps a local log of answered questions. It is not part of the SQL
// cache; the remote backend owns that.
type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return NewClientFromDB(db), nil
}

func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		sql TEXT,
		source TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		row_count INTEGER DEFAULT 0,
		error TEXT,
		prompt_version TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_chat_source ON chat_history(source);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertChatRecord(ctx context.Context, record *models.ChatRecord) error {
	query := `
		INSERT INTO chat_history (id, question, sql, source, outcome, attempts, row_count,
			error, prompt_version, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Question,
		record.SQL,
		record.Source,
		record.Outcome,
		record.Attempts,
		record.RowCount,
		record.Error,
		record.PromptVersion,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	logger.Debug("Chat recorded",
		zap.String("id", record.ID),
		zap.String("source", record.Source),
		zap.String("outcome", record.Outcome),
	)

	return nil
}

func (c *Client) GetChatHistory(ctx context.Context, limit int) ([]models.ChatRecord, error) {
	query := `
		SELECT id, question, sql, source, outcome, attempts, row_count, error,
			prompt_version, latency_ms, created_at
		FROM chat_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	records := make([]models.ChatRecord, 0)
	for rows.Next() {
		var r models.ChatRecord
		var sqlText, errText, promptVersion sql.NullString
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Question, &sqlText, &r.Source, &r.Outcome, &r.Attempts,
			&r.RowCount, &errText, &promptVersion, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.SQL = sqlText.String
		r.Error = errText.String
		r.PromptVersion = promptVersion.String
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	return records, nil
}
