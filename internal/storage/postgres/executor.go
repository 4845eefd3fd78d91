package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

const (
	ModeRPC    = "rpc"
	ModeDirect = "direct"
)

// UpstreamError carries the backend's own message for a failed statement.
type UpstreamError struct {
	Message string
	Code    string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

type Executor struct {
	db      *sql.DB
	mode    string
	timeout time.Duration
}

func NewExecutor(db *sql.DB, mode string, timeout time.Duration) *Executor {
	if mode == "" {
		mode = ModeRPC
	}
	return &Executor{db: db, mode: mode, timeout: timeout}
}

// Execute runs a validated SELECT. It never retries; errors from the backend
// come back as *UpstreamError.
func (e *Executor) Execute(ctx context.Context, query string) (models.QueryResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		result models.QueryResult
		err    error
	)
	switch e.mode {
	case ModeDirect:
		result, err = e.executeDirect(ctx, query)
	default:
		result, err = e.executeRPC(ctx, query)
	}
	if err != nil {
		return models.QueryResult{}, upstream(err)
	}

	logger.Debug("SQL executed",
		zap.String("mode", e.mode),
		zap.Int("rows", result.Len()),
	)
	return result, nil
}

func (e *Executor) executeRPC(ctx context.Context, query string) (models.QueryResult, error) {
	rows, err := e.db.QueryContext(ctx, `SELECT result FROM sql_execute($1)`, query)
	if err != nil {
		return models.QueryResult{}, err
	}
	defer rows.Close()

	var envelope []byte
	if rows.Next() {
		if err := rows.Scan(&envelope); err != nil {
			return models.QueryResult{}, fmt.Errorf("failed to scan execution envelope: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return models.QueryResult{}, err
	}

	return DecodeEnvelope(envelope), nil
}

func (e *Executor) executeDirect(ctx context.Context, query string) (models.QueryResult, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return models.QueryResult{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("failed to read columns: %w", err)
	}

	result := models.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return models.QueryResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return models.QueryResult{}, err
	}
	if len(result.Rows) == 0 {
		return models.QueryResult{}, nil
	}

	return result, nil
}

// DecodeEnvelope turns the JSON array held in an execution envelope into a
// QueryResult. Anything other than a non-empty array of objects is no data.
// Columns follow first-seen key order; a key first seen in a later row is
// appended and reads as null in the rows before it.
func DecodeEnvelope(raw []byte) models.QueryResult {
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return models.QueryResult{}
	}

	var result models.QueryResult
	index := make(map[string]int)
	parsed.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		item.ForEach(func(key, _ gjson.Result) bool {
			if _, seen := index[key.String()]; !seen {
				index[key.String()] = len(result.Columns)
				result.Columns = append(result.Columns, key.String())
			}
			return true
		})
		row := make([]any, len(result.Columns))
		item.ForEach(func(key, value gjson.Result) bool {
			row[index[key.String()]] = jsonValue(value)
			return true
		})
		result.Rows = append(result.Rows, row)
		return true
	})

	if len(result.Columns) == 0 {
		return models.QueryResult{}
	}
	return result
}

func jsonValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.String()
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return json.RawMessage(v.Raw)
	}
}

func upstream(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &UpstreamError{Message: pgErr.Message, Code: pgErr.Code}
	}
	var up *UpstreamError
	if errors.As(err, &up) {
		return up
	}
	return &UpstreamError{Message: err.Error()}
}
