package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

// CacheRepository reads and appends the sql_cache table and calls the
// fuzzy_match_sql procedure. The table has no uniqueness constraint on question.
type CacheRepository struct {
	db *sql.DB
}

func NewCacheRepository(db *sql.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// FuzzyMatch returns candidates in the order the procedure ranks them.
func (r *CacheRepository) FuzzyMatch(ctx context.Context, question string) ([]models.FuzzyCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT sql FROM fuzzy_match_sql($1)`, question)
	if err != nil {
		return nil, fmt.Errorf("failed to call fuzzy_match_sql: %w", err)
	}
	defer rows.Close()

	var candidates []models.FuzzyCandidate
	for rows.Next() {
		var stored sql.NullString
		if err := rows.Scan(&stored); err != nil {
			return nil, fmt.Errorf("failed to scan fuzzy candidate: %w", err)
		}
		candidates = append(candidates, models.FuzzyCandidate{SQL: stored.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fuzzy candidates: %w", err)
	}

	return candidates, nil
}

func (r *CacheRepository) LookupSQL(ctx context.Context, question string) (string, bool, error) {
	var stored sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT sql FROM sql_cache WHERE question = $1 LIMIT 1`,
		question,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up sql cache: %w", err)
	}
	if !stored.Valid || stored.String == "" {
		return "", false, nil
	}

	return stored.String, true, nil
}

func (r *CacheRepository) InsertSQL(ctx context.Context, question, sqlText string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sql_cache (question, sql) VALUES ($1, $2)`,
		question, sqlText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sql cache entry: %w", err)
	}

	logger.Debug("SQL cache entry stored", zap.String("question", question))
	return nil
}
