package cache

import (
	"context"

	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/metrics"
	"github.com/ask-cricket/backend/pkg/logger"
)

// Tiered puts a fast exact store (Redis) in front of the system of record.
// The back store is authoritative: front failures are logged and skipped.
// Back hits are copied into the front so it warms up from existing entries.
type Tiered struct {
	front ExactStore
	back  ExactStore
}

func NewTiered(front, back ExactStore) *Tiered {
	return &Tiered{front: front, back: back}
}

func (t *Tiered) LookupSQL(ctx context.Context, question string) (string, bool, error) {
	sql, ok, err := t.front.LookupSQL(ctx, question)
	switch {
	case err != nil:
		metrics.CacheErrors.WithLabelValues("front", "lookup").Inc()
		logger.Warn("Front cache lookup failed", zap.Error(err))
	case ok:
		metrics.CacheHits.WithLabelValues("front").Inc()
		return sql, true, nil
	default:
		metrics.CacheMisses.WithLabelValues("front").Inc()
	}

	sql, ok, err = t.back.LookupSQL(ctx, question)
	if err != nil || !ok {
		return sql, ok, err
	}

	if err := t.front.InsertSQL(ctx, question, sql); err != nil {
		metrics.CacheErrors.WithLabelValues("front", "backfill").Inc()
		logger.Warn("Front cache backfill failed", zap.Error(err))
	}
	return sql, true, nil
}

func (t *Tiered) InsertSQL(ctx context.Context, question, sql string) error {
	if err := t.back.InsertSQL(ctx, question, sql); err != nil {
		return err
	}

	if err := t.front.InsertSQL(ctx, question, sql); err != nil {
		metrics.CacheErrors.WithLabelValues("front", "store").Inc()
		logger.Warn("Front cache store failed", zap.Error(err))
	}
	return nil
}
