// Package cache resolves questions to previously generated SQL.
//
// Lookups go fuzzy first, exact second. Entries are append-only and only
// written for freshly generated SQL that passed validation.
package cache

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/metrics"
	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

type FuzzyMatcher interface {
	FuzzyMatch(ctx context.Context, question string) ([]models.FuzzyCandidate, error)
}

type ExactStore interface {
	LookupSQL(ctx context.Context, question string) (string, bool, error)
	InsertSQL(ctx context.Context, question, sql string) error
}

// Indexer is implemented by fuzzy matchers that keep their own copy of
// questions and must learn about new entries.
type Indexer interface {
	Index(ctx context.Context, question, sql string) error
}

type Layer struct {
	fuzzy FuzzyMatcher
	exact ExactStore
}

// NewLayer builds a cache layer. fuzzy may be nil to disable similarity lookup.
func NewLayer(fuzzy FuzzyMatcher, exact ExactStore) *Layer {
	return &Layer{fuzzy: fuzzy, exact: exact}
}

// LookupFuzzy returns the top-ranked candidate's SQL. The remaining candidates
// are ignored and no similarity threshold is applied.
func (l *Layer) LookupFuzzy(ctx context.Context, question string) (string, bool, error) {
	if l.fuzzy == nil {
		return "", false, nil
	}

	candidates, err := l.fuzzy.FuzzyMatch(ctx, question)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("fuzzy", "lookup").Inc()
		return "", false, err
	}
	if len(candidates) == 0 || strings.TrimSpace(candidates[0].SQL) == "" {
		metrics.CacheMisses.WithLabelValues("fuzzy").Inc()
		return "", false, nil
	}

	metrics.CacheHits.WithLabelValues("fuzzy").Inc()
	logger.Debug("Fuzzy cache hit",
		zap.String("question", question),
		zap.Int("candidates", len(candidates)),
	)
	return candidates[0].SQL, true, nil
}

// LookupExact matches the question verbatim, case included.
func (l *Layer) LookupExact(ctx context.Context, question string) (string, bool, error) {
	sql, ok, err := l.exact.LookupSQL(ctx, question)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("exact", "lookup").Inc()
		return "", false, err
	}
	if !ok {
		metrics.CacheMisses.WithLabelValues("exact").Inc()
		return "", false, nil
	}

	metrics.CacheHits.WithLabelValues("exact").Inc()
	return sql, true, nil
}

// Store appends a new entry. Duplicate questions are allowed.
func (l *Layer) Store(ctx context.Context, question, sql string) error {
	if err := l.exact.InsertSQL(ctx, question, sql); err != nil {
		metrics.CacheErrors.WithLabelValues("exact", "store").Inc()
		return err
	}

	if indexer, ok := l.fuzzy.(Indexer); ok {
		if err := indexer.Index(ctx, question, sql); err != nil {
			metrics.CacheErrors.WithLabelValues("fuzzy", "store").Inc()
			return err
		}
	}

	return nil
}
