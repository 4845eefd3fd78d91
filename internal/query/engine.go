package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/metrics"
	"github.com/ask-cricket/backend/internal/render"
	"github.com/ask-cricket/backend/internal/sqlgen"
	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

type Generator interface {
	Generate(ctx context.Context, question string) (string, error)
}

type Cache interface {
	LookupFuzzy(ctx context.Context, question string) (string, bool, error)
	LookupExact(ctx context.Context, question string) (string, bool, error)
	Store(ctx context.Context, question, sql string) error
}

type Executor interface {
	Execute(ctx context.Context, sql string) (models.QueryResult, error)
}

type HistoryRecorder interface {
	InsertChatRecord(ctx context.Context, record *models.ChatRecord) error
}

// ExecutionError is returned when the backend rejects or fails a statement.
// Err carries the backend's message unchanged.
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("sql execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Details is the upstream message shown to the caller.
func (e *ExecutionError) Details() string {
	return e.Err.Error()
}

type Answer struct {
	ID       string
	Message  string
	SQL      string
	Results  models.QueryResult
	Source   Source
	Attempts int
	Latency  time.Duration
}

// HasSQL is false for greetings and rejected questions, which carry only a message.
func (a *Answer) HasSQL() bool {
	return a.SQL != ""
}

type Config struct {
	MaxAttempts int
}

type Engine struct {
	generator   Generator
	cache       Cache
	executor    Executor
	history     HistoryRecorder
	maxAttempts int
}

// NewEngine wires the pipeline. Pass a nil interface, not a nil pointer, to run
// without history.
func NewEngine(generator Generator, cache Cache, executor Executor, history HistoryRecorder, cfg Config) *Engine {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Engine{
		generator:   generator,
		cache:       cache,
		executor:    executor,
		history:     history,
		maxAttempts: maxAttempts,
	}
}

// run is the mutable state of one Ask call.
type run struct {
	id       string
	question string
	sql      string
	source   Source
	attempts int
	result   models.QueryResult
	answer   *Answer
	err      error
}

// Ask answers one question. A rejected question is an Answer, not an error.
// Backend failures come back as *ExecutionError; anything else is unexpected.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()
	r := &run{id: uuid.New().String(), question: question}

	logger.Info("Processing question",
		zap.String("chat_id", r.id),
		zap.String("question", question),
	)

	state := StateStart
	for !state.Terminal() {
		next := e.step(ctx, r, state)
		logger.Debug("Pipeline transition",
			zap.String("chat_id", r.id),
			zap.Stringer("from", state),
			zap.Stringer("to", next),
		)
		state = next
	}
	e.finish(r, state)

	latency := time.Since(start)
	e.record(r, state, latency)

	if r.err != nil {
		return nil, r.err
	}
	r.answer.Latency = latency
	return r.answer, nil
}

func (e *Engine) step(ctx context.Context, r *run, state State) State {
	switch state {
	case StateStart:
		return StateGreetingCheck

	case StateGreetingCheck:
		if IsGreeting(r.question) {
			return StateGreetingReply
		}
		return StateFuzzyLookup

	case StateFuzzyLookup:
		sql, ok, err := e.cache.LookupFuzzy(ctx, r.question)
		if err != nil {
			logger.Warn("Fuzzy lookup failed, treating as miss", zap.String("chat_id", r.id), zap.Error(err))
		}
		if err == nil && ok {
			r.sql, r.source = sql, SourceFuzzy
			return StateExecute
		}
		return StateExactLookup

	case StateExactLookup:
		sql, ok, err := e.cache.LookupExact(ctx, r.question)
		if err != nil {
			logger.Warn("Exact lookup failed, treating as miss", zap.String("chat_id", r.id), zap.Error(err))
		}
		if err == nil && ok {
			r.sql, r.source = sql, SourceExact
			return StateExecute
		}
		return StateGenerate

	case StateGenerate:
		for r.attempts < e.maxAttempts {
			r.attempts++
			sql, err := e.generator.Generate(ctx, r.question)
			switch {
			case err != nil:
				metrics.GenerationAttempts.WithLabelValues("error").Inc()
				logger.Warn("SQL generation failed",
					zap.String("chat_id", r.id),
					zap.Int("attempt", r.attempts),
					zap.Error(err),
				)
			case !sqlgen.IsValidSelect(sql):
				metrics.GenerationAttempts.WithLabelValues("invalid").Inc()
				logger.Warn("Generated SQL rejected",
					zap.String("chat_id", r.id),
					zap.Int("attempt", r.attempts),
					zap.String("sql", sql),
				)
			default:
				metrics.GenerationAttempts.WithLabelValues("valid").Inc()
				r.sql, r.source = sql, SourceGenerated
				return StateCacheWrite
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.err = fmt.Errorf("question abandoned: %w", ctxErr)
				return StateErrorReply
			}
		}
		return StateRejectReply

	case StateCacheWrite:
		if err := e.cache.Store(ctx, r.question, r.sql); err != nil {
			logger.Warn("Cache write failed", zap.String("chat_id", r.id), zap.Error(err))
		}
		return StateExecute

	case StateExecute:
		timer := time.Now()
		result, err := e.executor.Execute(ctx, r.sql)
		if err != nil {
			metrics.ExecutionDuration.WithLabelValues("error").Observe(time.Since(timer).Seconds())
			r.err = &ExecutionError{SQL: r.sql, Err: err}
			return StateErrorReply
		}
		metrics.ExecutionDuration.WithLabelValues("ok").Observe(time.Since(timer).Seconds())
		metrics.ResultRows.Observe(float64(result.Len()))
		r.result = result
		return StateFormatReply
	}

	r.err = fmt.Errorf("no transition from state %s", state)
	return StateErrorReply
}

func (e *Engine) finish(r *run, state State) {
	switch state {
	case StateGreetingReply:
		r.source = SourceGreeting
		r.answer = &Answer{ID: r.id, Message: GreetingMessage, Source: SourceGreeting}

	case StateRejectReply:
		r.source = SourceRejected
		r.answer = &Answer{ID: r.id, Message: InvalidQuestionReply, Source: SourceRejected, Attempts: r.attempts}

	case StateFormatReply:
		message := NoDataMessage
		if !r.result.Empty() {
			table, err := render.HTMLTable(r.result)
			if err != nil {
				r.err = fmt.Errorf("failed to render results: %w", err)
				return
			}
			message = table
		}
		r.answer = &Answer{
			ID:       r.id,
			Message:  message,
			SQL:      r.sql,
			Results:  r.result,
			Source:   r.source,
			Attempts: r.attempts,
		}

	case StateErrorReply:
		var execErr *ExecutionError
		if errors.As(r.err, &execErr) {
			logger.Error("SQL execution failed",
				zap.String("chat_id", r.id),
				zap.String("sql", execErr.SQL),
				zap.Error(execErr.Err),
			)
		} else {
			logger.Error("Question failed", zap.String("chat_id", r.id), zap.Error(r.err))
		}
	}
}

// record persists a history entry. Failures are logged only; the caller
// already has its answer.
func (e *Engine) record(r *run, state State, latency time.Duration) {
	outcome := outcomeOf(r, state)
	metrics.ChatTotal.WithLabelValues(outcome).Inc()
	source := string(r.source)
	if source == "" {
		source = "none"
	}
	metrics.ChatDuration.WithLabelValues(source).Observe(latency.Seconds())

	logger.Info("Question processed",
		zap.String("chat_id", r.id),
		zap.String("source", source),
		zap.String("outcome", outcome),
		zap.Int("attempts", r.attempts),
		zap.Duration("latency", latency),
	)

	if e.history == nil {
		return
	}

	rec := &models.ChatRecord{
		ID:            r.id,
		Question:      r.question,
		SQL:           r.sql,
		Source:        source,
		Outcome:       outcome,
		Attempts:      r.attempts,
		RowCount:      r.result.Len(),
		PromptVersion: sqlgen.PromptVersion,
		LatencyMS:     int(latency.Milliseconds()),
		CreatedAt:     time.Now(),
	}
	if r.err != nil {
		rec.Error = r.err.Error()
	}

	// The request context may already be cancelled; the record is written regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.history.InsertChatRecord(ctx, rec); err != nil {
		logger.Warn("Failed to record chat history", zap.String("chat_id", r.id), zap.Error(err))
	}
}

func outcomeOf(r *run, state State) string {
	var execErr *ExecutionError
	switch {
	case r.err != nil && errors.As(r.err, &execErr):
		return "execution_error"
	case r.err != nil:
		return "error"
	case state == StateGreetingReply:
		return "greeting"
	case state == StateRejectReply:
		return "rejected"
	case r.result.Empty():
		return "no_data"
	default:
		return "answered"
	}
}
