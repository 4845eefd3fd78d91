package sqlgen

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/llm"
	"github.com/ask-cricket/backend/pkg/logger"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Generator turns a question into candidate SQL with one completion call.
// It does not validate or retry; the caller decides what to do with the result.
type Generator struct {
	completer Completer
	maxTokens int
}

func NewGenerator(completer Completer, maxTokens int) *Generator {
	return &Generator{completer: completer, maxTokens: maxTokens}
}

func (g *Generator) Generate(ctx context.Context, question string) (string, error) {
	resp, err := g.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   BuildPrompt(question),
		MaxTokens:    g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate sql: %w", err)
	}

	sql := Sanitize(resp.Content)

	logger.Debug("SQL generated",
		zap.String("prompt_version", PromptVersion),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("sql", sql),
	)

	return sql, nil
}
