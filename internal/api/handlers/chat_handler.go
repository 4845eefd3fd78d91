package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/internal/query"
	"github.com/ask-cricket/backend/internal/storage/models"
	"github.com/ask-cricket/backend/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type Asker interface {
	Ask(ctx context.Context, question string) (*query.Answer, error)
}

type HistoryReader interface {
	GetChatHistory(ctx context.Context, limit int) ([]models.ChatRecord, error)
}

type ChatHandler struct {
	engine  Asker
	history HistoryReader
	timeout time.Duration
}

// NewChatHandler builds the chat endpoints. A zero timeout leaves requests
// bounded only by the server's own limits.
func NewChatHandler(engine Asker, history HistoryReader, timeout time.Duration) *ChatHandler {
	return &ChatHandler{
		engine:  engine,
		history: history,
		timeout: timeout,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		UserMessage string `json:"userMessage"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.UserMessage) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userMessage is required",
		})
	}

	ctx, cancel := h.requestContext(c.UserContext())
	defer cancel()

	answer, err := h.engine.Ask(ctx, req.UserMessage)
	if err != nil {
		status, body := errorBody(err)
		return c.Status(status).JSON(body)
	}

	return c.JSON(answerBody(answer))
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "History is not enabled",
		})
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.history.GetChatHistory(c.UserContext(), limit)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":             r.ID,
			"question":       r.Question,
			"sql":            r.SQL,
			"source":         r.Source,
			"outcome":        r.Outcome,
			"attempts":       r.Attempts,
			"row_count":      r.RowCount,
			"error":          r.Error,
			"prompt_version": r.PromptVersion,
			"latency_ms":     r.LatencyMS,
			"created_at":     r.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

func (h *ChatHandler) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.timeout)
}

// answerBody is the success payload. Greetings and rejections carry only the
// message; everything that reached execution also carries sql and results.
func answerBody(answer *query.Answer) fiber.Map {
	if !answer.HasSQL() {
		return fiber.Map{
			"assistantMessage": answer.Message,
		}
	}
	return fiber.Map{
		"assistantMessage": answer.Message,
		"sql":              answer.SQL,
		"results":          answer.Results,
	}
}

func errorBody(err error) (int, fiber.Map) {
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		return fiber.StatusInternalServerError, fiber.Map{
			"error":   "SQL execution failed.",
			"details": execErr.Details(),
		}
	}

	logger.Error("Failed to answer question", zap.Error(err))
	return fiber.StatusInternalServerError, fiber.Map{
		"error":   "Unexpected server error.",
		"details": err.Error(),
	}
}
