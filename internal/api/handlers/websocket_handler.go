package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ask-cricket/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine  Asker
	timeout time.Duration
}

func NewWebSocketHandler(engine Asker, timeout time.Duration) *WebSocketHandler {
	return &WebSocketHandler{
		engine:  engine,
		timeout: timeout,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection serves one chat session. Each "query" frame gets a status
// frame followed by either an answer or an error frame.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established", zap.String("remote", c.RemoteAddr().String()))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if msg.Type != "query" {
			continue
		}

		if strings.TrimSpace(msg.Content) == "" {
			if err := h.sendError(c, fiber.Map{"error": "content is required"}); err != nil {
				return
			}
			continue
		}

		if err := h.answer(c, msg.Content); err != nil {
			logger.Error("Failed to write WebSocket response", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) answer(c *websocket.Conn, question string) error {
	if err := c.WriteJSON(fiber.Map{
		"type":    "status",
		"content": "Processing query...",
	}); err != nil {
		return err
	}

	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	answer, err := h.engine.Ask(ctx, question)
	if err != nil {
		_, body := errorBody(err)
		return h.sendError(c, body)
	}

	body := answerBody(answer)
	body["type"] = "answer"
	return c.WriteJSON(body)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, body fiber.Map) error {
	body["type"] = "error"
	return c.WriteJSON(body)
}
