package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ask-cricket/backend/internal/query"
	"github.com/ask-cricket/backend/internal/storage/models"
)

type askerStub struct {
	answer   *query.Answer
	err      error
	question string
	deadline bool
}

func (a *askerStub) Ask(ctx context.Context, question string) (*query.Answer, error) {
	a.question = question
	_, a.deadline = ctx.Deadline()
	return a.answer, a.err
}

type historyReaderStub struct {
	records []models.ChatRecord
	limit   int
}

func (h *historyReaderStub) GetChatHistory(_ context.Context, limit int) ([]models.ChatRecord, error) {
	h.limit = limit
	return h.records, nil
}

func newChatApp(asker Asker, history HistoryReader) *fiber.App {
	h := NewChatHandler(asker, history, 5*time.Second)
	app := fiber.New()
	app.Post("/api/chat", h.HandleChat)
	app.Get("/api/chat/history", h.GetHistory)
	return app
}

func postChat(t *testing.T, app *fiber.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestHandleChatSuccess(t *testing.T) {
	asker := &askerStub{answer: &query.Answer{
		Message: "<table></table>",
		SQL:     "SELECT 1",
		Results: models.QueryResult{Columns: []string{"n"}, Rows: [][]any{{1}}},
		Source:  query.SourceGenerated,
	}}

	status, body := postChat(t, newChatApp(asker, nil), `{"userMessage":"most runs in 2016"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "most runs in 2016", asker.question)
	assert.True(t, asker.deadline)
	assert.Equal(t, "<table></table>", body["assistantMessage"])
	assert.Equal(t, "SELECT 1", body["sql"])
	assert.Equal(t, []any{map[string]any{"n": float64(1)}}, body["results"])
}

func TestHandleChatMessageOnlyAnswers(t *testing.T) {
	asker := &askerStub{answer: &query.Answer{Message: query.InvalidQuestionReply, Source: query.SourceRejected}}

	status, body := postChat(t, newChatApp(asker, nil), `{"userMessage":"what is love"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"assistantMessage": "Please ask a valid question."}, body)
}

func TestHandleChatEmptyResultKeepsResultsArray(t *testing.T) {
	asker := &askerStub{answer: &query.Answer{Message: query.NoDataMessage, SQL: "SELECT 1"}}

	_, body := postChat(t, newChatApp(asker, nil), `{"userMessage":"q"}`)

	assert.Equal(t, "No data found for your query.", body["assistantMessage"])
	assert.Equal(t, []any{}, body["results"])
}

func TestHandleChatRequiresMessage(t *testing.T) {
	asker := &askerStub{}
	for _, payload := range []string{`{}`, `{"userMessage":"  "}`, `not json`} {
		status, body := postChat(t, newChatApp(asker, nil), payload)
		assert.Equal(t, fiber.StatusBadRequest, status, payload)
		assert.Contains(t, body, "error")
	}
	assert.Empty(t, asker.question)
}

func TestHandleChatExecutionError(t *testing.T) {
	asker := &askerStub{err: &query.ExecutionError{
		SQL: "SELECT nope",
		Err: errors.New(`column "nope" does not exist`),
	}}

	status, body := postChat(t, newChatApp(asker, nil), `{"userMessage":"q"}`)

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "SQL execution failed.", body["error"])
	assert.Equal(t, `column "nope" does not exist`, body["details"])
}

func TestHandleChatUnexpectedError(t *testing.T) {
	asker := &askerStub{err: errors.New("boom")}

	status, body := postChat(t, newChatApp(asker, nil), `{"userMessage":"q"}`)

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Unexpected server error.", body["error"])
	assert.Equal(t, "boom", body["details"])
}

func TestGetHistory(t *testing.T) {
	history := &historyReaderStub{records: []models.ChatRecord{
		{ID: "a", Question: "hello", Source: "greeting", Outcome: "greeting", CreatedAt: time.Unix(10, 0)},
	}}
	app := newChatApp(&askerStub{}, history)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/history?limit=500", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, maxHistoryLimit, history.limit)

	var body struct {
		History []map[string]any `json:"history"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.History, 1)
	assert.Equal(t, "greeting", body.History[0]["source"])

	resp, err = app.Test(httptest.NewRequest("GET", "/api/chat/history?limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetHistoryDisabled(t *testing.T) {
	app := newChatApp(&askerStub{}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
