package handlers

import (
	"errors"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ask-cricket/backend/internal/query"
	"github.com/ask-cricket/backend/internal/storage/models"
)

func newWebSocketApp(asker Asker) *fiber.App {
	h := NewWebSocketHandler(asker, 5*time.Second)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws", Upgrade)
	app.Get("/ws/chat", websocket.New(h.HandleConnection))
	return app
}

func dialChat(t *testing.T, asker Asker) *fws.Conn {
	t.Helper()
	app := newWebSocketApp(asker)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/chat", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readFrame(t *testing.T, conn *fws.Conn) map[string]any {
	t.Helper()
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestWebSocketAnswer(t *testing.T) {
	conn := dialChat(t, &askerStub{answer: &query.Answer{
		Message: "<table></table>",
		SQL:     "SELECT 1",
		Results: models.QueryResult{Columns: []string{"n"}, Rows: [][]any{{1}}},
	}})

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "query", "content": "most runs"}))

	assert.Equal(t, "status", readFrame(t, conn)["type"])

	answer := readFrame(t, conn)
	assert.Equal(t, "answer", answer["type"])
	assert.Equal(t, "<table></table>", answer["assistantMessage"])
	assert.Equal(t, "SELECT 1", answer["sql"])
	assert.Equal(t, []any{map[string]any{"n": float64(1)}}, answer["results"])
}

func TestWebSocketExecutionError(t *testing.T) {
	conn := dialChat(t, &askerStub{err: &query.ExecutionError{
		SQL: "SELECT nope",
		Err: errors.New(`column "nope" does not exist`),
	}})

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "query", "content": "q"}))

	assert.Equal(t, "status", readFrame(t, conn)["type"])

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "SQL execution failed.", frame["error"])
	assert.Equal(t, `column "nope" does not exist`, frame["details"])
}

func TestWebSocketIgnoresOtherTypesAndRejectsEmptyContent(t *testing.T) {
	conn := dialChat(t, &askerStub{answer: &query.Answer{Message: query.GreetingMessage}})

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "query", "content": "  "}))

	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "content is required", frame["error"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "query", "content": "hello"}))
	assert.Equal(t, "status", readFrame(t, conn)["type"])
	greeting := readFrame(t, conn)
	assert.Equal(t, map[string]any{"type": "answer", "assistantMessage": query.GreetingMessage}, greeting)
}

func TestUpgradeRejectsPlainHTTP(t *testing.T) {
	app := newWebSocketApp(&askerStub{})

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
