package sqlgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ask-cricket/backend/internal/llm"
)

type fakeCompleter struct {
	content string
	err     error
	last    llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func TestBuildPromptEmbedsQuestionSchemaAndRules(t *testing.T) {
	prompt := BuildPrompt("Who took 3 wickets in 3 balls?")

	assert.Contains(t, prompt, `"Who took 3 wickets in 3 balls?"`)
	assert.Contains(t, prompt, `"Player of Match"`)
	assert.Contains(t, prompt, `"Non-striker"`)
	assert.Contains(t, prompt, `"Player Out" ILIKE '%dhoni%'`)
	assert.Contains(t, prompt, "If the over is 20 return as 19")
	assert.Contains(t, prompt, "2007/08,2009,2009/10,2011")
	assert.Contains(t, prompt, `Partition by "match_id", "Inning", "Bowler"`)
	assert.Contains(t, prompt, "Don't use semicolons")
	assert.NotContains(t, prompt, "%!")
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	assert.Equal(t, BuildPrompt("csk best score in bangalore"), BuildPrompt("csk best score in bangalore"))
}

func TestIsValidSelect(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select \"Batter\" from match_innings", true},
		{"\n\tSeLeCt 1", true},
		{"DROP TABLE x", false},
		{"WITH t AS (SELECT 1) SELECT * FROM t", false},
		{"", false},
		{"   ", false},
		{"I cannot answer that", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidSelect(tt.sql), "IsValidSelect(%q)", tt.sql)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "fenced sql", raw: "```sql\nSELECT 1;\n```", want: "SELECT 1"},
		{name: "bare fence", raw: "```\nSELECT 2\n```", want: "SELECT 2"},
		{name: "trailing semicolon", raw: "SELECT 3;", want: "SELECT 3"},
		{name: "only one semicolon", raw: "SELECT 4;;", want: "SELECT 4;"},
		{name: "whitespace", raw: "  SELECT 5  \n", want: "SELECT 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestGenerateSendsPromptAndSanitizes(t *testing.T) {
	completer := &fakeCompleter{content: "```sql\nSELECT \"Winner\" FROM \"match_info\";\n```"}
	gen := NewGenerator(completer, 512)

	sql, err := gen.Generate(context.Background(), "who won the 2016 final")
	require.NoError(t, err)
	assert.Equal(t, `SELECT "Winner" FROM "match_info"`, sql)
	assert.Equal(t, SystemPrompt, completer.last.SystemPrompt)
	assert.True(t, strings.Contains(completer.last.UserPrompt, "who won the 2016 final"))
	assert.Equal(t, 512, completer.last.MaxTokens)
}

func TestGeneratePropagatesErrors(t *testing.T) {
	upstream := errors.New("timeout")
	gen := NewGenerator(&fakeCompleter{err: upstream}, 0)

	_, err := gen.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, upstream)
}
