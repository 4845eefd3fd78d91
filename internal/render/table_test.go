package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ask-cricket/backend/internal/storage/models"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestHTMLTableEmpty(t *testing.T) {
	html, err := HTMLTable(models.QueryResult{})
	require.NoError(t, err)
	assert.Equal(t, NoDataHTML, html)

	html, err = HTMLTable(models.QueryResult{Columns: []string{"Batter"}})
	require.NoError(t, err)
	assert.Equal(t, "<p>No data found.</p>", html)
}

func TestHTMLTableHeadersAndRows(t *testing.T) {
	html, err := HTMLTable(models.QueryResult{
		Columns: []string{"Batter", "Runs"},
		Rows:    [][]any{{"V Kohli", "973"}},
	})
	require.NoError(t, err)

	doc := parse(t, html)
	var headers []string
	doc.Find("thead th").Each(func(_ int, s *goquery.Selection) {
		headers = append(headers, s.Text())
	})
	assert.Equal(t, []string{"Batter", "Runs"}, headers)

	body := doc.Find("tbody tr")
	require.Equal(t, 1, body.Length())
	var cells []string
	body.First().Find("td").Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, s.Text())
	})
	assert.Equal(t, []string{"V Kohli", "973"}, cells)

	table := doc.Find("table")
	assert.Equal(t, "1", table.AttrOr("border", ""))
	assert.Equal(t, "6", table.AttrOr("cellpadding", ""))
}

func TestHTMLTableKeepsRowOrder(t *testing.T) {
	html, err := HTMLTable(models.QueryResult{
		Columns: []string{"Season"},
		Rows:    [][]any{{"2016"}, {"2008"}, {"2025"}},
	})
	require.NoError(t, err)

	var seasons []string
	parse(t, html).Find("tbody td").Each(func(_ int, s *goquery.Selection) {
		seasons = append(seasons, s.Text())
	})
	assert.Equal(t, []string{"2016", "2008", "2025"}, seasons)
}

func TestHTMLTableEscapesValues(t *testing.T) {
	html, err := HTMLTable(models.QueryResult{
		Columns: []string{"<b>Team</b>"},
		Rows:    [][]any{{`<script>alert("x")</script>`}},
	})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<b>")
	assert.Contains(t, html, "&lt;script&gt;")

	doc := parse(t, html)
	assert.Equal(t, 0, doc.Find("script").Length())
	assert.Equal(t, `<script>alert("x")</script>`, doc.Find("tbody td").Text())
	assert.Equal(t, "<b>Team</b>", doc.Find("thead th").Text())
}

func TestHTMLTableShortRowsAndNulls(t *testing.T) {
	html, err := HTMLTable(models.QueryResult{
		Columns: []string{"a", "b", "c"},
		Rows:    [][]any{{nil, json.Number("12.5")}},
	})
	require.NoError(t, err)

	var cells []string
	parse(t, html).Find("tbody td").Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, s.Text())
	})
	assert.Equal(t, []string{"", "12.5", ""}, cells)
}

func TestCell(t *testing.T) {
	assert.Equal(t, "", Cell(nil))
	assert.Equal(t, "973", Cell(json.Number("973")))
	assert.Equal(t, `{"a":1}`, Cell(json.RawMessage(`{"a":1}`)))
	assert.Equal(t, "true", Cell(true))
	assert.Equal(t, "42", Cell(int64(42)))
	assert.Equal(t, "x", Cell([]byte("x")))
}
