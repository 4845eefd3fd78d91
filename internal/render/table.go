// Package render turns query results into the HTML fragments the chat UI shows.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/ask-cricket/backend/internal/storage/models"
)

// NoDataHTML is returned for an empty result.
const NoDataHTML = "<p>No data found.</p>"

var tableTemplate = template.Must(template.New("table").Funcs(template.FuncMap{
	"cell": Cell,
}).Parse(`<table border="1" cellspacing="0" cellpadding="6">` +
	`<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>` +
	`<tbody>{{range .Rows}}<tr>{{range .}}<td>{{cell .}}</td>{{end}}</tr>{{end}}</tbody>` +
	`</table>`))

// HTMLTable renders headers from the result columns and one row per record.
// Headers and cell values are HTML-escaped.
func HTMLTable(result models.QueryResult) (string, error) {
	if result.Empty() {
		return NoDataHTML, nil
	}

	rows := make([][]any, len(result.Rows))
	for i, row := range result.Rows {
		padded := make([]any, len(result.Columns))
		copy(padded, row)
		rows[i] = padded
	}

	var buf bytes.Buffer
	err := tableTemplate.Execute(&buf, struct {
		Columns []string
		Rows    [][]any
	}{result.Columns, rows})
	if err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	return buf.String(), nil
}

// Cell formats a single value for display. nil renders empty.
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case json.RawMessage:
		return string(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
