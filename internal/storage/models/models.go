package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// CachedQuery is one append-only (question, sql) pair in the SQL cache.
type CachedQuery struct {
	Question string
	SQL      string
}

// FuzzyCandidate is one ranked result of a similarity search over past questions.
type FuzzyCandidate struct {
	Question string
	SQL      string
	Score    float64
}

// QueryResult holds rows in execution order. Columns are taken from the first row.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

func (r QueryResult) Len() int {
	return len(r.Rows)
}

func (r QueryResult) Empty() bool {
	return len(r.Columns) == 0 || len(r.Rows) == 0
}

// MarshalJSON encodes the result as an array of objects whose keys keep column order.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range r.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, col := range r.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')

			var value any
			if j < len(row) {
				value = row[j]
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			buf.Write(encoded)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

type ChatRecord struct {
	ID            string
	Question      string
	SQL           string
	Source        string
	Outcome       string
	Attempts      int
	RowCount      int
	Error         string
	PromptVersion string
	LatencyMS     int
	CreatedAt     time.Time
}
