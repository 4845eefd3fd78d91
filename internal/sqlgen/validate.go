package sqlgen

import "strings"

// IsValidSelect is a prefix smoke test: it does not parse SQL.
func IsValidSelect(sql string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sql)), "select")
}

// Sanitize removes markdown code fences and one trailing semicolon.
func Sanitize(raw string) string {
	sql := strings.TrimSpace(raw)
	sql = strings.ReplaceAll(sql, "```sql", "")
	sql = strings.ReplaceAll(sql, "```", "")
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}
