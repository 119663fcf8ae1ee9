package clickhouse

import (
	"fmt"
	"strings"

	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// Dialect writes ClickHouse SQL: backtick identifiers and ? parameters.
type Dialect struct{}

var _ gwsql.Dialect = Dialect{}

func (Dialect) Name() string {
	return "clickhouse"
}

// QuoteIdentifier escapes backslashes and backticks inside backtick quotes.
func (Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "`", "\\`")
	return "`" + escaped + "`"
}

func (Dialect) Placeholder(int) string {
	return "?"
}

func (Dialect) Paginate(query string, limit, offset int, _ bool) string {
	if offset > 0 {
		return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset)
	}
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
