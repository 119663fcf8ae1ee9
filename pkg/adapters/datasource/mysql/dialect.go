package mysql

import (
	"fmt"
	"strings"

	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// Dialect writes MySQL SQL: backtick identifiers and ? parameters.
type Dialect struct{}

var _ gwsql.Dialect = Dialect{}

func (Dialect) Name() string {
	return "mysql"
}

func (Dialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
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
