package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"

	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// Dialect writes PostgreSQL SQL: double-quoted identifiers and $n parameters.
type Dialect struct{}

var _ gwsql.Dialect = Dialect{}

func (Dialect) Name() string {
	return "postgres"
}

func (Dialect) QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (Dialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (Dialect) Paginate(query string, limit, offset int, _ bool) string {
	if offset > 0 {
		return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset)
	}
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}
