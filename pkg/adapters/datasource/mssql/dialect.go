package mssql

import (
	"fmt"

	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// Dialect writes T-SQL: bracketed identifiers and @pN parameters.
type Dialect struct{}

var _ gwsql.Dialect = Dialect{}

func (Dialect) Name() string {
	return "mssql"
}

func (Dialect) QuoteIdentifier(name string) string {
	return quoteName(name)
}

func (Dialect) Placeholder(n int) string {
	return fmt.Sprintf("@p%d", n)
}

// Paginate uses OFFSET/FETCH, which T-SQL only allows after an ORDER BY.
func (Dialect) Paginate(query string, limit, offset int, ordered bool) string {
	if !ordered {
		query += " ORDER BY (SELECT NULL)"
	}
	return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", query, offset, limit)
}
