package mssql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

func TestDialect_QuoteIdentifier(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "[orders]", d.QuoteIdentifier("orders"))
	assert.Equal(t, "[a]]b]", d.QuoteIdentifier("a]b"))
}

func TestDialect_PaginateUnordered(t *testing.T) {
	got := Dialect{}.Paginate("SELECT * FROM [t]", 50, 0, false)
	assert.Equal(t, "SELECT * FROM [t] ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT 50 ROWS ONLY", got)
}

func TestDialect_Build(t *testing.T) {
	limit, offset := 10, 20
	spec := &models.QuerySpec{
		Table:   "dbo.orders",
		Where:   models.Filters{{Column: "region", Operator: "IN", Value: []any{"emea", "amer"}}},
		OrderBy: models.OrderTerms{{Column: "id", Direction: "asc"}},
		Limit:   &limit,
		Offset:  &offset,
	}

	q, err := gwsql.Build(spec, Dialect{})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM [dbo].[orders] WHERE [region] IN (@p1, @p2) ORDER BY [id] ASC OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY",
		q.SQL)
	assert.Equal(t, []any{"emea", "amer"}, q.Params)
}
