package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// QueryExecutor provides PostgreSQL query execution.
type QueryExecutor struct {
	pool      *pgxpool.Pool
	ownedPool bool
}

// NewQueryExecutor creates a PostgreSQL query executor using the connection manager.
// If connMgr is nil, creates an unmanaged pool closed by Close.
func NewQueryExecutor(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*QueryExecutor, error) {
	pool, owned, err := acquirePool(ctx, connMgr, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return &QueryExecutor{pool: pool, ownedPool: owned}, nil
}

func (e *QueryExecutor) Dialect() gwsql.Dialect {
	return Dialect{}
}

// QueryWithParams runs a parameterized SQL query with positional parameters.
// The SQL should use $1, $2, etc. for parameter placeholders.
func (e *QueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	limit = datasource.BoundedLimit(limit)

	rows, err := e.pool.Query(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	typeMap := rows.Conn().TypeMap()
	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: typeNameFromOID(typeMap, fd.DataTypeOID),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		if len(resultRows) >= limit {
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = jsonValue(values[i])
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// Close releases the executor (but NOT the pool if managed).
func (e *QueryExecutor) Close() error {
	if e.ownedPool && e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// typeNameFromOID names a column type the way PostgreSQL does, upper-cased.
// Array types ("_int4") are reported as "INT4[]".
func typeNameFromOID(m *pgtype.Map, oid uint32) string {
	if m == nil {
		return "UNKNOWN"
	}
	t, ok := m.TypeForOID(oid)
	if !ok {
		return "UNKNOWN"
	}
	name := strings.ToUpper(t.Name)
	if strings.HasPrefix(name, "_") {
		return name[1:] + "[]"
	}
	return name
}

// jsonValue converts pgx decoded values that do not marshal usefully.
func jsonValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		return string(val)
	default:
		return v
	}
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
