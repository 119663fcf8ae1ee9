package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// SQLQueryExecutor runs SELECTs over a database/sql pool.
// Shared by the mssql, mysql and clickhouse adapters.
type SQLQueryExecutor struct {
	db      *sql.DB
	dialect gwsql.Dialect
	owned   bool
}

// NewSQLQueryExecutor creates an executor. When owned is true Close closes db.
func NewSQLQueryExecutor(db *sql.DB, dialect gwsql.Dialect, owned bool) *SQLQueryExecutor {
	return &SQLQueryExecutor{db: db, dialect: dialect, owned: owned}
}

func (e *SQLQueryExecutor) Dialect() gwsql.Dialect {
	return e.dialect
}

// QueryWithParams runs sqlQuery with positional params and reads at most limit rows.
func (e *SQLQueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return ScanSQLRows(rows, BoundedLimit(limit))
}

func (e *SQLQueryExecutor) Close() error {
	if e.owned && e.db != nil {
		return e.db.Close()
	}
	return nil
}

// ScanSQLRows reads rows into maps keyed by column name.
// []byte values become strings so results serialize as text rather than base64.
func ScanSQLRows(rows *sql.Rows, limit int) (*QueryExecutionResult, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ColumnInfo{
			Name: ct.Name(),
			Type: strings.ToUpper(ct.DatabaseTypeName()),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		if len(resultRows) >= limit {
			break
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				rowMap[col.Name] = string(b)
			} else {
				rowMap[col.Name] = values[i]
			}
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// QueryStrings runs a single-column query and returns its values.
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
