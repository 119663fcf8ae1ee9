package datasource

import (
	"context"

	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// ConnectionTester tests database connectivity.
// Each implementation must be closed when done; managed pools stay open.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	Close() error
}

// DatabaseLister enumerates the user databases on a server.
type DatabaseLister interface {
	// ListDatabases returns database names, excluding system and template databases.
	ListDatabases(ctx context.Context) ([]string, error)

	Close() error
}

// SchemaDiscoverer discovers database schema for metadata requests.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// SupportsForeignKeys returns true if the database supports FK discovery.
	SupportsForeignKeys() bool

	Close() error
}

// MaxQueryLimit is the hard cap on rows returned by QueryWithParams.
const MaxQueryLimit = gwsql.MaxQueryLimit

// QueryExecutor runs compiled SELECT statements.
type QueryExecutor interface {
	// QueryWithParams runs a parameterized SELECT and returns at most limit rows.
	// Placeholders follow Dialect().Placeholder. limit <= 0 or above
	// MaxQueryLimit is treated as MaxQueryLimit.
	QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)

	// Dialect describes how SQL for this datasource is written.
	Dialect() gwsql.Dialect

	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// BoundedLimit normalizes a caller-supplied row cap.
func BoundedLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
