package mysql

import (
	"context"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

const typeName = "mysql"

// systemSchemas are never reported as user databases or tables.
const systemSchemas = `('information_schema', 'mysql', 'performance_schema', 'sys')`

const listDatabasesQuery = `
	SELECT schema_name
	FROM information_schema.schemata
	WHERE schema_name NOT IN ` + systemSchemas + `
	ORDER BY schema_name
`

// NewAdapter creates a MySQL adapter for connectivity checks and database listing.
// If connMgr is nil, creates an unmanaged pool closed by Close.
func NewAdapter(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*datasource.SQLAdapter, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return datasource.NewSQLAdapter(db, typeName, listDatabasesQuery, owned), nil
}

// NewQueryExecutor creates a MySQL query executor using the connection manager.
func NewQueryExecutor(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*datasource.SQLQueryExecutor, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return datasource.NewSQLQueryExecutor(db, Dialect{}, owned), nil
}
