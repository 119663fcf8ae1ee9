package mssql

import (
	"context"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

// NewQueryExecutor creates a SQL Server query executor using the connection manager.
// Statements use @p1, @p2, ... placeholders, which go-mssqldb binds positionally.
func NewQueryExecutor(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*datasource.SQLQueryExecutor, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return datasource.NewSQLQueryExecutor(db, Dialect{}, owned), nil
}
