package datasource

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLAdapter implements ConnectionTester and DatabaseLister over a database/sql pool.
type SQLAdapter struct {
	db        *sql.DB
	dsType    string
	listQuery string
	owned     bool
}

// NewSQLAdapter creates an adapter. listQuery must return one column of database names.
func NewSQLAdapter(db *sql.DB, dsType, listQuery string, owned bool) *SQLAdapter {
	return &SQLAdapter{db: db, dsType: dsType, listQuery: listQuery, owned: owned}
}

// TestConnection pings and runs a trivial query.
func (a *SQLAdapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var one int
	if err := a.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

func (a *SQLAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := QueryStrings(ctx, a.db, a.listQuery)
	if err != nil {
		return nil, fmt.Errorf("list %s databases: %w", a.dsType, err)
	}
	return names, nil
}

// DB returns the underlying pool.
func (a *SQLAdapter) DB() *sql.DB {
	return a.db
}

func (a *SQLAdapter) Close() error {
	if a.owned && a.db != nil {
		return a.db.Close()
	}
	return nil
}

var (
	_ ConnectionTester = (*SQLAdapter)(nil)
	_ DatabaseLister   = (*SQLAdapter)(nil)
	_ QueryExecutor    = (*SQLQueryExecutor)(nil)
)
