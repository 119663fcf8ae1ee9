package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/config"
)

const typeName = "mssql"

// listDatabasesQuery skips master, tempdb, model and msdb (ids 1-4).
const listDatabasesQuery = `
	SELECT name
	FROM sys.databases
	WHERE database_id > 4
	  AND state_desc = 'ONLINE'
	ORDER BY name
`

// OpenPool creates a pinged database/sql pool for a SQL Server URL.
func OpenPool(ctx context.Context, connString string, opts datasource.PoolOptions) (datasource.PoolConnector, error) {
	connector, err := mssqldb.NewConnector(config.RewriteConnectionURL(normalizeURL(connString)))
	if err != nil {
		return nil, err
	}
	return datasource.OpenSQLDB(ctx, typeName, connector, opts)
}

// Adapter provides SQL Server connectivity checks and database listing.
type Adapter struct {
	*datasource.SQLAdapter
	expectedDB string
}

// NewAdapter creates a SQL Server adapter using the connection manager.
// If connMgr is nil, creates an unmanaged pool (for discovery or tests).
func NewAdapter(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*Adapter, error) {
	details, err := ParseConnectionString(connString)
	if err != nil {
		return nil, err
	}

	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}

	return newAdapter(db, details.Database, owned), nil
}

func newAdapter(db *sql.DB, expectedDB string, owned bool) *Adapter {
	return &Adapter{
		SQLAdapter: datasource.NewSQLAdapter(db, typeName, listDatabasesQuery, owned),
		expectedDB: expectedDB,
	}
}

// TestConnection verifies the database is reachable with valid credentials.
// Without a database parameter SQL Server silently lands in the login's
// default database, so a named database is checked against DB_NAME().
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.SQLAdapter.TestConnection(ctx); err != nil {
		return err
	}

	if a.expectedDB == "" {
		return nil
	}

	var currentDB string
	if err := a.DB().QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}
	if !strings.EqualFold(currentDB, a.expectedDB) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.expectedDB, currentDB)
	}
	return nil
}

var (
	_ datasource.ConnectionTester = (*Adapter)(nil)
	_ datasource.DatabaseLister   = (*Adapter)(nil)
)
