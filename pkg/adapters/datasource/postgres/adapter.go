package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

const typeName = "postgres"

// Adapter provides PostgreSQL connectivity checks and database listing.
type Adapter struct {
	pool       *pgxpool.Pool
	expectedDB string
	ownedPool  bool // true if we created the pool (discovery, tests)
}

// acquirePool returns the pgx pool behind connectionID.
// If connMgr is nil, creates an unmanaged pool the caller must close.
func acquirePool(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*pgxpool.Pool, bool, error) {
	connector, owned, err := datasource.AcquirePool(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, false, err
	}

	pool, err := datasource.GetPostgresPool(connector)
	if err != nil {
		if owned {
			connector.Close()
		}
		return nil, false, fmt.Errorf("failed to extract postgres pool: %w", err)
	}
	return pool, owned, nil
}

// NewAdapter creates a PostgreSQL adapter using the connection manager.
func NewAdapter(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*Adapter, error) {
	details, err := ParseConnectionString(connString)
	if err != nil {
		return nil, err
	}

	pool, owned, err := acquirePool(ctx, connMgr, connectionID, connString)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		pool:       pool,
		expectedDB: details.Database,
		ownedPool:  owned,
	}, nil
}

// TestConnection verifies the database is reachable with valid credentials.
// It checks:
// 1. Server connectivity (ping)
// 2. Database access (simple query)
// 3. Correct database name when the connection string names one
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := a.pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	if a.expectedDB == "" {
		return nil
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("failed to get current database name: %w", err)
	}

	if !strings.EqualFold(currentDB, a.expectedDB) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.expectedDB, currentDB)
	}

	return nil
}

// ListDatabases returns connectable, non-template databases.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `
		SELECT datname
		FROM pg_database
		WHERE datistemplate = false
		  AND datallowconn = true
		ORDER BY datname
	`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}

	return names, nil
}

// Close releases the adapter (but NOT the pool if managed).
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}

var (
	_ datasource.ConnectionTester = (*Adapter)(nil)
	_ datasource.DatabaseLister   = (*Adapter)(nil)
)
