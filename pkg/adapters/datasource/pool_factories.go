package datasource

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-gateway/pkg/config"
)

// CreatePostgresPool creates and pings a PostgreSQL connection pool.
func CreatePostgresPool(ctx context.Context, connString string, opts PoolOptions) (PoolConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(config.RewriteConnectionURL(connString))
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = opts.MaxConns
	poolConfig.MinConns = opts.MinConns
	poolConfig.MaxConnIdleTime = opts.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// pgxpool connects lazily; surface bad credentials now.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgresPoolWrapper(pool), nil
}

// OpenSQLDB wraps a database/sql connector in a sized, pinged pool.
func OpenSQLDB(ctx context.Context, dsType string, connector driver.Connector, opts PoolOptions) (PoolConnector, error) {
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(int(opts.MaxConns))
	db.SetMaxIdleConns(int(opts.MinConns))
	db.SetConnMaxIdleTime(opts.MaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return NewSQLDBWrapper(db, dsType), nil
}

// GetPostgresPool extracts the underlying *pgxpool.Pool from a PoolConnector.
func GetPostgresPool(connector PoolConnector) (*pgxpool.Pool, error) {
	wrapper, ok := connector.(*PostgresPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a PostgreSQL pool wrapper")
	}
	return wrapper.GetPool(), nil
}

// GetSQLDB extracts the underlying *sql.DB from a PoolConnector.
func GetSQLDB(connector PoolConnector) (*sql.DB, error) {
	wrapper, ok := connector.(*SQLDBWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a database/sql pool wrapper")
	}
	return wrapper.GetDB(), nil
}

// AcquirePool returns the managed pool for connectionID.
// With a nil connMgr it opens a pool the caller owns and must close.
func AcquirePool(ctx context.Context, connMgr *ConnectionManager, dsType, connectionID, connString string) (conn PoolConnector, owned bool, err error) {
	if connMgr != nil {
		conn, err = connMgr.GetOrCreateConnection(ctx, dsType, connectionID, connString)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get pooled connection: %w", err)
		}
		return conn, false, nil
	}

	reg, ok := GetRegistration(dsType)
	if !ok || reg.OpenPool == nil {
		return nil, false, fmt.Errorf("no pool opener registered for %s", dsType)
	}
	conn, err = reg.OpenPool(ctx, connString, DefaultPoolOptions())
	if err != nil {
		return nil, false, fmt.Errorf("connect to %s: %w", dsType, err)
	}
	return conn, true, nil
}

// AcquireSQLDB is AcquirePool for database/sql adapters.
func AcquireSQLDB(ctx context.Context, connMgr *ConnectionManager, dsType, connectionID, connString string) (*sql.DB, bool, error) {
	conn, owned, err := AcquirePool(ctx, connMgr, dsType, connectionID, connString)
	if err != nil {
		return nil, false, err
	}

	db, err := GetSQLDB(conn)
	if err != nil {
		if owned {
			conn.Close()
		}
		return nil, false, err
	}
	return db, owned, nil
}
