package datasource

import (
	"context"
	"time"
)

// PoolConnector abstracts connection pool operations
// across database types (PostgreSQL, MSSQL, MySQL, ClickHouse).
type PoolConnector interface {
	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes all connections in the pool
	Close() error

	// GetType returns the database type for logging/stats
	GetType() string
}

// PoolOptions sizes a pool.
type PoolOptions struct {
	MaxConns    int32
	MinConns    int32
	MaxIdleTime time.Duration
}

// DefaultPoolOptions is used for pools opened outside the ConnectionManager.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:    DefaultPoolMaxConns,
		MinConns:    DefaultPoolMinConns,
		MaxIdleTime: DefaultConnectionTTLMinutes * time.Minute,
	}
}
