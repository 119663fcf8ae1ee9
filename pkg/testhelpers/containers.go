// Package testhelpers provides utilities for testing ekaya-gateway components.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresImage is the image used for datasource integration tests.
const PostgresImage = "postgres:16-alpine"

// FixtureSQL seeds the shared test database with a small sales schema.
const FixtureSQL = `
CREATE SCHEMA IF NOT EXISTS sales;

CREATE TABLE sales.customers (
	id      SERIAL PRIMARY KEY,
	email   TEXT NOT NULL UNIQUE,
	region  TEXT NOT NULL
);

CREATE TABLE sales.orders (
	id          SERIAL PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES sales.customers(id),
	status      TEXT NOT NULL,
	total       NUMERIC(10, 2) NOT NULL,
	created_at  DATE NOT NULL
);

INSERT INTO sales.customers (email, region) VALUES
	('ada@example.com', 'emea'),
	('grace@example.com', 'amer'),
	('linus@example.com', 'emea');

INSERT INTO sales.orders (customer_id, status, total, created_at) VALUES
	(1, 'paid', 120.00, '2024-01-03'),
	(1, 'shipped', 80.50, '2024-01-09'),
	(2, 'paid', 42.00, '2024-02-14'),
	(3, 'refunded', 15.25, '2024-02-20'),
	(2, 'paid', 300.00, '2024-03-01');

ANALYZE sales.customers;
ANALYZE sales.orders;
`

// TestDB holds a shared test database container and connection pool.
type TestDB struct {
	Container testcontainers.Container
	Pool      *pgxpool.Pool
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once, seeded with FixtureSQL and reused across the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "test_data",
			"POSTGRES_USER":     "ekaya",
			"POSTGRES_PASSWORD": "test_password",
		},
		// The server restarts once after init scripts run.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://ekaya:test_password@%s:%s/test_data?sslmode=disable",
		host, port.Port())

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection with retry
	for i := 0; i < 10; i++ {
		if err = pool.Ping(ctx); err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("test database never became ready: %w", err)
	}

	if _, err := pool.Exec(ctx, FixtureSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed fixture schema: %w", err)
	}

	return &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}, nil
}
