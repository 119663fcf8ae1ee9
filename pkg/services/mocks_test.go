package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// mockConnectionTester is a mock implementation of datasource.ConnectionTester.
type mockConnectionTester struct {
	testErr error
	closed  bool
}

func (m *mockConnectionTester) TestConnection(ctx context.Context) error {
	return m.testErr
}

func (m *mockConnectionTester) Close() error {
	m.closed = true
	return nil
}

type mockDatabaseLister struct {
	names   []string
	listErr error
}

func (m *mockDatabaseLister) ListDatabases(ctx context.Context) ([]string, error) {
	return m.names, m.listErr
}

func (m *mockDatabaseLister) Close() error {
	return nil
}

type mockSchemaDiscoverer struct {
	tables     []datasource.TableMetadata
	columns    map[string][]datasource.ColumnMetadata
	fks        []datasource.ForeignKeyMetadata
	noFKs      bool
	tablesErr  error
	columnsErr error

	columnCalls []string
}

func (m *mockSchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return m.tables, m.tablesErr
}

func (m *mockSchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	m.columnCalls = append(m.columnCalls, tableName)
	if m.columnsErr != nil {
		return nil, m.columnsErr
	}
	return m.columns[tableName], nil
}

func (m *mockSchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return m.fks, nil
}

func (m *mockSchemaDiscoverer) SupportsForeignKeys() bool {
	return !m.noFKs
}

func (m *mockSchemaDiscoverer) Close() error {
	return nil
}

type mockQueryExecutor struct {
	result   *datasource.QueryExecutionResult
	queryErr error

	capturedSQL    string
	capturedParams []any
	capturedLimit  int
}

func (m *mockQueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	m.capturedSQL = sqlQuery
	m.capturedParams = params
	m.capturedLimit = limit
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.result, nil
}

func (m *mockQueryExecutor) Dialect() gwsql.Dialect {
	return testDialect{}
}

func (m *mockQueryExecutor) Close() error {
	return nil
}

// testDialect renders postgres-style SQL.
type testDialect struct{}

func (testDialect) Name() string                      { return "test" }
func (testDialect) QuoteIdentifier(name string) string { return `"` + name + `"` }
func (testDialect) Placeholder(n int) string           { return fmt.Sprintf("$%d", n) }
func (testDialect) Paginate(query string, limit, offset int, ordered bool) string {
	if offset > 0 {
		return fmt.Sprintf("%s LIMIT %d OFFSET %d", query, limit, offset)
	}
	return fmt.Sprintf("%s LIMIT %d", query, limit)
}

// mockAdapterFactory is a mock implementation of datasource.DatasourceAdapterFactory.
// Types are detected from the scheme and every connection string describes
// host "db.local" and the path as the database.
type mockAdapterFactory struct {
	tester     *mockConnectionTester
	lister     *mockDatabaseLister
	discoverer *mockSchemaDiscoverer
	executor   *mockQueryExecutor
	factoryErr error

	testedIDs []string
}

func (m *mockAdapterFactory) DetectType(connString string) (string, error) {
	if !strings.HasPrefix(connString, "postgres://") {
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, connString)
	}
	return "postgres", nil
}

func (m *mockAdapterFactory) Describe(dsType, connString string) (*datasource.ConnectionDetails, error) {
	db := ""
	rest := strings.TrimPrefix(connString, "postgres://")
	if i := strings.Index(rest, "/"); i >= 0 {
		db = rest[i+1:]
	}
	return &datasource.ConnectionDetails{Host: "db.local", Port: 5432, Database: db, Username: "app"}, nil
}

func (m *mockAdapterFactory) WithDatabase(dsType, connString, database string) (string, error) {
	return "postgres://app@db.local:5432/" + database, nil
}

func (m *mockAdapterFactory) NewConnectionTester(ctx context.Context, dsType, connectionID, connString string) (datasource.ConnectionTester, error) {
	if m.factoryErr != nil {
		return nil, m.factoryErr
	}
	m.testedIDs = append(m.testedIDs, connectionID)
	if m.tester == nil {
		m.tester = &mockConnectionTester{}
	}
	return m.tester, nil
}

func (m *mockAdapterFactory) NewSchemaDiscoverer(ctx context.Context, dsType, connectionID, connString string) (datasource.SchemaDiscoverer, error) {
	if m.factoryErr != nil {
		return nil, m.factoryErr
	}
	return m.discoverer, nil
}

func (m *mockAdapterFactory) NewQueryExecutor(ctx context.Context, dsType, connectionID, connString string) (datasource.QueryExecutor, error) {
	if m.factoryErr != nil {
		return nil, m.factoryErr
	}
	return m.executor, nil
}

func (m *mockAdapterFactory) NewDatabaseLister(ctx context.Context, dsType, connString string) (datasource.DatabaseLister, error) {
	if m.factoryErr != nil {
		return nil, m.factoryErr
	}
	return m.lister, nil
}

func (m *mockAdapterFactory) ListTypes() []datasource.DatasourceAdapterInfo {
	return []datasource.DatasourceAdapterInfo{{Type: "postgres", DisplayName: "PostgreSQL"}}
}

// mockPoolRemover records which pools were closed.
type mockPoolRemover struct {
	mu      sync.Mutex
	removed []string
}

func (m *mockPoolRemover) RemoveConnection(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, connectionID)
	return true
}
