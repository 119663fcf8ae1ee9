package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
	"github.com/ekaya-inc/ekaya-gateway/pkg/planning"
	"github.com/ekaya-inc/ekaya-gateway/pkg/services"
)

// mockDatabaseService is a configurable services.DatabaseService.
// err, when set, is returned by every operation.
type mockDatabaseService struct {
	connection  *models.Connection
	connections []*models.Connection
	health      *models.Health
	metadata    *models.DatabaseMetadata
	result      *models.QueryResult
	suggestions []models.VisualizationSuggestion
	databases   []models.DiscoveredDatabase
	err         error

	calls           []string
	capturedID      string
	capturedTable   string
	capturedSpec    *models.QuerySpec
	capturedBody    string
	capturedConnStr string
	capturedName    string
}

var _ services.DatabaseService = (*mockDatabaseService)(nil)

func (m *mockDatabaseService) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	m.calls = append(m.calls, "GetConnection")
	m.capturedID = id
	if m.err != nil {
		return nil, m.err
	}
	if m.connection == nil || m.connection.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return m.connection, nil
}

func (m *mockDatabaseService) ListConnections(ctx context.Context) ([]*models.Connection, error) {
	m.calls = append(m.calls, "ListConnections")
	return m.connections, m.err
}

func (m *mockDatabaseService) CreateConnection(ctx context.Context, name, connString string) (*models.Connection, error) {
	m.calls = append(m.calls, "CreateConnection")
	m.capturedName = name
	m.capturedConnStr = connString
	if m.err != nil {
		return nil, m.err
	}
	return m.connection, nil
}

func (m *mockDatabaseService) RemoveConnection(ctx context.Context, id string) error {
	m.calls = append(m.calls, "RemoveConnection")
	m.capturedID = id
	return m.err
}

func (m *mockDatabaseService) CheckHealth(ctx context.Context, id string) (*models.Health, error) {
	m.calls = append(m.calls, "CheckHealth")
	m.capturedID = id
	return m.health, m.err
}

func (m *mockDatabaseService) GetMetadata(ctx context.Context, id string) (*models.DatabaseMetadata, error) {
	m.calls = append(m.calls, "GetMetadata")
	m.capturedID = id
	return m.metadata, m.err
}

func (m *mockDatabaseService) ExecuteQuery(ctx context.Context, spec models.QuerySpec) (*models.QueryResult, error) {
	m.calls = append(m.calls, "ExecuteQuery")
	m.capturedSpec = &spec
	return m.result, m.err
}

// ExecuteQueryRequest decodes the body the way the real service does.
func (m *mockDatabaseService) ExecuteQueryRequest(ctx context.Context, id string, body []byte) (*models.QueryResult, error) {
	m.calls = append(m.calls, "ExecuteQueryRequest")
	m.capturedID = id
	m.capturedBody = string(body)
	var spec models.QuerySpec
	if err := json.Unmarshal(body, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidQuery, err)
	}
	spec.ConnectionID = id
	m.capturedSpec = &spec
	return m.result, m.err
}

func (m *mockDatabaseService) SuggestVisualizations(ctx context.Context, id, table string) ([]models.VisualizationSuggestion, error) {
	m.calls = append(m.calls, "SuggestVisualizations")
	m.capturedID = id
	m.capturedTable = table
	return m.suggestions, m.err
}

func (m *mockDatabaseService) DiscoverDatabases(ctx context.Context, connString string) ([]models.DiscoveredDatabase, error) {
	m.calls = append(m.calls, "DiscoverDatabases")
	m.capturedConnStr = connString
	return m.databases, m.err
}

func (m *mockDatabaseService) ListTypes() []datasource.DatasourceAdapterInfo {
	return []datasource.DatasourceAdapterInfo{
		{Type: "postgres", DisplayName: "PostgreSQL", Schemes: []string{"postgres", "postgresql"}, DefaultPort: 5432},
	}
}

// mockPlanningClient is a configurable PlanningClient.
type mockPlanningClient struct {
	resp *planning.Response
	err  error

	capturedBody []byte
	calls        int
}

func (m *mockPlanningClient) GetFrameworks(ctx context.Context) (*planning.Response, error) {
	m.calls++
	return m.resp, m.err
}

func (m *mockPlanningClient) SelectCompany(ctx context.Context, body []byte) (*planning.Response, error) {
	m.calls++
	m.capturedBody = body
	return m.resp, m.err
}
