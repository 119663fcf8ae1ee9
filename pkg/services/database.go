package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/logging"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
	"github.com/ekaya-inc/ekaya-gateway/pkg/repositories"
	gwsql "github.com/ekaya-inc/ekaya-gateway/pkg/sql"
)

// DatabaseService defines the operations behind the /api/database routes.
type DatabaseService interface {
	// GetConnection returns a registered connection, or apperrors.ErrNotFound.
	GetConnection(ctx context.Context, id string) (*models.Connection, error)

	// ListConnections returns all registered connections, oldest first.
	ListConnections(ctx context.Context) ([]*models.Connection, error)

	// CreateConnection tests connString and registers it.
	// Registering the same connection string twice returns the same connection.
	CreateConnection(ctx context.Context, name, connString string) (*models.Connection, error)

	// RemoveConnection closes the connection's pool and forgets it.
	// Removing an unknown id is not an error.
	RemoveConnection(ctx context.Context, id string) error

	// CheckHealth probes the database. An unreachable database is reported
	// as an unhealthy Health, not as an error.
	CheckHealth(ctx context.Context, id string) (*models.Health, error)

	// GetMetadata discovers tables, columns and foreign keys.
	GetMetadata(ctx context.Context, id string) (*models.DatabaseMetadata, error)

	// ExecuteQuery compiles and runs a structured query.
	ExecuteQuery(ctx context.Context, spec models.QuerySpec) (*models.QueryResult, error)

	// ExecuteQueryRequest decodes a JSON query body and runs it against connection id.
	// A body whose fields have the wrong shape fails with apperrors.ErrInvalidQuery.
	ExecuteQueryRequest(ctx context.Context, id string, body []byte) (*models.QueryResult, error)

	// SuggestVisualizations proposes charts for one table.
	SuggestVisualizations(ctx context.Context, id, table string) ([]models.VisualizationSuggestion, error)

	// DiscoverDatabases lists the databases on a server and registers one connection per database.
	DiscoverDatabases(ctx context.Context, connString string) ([]models.DiscoveredDatabase, error)

	// ListTypes returns the database types this gateway can connect to.
	ListTypes() []datasource.DatasourceAdapterInfo
}

// PoolRemover closes pooled connections for a connection id.
// *datasource.ConnectionManager satisfies it.
type PoolRemover interface {
	RemoveConnection(connectionID string) bool
}

type databaseService struct {
	repo           repositories.ConnectionRepository
	adapterFactory datasource.DatasourceAdapterFactory
	pools          PoolRemover
	queryTimeout   time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewDatabaseService creates a DatabaseService.
// queryTimeout bounds each call against a datasource; zero means no bound beyond ctx.
func NewDatabaseService(
	repo repositories.ConnectionRepository,
	adapterFactory datasource.DatasourceAdapterFactory,
	pools PoolRemover,
	queryTimeout time.Duration,
	logger *zap.Logger,
) DatabaseService {
	return &databaseService{
		repo:           repo,
		adapterFactory: adapterFactory,
		pools:          pools,
		queryTimeout:   queryTimeout,
		logger:         logger.Named("database"),
		now:            time.Now,
	}
}

var _ DatabaseService = (*databaseService)(nil)

// ConnectionID derives the id of a connection string.
// Ids are stable so re-registering a string updates the existing record.
func ConnectionID(connString string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(connString)).String()
}

func (s *databaseService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *databaseService) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	conn, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get connection %s: %w", id, err)
	}
	return conn, nil
}

func (s *databaseService) ListConnections(ctx context.Context) ([]*models.Connection, error) {
	conns, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return conns, nil
}

func (s *databaseService) ListTypes() []datasource.DatasourceAdapterInfo {
	return s.adapterFactory.ListTypes()
}

func (s *databaseService) CreateConnection(ctx context.Context, name, connString string) (*models.Connection, error) {
	conn, err := s.newConnection(ctx, name, connString)
	if err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tester, err := s.adapterFactory.NewConnectionTester(tctx, conn.Type, conn.ID, connString)
	if err != nil {
		s.pools.RemoveConnection(conn.ID)
		return nil, fmt.Errorf("connect to %s database: %w", conn.Type, err)
	}
	defer tester.Close()

	if err := tester.TestConnection(tctx); err != nil {
		s.pools.RemoveConnection(conn.ID)
		s.logger.Warn("Connection test failed",
			zap.String("type", conn.Type),
			zap.String("host", conn.Host),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	if err := s.repo.Save(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	s.logger.Info("Registered connection",
		zap.String("id", conn.ID),
		zap.String("type", conn.Type),
		zap.String("host", conn.Host),
		zap.String("database", conn.Database))

	return conn, nil
}

// newConnection builds the record for connString without touching the database.
// An existing record for the same string keeps its creation time and, when
// name is empty, its name.
func (s *databaseService) newConnection(ctx context.Context, name, connString string) (*models.Connection, error) {
	connString = strings.TrimSpace(connString)
	if connString == "" {
		return nil, fmt.Errorf("%w: connection string is empty", apperrors.ErrInvalidConnection)
	}

	dsType, err := s.adapterFactory.DetectType(connString)
	if err != nil {
		return nil, err
	}
	details, err := s.adapterFactory.Describe(dsType, connString)
	if err != nil {
		return nil, err
	}

	conn := &models.Connection{
		ID:               ConnectionID(connString),
		Name:             strings.TrimSpace(name),
		Type:             dsType,
		Host:             details.Host,
		Port:             details.Port,
		Database:         details.Database,
		Username:         details.Username,
		CreatedAt:        s.now().UTC(),
		ConnectionString: connString,
	}

	existing, err := s.repo.Get(ctx, conn.ID)
	switch {
	case err == nil:
		conn.CreatedAt = existing.CreatedAt
		conn.LastUsedAt = existing.LastUsedAt
		if conn.Name == "" {
			conn.Name = existing.Name
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("look up connection: %w", err)
	}

	if conn.Name == "" {
		conn.Name = defaultConnectionName(conn)
	}
	return conn, nil
}

func defaultConnectionName(conn *models.Connection) string {
	if conn.Database != "" {
		return conn.Database + "@" + conn.Host
	}
	return conn.Host
}

func (s *databaseService) RemoveConnection(ctx context.Context, id string) error {
	if s.pools.RemoveConnection(id) {
		s.logger.Debug("Closed pool", zap.String("id", id))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	return nil
}

func (s *databaseService) CheckHealth(ctx context.Context, id string) (*models.Health, error) {
	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := s.now()
	probeErr := s.probe(tctx, conn)
	health := &models.Health{
		ConnectionID: conn.ID,
		Status:       models.HealthStatusHealthy,
		LatencyMs:    s.now().Sub(start).Milliseconds(),
		CheckedAt:    s.now().UTC(),
	}
	if probeErr != nil {
		health.Status = models.HealthStatusUnhealthy
		health.Error = logging.SanitizeError(probeErr)
		s.logger.Warn("Health check failed",
			zap.String("id", conn.ID),
			zap.String("error", health.Error))
		return health, nil
	}

	s.touch(ctx, conn.ID)
	return health, nil
}

func (s *databaseService) probe(ctx context.Context, conn *models.Connection) error {
	tester, err := s.adapterFactory.NewConnectionTester(ctx, conn.Type, conn.ID, conn.ConnectionString)
	if err != nil {
		return err
	}
	defer tester.Close()
	return tester.TestConnection(ctx)
}

func (s *databaseService) GetMetadata(ctx context.Context, id string) (*models.DatabaseMetadata, error) {
	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	discoverer, err := s.adapterFactory.NewSchemaDiscoverer(tctx, conn.Type, conn.ID, conn.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("create schema discoverer: %w", err)
	}
	defer discoverer.Close()

	tables, err := discoverer.DiscoverTables(tctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	meta := &models.DatabaseMetadata{
		ConnectionID: conn.ID,
		Database:     conn.Database,
		Type:         conn.Type,
		Tables:       make([]models.TableMetadata, 0, len(tables)),
		RetrievedAt:  s.now().UTC(),
	}

	for _, t := range tables {
		table, err := describeTable(tctx, discoverer, t)
		if err != nil {
			return nil, err
		}
		meta.Tables = append(meta.Tables, *table)
	}

	if discoverer.SupportsForeignKeys() {
		fks, err := discoverer.DiscoverForeignKeys(tctx)
		if err != nil {
			return nil, fmt.Errorf("discover foreign keys: %w", err)
		}
		attachForeignKeys(meta, fks)
	}

	s.touch(ctx, conn.ID)

	s.logger.Debug("Discovered metadata",
		zap.String("id", conn.ID),
		zap.Int("tables", len(meta.Tables)))

	return meta, nil
}

func describeTable(ctx context.Context, discoverer datasource.SchemaDiscoverer, t datasource.TableMetadata) (*models.TableMetadata, error) {
	cols, err := discoverer.DiscoverColumns(ctx, t.SchemaName, t.TableName)
	if err != nil {
		return nil, fmt.Errorf("discover columns of %s: %w", t.TableName, err)
	}

	table := &models.TableMetadata{
		Schema:   t.SchemaName,
		Name:     t.TableName,
		RowCount: t.RowCount,
		Columns:  make([]models.ColumnMetadata, 0, len(cols)),
	}
	for _, c := range cols {
		table.Columns = append(table.Columns, models.ColumnMetadata{
			Name:            c.ColumnName,
			DataType:        c.DataType,
			IsNullable:      c.IsNullable,
			IsPrimaryKey:    c.IsPrimaryKey,
			IsUnique:        c.IsUnique,
			OrdinalPosition: c.OrdinalPosition,
			DefaultValue:    c.DefaultValue,
		})
	}
	return table, nil
}

func attachForeignKeys(meta *models.DatabaseMetadata, fks []datasource.ForeignKeyMetadata) {
	for _, fk := range fks {
		for i := range meta.Tables {
			t := &meta.Tables[i]
			if t.Schema != fk.SourceSchema || t.Name != fk.SourceTable {
				continue
			}
			t.ForeignKeys = append(t.ForeignKeys, models.ForeignKey{
				Name:             fk.ConstraintName,
				Column:           fk.SourceColumn,
				ReferencedSchema: fk.TargetSchema,
				ReferencedTable:  fk.TargetTable,
				ReferencedColumn: fk.TargetColumn,
			})
			break
		}
	}
}

func (s *databaseService) ExecuteQueryRequest(ctx context.Context, id string, body []byte) (*models.QueryResult, error) {
	var spec models.QuerySpec
	if err := json.Unmarshal(body, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidQuery, err)
	}
	spec.ConnectionID = id
	return s.ExecuteQuery(ctx, spec)
}

func (s *databaseService) ExecuteQuery(ctx context.Context, spec models.QuerySpec) (*models.QueryResult, error) {
	conn, err := s.GetConnection(ctx, spec.ConnectionID)
	if err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	executor, err := s.adapterFactory.NewQueryExecutor(tctx, conn.Type, conn.ID, conn.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("create query executor: %w", err)
	}
	defer executor.Close()

	built, err := gwsql.Build(&spec, executor.Dialect())
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := executor.QueryWithParams(tctx, built.SQL, built.Params, built.Limit)
	if err != nil {
		s.logger.Warn("Query failed",
			zap.String("id", conn.ID),
			zap.String("sql", logging.SanitizeQuery(built.SQL)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("execute query: %w", err)
	}

	result := &models.QueryResult{
		Columns:    make([]models.ColumnInfo, 0, len(res.Columns)),
		Rows:       res.Rows,
		RowCount:   res.RowCount,
		SQL:        built.SQL,
		DurationMs: s.now().Sub(start).Milliseconds(),
	}
	for _, c := range res.Columns {
		result.Columns = append(result.Columns, models.ColumnInfo{Name: c.Name, Type: c.Type})
	}
	if result.Rows == nil {
		result.Rows = []map[string]any{}
	}

	s.touch(ctx, conn.ID)
	return result, nil
}

func (s *databaseService) SuggestVisualizations(ctx context.Context, id, table string) ([]models.VisualizationSuggestion, error) {
	conn, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	discoverer, err := s.adapterFactory.NewSchemaDiscoverer(tctx, conn.Type, conn.ID, conn.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("create schema discoverer: %w", err)
	}
	defer discoverer.Close()

	tables, err := discoverer.DiscoverTables(tctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	// Only the requested table needs columns.
	index := &models.DatabaseMetadata{Tables: make([]models.TableMetadata, 0, len(tables))}
	for _, t := range tables {
		index.Tables = append(index.Tables, models.TableMetadata{Schema: t.SchemaName, Name: t.TableName, RowCount: t.RowCount})
	}
	found := index.FindTable(table)
	if found == nil {
		return nil, fmt.Errorf("table %q: %w", table, apperrors.ErrNotFound)
	}

	described, err := describeTable(tctx, discoverer, datasource.TableMetadata{
		SchemaName: found.Schema,
		TableName:  found.Name,
		RowCount:   found.RowCount,
	})
	if err != nil {
		return nil, err
	}

	if discoverer.SupportsForeignKeys() {
		fks, err := discoverer.DiscoverForeignKeys(tctx)
		if err != nil {
			return nil, fmt.Errorf("discover foreign keys: %w", err)
		}
		single := &models.DatabaseMetadata{Tables: []models.TableMetadata{*described}}
		attachForeignKeys(single, fks)
		described = &single.Tables[0]
	}

	s.touch(ctx, conn.ID)
	return SuggestVisualizations(described), nil
}

func (s *databaseService) DiscoverDatabases(ctx context.Context, connString string) ([]models.DiscoveredDatabase, error) {
	connString = strings.TrimSpace(connString)
	dsType, err := s.adapterFactory.DetectType(connString)
	if err != nil {
		return nil, err
	}
	details, err := s.adapterFactory.Describe(dsType, connString)
	if err != nil {
		return nil, err
	}

	tctx, cancel := s.withTimeout(ctx)
	defer cancel()

	names, err := s.listDatabases(tctx, dsType, connString)
	if err != nil {
		if details.Database == "" {
			return nil, fmt.Errorf("list databases: %w", err)
		}
		s.logger.Warn("Could not list databases, using the named database",
			zap.String("type", dsType),
			zap.String("database", details.Database),
			zap.String("error", logging.SanitizeError(err)))
		names = []string{details.Database}
	}

	discovered := make([]models.DiscoveredDatabase, 0, len(names))
	for _, name := range names {
		target, err := s.adapterFactory.WithDatabase(dsType, connString, name)
		if err != nil {
			return nil, fmt.Errorf("target database %s: %w", name, err)
		}
		conn, err := s.newConnection(ctx, "", target)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, conn); err != nil {
			return nil, fmt.Errorf("save connection: %w", err)
		}
		discovered = append(discovered, models.DiscoveredDatabase{Name: name, Connection: conn})
	}

	s.logger.Info("Discovered databases",
		zap.String("type", dsType),
		zap.String("host", details.Host),
		zap.Int("count", len(discovered)))

	return discovered, nil
}

func (s *databaseService) listDatabases(ctx context.Context, dsType, connString string) ([]string, error) {
	lister, err := s.adapterFactory.NewDatabaseLister(ctx, dsType, connString)
	if err != nil {
		return nil, err
	}
	defer lister.Close()
	return lister.ListDatabases(ctx)
}

// touch records use of a connection. Failures are logged, never returned.
func (s *databaseService) touch(ctx context.Context, id string) {
	if err := s.repo.Touch(ctx, id, s.now().UTC()); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Warn("Failed to record connection use", zap.String("id", id), zap.Error(err))
	}
}
