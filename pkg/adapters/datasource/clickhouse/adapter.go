package clickhouse

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

const typeName = "clickhouse"

const listDatabasesQuery = `
	SELECT name
	FROM system.databases
	WHERE name NOT IN ('system', 'INFORMATION_SCHEMA', 'information_schema')
	ORDER BY name
`

// NewAdapter creates a ClickHouse adapter for connectivity checks and database listing.
func NewAdapter(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*datasource.SQLAdapter, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return datasource.NewSQLAdapter(db, typeName, listDatabasesQuery, owned), nil
}

// NewQueryExecutor creates a ClickHouse query executor using the connection manager.
func NewQueryExecutor(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*datasource.SQLQueryExecutor, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return datasource.NewSQLQueryExecutor(db, Dialect{}, owned), nil
}

// SchemaDiscoverer reads system.tables and system.columns.
type SchemaDiscoverer struct {
	db      *sql.DB
	ownedDB bool
}

// NewSchemaDiscoverer creates a ClickHouse schema discoverer using the connection manager.
func NewSchemaDiscoverer(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*SchemaDiscoverer, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{db: db, ownedDB: owned}, nil
}

// DiscoverTables returns tables of the current database. total_rows is NULL for views.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT database, name, toInt64(ifNull(total_rows, 0))
		FROM system.tables
		WHERE database = currentDatabase()
		  AND NOT is_temporary
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName, &t.RowCount); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// DiscoverColumns returns columns for a table. ClickHouse has no unique constraints.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			name,
			type,
			toUInt8(startsWith(type, 'Nullable(')),
			is_in_primary_key,
			toInt64(position),
			default_expression
		FROM system.columns
		WHERE database = ? AND table = ?
		ORDER BY position
	`

	rows, err := s.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		var nullable, primary uint8
		var def string
		if err := rows.Scan(&c.ColumnName, &c.DataType, &nullable, &primary, &c.OrdinalPosition, &def); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.IsNullable = nullable == 1
		c.IsPrimaryKey = primary == 1
		if def != "" {
			c.DefaultValue = &def
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// DiscoverForeignKeys returns nothing; ClickHouse has no foreign keys.
func (s *SchemaDiscoverer) DiscoverForeignKeys(context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return nil, nil
}

func (s *SchemaDiscoverer) SupportsForeignKeys() bool {
	return false
}

func (s *SchemaDiscoverer) Close() error {
	if s.ownedDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
