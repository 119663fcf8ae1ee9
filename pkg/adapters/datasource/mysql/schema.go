package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

// SchemaDiscoverer provides MySQL schema discovery through information_schema.
// MySQL schemas and databases are the same thing, so SchemaName is the database.
type SchemaDiscoverer struct {
	db      *sql.DB
	ownedDB bool
}

// NewSchemaDiscoverer creates a MySQL schema discoverer using the connection manager.
func NewSchemaDiscoverer(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*SchemaDiscoverer, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{db: db, ownedDB: owned}, nil
}

// DiscoverTables returns tables and views of the connected database.
// table_rows is an InnoDB estimate.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT table_schema, table_name, COALESCE(table_rows, 0)
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name
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

// DiscoverColumns returns columns for a specific table.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			column_name,
			CASE WHEN column_type = 'tinyint(1)' THEN 'TINYINT(1)' ELSE UPPER(data_type) END,
			is_nullable = 'YES',
			column_key = 'PRI',
			column_key = 'UNI',
			ordinal_position,
			column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := s.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		var def sql.NullString
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.IsUnique, &c.OrdinalPosition, &def); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if def.Valid {
			c.DefaultValue = &def.String
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns foreign keys declared in the connected database.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
		SELECT
			constraint_name,
			table_schema,
			table_name,
			column_name,
			referenced_table_schema,
			referenced_table_name,
			referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		  AND referenced_table_name IS NOT NULL
		ORDER BY table_name, constraint_name, ordinal_position
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	return fks, nil
}

// SupportsForeignKeys is true for InnoDB, the default engine.
func (s *SchemaDiscoverer) SupportsForeignKeys() bool {
	return true
}

func (s *SchemaDiscoverer) Close() error {
	if s.ownedDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
