package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

// SchemaDiscoverer provides SQL Server schema discovery.
type SchemaDiscoverer struct {
	db      *sql.DB
	ownedDB bool
}

// NewSchemaDiscoverer creates a SQL Server schema discoverer using the connection manager.
// If connMgr is nil, creates an unmanaged pool closed by Close.
func NewSchemaDiscoverer(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*SchemaDiscoverer, error) {
	db, owned, err := datasource.AcquireSQLDB(ctx, connMgr, typeName, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{db: db, ownedDB: owned}, nil
}

// DiscoverTables returns all user tables with their partition row counts.
func (s *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(t.schema_id) AS table_schema,
	    t.name AS table_name,
	    CAST(COALESCE(SUM(p.rows), 0) AS BIGINT) AS row_count
	FROM sys.tables t
	LEFT JOIN sys.partitions p ON t.object_id = p.object_id AND p.index_id IN (0, 1)
	WHERE t.is_ms_shipped = 0
	GROUP BY t.schema_id, t.name
	ORDER BY table_schema, table_name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var table datasource.TableMetadata
		if err := rows.Scan(&table.SchemaName, &table.TableName, &table.RowCount); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, table)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a specific table.
// Only single-column primary keys and unique indexes mark a column.
func (s *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
	    CASE WHEN uq.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_unique,
	    c.column_id AS ordinal_position,
	    dc.definition AS column_default
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
	LEFT JOIN (
	    SELECT ic.object_id, MIN(ic.column_id) AS column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	    GROUP BY ic.object_id, ic.index_id
	    HAVING COUNT(*) = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	LEFT JOIN (
	    SELECT DISTINCT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_unique = 1 AND i.is_primary_key = 0
	      AND (SELECT COUNT(*) FROM sys.index_columns x
	           WHERE x.object_id = i.object_id AND x.index_id = i.index_id AND x.is_included_column = 0) = 1
	) uq ON c.object_id = uq.object_id AND c.column_id = uq.column_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var col datasource.ColumnMetadata
		var isNullable, isPrimary, isUnique int
		var def sql.NullString

		if err := rows.Scan(
			&col.ColumnName,
			&col.DataType,
			&isNullable,
			&isPrimary,
			&isUnique,
			&col.OrdinalPosition,
			&def,
		); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}

		col.IsNullable = isNullable == 1
		col.IsPrimaryKey = isPrimary == 1
		col.IsUnique = isUnique == 1
		col.DataType = mapSQLServerType(col.DataType)
		if def.Valid {
			col.DefaultValue = &def.String
		}

		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns all foreign key relationships.
func (s *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    fk.name AS constraint_name,
	    SCHEMA_NAME(fk.schema_id) AS source_schema,
	    OBJECT_NAME(fk.parent_object_id) AS source_table,
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
	    SCHEMA_NAME(rt.schema_id) AS target_schema,
	    OBJECT_NAME(fk.referenced_object_id) AS target_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables rt ON fk.referenced_object_id = rt.object_id
	WHERE fk.is_ms_shipped = 0
	ORDER BY source_schema, source_table, fk.name, fkc.constraint_column_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(
			&fk.ConstraintName,
			&fk.SourceSchema,
			&fk.SourceTable,
			&fk.SourceColumn,
			&fk.TargetSchema,
			&fk.TargetTable,
			&fk.TargetColumn,
		); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

// SupportsForeignKeys returns true since SQL Server supports foreign keys.
func (s *SchemaDiscoverer) SupportsForeignKeys() bool {
	return true
}

// Close releases the discoverer (but NOT the DB if managed).
func (s *SchemaDiscoverer) Close() error {
	if s.ownedDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
