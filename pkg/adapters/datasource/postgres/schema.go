package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

// SchemaDiscoverer provides PostgreSQL schema discovery.
type SchemaDiscoverer struct {
	pool      *pgxpool.Pool
	ownedPool bool
}

// NewSchemaDiscoverer creates a PostgreSQL schema discoverer using the connection manager.
// If connMgr is nil, creates an unmanaged pool closed by Close.
func NewSchemaDiscoverer(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (*SchemaDiscoverer, error) {
	pool, owned, err := acquirePool(ctx, connMgr, connectionID, connString)
	if err != nil {
		return nil, err
	}
	return &SchemaDiscoverer{pool: pool, ownedPool: owned}, nil
}

// Close releases the adapter (but NOT the pool if managed).
func (d *SchemaDiscoverer) Close() error {
	if d.ownedPool && d.pool != nil {
		d.pool.Close()
	}
	return nil
}

// SupportsForeignKeys returns true since PostgreSQL supports FK discovery.
func (d *SchemaDiscoverer) SupportsForeignKeys() bool {
	return true
}

// DiscoverTables returns all user tables (excludes system schemas).
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	// reltuples is -1 for tables never analyzed on PostgreSQL 14+.
	const query = `
		SELECT
			n.nspname,
			c.relname,
			GREATEST(c.reltuples, 0)::bigint AS row_count
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p', 'v', 'm')
		  AND NOT c.relispartition
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND n.nspname NOT LIKE 'pg_temp_%'
		ORDER BY n.nspname, c.relname
	`

	rows, err := d.pool.Query(ctx, query)
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
// Uses pg_index for primary key and unique detection, which correctly identifies
// primary keys even when created as unique indexes (common with GORM/ORMs).
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' as is_nullable,
			COALESCE(pk.is_pk, false) as is_primary_key,
			COALESCE(uq.is_unique, false) as is_unique,
			c.ordinal_position,
			c.column_default
		FROM information_schema.columns c
		LEFT JOIN (
			-- Use pg_index.indisprimary which correctly detects PKs even when
			-- created as unique indexes (e.g., GORM creates "tablename_pkey" indexes)
			SELECT a.attname as column_name, true as is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_class i ON i.oid = ix.indexrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
			  AND array_length(ix.indkey, 1) = 1  -- Single-column PKs only
		) pk ON c.column_name = pk.column_name
		LEFT JOIN (
			-- Use pg_index.indisunique for unique constraint detection
			SELECT a.attname as column_name, true as is_unique
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_class i ON i.oid = ix.indexrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisunique = true
			  AND ix.indisprimary = false  -- Exclude PKs (they're handled above)
			  AND n.nspname = $1
			  AND t.relname = $2
			  AND array_length(ix.indkey, 1) = 1  -- Single-column unique indexes only
		) uq ON c.column_name = uq.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := d.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.IsUnique, &c.OrdinalPosition, &c.DefaultValue); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns all foreign key relationships.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	// pg_constraint keeps composite keys column-aligned via WITH ORDINALITY.
	const query = `
		SELECT
			con.conname,
			sn.nspname AS source_schema,
			st.relname AS source_table,
			sa.attname AS source_column,
			tn.nspname AS target_schema,
			tt.relname AS target_table,
			ta.attname AS target_column
		FROM pg_constraint con
		JOIN pg_class st ON st.oid = con.conrelid
		JOIN pg_namespace sn ON sn.oid = st.relnamespace
		JOIN pg_class tt ON tt.oid = con.confrelid
		JOIN pg_namespace tn ON tn.oid = tt.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(src, dst, pos)
		JOIN pg_attribute sa ON sa.attrelid = con.conrelid AND sa.attnum = k.src
		JOIN pg_attribute ta ON ta.attrelid = con.confrelid AND ta.attnum = k.dst
		WHERE con.contype = 'f'
		  AND sn.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY sn.nspname, st.relname, con.conname, k.pos
	`

	rows, err := d.pool.Query(ctx, query)
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

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
