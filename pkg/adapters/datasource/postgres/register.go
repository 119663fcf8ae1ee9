package postgres

import (
	"context"

	"github.com/ekaya-inc/ekaya-gateway/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        typeName,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			Schemes:     []string{"postgres", "postgresql"},
			DefaultPort: DefaultPort(),
		},
		ParseConnectionString: ParseConnectionString,
		WithDatabase:          WithDatabase,
		OpenPool:              datasource.CreatePostgresPool,
		Factory: func(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (datasource.ConnectionTester, error) {
			return NewAdapter(ctx, connMgr, connectionID, connString)
		},
		SchemaDiscovererFactory: func(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (datasource.SchemaDiscoverer, error) {
			return NewSchemaDiscoverer(ctx, connMgr, connectionID, connString)
		},
		QueryExecutorFactory: func(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (datasource.QueryExecutor, error) {
			return NewQueryExecutor(ctx, connMgr, connectionID, connString)
		},
		DatabaseListerFactory: func(ctx context.Context, connMgr *datasource.ConnectionManager, connectionID, connString string) (datasource.DatabaseLister, error) {
			return NewAdapter(ctx, connMgr, connectionID, connString)
		},
	})
}
