package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// DetectType returns the adapter type selected by the connection string's scheme.
	DetectType(connString string) (string, error)

	// Describe parses the non-secret parts of a connection string.
	Describe(dsType, connString string) (*ConnectionDetails, error)

	// WithDatabase retargets a connection string at another database.
	WithDatabase(dsType, connString, database string) (string, error)

	// NewConnectionTester creates a connection tester for the given datasource type.
	NewConnectionTester(ctx context.Context, dsType, connectionID, connString string) (ConnectionTester, error)

	// NewSchemaDiscoverer creates a schema discoverer for the given datasource type.
	NewSchemaDiscoverer(ctx context.Context, dsType, connectionID, connString string) (SchemaDiscoverer, error)

	// NewQueryExecutor creates a query executor for the given datasource type.
	NewQueryExecutor(ctx context.Context, dsType, connectionID, connString string) (QueryExecutor, error)

	// NewDatabaseLister creates a lister with its own short-lived pool.
	NewDatabaseLister(ctx context.Context, dsType, connString string) (DatabaseLister, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry.
// Managed components share pools held by connMgr.
func NewDatasourceAdapterFactory(connMgr *ConnectionManager) DatasourceAdapterFactory {
	return &registryFactory{
		connMgr: connMgr,
	}
}

func (f *registryFactory) registration(dsType string) (DatasourceAdapterRegistration, error) {
	reg, ok := GetRegistration(dsType)
	if !ok {
		return reg, fmt.Errorf("%w: %s (not compiled in)", apperrors.ErrUnsupportedType, dsType)
	}
	return reg, nil
}

func (f *registryFactory) DetectType(connString string) (string, error) {
	return TypeForConnectionString(connString)
}

func (f *registryFactory) Describe(dsType, connString string) (*ConnectionDetails, error) {
	reg, err := f.registration(dsType)
	if err != nil {
		return nil, err
	}
	details, err := reg.ParseConnectionString(connString)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidConnection) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidConnection, err)
	}
	return details, nil
}

func (f *registryFactory) WithDatabase(dsType, connString, database string) (string, error) {
	reg, err := f.registration(dsType)
	if err != nil {
		return "", err
	}
	return reg.WithDatabase(connString, database)
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, dsType, connectionID, connString string) (ConnectionTester, error) {
	reg, err := f.registration(dsType)
	if err != nil {
		return nil, err
	}
	return reg.Factory(ctx, f.connMgr, connectionID, connString)
}

func (f *registryFactory) NewSchemaDiscoverer(ctx context.Context, dsType, connectionID, connString string) (SchemaDiscoverer, error) {
	reg, err := f.registration(dsType)
	if err != nil {
		return nil, err
	}
	if reg.SchemaDiscovererFactory == nil {
		return nil, fmt.Errorf("schema discovery not supported for type: %s", dsType)
	}
	return reg.SchemaDiscovererFactory(ctx, f.connMgr, connectionID, connString)
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, dsType, connectionID, connString string) (QueryExecutor, error) {
	reg, err := f.registration(dsType)
	if err != nil {
		return nil, err
	}
	if reg.QueryExecutorFactory == nil {
		return nil, fmt.Errorf("query execution not supported for type: %s", dsType)
	}
	return reg.QueryExecutorFactory(ctx, f.connMgr, connectionID, connString)
}

func (f *registryFactory) NewDatabaseLister(ctx context.Context, dsType, connString string) (DatabaseLister, error) {
	reg, err := f.registration(dsType)
	if err != nil {
		return nil, err
	}
	if reg.DatabaseListerFactory == nil {
		return nil, fmt.Errorf("database listing not supported for type: %s", dsType)
	}
	// Discovery probes arbitrary servers; keep those pools out of the shared manager.
	return reg.DatabaseListerFactory(ctx, nil, "", connString)
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
