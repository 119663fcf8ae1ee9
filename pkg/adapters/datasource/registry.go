package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
)

// DatasourceAdapterInfo describes a registered adapter for UI discovery.
type DatasourceAdapterInfo struct {
	Type        string   `json:"type"`        // "postgres", "mssql", "mysql", "clickhouse"
	DisplayName string   `json:"displayName"` // "PostgreSQL", "Microsoft SQL Server"
	Description string   `json:"description"`
	Schemes     []string `json:"schemes"` // URL schemes that select this adapter
	DefaultPort int      `json:"defaultPort"`
}

// AdapterFactoryFunc builds an adapter component for one connection.
// When connMgr is nil the component opens and owns its own pool, closed by Close.
type AdapterFactoryFunc[T any] func(ctx context.Context, connMgr *ConnectionManager, connectionID, connString string) (T, error)

// DatasourceAdapterRegistration contains info + factories for creating adapters.
type DatasourceAdapterRegistration struct {
	Info DatasourceAdapterInfo

	// ParseConnectionString extracts host, port, database and user.
	ParseConnectionString func(connString string) (*ConnectionDetails, error)

	// WithDatabase returns connString retargeted at another database on the same server.
	WithDatabase func(connString, database string) (string, error)

	// OpenPool creates and pings a pool. Used by the ConnectionManager.
	OpenPool func(ctx context.Context, connString string, opts PoolOptions) (PoolConnector, error)

	Factory                 AdapterFactoryFunc[ConnectionTester]
	SchemaDiscovererFactory AdapterFactoryFunc[SchemaDiscoverer]
	QueryExecutorFactory    AdapterFactoryFunc[QueryExecutor]
	DatabaseListerFactory   AdapterFactoryFunc[DatabaseLister]
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
	schemes    = make(map[string]string) // scheme -> adapter type
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, s := range reg.Info.Schemes {
		schemes[strings.ToLower(s)] = reg.Info.Type
	}
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetRegistration returns the registration for a datasource type.
func GetRegistration(dsType string) (DatasourceAdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	_, ok := GetRegistration(dsType)
	return ok
}

// TypeForConnectionString maps a connection URL's scheme to an adapter type.
func TypeForConnectionString(connString string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(connString))
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("%w: expected a URL such as postgres://user@host/db", apperrors.ErrInvalidConnection)
	}

	registryMu.RLock()
	dsType, ok := schemes[strings.ToLower(u.Scheme)]
	registryMu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, u.Scheme)
	}
	return dsType, nil
}
